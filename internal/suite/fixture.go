// Package suite turns fixtures into an executable tree of tests and runs
// that tree against a WebDriver remote end.
package suite

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/xkilldash9x/selenium-suite/api/schemas"
	"github.com/xkilldash9x/selenium-suite/internal/config"
	"github.com/xkilldash9x/selenium-suite/internal/selenese"
	"github.com/xkilldash9x/selenium-suite/internal/webdriver"
)

// FixtureConfig is the static declaration a fixture makes about itself.
type FixtureConfig struct {
	// SelenesePath is a Selenese file or a directory of them.
	SelenesePath string
	// Deprecated: use SelenesePath. Read only when SelenesePath is empty.
	SeleneseDirectory string
	Groups            []string
	// Dependencies maps a test's simple name to the simple names it needs
	// to have passed first.
	Dependencies map[string][]string
	// BaseURL resolves relative "open" targets in scripts without a
	// selenium.base link.
	BaseURL string
}

// Method is a test written in Go. Run returns nil on success, an error
// built with Failf for an assertion failure, or any other error when the
// browser or remote end misbehaved.
type Method struct {
	Name      string
	Groups    []string
	DependsOn []string
	Run       func(ctx context.Context, s *webdriver.Session) error
}

// Fixture is a unit of test registration: a named set of Selenese scripts
// and Go methods, optionally replicated over several browsers.
type Fixture interface {
	Name() string
	// Browsers returns the profiles to replicate over, in order. An empty
	// result means the tests run once on the default browser.
	Browsers() []schemas.BrowserProfile
	Config() FixtureConfig
	Methods() []Method
}

// Failf reports an assertion failure from a Method.
func Failf(format string, args ...interface{}) error {
	return &selenese.AssertionError{Failures: []string{fmt.Sprintf(format, args...)}}
}

// StaticFixture is a Fixture assembled from plain values.
type StaticFixture struct {
	FixtureName string
	Profiles    []schemas.BrowserProfile
	Settings    FixtureConfig
	TestMethods []Method
}

var _ Fixture = (*StaticFixture)(nil)

func (f *StaticFixture) Name() string                       { return f.FixtureName }
func (f *StaticFixture) Browsers() []schemas.BrowserProfile { return f.Profiles }
func (f *StaticFixture) Config() FixtureConfig              { return f.Settings }
func (f *StaticFixture) Methods() []Method                  { return f.TestMethods }

// NewStaticFixture builds the script-only fixture described by the suite
// section of the configuration.
func NewStaticFixture(cfg config.SuiteConfig) *StaticFixture {
	deps := make(map[string][]string, len(cfg.Dependencies))
	for _, d := range cfg.Dependencies {
		deps[d.Test] = append(deps[d.Test], d.DependsOn...)
	}
	return &StaticFixture{
		FixtureName: cfg.Name,
		Profiles:    cfg.Browsers,
		Settings: FixtureConfig{
			SelenesePath:      cfg.SelenesePath,
			SeleneseDirectory: cfg.SeleneseDirectory,
			Groups:            cfg.Groups,
			Dependencies:      deps,
			BaseURL:           cfg.BaseURL,
		},
	}
}

// Registry holds the fixtures known to a process. Fixtures register
// themselves explicitly, typically from an init function.
type Registry struct {
	mu       sync.RWMutex
	fixtures map[string]Fixture
	order    []string
}

func NewRegistry() *Registry {
	return &Registry{fixtures: make(map[string]Fixture)}
}

// DefaultRegistry is the registry used by the command line.
var DefaultRegistry = NewRegistry()

// Register adds f under f.Name(). Names must be unique.
func (r *Registry) Register(f Fixture) error {
	if f == nil || f.Name() == "" {
		return &ConfigError{Reason: "fixture must have a name"}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.fixtures[f.Name()]; exists {
		return &ConfigError{Fixture: f.Name(), Reason: "fixture already registered"}
	}
	r.fixtures[f.Name()] = f
	r.order = append(r.order, f.Name())
	return nil
}

func (r *Registry) Lookup(name string) (Fixture, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.fixtures[name]
	return f, ok
}

// Names returns the registered names sorted lexically.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := append([]string(nil), r.order...)
	sort.Strings(out)
	return out
}

// ConfigError is a malformed fixture declaration. It aborts the build.
type ConfigError struct {
	Fixture string
	Reason  string
	Err     error
}

func (e *ConfigError) Error() string {
	msg := "invalid fixture"
	if e.Fixture != "" {
		msg += " " + e.Fixture
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigError) Unwrap() error { return e.Err }
