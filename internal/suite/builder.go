package suite

import (
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/selenium-suite/api/schemas"
)

// BuildContext carries the state of one build through the builder's steps.
// A context is single use.
type BuildContext struct {
	Fixture  Fixture
	Config   FixtureConfig
	Browsers []schemas.BrowserProfile
	Scripts  []string
	Root     *Suite
}

// Builder assembles suite trees from fixtures.
type Builder struct {
	scanner *Scanner
	logger  *zap.Logger
}

func NewBuilder(scanner *Scanner, logger *zap.Logger) *Builder {
	return &Builder{scanner: scanner, logger: logger.Named("suite")}
}

// Build turns f into a suite tree. With browsers declared, the root holds
// one node per profile and every test appears once under each node; without
// them the tests hang directly off the root. Scripts are registered before
// methods. Malformed declarations fail with a *ConfigError.
func (b *Builder) Build(bc *BuildContext, f Fixture) (*Suite, error) {
	if bc.Root != nil {
		return nil, fmt.Errorf("build context for %q already used", bc.Root.Name)
	}
	bc.Fixture = f
	bc.Config = f.Config()
	bc.Root = NewSuite(f.Name())

	if err := b.readBrowsers(bc); err != nil {
		return nil, err
	}
	if err := b.validateMethods(bc); err != nil {
		return nil, err
	}
	bc.Scripts = b.scanner.Scan(ResolveScriptPath(bc.Config))
	if err := b.checkTestNames(bc); err != nil {
		return nil, err
	}

	if len(bc.Browsers) == 0 {
		b.addScripts(bc, bc.Root)
		b.addMethods(bc, bc.Root)
	} else {
		for _, profile := range bc.Browsers {
			node := NewSuite(f.Name() + ": " + profile.Name)
			b.addScripts(bc, node)
			b.addMethods(bc, node)
			node.SetupSpecificBrowser(profile)
			bc.Root.AddSuite(node)
		}
	}

	b.logger.Debug("Suite built",
		zap.String("fixture", f.Name()),
		zap.Int("browsers", len(bc.Browsers)),
		zap.Int("scripts", len(bc.Scripts)),
		zap.Int("methods", len(f.Methods())),
		zap.Int("tests", bc.Root.CountTests()))
	return bc.Root, nil
}

func (b *Builder) readBrowsers(bc *BuildContext) error {
	name := bc.Fixture.Name()
	if strings.TrimSpace(name) == "" {
		return &ConfigError{Reason: "fixture must have a name"}
	}

	profiles := bc.Fixture.Browsers()
	seen := make(map[string]bool, len(profiles))
	for i, p := range profiles {
		if err := p.Validate(); err != nil {
			return &ConfigError{Fixture: name, Reason: fmt.Sprintf("browser %d", i), Err: err}
		}
		if seen[p.Name] {
			return &ConfigError{Fixture: name, Reason: fmt.Sprintf("browser %q declared twice", p.Name)}
		}
		seen[p.Name] = true
	}
	bc.Browsers = profiles
	return nil
}

func (b *Builder) validateMethods(bc *BuildContext) error {
	name := bc.Fixture.Name()
	seen := make(map[string]bool)
	for i, m := range bc.Fixture.Methods() {
		switch {
		case m.Name == "" || strings.ContainsAny(m.Name, " \t\n"):
			return &ConfigError{Fixture: name, Reason: fmt.Sprintf("method %d has an invalid name %q", i, m.Name)}
		case m.Run == nil:
			return &ConfigError{Fixture: name, Reason: fmt.Sprintf("method %q has no body", m.Name)}
		case seen[m.Name]:
			return &ConfigError{Fixture: name, Reason: fmt.Sprintf("method %q declared twice", m.Name)}
		}
		seen[m.Name] = true
	}
	for test, deps := range bc.Config.Dependencies {
		if test == "" {
			return &ConfigError{Fixture: name, Reason: "dependency declared for an empty test name"}
		}
		for _, d := range deps {
			if d == "" || d == test {
				return &ConfigError{Fixture: name, Reason: fmt.Sprintf("test %q has an invalid dependency %q", test, d)}
			}
		}
	}
	return nil
}

// checkTestNames rejects two tests sharing a simple name. Results and
// dependencies are keyed by it, so a.htm next to a.html, or login.html in
// two scanned directories, would be indistinguishable.
func (b *Builder) checkTestNames(bc *BuildContext) error {
	owner := make(map[string]string, len(bc.Scripts))
	for _, path := range bc.Scripts {
		simple := scriptName(path)
		if prev, ok := owner[simple]; ok {
			return &ConfigError{Fixture: bc.Fixture.Name(), Reason: fmt.Sprintf("scripts %s and %s are both named %q", prev, path, simple)}
		}
		owner[simple] = path
	}
	for _, m := range bc.Fixture.Methods() {
		if prev, ok := owner[m.Name]; ok {
			return &ConfigError{Fixture: bc.Fixture.Name(), Reason: fmt.Sprintf("method %q has the same name as script %s", m.Name, prev)}
		}
	}
	return nil
}

func (b *Builder) addScripts(bc *BuildContext, node *Suite) {
	for _, path := range bc.Scripts {
		simple := scriptName(path)
		t := &Test{
			name:       simple,
			Fixture:    bc.Fixture.Name(),
			ScriptPath: path,
			DependsOn:  bc.Config.Dependencies[simple],
			BaseURL:    bc.Config.BaseURL,
		}
		node.AddTest(t, bc.Config.Groups)
	}
}

func (b *Builder) addMethods(bc *BuildContext, node *Suite) {
	for _, m := range bc.Fixture.Methods() {
		node.AddTestMethod(bc.Fixture, m)
	}
}

// scriptName is the file name without extension and with spaces replaced,
// so that it survives being cut at the first space.
func scriptName(path string) string {
	base := filepath.Base(path)
	return strings.ReplaceAll(strings.TrimSuffix(base, filepath.Ext(base)), " ", "_")
}
