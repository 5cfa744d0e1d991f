package suite

import (
	"strings"

	"github.com/xkilldash9x/selenium-suite/api/schemas"
)

// Test is a leaf of the suite tree: one Selenese script or one Method.
type Test struct {
	name string

	Fixture string
	// ScriptPath is set for script tests, Method for method tests.
	ScriptPath string
	Method     *Method
	Groups     []string
	DependsOn  []string
	BaseURL    string
	// Browser is nil until the test is bound to a browser node.
	Browser *schemas.BrowserProfile
}

// Name is the display name, e.g. "login" or "login [chrome]" once bound
// to a browser.
func (t *Test) Name() string {
	if t.Browser == nil {
		return t.name
	}
	return t.name + " [" + t.Browser.Name + "]"
}

// SimpleName is the display name up to the first space. Dependencies are
// declared against it.
func (t *Test) SimpleName() string {
	name, _, _ := strings.Cut(t.Name(), " ")
	return name
}

// Suite is an internal node of the tree: the root, or one browser node
// per profile when a fixture replicates over browsers.
type Suite struct {
	Name    string
	Browser *schemas.BrowserProfile
	Tests   []*Test
	Suites  []*Suite
}

func NewSuite(name string) *Suite {
	return &Suite{Name: name}
}

// AddTest appends t, merging groups into the groups it already carries.
func (s *Suite) AddTest(t *Test, groups []string) {
	t.Groups = mergeNames(t.Groups, groups)
	s.Tests = append(s.Tests, t)
}

// AddTestMethod registers m as a test of f. Groups and dependencies come
// from both the fixture declaration and the method itself.
func (s *Suite) AddTestMethod(f Fixture, m Method) {
	cfg := f.Config()
	method := m
	t := &Test{
		name:      m.Name,
		Fixture:   f.Name(),
		Method:    &method,
		Groups:    append([]string(nil), m.Groups...),
		DependsOn: mergeNames(cfg.Dependencies[m.Name], m.DependsOn),
		BaseURL:   cfg.BaseURL,
	}
	s.AddTest(t, cfg.Groups)
}

// AddSuite attaches child below s.
func (s *Suite) AddSuite(child *Suite) {
	s.Suites = append(s.Suites, child)
}

// SetupSpecificBrowser binds the node and every test below it to profile.
func (s *Suite) SetupSpecificBrowser(profile schemas.BrowserProfile) {
	p := profile
	s.Browser = &p
	for _, t := range s.Tests {
		t.Browser = &p
	}
	for _, child := range s.Suites {
		child.SetupSpecificBrowser(profile)
	}
}

// CountTests returns the number of leaves in the subtree.
func (s *Suite) CountTests() int {
	n := len(s.Tests)
	for _, child := range s.Suites {
		n += child.CountTests()
	}
	return n
}

// Walk visits s and its descendants depth first, parents before children.
// Returning an error from fn stops the walk.
func (s *Suite) Walk(fn func(node *Suite, depth int) error) error {
	return s.walk(fn, 0)
}

func (s *Suite) walk(fn func(*Suite, int) error, depth int) error {
	if err := fn(s, depth); err != nil {
		return err
	}
	for _, child := range s.Suites {
		if err := child.walk(fn, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// mergeNames returns a followed by the members of b not already present.
func mergeNames(a, b []string) []string {
	if len(b) == 0 {
		return a
	}
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, n := range list {
			if !seen[n] {
				seen[n] = true
				out = append(out, n)
			}
		}
	}
	return out
}
