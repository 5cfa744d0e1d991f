package schemas

import (
	"fmt"
	"strings"
)

// -- Browser Profile Schemas --

// Capabilities is the free-form capability map sent to the remote end when a
// session is created (browserName, platformName, vendor options, ...).
type Capabilities map[string]interface{}

// Clone returns a shallow copy so callers can add keys without touching a
// profile shared between suite nodes.
func (c Capabilities) Clone() Capabilities {
	out := make(Capabilities, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// BrowserProfile names one browser configuration a fixture should be
// replicated over. Profiles are declared in order and are read-only once a
// suite has been built from them.
type BrowserProfile struct {
	Name         string       `json:"name" mapstructure:"name" yaml:"name"`
	Browser      string       `json:"browser,omitempty" mapstructure:"browser" yaml:"browser"`
	Capabilities Capabilities `json:"capabilities,omitempty" mapstructure:"capabilities" yaml:"capabilities"`
	// CapabilitiesJSON is a JSON object merged over Capabilities when the
	// configuration is loaded. Its keys keep their case.
	CapabilitiesJSON string `json:"-" mapstructure:"capabilities_json" yaml:"capabilities_json"`
}

// DefaultBrowserProfile is used for suites that declare no browsers.
var DefaultBrowserProfile = BrowserProfile{
	Name:    "default",
	Browser: "firefox",
}

// BrowserName returns the value to send as the browserName capability.
// An explicit capability wins over the Browser field, which in turn falls
// back to the profile name.
func (p BrowserProfile) BrowserName() string {
	if v, ok := p.Capabilities["browserName"].(string); ok && v != "" {
		return v
	}
	if p.Browser != "" {
		return p.Browser
	}
	return p.Name
}

// SessionCapabilities merges the profile's capability map with browserName.
func (p BrowserProfile) SessionCapabilities() Capabilities {
	caps := p.Capabilities.Clone()
	caps["browserName"] = p.BrowserName()
	return caps
}

// Validate reports declarations that cannot be turned into a session.
func (p BrowserProfile) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("browser profile name must not be empty")
	}
	if strings.ContainsAny(p.Name, " \t\n") {
		return fmt.Errorf("browser profile name %q must not contain whitespace", p.Name)
	}
	return nil
}

// -- Remote End Schemas --

// Rect is an element's bounding rectangle in CSS pixels, as returned by
// GET {session}/element/{id}/rect.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ServerStatus is the payload of GET /status.
type ServerStatus struct {
	Ready   bool   `json:"ready"`
	Message string `json:"message"`
	Build   struct {
		Version string `json:"version"`
	} `json:"build"`
	OS struct {
		Name    string `json:"name"`
		Arch    string `json:"arch"`
		Version string `json:"version"`
	} `json:"os"`
}

// Timeouts configures the session's wait behaviour, in milliseconds.
type Timeouts struct {
	Implicit int64 `json:"implicit,omitempty" mapstructure:"implicit" yaml:"implicit"`
	PageLoad int64 `json:"pageLoad,omitempty" mapstructure:"page_load" yaml:"page_load"`
	Script   int64 `json:"script,omitempty" mapstructure:"script" yaml:"script"`
}
