// File: internal/config/config.go
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/viper"

	"github.com/xkilldash9x/selenium-suite/api/schemas"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Remote() RemoteConfig
	Suite() SuiteConfig
	Report() ReportConfig
	Database() DatabaseConfig
	Metrics() MetricsConfig

	// Suite Setters, driven by CLI flags.
	SetSuiteSelenesePath(path string)
	SetSuiteBrowsers(browsers []schemas.BrowserProfile)
	SetSuiteParallelBrowsers(n int)

	// Remote Setters
	SetRemoteServerURL(u string)
}

// Config holds the entire application configuration.
// Sections are exported for viper's decoder and read through the Interface getters.
type Config struct {
	LoggerCfg   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	RemoteCfg   RemoteConfig   `mapstructure:"remote" yaml:"remote"`
	SuiteCfg    SuiteConfig    `mapstructure:"suite" yaml:"suite"`
	ReportCfg   ReportConfig   `mapstructure:"report" yaml:"report"`
	DatabaseCfg DatabaseConfig `mapstructure:"database" yaml:"database"`
	MetricsCfg  MetricsConfig  `mapstructure:"metrics" yaml:"metrics"`
}

var _ Interface = (*Config)(nil)

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig     { return c.LoggerCfg }
func (c *Config) Remote() RemoteConfig     { return c.RemoteCfg }
func (c *Config) Suite() SuiteConfig       { return c.SuiteCfg }
func (c *Config) Report() ReportConfig     { return c.ReportCfg }
func (c *Config) Database() DatabaseConfig { return c.DatabaseCfg }
func (c *Config) Metrics() MetricsConfig   { return c.MetricsCfg }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetSuiteSelenesePath(path string) { c.SuiteCfg.SelenesePath = path }
func (c *Config) SetSuiteBrowsers(browsers []schemas.BrowserProfile) {
	c.SuiteCfg.Browsers = browsers
}
func (c *Config) SetSuiteParallelBrowsers(n int) { c.SuiteCfg.ParallelBrowsers = n }
func (c *Config) SetRemoteServerURL(u string)    { c.RemoteCfg.ServerURL = u }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// RemoteConfig describes the WebDriver remote end commands are sent to.
type RemoteConfig struct {
	ServerURL      string        `mapstructure:"server_url" yaml:"server_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	// CommandRate caps commands per second across all sessions of a driver. Zero disables throttling.
	CommandRate  float64 `mapstructure:"command_rate" yaml:"command_rate"`
	CommandBurst int     `mapstructure:"command_burst" yaml:"command_burst"`
	// DefaultBrowser is used for suites without browser replication.
	DefaultBrowser string           `mapstructure:"default_browser" yaml:"default_browser"`
	Timeouts       schemas.Timeouts `mapstructure:"timeouts" yaml:"timeouts"`
}

// SuiteConfig is the declarative fixture built when the CLI is pointed at a
// directory of Selenese scripts.
type SuiteConfig struct {
	Name         string `mapstructure:"name" yaml:"name"`
	SelenesePath string `mapstructure:"selenese_path" yaml:"selenese_path"`
	// Deprecated: use SelenesePath.
	SeleneseDirectory string                   `mapstructure:"selenese_directory" yaml:"selenese_directory"`
	BaseURL           string                   `mapstructure:"base_url" yaml:"base_url"`
	Browsers          []schemas.BrowserProfile `mapstructure:"browsers" yaml:"browsers"`
	Groups            []string                 `mapstructure:"groups" yaml:"groups"`
	IncludeGroups     []string                 `mapstructure:"include_groups" yaml:"include_groups"`
	ExcludeGroups     []string                 `mapstructure:"exclude_groups" yaml:"exclude_groups"`
	ParallelBrowsers  int                      `mapstructure:"parallel_browsers" yaml:"parallel_browsers"`
	Dependencies      []DependencyConfig       `mapstructure:"dependencies" yaml:"dependencies"`
}

// DependencyConfig declares that Test only runs after every name in
// DependsOn passed. Names are simple test names.
type DependencyConfig struct {
	Test      string   `mapstructure:"test" yaml:"test"`
	DependsOn []string `mapstructure:"depends_on" yaml:"depends_on"`
}

// ReportConfig selects the report writer.
type ReportConfig struct {
	Format string `mapstructure:"format" yaml:"format"`
	Output string `mapstructure:"output" yaml:"output"`
}

// DatabaseConfig holds the database connection details.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// MetricsConfig enables the prometheus endpoint when ListenAddr is set.
type MetricsConfig struct {
	ListenAddr string `mapstructure:"listen_addr" yaml:"listen_addr"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Unreachable with the defaults above.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "selenium-suite")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Remote --
	v.SetDefault("remote.server_url", "http://localhost:4444/wd/hub")
	v.SetDefault("remote.request_timeout", "60s")
	v.SetDefault("remote.command_rate", 0)
	v.SetDefault("remote.command_burst", 1)
	v.SetDefault("remote.default_browser", schemas.DefaultBrowserProfile.Browser)
	v.SetDefault("remote.timeouts.implicit", 0)
	v.SetDefault("remote.timeouts.page_load", 30000)
	v.SetDefault("remote.timeouts.script", 30000)

	// -- Suite --
	v.SetDefault("suite.name", "selenese")
	v.SetDefault("suite.parallel_browsers", 1)

	// -- Report --
	v.SetDefault("report.format", "junit")
	v.SetDefault("report.output", "")

	// -- Database / Metrics --
	v.SetDefault("database.url", "")
	v.SetDefault("metrics.listen_addr", "")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Bind environment variables for sensitive data
	_ = v.BindEnv("database.url", "SELENIUM_SUITE_DATABASE_URL")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	for i := range cfg.SuiteCfg.Browsers {
		caps, err := profileCapabilities(cfg.SuiteCfg.Browsers[i])
		if err != nil {
			return nil, fmt.Errorf("suite.browsers[%d]: %w", i, err)
		}
		cfg.SuiteCfg.Browsers[i].Capabilities = caps
		cfg.SuiteCfg.Browsers[i].CapabilitiesJSON = ""
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// capabilityNames maps viper's lower-cased keys back to the case-sensitive
// W3C capability names and the vendor options nested below them.
var capabilityNames = indexNames(
	// W3C
	"browserName", "browserVersion", "platformName", "acceptInsecureCerts",
	"pageLoadStrategy", "unhandledPromptBehavior", "strictFileInteractability",
	"setWindowRect", "webSocketUrl", "proxyType", "proxyAutoconfigUrl",
	"httpProxy", "sslProxy", "socksProxy", "socksVersion", "noProxy", "pageLoad",
	// Vendor namespaces
	"goog:chromeOptions", "goog:loggingPrefs", "moz:firefoxOptions",
	"moz:debuggerAddress", "ms:edgeOptions", "safari:automaticInspection",
	"safari:automaticProfiling", "se:options",
	// chromeOptions / edgeOptions
	"excludeSwitches", "localState", "debuggerAddress", "minidumpPath",
	"mobileEmulation", "perfLoggingPrefs", "windowTypes", "androidPackage",
	"androidActivity", "androidDeviceSerial", "androidUseRunningApp",
	"androidProcess", "deviceName", "deviceMetrics", "userAgent", "clientHints",
	"pixelRatio", "enableNetwork", "enablePage", "traceCategories",
	"bufferUsageReportingInterval",
	// firefoxOptions
	"androidIntentArguments",
)

// freeFormKeys hold user-defined keys (browser preferences, environment
// variables); names below them are left as decoded.
var freeFormKeys = map[string]bool{"prefs": true, "env": true, "localState": true}

func indexNames(names ...string) map[string]string {
	out := make(map[string]string, len(names))
	for _, n := range names {
		out[strings.ToLower(n)] = n
	}
	return out
}

// profileCapabilities restores the case of known capability names at every
// level, then merges the profile's CapabilitiesJSON over the result.
func profileCapabilities(p schemas.BrowserProfile) (schemas.Capabilities, error) {
	caps := canonicalCapabilities(p.Capabilities)
	if strings.TrimSpace(p.CapabilitiesJSON) == "" {
		return caps, nil
	}
	var raw map[string]interface{}
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.UnmarshalFromString(p.CapabilitiesJSON, &raw); err != nil {
		return nil, fmt.Errorf("capabilities_json of %q: %w", p.Name, err)
	}
	if caps == nil {
		caps = make(schemas.Capabilities, len(raw))
	}
	for k, v := range raw {
		caps[k] = v
	}
	return caps, nil
}

func canonicalCapabilities(caps schemas.Capabilities) schemas.Capabilities {
	if len(caps) == 0 {
		return caps
	}
	return schemas.Capabilities(canonicalMap(caps))
}

func canonicalMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		if name, ok := capabilityNames[strings.ToLower(k)]; ok {
			k = name
		}
		if freeFormKeys[k] {
			out[k] = v
			continue
		}
		out[k] = canonicalValue(v)
	}
	return out
}

func canonicalValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return canonicalMap(t)
	case schemas.Capabilities:
		return canonicalMap(t)
	case map[interface{}]interface{}:
		m := make(map[string]interface{}, len(t))
		for k, val := range t {
			m[fmt.Sprint(k)] = val
		}
		return canonicalMap(m)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = canonicalValue(e)
		}
		return out
	default:
		return v
	}
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if err := c.RemoteCfg.Validate(); err != nil {
		return fmt.Errorf("remote configuration invalid: %w", err)
	}
	if err := c.SuiteCfg.Validate(); err != nil {
		return fmt.Errorf("suite configuration invalid: %w", err)
	}
	switch strings.ToLower(c.ReportCfg.Format) {
	case "junit", "json":
	default:
		return fmt.Errorf("report.format must be one of junit, json (got %q)", c.ReportCfg.Format)
	}
	return nil
}

// Validate checks the remote end settings.
func (r *RemoteConfig) Validate() error {
	if r.ServerURL == "" {
		return fmt.Errorf("remote.server_url is required")
	}
	u, err := url.Parse(r.ServerURL)
	if err != nil {
		return fmt.Errorf("remote.server_url is not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("remote.server_url must use http or https (got %q)", u.Scheme)
	}
	if r.RequestTimeout <= 0 {
		return fmt.Errorf("remote.request_timeout must be a positive duration")
	}
	if r.CommandRate < 0 {
		return fmt.Errorf("remote.command_rate must not be negative")
	}
	if r.CommandRate > 0 && r.CommandBurst <= 0 {
		return fmt.Errorf("remote.command_burst must be positive when command_rate is set")
	}
	return nil
}

// Validate checks the suite declaration.
func (s *SuiteConfig) Validate() error {
	if s.ParallelBrowsers <= 0 {
		return fmt.Errorf("suite.parallel_browsers must be a positive integer")
	}
	seen := make(map[string]struct{}, len(s.Browsers))
	for i, b := range s.Browsers {
		if err := b.Validate(); err != nil {
			return fmt.Errorf("suite.browsers[%d]: %w", i, err)
		}
		if _, dup := seen[b.Name]; dup {
			return fmt.Errorf("suite.browsers[%d]: duplicate profile name %q", i, b.Name)
		}
		seen[b.Name] = struct{}{}
	}
	for i, d := range s.Dependencies {
		if strings.TrimSpace(d.Test) == "" {
			return fmt.Errorf("suite.dependencies[%d]: test name is required", i)
		}
	}
	return nil
}
