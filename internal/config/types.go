package config

import (
	"time"
)

// Config is the top-level configuration structure for mke2e.
type Config struct {
	Browser   BrowserSettings  `yaml:"browser"`
	Target    TargetSettings   `yaml:"target"`
	Artifacts ArtifactSettings `yaml:"artifacts"`
	Run       RunSettings      `yaml:"run"`
	Cleanup   CleanupSettings  `yaml:"cleanup"`
	Logging   LoggingSettings  `yaml:"logging"`
}

// Browser engines understood by the session manager.
const (
	EngineChromium = "chromium"
	EngineFirefox  = "firefox"
	EngineWebKit   = "webkit"
)

// Trace modes for browser tracing.
const (
	TraceOff             = "off"
	TraceOn              = "on"
	TraceRetainOnFailure = "retain-on-failure"
)

// BrowserSettings controls how each scenario's browser session is launched.
type BrowserSettings struct {
	Engine        string        `yaml:"engine,omitempty"`        // chromium, firefox or webkit
	Headless      *bool         `yaml:"headless,omitempty"`      // defaults to true
	ActionTimeout time.Duration `yaml:"actionTimeout,omitempty"` // per-action wait budget
	TraceMode     string        `yaml:"traceMode,omitempty"`     // off, on, retain-on-failure
}

// IsHeadless reports whether the browser runs without a window.
func (b BrowserSettings) IsHeadless() bool {
	return boolValue(b.Headless, true)
}

// TargetSettings describes the application under test.
type TargetSettings struct {
	BaseURL           string  `yaml:"baseURL,omitempty"`
	APIBaseURL        string  `yaml:"apiBaseURL,omitempty"`
	RequestsPerSecond float64 `yaml:"requestsPerSecond,omitempty"` // client-side API rate limit
	HTTPRetries       int     `yaml:"httpRetries,omitempty"`
}

// ArtifactSettings controls where diagnostics and reports are written.
type ArtifactSettings struct {
	ScreenshotsDir      string `yaml:"screenshotsDir,omitempty"`
	ReportsDir          string `yaml:"reportsDir,omitempty"`
	ScreenshotOnSuccess *bool  `yaml:"screenshotOnSuccess,omitempty"`
	MetricsFile         string `yaml:"metricsFile,omitempty"` // prometheus textfile, empty disables
	TraceFile           string `yaml:"traceFile,omitempty"`   // otel span export, empty disables
}

// CaptureOnSuccess reports whether passing steps are screenshotted too.
func (a ArtifactSettings) CaptureOnSuccess() bool {
	return boolValue(a.ScreenshotOnSuccess, false)
}

// RunSettings controls the suite runner.
type RunSettings struct {
	Paths           []string      `yaml:"paths,omitempty"`
	Tags            string        `yaml:"tags,omitempty"`
	Format          string        `yaml:"format,omitempty"`
	Workers         int           `yaml:"workers,omitempty"`
	ScenarioTimeout time.Duration `yaml:"scenarioTimeout,omitempty"`
	TeardownTimeout time.Duration `yaml:"teardownTimeout,omitempty"`
	Strict          *bool         `yaml:"strict,omitempty"`
	Live            bool          `yaml:"live,omitempty"`
}

// IsStrict reports whether undefined or pending steps fail the suite.
func (r RunSettings) IsStrict() bool {
	return boolValue(r.Strict, true)
}

// CleanupSettings controls the out-of-band sweep command.
type CleanupSettings struct {
	SweepPrefixes []string `yaml:"sweepPrefixes,omitempty"`
}

// LoggingSettings controls the harness log output.
type LoggingSettings struct {
	Level string `yaml:"level,omitempty"`
}

func boolValue(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

// Bool returns a pointer to b, for building configs in code.
func Bool(b bool) *bool {
	return &b
}
