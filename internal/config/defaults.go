package config

import (
	"time"
)

// Defaults mirror what the application's own dev server exposes locally.
const (
	DefaultBaseURL         = "http://localhost:5173"
	DefaultAPIBaseURL      = "http://localhost:8080/api"
	DefaultActionTimeout   = 10 * time.Second
	DefaultScenarioTimeout = 30 * time.Second
	DefaultTeardownTimeout = 30 * time.Second
	DefaultScreenshotsDir  = "reports/screenshots"
	DefaultReportsDir      = "reports"
	DefaultFeaturesPath    = "features"
)

// GetDefaultConfig returns the built-in configuration every layer is merged onto.
func GetDefaultConfig() Config {
	return Config{
		Browser: BrowserSettings{
			Engine:        EngineChromium,
			Headless:      Bool(true),
			ActionTimeout: DefaultActionTimeout,
			TraceMode:     TraceOff,
		},
		Target: TargetSettings{
			BaseURL:           DefaultBaseURL,
			APIBaseURL:        DefaultAPIBaseURL,
			RequestsPerSecond: 20,
			HTTPRetries:       2,
		},
		Artifacts: ArtifactSettings{
			ScreenshotsDir:      DefaultScreenshotsDir,
			ReportsDir:          DefaultReportsDir,
			ScreenshotOnSuccess: Bool(false),
		},
		Run: RunSettings{
			Paths:           []string{DefaultFeaturesPath},
			Format:          "pretty",
			Workers:         1,
			ScenarioTimeout: DefaultScenarioTimeout,
			TeardownTimeout: DefaultTeardownTimeout,
			Strict:          Bool(true),
		},
		Logging: LoggingSettings{
			Level: "info",
		},
	}
}
