package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// binding ties a viper key to the environment variable and command line flag
// that may set it. Millisecond env vars get their own key since the matching
// flag takes a duration.
type binding struct {
	key  string
	env  string
	flag string
}

var bindings = []binding{
	{key: "browser.engine", env: "BROWSER_NAME", flag: "browser"},
	{key: "browser.headless", env: "HEADLESS", flag: "headless"},
	{key: "browser.actiontimeout", flag: "action-timeout"},
	{key: "browser.actiontimeoutms", env: "ACTION_TIMEOUT"},
	{key: "browser.tracemode", env: "TRACE_MODE", flag: "trace"},
	{key: "target.baseurl", env: "BASE_URL", flag: "base-url"},
	{key: "target.apibaseurl", env: "API_BASE_URL", flag: "api-base-url"},
	{key: "artifacts.screenshotsdir", env: "SCREENSHOTS_DIR"},
	{key: "artifacts.reportsdir", env: "REPORTS_DIR", flag: "reports-dir"},
	{key: "artifacts.screenshotonsuccess", env: "SCREENSHOT_ON_SUCCESS", flag: "screenshot-on-success"},
	{key: "artifacts.metricsfile", flag: "metrics-file"},
	{key: "artifacts.tracefile", flag: "otel-file"},
	{key: "run.tags", flag: "tags"},
	{key: "run.format", flag: "format"},
	{key: "run.workers", env: "WORKERS", flag: "workers"},
	{key: "run.scenariotimeout", flag: "timeout"},
	{key: "run.scenariotimeoutms", env: "TEST_TIMEOUT"},
	{key: "run.teardowntimeoutms", env: "TEARDOWN_TIMEOUT"},
	{key: "run.live", flag: "live"},
	{key: "logging.level", env: "LOG_LEVEL", flag: "log-level"},
	{key: "ci", env: "CI"},
}

// applyOverrides layers environment variables and changed flags onto cfg.
// Flags win over the environment.
func applyOverrides(cfg Config, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	for _, b := range bindings {
		if b.env != "" {
			if err := v.BindEnv(b.key, b.env); err != nil {
				return cfg, fmt.Errorf("binding %s: %w", b.env, err)
			}
		}
		if b.flag == "" || flags == nil {
			continue
		}
		if f := flags.Lookup(b.flag); f != nil {
			if err := v.BindPFlag(b.key, f); err != nil {
				return cfg, fmt.Errorf("binding --%s: %w", b.flag, err)
			}
		}
	}

	// CI runs serialize scenarios unless told otherwise
	if v.GetBool("ci") {
		cfg.Run.Workers = 1
	}

	setString(v, "browser.engine", &cfg.Browser.Engine)
	setBool(v, "browser.headless", &cfg.Browser.Headless)
	setMillis(v, "browser.actiontimeoutms", &cfg.Browser.ActionTimeout)
	setDuration(v, "browser.actiontimeout", &cfg.Browser.ActionTimeout)
	setString(v, "browser.tracemode", &cfg.Browser.TraceMode)

	setString(v, "target.baseurl", &cfg.Target.BaseURL)
	setString(v, "target.apibaseurl", &cfg.Target.APIBaseURL)

	setString(v, "artifacts.screenshotsdir", &cfg.Artifacts.ScreenshotsDir)
	setString(v, "artifacts.reportsdir", &cfg.Artifacts.ReportsDir)
	setBool(v, "artifacts.screenshotonsuccess", &cfg.Artifacts.ScreenshotOnSuccess)
	setString(v, "artifacts.metricsfile", &cfg.Artifacts.MetricsFile)
	setString(v, "artifacts.tracefile", &cfg.Artifacts.TraceFile)

	setString(v, "run.tags", &cfg.Run.Tags)
	setString(v, "run.format", &cfg.Run.Format)
	if v.IsSet("run.workers") {
		cfg.Run.Workers = v.GetInt("run.workers")
	}
	setMillis(v, "run.scenariotimeoutms", &cfg.Run.ScenarioTimeout)
	setDuration(v, "run.scenariotimeout", &cfg.Run.ScenarioTimeout)
	setMillis(v, "run.teardowntimeoutms", &cfg.Run.TeardownTimeout)
	if v.IsSet("run.live") {
		cfg.Run.Live = v.GetBool("run.live")
	}

	setString(v, "logging.level", &cfg.Logging.Level)

	return cfg, nil
}

func setString(v *viper.Viper, key string, dst *string) {
	if v.IsSet(key) {
		*dst = v.GetString(key)
	}
}

func setBool(v *viper.Viper, key string, dst **bool) {
	if v.IsSet(key) {
		*dst = Bool(v.GetBool(key))
	}
}

func setDuration(v *viper.Viper, key string, dst *time.Duration) {
	if v.IsSet(key) {
		*dst = v.GetDuration(key)
	}
}

func setMillis(v *viper.Viper, key string, dst *time.Duration) {
	if v.IsSet(key) {
		*dst = time.Duration(v.GetInt64(key)) * time.Millisecond
	}
}
