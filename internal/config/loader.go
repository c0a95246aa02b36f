package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// For mocking in tests
var osUserHomeDir = os.UserHomeDir
var osGetwd = os.Getwd

const (
	userConfigDir    = ".config/mke2e"
	projectConfigDir = ".mke2e"
	configFileName   = "config.yaml"
)

// LoadOptions selects the optional layers on top of the config files.
type LoadOptions struct {
	// ConfigFile is an explicit config file applied after the project file.
	ConfigFile string
	// Flags, when set, overrides any setting whose flag was changed on the command line.
	Flags *pflag.FlagSet
}

// LoadConfig loads the mke2e configuration by layering default, user, and project settings.
func LoadConfig() (Config, error) {
	return Load(LoadOptions{})
}

// Load layers defaults, the user file, the project file, an explicit file,
// the environment and command line flags, in that order, and validates the result.
func Load(opts LoadOptions) (Config, error) {
	// 1. Start with the default configuration
	config := GetDefaultConfig()

	// 2. User-specific configuration
	userConfigPath, err := getUserConfigPath()
	if err != nil {
		// User config is optional
		fmt.Fprintf(os.Stderr, "Warning: Could not determine user config path: %v\n", err)
	} else if config, err = overlayFile(config, userConfigPath, false); err != nil {
		return Config{}, fmt.Errorf("error loading user config from %s: %w", userConfigPath, err)
	}

	// 3. Project-specific configuration
	projectConfigPath, err := getProjectConfigPath()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not determine project config path: %v\n", err)
	} else if config, err = overlayFile(config, projectConfigPath, false); err != nil {
		return Config{}, fmt.Errorf("error loading project config from %s: %w", projectConfigPath, err)
	}

	// 4. Explicit --config file must exist
	if opts.ConfigFile != "" {
		if config, err = overlayFile(config, opts.ConfigFile, true); err != nil {
			return Config{}, fmt.Errorf("error loading config from %s: %w", opts.ConfigFile, err)
		}
	}

	// 5. Environment and flags
	config, err = applyOverrides(config, opts.Flags)
	if err != nil {
		return Config{}, err
	}

	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

func overlayFile(base Config, path string, required bool) (Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if required {
			return base, err
		}
		return base, nil
	}
	overlay, err := loadConfigFromFile(path)
	if err != nil {
		return base, err
	}
	return mergeConfigs(base, overlay), nil
}

var getUserConfigPath = func() (string, error) {
	homeDir, err := osUserHomeDir() // Use mockable variable
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, userConfigDir, configFileName), nil
}

var getProjectConfigPath = func() (string, error) {
	wd, err := osGetwd() // Use mockable variable
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, projectConfigDir, configFileName), nil
}

// loadConfigFromFile loads a Config from a YAML file. Unknown keys are rejected.
func loadConfigFromFile(filePath string) (Config, error) {
	var config Config
	f, err := os.Open(filePath)
	if err != nil {
		return Config{}, err
	}
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	decoder.KnownFields(true)
	if err := decoder.Decode(&config); err != nil {
		return Config{}, err
	}
	return config, nil
}

// mergeConfigs merges 'overlay' config into 'base' config.
func mergeConfigs(base, overlay Config) Config {
	merged := base

	// Browser
	if overlay.Browser.Engine != "" {
		merged.Browser.Engine = overlay.Browser.Engine
	}
	if overlay.Browser.Headless != nil {
		merged.Browser.Headless = overlay.Browser.Headless
	}
	if overlay.Browser.ActionTimeout != 0 {
		merged.Browser.ActionTimeout = overlay.Browser.ActionTimeout
	}
	if overlay.Browser.TraceMode != "" {
		merged.Browser.TraceMode = overlay.Browser.TraceMode
	}

	// Target
	if overlay.Target.BaseURL != "" {
		merged.Target.BaseURL = overlay.Target.BaseURL
	}
	if overlay.Target.APIBaseURL != "" {
		merged.Target.APIBaseURL = overlay.Target.APIBaseURL
	}
	if overlay.Target.RequestsPerSecond != 0 {
		merged.Target.RequestsPerSecond = overlay.Target.RequestsPerSecond
	}
	if overlay.Target.HTTPRetries != 0 {
		merged.Target.HTTPRetries = overlay.Target.HTTPRetries
	}

	// Artifacts
	if overlay.Artifacts.ScreenshotsDir != "" {
		merged.Artifacts.ScreenshotsDir = overlay.Artifacts.ScreenshotsDir
	}
	if overlay.Artifacts.ReportsDir != "" {
		merged.Artifacts.ReportsDir = overlay.Artifacts.ReportsDir
	}
	if overlay.Artifacts.ScreenshotOnSuccess != nil {
		merged.Artifacts.ScreenshotOnSuccess = overlay.Artifacts.ScreenshotOnSuccess
	}
	if overlay.Artifacts.MetricsFile != "" {
		merged.Artifacts.MetricsFile = overlay.Artifacts.MetricsFile
	}
	if overlay.Artifacts.TraceFile != "" {
		merged.Artifacts.TraceFile = overlay.Artifacts.TraceFile
	}

	// Run
	if len(overlay.Run.Paths) > 0 {
		merged.Run.Paths = overlay.Run.Paths
	}
	if overlay.Run.Tags != "" {
		merged.Run.Tags = overlay.Run.Tags
	}
	if overlay.Run.Format != "" {
		merged.Run.Format = overlay.Run.Format
	}
	if overlay.Run.Workers != 0 {
		merged.Run.Workers = overlay.Run.Workers
	}
	if overlay.Run.ScenarioTimeout != 0 {
		merged.Run.ScenarioTimeout = overlay.Run.ScenarioTimeout
	}
	if overlay.Run.TeardownTimeout != 0 {
		merged.Run.TeardownTimeout = overlay.Run.TeardownTimeout
	}
	if overlay.Run.Strict != nil {
		merged.Run.Strict = overlay.Run.Strict
	}
	if overlay.Run.Live {
		merged.Run.Live = true
	}

	// Cleanup prefixes accumulate across layers without duplicates
	seen := make(map[string]bool, len(merged.Cleanup.SweepPrefixes))
	prefixes := append([]string(nil), merged.Cleanup.SweepPrefixes...)
	for _, p := range prefixes {
		seen[p] = true
	}
	for _, p := range overlay.Cleanup.SweepPrefixes {
		if !seen[p] {
			prefixes = append(prefixes, p)
			seen[p] = true
		}
	}
	merged.Cleanup.SweepPrefixes = prefixes

	if overlay.Logging.Level != "" {
		merged.Logging.Level = overlay.Logging.Level
	}

	return merged
}

// GetUserConfigDir returns the user configuration directory path
func GetUserConfigDir() (string, error) {
	homeDir, err := osUserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, userConfigDir), nil
}
