package config

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Validate checks that the merged configuration is usable.
func (c Config) Validate() error {
	var problems []string

	switch c.Browser.Engine {
	case EngineChromium, EngineFirefox, EngineWebKit:
	default:
		problems = append(problems, fmt.Sprintf("browser.engine %q must be one of chromium, firefox, webkit", c.Browser.Engine))
	}

	switch c.Browser.TraceMode {
	case TraceOff, TraceOn, TraceRetainOnFailure:
	default:
		problems = append(problems, fmt.Sprintf("browser.traceMode %q must be one of off, on, retain-on-failure", c.Browser.TraceMode))
	}

	if c.Browser.ActionTimeout <= 0 {
		problems = append(problems, "browser.actionTimeout must be positive")
	}

	for name, raw := range map[string]string{
		"target.baseURL":    c.Target.BaseURL,
		"target.apiBaseURL": c.Target.APIBaseURL,
	} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			problems = append(problems, fmt.Sprintf("%s %q is not an absolute URL", name, raw))
		}
	}

	if c.Target.RequestsPerSecond < 0 {
		problems = append(problems, "target.requestsPerSecond must not be negative")
	}
	if c.Target.HTTPRetries < 0 {
		problems = append(problems, "target.httpRetries must not be negative")
	}
	if c.Run.Workers < 1 {
		problems = append(problems, "run.workers must be at least 1")
	}
	if c.Run.ScenarioTimeout <= 0 {
		problems = append(problems, "run.scenarioTimeout must be positive")
	}
	if c.Run.TeardownTimeout <= 0 {
		problems = append(problems, "run.teardownTimeout must be positive")
	}
	if len(c.Run.Paths) == 0 {
		problems = append(problems, "run.paths must name at least one feature path")
	}

	if len(problems) == 0 {
		return nil
	}
	// Map iteration above is unordered; keep messages stable.
	sort.Strings(problems)
	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
}
