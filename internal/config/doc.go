// Package config provides configuration management for mke2e.
//
// This package implements a layered configuration system. Configuration is
// loaded from multiple sources and merged in a specific order, with later
// sources overriding earlier ones.
//
// # Configuration Layers
//
//  1. Default Configuration (embedded in binary)
//     - Targets the application's local dev server with a headless Chromium
//
//  2. User Configuration (~/.config/mke2e/config.yaml)
//     - Personal preferences such as a headed browser while debugging
//
//  3. Project Configuration (./.mke2e/config.yaml)
//     - Settings shared by a team via version control
//
//  4. An explicit file passed with --config
//
//  5. Environment variables (BROWSER_NAME, HEADLESS, BASE_URL, API_BASE_URL,
//     ACTION_TIMEOUT, SCREENSHOT_ON_SUCCESS, SCREENSHOTS_DIR, REPORTS_DIR,
//     TRACE_MODE, TEST_TIMEOUT, TEARDOWN_TIMEOUT, WORKERS, LOG_LEVEL, CI)
//
//  6. Command line flags that were explicitly changed
//
// Timeouts given through the environment are in milliseconds; in YAML and on
// the command line they are Go durations ("10s", "1m30s").
//
// # Configuration Structure
//
//	browser:
//	  engine: chromium          # chromium, firefox, webkit
//	  headless: true
//	  actionTimeout: 10s
//	  traceMode: retain-on-failure
//	target:
//	  baseURL: http://localhost:5173
//	  apiBaseURL: http://localhost:8080/api
//	  requestsPerSecond: 20
//	  httpRetries: 2
//	artifacts:
//	  screenshotsDir: reports/screenshots
//	  reportsDir: reports
//	  screenshotOnSuccess: false
//	run:
//	  paths: [features]
//	  tags: "~@wip"
//	  workers: 4
//	cleanup:
//	  sweepPrefixes: [e2e-, Checking-]
//
// The merged result is validated before it is returned; every problem is
// reported at once, wrapped in ErrInvalidConfig.
package config
