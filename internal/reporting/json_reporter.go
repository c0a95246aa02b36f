package reporting

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"mke2e/internal/artifact"
	"mke2e/pkg/logging"
)

// EnvironmentFile is the name of the environment metadata written per run.
const EnvironmentFile = "environment-info.metadata.json"

// JSONReporter writes the suite result to mke2e-report-<timestamp>.json in
// its directory when the suite finishes.
type JSONReporter struct {
	dir    string
	logger *logging.Logger
	now    func() time.Time

	mu   sync.Mutex
	path string
	err  error
}

// NewJSONReporter creates a JSON reporter writing into dir.
func NewJSONReporter(dir string, logger *logging.Logger) *JSONReporter {
	return &JSONReporter{dir: dir, logger: logger.With("Report"), now: time.Now}
}

func (j *JSONReporter) ReportStart(RunInfo)                         {}
func (j *JSONReporter) ReportScenarioStart(ScenarioResult)          {}
func (j *JSONReporter) ReportStepResult(ScenarioResult, StepResult) {}
func (j *JSONReporter) ReportScenarioResult(ScenarioResult)         {}

// ReportSuiteResult writes the report file.
func (j *JSONReporter) ReportSuiteResult(suite SuiteResult) {
	path := artifact.ReportPath(j.dir, j.now())
	err := writeJSON(path, suite)

	j.mu.Lock()
	j.path, j.err = path, err
	j.mu.Unlock()

	if err != nil {
		j.logger.Error(err, "Failed to save suite report")
		return
	}
	j.logger.Info("Suite report saved to %s", path)
}

// Path returns the file written by ReportSuiteResult and its error.
func (j *JSONReporter) Path() (string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.path, j.err
}

// WriteEnvironment writes the environment metadata file into dir and
// returns its path.
func WriteEnvironment(dir string, env Environment) (string, error) {
	path := filepath.Join(dir, EnvironmentFile)
	if err := writeJSON(path, env); err != nil {
		return "", err
	}
	return path, nil
}

// ReadSuiteResult loads a report file written by JSONReporter.
func ReadSuiteResult(path string) (SuiteResult, error) {
	var suite SuiteResult
	data, err := os.ReadFile(path)
	if err != nil {
		return suite, fmt.Errorf("failed to read report: %w", err)
	}
	if err := json.Unmarshal(data, &suite); err != nil {
		return suite, fmt.Errorf("failed to parse report %s: %w", path, err)
	}
	return suite, nil
}

// LatestReport returns the newest report file in dir.
func LatestReport(dir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "mke2e-report-*.json"))
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("no report found in %s", dir)
	}
	// Timestamped names sort chronologically.
	latest := matches[0]
	for _, m := range matches[1:] {
		if m > latest {
			latest = m
		}
	}
	return latest, nil
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
