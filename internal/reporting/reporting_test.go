package reporting

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mke2e/pkg/logging"
)

func TestScenarioRecord_Status(t *testing.T) {
	tests := []struct {
		name  string
		steps []Status
		want  Status
	}{
		{"all passed", []Status{StatusPassed, StatusPassed}, StatusPassed},
		{"failed then skipped", []Status{StatusPassed, StatusFailed, StatusSkipped}, StatusFailed},
		{"undefined", []Status{StatusPassed, StatusUndefined}, StatusUndefined},
		{"all skipped", []Status{StatusSkipped, StatusSkipped}, StatusSkipped},
		{"no steps", nil, StatusPassed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewScenarioRecord("id", "Create account", "features/accounts.feature", nil)
			for _, s := range tt.steps {
				r.AddStep(StepResult{Text: "step", Status: s})
			}
			assert.Equal(t, tt.want, r.Finish().Status)
		})
	}
}

func TestScenarioRecord_StepAndCleanupFailuresAreDistinct(t *testing.T) {
	r := NewScenarioRecord("id", "Delete account", "", []string{"@accounts"})
	r.MarkCleanupFailed("account \"Cash\" (id=3): 500 boom")

	res := r.Finish()
	assert.Equal(t, StatusPassed, res.Status)
	assert.False(t, res.StepFailed)
	assert.True(t, res.CleanupFailed)
	assert.True(t, res.Failed())

	r = NewScenarioRecord("id2", "Broken", "", nil)
	r.MarkStepFailed(errors.New("browser launch failed"))
	r.AddStep(StepResult{Text: "later", Status: StatusFailed, Error: "second"})
	res = r.Finish()
	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, "browser launch failed", res.Error, "the first failure wins")
}

func TestScenarioRecord_SnapshotIsACopy(t *testing.T) {
	r := NewScenarioRecord("id", "s", "", []string{"@a"})
	r.Attach(Attachment{Name: "shot", Path: "/tmp/x.png"})
	snap := r.Snapshot()
	snap.Attachments[0].Path = "changed"
	snap.Tags[0] = "changed"

	again := r.Snapshot()
	assert.Equal(t, "/tmp/x.png", again.Attachments[0].Path)
	assert.Equal(t, "@a", again.Tags[0])
}

func TestSuiteCollector(t *testing.T) {
	start := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	c := NewSuiteCollector("run-1", start)
	c.Add(ScenarioResult{Name: "a", Status: StatusPassed})
	c.Add(ScenarioResult{Name: "b", Status: StatusFailed, StepFailed: true})
	c.Add(ScenarioResult{Name: "c", Status: StatusPassed, CleanupFailed: true})
	c.Add(ScenarioResult{Name: "d", Status: StatusSkipped})
	c.SetEnvironment(Environment{Browser: "chromium"})
	c.SetEnvironment(Environment{Browser: "firefox"})

	res := c.Result(start.Add(3 * time.Second))
	assert.Equal(t, 4, res.Total)
	assert.Equal(t, 1, res.Passed)
	assert.Equal(t, 2, res.Failed)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 1, res.CleanupFailures)
	assert.Equal(t, 3*time.Second, res.Duration)
	assert.Equal(t, "chromium", res.Environment.Browser)
	assert.False(t, res.Success())
}

func TestConsoleReporter(t *testing.T) {
	var buf bytes.Buffer
	r := NewConsoleReporter(&buf, true)

	r.ReportStart(RunInfo{RunID: "run-1", BaseURL: "http://localhost:3000", Engine: "chromium", Paths: []string{"features"}, Workers: 2})
	r.ReportStepResult(ScenarioResult{}, StepResult{Text: "I submit the form", Status: StatusFailed, Error: "timeout"})
	r.ReportScenarioResult(ScenarioResult{
		Name:          "Create a new account successfully",
		Status:        StatusFailed,
		StepFailed:    true,
		CleanupFailed: true,
		Error:         "timeout",
		CleanupErrors: []string{"account \"x\": 500"},
		Attachments:   []Attachment{{Path: "screenshots/failed-step-x.png"}},
	})
	r.ReportSuiteResult(SuiteResult{Total: 1, Failed: 1, CleanupFailures: 1})

	out := buf.String()
	assert.Contains(t, out, "http://localhost:3000 (chromium)")
	assert.Contains(t, out, "I submit the form")
	assert.Contains(t, out, "Create a new account successfully")
	assert.Contains(t, out, "cleanup failed")
	assert.Contains(t, out, "screenshots/failed-step-x.png")
	assert.Contains(t, out, "1 failed")
	assert.Contains(t, out, "Cleanup failed in 1 scenario(s)")
}

func TestConsoleReporter_QuietSkipsSteps(t *testing.T) {
	var buf bytes.Buffer
	r := NewConsoleReporter(&buf, false)
	r.ReportScenarioStart(ScenarioResult{Name: "quiet"})
	r.ReportStepResult(ScenarioResult{}, StepResult{Text: "a step", Status: StatusPassed})
	assert.Empty(t, buf.String())
}

func TestFitColumn(t *testing.T) {
	assert.Equal(t, "abc   ", fitColumn("abc", 6))
	assert.Equal(t, "abcd…", fitColumn("abcdefgh", 5))
	assert.Equal(t, "", fitColumn("abc", 0))
	// Wide runes take two cells.
	assert.Equal(t, "日本 ", fitColumn("日本", 5))
}

func TestLiveModel(t *testing.T) {
	m := newLiveModel(lipgloss.NewRenderer(&bytes.Buffer{}))

	var model tea.Model = m
	model, _ = model.Update(tea.WindowSizeMsg{Width: 80})
	model, _ = model.Update(scenarioStartedMsg{scenario: ScenarioResult{ID: "1", Name: "Create account"}})
	model, _ = model.Update(stepDoneMsg{scenario: ScenarioResult{ID: "1"}, step: StepResult{Text: "I open the form"}})
	assert.Contains(t, model.View(), "I open the form")

	model, _ = model.Update(logMsg{entry: logging.LogEntry{Level: logging.LevelWarn, Subsystem: "Cleanup", Message: "leftover"}})
	model, _ = model.Update(scenarioDoneMsg{scenario: ScenarioResult{ID: "1", Name: "Create account", Status: StatusPassed}})
	view := model.View()
	assert.Contains(t, view, "1 passed, 0 failed")
	assert.Contains(t, view, "leftover")
	assert.NotContains(t, view, "I open the form")

	_, cmd := model.Update(suiteDoneMsg{suite: SuiteResult{Total: 1, Passed: 1}})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestJSONReporter_WritesReadableReport(t *testing.T) {
	dir := t.TempDir()
	r := NewJSONReporter(dir, logging.Discard())
	r.now = func() time.Time { return time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC) }

	suite := SuiteResult{RunID: "run-1", Total: 1, Passed: 1, Scenarios: []ScenarioResult{{Name: "a", Status: StatusPassed, Steps: []StepResult{}}}}
	r.ReportSuiteResult(suite)

	path, err := r.Path()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "mke2e-report-20250601-103000.json"), path)

	latest, err := LatestReport(dir)
	require.NoError(t, err)
	assert.Equal(t, path, latest)

	got, err := ReadSuiteResult(path)
	require.NoError(t, err)
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, "a", got.Scenarios[0].Name)
}

func TestLatestReport_Empty(t *testing.T) {
	_, err := LatestReport(t.TempDir())
	assert.Error(t, err)
}

func TestWriteEnvironment(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteEnvironment(dir, Environment{Browser: "webkit", Headless: true, Platform: "linux"})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, EnvironmentFile))
	assert.Contains(t, string(data), `"browser": "webkit"`)
}

func TestMetrics(t *testing.T) {
	m := NewMetrics()
	m.ReportStepResult(ScenarioResult{}, StepResult{Status: StatusPassed})
	m.ReportScenarioResult(ScenarioResult{Status: StatusPassed, Duration: time.Second})
	m.ReportScenarioResult(ScenarioResult{Status: StatusPassed, CleanupFailed: true})
	m.ObserveDeletion("account", nil)
	m.ObserveDeletion("account", errors.New("500"))
	m.ReportSuiteResult(SuiteResult{Failed: 1})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.scenarios.WithLabelValues("passed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.scenarios.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cleanupDeletions.WithLabelValues("account", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.suiteFailed))

	path := filepath.Join(t.TempDir(), "mke2e.prom")
	require.NoError(t, m.WriteTextfile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "mke2e_cleanup_deletions_total")
}

type countingReporter struct{ calls []string }

func (c *countingReporter) ReportStart(RunInfo)                { c.calls = append(c.calls, "start") }
func (c *countingReporter) ReportScenarioStart(ScenarioResult) { c.calls = append(c.calls, "scenario") }
func (c *countingReporter) ReportStepResult(ScenarioResult, StepResult) {
	c.calls = append(c.calls, "step")
}
func (c *countingReporter) ReportScenarioResult(ScenarioResult) { c.calls = append(c.calls, "result") }
func (c *countingReporter) ReportSuiteResult(SuiteResult)       { c.calls = append(c.calls, "suite") }

func TestMultiReporter(t *testing.T) {
	a, b := &countingReporter{}, &countingReporter{}
	m := NewMultiReporter(a, nil, b)
	m.ReportStart(RunInfo{})
	m.ReportScenarioStart(ScenarioResult{})
	m.ReportStepResult(ScenarioResult{}, StepResult{})
	m.ReportScenarioResult(ScenarioResult{})
	m.ReportSuiteResult(SuiteResult{})

	want := []string{"start", "scenario", "step", "result", "suite"}
	assert.Equal(t, want, a.calls)
	assert.Equal(t, want, b.calls)
}
