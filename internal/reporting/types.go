package reporting

import (
	"sync"
	"time"
)

// Status is the outcome of a scenario or a step.
type Status string

const (
	StatusRunning   Status = "running"
	StatusPassed    Status = "passed"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
	StatusUndefined Status = "undefined"
	StatusPending   Status = "pending"
)

// RunInfo describes a suite run as it starts.
type RunInfo struct {
	RunID    string    `json:"run_id"`
	Paths    []string  `json:"paths"`
	Tags     string    `json:"tags,omitempty"`
	Engine   string    `json:"browser"`
	Headless bool      `json:"headless"`
	BaseURL  string    `json:"base_url"`
	Workers  int       `json:"workers"`
	Started  time.Time `json:"started_at"`
}

// Environment is the browser environment recorded once per run.
type Environment struct {
	Browser        string `json:"browser"`
	BrowserVersion string `json:"browserVersion"`
	Headless       bool   `json:"headless"`
	BaseURL        string `json:"baseURL"`
	UserAgent      string `json:"userAgent,omitempty"`
	Platform       string `json:"platform"`
	GoVersion      string `json:"goVersion"`
}

// Attachment is a diagnostic file linked to a scenario.
type Attachment struct {
	Name      string `json:"name"`
	Path      string `json:"path"`
	MediaType string `json:"media_type"`
	Step      string `json:"step,omitempty"`
}

// StepResult is the outcome of one step.
type StepResult struct {
	Text     string        `json:"text"`
	Status   Status        `json:"status"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// ScenarioResult is an immutable snapshot of a scenario record.
type ScenarioResult struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	URI           string        `json:"uri,omitempty"`
	Tags          []string      `json:"tags,omitempty"`
	Status        Status        `json:"status"`
	StepFailed    bool          `json:"step_failed"`
	CleanupFailed bool          `json:"cleanup_failed"`
	CleanupErrors []string      `json:"cleanup_errors,omitempty"`
	Error         string        `json:"error,omitempty"`
	Steps         []StepResult  `json:"steps"`
	Attachments   []Attachment  `json:"attachments,omitempty"`
	StartedAt     time.Time     `json:"started_at"`
	FinishedAt    time.Time     `json:"finished_at"`
	Duration      time.Duration `json:"duration"`
}

// Failed reports whether the scenario failed, in its steps or its cleanup.
func (s ScenarioResult) Failed() bool {
	return s.Status == StatusFailed || s.StepFailed || s.CleanupFailed
}

// ScenarioRecord accumulates the outcome of one scenario while it runs. Hooks
// and steps write to it from the scenario goroutine; reporters read snapshots.
type ScenarioRecord struct {
	mu  sync.Mutex
	res ScenarioResult
	now func() time.Time
}

// NewScenarioRecord starts a record for a scenario.
func NewScenarioRecord(id, name, uri string, tags []string) *ScenarioRecord {
	r := &ScenarioRecord{now: time.Now}
	r.res = ScenarioResult{
		ID:        id,
		Name:      name,
		URI:       uri,
		Tags:      append([]string(nil), tags...),
		Status:    StatusRunning,
		Steps:     []StepResult{},
		StartedAt: r.now(),
	}
	return r
}

// Name returns the scenario name.
func (r *ScenarioRecord) Name() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.res.Name
}

// AddStep appends a step outcome. A failed step marks the scenario failed.
func (r *ScenarioRecord) AddStep(step StepResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.res.Steps = append(r.res.Steps, step)
	if step.Status == StatusFailed {
		r.markStepFailed(step.Error)
	}
}

// MarkStepFailed records a scenario failure that did not come from a step,
// such as a before-scenario hook error.
func (r *ScenarioRecord) MarkStepFailed(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	r.markStepFailed(msg)
}

func (r *ScenarioRecord) markStepFailed(msg string) {
	r.res.StepFailed = true
	if r.res.Error == "" {
		r.res.Error = msg
	}
}

// StepFailed reports whether a step or before-hook has already failed.
func (r *ScenarioRecord) StepFailed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.res.StepFailed
}

// MarkCleanupFailed records teardown problems.
func (r *ScenarioRecord) MarkCleanupFailed(errs ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.res.CleanupFailed = true
	r.res.CleanupErrors = append(r.res.CleanupErrors, errs...)
}

// Attach links a diagnostic file to the scenario.
func (r *ScenarioRecord) Attach(a Attachment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.res.Attachments = append(r.res.Attachments, a)
}

// Finish closes the record. The final status is derived from the steps
// unless the scenario already failed.
func (r *ScenarioRecord) Finish() ScenarioResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.res.FinishedAt = r.now()
	r.res.Duration = r.res.FinishedAt.Sub(r.res.StartedAt)
	r.res.Status = r.finalStatus()
	return r.snapshot()
}

func (r *ScenarioRecord) finalStatus() Status {
	if r.res.StepFailed {
		return StatusFailed
	}
	skipped := 0
	for _, s := range r.res.Steps {
		switch s.Status {
		case StatusFailed:
			return StatusFailed
		case StatusUndefined, StatusPending:
			return s.Status
		case StatusSkipped:
			skipped++
		}
	}
	if skipped > 0 && skipped == len(r.res.Steps) {
		return StatusSkipped
	}
	return StatusPassed
}

// Snapshot returns a copy of the current state.
func (r *ScenarioRecord) Snapshot() ScenarioResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot()
}

func (r *ScenarioRecord) snapshot() ScenarioResult {
	out := r.res
	out.Tags = append([]string(nil), r.res.Tags...)
	out.Steps = append([]StepResult{}, r.res.Steps...)
	out.Attachments = append([]Attachment(nil), r.res.Attachments...)
	out.CleanupErrors = append([]string(nil), r.res.CleanupErrors...)
	return out
}

// SuiteResult is the outcome of a whole run. It is the shape of the JSON
// report file.
type SuiteResult struct {
	RunID           string           `json:"run_id"`
	Environment     *Environment     `json:"environment,omitempty"`
	StartedAt       time.Time        `json:"started_at"`
	FinishedAt      time.Time        `json:"finished_at"`
	Duration        time.Duration    `json:"duration"`
	Total           int              `json:"total"`
	Passed          int              `json:"passed"`
	Failed          int              `json:"failed"`
	Skipped         int              `json:"skipped"`
	CleanupFailures int              `json:"cleanup_failures"`
	Scenarios       []ScenarioResult `json:"scenarios"`
}

// Success reports whether no scenario failed.
func (s SuiteResult) Success() bool {
	return s.Failed == 0
}

// SuiteCollector gathers scenario results from concurrent scenarios.
type SuiteCollector struct {
	mu     sync.Mutex
	result SuiteResult
}

// NewSuiteCollector starts collecting for a run.
func NewSuiteCollector(runID string, started time.Time) *SuiteCollector {
	return &SuiteCollector{result: SuiteResult{RunID: runID, StartedAt: started, Scenarios: []ScenarioResult{}}}
}

// SetEnvironment records the browser environment. Only the first call counts.
func (c *SuiteCollector) SetEnvironment(env Environment) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.result.Environment == nil {
		c.result.Environment = &env
	}
}

// Add counts a finished scenario.
func (c *SuiteCollector) Add(s ScenarioResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.result.Scenarios = append(c.result.Scenarios, s)
	c.result.Total++
	switch {
	case s.Failed():
		c.result.Failed++
	case s.Status == StatusPassed:
		c.result.Passed++
	default:
		c.result.Skipped++
	}
	if s.CleanupFailed {
		c.result.CleanupFailures++
	}
}

// Result closes the run and returns its outcome.
func (c *SuiteCollector) Result(finished time.Time) SuiteResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.result
	out.FinishedAt = finished
	out.Duration = finished.Sub(out.StartedAt)
	out.Scenarios = append([]ScenarioResult{}, c.result.Scenarios...)
	return out
}
