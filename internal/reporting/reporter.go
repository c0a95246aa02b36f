// Package reporting turns scenario and suite outcomes into console output, a
// live terminal view, a JSON report file and prometheus metrics.
//
// Every output implements Reporter. The suite runner calls one Reporter,
// usually a MultiReporter fanning out to the configured outputs. Reporter
// methods may be called from concurrently running scenarios.
package reporting

import "sync"

// Reporter receives run progress.
type Reporter interface {
	// ReportStart is called once before the first scenario.
	ReportStart(info RunInfo)
	// ReportScenarioStart is called when a scenario begins.
	ReportScenarioStart(scenario ScenarioResult)
	// ReportStepResult is called when a step of the named scenario completes.
	ReportStepResult(scenario ScenarioResult, step StepResult)
	// ReportScenarioResult is called after a scenario and its teardown finish.
	ReportScenarioResult(scenario ScenarioResult)
	// ReportSuiteResult is called once after the last scenario.
	ReportSuiteResult(suite SuiteResult)
}

// MultiReporter fans every call out to its reporters in order.
type MultiReporter struct {
	mu        sync.Mutex
	reporters []Reporter
}

// NewMultiReporter returns a reporter calling each of reporters. Nil entries
// are skipped.
func NewMultiReporter(reporters ...Reporter) *MultiReporter {
	m := &MultiReporter{}
	for _, r := range reporters {
		if r != nil {
			m.reporters = append(m.reporters, r)
		}
	}
	return m
}

func (m *MultiReporter) each(fn func(Reporter)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.reporters {
		fn(r)
	}
}

func (m *MultiReporter) ReportStart(info RunInfo) {
	m.each(func(r Reporter) { r.ReportStart(info) })
}

func (m *MultiReporter) ReportScenarioStart(scenario ScenarioResult) {
	m.each(func(r Reporter) { r.ReportScenarioStart(scenario) })
}

func (m *MultiReporter) ReportStepResult(scenario ScenarioResult, step StepResult) {
	m.each(func(r Reporter) { r.ReportStepResult(scenario, step) })
}

func (m *MultiReporter) ReportScenarioResult(scenario ScenarioResult) {
	m.each(func(r Reporter) { r.ReportScenarioResult(scenario) })
}

func (m *MultiReporter) ReportSuiteResult(suite SuiteResult) {
	m.each(func(r Reporter) { r.ReportSuiteResult(suite) })
}
