package reporting

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "mke2e"

// Metrics counts scenarios, steps and teardown deletions on a private
// registry and exports them in the node-exporter textfile format.
type Metrics struct {
	registry *prometheus.Registry

	scenarios        *prometheus.CounterVec
	steps            *prometheus.CounterVec
	cleanupDeletions *prometheus.CounterVec
	scenarioDuration prometheus.Histogram
	suiteFailed      prometheus.Gauge
}

// NewMetrics creates the collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		scenarios: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "scenarios_total",
			Help:      "Finished scenarios by status.",
		}, []string{"status"}),
		steps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "steps_total",
			Help:      "Finished steps by status.",
		}, []string{"status"}),
		cleanupDeletions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "cleanup_deletions_total",
			Help:      "Teardown deletion attempts by entity kind and outcome.",
		}, []string{"kind", "outcome"}),
		scenarioDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "scenario_duration_seconds",
			Help:      "Wall time of a scenario including teardown.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		suiteFailed: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "suite_failed",
			Help:      "1 when the last suite run had a failing scenario.",
		}),
	}
}

// Registry exposes the registry, for tests and ad-hoc gathering.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveDeletion counts one teardown deletion attempt.
func (m *Metrics) ObserveDeletion(kind string, err error) {
	outcome := "deleted"
	if err != nil {
		outcome = "failed"
	}
	m.cleanupDeletions.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) ReportStart(RunInfo)                {}
func (m *Metrics) ReportScenarioStart(ScenarioResult) {}

func (m *Metrics) ReportStepResult(_ ScenarioResult, step StepResult) {
	m.steps.WithLabelValues(string(step.Status)).Inc()
}

func (m *Metrics) ReportScenarioResult(scenario ScenarioResult) {
	status := scenario.Status
	if scenario.Failed() {
		status = StatusFailed
	}
	m.scenarios.WithLabelValues(string(status)).Inc()
	m.scenarioDuration.Observe(scenario.Duration.Seconds())
}

func (m *Metrics) ReportSuiteResult(suite SuiteResult) {
	if suite.Success() {
		m.suiteFailed.Set(0)
	} else {
		m.suiteFailed.Set(1)
	}
}

// WriteTextfile writes every metric to path.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
