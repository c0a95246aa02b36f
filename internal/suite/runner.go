// Package suite runs the Money Keeper features through godog.
//
// The Runner bridges godog's scenario lifecycle onto the hook pipeline: each
// scenario gets its own World and Pipeline, godog's before-scenario,
// after-step and after-scenario callbacks drive the pipeline, and the
// finished scenario records are collected into one SuiteResult that every
// configured reporter receives.
package suite

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/cucumber/godog"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"mke2e/internal/cleanup"
	"mke2e/internal/config"
	"mke2e/internal/hooks"
	"mke2e/internal/reporting"
	"mke2e/internal/session"
	"mke2e/internal/steps"
	"mke2e/internal/world"
	"mke2e/pkg/logging"
)

// godog's exit statuses.
const (
	statusPassed = 0
	statusFailed = 1
)

// ErrInvalidOptions is returned when godog rejects the suite options, for
// example an unknown formatter or unreadable feature paths.
var ErrInvalidOptions = errors.New("invalid suite options")

// Options configures a Runner.
type Options struct {
	Config config.Config
	Logger *logging.Logger

	// Reporters receive run progress in addition to the JSON report, which
	// is always written to the reports directory.
	Reporters []reporting.Reporter
	// Metrics, when set, counts the run and is written to the configured
	// metrics file.
	Metrics *reporting.Metrics
	Tracer  trace.Tracer

	// Output receives godog's formatter output. Nil discards it.
	Output io.Writer

	// Manager opens the browser sessions. Nil uses the playwright driver.
	Manager *session.Manager
	// Ports builds the adapters for a scenario. Nil wires the playwright page
	// objects and the configured API.
	Ports world.PortsFactory
	// Browserless skips opening a browser: scenarios only get API ports.
	Browserless bool

	// Features replaces the configured paths with in-memory features.
	Features []godog.Feature
}

// Outcome is the result of one run.
type Outcome struct {
	Suite reporting.SuiteResult
	// Status is godog's exit status.
	Status int
	// ReportPath is the JSON report written, empty if writing failed.
	ReportPath string
}

// Passed reports whether every scenario passed.
func (o Outcome) Passed() bool {
	return o.Status == statusPassed && o.Suite.Success()
}

// Runner executes the suite.
type Runner struct {
	opts   Options
	logger *logging.Logger
}

// New creates a Runner.
func New(opts Options) *Runner {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.Output == nil {
		opts.Output = io.Discard
	}
	return &Runner{opts: opts, logger: opts.Logger.With("Suite")}
}

// scenarioState is what one scenario carries through godog's callbacks.
type scenarioState struct {
	world    *world.World
	pipeline *hooks.Pipeline
	cancel   context.CancelFunc

	mu          sync.Mutex
	stepStarted time.Time
	finished    bool
}

type stateKey struct{}

func stateFrom(ctx context.Context) (*scenarioState, bool) {
	st, ok := ctx.Value(stateKey{}).(*scenarioState)
	return st, ok
}

// Run executes the suite and blocks until every scenario and its teardown
// finished. Scenario failures are reported in the Outcome, not as an error.
func (r *Runner) Run(ctx context.Context) (Outcome, error) {
	cfg := r.opts.Config
	runID := uuid.NewString()
	started := time.Now()

	manager := r.opts.Manager
	ownManager := false
	if manager == nil && !r.opts.Browserless {
		manager = session.NewManager(r.opts.Logger)
		ownManager = true
	}
	factory := r.opts.Ports
	if factory == nil {
		factory = world.DefaultPorts(cfg, world.NewAPIClient(cfg, r.opts.Logger), r.opts.Logger)
	}

	collector := reporting.NewSuiteCollector(runID, started)
	jsonReporter := reporting.NewJSONReporter(cfg.Artifacts.ReportsDir, r.opts.Logger)
	reporters := append([]reporting.Reporter{}, r.opts.Reporters...)
	reporters = append(reporters, jsonReporter)
	if r.opts.Metrics != nil {
		reporters = append(reporters, r.opts.Metrics)
	}
	reporter := reporting.NewMultiReporter(reporters...)

	hookList := r.hooks(manager, factory, collector)

	reporter.ReportStart(reporting.RunInfo{
		RunID:    runID,
		Paths:    r.paths(),
		Tags:     cfg.Run.Tags,
		Engine:   session.ResolveEngine(cfg.Browser.Engine),
		Headless: cfg.Browser.IsHeadless(),
		BaseURL:  cfg.Target.BaseURL,
		Workers:  cfg.Run.Workers,
		Started:  started,
	})

	suite := godog.TestSuite{
		Name: "mke2e",
		ScenarioInitializer: func(sc *godog.ScenarioContext) {
			r.initScenario(sc, hookList, collector, reporter)
		},
		Options: r.godogOptions(ctx),
	}
	status := suite.Run()

	result := collector.Result(time.Now())
	reporter.ReportSuiteResult(result)

	if r.opts.Metrics != nil && cfg.Artifacts.MetricsFile != "" {
		if err := r.opts.Metrics.WriteTextfile(cfg.Artifacts.MetricsFile); err != nil {
			r.logger.Warn("%v", err)
		}
	}
	if ownManager {
		if err := manager.Shutdown(); err != nil {
			r.logger.Warn("Stopping the playwright driver failed: %v", err)
		}
	}

	reportPath, _ := jsonReporter.Path()
	out := Outcome{Suite: result, Status: status, ReportPath: reportPath}
	if status != statusPassed && status != statusFailed {
		return out, fmt.Errorf("%w: godog exited with status %d", ErrInvalidOptions, status)
	}
	r.logger.Info("Run %s finished: %d passed, %d failed, %d skipped", runID, result.Passed, result.Failed, result.Skipped)
	return out, nil
}

func (r *Runner) hooks(manager *session.Manager, factory world.PortsFactory, collector *reporting.SuiteCollector) []hooks.Hook {
	cfg := r.opts.Config
	teardown := hooks.TeardownOptions{
		Timeout: cfg.Run.TeardownTimeout,
		Cleanup: cleanup.Options{
			Concurrency: cfg.Run.Workers * 4,
			Tracer:      r.opts.Tracer,
			Logger:      r.opts.Logger,
		},
	}
	if r.opts.Metrics != nil {
		teardown.Cleanup.Observe = r.opts.Metrics.ObserveDeletion
	}
	if r.opts.Browserless {
		return []hooks.Hook{
			hooks.AttachAPIPorts(factory),
			hooks.Teardown(teardown),
		}
	}
	env := hooks.NewEnvironmentRecorder(cfg.Artifacts.ReportsDir, collector)
	return hooks.Defaults(manager, factory, env, teardown)
}

func (r *Runner) paths() []string {
	if len(r.opts.Features) > 0 {
		names := make([]string, 0, len(r.opts.Features))
		for _, f := range r.opts.Features {
			names = append(names, f.Name)
		}
		return names
	}
	return r.opts.Config.Run.Paths
}

func (r *Runner) godogOptions(ctx context.Context) *godog.Options {
	cfg := r.opts.Config
	format, output := cfg.Run.Format, r.opts.Output
	if format == "" || format == "none" {
		format, output = "progress", io.Discard
	}
	opts := &godog.Options{
		Format:         format,
		Tags:           cfg.Run.Tags,
		Concurrency:    max(cfg.Run.Workers, 1),
		Strict:         cfg.Run.IsStrict(),
		Output:         output,
		NoColors:       output == io.Discard,
		DefaultContext: ctx,
	}
	if len(r.opts.Features) > 0 {
		opts.FeatureContents = r.opts.Features
	} else {
		opts.Paths = cfg.Run.Paths
	}
	return opts
}

// initScenario wires one scenario. godog calls it for every scenario.
func (r *Runner) initScenario(sc *godog.ScenarioContext, hookList []hooks.Hook, collector *reporting.SuiteCollector, reporter reporting.Reporter) {
	cfg := r.opts.Config

	sc.Before(func(ctx context.Context, s *godog.Scenario) (context.Context, error) {
		record := reporting.NewScenarioRecord(s.Id, s.Name, s.Uri, tagNames(s))
		w := world.New(s.Name, record, cfg, r.opts.Logger.With("Scenario"))
		p, err := hooks.New(hooks.Options{Logger: r.opts.Logger, Tracer: r.opts.Tracer}, hookList...)
		if err != nil {
			return ctx, err
		}

		st := &scenarioState{world: w, pipeline: p, cancel: func() {}}
		if cfg.Run.ScenarioTimeout > 0 {
			ctx, st.cancel = context.WithTimeout(ctx, cfg.Run.ScenarioTimeout)
		}
		ctx = context.WithValue(ctx, stateKey{}, st)
		ctx = world.NewContext(ctx, w)

		reporter.ReportScenarioStart(record.Snapshot())
		if err := p.RunBefore(ctx, w); err != nil {
			// The scenario's steps never run; finish it here so its session
			// is released however godog carries on.
			r.finish(ctx, st, err, collector, reporter)
			return ctx, err
		}
		return ctx, nil
	})

	sc.StepContext().Before(func(ctx context.Context, _ *godog.Step) (context.Context, error) {
		if st, ok := stateFrom(ctx); ok {
			st.mu.Lock()
			st.stepStarted = time.Now()
			st.mu.Unlock()
		}
		return ctx, nil
	})

	sc.StepContext().After(func(ctx context.Context, step *godog.Step, status godog.StepResultStatus, err error) (context.Context, error) {
		st, ok := stateFrom(ctx)
		if !ok {
			return ctx, nil
		}
		st.mu.Lock()
		var took time.Duration
		if !st.stepStarted.IsZero() {
			took = time.Since(st.stepStarted)
		}
		st.stepStarted = time.Time{}
		st.mu.Unlock()

		if err != nil {
			st.world.LastError = err
		}
		ev := hooks.StepEvent{Text: step.Text, Status: stepStatus(status, err), Err: err, Duration: took}
		if perr := st.pipeline.RunAfterStep(ctx, st.world, ev); perr != nil {
			r.logger.Warn("After-step hooks of %q: %v", st.world.ScenarioName, perr)
		}
		reporter.ReportStepResult(st.world.Record.Snapshot(), reporting.StepResult{
			Text:     ev.Text,
			Status:   ev.Status,
			Error:    errString(err),
			Duration: took,
		})
		return ctx, nil
	})

	sc.After(func(ctx context.Context, _ *godog.Scenario, scenarioErr error) (context.Context, error) {
		st, ok := stateFrom(ctx)
		if !ok {
			return ctx, nil
		}
		return ctx, r.finish(ctx, st, scenarioErr, collector, reporter)
	})

	steps.Register(sc)
}

// finish runs the after-scenario hooks and hands the finished record to the
// collector and reporters. Only the first call per scenario does anything.
func (r *Runner) finish(ctx context.Context, st *scenarioState, scenarioErr error, collector *reporting.SuiteCollector, reporter reporting.Reporter) error {
	st.mu.Lock()
	if st.finished {
		st.mu.Unlock()
		return nil
	}
	st.finished = true
	st.mu.Unlock()
	defer st.cancel()

	var hookErr error
	if st.pipeline.State() == hooks.StateScenario {
		hookErr = st.pipeline.RunAfterScenario(ctx, st.world, scenarioErr)
	}
	if r.failsScenario(scenarioErr) && !st.world.Record.StepFailed() {
		st.world.Record.MarkStepFailed(scenarioErr)
	}

	result := st.world.Record.Finish()
	collector.Add(result)
	reporter.ReportScenarioResult(result)
	return hookErr
}

// failsScenario reports whether the error godog hands the after-scenario
// callback counts as a failure.
func (r *Runner) failsScenario(err error) bool {
	switch {
	case err == nil, errors.Is(err, godog.ErrSkip):
		return false
	case errors.Is(err, godog.ErrUndefined), errors.Is(err, godog.ErrPending):
		return r.opts.Config.Run.IsStrict()
	}
	return true
}

func tagNames(s *godog.Scenario) []string {
	names := make([]string, 0, len(s.Tags))
	for _, t := range s.Tags {
		names = append(names, strings.TrimPrefix(t.Name, "@"))
	}
	return names
}

// stepStatus maps godog's step status onto the report's.
func stepStatus(status godog.StepResultStatus, err error) reporting.Status {
	switch status {
	case godog.StepPassed:
		return reporting.StatusPassed
	case godog.StepFailed:
		return reporting.StatusFailed
	case godog.StepSkipped:
		return reporting.StatusSkipped
	case godog.StepUndefined:
		return reporting.StatusUndefined
	case godog.StepPending:
		return reporting.StatusPending
	}
	if err != nil {
		return reporting.StatusFailed
	}
	return reporting.StatusSkipped
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
