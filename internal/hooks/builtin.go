package hooks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"mke2e/internal/artifact"
	"mke2e/internal/cleanup"
	"mke2e/internal/ports"
	"mke2e/internal/reporting"
	"mke2e/internal/session"
	"mke2e/internal/tracker"
	"mke2e/internal/world"
)

// OpenSession opens the scenario's browser session and attaches the ports
// built for it. A launch failure is an *session.InfrastructureError and
// fails the scenario.
func OpenSession(m *session.Manager, factory world.PortsFactory) Hook {
	return Hook{
		Name:  "open-session",
		Point: BeforeScenario,
		Fn: func(ctx context.Context, w *world.World, _ Event) error {
			s, err := m.Open(ctx, session.OptionsFromConfig(w.Config, w.ScenarioName))
			if err != nil {
				return err
			}
			w.Attach(s, factory)
			return nil
		},
	}
}

// AttachAPIPorts attaches API-only ports, for scenarios that never touch the
// browser.
func AttachAPIPorts(factory world.PortsFactory) Hook {
	return Hook{
		Name:  "attach-api-ports",
		Point: BeforeScenario,
		Fn: func(_ context.Context, w *world.World, _ Event) error {
			w.Attach(nil, factory)
			return nil
		},
	}
}

// EnvironmentRecorder writes the environment metadata file once per run,
// from the first scenario that opens a session.
type EnvironmentRecorder struct {
	dir       string
	collector *reporting.SuiteCollector

	once sync.Once
	path string
	err  error
}

// NewEnvironmentRecorder writes into dir and hands the environment to
// collector when it is not nil.
func NewEnvironmentRecorder(dir string, collector *reporting.SuiteCollector) *EnvironmentRecorder {
	return &EnvironmentRecorder{dir: dir, collector: collector}
}

// Hook returns the before-scenario hook. It must be registered after
// OpenSession. Write failures are logged, never fatal.
func (r *EnvironmentRecorder) Hook() Hook {
	return Hook{
		Name:  "environment-info",
		Point: BeforeScenario,
		Fn: func(_ context.Context, w *world.World, _ Event) error {
			if w.Session == nil {
				return nil
			}
			r.once.Do(func() {
				env := EnvironmentFromSession(w.Session.EnvironmentInfo())
				if r.collector != nil {
					r.collector.SetEnvironment(env)
				}
				r.path, r.err = reporting.WriteEnvironment(r.dir, env)
				if r.err != nil {
					w.Logger.Warn("Could not write environment info: %v", r.err)
					return
				}
				w.Logger.Debug("Environment info written to %s", r.path)
			})
			return nil
		},
	}
}

// Path returns the metadata file written, if any.
func (r *EnvironmentRecorder) Path() (string, error) {
	return r.path, r.err
}

// EnvironmentFromSession converts session info into the report's shape.
func EnvironmentFromSession(info session.EnvironmentInfo) reporting.Environment {
	return reporting.Environment{
		Browser:        info.Engine,
		BrowserVersion: info.BrowserVersion,
		Headless:       info.Headless,
		BaseURL:        info.BaseURL,
		UserAgent:      info.UserAgent,
		Platform:       runtime.GOOS + "/" + runtime.GOARCH,
		GoVersion:      runtime.Version(),
	}
}

// CaptureScreenshots saves a full-page screenshot for the first failing step
// of a scenario, and for passing steps when screenshots on success are
// enabled. Each file is attached to the scenario's record.
func CaptureScreenshots(now func() time.Time) Hook {
	if now == nil {
		now = time.Now
	}
	return Hook{
		Name:  "screenshot",
		Point: AfterStep,
		Fn: func(_ context.Context, w *world.World, ev Event) error {
			if ev.Step == nil || w.Session == nil {
				return nil
			}
			var prefix string
			switch {
			case ev.Step.Status == reporting.StatusFailed:
				// Later steps are skipped by the runner; only the first failure counts.
				if w.Record.StepFailed() {
					return nil
				}
				prefix = artifact.PrefixFailedStep
			case ev.Step.Status == reporting.StatusPassed && w.Config.Artifacts.CaptureOnSuccess():
				prefix = artifact.PrefixSuccessStep
			default:
				return nil
			}

			dir := w.Config.Artifacts.ScreenshotsDir
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("creating screenshots directory: %w", err)
			}
			path := artifact.ScreenshotPath(dir, prefix, w.ScenarioName, now())
			if _, err := w.Session.Screenshot(path); err != nil {
				return err
			}
			w.Record.Attach(reporting.Attachment{
				Name:      prefix,
				Path:      path,
				MediaType: "image/png",
				Step:      ev.Step.Text,
			})
			w.Logger.Info("Screenshot saved to %s", path)
			return nil
		},
	}
}

// TeardownOptions configures the teardown hook.
type TeardownOptions struct {
	// Timeout bounds the whole teardown. It runs on a fresh context so a
	// cancelled scenario still cleans up.
	Timeout time.Duration
	Cleanup cleanup.Options
}

// Teardown drains the scenario's tracker and deletes every entry through the
// World's API ports. Per-entity failures are recorded as cleanup failures on
// the scenario's record. A resolution failure is recorded too and escalated.
func Teardown(opts TeardownOptions) Hook {
	return Hook{
		Name:  "teardown",
		Point: AfterScenario,
		Fn: func(ctx context.Context, w *world.World, _ Event) error {
			entries := w.Tracker.Drain()
			if len(entries) == 0 {
				return nil
			}

			apis := map[tracker.Kind]ports.EntityAPI{}
			if w.Ports.AccountAPI != nil {
				apis[tracker.KindAccount] = w.Ports.AccountAPI
			}
			if w.Ports.CategoryAPI != nil {
				apis[tracker.KindCategory] = w.Ports.CategoryAPI
			}

			cleanupOpts := opts.Cleanup
			if cleanupOpts.Logger == nil {
				cleanupOpts.Logger = w.Logger
			}
			tctx, cancel := teardownContext(ctx, opts.Timeout)
			defer cancel()

			report := cleanup.New(apis, cleanupOpts).Teardown(tctx, entries)
			w.Logger.Debug("Teardown of %q: %d attempted, %d deleted, %d failed",
				w.ScenarioName, report.Attempted, report.Deleted, len(report.Failed))
			if report.OK() {
				return nil
			}
			w.Record.MarkCleanupFailed(report.Errors()...)
			for _, f := range report.Failed {
				w.Logger.Warn("Cleanup of %s failed: %v", f.Entry, f.Err)
			}
			return Escalate(report.ResolveErr)
		},
	}
}

// teardownContext detaches from the scenario's cancellation but keeps its
// values, such as the trace span.
func teardownContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(context.WithoutCancel(ctx))
	}
	return context.WithTimeout(context.WithoutCancel(ctx), timeout)
}

// CloseSession closes the scenario's browser session. Close errors are
// returned for logging only.
func CloseSession() Hook {
	return Hook{
		Name:  "close-session",
		Point: AfterScenario,
		Fn: func(_ context.Context, w *world.World, _ Event) error {
			if w.Session == nil {
				return nil
			}
			if err := w.Session.Close(); err != nil && !errors.Is(err, session.ErrClosed) {
				return fmt.Errorf("closing session: %w", err)
			}
			return nil
		},
	}
}

// Defaults returns the standard hooks in their required order.
func Defaults(m *session.Manager, factory world.PortsFactory, env *EnvironmentRecorder, teardown TeardownOptions) []Hook {
	hooks := []Hook{OpenSession(m, factory)}
	if env != nil {
		hooks = append(hooks, env.Hook())
	}
	return append(hooks,
		CaptureScreenshots(nil),
		Teardown(teardown),
		CloseSession(),
	)
}
