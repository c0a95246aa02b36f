package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"mke2e/internal/config"
	"mke2e/internal/reporting"
	"mke2e/internal/suite"
	"mke2e/internal/telemetry"
	"mke2e/pkg/logging"
)

// runSuiteTimeout bounds the whole run, including every teardown.
var runSuiteTimeout time.Duration

// runBrowserless skips the browser so only API-level steps can pass.
var runBrowserless bool

// runVerbose prints every step and the run configuration.
var runVerbose bool

var runCmd = &cobra.Command{
	Use:   "run [paths...]",
	Short: "Run the Money Keeper feature files",
	Long: `Runs the Gherkin features against a Money Keeper instance.

Each scenario gets its own browser session and its own resource tracker.
Entities created through the UI or the API are tracked by name and deleted
when the scenario ends, whether it passed or not. A screenshot is attached
to the first failing step of a scenario.

Paths default to run.paths from the configuration ("features").

Example usage:
  mke2e run                                   # Run every feature
  mke2e run features/categories.feature       # Run one feature
  mke2e run --tags '@accounts && ~@slow'      # Filter scenarios by tag
  mke2e run --workers 4 --format none --live  # Parallel run with the live view
  mke2e run --browser firefox --headless=false

Exit codes: 0 when every scenario passed, 1 when any scenario failed,
2 on configuration or usage errors.`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	flags := runCmd.Flags()

	// Browser
	flags.String("browser", config.EngineChromium, "Browser engine: chromium, firefox or webkit (env BROWSER_NAME)")
	flags.Bool("headless", true, "Run the browser without a window (env HEADLESS)")
	flags.Duration("action-timeout", config.DefaultActionTimeout, "Wait budget for each browser action")
	flags.String("trace", config.TraceOff, "Browser tracing: off, on or retain-on-failure (env TRACE_MODE)")

	// Target
	flags.String("base-url", config.DefaultBaseURL, "Money Keeper UI URL (env BASE_URL)")
	flags.String("api-base-url", config.DefaultAPIBaseURL, "Money Keeper API URL (env API_BASE_URL)")

	// Artifacts
	flags.String("reports-dir", config.DefaultReportsDir, "Directory for the JSON report and environment file (env REPORTS_DIR)")
	flags.Bool("screenshot-on-success", false, "Also screenshot passing steps (env SCREENSHOT_ON_SUCCESS)")
	flags.String("metrics-file", "", "Write Prometheus metrics in textfile format to this path")
	flags.String("otel-file", "", "Export OpenTelemetry spans as JSON lines to this path")

	// Selection and execution
	flags.String("tags", "", "Tag expression selecting scenarios")
	flags.String("format", "pretty", "godog formatter for stdout (pretty, progress, cucumber, junit, none)")
	flags.Int("workers", 1, "Scenarios run in parallel (env WORKERS, CI forces 1)")
	flags.Duration("timeout", config.DefaultScenarioTimeout, "Timeout for each scenario (env TEST_TIMEOUT in ms)")
	flags.DurationVar(&runSuiteTimeout, "suite-timeout", 0, "Timeout for the whole run, 0 for none")
	flags.BoolVar(&runBrowserless, "browserless", false, "Do not open a browser; UI steps fail")

	// Output
	flags.Bool("live", false, "Show a live view of running scenarios instead of log lines")
	flags.BoolVarP(&runVerbose, "verbose", "v", false, "Print every step and the run configuration")

	runCmd.MarkFlagsMutuallyExclusive("live", "verbose")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if len(args) > 0 {
		cfg.Run.Paths = args
	}

	// Create context with signal handling
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if runSuiteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, runSuiteTimeout)
		defer cancel()
	}

	var (
		logger    *logging.Logger
		reporters []reporting.Reporter
		output    io.Writer = cmd.OutOrStdout()
		live      *reporting.LiveReporter
	)
	if cfg.Run.Live {
		var logs <-chan logging.LogEntry
		logger, logs = logging.NewChannel(logging.ParseLevel(cfg.Logging.Level), 0)
		defer logger.Close()
		live = reporting.NewLiveReporter(cmd.OutOrStdout(), logs)
		reporters = append(reporters, live)
		// The live view owns the terminal
		output = nil
	} else {
		logger = newLogger(cfg, cmd.ErrOrStderr())
		reporters = append(reporters, reporting.NewConsoleReporter(cmd.OutOrStdout(), runVerbose))
	}

	tracing, err := telemetry.NewFileProvider(cfg.Artifacts.TraceFile)
	if err != nil {
		return &ExitError{Code: ExitCommandError, Message: "failed to set up tracing", Err: err}
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracing.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Flushing spans failed: %v", err)
		}
	}()

	var metrics *reporting.Metrics
	if cfg.Artifacts.MetricsFile != "" {
		metrics = reporting.NewMetrics()
	}

	outcome, err := suite.New(suite.Options{
		Config:      cfg,
		Logger:      logger,
		Reporters:   reporters,
		Metrics:     metrics,
		Tracer:      tracing.Tracer(),
		Output:      output,
		Browserless: runBrowserless,
	}).Run(ctx)
	if live != nil {
		if stopErr := live.Stop(); stopErr != nil {
			logger.Warn("Live view failed: %v", stopErr)
		}
	}
	if err != nil {
		if errors.Is(err, suite.ErrInvalidOptions) {
			return &ExitError{Code: ExitCommandError, Message: "suite could not start", Err: err}
		}
		return &ExitError{Code: ExitFailure, Message: "suite run failed", Err: err}
	}

	if outcome.ReportPath != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Report: %s\n", outcome.ReportPath)
	}
	if ctx.Err() != nil {
		return &ExitError{Code: ExitFailure, Message: "run interrupted", Err: ctx.Err()}
	}
	if !outcome.Passed() {
		return &ExitError{
			Code:    ExitFailure,
			Message: fmt.Sprintf("%d of %d scenarios failed", outcome.Suite.Failed, outcome.Suite.Total),
		}
	}
	return nil
}
