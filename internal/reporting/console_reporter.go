package reporting

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

const scenarioColumnWidth = 56

// ConsoleReporter prints progress as plain lines. Verbose mode adds a line
// per step and the run configuration.
type ConsoleReporter struct {
	mu      sync.Mutex
	out     io.Writer
	verbose bool
	styles  styles
}

// NewConsoleReporter creates a console reporter writing to out.
func NewConsoleReporter(out io.Writer, verbose bool) *ConsoleReporter {
	return &ConsoleReporter{
		out:     out,
		verbose: verbose,
		styles:  newStyles(lipgloss.NewRenderer(out)),
	}
}

func (c *ConsoleReporter) printf(format string, args ...interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

// ReportStart prints the run header.
func (c *ConsoleReporter) ReportStart(info RunInfo) {
	c.printf("%s\n", c.styles.title.Render("Money Keeper end-to-end suite"))
	c.printf("%s %s (%s)\n", c.styles.muted.Render("Target:"), info.BaseURL, info.Engine)
	if c.verbose {
		c.printf("%s %s\n", c.styles.muted.Render("Run:"), info.RunID)
		c.printf("%s %s\n", c.styles.muted.Render("Paths:"), strings.Join(info.Paths, ", "))
		if info.Tags != "" {
			c.printf("%s %s\n", c.styles.muted.Render("Tags:"), info.Tags)
		}
		c.printf("%s %d, headless: %t\n", c.styles.muted.Render("Workers:"), info.Workers, info.Headless)
	}
	c.printf("\n")
}

// ReportScenarioStart prints the scenario name in verbose mode.
func (c *ConsoleReporter) ReportScenarioStart(scenario ScenarioResult) {
	if !c.verbose {
		return
	}
	c.printf("%s %s\n", c.styles.title.Render("▶"), scenario.Name)
}

// ReportStepResult prints the step outcome in verbose mode.
func (c *ConsoleReporter) ReportStepResult(_ ScenarioResult, step StepResult) {
	if !c.verbose {
		return
	}
	style, symbol := c.styles.status(step.Status)
	c.printf("   %s %s %s\n", style.Render(symbol), step.Text, c.styles.muted.Render(roundDuration(step.Duration)))
	if step.Error != "" {
		c.printf("     %s\n", c.styles.failure.Render(step.Error))
	}
}

// ReportScenarioResult prints one line per scenario.
func (c *ConsoleReporter) ReportScenarioResult(scenario ScenarioResult) {
	style, symbol := c.styles.status(scenario.Status)
	line := fmt.Sprintf("%s %s %s", style.Render(symbol), fitColumn(scenario.Name, scenarioColumnWidth), c.styles.muted.Render(roundDuration(scenario.Duration)))
	if scenario.CleanupFailed {
		line += " " + c.styles.warning.Render("cleanup failed")
	}
	c.printf("%s\n", line)

	if scenario.Error != "" && (scenario.StepFailed || c.verbose) {
		c.printf("    %s\n", c.styles.failure.Render(scenario.Error))
	}
	for _, e := range scenario.CleanupErrors {
		c.printf("    %s\n", c.styles.warning.Render(e))
	}
	for _, a := range scenario.Attachments {
		c.printf("    %s %s\n", c.styles.muted.Render("attachment:"), a.Path)
	}
}

// ReportSuiteResult prints the totals box.
func (c *ConsoleReporter) ReportSuiteResult(suite SuiteResult) {
	var b strings.Builder
	fmt.Fprintf(&b, "Scenarios: %d total, ", suite.Total)
	b.WriteString(c.styles.success.Render(fmt.Sprintf("%d passed", suite.Passed)))
	if suite.Failed > 0 {
		b.WriteString(", " + c.styles.failure.Render(fmt.Sprintf("%d failed", suite.Failed)))
	}
	if suite.Skipped > 0 {
		b.WriteString(", " + c.styles.muted.Render(fmt.Sprintf("%d skipped", suite.Skipped)))
	}
	if suite.CleanupFailures > 0 {
		b.WriteString("\n" + c.styles.warning.Render(fmt.Sprintf("Cleanup failed in %d scenario(s)", suite.CleanupFailures)))
	}
	fmt.Fprintf(&b, "\nDuration: %s", roundDuration(suite.Duration))

	c.printf("\n%s\n", c.styles.box.Render(b.String()))
}

func roundDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return "0s"
	case d < time.Second:
		return d.Round(time.Millisecond).String()
	default:
		return d.Round(10 * time.Millisecond).String()
	}
}
