package reporting

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"mke2e/pkg/logging"
)

const (
	liveLogLines      = 8
	liveFinishedLines = 200
)

type scenarioStartedMsg struct{ scenario ScenarioResult }

type stepDoneMsg struct {
	scenario ScenarioResult
	step     StepResult
}

type scenarioDoneMsg struct{ scenario ScenarioResult }

type suiteDoneMsg struct{ suite SuiteResult }

type logMsg struct{ entry logging.LogEntry }

type runningScenario struct {
	name     string
	lastStep string
	steps    int
}

// liveModel is the bubbletea model behind LiveReporter.
type liveModel struct {
	spinner  spinner.Model
	styles   styles
	width    int
	running  map[string]*runningScenario
	finished []string
	logs     []string
	passed   int
	failed   int
	summary  string
}

func newLiveModel(r *lipgloss.Renderer) liveModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	st := newStyles(r)
	s.Style = st.title
	return liveModel{
		spinner: s,
		styles:  st,
		width:   100,
		running: map[string]*runningScenario{},
	}
}

func (m liveModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m liveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case scenarioStartedMsg:
		m.running[msg.scenario.ID] = &runningScenario{name: msg.scenario.Name}
	case stepDoneMsg:
		if rs, ok := m.running[msg.scenario.ID]; ok {
			rs.lastStep = msg.step.Text
			rs.steps++
		}
	case scenarioDoneMsg:
		delete(m.running, msg.scenario.ID)
		if msg.scenario.Failed() {
			m.failed++
		} else if msg.scenario.Status == StatusPassed {
			m.passed++
		}
		style, symbol := m.styles.status(msg.scenario.Status)
		line := style.Render(symbol) + " " + fitColumn(msg.scenario.Name, m.nameWidth())
		if msg.scenario.CleanupFailed {
			line += " " + m.styles.warning.Render("cleanup failed")
		}
		m.finished = appendBounded(m.finished, line, liveFinishedLines)
	case logMsg:
		line := fmt.Sprintf("%-5s %s %s", msg.entry.Level, msg.entry.Subsystem, msg.entry.Message)
		if msg.entry.Err != nil {
			line += ": " + msg.entry.Err.Error()
		}
		m.logs = appendBounded(m.logs, m.styles.muted.Render(fitColumn(line, m.width-2)), liveLogLines)
	case suiteDoneMsg:
		m.summary = fmt.Sprintf("%d passed, %d failed, %d total", msg.suite.Passed, msg.suite.Failed, msg.suite.Total)
		return m, tea.Quit
	}
	return m, nil
}

func (m liveModel) nameWidth() int {
	return max(m.width-24, 20)
}

func (m liveModel) View() string {
	var b strings.Builder
	b.WriteString(m.styles.title.Render("Money Keeper end-to-end suite"))
	b.WriteString(m.styles.muted.Render(fmt.Sprintf("  %d passed, %d failed\n", m.passed, m.failed)))

	for _, line := range m.finished {
		b.WriteString(line + "\n")
	}

	ids := make([]string, 0, len(m.running))
	for id := range m.running {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return m.running[ids[i]].name < m.running[ids[j]].name })
	for _, id := range ids {
		rs := m.running[id]
		b.WriteString(m.spinner.View() + " " + fitColumn(rs.name, m.nameWidth()))
		if rs.lastStep != "" {
			b.WriteString(m.styles.muted.Render(fmt.Sprintf(" step %d: %s", rs.steps, rs.lastStep)))
		}
		b.WriteString("\n")
	}

	if len(m.logs) > 0 {
		b.WriteString("\n")
		for _, line := range m.logs {
			b.WriteString(line + "\n")
		}
	}
	if m.summary != "" {
		b.WriteString("\n" + m.summary + "\n")
	}
	return b.String()
}

func appendBounded(lines []string, line string, limit int) []string {
	lines = append(lines, line)
	if len(lines) > limit {
		lines = lines[len(lines)-limit:]
	}
	return lines
}

// LiveReporter renders running scenarios with a spinner and tails the
// harness log while the suite runs. It owns the terminal between Start and
// Stop, so the logger should be a channel logger whose entries are passed
// to NewLiveReporter.
type LiveReporter struct {
	program *tea.Program
	logs    <-chan logging.LogEntry

	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
	err       error
}

// NewLiveReporter creates a live reporter drawing to out. logs may be nil.
func NewLiveReporter(out io.Writer, logs <-chan logging.LogEntry) *LiveReporter {
	model := newLiveModel(lipgloss.NewRenderer(out))
	return &LiveReporter{
		program: tea.NewProgram(model, tea.WithOutput(out), tea.WithInput(nil), tea.WithoutSignalHandler()),
		logs:    logs,
		done:    make(chan struct{}),
	}
}

// Start runs the program in the background.
func (l *LiveReporter) Start() {
	l.startOnce.Do(func() {
		go func() {
			defer close(l.done)
			_, l.err = l.program.Run()
		}()
		if l.logs != nil {
			go func() {
				for entry := range l.logs {
					l.program.Send(logMsg{entry: entry})
				}
			}()
		}
	})
}

// Stop ends the program and waits for it to restore the terminal.
func (l *LiveReporter) Stop() error {
	l.Start()
	l.stopOnce.Do(func() {
		l.program.Quit()
		<-l.done
	})
	return l.err
}

func (l *LiveReporter) ReportStart(RunInfo) {
	l.Start()
}

func (l *LiveReporter) send(msg tea.Msg) {
	l.Start()
	l.program.Send(msg)
}

func (l *LiveReporter) ReportScenarioStart(scenario ScenarioResult) {
	l.send(scenarioStartedMsg{scenario: scenario})
}

func (l *LiveReporter) ReportStepResult(scenario ScenarioResult, step StepResult) {
	l.send(stepDoneMsg{scenario: scenario, step: step})
}

func (l *LiveReporter) ReportScenarioResult(scenario ScenarioResult) {
	l.send(scenarioDoneMsg{scenario: scenario})
}

// ReportSuiteResult shows the totals and waits for the program to exit.
func (l *LiveReporter) ReportSuiteResult(suite SuiteResult) {
	l.send(suiteDoneMsg{suite: suite})
	<-l.done
}
