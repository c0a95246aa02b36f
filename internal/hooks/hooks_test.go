package hooks

import (
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"mke2e/internal/adapters/rest"
	"mke2e/internal/config"
	"mke2e/internal/fakeapi"
	"mke2e/internal/ports/portstest"
	"mke2e/internal/reporting"
	"mke2e/internal/session"
	"mke2e/internal/telemetry"
	"mke2e/internal/tracker"
	"mke2e/internal/world"
	"mke2e/pkg/logging"
)

// Browser fakes. They embed the playwright interfaces so only the methods
// the session touches need implementing.
type closeLog struct {
	mu    sync.Mutex
	order []string
}

func (l *closeLog) add(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.order = append(l.order, name)
}

func (l *closeLog) get() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.order...)
}

type fakePage struct {
	playwright.Page
	log   *closeLog
	shots []string
}

func (p *fakePage) Close(...playwright.PageCloseOptions) error {
	p.log.add("page")
	return nil
}

func (p *fakePage) OnConsole(func(playwright.ConsoleMessage)) {}

func (p *fakePage) Evaluate(string, ...interface{}) (interface{}, error) {
	return "FakeAgent/1.0", nil
}

func (p *fakePage) Screenshot(options ...playwright.PageScreenshotOptions) ([]byte, error) {
	data := []byte("\x89PNG")
	if len(options) > 0 && options[0].Path != nil {
		p.shots = append(p.shots, *options[0].Path)
		if err := os.WriteFile(*options[0].Path, data, 0644); err != nil {
			return nil, err
		}
	}
	return data, nil
}

type fakeContext struct {
	playwright.BrowserContext
	log  *closeLog
	page *fakePage
}

func (c *fakeContext) NewPage() (playwright.Page, error) { return c.page, nil }
func (c *fakeContext) SetDefaultTimeout(float64)         {}
func (c *fakeContext) Close(...playwright.BrowserContextCloseOptions) error {
	c.log.add("context")
	return nil
}

type fakeBrowser struct {
	playwright.Browser
	log *closeLog
	ctx *fakeContext
}

func (b *fakeBrowser) NewContext(...playwright.BrowserNewContextOptions) (playwright.BrowserContext, error) {
	return b.ctx, nil
}

func (b *fakeBrowser) Close(...playwright.BrowserCloseOptions) error {
	b.log.add("browser")
	return nil
}

func (b *fakeBrowser) Version() string { return "120.0" }

type fakeLauncher struct {
	browser *fakeBrowser
	err     error
}

func (l *fakeLauncher) Launch(string, playwright.BrowserTypeLaunchOptions) (playwright.Browser, error) {
	if l.err != nil {
		return nil, l.err
	}
	return l.browser, nil
}

func newLauncher() (*fakeLauncher, *closeLog, *fakePage) {
	log := &closeLog{}
	page := &fakePage{log: log}
	return &fakeLauncher{browser: &fakeBrowser{log: log, ctx: &fakeContext{log: log, page: page}}}, log, page
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.GetDefaultConfig()
	cfg.Artifacts.ScreenshotsDir = t.TempDir()
	cfg.Artifacts.ReportsDir = t.TempDir()
	return cfg
}

func newWorld(t *testing.T, cfg config.Config) *world.World {
	t.Helper()
	return world.New("Create a new account successfully", nil, cfg, logging.Discard())
}

// recorder is a hook that logs its own name when called.
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) hook(name string, point Point, err error) Hook {
	return Hook{Name: name, Point: point, Fn: func(context.Context, *world.World, Event) error {
		r.mu.Lock()
		r.calls = append(r.calls, name)
		r.mu.Unlock()
		return err
	}}
}

func (r *recorder) get() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func TestPipeline_BeforeFailureStillRunsAfterScenarioAndClosesSession(t *testing.T) {
	launcher, closed, _ := newLauncher()
	manager := session.NewManagerWithLauncher(logging.Discard(), launcher)
	rec := &recorder{}

	p, err := New(Options{Logger: logging.Discard()},
		OpenSession(manager, nil),
		rec.hook("seed-data", BeforeScenario, errors.New("seed API unreachable")),
		rec.hook("never", BeforeScenario, nil),
		rec.hook("after", AfterScenario, nil),
		CloseSession(),
	)
	require.NoError(t, err)

	w := newWorld(t, testConfig(t))
	err = p.RunBefore(context.Background(), w)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "seed API unreachable")
	assert.True(t, p.Failed())
	assert.True(t, w.Record.StepFailed())

	require.NoError(t, p.RunAfterScenario(context.Background(), w, err))

	assert.Equal(t, []string{"seed-data", "after"}, rec.get())
	assert.True(t, w.Session.Closed())
	assert.Equal(t, []string{"page", "context", "browser"}, closed.get())
	assert.Equal(t, StateIdle, p.State())

	res := w.Record.Finish()
	assert.True(t, res.StepFailed)
	assert.Empty(t, res.Steps, "no steps ran")
}

func TestPipeline_LaunchFailureIsAnInfrastructureError(t *testing.T) {
	launcher, _, _ := newLauncher()
	launcher.err = errors.New("executable doesn't exist")
	manager := session.NewManagerWithLauncher(logging.Discard(), launcher)
	rec := &recorder{}

	p, err := New(Options{Logger: logging.Discard()},
		OpenSession(manager, nil),
		rec.hook("teardown", AfterScenario, nil),
		CloseSession(),
	)
	require.NoError(t, err)

	w := newWorld(t, testConfig(t))
	err = p.RunBefore(context.Background(), w)
	var infra *session.InfrastructureError
	require.ErrorAs(t, err, &infra)
	assert.Nil(t, w.Session)

	assert.NoError(t, p.RunAfterScenario(context.Background(), w, err))
	assert.Equal(t, []string{"teardown"}, rec.get())
}

func TestPipeline_RejectsOutOfOrderCalls(t *testing.T) {
	p, err := New(Options{Logger: logging.Discard()})
	require.NoError(t, err)
	w := newWorld(t, testConfig(t))
	ctx := context.Background()

	assert.ErrorIs(t, p.RunAfterStep(ctx, w, StepEvent{Text: "x"}), ErrInvalidState)
	assert.ErrorIs(t, p.RunAfterScenario(ctx, w, nil), ErrInvalidState)

	require.NoError(t, p.RunBefore(ctx, w))
	assert.ErrorIs(t, p.RunBefore(ctx, w), ErrInvalidState)
	assert.ErrorIs(t, p.Register(Hook{Name: "late", Point: AfterStep, Fn: func(context.Context, *world.World, Event) error { return nil }}), ErrInvalidState)

	require.NoError(t, p.RunAfterStep(ctx, w, StepEvent{Text: "x", Status: reporting.StatusPassed}))
	require.NoError(t, p.RunAfterScenario(ctx, w, nil))
	assert.ErrorIs(t, p.RunAfterScenario(ctx, w, nil), ErrInvalidState, "after-scenario runs once")
}

func TestPipeline_RegisterValidates(t *testing.T) {
	_, err := New(Options{Logger: logging.Discard()}, Hook{Name: "x", Point: "sometime", Fn: func(context.Context, *world.World, Event) error { return nil }})
	assert.ErrorIs(t, err, ErrUnknownPoint)

	_, err = New(Options{Logger: logging.Discard()}, Hook{Name: "x", Point: AfterStep})
	assert.Error(t, err)
}

func TestPipeline_AfterStepErrorsAreIsolated(t *testing.T) {
	rec := &recorder{}
	p, err := New(Options{Logger: logging.Discard()},
		rec.hook("first", AfterStep, errors.New("disk full")),
		Hook{Name: "panics", Point: AfterStep, Fn: func(context.Context, *world.World, Event) error { panic("nil page") }},
		rec.hook("last", AfterStep, nil),
	)
	require.NoError(t, err)
	w := newWorld(t, testConfig(t))
	ctx := context.Background()

	require.NoError(t, p.RunBefore(ctx, w))
	require.NoError(t, p.RunAfterStep(ctx, w, StepEvent{Text: "I submit the form", Err: errors.New("timeout")}))
	require.NoError(t, p.RunAfterScenario(ctx, w, nil))

	assert.Equal(t, []string{"first", "last"}, rec.get())
	res := w.Record.Finish()
	require.Len(t, res.Steps, 1)
	assert.Equal(t, reporting.StatusFailed, res.Steps[0].Status)
	assert.Equal(t, "timeout", res.Error)
}

func TestPipeline_OnlyEscalatedAfterScenarioErrorsAreReturned(t *testing.T) {
	rec := &recorder{}
	p, err := New(Options{Logger: logging.Discard()},
		rec.hook("logged", AfterScenario, errors.New("close failed")),
		rec.hook("escalated", AfterScenario, Escalate(errors.New("listing accounts: 503"))),
		rec.hook("last", AfterScenario, nil),
	)
	require.NoError(t, err)
	w := newWorld(t, testConfig(t))
	ctx := context.Background()

	require.NoError(t, p.RunBefore(ctx, w))
	err = p.RunAfterScenario(ctx, w, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.NotContains(t, err.Error(), "close failed")
	assert.Equal(t, []string{"logged", "escalated", "last"}, rec.get())
	assert.Nil(t, Escalate(nil))
}

func TestScreenshots_OnlyFirstFailureAndSuccessWhenEnabled(t *testing.T) {
	launcher, _, page := newLauncher()
	manager := session.NewManagerWithLauncher(logging.Discard(), launcher)
	at := time.Date(2025, 3, 4, 5, 6, 7, 890e6, time.UTC)
	now := func() time.Time { return at }

	cfg := testConfig(t)
	p, err := New(Options{Logger: logging.Discard()}, OpenSession(manager, nil), CaptureScreenshots(now), CloseSession())
	require.NoError(t, err)
	w := newWorld(t, cfg)
	ctx := context.Background()

	require.NoError(t, p.RunBefore(ctx, w))
	require.NoError(t, p.RunAfterStep(ctx, w, StepEvent{Text: "I open the form", Status: reporting.StatusPassed}))
	require.NoError(t, p.RunAfterStep(ctx, w, StepEvent{Text: "I submit", Status: reporting.StatusFailed, Err: errors.New("boom")}))
	require.NoError(t, p.RunAfterStep(ctx, w, StepEvent{Text: "again", Status: reporting.StatusFailed, Err: errors.New("boom")}))
	require.NoError(t, p.RunAfterScenario(ctx, w, nil))

	require.Len(t, page.shots, 1)
	res := w.Record.Finish()
	require.Len(t, res.Attachments, 1)
	assert.Equal(t, "I submit", res.Attachments[0].Step)
	assert.Equal(t, "image/png", res.Attachments[0].MediaType)
	assert.Contains(t, res.Attachments[0].Path, "failed-step-Create_a_new_account_successfully-2025-03-04T05-06-07-890Z.png")
	_, err = os.Stat(res.Attachments[0].Path)
	assert.NoError(t, err)

	// With screenshots on success, passing steps are captured too.
	launcher, _, page = newLauncher()
	manager = session.NewManagerWithLauncher(logging.Discard(), launcher)
	cfg.Artifacts.ScreenshotOnSuccess = config.Bool(true)
	p, err = New(Options{Logger: logging.Discard()}, OpenSession(manager, nil), CaptureScreenshots(now), CloseSession())
	require.NoError(t, err)
	w = newWorld(t, cfg)
	require.NoError(t, p.RunBefore(ctx, w))
	require.NoError(t, p.RunAfterStep(ctx, w, StepEvent{Text: "I open the form", Status: reporting.StatusPassed}))
	require.NoError(t, p.RunAfterStep(ctx, w, StepEvent{Text: "later", Status: reporting.StatusSkipped}))
	require.NoError(t, p.RunAfterScenario(ctx, w, nil))
	require.Len(t, page.shots, 1)
	assert.True(t, strings.Contains(page.shots[0], "success-step-"))
}

func TestEnvironmentRecorder_WritesOnce(t *testing.T) {
	launcher, _, _ := newLauncher()
	manager := session.NewManagerWithLauncher(logging.Discard(), launcher)
	cfg := testConfig(t)
	collector := reporting.NewSuiteCollector("run", time.Now())
	env := NewEnvironmentRecorder(cfg.Artifacts.ReportsDir, collector)

	for range 2 {
		p, err := New(Options{Logger: logging.Discard()}, OpenSession(manager, nil), env.Hook(), CloseSession())
		require.NoError(t, err)
		w := newWorld(t, cfg)
		require.NoError(t, p.RunBefore(context.Background(), w))
		require.NoError(t, p.RunAfterScenario(context.Background(), w, nil))
	}

	path, err := env.Path()
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"browserVersion": "120.0"`)
	assert.Contains(t, string(data), "FakeAgent/1.0")

	res := collector.Result(time.Now())
	require.NotNil(t, res.Environment)
	assert.Equal(t, "chromium", res.Environment.Browser)
}

func apiPorts(t *testing.T) (*fakeapi.Server, world.PortsFactory) {
	t.Helper()
	backend := fakeapi.New(logging.Discard())
	srv := httptest.NewServer(backend.Handler())
	t.Cleanup(srv.Close)
	client := rest.NewClient(rest.Options{BaseURL: srv.URL + "/api", Logger: logging.Discard()})
	return backend, func(*session.Session) world.Ports {
		return world.Ports{AccountAPI: client.Accounts(), CategoryAPI: client.Categories()}
	}
}

func TestTeardown_CleanupFailureDoesNotFailTheScenario(t *testing.T) {
	backend, factory := apiPorts(t)
	p, err := New(Options{Logger: logging.Discard()}, AttachAPIPorts(factory), Teardown(TeardownOptions{Timeout: 5 * time.Second}))
	require.NoError(t, err)
	w := newWorld(t, testConfig(t))
	ctx := context.Background()
	require.NoError(t, p.RunBefore(ctx, w))

	var ids []string
	for _, name := range []string{"Food-1", "Rent-2", "Travel-3"} {
		id := backend.AddCategory(fakeapi.Category{Name: name, Icon: "Grid", Type: "EXPENSE"})
		require.NoError(t, w.Tracker.Track(tracker.KindCategory, id, name))
		ids = append(ids, id)
	}
	backend.FailDelete(ids[1])
	require.NoError(t, p.RunAfterStep(ctx, w, StepEvent{Text: "I create categories", Status: reporting.StatusPassed}))

	require.NoError(t, p.RunAfterScenario(ctx, w, nil))

	assert.Zero(t, w.Tracker.Len())
	left := backend.Categories()
	require.Len(t, left, 1)
	assert.Equal(t, "Rent-2", left[0].Name)

	res := w.Record.Finish()
	assert.Equal(t, reporting.StatusPassed, res.Status)
	assert.False(t, res.StepFailed)
	assert.True(t, res.CleanupFailed)
	require.Len(t, res.CleanupErrors, 1)
	assert.Contains(t, res.CleanupErrors[0], "Rent-2")
}

func TestTeardown_ResolveFailureIsEscalated(t *testing.T) {
	accounts := &portstest.AccountAPI{}
	accounts.On("List", mock.Anything).Return(nil, errors.New("connection refused"))
	factory := func(*session.Session) world.Ports { return world.Ports{AccountAPI: accounts} }

	exporter := tracetest.NewInMemoryExporter()
	provider := telemetry.NewProvider(sdktrace.WithSyncer(exporter))
	p, err := New(Options{Logger: logging.Discard(), Tracer: provider.Tracer()},
		AttachAPIPorts(factory), Teardown(TeardownOptions{Timeout: time.Second}))
	require.NoError(t, err)
	w := newWorld(t, testConfig(t))
	ctx := context.Background()
	require.NoError(t, p.RunBefore(ctx, w))
	require.NoError(t, w.Tracker.Track(tracker.KindAccount, "", "Checking-abc123"))

	err = p.RunAfterScenario(ctx, w, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.True(t, w.Record.Finish().CleanupFailed)
	accounts.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)

	spans := map[string]bool{}
	for _, s := range exporter.GetSpans() {
		spans[s.Name] = true
	}
	assert.True(t, spans["scenario"])
	assert.True(t, spans["hook teardown"])
	require.NoError(t, provider.Shutdown(ctx))
}

func TestTeardown_NothingTracked(t *testing.T) {
	accounts := &portstest.AccountAPI{}
	factory := func(*session.Session) world.Ports { return world.Ports{AccountAPI: accounts} }
	p, err := New(Options{Logger: logging.Discard()}, AttachAPIPorts(factory), Teardown(TeardownOptions{}))
	require.NoError(t, err)
	w := newWorld(t, testConfig(t))
	require.NoError(t, p.RunBefore(context.Background(), w))
	require.NoError(t, p.RunAfterScenario(context.Background(), w, nil))
	accounts.AssertExpectations(t)
	assert.False(t, w.Record.Finish().CleanupFailed)
}

func TestTeardown_RunsWhenScenarioContextIsCancelled(t *testing.T) {
	backend, factory := apiPorts(t)
	p, err := New(Options{Logger: logging.Discard()}, AttachAPIPorts(factory), Teardown(TeardownOptions{Timeout: 5 * time.Second}))
	require.NoError(t, err)
	w := newWorld(t, testConfig(t))

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, p.RunBefore(ctx, w))
	id := backend.AddAccount(fakeapi.Account{Name: "Cash-1", Type: "Cash", Currency: "USD"})
	require.NoError(t, w.Tracker.Track(tracker.KindAccount, id, "Cash-1"))
	cancel()

	require.NoError(t, p.RunAfterScenario(ctx, w, context.Canceled))
	assert.Empty(t, backend.Accounts())
}
