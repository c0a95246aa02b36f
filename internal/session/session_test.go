package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mke2e/pkg/logging"
)

// closeLog records the order in which fakes are closed.
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

// The fakes embed the playwright interfaces so only the methods the session
// touches need implementing; anything else panics.
type fakePage struct {
	playwright.Page
	log      *closeLog
	closeErr error
	panics   bool
}

func (p *fakePage) Close(options ...playwright.PageCloseOptions) error {
	p.log.add("page")
	if p.panics {
		panic("page already detached")
	}
	return p.closeErr
}

func (p *fakePage) OnConsole(fn func(playwright.ConsoleMessage)) {}

type fakeContext struct {
	playwright.BrowserContext
	log        *closeLog
	page       *fakePage
	newPageErr error
	closeErr   error
	timeout    float64
}

func (c *fakeContext) NewPage() (playwright.Page, error) {
	if c.newPageErr != nil {
		return nil, c.newPageErr
	}
	return c.page, nil
}

func (c *fakeContext) SetDefaultTimeout(timeout float64) {
	c.timeout = timeout
}

func (c *fakeContext) Close(options ...playwright.BrowserContextCloseOptions) error {
	c.log.add("context")
	return c.closeErr
}

type fakeBrowser struct {
	playwright.Browser
	log           *closeLog
	ctx           *fakeContext
	newContextErr error
	closeErr      error
	contextOpts   playwright.BrowserNewContextOptions
}

func (b *fakeBrowser) NewContext(options ...playwright.BrowserNewContextOptions) (playwright.BrowserContext, error) {
	if len(options) > 0 {
		b.contextOpts = options[0]
	}
	if b.newContextErr != nil {
		return nil, b.newContextErr
	}
	return b.ctx, nil
}

func (b *fakeBrowser) Close(options ...playwright.BrowserCloseOptions) error {
	b.log.add("browser")
	return b.closeErr
}

func (b *fakeBrowser) Version() string { return "120.0" }

type fakeLauncher struct {
	browser   *fakeBrowser
	err       error
	engines   []string
	headless  []bool
	callCount int
}

func (l *fakeLauncher) Launch(engine string, opts playwright.BrowserTypeLaunchOptions) (playwright.Browser, error) {
	l.callCount++
	l.engines = append(l.engines, engine)
	if opts.Headless != nil {
		l.headless = append(l.headless, *opts.Headless)
	}
	if l.err != nil {
		return nil, l.err
	}
	return l.browser, nil
}

func newFakes() (*fakeLauncher, *closeLog) {
	log := &closeLog{}
	page := &fakePage{log: log}
	ctx := &fakeContext{log: log, page: page}
	browser := &fakeBrowser{log: log, ctx: ctx}
	return &fakeLauncher{browser: browser}, log
}

func TestOpen_CreatesBrowserContextAndPage(t *testing.T) {
	launcher, _ := newFakes()
	m := NewManagerWithLauncher(logging.Discard(), launcher)

	s, err := m.Open(context.Background(), Options{
		Engine:        "firefox",
		Headless:      false,
		BaseURL:       "http://localhost:5173",
		ActionTimeout: 2500 * time.Millisecond,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"firefox"}, launcher.engines)
	assert.Equal(t, []bool{false}, launcher.headless)
	assert.Same(t, launcher.browser, s.Browser)
	assert.Same(t, launcher.browser.ctx, s.Context)
	assert.Same(t, launcher.browser.ctx.page, s.Page)
	assert.Equal(t, float64(2500), launcher.browser.ctx.timeout)
	require.NotNil(t, launcher.browser.contextOpts.BaseURL)
	assert.Equal(t, "http://localhost:5173", *launcher.browser.contextOpts.BaseURL)
}

func TestOpen_DefaultsToChromium(t *testing.T) {
	for _, engine := range []string{"", "netscape"} {
		launcher, _ := newFakes()
		m := NewManagerWithLauncher(logging.Discard(), launcher)

		s, err := m.Open(context.Background(), Options{Engine: engine})
		require.NoError(t, err)
		assert.Equal(t, "chromium", s.Engine())
		assert.Equal(t, []string{"chromium"}, launcher.engines)
	}
}

func TestOpen_LaunchFailureIsInfrastructureError(t *testing.T) {
	launcher, log := newFakes()
	launcher.err = errors.New("executable doesn't exist")
	m := NewManagerWithLauncher(logging.Discard(), launcher)

	s, err := m.Open(context.Background(), Options{})
	require.Error(t, err)
	assert.Nil(t, s)

	var infra *InfrastructureError
	require.ErrorAs(t, err, &infra)
	assert.Contains(t, infra.Op, "launch")
	assert.Empty(t, log.get(), "nothing was acquired, nothing is closed")
}

func TestOpen_PageFailureReleasesContextAndBrowser(t *testing.T) {
	launcher, log := newFakes()
	launcher.browser.ctx.newPageErr = errors.New("crashed")
	m := NewManagerWithLauncher(logging.Discard(), launcher)

	_, err := m.Open(context.Background(), Options{})
	var infra *InfrastructureError
	require.ErrorAs(t, err, &infra)
	assert.Equal(t, []string{"context", "browser"}, log.get())
}

func TestOpen_ContextFailureReleasesBrowser(t *testing.T) {
	launcher, log := newFakes()
	launcher.browser.newContextErr = errors.New("no context for you")
	m := NewManagerWithLauncher(logging.Discard(), launcher)

	_, err := m.Open(context.Background(), Options{})
	require.Error(t, err)
	assert.Equal(t, []string{"browser"}, log.get())
}

func TestOpen_CancelledContext(t *testing.T) {
	launcher, _ := newFakes()
	m := NewManagerWithLauncher(logging.Discard(), launcher)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := m.Open(ctx, Options{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, launcher.callCount)
}

func TestClose_OrderAndIdempotence(t *testing.T) {
	launcher, log := newFakes()
	m := NewManagerWithLauncher(logging.Discard(), launcher)
	s, err := m.Open(context.Background(), Options{})
	require.NoError(t, err)

	require.NoError(t, s.Close())
	assert.True(t, s.Closed())
	assert.Equal(t, []string{"page", "context", "browser"}, log.get())

	assert.NoError(t, s.Close(), "second close never fails")
	assert.Equal(t, []string{"page", "context", "browser"}, log.get(), "resources are closed once")
}

func TestClose_ContinuesPastFailures(t *testing.T) {
	launcher, log := newFakes()
	launcher.browser.ctx.page.closeErr = errors.New("page gone")
	launcher.browser.ctx.closeErr = errors.New("context gone")
	m := NewManagerWithLauncher(logging.Discard(), launcher)
	s, err := m.Open(context.Background(), Options{})
	require.NoError(t, err)

	err = s.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "page gone")
	assert.Contains(t, err.Error(), "context gone")
	assert.Equal(t, []string{"page", "context", "browser"}, log.get())
}

func TestClose_PanicInCloseIsContained(t *testing.T) {
	launcher, log := newFakes()
	launcher.browser.ctx.page.panics = true
	m := NewManagerWithLauncher(logging.Discard(), launcher)
	s, err := m.Open(context.Background(), Options{})
	require.NoError(t, err)

	assert.NotPanics(t, func() { _ = s.Close() })
	assert.Equal(t, []string{"page", "context", "browser"}, log.get())
}

func TestClose_AlreadyClosedTargetIsNotAnError(t *testing.T) {
	launcher, _ := newFakes()
	launcher.browser.ctx.page.closeErr = playwright.ErrTargetClosed
	m := NewManagerWithLauncher(logging.Discard(), launcher)
	s, err := m.Open(context.Background(), Options{})
	require.NoError(t, err)

	assert.NoError(t, s.Close())
}

func TestClose_ConcurrentCallsCloseOnce(t *testing.T) {
	launcher, log := newFakes()
	m := NewManagerWithLauncher(logging.Discard(), launcher)
	s, err := m.Open(context.Background(), Options{})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Close()
		}()
	}
	wg.Wait()
	assert.Len(t, log.get(), 3)
}

func TestScreenshot_AfterCloseFails(t *testing.T) {
	launcher, _ := newFakes()
	m := NewManagerWithLauncher(logging.Discard(), launcher)
	s, err := m.Open(context.Background(), Options{})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = s.Screenshot("x.png")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestEnvironmentInfo_AfterClose(t *testing.T) {
	launcher, _ := newFakes()
	m := NewManagerWithLauncher(logging.Discard(), launcher)
	s, err := m.Open(context.Background(), Options{Engine: "webkit", Headless: true})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	info := s.EnvironmentInfo()
	assert.Equal(t, "webkit", info.Engine)
	assert.True(t, info.Headless)
	assert.Empty(t, info.BrowserVersion)
}
