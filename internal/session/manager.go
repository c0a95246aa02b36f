package session

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"mke2e/internal/artifact"
	"mke2e/internal/config"
	"mke2e/pkg/logging"
)

// Options selects how a session is launched.
type Options struct {
	Engine        string
	Headless      bool
	BaseURL       string
	ActionTimeout time.Duration
	TraceMode     string
	TraceDir      string
	// ScenarioName names trace files.
	ScenarioName string
}

func (o Options) tracePath() string {
	return artifact.TracePath(o.TraceDir, o.ScenarioName, time.Now())
}

// OptionsFromConfig builds session options from the harness configuration.
func OptionsFromConfig(cfg config.Config, scenarioName string) Options {
	return Options{
		Engine:        cfg.Browser.Engine,
		Headless:      cfg.Browser.IsHeadless(),
		BaseURL:       cfg.Target.BaseURL,
		ActionTimeout: cfg.Browser.ActionTimeout,
		TraceMode:     cfg.Browser.TraceMode,
		TraceDir:      filepath.Join(cfg.Artifacts.ReportsDir, "traces"),
		ScenarioName:  scenarioName,
	}
}

// Launcher starts a browser of the named engine.
type Launcher interface {
	Launch(engine string, opts playwright.BrowserTypeLaunchOptions) (playwright.Browser, error)
}

// Manager opens sessions. It starts the playwright driver on first use and
// shares it between the sessions it opens; sessions themselves are never shared.
type Manager struct {
	logger   *logging.Logger
	launcher Launcher
	driver   *driverLauncher
}

// NewManager returns a Manager backed by the playwright driver.
func NewManager(logger *logging.Logger) *Manager {
	d := &driverLauncher{}
	return &Manager{
		logger:   logger.With("Session"),
		launcher: d,
		driver:   d,
	}
}

// NewManagerWithLauncher returns a Manager that launches browsers through l.
func NewManagerWithLauncher(logger *logging.Logger, l Launcher) *Manager {
	return &Manager{
		logger:   logger.With("Session"),
		launcher: l,
	}
}

// ResolveEngine maps a configured engine name onto a supported engine,
// falling back to chromium.
func ResolveEngine(name string) string {
	switch name {
	case config.EngineFirefox, config.EngineWebKit, config.EngineChromium:
		return name
	default:
		return config.EngineChromium
	}
}

// Open launches a browser, creates one context and opens one page. Any
// failure releases what was already acquired and is returned as an
// *InfrastructureError.
func (m *Manager) Open(ctx context.Context, opts Options) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, &InfrastructureError{Op: "open session", Err: err}
	}

	engine := ResolveEngine(opts.Engine)
	if engine != opts.Engine {
		if opts.Engine != "" {
			m.logger.Warn("Unknown browser engine %q, using %s", opts.Engine, engine)
		}
		opts.Engine = engine
	}

	m.logger.Debug("Launching %s (headless=%t)", engine, opts.Headless)
	browser, err := m.launcher.Launch(engine, playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
	})
	if err != nil {
		return nil, &InfrastructureError{Op: "launch " + engine, Err: err}
	}

	s := &Session{
		Browser: browser,
		opts:    opts,
		logger:  m.logger,
	}

	contextOpts := playwright.BrowserNewContextOptions{}
	if opts.BaseURL != "" {
		contextOpts.BaseURL = playwright.String(opts.BaseURL)
	}
	bctx, err := browser.NewContext(contextOpts)
	if err != nil {
		_ = s.Close()
		return nil, &InfrastructureError{Op: "create browser context", Err: err}
	}
	s.Context = bctx
	if opts.ActionTimeout > 0 {
		bctx.SetDefaultTimeout(float64(opts.ActionTimeout.Milliseconds()))
	}

	if opts.TraceMode != "" && opts.TraceMode != config.TraceOff {
		err := bctx.Tracing().Start(playwright.TracingStartOptions{
			Screenshots: playwright.Bool(true),
			Snapshots:   playwright.Bool(true),
		})
		if err != nil {
			m.logger.Warn("Could not start browser tracing: %v", err)
		} else {
			s.tracing = true
		}
	}

	page, err := bctx.NewPage()
	if err != nil {
		_ = s.Close()
		return nil, &InfrastructureError{Op: "open page", Err: err}
	}
	s.Page = page

	browserLog := m.logger.With("Browser")
	page.OnConsole(func(msg playwright.ConsoleMessage) {
		browserLog.Debug("[%s] %s", msg.Type(), msg.Text())
	})

	return s, nil
}

// Shutdown stops the playwright driver if this Manager started one.
func (m *Manager) Shutdown() error {
	if m.driver == nil {
		return nil
	}
	return m.driver.stop()
}

// driverLauncher launches browsers through a lazily started playwright driver.
type driverLauncher struct {
	once     sync.Once
	mu       sync.Mutex
	pw       *playwright.Playwright
	startErr error
}

func (d *driverLauncher) start() (*playwright.Playwright, error) {
	d.once.Do(func() {
		pw, err := playwright.Run()
		d.mu.Lock()
		defer d.mu.Unlock()
		if err != nil {
			d.startErr = fmt.Errorf("starting playwright driver: %w", err)
			return
		}
		d.pw = pw
	})
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.startErr == nil && d.pw == nil {
		return nil, fmt.Errorf("playwright driver already stopped")
	}
	return d.pw, d.startErr
}

func (d *driverLauncher) Launch(engine string, opts playwright.BrowserTypeLaunchOptions) (playwright.Browser, error) {
	pw, err := d.start()
	if err != nil {
		return nil, err
	}
	var bt playwright.BrowserType
	switch engine {
	case config.EngineFirefox:
		bt = pw.Firefox
	case config.EngineWebKit:
		bt = pw.WebKit
	default:
		bt = pw.Chromium
	}
	return bt.Launch(opts)
}

func (d *driverLauncher) stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pw == nil {
		return nil
	}
	err := d.pw.Stop()
	d.pw = nil
	return err
}

// InstallBrowsers downloads the driver and the named engines.
func InstallBrowsers(engines ...string) error {
	return playwright.Install(&playwright.RunOptions{Browsers: engines})
}
