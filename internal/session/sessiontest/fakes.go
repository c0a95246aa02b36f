// Package sessiontest provides a browser-free session.Launcher for tests of
// code that opens sessions.
package sessiontest

import (
	"os"
	"sync"

	"github.com/playwright-community/playwright-go"
)

// Launcher launches fake browsers. Every launch gets a fresh browser,
// context and page. Screenshots are written as a tiny PNG stub and recorded.
type Launcher struct {
	// Err, when set, fails every launch.
	Err error

	mu          sync.Mutex
	launches    int
	closed      []string
	screenshots []string
}

// Launch implements session.Launcher.
func (l *Launcher) Launch(string, playwright.BrowserTypeLaunchOptions) (playwright.Browser, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Err != nil {
		return nil, l.Err
	}
	l.launches++
	page := &page{l: l}
	return &browser{l: l, ctx: &browserContext{l: l, page: page}}, nil
}

// Launches returns how many browsers were launched.
func (l *Launcher) Launches() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.launches
}

// Closed returns the close calls in order, as "page", "context" or "browser".
func (l *Launcher) Closed() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.closed...)
}

// Screenshots returns the paths of every screenshot taken.
func (l *Launcher) Screenshots() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.screenshots...)
}

func (l *Launcher) record(dst *[]string, v string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	*dst = append(*dst, v)
}

type page struct {
	playwright.Page
	l *Launcher
}

func (p *page) Close(...playwright.PageCloseOptions) error {
	p.l.record(&p.l.closed, "page")
	return nil
}

func (p *page) OnConsole(func(playwright.ConsoleMessage)) {}

func (p *page) Evaluate(string, ...interface{}) (interface{}, error) {
	return "FakeAgent/1.0", nil
}

func (p *page) Screenshot(options ...playwright.PageScreenshotOptions) ([]byte, error) {
	data := []byte("\x89PNG")
	if len(options) > 0 && options[0].Path != nil {
		if err := os.WriteFile(*options[0].Path, data, 0644); err != nil {
			return nil, err
		}
		p.l.record(&p.l.screenshots, *options[0].Path)
	}
	return data, nil
}

type browserContext struct {
	playwright.BrowserContext
	l    *Launcher
	page *page
}

func (c *browserContext) NewPage() (playwright.Page, error) { return c.page, nil }
func (c *browserContext) SetDefaultTimeout(float64)         {}

func (c *browserContext) Close(...playwright.BrowserContextCloseOptions) error {
	c.l.record(&c.l.closed, "context")
	return nil
}

type browser struct {
	playwright.Browser
	l   *Launcher
	ctx *browserContext
}

func (b *browser) NewContext(...playwright.BrowserNewContextOptions) (playwright.BrowserContext, error) {
	return b.ctx, nil
}

func (b *browser) Close(...playwright.BrowserCloseOptions) error {
	b.l.record(&b.l.closed, "browser")
	return nil
}

func (b *browser) Version() string { return "120.0" }
