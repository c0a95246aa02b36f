// Package web implements the UI ports as page objects over a playwright page.
//
// Page objects address elements by data-testid wherever the application
// provides one. They never sleep: every wait is a bounded poll on element
// visibility or the page URL, so a slow application fails with a timeout
// naming what was awaited instead of a flaky assertion.
package web

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"

	"mke2e/internal/poll"
	"mke2e/pkg/logging"
)

const (
	defaultActionTimeout = 10 * time.Second
	// probeWindow bounds waits for elements that legitimately may never
	// appear, such as an error banner on a successful submit.
	probeWindow = 2 * time.Second
)

// Options configures the page objects.
type Options struct {
	BaseURL       string
	ActionTimeout time.Duration
	Logger        *logging.Logger
}

type basePage struct {
	page    playwright.Page
	baseURL string
	timeout time.Duration
	logger  *logging.Logger
}

func newBasePage(page playwright.Page, opts Options, subsystem string) basePage {
	timeout := opts.ActionTimeout
	if timeout <= 0 {
		timeout = defaultActionTimeout
	}
	return basePage{
		page:    page,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		timeout: timeout,
		logger:  opts.Logger.With(subsystem),
	}
}

func (b *basePage) probeTimeout() time.Duration {
	return min(b.timeout, probeWindow)
}

// gotoPath navigates to path under the base URL and waits until the page
// reports it.
func (b *basePage) gotoPath(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	target := b.baseURL + path
	if _, err := b.page.Goto(target, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	}); err != nil {
		return fmt.Errorf("navigating to %s: %w", target, err)
	}
	return b.waitForPath(ctx, path)
}

// waitForPath waits until the current URL's path contains path.
func (b *basePage) waitForPath(ctx context.Context, path string) error {
	return poll.Until(ctx, "navigation to "+path, poll.DefaultInterval, b.timeout, func(context.Context) (bool, error) {
		return urlHasPath(b.page.URL(), path), nil
	})
}

// waitVisible waits until loc is visible.
func (b *basePage) waitVisible(ctx context.Context, loc playwright.Locator, what string) error {
	return b.waitVisibleWithin(ctx, loc, what, b.timeout)
}

func (b *basePage) waitVisibleWithin(ctx context.Context, loc playwright.Locator, what string, timeout time.Duration) error {
	return poll.Eventually(ctx, what+" to be visible", poll.DefaultInterval, timeout, func(context.Context) (bool, error) {
		return loc.IsVisible()
	})
}

// waitHidden waits until loc is hidden or detached.
func (b *basePage) waitHidden(ctx context.Context, loc playwright.Locator, what string) error {
	return poll.Eventually(ctx, what+" to be hidden", poll.DefaultInterval, b.timeout, func(context.Context) (bool, error) {
		visible, err := loc.IsVisible()
		return !visible, err
	})
}

// appears reports whether loc becomes visible within the probe window. Not
// appearing is a normal outcome, not an error.
func (b *basePage) appears(ctx context.Context, loc playwright.Locator, what string) (bool, error) {
	err := b.waitVisibleWithin(ctx, loc, what, b.probeTimeout())
	switch {
	case err == nil:
		return true, nil
	case isPollTimeout(err):
		return false, nil
	default:
		return false, err
	}
}

func isPollTimeout(err error) bool {
	return errors.Is(err, poll.ErrTimeout)
}

func (b *basePage) click(ctx context.Context, loc playwright.Locator, what string) error {
	if err := b.waitVisible(ctx, loc, what); err != nil {
		return err
	}
	if err := loc.Click(); err != nil {
		return fmt.Errorf("clicking %s: %w", what, err)
	}
	return nil
}

func (b *basePage) fill(ctx context.Context, loc playwright.Locator, what, value string) error {
	if err := b.waitVisible(ctx, loc, what); err != nil {
		return err
	}
	if err := loc.Fill(value); err != nil {
		return fmt.Errorf("filling %s: %w", what, err)
	}
	return nil
}

// urlHasPath reports whether raw's path contains path. Unparseable URLs
// fall back to a substring check.
func urlHasPath(raw, path string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return strings.Contains(raw, path)
	}
	return strings.Contains(u.Path, path)
}

// textSelector builds a playwright text selector matching value exactly.
func textSelector(value string) string {
	return `text="` + escapeSelector(value) + `"`
}

// hasTextSelector builds a selector for tag elements containing value.
func hasTextSelector(tag, value string) string {
	return tag + `:has-text("` + escapeSelector(value) + `")`
}

func escapeSelector(value string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(value)
}
