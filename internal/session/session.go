package session

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/playwright-community/playwright-go"

	"mke2e/internal/config"
	"mke2e/pkg/logging"
)

// ErrClosed is returned by operations on a session that has been closed.
var ErrClosed = errors.New("session closed")

// InfrastructureError reports a failure of the browser machinery itself
// rather than of the application under test.
type InfrastructureError struct {
	Op  string
	Err error
}

func (e *InfrastructureError) Error() string {
	return fmt.Sprintf("infrastructure error during %s: %v", e.Op, e.Err)
}

func (e *InfrastructureError) Unwrap() error {
	return e.Err
}

// EnvironmentInfo describes the browser a session runs in.
type EnvironmentInfo struct {
	Engine         string `json:"browser"`
	BrowserVersion string `json:"browserVersion"`
	Headless       bool   `json:"headless"`
	UserAgent      string `json:"userAgent,omitempty"`
	BaseURL        string `json:"baseURL,omitempty"`
}

// Session is one browser, one browsing context and one page, owned by a
// single scenario.
type Session struct {
	Browser playwright.Browser
	Context playwright.BrowserContext
	Page    playwright.Page

	opts   Options
	logger *logging.Logger

	tracing bool
	failed  atomic.Bool

	closeOnce sync.Once
	closed    atomic.Bool
}

// Engine returns the engine the session was launched with.
func (s *Session) Engine() string {
	return s.opts.Engine
}

// Options returns the options the session was opened with.
func (s *Session) Options() Options {
	return s.opts
}

// MarkFailed records that the owning scenario failed, which decides whether a
// retain-on-failure trace is kept.
func (s *Session) MarkFailed() {
	s.failed.Store(true)
}

// Closed reports whether Close has run.
func (s *Session) Closed() bool {
	return s.closed.Load()
}

// Close stops tracing and closes the page, the context and the browser, in
// that order. Every step is attempted even if an earlier one failed. Only the
// first call has any effect; later calls return nil.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		var errs []error
		if s.tracing {
			if terr := s.stopTracing(); terr != nil {
				errs = append(errs, terr)
			}
		}

		steps := []struct {
			name string
			fn   func() error
		}{
			{"page", func() error {
				if s.Page == nil {
					return nil
				}
				return s.Page.Close()
			}},
			{"context", func() error {
				if s.Context == nil {
					return nil
				}
				return s.Context.Close()
			}},
			{"browser", func() error {
				if s.Browser == nil {
					return nil
				}
				return s.Browser.Close()
			}},
		}
		for _, step := range steps {
			if cerr := closeStep(step.name, step.fn); cerr != nil {
				s.logger.Warn("Failed to close %s: %v", step.name, cerr)
				errs = append(errs, cerr)
			}
		}

		s.closed.Store(true)
		err = errors.Join(errs...)
	})
	return err
}

// closeStep runs fn, converting a panic into an error and treating an
// already-closed target as success.
func closeStep(name string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("closing %s: panic: %v", name, r)
		}
	}()
	if cerr := fn(); cerr != nil && !errors.Is(cerr, playwright.ErrTargetClosed) {
		return fmt.Errorf("closing %s: %w", name, cerr)
	}
	return nil
}

func (s *Session) stopTracing() error {
	keep := s.opts.TraceMode == config.TraceOn ||
		(s.opts.TraceMode == config.TraceRetainOnFailure && s.failed.Load())

	tracing := s.Context.Tracing()
	if !keep {
		if err := tracing.Stop(); err != nil {
			return fmt.Errorf("stopping trace: %w", err)
		}
		return nil
	}

	path := s.opts.tracePath()
	if err := tracing.Stop(path); err != nil {
		return fmt.Errorf("saving trace to %s: %w", path, err)
	}
	s.logger.Info("Saved browser trace to %s", path)
	return nil
}

// Screenshot captures the full page to path and returns the PNG bytes.
func (s *Session) Screenshot(path string) ([]byte, error) {
	if s.Closed() || s.Page == nil {
		return nil, ErrClosed
	}
	data, err := s.Page.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(path),
		FullPage: playwright.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("taking screenshot: %w", err)
	}
	return data, nil
}

// EnvironmentInfo reports the engine, its version and the page's user agent.
func (s *Session) EnvironmentInfo() EnvironmentInfo {
	info := EnvironmentInfo{
		Engine:   s.opts.Engine,
		Headless: s.opts.Headless,
		BaseURL:  s.opts.BaseURL,
	}
	if s.Closed() {
		return info
	}
	if s.Browser != nil {
		info.BrowserVersion = s.Browser.Version()
	}
	if s.Page != nil {
		if ua, err := s.Page.Evaluate("() => navigator.userAgent"); err == nil {
			if str, ok := ua.(string); ok {
				info.UserAgent = str
			}
		}
	}
	return info
}
