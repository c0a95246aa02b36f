// Package rest implements the API ports over the application's HTTP API.
//
// Requests go through a retrying transport and a client-side rate limiter,
// so teardown fan-out cannot flood the backend. Non-2xx answers become
// *StatusError values that unwrap to the ports sentinel errors.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"

	"mke2e/internal/ports"
	"mke2e/pkg/logging"
)

// ErrNotFound is returned, wrapped, when the API answers 404.
var ErrNotFound = ports.ErrNotFound

const (
	defaultTimeout  = 10 * time.Second
	retryWaitMin    = 50 * time.Millisecond
	retryWaitMax    = 500 * time.Millisecond
	maxErrorBodyLen = 512
)

// Options configures a Client.
type Options struct {
	// BaseURL is the API root, e.g. http://localhost:8080/api.
	BaseURL string
	// RequestsPerSecond caps the request rate. Zero means unlimited.
	RequestsPerSecond float64
	// Retries is how many times a failed idempotent request is retried.
	Retries int
	// Timeout bounds one HTTP attempt.
	Timeout time.Duration
	// HTTPClient replaces the underlying client, mainly for tests.
	HTTPClient *http.Client
	Logger     *logging.Logger
}

// Client is the shared HTTP plumbing behind AccountClient and CategoryClient.
type Client struct {
	baseURL string
	http    *retryablehttp.Client
	limiter *rate.Limiter
	logger  *logging.Logger
}

// NewClient creates a Client.
func NewClient(opts Options) *Client {
	logger := opts.Logger.With("REST")

	rc := retryablehttp.NewClient()
	if opts.HTTPClient != nil {
		rc.HTTPClient = opts.HTTPClient
	}
	if rc.HTTPClient.Timeout == 0 {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		rc.HTTPClient.Timeout = timeout
	}
	rc.RetryMax = max(opts.Retries, 0)
	rc.RetryWaitMin = retryWaitMin
	rc.RetryWaitMax = retryWaitMax
	rc.CheckRetry = checkRetry
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.Logger = leveledLogger{logger}

	limit := rate.Inf
	burst := 1
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
		burst = max(int(opts.RequestsPerSecond), 1)
	}

	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		http:    rc,
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
	}
}

// Accounts returns the accounts API adapter.
func (c *Client) Accounts() *AccountClient {
	return &AccountClient{c: c}
}

// Categories returns the categories API adapter.
func (c *Client) Categories() *CategoryClient {
	return &CategoryClient{c: c}
}

type noReplayKey struct{}

// checkRetry keeps the default policy for idempotent requests. A request
// marked no-replay is never retried: once it has reached the wire the
// entity may exist, whether the attempt ended in 5xx, a transport error or
// a timeout.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if noReplay, _ := ctx.Value(noReplayKey{}).(bool); noReplay {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, ctxErr
		}
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

// do sends one request. in is encoded as the JSON body when non-nil; out
// receives the decoded response when non-nil.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	var body any
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding %s %s body: %w", method, path, err)
		}
		body = encoded
	}

	reqCtx := ctx
	if method == http.MethodPost {
		reqCtx = context.WithValue(ctx, noReplayKey{}, true)
	}
	req, err := retryablehttp.NewRequestWithContext(reqCtx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("creating %s %s request: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newStatusError(method, path, resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s %s response: %w", method, path, err)
	}
	return nil
}

// StatusError is a non-2xx answer from the API.
type StatusError struct {
	Method  string
	Path    string
	Code    int
	Message string
}

func newStatusError(method, path string, resp *http.Response) *StatusError {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLen))
	msg := strings.TrimSpace(string(raw))

	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(raw, &payload) == nil {
		switch {
		case payload.Message != "":
			msg = payload.Message
		case payload.Error != "":
			msg = payload.Error
		}
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &StatusError{Method: method, Path: path, Code: resp.StatusCode, Message: msg}
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Code, e.Message)
}

// Unwrap maps the status code onto the ports sentinel errors.
func (e *StatusError) Unwrap() error {
	switch e.Code {
	case http.StatusNotFound:
		return ports.ErrNotFound
	case http.StatusConflict:
		return ports.ErrConflict
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return ports.ErrRejected
	default:
		return nil
	}
}

// flexID decodes an entity ID the API may send as a number or a string.
type flexID string

func (id *flexID) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*id = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a string or a number, got %s", b)
	}
	*id = flexID(n.String())
	return nil
}

// MarshalJSON sends numeric IDs back as numbers.
func (id flexID) MarshalJSON() ([]byte, error) {
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func idPath(collection, id string) string {
	return collection + "/" + url.PathEscape(id)
}

// leveledLogger routes retryablehttp's messages to the REST subsystem.
type leveledLogger struct {
	log *logging.Logger
}

func (l leveledLogger) Error(msg string, keysAndValues ...interface{}) {
	l.log.Warn("%s %v", msg, keysAndValues)
}

func (l leveledLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug("%s %v", msg, keysAndValues)
}

func (l leveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.log.Debug("%s %v", msg, keysAndValues)
}

func (l leveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.log.Warn("%s %v", msg, keysAndValues)
}
