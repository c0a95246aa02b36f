// Package poll waits for conditions with a bounded deadline instead of fixed sleeps.
package poll

import (
	"context"
	"errors"
	"fmt"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"
)

// ErrTimeout is wrapped when a condition is not met before the deadline.
var ErrTimeout = errors.New("condition not met before deadline")

// DefaultInterval is used when Until is given a non-positive interval.
const DefaultInterval = 100 * time.Millisecond

// Condition reports whether the awaited state has been reached. A non-nil
// error aborts polling immediately.
type Condition func(ctx context.Context) (bool, error)

// Until checks cond immediately and then every interval until it returns
// true, returns an error, or timeout elapses. On expiry the returned error
// wraps ErrTimeout and names what was awaited.
func Until(ctx context.Context, what string, interval, timeout time.Duration, cond Condition) error {
	if interval <= 0 {
		interval = DefaultInterval
	}
	var lastErr error
	err := wait.PollUntilContextTimeout(ctx, interval, timeout, true, func(ctx context.Context) (bool, error) {
		done, err := cond(ctx)
		if err != nil {
			lastErr = err
			return false, err
		}
		return done, nil
	})
	switch {
	case err == nil:
		return nil
	case lastErr != nil:
		return fmt.Errorf("waiting for %s: %w", what, lastErr)
	case ctx.Err() != nil:
		return fmt.Errorf("waiting for %s: %w", what, ctx.Err())
	default:
		return fmt.Errorf("waiting for %s after %s: %w", what, timeout, ErrTimeout)
	}
}

// Eventually is Until with a condition that treats errors as "not yet".
// It suits UI probes where a transient lookup failure is expected while the
// page settles; the last probe error is reported on timeout.
func Eventually(ctx context.Context, what string, interval, timeout time.Duration, probe Condition) error {
	var lastErr error
	err := Until(ctx, what, interval, timeout, func(ctx context.Context) (bool, error) {
		ok, err := probe(ctx)
		if err != nil {
			lastErr = err
			return false, nil
		}
		return ok, nil
	})
	if err != nil && lastErr != nil && errors.Is(err, ErrTimeout) {
		return fmt.Errorf("%w (last error: %v)", err, lastErr)
	}
	return err
}
