// Package retry provides backoff for eventually consistent cloud API calls.
// The documentation build pipeline itself never retries; provisioning does.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Policy encapsulates retry/backoff settings for transient failures.
// It is immutable after construction.
type Policy struct {
	Initial    time.Duration // base delay, doubled each retry
	Max        time.Duration // cap for growth
	MaxRetries int           // maximum retry attempts after the first failure
}

// DefaultPolicy returns a sensible default policy (1s initial, 30s cap, 3 retries).
func DefaultPolicy() Policy {
	return Policy{Initial: time.Second, Max: 30 * time.Second, MaxRetries: 3}
}

// Delay returns the backoff delay for the given retry attempt number
// (1-based: first retry => 1).
func (p Policy) Delay(retryCount int) time.Duration {
	if retryCount <= 0 {
		return 0
	}
	d := p.Initial * (1 << (retryCount - 1))
	if d > p.Max {
		return p.Max
	}
	return d
}

// Validate ensures invariants; returns error if policy impossible to apply.
func (p Policy) Validate() error {
	if p.Initial <= 0 {
		return fmt.Errorf("initial must be >0")
	}
	if p.Max <= 0 {
		return fmt.Errorf("max must be >0")
	}
	if p.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	return nil
}

// fatalError marks an error that must not be retried.
type fatalError struct{ err error }

func (f *fatalError) Error() string { return f.err.Error() }
func (f *fatalError) Unwrap() error { return f.err }

// Fatal wraps an error so Do stops retrying immediately.
func Fatal(err error) error { return &fatalError{err: err} }

// Do runs fn, retrying transient failures per the policy. Errors wrapped with
// Fatal abort immediately; context cancellation is honored between attempts.
func Do(ctx context.Context, p Policy, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.Delay(attempt)):
			}
		}

		err := fn()
		if err == nil {
			return nil
		}
		var fatal *fatalError
		if errors.As(err, &fatal) {
			return fatal.err
		}
		lastErr = err
	}
	return fmt.Errorf("retries exhausted after %d attempts: %w", p.MaxRetries+1, lastErr)
}
