// Package retry runs an operation with bounded attempts, a per-attempt
// timeout and exponential backoff.
package retry

import (
	"context"
	"fmt"
	"time"

	"privacy-consent/internal/common/errors"
)

type Policy struct {
	MaxAttempts    int
	AttemptTimeout time.Duration // zero means no per-attempt bound
	BaseDelay      time.Duration
	MaxDelay       time.Duration

	// IsRetryable decides whether a failed attempt may be repeated.
	// Defaults to errors.IsRetryable.
	IsRetryable func(error) bool

	// OnRetry is called before sleeping ahead of attempt+1.
	OnRetry func(attempt int, err error, wait time.Duration)

	// Sleep waits d or until ctx ends. Tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultPolicy is three attempts, 30s each, 1s doubling up to 10s.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		AttemptTimeout: 30 * time.Second,
		BaseDelay:      time.Second,
		MaxDelay:       10 * time.Second,
	}
}

// Delay returns the wait after the given failed attempt (1-based).
func (p Policy) Delay(attempt int) time.Duration {
	if p.BaseDelay <= 0 {
		return 0
	}
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// Do calls op until it succeeds, fails with a non-retryable error, or the
// attempts run out. It returns the result, the number of attempts made and
// the last error.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context, attempt int) (T, error)) (T, int, error) {
	var zero T
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.IsRetryable == nil {
		p.IsRetryable = errors.IsRetryable
	}
	if p.Sleep == nil {
		p.Sleep = sleep
	}

	var (
		lastErr  error
		attempts int
	)
	for attempts < p.MaxAttempts {
		if err := ctx.Err(); err != nil {
			if lastErr == nil {
				lastErr = err
			}
			break
		}

		attempts++
		res, err := runAttempt(ctx, p.AttemptTimeout, attempts, op)
		if err == nil {
			return res, attempts, nil
		}
		lastErr = err

		if !p.IsRetryable(err) || attempts == p.MaxAttempts {
			break
		}

		wait := p.Delay(attempts)
		if p.OnRetry != nil {
			p.OnRetry(attempts, err, wait)
		}
		if err := p.Sleep(ctx, wait); err != nil {
			break
		}
	}

	return zero, attempts, fmt.Errorf("failed after %d attempt(s): %w", attempts, lastErr)
}

func runAttempt[T any](ctx context.Context, timeout time.Duration, attempt int, op func(context.Context, int) (T, error)) (T, error) {
	if timeout <= 0 {
		return op(ctx, attempt)
	}
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return op(actx, attempt)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
