// Package retry runs fallible operations again after a backoff.
package retry

import (
	"context"
	"errors"
	"time"
)

// ErrRetry marks an error as retryable when returned, possibly wrapped, from an operation.
var ErrRetry = errors.New("retry")

// Backoff blocks until the next attempt may start. It returns ctx.Err() when
// the context ends first.
type Backoff func(context.Context) error

// StaticBackoff waits a fixed interval between attempts.
func StaticBackoff(interval time.Duration) Backoff {
	return ExponentialBackoff(interval, 1)
}

// ExponentialBackoff waits initial * r^n before the n-th retry.
func ExponentialBackoff(initial time.Duration, r float64) Backoff {
	interval := initial
	return func(ctx context.Context) error {
		if interval <= 0 {
			return ctx.Err()
		}
		timer := time.NewTimer(interval)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			interval = time.Duration(float64(interval) * r)
			return nil
		}
	}
}

// Blocking calls f up to attempts times. Only errors for which retryable returns
// true trigger another attempt; the last value and error are returned otherwise.
func Blocking[T any](ctx context.Context, attempts int, b Backoff, retryable func(error) bool, f func() (T, error)) (T, error) {
	if attempts < 1 {
		attempts = 1
	}
	if retryable == nil {
		retryable = func(err error) bool { return errors.Is(err, ErrRetry) }
	}

	var last T
	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			if berr := b(ctx); berr != nil {
				return last, errors.Join(err, berr)
			}
		}
		last, err = f()
		if err == nil || !retryable(err) {
			return last, err
		}
	}
	return last, err
}
