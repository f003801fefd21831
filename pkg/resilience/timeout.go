// Package resilience bounds how long callers wait on store calls.
package resilience

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout is returned when an operation exceeds its timeout.
var ErrTimeout = errors.New("operation timed out")

// WithTimeout runs fn with a derived deadline and returns as soon as the
// deadline passes, even if fn ignores its context. A non-positive timeout
// only honours the parent context.
func WithTimeout(ctx context.Context, timeout time.Duration, fn func(context.Context) error) error {
	_, err := Call(ctx, timeout, func(runCtx context.Context) (struct{}, error) {
		return struct{}{}, fn(runCtx)
	})
	return err
}

// Call is WithTimeout for functions returning a value. On timeout the zero
// value is returned together with ErrTimeout.
func Call[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	runCtx, cancel := ctx, context.CancelFunc(func() {})
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	type outcome struct {
		value T
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		v, err := fn(runCtx)
		done <- outcome{value: v, err: err}
	}()

	select {
	case out := <-done:
		return out.value, out.err
	case <-runCtx.Done():
		var zero T
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return zero, ErrTimeout
		}
		return zero, runCtx.Err()
	}
}
