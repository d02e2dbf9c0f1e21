// Package retry runs a callback until it succeeds, stops asking for retries,
// or runs out of attempts. Only connection establishment uses it; migration
// statements are never retried.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrTooManyAttempts indicates the attempt limit was exhausted.
var ErrTooManyAttempts = errors.New("too many retry attempts")

// Callable is invoked once per attempt, starting at 1.
type Callable func(attempt int) error

type retryableError struct {
	err     error
	attempt int
}

func (e *retryableError) Error() string { return e.err.Error() }

func (e *retryableError) Unwrap() error { return e.err }

// Retryable marks err as transient so Start schedules another attempt.
// Any other error returned from a Callable ends the loop immediately.
func Retryable(err error, attempt int) error {
	if err == nil {
		return nil
	}

	return &retryableError{err: err, attempt: attempt}
}

// Attempts yields the delay before each subsequent attempt.
type Attempts interface {
	Next() (time.Duration, bool)
	Current() int
}

// Start calls cb until it returns nil or a non-retryable error, the attempts
// are exhausted, or ctx is done.
func Start(ctx context.Context, a Attempts, cb Callable) error {
	for {
		err := cb(a.Current())
		if err == nil {
			return nil
		}

		var retryable *retryableError
		if !errors.As(err, &retryable) {
			return fmt.Errorf("attempt %d: %w", a.Current(), err)
		}

		next, stop := a.Next()
		if stop {
			return fmt.Errorf("%w: last error: %w", ErrTooManyAttempts, retryable.err)
		}

		timer := time.NewTimer(next)

		select {
		case <-ctx.Done():
			timer.Stop()

			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Incremental retries with a delay that grows by step after every attempt.
func Incremental(ctx context.Context, step time.Duration, maxAttempts int, cb Callable) error {
	return Start(ctx, IncrementalAttempts(step, maxAttempts), cb)
}

type incrementalAttempts struct {
	prev time.Duration
	step time.Duration
	max  int
	curr int
}

// IncrementalAttempts allows up to maxAttempts calls, waiting step, 2*step,
// 3*step and so on between them.
func IncrementalAttempts(step time.Duration, maxAttempts int) Attempts {
	return &incrementalAttempts{step: step, max: maxAttempts, curr: 1}
}

func (a *incrementalAttempts) Next() (time.Duration, bool) {
	a.curr++
	if a.curr > a.max {
		return 0, true
	}

	a.prev += a.step

	return a.prev, false
}

func (a *incrementalAttempts) Current() int {
	return a.curr
}
