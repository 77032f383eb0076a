package fn

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// RetryOpts configures retry behavior.
type RetryOpts struct {
	MaxAttempts int
	InitialWait time.Duration
	// MaxWait caps a single wait. Zero leaves the doubling uncapped.
	MaxWait time.Duration
	Jitter  bool
	// Sleep waits between attempts. Nil uses a timer that aborts on ctx.
	Sleep func(ctx context.Context, d time.Duration) error
	// OnRetry is called after a failed attempt, before the wait.
	OnRetry func(attempt int, wait time.Duration, err error)
}

// DefaultRetry suits light lookups where a few quick attempts are enough.
var DefaultRetry = RetryOpts{
	MaxAttempts: 3,
	InitialWait: time.Second,
	MaxWait:     5 * time.Second,
	Jitter:      true,
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err so that Retry gives up immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Retry calls f up to MaxAttempts times with exponential backoff and returns
// the last result together with the number of attempts made. A failure
// wrapped with Permanent stops the loop and is returned unwrapped.
func Retry[T any](ctx context.Context, opts RetryOpts, f func(ctx context.Context, attempt int) Result[T]) (Result[T], int) {
	sleep := opts.Sleep
	if sleep == nil {
		sleep = Sleep
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}

	var result Result[T]
	wait := opts.InitialWait

	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return Err[T](err), attempt - 1
		}
		result = f(ctx, attempt)
		if result.IsOk() {
			return result, attempt
		}
		var p *permanentError
		if errors.As(result.err, &p) {
			return Err[T](p.err), attempt
		}
		if attempt == opts.MaxAttempts {
			break
		}

		sleepDur := wait
		if opts.Jitter {
			sleepDur = time.Duration(float64(wait) * (0.5 + rand.Float64()))
		}
		if opts.MaxWait > 0 && sleepDur > opts.MaxWait {
			sleepDur = opts.MaxWait
		}
		if opts.OnRetry != nil {
			opts.OnRetry(attempt, sleepDur, result.err)
		}
		if err := sleep(ctx, sleepDur); err != nil {
			return Err[T](err), attempt
		}

		wait *= 2
		if opts.MaxWait > 0 && wait > opts.MaxWait {
			wait = opts.MaxWait
		}
	}
	return result, opts.MaxAttempts
}
