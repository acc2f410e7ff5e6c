package cache

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors shared by cache backends and data sources.
var (
	// ErrNotFound is returned when a requested item does not exist.
	ErrNotFound = errors.New("not found")

	// ErrNetwork is returned when a data source or cache backend is unreachable.
	ErrNetwork = errors.New("network error")
)

// RetryableError marks a transient failure. Only errors carrying it are
// retried by [Backoff.Retry].
type RetryableError struct{ Err error }

// Retryable wraps err as a RetryableError. A nil err stays nil.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

func (e *RetryableError) Error() string { return e.Err.Error() }

func (e *RetryableError) Unwrap() error { return e.Err }

// IsRetryable reports whether any error in err's chain is a RetryableError.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// Backoff is an exponential retry policy. The zero value behaves like
// [DefaultBackoff].
type Backoff struct {
	// Attempts is the total number of calls, including the first.
	Attempts int
	// Delay is the wait after the first failure; it doubles after each retry.
	Delay time.Duration
	// Sleep waits for d or until ctx is done. Nil uses a timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultBackoff makes three attempts, waiting one and then two seconds.
var DefaultBackoff = Backoff{Attempts: 3, Delay: time.Second}

// Retry calls fn until it succeeds, returns a non-retryable error, or the
// attempts run out. The last error is returned.
func (b Backoff) Retry(ctx context.Context, fn func() error) error {
	attempts, delay, wait := b.Attempts, b.Delay, b.Sleep
	if attempts <= 0 {
		attempts = DefaultBackoff.Attempts
	}
	if delay <= 0 {
		delay = DefaultBackoff.Delay
	}
	if wait == nil {
		wait = sleep
	}

	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil || !IsRetryable(err) {
			return err
		}
		if i == attempts-1 {
			break
		}
		if werr := wait(ctx, delay); werr != nil {
			return werr
		}
		delay *= 2
	}
	return err
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
