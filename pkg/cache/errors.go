package cache

import (
	"context"
	"errors"
	"time"
)

// RetryableError marks an error as transient. RetryWithBackoff only
// retries errors carrying this marker; everything else fails immediately.
type RetryableError struct{ Err error }

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// Retryable marks err as transient. A nil err stays nil.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

// IsRetryable reports whether err carries the transient marker anywhere
// in its chain.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// Backoff schedule for transient backend failures, mainly redis hiccups
// during long watch sessions.
const (
	retryAttempts     = 3
	retryInitialDelay = time.Second
)

// RetryWithBackoff runs fn, retrying transient failures with doubling
// delays. The context cancels waiting between attempts.
func RetryWithBackoff(ctx context.Context, fn func() error) error {
	var lastErr error
	delay := retryInitialDelay
	for attempt := 0; attempt < retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}
		lastErr = fn()
		if lastErr == nil || !IsRetryable(lastErr) {
			return lastErr
		}
	}
	return lastErr
}
