// Package retry provides a bounded retry combinator with exponential
// backoff, parameterized by a predicate that separates retryable from
// terminal failures.
package retry

import (
	"context"
	"time"
)

// Config controls the retry schedule.
type Config struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// InitialDelay is the delay before the first retry.
	InitialDelay time.Duration

	// Multiplier scales the delay after each retry.
	Multiplier float64
}

// DefaultConfig is the facilitator retry policy: 3 attempts total with
// 100ms, 200ms, 400ms backoff.
var DefaultConfig = Config{
	MaxAttempts:  3,
	InitialDelay: 100 * time.Millisecond,
	Multiplier:   2.0,
}

// WithRetry runs op up to cfg.MaxAttempts times, sleeping between
// attempts with exponential backoff. A failure is retried only when
// isRetryable reports it transient; terminal failures and context
// cancellation end the loop immediately. The last error is returned
// once attempts are exhausted.
func WithRetry[T any](ctx context.Context, cfg Config, isRetryable func(error) bool, op func() (T, error)) (T, error) {
	var zero T

	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	delay := cfg.InitialDelay
	var lastErr error

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * cfg.Multiplier)
		}

		result, err := op()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if isRetryable != nil && !isRetryable(err) {
			return zero, err
		}
	}

	return zero, lastErr
}
