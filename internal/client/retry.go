package client

import (
	"context"
	"math/rand"
	"time"

	"azul/internal/logging"
)

// RetryConfig holds retry configuration used across all client implementations.
type RetryConfig struct {
	MaxRetries int           // Maximum number of retry attempts
	RetryDelay time.Duration // Initial delay between retries
	MaxDelay   time.Duration // Maximum backoff delay (cap)
}

// CalculateBackoff calculates exponential backoff with jitter.
func CalculateBackoff(baseDelay time.Duration, attempt int, maxDelay time.Duration) time.Duration {
	delay := baseDelay * time.Duration(1<<uint(attempt))
	if delay > maxDelay || delay <= 0 {
		delay = maxDelay
	}

	// jitter: up to 25% of delay
	if q := int64(delay / 4); q > 0 {
		delay += time.Duration(rand.Int63n(q))
	}
	return delay
}

// withRetry runs fn until it succeeds, fails with a non-retryable error, or
// the retry budget is spent. onRetry, when set, is told about each retry.
func withRetry[T any](ctx context.Context, cfg RetryConfig, provider string, retryable func(error) bool, onRetry func(attempt int, delay time.Duration, err error), fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := CalculateBackoff(cfg.RetryDelay, attempt-1, cfg.MaxDelay)
			logging.Info("retrying request", "provider", provider, "attempt", attempt, "delay", delay)
			if onRetry != nil {
				onRetry(attempt, delay, lastErr)
			}

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return zero, ctx.Err()
			}
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}

		lastErr = err
		if ctx.Err() != nil || !retryable(err) {
			return zero, err
		}

		logging.Warn("request failed, will retry", "provider", provider, "attempt", attempt, "error", err)
	}

	return zero, &RetryExhaustedError{Attempts: cfg.MaxRetries, Err: lastErr}
}
