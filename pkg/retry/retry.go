package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/relieftrack/shipment-tracking-api/pkg/logger"
)

// RetryableFunc is an operation that can be re-attempted
type RetryableFunc func() error

// RetryConfig holds the configuration for retrying operations
type RetryConfig struct {
	MaxAttempts     int
	BackoffStrategy BackoffStrategy
	Logger          logger.Logger
	// RetryableErrors limits which errors trigger another attempt.
	// Empty means every error is retryable.
	RetryableErrors []error
}

// Retry runs fn until it succeeds, the attempts are exhausted, a
// non-retryable error occurs, or the context is cancelled.
func Retry(ctx context.Context, fn RetryableFunc, cfg *RetryConfig) error {
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled by context: %w", ctx.Err())
		default:
		}

		err := fn()

		if err == nil {
			return nil
		}

		lastErr = err

		if attempt == cfg.MaxAttempts {
			break
		}

		if !isRetryable(err, cfg.RetryableErrors) {
			cfg.Logger.Warn("Non-retryable error encountered, giving up",
				"error", err,
				"attempt", attempt)
			return err
		}

		backoff := cfg.BackoffStrategy.NextBackoff(attempt)

		cfg.Logger.Info("Retrying after error",
			"error", err,
			"attempt", attempt,
			"maxAttempts", cfg.MaxAttempts,
			"backoff", backoff)

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled by context during backoff: %w", ctx.Err())
		}
	}

	return fmt.Errorf("all %d retry attempts failed, last error: %w", cfg.MaxAttempts, lastErr)
}

// DiscardFunc decides what happens to an operation that failed every attempt
type DiscardFunc func(err error) error

// RetryWithDiscard behaves like Retry but hands a permanently failed
// operation to discard instead of returning the raw retry error.
func RetryWithDiscard(ctx context.Context, fn RetryableFunc, cfg *RetryConfig, discard DiscardFunc) error {
	err := Retry(ctx, fn, cfg)

	if err == nil {
		return nil
	}

	return discard(err)
}

func isRetryable(err error, retryableErrors []error) bool {
	if len(retryableErrors) == 0 {
		return true
	}

	for _, retryableErr := range retryableErrors {
		if errors.Is(err, retryableErr) {
			return true
		}
	}

	return false
}
