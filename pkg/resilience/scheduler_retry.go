// Package resilience provides fault tolerance patterns for external service
// calls: a bounded-retry executor driven by error classification.
package resilience

import (
	"context"
	"math"
	"math/rand"
	"time"

	"scheduler_server/pkg/calerr"
	"scheduler_server/pkg/logger"
)

// RetryConfig bounds the retry loop.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
}

// DefaultRetryConfig returns the standard policy for provider calls.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries: 3,
		BaseDelay:  1 * time.Second,
		MaxDelay:   30 * time.Second,
		Multiplier: 2,
	}
}

// Auditor records retry failures. Implementations must be best-effort:
// ExecuteWithRetry ignores audit errors entirely.
type Auditor interface {
	RecordFailure(ctx context.Context, operation, errorCode, message string, details map[string]any)
}

// ExecuteWithRetry runs op under the retry policy. Each failure is
// classified; non-retryable errors and exhausted budgets return the last
// classified error. Backoff is min(retryAfter or base*mult^attempt*jitter,
// max) with jitter drawn from [0.5, 1.0). A success after at least one
// failure is logged so flapping providers are visible.
func ExecuteWithRetry[T any](
	ctx context.Context,
	operation string,
	op func(ctx context.Context) (T, error),
	auditor Auditor,
	cfg *RetryConfig,
) (T, error) {
	var zero T
	if cfg == nil {
		cfg = DefaultRetryConfig()
	}

	var lastErr *calerr.ClassifiedError
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		result, err := op(ctx)
		if err == nil {
			if attempt > 0 {
				logger.WithField("operation", operation).
					Info("operation succeeded after %d failed attempt(s)", attempt)
			}
			return result, nil
		}

		lastErr = calerr.Classify(err, operation)
		logger.WithError(lastErr).WithFields(map[string]any{
			"operation": operation,
			"attempt":   attempt,
			"retryable": lastErr.Retryable,
		}).Warn("operation failed")

		if auditor != nil {
			auditor.RecordFailure(ctx, operation, lastErr.Code, lastErr.Error(), lastErr.Details)
		}

		if !lastErr.Retryable || attempt == cfg.MaxRetries {
			return zero, lastErr
		}

		select {
		case <-ctx.Done():
			return zero, calerr.Classify(ctx.Err(), operation)
		case <-time.After(backoffDelay(cfg, attempt, lastErr.RetryAfter)):
		}
	}

	return zero, lastErr
}

// backoffDelay computes the sleep before the next attempt. A provider
// retry-after hint overrides the exponential schedule; both are capped.
func backoffDelay(cfg *RetryConfig, attempt int, retryAfter time.Duration) time.Duration {
	delay := retryAfter
	if delay <= 0 {
		jitter := 0.5 + rand.Float64()*0.5
		delay = time.Duration(float64(cfg.BaseDelay) * math.Pow(cfg.Multiplier, float64(attempt)) * jitter)
	}
	if delay > cfg.MaxDelay {
		delay = cfg.MaxDelay
	}
	return delay
}
