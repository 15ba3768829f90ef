package db

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"PetPlanBilling/internal/metrics"
)

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = time.Second
)

// RetryOptions bound the retry loop for queries and transactions.
// Delays double per attempt (base, 2*base, 4*base, ...) with no jitter.
type RetryOptions struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

func (o RetryOptions) withDefaults() RetryOptions {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = defaultMaxAttempts
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = defaultBaseDelay
	}
	return o
}

// WithRetry runs op up to opts.MaxAttempts times with exponentially
// doubling delays between attempts. Each failed attempt is logged and
// counted; exhaustion surfaces as *RetriesExhaustedError wrapping the
// last cause. A *ConnectionError from op is terminal and propagates
// unchanged, as does context cancellation.
func WithRetry[T any](ctx context.Context, opts RetryOptions, logger *slog.Logger, op func(context.Context) (T, error)) (T, error) {
	opts = opts.withDefaults()

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = opts.BaseDelay
	policy.Multiplier = 2
	policy.RandomizationFactor = 0
	policy.MaxInterval = opts.BaseDelay << uint(opts.MaxAttempts)
	policy.MaxElapsedTime = 0

	attempts := 0
	wrapped := func() (T, error) {
		attempts++
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		if IsConnectionError(err) || ctx.Err() != nil {
			return result, backoff.Permanent(err)
		}
		return result, err
	}

	notify := func(err error, next time.Duration) {
		metrics.DBRetryAttempts.Inc()
		if logger != nil {
			logger.Warn("database attempt failed, retrying",
				"attempt", attempts,
				"next_delay", next,
				"error", err)
		}
	}

	result, err := backoff.RetryNotifyWithData(
		wrapped,
		backoff.WithMaxRetries(backoff.WithContext(policy, ctx), uint64(opts.MaxAttempts-1)),
		notify,
	)
	if err == nil {
		return result, nil
	}

	if IsConnectionError(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return result, err
	}

	return result, &RetriesExhaustedError{Attempts: attempts, Err: err}
}
