package device

import (
	"context"
	"time"
)

// RetryPolicy bounds how a controller retries transient wire failures.
// Retries are per command, never unbounded: exhaustion surfaces the last
// error to the orchestrator, which does not retry further.
type RetryPolicy struct {
	// MaxRetries is the number of attempts after the first (2 → 3 total).
	MaxRetries int

	// InitialBackoff is the delay before the first retry; it doubles on
	// each subsequent retry up to MaxBackoff.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// Timeout bounds each individual attempt. Zero means the caller's
	// context deadline is the only bound.
	Timeout time.Duration
}

// DefaultRetryPolicy is the policy controllers use unless configured
// otherwise: 2 retries, 250ms initial backoff, 10s per-attempt timeout.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:     2,
		InitialBackoff: 250 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
		Timeout:        10 * time.Second,
	}
}

// Retry runs op, retrying transient failures per the policy.
//
// Only errors for which IsTransient returns true are retried; everything
// else returns immediately. Context cancellation aborts the backoff sleep
// and returns a timeout error so callers always get a classified failure.
func Retry(ctx context.Context, policy RetryPolicy, op func(ctx context.Context) error) error {
	backoff := policy.InitialBackoff
	var lastErr error

	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return WrapError(ErrKindTimeout, "cancelled during retry backoff", ctx.Err())
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > policy.MaxBackoff {
				backoff = policy.MaxBackoff
			}
		}

		attemptCtx := ctx
		var cancel context.CancelFunc
		if policy.Timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, policy.Timeout)
		}

		lastErr = op(attemptCtx)
		if cancel != nil {
			cancel()
		}

		if lastErr == nil {
			return nil
		}
		if !IsTransient(lastErr) {
			return lastErr
		}
	}

	return lastErr
}
