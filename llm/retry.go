package llm

import (
	"context"
	"time"

	"github.com/briefloop/researchcore/errs"
)

// withRetry retries call up to maxAttempts times, backing off exponentially
// from initialBackoff, but only when the failure is errs.Retryable —
// covering both "retry on parse/format failure" (steps 2, 6) and "retried
// with exponential backoff on any failure" (step 9, where maxAttempts=3
// and every errs.Kind that reaches this layer is retryable by construction).
func withRetry[Resp any](ctx context.Context, maxAttempts int, initialBackoff time.Duration, call func(ctx context.Context) (Resp, error)) (Resp, error) {
	var zero Resp
	backoff := initialBackoff
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
		resp, err := call(ctx)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !errs.Retryable(err) {
			return zero, err
		}
	}
	return zero, lastErr
}
