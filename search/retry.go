package search

import (
	"context"
	"net/http"
	"time"

	"github.com/briefloop/researchcore/errs"
)

// doWithRetry retries transient failures with exponential backoff that
// starts at 1s, doubles and is capped at 10s, over at most 3 attempts (so
// the waits are 1s then 2s), aborting immediately on a client error other
// than 429 (§4.B).
func doWithRetry(ctx context.Context, client *http.Client, buildReq func(ctx context.Context) (*http.Request, error)) (*http.Response, error) {
	backoff := time.Second
	const maxAttempts = 3
	const maxBackoff = 10 * time.Second

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		req, err := buildReq(ctx)
		if err != nil {
			return nil, errs.Wrap(errs.Validation, err, "search: build request")
		}
		resp, err := client.Do(req)
		if err != nil {
			lastErr = errs.Wrap(errs.Transient, err, "search: request failed")
		} else if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			_ = resp.Body.Close()
			lastErr = errs.Newf(errs.Transient, "search: status %d", resp.StatusCode)
		} else if resp.StatusCode >= 400 {
			return resp, nil // 4xx other than 429: caller decodes the error body, no retry
		} else {
			return resp, nil
		}

		if attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
	return nil, lastErr
}
