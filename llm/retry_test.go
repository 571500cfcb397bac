package llm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/briefloop/researchcore/errs"
)

func TestWithRetrySucceedsAfterParseFormatFailures(t *testing.T) {
	attempts := 0
	resp, err := withRetry(context.Background(), 3, time.Millisecond, func(ctx context.Context) (string, error) {
		attempts++
		if attempts < 3 {
			return "", errs.New(errs.ParseFormat, "bad json")
		}
		return "ok", nil
	})
	require.NoError(t, err)
	require.Equal(t, "ok", resp)
	require.Equal(t, 3, attempts)
}

func TestWithRetryStopsImmediatelyOnNonRetryableError(t *testing.T) {
	attempts := 0
	_, err := withRetry(context.Background(), 3, time.Millisecond, func(ctx context.Context) (string, error) {
		attempts++
		return "", errs.New(errs.Validation, "bad input")
	})
	require.Error(t, err)
	require.Equal(t, 1, attempts)
}

func TestWithRetryExhaustsAttempts(t *testing.T) {
	attempts := 0
	_, err := withRetry(context.Background(), 2, time.Millisecond, func(ctx context.Context) (string, error) {
		attempts++
		return "", errs.New(errs.Transient, "still failing")
	})
	require.Error(t, err)
	require.Equal(t, 2, attempts)
}
