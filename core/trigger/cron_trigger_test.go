package trigger

import (
	"context"
	"testing"
	"time"

	"github.com/briefloop/researchcore/core/worker"
	"github.com/stretchr/testify/require"
)

func TestCronTriggerFiresAddedWorkers(t *testing.T) {
	ct := NewCronTrigger(&CronTriggerOptions{
		Spec: "@every 50ms",
	})
	fired := make(chan struct{}, 8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	count, err := ct.AddWorkers(ctx, &worker.FuncWorker{Fn: func() {
		select {
		case fired <- struct{}{}:
		default:
		}
	}})
	require.NoError(t, err)
	require.Equal(t, 1, count)

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("cron trigger never fired the worker")
	}
}

func TestCronTriggerAccumulatesWorkersAcrossCalls(t *testing.T) {
	ct := NewCronTrigger(&CronTriggerOptions{Spec: "@every 1h"})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	count, err := ct.AddWorkers(ctx, &worker.FuncWorker{Fn: func() {}}, &worker.FuncWorker{Fn: func() {}})
	require.NoError(t, err)
	require.Equal(t, 2, count)

	count, err = ct.AddWorkers(ctx, &worker.FuncWorker{Fn: func() {}})
	require.NoError(t, err)
	require.Equal(t, 1, count)
}
