package trigger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/briefloop/researchcore/core/worker"
	"github.com/stretchr/testify/require"
)

func TestCondTriggerFiresOnBroadcast(t *testing.T) {
	cond := sync.NewCond(&sync.Mutex{})
	ct := NewCondTrigger(cond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fired := make(chan struct{}, 8)
	_, err := ct.AddWorkers(ctx, &worker.FuncWorker{Fn: func() {
		select {
		case fired <- struct{}{}:
		default:
		}
	}})
	require.NoError(t, err)

	cond.Broadcast()

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("cond trigger never fired the worker")
	}
}

func TestCondTriggerFiresAllWorkersOnSignal(t *testing.T) {
	cond := sync.NewCond(&sync.Mutex{})
	ct := NewCondTrigger(cond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(3)
	_, err := ct.AddWorkers(ctx,
		&worker.FuncWorker{Fn: wg.Done},
		&worker.FuncWorker{Fn: wg.Done},
		&worker.FuncWorker{Fn: wg.Done},
	)
	require.NoError(t, err)

	cond.Broadcast()

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("cond trigger did not fire all added workers")
	}
}
