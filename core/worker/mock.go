package worker

import (
	"context"
	"time"

	"github.com/briefloop/researchcore/core/message"
)

// FuncWorker adapts a plain function to the Worker interface, used by
// core/job.BatchJob to run a tick-driven producer (scheduler, reconciler).
type FuncWorker struct {
	Fn func()
}

func (w *FuncWorker) Work() { w.Fn() }

// FuncStreamWorker adapts a plain function to the StreamWorker interface,
// used by tests that don't need a full pipeline/delivery implementation.
type FuncStreamWorker struct {
	Fn       func(ctx context.Context, msg *message.Msg) ([]*message.Msg, error)
	SleepFor time.Duration
}

func (w *FuncStreamWorker) Work(ctx context.Context, msg *message.Msg) ([]*message.Msg, error) {
	return w.Fn(ctx, msg)
}

func (w *FuncStreamWorker) Sleep() {
	d := w.SleepFor
	if d == 0 {
		d = 50 * time.Millisecond
	}
	time.Sleep(d)
}

// BaseBatchWorker implements the Context/Done half of BatchWorker so
// tick-driven producers (scheduler, reconciler) only need to implement Work.
type BaseBatchWorker struct {
	ctx context.Context
}

func (b *BaseBatchWorker) Context(ctx context.Context) {
	b.ctx = ctx
}

func (b *BaseBatchWorker) Done() <-chan struct{} {
	if b.ctx == nil {
		return nil
	}
	return b.ctx.Done()
}

func (b *BaseBatchWorker) Ctx() context.Context {
	if b.ctx == nil {
		return context.Background()
	}
	return b.ctx
}
