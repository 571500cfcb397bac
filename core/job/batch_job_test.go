package job

import (
	"context"
	"github.com/briefloop/researchcore/core/trigger"
	"github.com/briefloop/researchcore/core/worker"
	"testing"
	"time"
)

func TestNewBatchJob(t *testing.T) {
	bj := NewBatchJob(&BatchJobOptions{
		Trigger: trigger.NewCronTrigger(&trigger.CronTriggerOptions{
			Spec: "0/1 * * * * ?",
		}),
		Workers: []worker.BatchWorker{&mockBatchWorker{}, &mockBatchWorker{}, &mockBatchWorker{}},
	})
	err := bj.Start(context.Background())
	t.Log(err)
	time.Sleep(5 * time.Second)
	err = bj.Stop()
	t.Log(err)
	time.Sleep(5 * time.Second)
}

type mockBatchWorker struct {
	worker.BaseBatchWorker
}

func (w *mockBatchWorker) Work() {}
