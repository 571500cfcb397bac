package trigger

import (
	"context"
	"github.com/briefloop/researchcore/core/worker"
)

type Trigger interface {
	AddWorkers(ctx context.Context, workers ...worker.Worker) (int, error)
}
