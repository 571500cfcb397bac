package job

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/briefloop/researchcore/core/broker"
	xsync "github.com/briefloop/researchcore/pkg/sync"
	"github.com/briefloop/researchcore/core/worker"
)

// StreamJobConfig bounds how many jobs this process runs concurrently. The
// research worker runs with MaxInFlight=1 (spec §5: research concurrency is
// 1 per process, horizontal scale is more processes); the delivery worker
// runs with MaxInFlight=2 plus its own rate limiter (spec §4.I).
type StreamJobConfig struct {
	MaxInFlight int `yaml:"MaxInFlight" mapstructure:"maxInFlight" validate:"min=1"`
}

type StreamJobOptions struct {
	Config *StreamJobConfig
	Worker worker.StreamWorker
	Broker broker.Broker
}

// StreamJob is the consume→work→produce→ack loop shared by the research and
// delivery workers (spec §4.H/§4.I): it repeatedly pulls a message off the
// broker, hands it to a StreamWorker, and either acks it (worker succeeded,
// possibly emitting follow-on messages) or nacks it (worker returned an
// error, broker applies its retry/backoff policy).
type StreamJob struct {
	wg      sync.WaitGroup
	running atomic.Bool
	cancel  context.CancelFunc
	limiter *xsync.Limiter
	worker  worker.StreamWorker
	broker  broker.Broker
}

func NewStreamJob(opt *StreamJobOptions) Job {
	return &StreamJob{
		limiter: xsync.NewLimiter(opt.Config.MaxInFlight),
		worker:  opt.Worker,
		broker:  opt.Broker,
	}
}

func (s *StreamJob) Start(ctx context.Context) error {
	if s.running.Load() {
		return nil
	}
	s.running.Store(true)
	nctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	xsync.Go(func() {
		s.run(nctx)
	})
	return nil
}

func (s *StreamJob) Stop() error {
	if !s.running.Load() {
		return nil
	}
	s.running.Store(false)
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	return nil
}

func (s *StreamJob) run(ctx context.Context) {
	for {
		s.limiter.Acquire()
		if !s.running.Load() || ctx.Err() != nil {
			s.limiter.Release()
			return
		}
		s.wg.Add(1)
		xsync.Go(func() {
			defer s.wg.Done()
			defer s.limiter.Release()
			if err := s.work(ctx); err != nil {
				slog.Error("stream job err", slog.String("err", err.Error()))
			}
		})
	}
}

func (s *StreamJob) work(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return nil
	default:
	}

	msg, id, err := s.broker.Consume(ctx)
	if err != nil {
		return err
	}
	if msg == nil {
		s.worker.Sleep()
		return nil
	}

	out, err := s.worker.Work(ctx, msg)
	if err != nil {
		nackErr := s.broker.Nack(ctx, id)
		if nackErr != nil {
			return nackErr
		}
		return err
	}
	if len(out) > 0 {
		if err := s.broker.Produce(ctx, out...); err != nil {
			return err
		}
	}
	return s.broker.Ack(ctx, id)
}
