package schedule

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/briefloop/researchcore/core/broker"
	"github.com/briefloop/researchcore/core/worker"
	"github.com/briefloop/researchcore/project"
)

// Config is the scheduler tuning surface from §6 (scheduler.* / SCHEDULER_*).
type Config struct {
	CheckWindowMinutes int // pre-run window W, default 15
}

// Scheduler is the tick-driven producer (§4.G). Every tick it selects the
// pre-run set and the retry set, flips each selected project to `running`
// and enqueues a research job; in the same tick it also selects the
// delivery-due set and enqueues delivery jobs. A project can't appear in
// both the pre-run and retry sets at once (project.Store.QueryPreRun and
// QueryRetry are mutually exclusive by construction: QueryPreRun requires
// nextRunAt in (now, now+W], QueryRetry requires nextRunAt <= now).
type Scheduler struct {
	worker.BaseBatchWorker
	store            project.Store
	researchProducer broker.Producer
	deliveryProducer broker.Producer
	cfg              Config
}

// New takes separate producers for the research and delivery queues
// (core/broker.Redis instances differ only in Topic, per its doc comment),
// since the two job kinds are consumed by separate worker processes.
func New(store project.Store, researchProducer, deliveryProducer broker.Producer, cfg Config) *Scheduler {
	if cfg.CheckWindowMinutes <= 0 {
		cfg.CheckWindowMinutes = 15
	}
	return &Scheduler{store: store, researchProducer: researchProducer, deliveryProducer: deliveryProducer, cfg: cfg}
}

func (s *Scheduler) Work() {
	ctx := s.Ctx()
	now := time.Now()
	window := time.Duration(s.cfg.CheckWindowMinutes) * time.Minute

	s.enqueueResearchFor(ctx, now, func() ([]*project.Project, error) {
		return s.store.QueryPreRun(ctx, now, window)
	})
	s.enqueueResearchFor(ctx, now, func() ([]*project.Project, error) {
		return s.store.QueryRetry(ctx, now)
	})
	s.enqueueDelivery(ctx, now)
}

func (s *Scheduler) enqueueResearchFor(ctx context.Context, now time.Time, query func() ([]*project.Project, error)) {
	projects, err := query()
	if err != nil {
		slog.Error("schedule: query failed", slog.String("err", err.Error()))
		return
	}
	for _, p := range projects {
		s.enqueueResearch(ctx, now, p)
	}
}

func (s *Scheduler) enqueueResearch(ctx context.Context, now time.Time, p *project.Project) {
	p.Status = project.StatusRunning
	p.ResearchStartedAt = &now
	if err := s.store.Update(ctx, p); err != nil {
		if errors.Is(err, project.ErrConflict) {
			return // the project row no longer exists
		}
		slog.Error("schedule: failed to flip project to running", slog.String("projectId", p.ID), slog.String("err", err.Error()))
		return
	}

	var nextRunAtMs int64
	if p.NextRunAt != nil {
		nextRunAtMs = p.NextRunAt.UnixMilli()
	}
	payload := JobPayload{
		UserID:       p.UserID,
		ProjectID:    p.ID,
		ProjectTitle: p.Title,
		NextRunAt:    nextRunAtMs,
		IsRunNow:     false,
		IsOneShot:    p.ThisRunIsOneShot,
	}
	if err := Enqueue(ctx, s.researchProducer, KindResearch, payload); err != nil {
		slog.Error("schedule: failed to enqueue research job", slog.String("projectId", p.ID), slog.String("err", err.Error()))
	}
}

func (s *Scheduler) enqueueDelivery(ctx context.Context, now time.Time) {
	projects, err := s.store.QueryNeedsDelivery(ctx, now)
	if err != nil {
		slog.Error("schedule: delivery query failed", slog.String("err", err.Error()))
		return
	}
	for _, p := range projects {
		var nextRunAtMs int64
		if p.NextRunAt != nil {
			nextRunAtMs = p.NextRunAt.UnixMilli()
		}
		payload := JobPayload{
			UserID:       p.UserID,
			ProjectID:    p.ID,
			ProjectTitle: p.Title,
			NextRunAt:    nextRunAtMs,
			IsRunNow:     p.NextRunAt == nil || !p.NextRunAt.After(now),
			IsOneShot:    p.ThisRunIsOneShot,
		}
		if err := Enqueue(ctx, s.deliveryProducer, KindDelivery, payload); err != nil {
			slog.Error("schedule: failed to enqueue delivery job", slog.String("projectId", p.ID), slog.String("err", err.Error()))
		}
	}
}
