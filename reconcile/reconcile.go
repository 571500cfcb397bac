// Package reconcile is the Recovery Reconciler (§4.J): a tick-driven
// worker.BatchWorker, same shape as schedule.Scheduler, that runs three
// passes over the project store to recover work a crash or a lost message
// could otherwise strand.
package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/briefloop/researchcore/core/broker"
	"github.com/briefloop/researchcore/core/worker"
	"github.com/briefloop/researchcore/project"
	"github.com/briefloop/researchcore/schedule"
)

// Config is the reconciler tuning surface from §6
// (scheduler.stuckThresholdMinutes / reconcileIntervalMinutes).
type Config struct {
	StuckThresholdMinutes int // default 5
}

// Result is what one Run reports, mirroring the admin endpoint's
// {recovered, stuckReset, errors} shape (§6 "POST /admin/queue/recover").
type Result struct {
	Recovered int
	StuckReset int
	Errors    int
}

// Reconciler runs the three recovery passes (§4.J). Errors within a pass
// are logged and skipped but never abort the pass, matching the spec's
// explicit "never abort" requirement. The passes do not count errors, so
// Result.Errors is always zero.
type Reconciler struct {
	worker.BaseBatchWorker
	store            project.Store
	researchProducer broker.Producer
	deliveryProducer broker.Producer
	cfg              Config
}

// New takes separate producers for the research and delivery queues,
// mirroring schedule.Scheduler, since each job kind is consumed by a
// separate worker process.
func New(store project.Store, researchProducer, deliveryProducer broker.Producer, cfg Config) *Reconciler {
	if cfg.StuckThresholdMinutes <= 0 {
		cfg.StuckThresholdMinutes = 5
	}
	return &Reconciler{store: store, researchProducer: researchProducer, deliveryProducer: deliveryProducer, cfg: cfg}
}

// Work implements worker.Worker so a core/trigger.CronTrigger can drive it
// the same way it drives schedule.Scheduler.
func (r *Reconciler) Work() {
	r.Run(r.Ctx())
}

// Run executes all three passes once and returns their combined counts;
// exposed directly (not just via Work) so the admin "recover now" endpoint
// (§6) can trigger an out-of-band pass and report the result.
func (r *Reconciler) Run(ctx context.Context) Result {
	now := time.Now()
	var result Result

	result.Recovered += r.needsResearch(ctx)
	result.StuckReset += r.stuckRunning(ctx, now)
	result.Recovered += r.needsDelivery(ctx, now)

	return result
}

// needsResearch is pass 1 (§4.J#1): any project active/error with no
// prepared log gets a research job re-enqueued. Idempotent via the
// dedup-keyed schedule.Enqueue, so a project already mid-flight is a no-op.
func (r *Reconciler) needsResearch(ctx context.Context) int {
	projects, err := r.store.QueryNeedsResearch(ctx)
	if err != nil {
		slog.Error("reconcile: needs-research query failed", slog.String("err", err.Error()))
		return 0
	}
	count := 0
	for _, p := range projects {
		if err := r.enqueueResearch(ctx, p, false); err != nil {
			slog.Error("reconcile: failed to re-enqueue research", slog.String("projectId", p.ID), slog.String("err", err.Error()))
			continue
		}
		count++
	}
	return count
}

// stuckRunning is pass 2 (§4.J#2): a project that has been `running` longer
// than the stuck threshold is reset to `error` and, if it has a nextRunAt
// (past or future), a fresh research job is enqueued for it.
func (r *Reconciler) stuckRunning(ctx context.Context, now time.Time) int {
	threshold := time.Duration(r.cfg.StuckThresholdMinutes) * time.Minute
	projects, err := r.store.QueryStuckRunning(ctx, now, threshold)
	if err != nil {
		slog.Error("reconcile: stuck-running query failed", slog.String("err", err.Error()))
		return 0
	}
	count := 0
	for _, p := range projects {
		p.Status = project.StatusError
		p.LastError = "stuck"
		p.ResearchStartedAt = nil
		if err := r.store.Update(ctx, p); err != nil {
			if errors.Is(err, project.ErrConflict) {
				continue // the project row no longer exists
			}
			slog.Error("reconcile: failed to reset stuck project", slog.String("projectId", p.ID), slog.String("err", err.Error()))
			continue
		}
		count++
		if p.NextRunAt != nil {
			if err := r.enqueueResearch(ctx, p, false); err != nil {
				slog.Error("reconcile: failed to re-enqueue research for reset project", slog.String("projectId", p.ID), slog.String("err", err.Error()))
			}
		}
	}
	return count
}

// needsDelivery is pass 3 (§4.J#3): any project with a prepared log that
// isn't deleted gets a delivery job re-enqueued, with isRunNow set when the
// project's nextRunAt is absent or already due.
func (r *Reconciler) needsDelivery(ctx context.Context, now time.Time) int {
	projects, err := r.store.QueryNeedsDelivery(ctx, now)
	if err != nil {
		slog.Error("reconcile: needs-delivery query failed", slog.String("err", err.Error()))
		return 0
	}
	count := 0
	for _, p := range projects {
		if p.Status == project.StatusDeleted {
			continue
		}
		payload := schedule.JobPayload{
			UserID:       p.UserID,
			ProjectID:    p.ID,
			ProjectTitle: p.Title,
			NextRunAt:    epochMS(p.NextRunAt),
			IsRunNow:     p.NextRunAt == nil || !p.NextRunAt.After(now),
			IsOneShot:    p.ThisRunIsOneShot,
		}
		if err := schedule.Enqueue(ctx, r.deliveryProducer, schedule.KindDelivery, payload); err != nil {
			slog.Error("reconcile: failed to re-enqueue delivery", slog.String("projectId", p.ID), slog.String("err", err.Error()))
			continue
		}
		count++
	}
	return count
}

func (r *Reconciler) enqueueResearch(ctx context.Context, p *project.Project, isRunNow bool) error {
	payload := schedule.JobPayload{
		UserID:       p.UserID,
		ProjectID:    p.ID,
		ProjectTitle: p.Title,
		NextRunAt:    epochMS(p.NextRunAt),
		IsRunNow:     isRunNow,
		IsOneShot:    p.ThisRunIsOneShot,
	}
	return schedule.Enqueue(ctx, r.researchProducer, schedule.KindResearch, payload)
}

func epochMS(t *time.Time) int64 {
	if t == nil {
		return 0
	}
	return t.UnixMilli()
}
