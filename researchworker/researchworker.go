// Package researchworker is the Research Worker (§4.H): a
// core/worker.StreamWorker that consumes research jobs, runs
// pipeline.Pipeline, and on success hands off a delivery job. Concurrency
// is bounded by the caller's core/job.StreamJobConfig.MaxInFlight, which
// the process wiring sets to 1 per the spec's "1 in-flight job per worker
// process" rule — the worker itself has no opinion on concurrency.
package researchworker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/briefloop/researchcore/core/message"
	"github.com/briefloop/researchcore/pipeline"
	"github.com/briefloop/researchcore/project"
	"github.com/briefloop/researchcore/schedule"
)

type Worker struct {
	store    project.Store
	pipeline *pipeline.Pipeline
}

func New(store project.Store, p *pipeline.Pipeline) *Worker {
	return &Worker{store: store, pipeline: p}
}

// Work implements core/worker.StreamWorker. It re-reads the project at each
// of the two points the spec calls out (before starting, and pipeline.Run
// itself re-reads before persisting) rather than trusting the payload,
// since the payload only carries the nextRunAt the scheduler observed when
// it enqueued the job.
func (w *Worker) Work(ctx context.Context, msg *message.Msg) ([]*message.Msg, error) {
	var payload schedule.JobPayload
	if err := msg.Unmarshal(&payload); err != nil {
		return nil, err
	}

	proj, err := w.store.Get(ctx, payload.UserID, payload.ProjectID)
	if err != nil {
		slog.Info("researchworker: project gone, skipping", slog.String("projectId", payload.ProjectID))
		return nil, nil
	}
	if proj.Status == project.StatusPaused || proj.Status == project.StatusDeleted || proj.PreparedDeliveryLogID != nil {
		slog.Info("researchworker: skipping, already prepared or inactive", slog.String("projectId", proj.ID), slog.String("status", string(proj.Status)))
		return nil, nil
	}
	if stale(proj, payload) {
		slog.Info("researchworker: skipping stale job", slog.String("projectId", proj.ID))
		return nil, nil
	}

	now := time.Now()
	proj.Status = project.StatusRunning
	proj.ResearchStartedAt = &now
	if err := w.store.Update(ctx, proj); err != nil {
		if errors.Is(err, project.ErrConflict) {
			return nil, nil // the project row no longer exists
		}
		return nil, err
	}

	result, err := w.pipeline.Run(ctx, proj.UserID, proj.ID)
	if err != nil {
		// pipeline.Pipeline.Run already set status=error/lastError/cleared
		// researchStartedAt on the project; rethrow so the broker retries
		// per its policy (§4.H step 6).
		return nil, err
	}
	if result.Skipped {
		return nil, nil
	}

	fresh, err := w.store.Get(ctx, proj.UserID, proj.ID)
	if err != nil {
		return nil, err
	}
	if fresh.Status == project.StatusPaused || fresh.Status == project.StatusDeleted {
		slog.Info("researchworker: project paused/deleted mid-run, discarding prepared log", slog.String("projectId", proj.ID))
		return nil, nil
	}

	deliveredNow := time.Now()
	fresh.PreparedDeliveryLogID = &result.DeliveryLogID
	fresh.PreparedAt = &deliveredNow
	fresh.ResearchStartedAt = nil
	fresh.LastError = ""
	if fresh.Frequency == project.FrequencyOnce {
		fresh.Status = project.StatusPaused
	} else {
		fresh.Status = project.StatusActive
	}
	if err := w.store.Update(ctx, fresh); err != nil {
		if errors.Is(err, project.ErrConflict) {
			return nil, nil
		}
		return nil, err
	}

	out := message.New(schedule.JobPayload{
		UserID:       fresh.UserID,
		ProjectID:    fresh.ID,
		ProjectTitle: fresh.Title,
		NextRunAt:    epochMS(fresh.NextRunAt),
		IsRunNow:     true,
		IsOneShot:    fresh.ThisRunIsOneShot,
	})
	out.Headers().Set(message.HeaderKind, string(schedule.KindDelivery))
	out.Headers().Set(message.HeaderDedupKey, (schedule.JobPayload{ProjectID: fresh.ID, NextRunAt: epochMS(fresh.NextRunAt)}).DedupKey(schedule.KindDelivery))
	return []*message.Msg{out}, nil
}

func (w *Worker) Sleep() {
	time.Sleep(time.Second)
}

// stale implements §4.H step 2: a research job is stale if the project's
// nextRunAt has moved on since the job was enqueued and this isn't an
// explicit isRunNow request (e.g. a reconciler re-enqueue).
func stale(proj *project.Project, payload schedule.JobPayload) bool {
	if payload.IsRunNow {
		return false
	}
	if proj.NextRunAt == nil {
		return payload.NextRunAt != 0
	}
	return epochMS(proj.NextRunAt) != payload.NextRunAt
}

func epochMS(t *time.Time) int64 {
	if t == nil {
		return 0
	}
	return t.UnixMilli()
}

var _ interface {
	Work(ctx context.Context, msg *message.Msg) ([]*message.Msg, error)
	Sleep()
} = (*Worker)(nil)
