// Package schedule is the Scheduler (§4.G): computing nextRunAt, polling the
// project store for due work every tick, and enqueuing research/delivery
// jobs idempotently.
package schedule

import (
	"context"
	"fmt"

	"github.com/briefloop/researchcore/core/broker"
	"github.com/briefloop/researchcore/core/message"
)

// JobKind distinguishes research jobs from delivery jobs on the wire
// (core/message.HeaderKind), even though both share the same payload shape
// (§3 "Job").
type JobKind string

const (
	KindResearch JobKind = "research"
	KindDelivery JobKind = "delivery"
)

// JobPayload is the single payload shape both research and delivery jobs
// carry (§3: "Research job payload: {userId, projectId, projectTitle,
// nextRunAt, isRunNow, isOneShot}. Delivery job payload: same shape.").
type JobPayload struct {
	UserID       string `json:"userId"`
	ProjectID    string `json:"projectId"`
	ProjectTitle string `json:"projectTitle"`
	NextRunAt    int64  `json:"nextRunAt"` // epoch ms; 0 for a frequency=once project with no future run
	IsRunNow     bool   `json:"isRunNow"`
	IsOneShot    bool   `json:"isOneShot"`
}

// DedupKey is "(projectId, nextRunAt)" (§4.G): re-scheduling before a prior
// job completes is a no-op because the broker's Produce treats an
// already-queued/in-flight dedup key as idempotent.
func (p JobPayload) DedupKey(kind JobKind) string {
	return fmt.Sprintf("%s:%s:%d", kind, p.ProjectID, p.NextRunAt)
}

// Enqueue produces a job message of the given kind, carrying the dedup key
// that makes re-scheduling idempotent.
func Enqueue(ctx context.Context, producer broker.Producer, kind JobKind, payload JobPayload) error {
	msg := message.New(payload)
	msg.Headers().Set(message.HeaderKind, string(kind))
	msg.Headers().Set(message.HeaderDedupKey, payload.DedupKey(kind))
	return producer.Produce(ctx, msg)
}
