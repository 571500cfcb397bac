package project

import (
	"context"
	"time"
)

// Store is the project-store interface the Scheduler, both workers, and
// the Recovery Reconciler consume (§6 "Project-store interface"): typed
// reads/writes plus the collection-wide predicate queries from §4.G/§4.J.
// Implementations: project/postgres (durable) and project/memstore (tests,
// §9 "explicit lifecycle" — memstore supports an explicit Reset for tests).
type Store interface {
	Get(ctx context.Context, userID, projectID string) (*Project, error)
	Create(ctx context.Context, p *Project) error
	// Update overwrites the stored project with p, matched by ID; callers
	// pass the full desired Project. It does not compare the stored
	// Status or PreparedDeliveryLogID before writing, so a concurrent
	// transition by another writer is not detected. ErrConflict is returned
	// only when no project with p.ID exists.
	Update(ctx context.Context, p *Project) error

	GetDeliveryLog(ctx context.Context, id string) (*DeliveryLog, error)
	CreateDeliveryLog(ctx context.Context, d *DeliveryLog) error
	UpdateDeliveryLog(ctx context.Context, d *DeliveryLog) error

	// QueryPreRun is the Scheduler's pre-run set (§4.G): status active/error,
	// no prepared log, now < nextRunAt <= now+window.
	QueryPreRun(ctx context.Context, now time.Time, window time.Duration) ([]*Project, error)
	// QueryRetry is the Scheduler's retry set (§4.G): status active/error,
	// no prepared log, nextRunAt <= now.
	QueryRetry(ctx context.Context, now time.Time) ([]*Project, error)
	// QueryNeedsDelivery selects projects ready for delivery selection
	// (§4.G delivery selection, and §4.J needs-delivery pass).
	QueryNeedsDelivery(ctx context.Context, now time.Time) ([]*Project, error)
	// QueryNeedsResearch is the reconciler's needs-research pass (§4.J#1).
	QueryNeedsResearch(ctx context.Context) ([]*Project, error)
	// QueryStuckRunning is the reconciler's stuck-running pass (§4.J#2).
	QueryStuckRunning(ctx context.Context, now time.Time, stuckThreshold time.Duration) ([]*Project, error)

	// IncrementOneShotAnalytics performs the transactional +1 from §4.I
	// step 3 for a user's monthly one-shot counter.
	IncrementOneShotAnalytics(ctx context.Context, userID string, month time.Time) error
}

// ErrConflict is the stores' not-found sentinel: Get and Update return it
// when no matching project exists, and GetDeliveryLog when no matching
// delivery log exists.
var ErrConflict = conflictError{}

type conflictError struct{}

func (conflictError) Error() string { return "project: update conflict" }
