// Package deliveryworker is the Delivery Worker (§4.I): a
// core/worker.StreamWorker that re-reads the pending delivery log, renders
// and sends the report, and advances project state on success. Concurrency
// (2) and the 2-jobs/1200ms vendor rate limit are applied by the caller
// (a rate.Limiter wrapping the broker consume step, per cmd/ wiring) rather
// than inside Work itself, the same separation StreamJob already draws
// between its own MaxInFlight bound and worker-specific behavior.
package deliveryworker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/briefloop/researchcore/core/message"
	"github.com/briefloop/researchcore/email"
	"github.com/briefloop/researchcore/project"
	"github.com/briefloop/researchcore/schedule"
)

// Recipients resolves a project's owning user to a send-to address. User
// profile storage is out of scope (§1 "Out of scope"/§2 "external
// collaborators"); this is the narrow seam the delivery worker needs from
// that external system.
type Recipients interface {
	EmailFor(ctx context.Context, userID string) (string, error)
}

type Worker struct {
	store      project.Store
	sender     email.Sender
	recipients Recipients
}

func New(store project.Store, sender email.Sender, recipients Recipients) *Worker {
	return &Worker{store: store, sender: sender, recipients: recipients}
}

// Work implements core/worker.StreamWorker (§4.I steps 1-4).
func (w *Worker) Work(ctx context.Context, msg *message.Msg) ([]*message.Msg, error) {
	var payload schedule.JobPayload
	if err := msg.Unmarshal(&payload); err != nil {
		return nil, err
	}

	proj, err := w.store.Get(ctx, payload.UserID, payload.ProjectID)
	if err != nil {
		return nil, nil // project gone; nothing to deliver
	}
	if proj.PreparedDeliveryLogID == nil {
		return nil, nil // already delivered, or never prepared; not re-entrant
	}

	log, err := w.store.GetDeliveryLog(ctx, *proj.PreparedDeliveryLogID)
	if err != nil {
		return nil, err
	}
	if log.Terminal() {
		return nil, nil // crash-recovered re-delivery of an already-terminal log
	}

	to, err := w.recipients.EmailFor(ctx, proj.UserID)
	if err != nil {
		return nil, err
	}

	htmlBody := renderHTML(stripReferences(log.ReportMarkdown))
	subject := log.ReportTitle
	if subject == "" {
		subject = proj.Title
	}

	result, err := w.sender.Send(ctx, email.Message{To: to, Subject: subject, HTMLBody: htmlBody})
	if err != nil || !result.OK {
		// Do not clear preparedDeliveryLogId; leave the log pending so the
		// broker's retry/backoff policy re-delivers (§4.I step 4). Do not
		// re-run research.
		if err == nil {
			err = fmt.Errorf("deliveryworker: vendor rejected send")
		}
		return nil, err
	}

	now := time.Now()
	log.Status = project.DeliveryLogSuccess
	log.DeliveredAt = &now
	if err := w.store.UpdateDeliveryLog(ctx, log); err != nil {
		return nil, err
	}

	wasOneShot := proj.ThisRunIsOneShot
	if proj.Frequency == project.FrequencyOnce || wasOneShot {
		proj.Status = project.StatusPaused
		proj.NextRunAt = nil
		proj.ThisRunIsOneShot = false
	} else {
		next, err := schedule.NextRunAt(now, proj.Frequency, proj.DeliveryTime, proj.Timezone, proj.DayOfWeek, proj.DayOfMonth)
		if err != nil {
			return nil, err
		}
		proj.NextRunAt = &next
	}
	proj.PreparedDeliveryLogID = nil
	proj.PreparedAt = nil
	proj.LastRunAt = &now

	if err := w.store.Update(ctx, proj); err != nil && !errors.Is(err, project.ErrConflict) {
		return nil, err
	}

	if wasOneShot {
		if err := w.store.IncrementOneShotAnalytics(ctx, proj.UserID, now); err != nil {
			return nil, err
		}
	}

	return nil, nil
}

func (w *Worker) Sleep() {
	time.Sleep(time.Second)
}

var _ interface {
	Work(ctx context.Context, msg *message.Msg) ([]*message.Msg, error)
	Sleep()
} = (*Worker)(nil)
