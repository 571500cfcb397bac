package deliveryworker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/briefloop/researchcore/core/message"
	"github.com/briefloop/researchcore/email"
	"github.com/briefloop/researchcore/project"
	"github.com/briefloop/researchcore/project/memstore"
	"github.com/briefloop/researchcore/schedule"
)

type stubSender struct {
	result email.Result
	err    error
	calls  []email.Message
}

func (s *stubSender) Send(ctx context.Context, msg email.Message) (email.Result, error) {
	s.calls = append(s.calls, msg)
	return s.result, s.err
}

type stubRecipients struct{}

func (stubRecipients) EmailFor(ctx context.Context, userID string) (string, error) {
	return userID + "@example.com", nil
}

func newPreparedProject(id string, frequency project.Frequency, oneShot bool) (*project.Project, *project.DeliveryLog) {
	logID := "log-" + id
	p := &project.Project{
		ID:                    id,
		UserID:                "user-1",
		Title:                 "Widget tracker",
		Description:           "desc",
		Frequency:             frequency,
		DeliveryTime:          "09:00",
		Timezone:              "UTC",
		Status:                project.StatusActive,
		PreparedDeliveryLogID: &logID,
		ThisRunIsOneShot:      oneShot,
	}
	log := &project.DeliveryLog{
		ID:             logID,
		ProjectID:      id,
		Status:         project.DeliveryLogPending,
		ReportTitle:    "Weekly Report",
		ReportMarkdown: "# Report\n\nBody text with a [source](https://example.com) link.\n\n## References\n1. [Source](https://example.com) | 2026-07-01",
	}
	return p, log
}

func TestWorkDeliversAndAdvancesDailyProject(t *testing.T) {
	store := memstore.New()
	proj, log := newPreparedProject("proj-1", project.FrequencyDaily, false)
	require.NoError(t, store.Create(context.Background(), proj))
	require.NoError(t, store.CreateDeliveryLog(context.Background(), log))

	sender := &stubSender{result: email.Result{OK: true, ID: "email-1"}}
	w := New(store, sender, stubRecipients{})

	msg := message.New(schedule.JobPayload{UserID: proj.UserID, ProjectID: proj.ID})
	out, err := w.Work(context.Background(), msg)
	require.NoError(t, err)
	require.Empty(t, out)
	require.Len(t, sender.calls, 1)
	require.Equal(t, "user-1@example.com", sender.calls[0].To)
	require.NotContains(t, sender.calls[0].HTMLBody, "References")

	gotProj, err := store.Get(context.Background(), proj.UserID, proj.ID)
	require.NoError(t, err)
	require.Nil(t, gotProj.PreparedDeliveryLogID)
	require.NotNil(t, gotProj.NextRunAt)
	require.Equal(t, project.StatusActive, gotProj.Status)

	gotLog, err := store.GetDeliveryLog(context.Background(), log.ID)
	require.NoError(t, err)
	require.Equal(t, project.DeliveryLogSuccess, gotLog.Status)
	require.NotNil(t, gotLog.DeliveredAt)
}

func TestWorkOnceProjectPausesAndClearsNextRunAt(t *testing.T) {
	store := memstore.New()
	proj, log := newPreparedProject("proj-2", project.FrequencyOnce, false)
	require.NoError(t, store.Create(context.Background(), proj))
	require.NoError(t, store.CreateDeliveryLog(context.Background(), log))

	sender := &stubSender{result: email.Result{OK: true}}
	w := New(store, sender, stubRecipients{})

	_, err := w.Work(context.Background(), message.New(schedule.JobPayload{UserID: proj.UserID, ProjectID: proj.ID}))
	require.NoError(t, err)

	gotProj, err := store.Get(context.Background(), proj.UserID, proj.ID)
	require.NoError(t, err)
	require.Equal(t, project.StatusPaused, gotProj.Status)
	require.Nil(t, gotProj.NextRunAt)
}

func TestWorkOneShotIncrementsAnalytics(t *testing.T) {
	store := memstore.New()
	proj, log := newPreparedProject("proj-3", project.FrequencyDaily, true)
	require.NoError(t, store.Create(context.Background(), proj))
	require.NoError(t, store.CreateDeliveryLog(context.Background(), log))

	sender := &stubSender{result: email.Result{OK: true}}
	w := New(store, sender, stubRecipients{})

	_, err := w.Work(context.Background(), message.New(schedule.JobPayload{UserID: proj.UserID, ProjectID: proj.ID}))
	require.NoError(t, err)

	require.Equal(t, 1, store.OneShotCount(proj.UserID, time.Now()))

	gotProj, err := store.Get(context.Background(), proj.UserID, proj.ID)
	require.NoError(t, err)
	require.False(t, gotProj.ThisRunIsOneShot)
}

func TestWorkLeavesLogPendingOnSendFailure(t *testing.T) {
	store := memstore.New()
	proj, log := newPreparedProject("proj-4", project.FrequencyDaily, false)
	require.NoError(t, store.Create(context.Background(), proj))
	require.NoError(t, store.CreateDeliveryLog(context.Background(), log))

	sender := &stubSender{result: email.Result{OK: false}}
	w := New(store, sender, stubRecipients{})

	_, err := w.Work(context.Background(), message.New(schedule.JobPayload{UserID: proj.UserID, ProjectID: proj.ID}))
	require.Error(t, err)

	gotProj, err := store.Get(context.Background(), proj.UserID, proj.ID)
	require.NoError(t, err)
	require.NotNil(t, gotProj.PreparedDeliveryLogID)

	gotLog, err := store.GetDeliveryLog(context.Background(), log.ID)
	require.NoError(t, err)
	require.Equal(t, project.DeliveryLogPending, gotLog.Status)
}

func TestWorkSkipsProjectWithoutPreparedLog(t *testing.T) {
	store := memstore.New()
	proj := &project.Project{
		ID: "proj-5", UserID: "user-1", Title: "t", Description: "d",
		Frequency: project.FrequencyDaily, DeliveryTime: "09:00", Timezone: "UTC",
		Status: project.StatusActive,
	}
	require.NoError(t, store.Create(context.Background(), proj))

	sender := &stubSender{result: email.Result{OK: true}}
	w := New(store, sender, stubRecipients{})

	out, err := w.Work(context.Background(), message.New(schedule.JobPayload{UserID: proj.UserID, ProjectID: proj.ID}))
	require.NoError(t, err)
	require.Empty(t, out)
	require.Empty(t, sender.calls)
}

func TestStripReferencesRemovesSectionAndLinks(t *testing.T) {
	in := "# Title\n\nBody with [a link](https://x.test) inline.\n\n## References\n1. [a link](https://x.test)"
	out := stripReferences(in)
	require.NotContains(t, out, "References")
	require.NotContains(t, out, "https://x.test")
	require.Contains(t, out, "a link")
}
