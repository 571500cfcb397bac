package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/briefloop/researchcore/core/broker"
	"github.com/briefloop/researchcore/core/message"
	"github.com/briefloop/researchcore/project"
	"github.com/briefloop/researchcore/project/memstore"
)

func newActiveProject(id string, nextRunAt *time.Time) *project.Project {
	return &project.Project{
		ID:           id,
		UserID:       "user-1",
		Title:        "Weekly market scan",
		Frequency:    project.FrequencyDaily,
		DeliveryTime: "09:00",
		Timezone:     "UTC",
		Status:       project.StatusActive,
		NextRunAt:    nextRunAt,
	}
}

func drain(t *testing.T, b *broker.InMemory) []*message.Msg {
	t.Helper()
	var out []*message.Msg
	for {
		msg, id, err := b.Consume(context.Background())
		require.NoError(t, err)
		if msg == nil {
			break
		}
		out = append(out, msg)
		require.NoError(t, b.Ack(context.Background(), id))
	}
	return out
}

func TestSchedulerEnqueuesResearchForPreRunProject(t *testing.T) {
	store := memstore.New()
	nextRun := time.Now().Add(5 * time.Minute)
	p := newActiveProject("proj-1", &nextRun)
	require.NoError(t, store.Create(context.Background(), p))

	producer := broker.NewInMemory()
	s := New(store, producer, producer, Config{CheckWindowMinutes: 15})
	s.Work()

	msgs := drain(t, producer)
	require.Len(t, msgs, 1)
	kind, ok := msgs[0].Headers().Get(message.HeaderKind)
	require.True(t, ok)
	require.Equal(t, string(KindResearch), kind)

	got, err := store.Get(context.Background(), "user-1", "proj-1")
	require.NoError(t, err)
	require.Equal(t, project.StatusRunning, got.Status)
	require.NotNil(t, got.ResearchStartedAt)
}

func TestSchedulerEnqueuesResearchForOverdueRetryProject(t *testing.T) {
	store := memstore.New()
	nextRun := time.Now().Add(-time.Hour)
	p := newActiveProject("proj-2", &nextRun)
	require.NoError(t, store.Create(context.Background(), p))

	producer := broker.NewInMemory()
	s := New(store, producer, producer, Config{CheckWindowMinutes: 15})
	s.Work()

	msgs := drain(t, producer)
	require.Len(t, msgs, 1)
}

func TestSchedulerDoesNotReEnqueueProjectAlreadyRunning(t *testing.T) {
	store := memstore.New()
	nextRun := time.Now().Add(5 * time.Minute)
	startedAt := time.Now().Add(-time.Minute)
	p := newActiveProject("proj-3", &nextRun)
	p.Status = project.StatusRunning
	p.ResearchStartedAt = &startedAt
	require.NoError(t, store.Create(context.Background(), p))

	producer := broker.NewInMemory()
	s := New(store, producer, producer, Config{CheckWindowMinutes: 15})
	s.Work()

	msgs := drain(t, producer)
	require.Empty(t, msgs)
}

func TestSchedulerDoesNotReEnqueueProjectWithPreparedDelivery(t *testing.T) {
	store := memstore.New()
	nextRun := time.Now().Add(-time.Hour)
	p := newActiveProject("proj-4", &nextRun)
	logID := "log-1"
	p.PreparedDeliveryLogID = &logID
	require.NoError(t, store.Create(context.Background(), p))

	producer := broker.NewInMemory()
	s := New(store, producer, producer, Config{CheckWindowMinutes: 15})
	s.Work()

	msgs := drain(t, producer)
	for _, msg := range msgs {
		kind, _ := msg.Headers().Get(message.HeaderKind)
		require.NotEqual(t, string(KindResearch), kind)
	}
}

func TestSchedulerEnqueuesDeliveryWhenPrepared(t *testing.T) {
	store := memstore.New()
	nextRun := time.Now().Add(-time.Hour)
	p := newActiveProject("proj-5", &nextRun)
	logID := "log-2"
	p.PreparedDeliveryLogID = &logID
	require.NoError(t, store.Create(context.Background(), p))

	producer := broker.NewInMemory()
	s := New(store, producer, producer, Config{CheckWindowMinutes: 15})
	s.Work()

	msgs := drain(t, producer)
	require.Len(t, msgs, 1)
	kind, ok := msgs[0].Headers().Get(message.HeaderKind)
	require.True(t, ok)
	require.Equal(t, string(KindDelivery), kind)

	var payload JobPayload
	require.NoError(t, msgs[0].Unmarshal(&payload))
	require.True(t, payload.IsRunNow)
}

func TestSchedulerDoesNotEnqueueDeliveryWhenNextRunAtIsFuture(t *testing.T) {
	store := memstore.New()
	nextRun := time.Now().Add(2 * time.Hour)
	p := newActiveProject("proj-6", &nextRun)
	logID := "log-3"
	p.PreparedDeliveryLogID = &logID
	require.NoError(t, store.Create(context.Background(), p))

	producer := broker.NewInMemory()
	s := New(store, producer, producer, Config{CheckWindowMinutes: 15})
	s.Work()

	// nextRunAt is 2h out, outside the 15m pre-run window and not due for
	// delivery yet either, so nothing should be enqueued.
	msgs := drain(t, producer)
	require.Empty(t, msgs)
}

func TestSchedulerIgnoresPausedAndDeletedProjects(t *testing.T) {
	store := memstore.New()
	nextRun := time.Now().Add(-time.Hour)

	paused := newActiveProject("proj-7", &nextRun)
	paused.Status = project.StatusPaused
	require.NoError(t, store.Create(context.Background(), paused))

	deleted := newActiveProject("proj-8", &nextRun)
	deleted.Status = project.StatusDeleted
	require.NoError(t, store.Create(context.Background(), deleted))

	producer := broker.NewInMemory()
	s := New(store, producer, producer, Config{CheckWindowMinutes: 15})
	s.Work()

	msgs := drain(t, producer)
	require.Empty(t, msgs)
}

func TestSchedulerDefaultsCheckWindow(t *testing.T) {
	s := New(memstore.New(), broker.NewInMemory(), broker.NewInMemory(), Config{})
	require.Equal(t, 15, s.cfg.CheckWindowMinutes)
}
