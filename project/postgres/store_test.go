package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/briefloop/researchcore/project"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })
	db := sqlx.NewDb(mockDB, "sqlmock")
	return &Store{db: db}, mock
}

func TestStoreGetReturnsConflictOnNoRows(t *testing.T) {
	store, mock := newMockStore(t)
	rows := sqlmock.NewRows([]string{
		"id", "user_id", "title", "description", "frequency", "delivery_time", "timezone",
		"day_of_week", "day_of_month", "status", "priority_domains", "excluded_domains",
		"required_keywords", "excluded_keywords", "language", "region", "output_language",
		"date_range_preference", "next_run_at", "last_run_at", "research_started_at",
		"prepared_delivery_log_id", "prepared_at", "delivered_at", "last_error", "this_run_is_one_shot",
	})
	mock.ExpectQuery(`SELECT .* FROM projects WHERE id = \$1 AND user_id = \$2`).
		WithArgs("p1", "u1").
		WillReturnRows(rows)

	_, err := store.Get(context.Background(), "u1", "p1")
	require.ErrorIs(t, err, project.ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreUpdateNoRowsAffectedIsConflict(t *testing.T) {
	store, mock := newMockStore(t)

	now := time.Now()
	p := &project.Project{
		ID:           "p1",
		UserID:       "u1",
		Title:        "t",
		Frequency:    project.FrequencyDaily,
		DeliveryTime: "09:00",
		Timezone:     "UTC",
		Status:       project.StatusActive,
		NextRunAt:    &now,
	}

	mock.ExpectExec(`UPDATE projects SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Update(context.Background(), p)
	require.ErrorIs(t, err, project.ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreUpdateSucceeds(t *testing.T) {
	store, mock := newMockStore(t)

	now := time.Now()
	p := &project.Project{
		ID:           "p1",
		UserID:       "u1",
		Title:        "t",
		Frequency:    project.FrequencyDaily,
		DeliveryTime: "09:00",
		Timezone:     "UTC",
		Status:       project.StatusActive,
		NextRunAt:    &now,
	}

	mock.ExpectExec(`UPDATE projects SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Update(context.Background(), p)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreIncrementOneShotAnalytics(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO one_shot_analytics`).
		WithArgs("u1", "2026-07").
		WillReturnResult(sqlmock.NewResult(1, 1))

	month := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	err := store.IncrementOneShotAnalytics(context.Background(), "u1", month)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
