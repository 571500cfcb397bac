package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/briefloop/researchcore/project"
)

func TestNextRunAtDailySameDayIfBeforeDeliveryTime(t *testing.T) {
	now := time.Date(2026, 7, 30, 8, 0, 0, 0, time.UTC)
	next, err := NextRunAt(now, project.FrequencyDaily, "09:00", "UTC", 0, 0)
	require.NoError(t, err)
	require.Equal(t, time.Date(2026, 7, 30, 9, 0, 0, 0, time.UTC), next)
}

func TestNextRunAtDailyRollsToNextDayIfPastDeliveryTime(t *testing.T) {
	now := time.Date(2026, 7, 30, 10, 0, 0, 0, time.UTC)
	next, err := NextRunAt(now, project.FrequencyDaily, "09:00", "UTC", 0, 0)
	require.NoError(t, err)
	require.Equal(t, time.Date(2026, 7, 31, 9, 0, 0, 0, time.UTC), next)
}

func TestNextRunAtWeeklyMatchesDayOfWeek(t *testing.T) {
	// 2026-07-30 is a Thursday (ISO weekday 4). Ask for Monday (1).
	now := time.Date(2026, 7, 30, 8, 0, 0, 0, time.UTC)
	next, err := NextRunAt(now, project.FrequencyWeekly, "09:00", "UTC", 1, 0)
	require.NoError(t, err)
	require.Equal(t, time.Monday, next.Weekday())
	require.True(t, next.After(now))
}

func TestNextRunAtMonthlyClampsToLastDayOfShorterMonth(t *testing.T) {
	// dayOfMonth=31 in February: clamp to the 28th (2027 is not a leap year).
	now := time.Date(2027, 1, 31, 23, 0, 0, 0, time.UTC)
	next, err := NextRunAt(now, project.FrequencyMonthly, "09:00", "UTC", 0, 31)
	require.NoError(t, err)
	require.Equal(t, time.Date(2027, 2, 28, 9, 0, 0, 0, time.UTC), next)
}

func TestNextRunAtOnceReturnsFutureInstantOnce(t *testing.T) {
	now := time.Date(2026, 7, 30, 8, 0, 0, 0, time.UTC)
	next, err := NextRunAt(now, project.FrequencyOnce, "09:00", "UTC", 0, 0)
	require.NoError(t, err)
	require.True(t, next.After(now))
}
