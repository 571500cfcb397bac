package schedule

import (
	"time"

	"github.com/briefloop/researchcore/project"
)

// NextRunAt computes the soonest strictly-future instant whose local
// projection, in tz, equals deliveryTime and (for weekly/monthly) matches
// dayOfWeek/dayOfMonth, with day-of-month overflow snapping to the last day
// of a shorter month (§4.G, §8 invariant 10). frequency=once returns a
// single future instant the first time it's computed (the caller is
// responsible for not calling this again once a once-project has run —
// the delivery worker sets nextRunAt to nil after a once-project is
// delivered, see deliveryworker).
func NextRunAt(now time.Time, frequency project.Frequency, deliveryTime string, tz string, dayOfWeek, dayOfMonth int) (time.Time, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.Time{}, err
	}
	hh, mm, err := parseHHMM(deliveryTime)
	if err != nil {
		return time.Time{}, err
	}
	local := now.In(loc)

	switch frequency {
	case project.FrequencyOnce:
		candidate := time.Date(local.Year(), local.Month(), local.Day(), hh, mm, 0, 0, loc)
		if !candidate.After(local) {
			candidate = candidate.AddDate(0, 0, 1)
		}
		return candidate, nil

	case project.FrequencyDaily:
		candidate := time.Date(local.Year(), local.Month(), local.Day(), hh, mm, 0, 0, loc)
		if !candidate.After(local) {
			candidate = candidate.AddDate(0, 0, 1)
		}
		return candidate, nil

	case project.FrequencyWeekly:
		candidate := time.Date(local.Year(), local.Month(), local.Day(), hh, mm, 0, 0, loc)
		for {
			if candidate.After(local) && isoWeekday(candidate) == dayOfWeek {
				return candidate, nil
			}
			candidate = candidate.AddDate(0, 0, 1)
		}

	case project.FrequencyMonthly:
		candidate := monthlyCandidate(local.Year(), int(local.Month()), hh, mm, dayOfMonth, loc)
		if !candidate.After(local) {
			y, m := local.Year(), int(local.Month())+1
			if m > 12 {
				m = 1
				y++
			}
			candidate = monthlyCandidate(y, m, hh, mm, dayOfMonth, loc)
		}
		return candidate, nil

	default:
		candidate := time.Date(local.Year(), local.Month(), local.Day(), hh, mm, 0, 0, loc)
		if !candidate.After(local) {
			candidate = candidate.AddDate(0, 0, 1)
		}
		return candidate, nil
	}
}

// monthlyCandidate builds the delivery instant for (year, month), clamping
// dayOfMonth to the last day of a shorter month (e.g. dayOfMonth=31 in
// February lands on the 28th or 29th).
func monthlyCandidate(year, month, hh, mm, dayOfMonth int, loc *time.Location) time.Time {
	firstOfNext := time.Date(year, time.Month(month)+1, 1, 0, 0, 0, 0, loc)
	lastDay := firstOfNext.AddDate(0, 0, -1).Day()
	day := dayOfMonth
	if day > lastDay {
		day = lastDay
	}
	return time.Date(year, time.Month(month), day, hh, mm, 0, 0, loc)
}

// isoWeekday maps Go's time.Weekday (Sunday=0) onto the spec's 1-7
// dayOfWeek convention (1=Monday ... 7=Sunday), the ISO-8601 week numbering
// most scheduling UIs use.
func isoWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

func parseHHMM(s string) (hh, mm int, err error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, err
	}
	return t.Hour(), t.Minute(), nil
}
