package billing

import (
	"time"

	"meterboard/internal/types"
)

// AddStep advances t by one cadence unit using civil-calendar arithmetic.
// The day-of-month is clamped to the target month's length, so stepping
// from Jan 31 lands on Feb 28 (or 29), never in March. Clock time and
// location are preserved.
func AddStep(t time.Time, interval types.RecurringInterval) time.Time {
	if interval == types.IntervalYear {
		return addMonths(t, 12)
	}
	return addMonths(t, 1)
}

func addMonths(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	hour, min, sec := t.Clock()

	// Normalize via the first of the target month, then clamp the day.
	first := time.Date(year, month+time.Month(months), 1, hour, min, sec, t.Nanosecond(), t.Location())
	if last := daysIn(first.Year(), first.Month(), t.Location()); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, hour, min, sec, t.Nanosecond(), t.Location())
}

// daysIn returns the number of days in the given month. Day 0 of the
// following month normalizes to the last day of this one.
func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}
