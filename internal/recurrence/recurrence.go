// Package recurrence computes schedule occurrence dates with calendar
// arithmetic. Months, quarters and years are added by calendar position, so
// the 31st of January plus one month is the last day of February.
package recurrence

import (
	"errors"
	"fmt"
	"time"

	"facilities-maintenance-backend/internal/model"
)

// ErrInvalidInterval is returned for a non-positive interval count.
var ErrInvalidInterval = errors.New("interval count must be positive")

// maxOccurrences bounds Between against runaway ranges.
const maxOccurrences = 10000

// Next returns anchor advanced by count units.
func Next(anchor time.Time, count int, unit model.IntervalUnit) (time.Time, error) {
	if count <= 0 {
		return time.Time{}, ErrInvalidInterval
	}
	return advance(anchor, count, unit)
}

// Between lists every occurrence anchor + k*count*unit (k >= 0) that falls in
// [from, to]. Each occurrence is computed from the anchor rather than from the
// previous occurrence, so a clamped month end does not drift.
func Between(anchor time.Time, count int, unit model.IntervalUnit, from, to time.Time) ([]time.Time, error) {
	if count <= 0 {
		return nil, ErrInvalidInterval
	}
	if to.Before(from) {
		return nil, nil
	}

	var out []time.Time
	for k := 0; k < maxOccurrences; k++ {
		t, err := advance(anchor, k*count, unit)
		if err != nil {
			return nil, err
		}
		if t.After(to) {
			return out, nil
		}
		if !t.Before(from) {
			out = append(out, t)
		}
	}
	return nil, fmt.Errorf("more than %d occurrences between %s and %s", maxOccurrences, from.Format(time.DateOnly), to.Format(time.DateOnly))
}

func advance(anchor time.Time, count int, unit model.IntervalUnit) (time.Time, error) {
	if count < 0 {
		return time.Time{}, ErrInvalidInterval
	}
	switch unit {
	case model.UnitDay:
		return anchor.AddDate(0, 0, count), nil
	case model.UnitWeek:
		return anchor.AddDate(0, 0, 7*count), nil
	case model.UnitMonth:
		return addMonths(anchor, count), nil
	case model.UnitQuarter:
		return addMonths(anchor, 3*count), nil
	case model.UnitYear:
		return addMonths(anchor, 12*count), nil
	}
	return time.Time{}, fmt.Errorf("unknown interval unit %q", unit)
}

// addMonths moves t by n calendar months, clamping the day to the last day of
// the target month. time.AddDate would normalise Feb 31 into March instead.
func addMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	total := int(m) - 1 + n
	year := y + total/12
	month := time.Month(total%12 + 1)

	if last := daysIn(year, month); d > last {
		d = last
	}
	return time.Date(year, month, d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
