package domain

import (
	"fmt"
	"time"
)

func (s AttributionStatus) rank() int {
	switch s {
	case AttributionClick:
		return 0
	case AttributionConversion:
		return 1
	case AttributionPaid:
		return 2
	}
	return -1
}

func (s AttributionStatus) Valid() bool { return s.rank() >= 0 }

// AdvanceAttribution decides a status move for an attribution row.
// It returns changed=false with a nil error when the target was already reached,
// which callers treat as an idempotent retry.
func AdvanceAttribution(current, target AttributionStatus) (changed bool, err error) {
	if !current.Valid() || !target.Valid() {
		return false, fmt.Errorf("%w: unknown attribution status %q -> %q", ErrInvalidState, current, target)
	}
	switch {
	case current == target:
		return false, nil
	case target.rank() == current.rank()+1:
		return true, nil
	case target == AttributionConversion && current == AttributionPaid:
		return false, nil
	default:
		return false, fmt.Errorf("%w: attribution %s -> %s", ErrInvalidState, current, target)
	}
}

// UTCDay returns the calendar day of t in UTC.
func UTCDay(t time.Time) string { return t.UTC().Format(DayLayout) }

// NextUTCMidnight returns the first day boundary strictly after t.
func NextUTCMidnight(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
}
