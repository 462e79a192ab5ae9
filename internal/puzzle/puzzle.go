// Package puzzle assigns one target character to each calendar date.
package puzzle

import (
	"fmt"
	"time"
)

// DateLayout is the civil-date key format used everywhere a date crosses a
// boundary (storage, wire, cache keys). No timezone component.
const DateLayout = "2006-01-02"

// DateKey returns the YYYY-MM-DD key for t in UTC.
func DateKey(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// ParseDate parses a YYYY-MM-DD key into a civil date.
func ParseDate(key string) (time.Time, error) {
	t, err := time.Parse(DateLayout, key)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad date %q: %w", key, err)
	}
	return t, nil
}

// IndexForDate returns the deterministic roster index for a date:
// day-of-year mod catalogSize. Day-of-year is computed against the date's own
// year, so past and future dates stay stable regardless of when they are
// resolved.
func IndexForDate(date time.Time, catalogSize int) int {
	if catalogSize <= 0 {
		return 0
	}
	return date.YearDay() % catalogSize
}

// NotFoundError reports that no puzzle can be produced for a date: the
// catalog is empty, or the assigned target id no longer resolves. Callers
// surface it as "puzzle unavailable" and must not retry.
type NotFoundError struct {
	Date   string
	Reason string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no puzzle for %s: %s", e.Date, e.Reason)
}
