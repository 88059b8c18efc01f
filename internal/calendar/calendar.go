// Package calendar does whole-day date arithmetic for stays.
package calendar

import (
	"time"

	"staybook/internal/domain"
)

const (
	DateLayout  = "2006-01-02"
	monthLayout = "2006-01"
)

// Day drops the time of day, keeping the calendar date as seen in t's location.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NightCount returns the number of nights between two calendar dates.
func NightCount(checkIn, checkOut time.Time) (int, error) {
	in, out := Day(checkIn), Day(checkOut)
	if !out.After(in) {
		return 0, domain.ErrInvalidRange
	}
	// both are UTC midnights, so every day is exactly 24h
	return int(out.Sub(in) / (24 * time.Hour)), nil
}

// GroupKey labels t for bucketing: "2006-01" when monthly, else "2006-01-02".
func GroupKey(t time.Time, monthly bool) string {
	t = t.UTC()
	if monthly {
		return t.Format(monthLayout)
	}
	return t.Format(DateLayout)
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}
