// Package timeutil provides timezone utilities for the academy's local time.
// Day closing and monthly payroll boundaries are computed in this timezone,
// never in the server's local zone.
package timeutil

import (
	"fmt"
	"sync"
	"time"
)

// DefaultTZ is Pakistan Standard Time (UTC+5, no DST).
var DefaultTZ = time.FixedZone("Asia/Karachi", 5*60*60)

// DateLayout is the wire format for calendar days.
const DateLayout = "2006-01-02"

var (
	mu       sync.RWMutex
	location = DefaultTZ
)

// SetLocation replaces the academy timezone. Intended for startup only.
func SetLocation(loc *time.Location) {
	if loc == nil {
		return
	}
	mu.Lock()
	location = loc
	mu.Unlock()
}

// LoadLocation resolves an IANA name and installs it as the academy timezone.
func LoadLocation(name string) error {
	if name == "" {
		return nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return fmt.Errorf("timeutil: load location %q: %w", name, err)
	}
	SetLocation(loc)
	return nil
}

// Location returns the academy timezone.
func Location() *time.Location {
	mu.RLock()
	defer mu.RUnlock()
	return location
}

// Clock returns the current time. Handlers take a Clock so tests can pin "now".
type Clock func() time.Time

// Now returns the current time in the academy timezone.
func Now() time.Time {
	return time.Now().In(Location())
}

// FixedClock returns a Clock that always reports t.
func FixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

// Local converts a time to the academy timezone.
func Local(t time.Time) time.Time {
	return t.In(Location())
}

// Date creates a time in the academy timezone with the given date.
func Date(year, month, day int) time.Time {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, Location())
}

// StartOfDay returns the start of the day (00:00:00) in the academy timezone.
func StartOfDay(t time.Time) time.Time {
	l := Local(t)
	return time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, l.Location())
}

// EndOfDay returns the end of the day (23:59:59.999999999) in the academy timezone.
func EndOfDay(t time.Time) time.Time {
	l := Local(t)
	return time.Date(l.Year(), l.Month(), l.Day(), 23, 59, 59, 999999999, l.Location())
}

// StartOfMonth returns the first instant of the month.
func StartOfMonth(t time.Time) time.Time {
	l := Local(t)
	return time.Date(l.Year(), l.Month(), 1, 0, 0, 0, 0, l.Location())
}

// EndOfMonth returns the last instant of the month.
func EndOfMonth(t time.Time) time.Time {
	return StartOfMonth(t).AddDate(0, 1, 0).Add(-time.Nanosecond)
}

// MonthYear returns the calendar month and year of t in the academy timezone.
func MonthYear(t time.Time) (int, int) {
	l := Local(t)
	return int(l.Month()), l.Year()
}

// SameDay reports whether a and b fall on the same academy calendar day.
func SameDay(a, b time.Time) bool {
	la, lb := Local(a), Local(b)
	return la.Year() == lb.Year() && la.YearDay() == lb.YearDay()
}

// ParseDate parses a YYYY-MM-DD day in the academy timezone.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("timeutil: parse date %q: %w", s, err)
	}
	return t, nil
}

// FormatDate formats t as YYYY-MM-DD in the academy timezone.
func FormatDate(t time.Time) string {
	return Local(t).Format(DateLayout)
}
