// Package timewindow evaluates whether a clock time falls inside a
// same-day window. Every window comparison in the system routes through
// here: scattered one-sided comparisons (now >= start) previously
// classified late-night times as inside the morning window.
package timewindow

import (
	"fmt"
	"time"
)

// ClockTime is a time of day independent of date
type ClockTime struct {
	Hour   int
	Minute int
	Second int
}

// ParseClock parses "HH:MM" or "HH:MM:SS" into a ClockTime
func ParseClock(s string) (ClockTime, error) {
	var ct ClockTime
	if _, err := fmt.Sscanf(s, "%d:%d:%d", &ct.Hour, &ct.Minute, &ct.Second); err != nil {
		ct.Second = 0
		if _, err := fmt.Sscanf(s, "%d:%d", &ct.Hour, &ct.Minute); err != nil {
			return ClockTime{}, fmt.Errorf("invalid clock time %q: %w", s, err)
		}
	}
	if ct.Hour < 0 || ct.Hour > 23 || ct.Minute < 0 || ct.Minute > 59 || ct.Second < 0 || ct.Second > 59 {
		return ClockTime{}, fmt.Errorf("clock time %q out of range", s)
	}
	return ct, nil
}

// MustParseClock is ParseClock for compile-time constants; panics on error
func MustParseClock(s string) ClockTime {
	ct, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return ct
}

// ClockOf extracts the clock time from t
func ClockOf(t time.Time) ClockTime {
	return ClockTime{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}
}

// String formats the clock time as HH:MM:SS
func (ct ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", ct.Hour, ct.Minute, ct.Second)
}

// seconds returns the clock time as seconds since midnight
func (ct ClockTime) seconds() int {
	return ct.Hour*3600 + ct.Minute*60 + ct.Second
}

// Before reports whether ct is strictly before other
func (ct ClockTime) Before(other ClockTime) bool {
	return ct.seconds() < other.seconds()
}

// AtOrAfter reports whether ct is at or after other
func (ct ClockTime) AtOrAfter(other ClockTime) bool {
	return ct.seconds() >= other.seconds()
}

// InWindow reports whether now falls within [start, end] inclusive.
// Both bounds are checked; a one-sided comparison would classify 23:12
// as inside a 04:45-08:00 morning window.
func InWindow(now, start, end ClockTime) bool {
	n := now.seconds()
	return start.seconds() <= n && n <= end.seconds()
}

// InWindowAt is InWindow over the clock component of a time.Time
func InWindowAt(now time.Time, start, end ClockTime) bool {
	return InWindow(ClockOf(now), start, end)
}
