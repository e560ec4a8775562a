package schedule

import (
	"fmt"
	"time"
)

// WorkdayProvider answers whether a date is a working day. Implementations
// may consult an external work-schedule signal; the calendar rules here
// are the built-in provider.
type WorkdayProvider interface {
	IsWorkday(date time.Time) (bool, string)
}

// CalendarWorkdays implements the household work calendar: Monday-Friday
// minus holidays and alternating off Fridays.
type CalendarWorkdays struct {
	// LastFridayWorked anchors the every-other-Friday rotation
	LastFridayWorked time.Time
}

// NewCalendarWorkdays returns the provider with the rotation anchored on
// the given reference Friday
func NewCalendarWorkdays(lastFridayWorked time.Time) *CalendarWorkdays {
	return &CalendarWorkdays{LastFridayWorked: lastFridayWorked}
}

// IsWorkday reports whether date is a working day together with the
// reason for the classification
func (c *CalendarWorkdays) IsWorkday(date time.Time) (bool, string) {
	switch date.Weekday() {
	case time.Saturday, time.Sunday:
		return false, "weekend"
	}

	if name, ok := holidayName(date); ok {
		return false, fmt.Sprintf("holiday: %s", name)
	}

	if date.Weekday() == time.Friday && c.isOffFriday(date) {
		return false, "off friday"
	}

	return true, "regular workday"
}

// isOffFriday reports whether a Friday falls on the off week of the
// alternating rotation
func (c *CalendarWorkdays) isOffFriday(date time.Time) bool {
	if c.LastFridayWorked.IsZero() {
		return false
	}
	days := int(date.Sub(c.LastFridayWorked).Hours() / 24)
	weeks := days / 7
	return weeks%2 == 1
}

// fixedHolidays holds holidays on the same date every year
var fixedHolidays = map[[2]int]string{
	{1, 1}:   "New Year's Day",
	{7, 4}:   "Fourth of July",
	{12, 24}: "Christmas Eve",
	{12, 25}: "Christmas Day",
}

// holidayName returns the holiday name for a date, if any
func holidayName(date time.Time) (string, bool) {
	if name, ok := fixedHolidays[[2]int{int(date.Month()), date.Day()}]; ok {
		return name, true
	}

	year := date.Year()
	floating := map[string]time.Time{
		"Memorial Day":           memorialDay(year),
		"Labor Day":              laborDay(year),
		"Thanksgiving":           thanksgiving(year),
		"Day After Thanksgiving": thanksgiving(year).AddDate(0, 0, 1),
	}
	for name, d := range floating {
		if sameDate(date, d) {
			return name, true
		}
	}
	return "", false
}

// memorialDay returns the last Monday in May
func memorialDay(year int) time.Time {
	d := time.Date(year, time.May, 31, 0, 0, 0, 0, time.Local)
	for d.Weekday() != time.Monday {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

// laborDay returns the first Monday in September
func laborDay(year int) time.Time {
	d := time.Date(year, time.September, 1, 0, 0, 0, 0, time.Local)
	for d.Weekday() != time.Monday {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

// thanksgiving returns the fourth Thursday in November
func thanksgiving(year int) time.Time {
	d := time.Date(year, time.November, 1, 0, 0, 0, 0, time.Local)
	for d.Weekday() != time.Thursday {
		d = d.AddDate(0, 0, 1)
	}
	return d.AddDate(0, 0, 21)
}

func sameDate(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}
