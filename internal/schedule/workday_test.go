package schedule

import (
	"strings"
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.Local)
}

func TestWeekendsAreOffDays(t *testing.T) {
	cal := &CalendarWorkdays{}

	saturday := date(2026, time.August, 29)
	if workday, reason := cal.IsWorkday(saturday); workday || reason != "weekend" {
		t.Errorf("Saturday: got workday=%v reason=%q, want off-day/weekend", workday, reason)
	}

	sunday := date(2026, time.August, 30)
	if workday, _ := cal.IsWorkday(sunday); workday {
		t.Error("Sunday should not be a workday")
	}
}

func TestFixedHolidays(t *testing.T) {
	cal := &CalendarWorkdays{}

	cases := []struct {
		name string
		day  time.Time
	}{
		{"New Year's Day", date(2026, time.January, 1)},
		{"Christmas Eve", date(2025, time.December, 24)},
		{"Christmas Day", date(2025, time.December, 25)},
	}
	for _, tc := range cases {
		workday, reason := cal.IsWorkday(tc.day)
		if workday {
			t.Errorf("%s should not be a workday", tc.day.Format("2006-01-02"))
		}
		if !strings.Contains(reason, tc.name) {
			t.Errorf("%s: reason %q does not name the holiday %q", tc.day.Format("2006-01-02"), reason, tc.name)
		}
	}
}

func TestFloatingHolidays(t *testing.T) {
	cal := &CalendarWorkdays{}

	// 2026: Memorial Day May 25, Labor Day Sep 7, Thanksgiving Nov 26
	for _, day := range []time.Time{
		date(2026, time.May, 25),
		date(2026, time.September, 7),
		date(2026, time.November, 26),
		date(2026, time.November, 27),
	} {
		if workday, _ := cal.IsWorkday(day); workday {
			t.Errorf("%s should be a holiday", day.Format("2006-01-02"))
		}
	}
}

func TestAlternatingFridays(t *testing.T) {
	anchor := date(2026, time.August, 21) // a worked Friday
	cal := NewCalendarWorkdays(anchor)

	// The Friday one week after the anchor is off
	off := anchor.AddDate(0, 0, 7)
	if workday, reason := cal.IsWorkday(off); workday || reason != "off friday" {
		t.Errorf("Friday %s: got workday=%v reason=%q, want off friday",
			off.Format("2006-01-02"), workday, reason)
	}

	// Two weeks after the anchor is worked again
	worked := anchor.AddDate(0, 0, 14)
	if workday, _ := cal.IsWorkday(worked); !workday {
		t.Errorf("Friday %s should be a workday", worked.Format("2006-01-02"))
	}
}

func TestUnanchoredFridaysAreWorked(t *testing.T) {
	cal := &CalendarWorkdays{}
	if workday, _ := cal.IsWorkday(date(2026, time.August, 28)); !workday {
		t.Error("without a rotation anchor, Fridays default to worked")
	}
}

func TestRegularWeekdayIsWorkday(t *testing.T) {
	cal := &CalendarWorkdays{}

	wednesday := date(2026, time.August, 26)
	if workday, reason := cal.IsWorkday(wednesday); !workday || reason != "regular workday" {
		t.Errorf("Wednesday: got workday=%v reason=%q, want regular workday", workday, reason)
	}
}
