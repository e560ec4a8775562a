package schedule

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/halviala/als-platform/internal/conditions"
)

func testParams() Params {
	return Params{
		Latitude:           60.1695,
		Longitude:          24.9354,
		WorkdayRampMinutes: 50,
		OffdayRampMinutes:  75,
		StartBrightness:    10,
		EndBrightness:      100,
		StartKelvin:        2000,
		EndKelvin:          4000,
	}
}

func testCalculator() *Calculator {
	return NewCalculator(testParams(), &CalendarWorkdays{}, slog.Default())
}

type fixedWorkday struct {
	workday bool
}

func (f fixedWorkday) IsWorkday(time.Time) (bool, string) {
	if f.workday {
		return true, "regular workday"
	}
	return false, "weekend"
}

func fixedSunrise(hour, minute int) func(time.Time) (time.Time, error) {
	return func(d time.Time) (time.Time, error) {
		return dateAt(d, hour, minute), nil
	}
}

func TestTransitionIsSunrisePlusBuffer(t *testing.T) {
	c := NewCalculator(testParams(), fixedWorkday{workday: true}, slog.Default())
	c.sunrise = fixedSunrise(6, 0)

	// Summer: no seasonal timing adjustment, workday buffer is 60min
	day := date(2026, time.July, 15)
	sched := c.Calculate(day, nil)

	want := dateAt(day, 7, 0)
	if !sched.MorningDayTransitionTime.Equal(want) {
		t.Errorf("transition = %s, want %s",
			sched.MorningDayTransitionTime.Format("15:04"), want.Format("15:04"))
	}
	if !sched.IsWorkday {
		t.Error("expected a workday schedule")
	}
}

func TestOffDayUsesLongerBuffer(t *testing.T) {
	c := NewCalculator(testParams(), fixedWorkday{workday: false}, slog.Default())
	c.sunrise = fixedSunrise(6, 0)

	day := date(2026, time.July, 18)
	sched := c.Calculate(day, nil)

	want := dateAt(day, 7, 30)
	if !sched.MorningDayTransitionTime.Equal(want) {
		t.Errorf("off-day transition = %s, want %s",
			sched.MorningDayTransitionTime.Format("15:04"), want.Format("15:04"))
	}
}

func TestTransitionClampedToDailyBounds(t *testing.T) {
	cases := []struct {
		name        string
		sunriseHour int
		sunriseMin  int
		workday     bool
		wantHour    int
		wantMin     int
	}{
		{"early summer sunrise clamps to workday floor", 3, 50, true, 6, 0},
		{"late winter sunrise clamps to workday ceiling", 9, 30, true, 8, 30},
		{"early sunrise clamps to off-day floor", 3, 50, false, 7, 0},
		{"late sunrise clamps to off-day ceiling", 9, 30, false, 10, 0},
	}

	day := date(2026, time.July, 15)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := NewCalculator(testParams(), fixedWorkday{workday: tc.workday}, slog.Default())
			c.sunrise = fixedSunrise(tc.sunriseHour, tc.sunriseMin)

			sched := c.Calculate(day, nil)
			want := dateAt(day, tc.wantHour, tc.wantMin)
			if !sched.MorningDayTransitionTime.Equal(want) {
				t.Errorf("transition = %s, want %s",
					sched.MorningDayTransitionTime.Format("15:04"), want.Format("15:04"))
			}
		})
	}
}

func TestWorkdayTransitionAlwaysWithinBounds(t *testing.T) {
	c := NewCalculator(testParams(), fixedWorkday{workday: true}, slog.Default())

	// A full year of real sunrises must never escape the clamp window
	day := time.Date(2026, time.January, 1, 12, 0, 0, 0, time.Local)
	for i := 0; i < 365; i++ {
		sched := c.Calculate(day, nil)
		tr := sched.MorningDayTransitionTime
		floor := dateAt(day, 6, 0)
		ceiling := dateAt(day, 8, 30)
		if tr.Before(floor) || tr.After(ceiling) {
			t.Errorf("%s: transition %s outside 06:00-08:30",
				day.Format("2006-01-02"), tr.Format("15:04"))
		}
		day = day.AddDate(0, 0, 1)
	}
}

func TestSeasonalTimingAdjustment(t *testing.T) {
	day := date(2026, time.January, 15) // winter: -15min

	c := NewCalculator(testParams(), fixedWorkday{workday: true}, slog.Default())
	c.sunrise = fixedSunrise(6, 30)

	sched := c.Calculate(day, nil)
	// 06:30 + 60 - 15 = 07:15
	want := dateAt(day, 7, 15)
	if !sched.MorningDayTransitionTime.Equal(want) {
		t.Errorf("winter transition = %s, want %s",
			sched.MorningDayTransitionTime.Format("15:04"), want.Format("15:04"))
	}
	if sched.Seasonal.Season != conditions.SeasonWinter {
		t.Errorf("season = %s, want Winter", sched.Seasonal.Season)
	}
	if sched.Seasonal.BrightnessBoostPercent != 10 {
		t.Errorf("winter brightness boost = %d, want 10", sched.Seasonal.BrightnessBoostPercent)
	}
}

func TestSunriseFailureFallsBackToSeasonalTable(t *testing.T) {
	c := NewCalculator(testParams(), fixedWorkday{workday: true}, slog.Default())
	c.sunrise = func(time.Time) (time.Time, error) {
		return time.Time{}, errors.New("ephemeris unavailable")
	}

	day := date(2026, time.January, 12)
	sched := c.Calculate(day, nil)

	if !sched.SunriseTime.Equal(dateAt(day, 7, 15)) {
		t.Errorf("winter approximate sunrise = %s, want 07:15",
			sched.SunriseTime.Format("15:04"))
	}
	// The schedule is still produced, never an error
	floor := dateAt(day, 6, 0)
	ceiling := dateAt(day, 8, 30)
	tr := sched.MorningDayTransitionTime
	if tr.Before(floor) || tr.After(ceiling) {
		t.Errorf("fallback transition %s outside workday bounds", tr.Format("15:04"))
	}

	// Dec 20 is still fall, Dec 21 is the winter solstice
	preSolstice := date(2026, time.December, 20)
	if got := c.Calculate(preSolstice, nil).SunriseTime; !got.Equal(dateAt(preSolstice, 6, 30)) {
		t.Errorf("fall approximate sunrise = %s, want 06:30", got.Format("15:04"))
	}
	solstice := date(2026, time.December, 21)
	if got := c.Calculate(solstice, nil).SunriseTime; !got.Equal(dateAt(solstice, 7, 15)) {
		t.Errorf("solstice approximate sunrise = %s, want 07:15", got.Format("15:04"))
	}
}

func TestExplicitWorkdayOverrideWins(t *testing.T) {
	c := NewCalculator(testParams(), fixedWorkday{workday: true}, slog.Default())
	c.sunrise = fixedSunrise(6, 0)

	override := false
	sched := c.Calculate(date(2026, time.July, 15), &override)

	if sched.IsWorkday {
		t.Error("explicit override should force an off-day")
	}
	if sched.WorkdaySource != "explicit_override" {
		t.Errorf("workday source = %q, want explicit_override", sched.WorkdaySource)
	}
}

func TestFallbackSchedule(t *testing.T) {
	c := testCalculator()
	day := date(2026, time.March, 3)

	sched := c.FallbackSchedule(day, "state load failed")
	if !sched.Fallback() {
		t.Error("fallback schedule should report Fallback()")
	}
	if !sched.IsWorkday {
		t.Error("fallback schedule defaults to workday")
	}
	if !sched.MorningDayTransitionTime.Equal(dateAt(day, 7, 30)) {
		t.Errorf("fallback transition = %s, want 07:30",
			sched.MorningDayTransitionTime.Format("15:04"))
	}
}

func TestCalculateRecoversToFallback(t *testing.T) {
	c := testCalculator()
	c.sunrise = func(time.Time) (time.Time, error) {
		panic("ephemeris table corrupted")
	}

	day := date(2026, time.March, 3)
	sched := c.Calculate(day, nil)
	if !sched.Fallback() {
		t.Fatal("expected fallback schedule after calculation panic")
	}
	if sched.FallbackReason != "calculation_failure" {
		t.Errorf("fallback reason = %q, want calculation_failure", sched.FallbackReason)
	}
	if !sched.MorningDayTransitionTime.Equal(dateAt(day, 7, 30)) {
		t.Errorf("fallback transition = %s, want 07:30",
			sched.MorningDayTransitionTime.Format("15:04"))
	}
}

func TestCurrentCachesPerDay(t *testing.T) {
	c := testCalculator()

	now := time.Date(2026, time.August, 30, 9, 0, 0, 0, time.Local)
	c.now = func() time.Time { return now }

	first := c.Current()
	second := c.Current()
	if first != second {
		t.Error("same-day Current() should return the cached schedule")
	}

	now = now.AddDate(0, 0, 1)
	third := c.Current()
	if third == first {
		t.Error("date rollover should recalculate")
	}
	if third.CalculationDate != "2026-08-31" {
		t.Errorf("recalculated date = %s, want 2026-08-31", third.CalculationDate)
	}
}

func TestRampParametersReflectWorkday(t *testing.T) {
	c := NewCalculator(testParams(), fixedWorkday{workday: true}, slog.Default())
	c.sunrise = fixedSunrise(6, 0)

	summer := c.Calculate(date(2026, time.July, 15), nil)
	if summer.Ramp.DurationMinutes != 50 {
		t.Errorf("summer workday ramp = %dmin, want 50", summer.Ramp.DurationMinutes)
	}

	winter := c.Calculate(date(2026, time.January, 15), nil)
	if winter.Ramp.DurationMinutes != 55 {
		t.Errorf("winter workday ramp = %dmin, want 55", winter.Ramp.DurationMinutes)
	}
	if winter.Ramp.EndBrightnessPercent != 100 {
		t.Errorf("end brightness capped at 100, got %d", winter.Ramp.EndBrightnessPercent)
	}
}

func TestSunElevationRange(t *testing.T) {
	noon := time.Date(2026, time.June, 21, 12, 0, 0, 0, time.UTC)
	elev := SunElevation(noon, 60.1695, 24.9354)
	if elev < 0 || elev > 90 {
		t.Errorf("midsummer noon elevation = %.1f, want within (0, 90]", elev)
	}

	midnight := time.Date(2026, time.December, 21, 0, 0, 0, 0, time.UTC)
	if elev := SunElevation(midnight, 60.1695, 24.9354); elev >= 0 {
		t.Errorf("midwinter midnight elevation = %.1f, want negative", elev)
	}
}
