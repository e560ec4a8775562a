// Package schedule computes the day's sunrise-anchored morning
// transition time and ramp parameters.
package schedule

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/sixdouglas/suncalc"

	"github.com/halviala/als-platform/internal/conditions"
	"github.com/halviala/als-platform/internal/faults"
)

// SeasonalAdjustments carries the season-dependent corrections applied
// to timing and brightness
type SeasonalAdjustments struct {
	Season                  conditions.Season `json:"season"`
	BrightnessBoostPercent  int               `json:"brightness_boost_percent"`
	TimingAdjustmentMinutes int               `json:"timing_adjustment_minutes"`
}

// RampParameters describes the morning ramp curve for the day
type RampParameters struct {
	DurationMinutes        int    `json:"duration_minutes"`
	StartBrightnessPercent int    `json:"start_brightness_percent"`
	EndBrightnessPercent   int    `json:"end_brightness_percent"`
	StartTemperatureKelvin int    `json:"start_temperature_kelvin"`
	EndTemperatureKelvin   int    `json:"end_temperature_kelvin"`
	CurveType              string `json:"curve_type"`
}

// Schedule is the complete calculated plan for one calendar day
type Schedule struct {
	CalculationDate          string              `json:"calculation_date"`
	CalculatedAt             time.Time           `json:"calculated_at"`
	IsWorkday                bool                `json:"is_workday"`
	WorkdaySource            string              `json:"workday_source"`
	SunriseTime              time.Time           `json:"sunrise_time"`
	MorningDayTransitionTime time.Time           `json:"morning_day_transition_time"`
	Seasonal                 SeasonalAdjustments `json:"seasonal_adjustments"`
	Ramp                     RampParameters      `json:"ramp_parameters"`
	FallbackReason           string              `json:"fallback_reason,omitempty"`
}

// Fallback reports whether this schedule is the hardcoded safe default
func (s *Schedule) Fallback() bool {
	return s.FallbackReason != ""
}

// Params configures a Calculator
type Params struct {
	Latitude           float64
	Longitude          float64
	WorkdayRampMinutes int
	OffdayRampMinutes  int
	StartBrightness    int
	EndBrightness      int
	StartKelvin        int
	EndKelvin          int
}

// Calculator computes and caches the daily schedule. Safe for
// concurrent use; recomputation is guarded by the cached date, so a
// double trigger recalculates idempotently rather than corrupting
// state.
type Calculator struct {
	params   Params
	workdays WorkdayProvider
	logger   *slog.Logger

	mu     sync.Mutex
	cached *Schedule

	now     func() time.Time
	sunrise func(date time.Time) (time.Time, error)
}

// NewCalculator creates a schedule calculator
func NewCalculator(params Params, workdays WorkdayProvider, logger *slog.Logger) *Calculator {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Calculator{
		params:   params,
		workdays: workdays,
		logger:   logger,
		now:      time.Now,
	}
	c.sunrise = c.astronomicalSunrise
	return c
}

// Current returns the schedule for today, computing it on first use and
// recomputing when the date has rolled over
func (c *Calculator) Current() *Schedule {
	today := c.now()
	dateKey := today.Format("2006-01-02")

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cached != nil && c.cached.CalculationDate == dateKey {
		return c.cached
	}

	c.cached = c.calculate(today, nil)
	return c.cached
}

// Calculate computes the schedule for an explicit date. A non-nil
// workdayOverride wins over every other workday source. Never returns
// an error: on any computation failure the hardcoded fallback schedule
// is returned with the reason attached.
func (c *Calculator) Calculate(targetDate time.Time, workdayOverride *bool) *Schedule {
	return c.calculate(targetDate, workdayOverride)
}

func (c *Calculator) calculate(targetDate time.Time, workdayOverride *bool) (sched *Schedule) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Schedule calculation panicked", "date", targetDate.Format("2006-01-02"), "panic", r)
			sched = c.FallbackSchedule(targetDate, "calculation_failure")
		}
	}()

	dateKey := targetDate.Format("2006-01-02")

	isWorkday := true
	workdaySource := "default_workday"
	if workdayOverride != nil {
		isWorkday = *workdayOverride
		workdaySource = "explicit_override"
	} else if c.workdays != nil {
		var reason string
		isWorkday, reason = c.workdays.IsWorkday(targetDate)
		workdaySource = reason
	}

	seasonal := seasonalAdjustments(targetDate)

	sunrise, err := c.sunrise(targetDate)
	sunriseSource := "astronomical"
	if err != nil {
		sunrise = approximateSunrise(targetDate, seasonal.Season)
		sunriseSource = "seasonal_approximation"
		c.logger.Warn("Sunrise calculation failed, using seasonal approximation",
			"date", dateKey, "error", err)
	}

	transition := c.transitionTime(targetDate, sunrise, isWorkday, seasonal)

	sched = &Schedule{
		CalculationDate:          dateKey,
		CalculatedAt:             c.now(),
		IsWorkday:                isWorkday,
		WorkdaySource:            workdaySource,
		SunriseTime:              sunrise,
		MorningDayTransitionTime: transition,
		Seasonal:                 seasonal,
		Ramp:                     c.rampParameters(isWorkday, seasonal),
	}

	c.logger.Info("Daily schedule calculated",
		"date", dateKey,
		"is_workday", isWorkday,
		"workday_source", workdaySource,
		"sunrise_source", sunriseSource,
		"transition", transition.Format("15:04"))

	return sched
}

// FallbackSchedule returns the hardcoded safe schedule used when
// calculation is impossible: workday with a 07:30 transition
func (c *Calculator) FallbackSchedule(targetDate time.Time, reason string) *Schedule {
	c.logger.Warn("Using fallback schedule", "reason", reason)
	return &Schedule{
		CalculationDate:          targetDate.Format("2006-01-02"),
		CalculatedAt:             c.now(),
		IsWorkday:                true,
		WorkdaySource:            "fallback",
		SunriseTime:              dateAt(targetDate, 6, 30),
		MorningDayTransitionTime: dateAt(targetDate, 7, 30),
		Seasonal: SeasonalAdjustments{
			Season: conditions.SeasonFor(targetDate),
		},
		Ramp: RampParameters{
			DurationMinutes:        50,
			StartBrightnessPercent: 10,
			EndBrightnessPercent:   100,
			StartTemperatureKelvin: 2000,
			EndTemperatureKelvin:   4000,
			CurveType:              "linear",
		},
		FallbackReason: reason,
	}
}

// transitionTime derives the morning day transition: sunrise + buffer
// (60min workday / 90min off-day) + seasonal adjustment, clamped to the
// daily bounds (06:00-08:30 workday, 07:00-10:00 off-day)
func (c *Calculator) transitionTime(targetDate, sunrise time.Time, isWorkday bool, seasonal SeasonalAdjustments) time.Time {
	bufferMinutes := 90
	if isWorkday {
		bufferMinutes = 60
	}
	bufferMinutes += seasonal.TimingAdjustmentMinutes

	transition := sunrise.Add(time.Duration(bufferMinutes) * time.Minute)

	var earliest, latest time.Time
	if isWorkday {
		earliest = dateAt(targetDate, 6, 0)
		latest = dateAt(targetDate, 8, 30)
	} else {
		earliest = dateAt(targetDate, 7, 0)
		latest = dateAt(targetDate, 10, 0)
	}

	if transition.Before(earliest) {
		return earliest
	}
	if transition.After(latest) {
		return latest
	}
	return transition
}

// rampParameters computes the day's ramp curve, lengthening the ramp
// slightly in darker seasons
func (c *Calculator) rampParameters(isWorkday bool, seasonal SeasonalAdjustments) RampParameters {
	base := c.params.OffdayRampMinutes
	if isWorkday {
		base = c.params.WorkdayRampMinutes
	}

	adjustment := 0
	if seasonal.BrightnessBoostPercent > 5 {
		adjustment = 10
		if isWorkday {
			adjustment = 5
		}
	}

	end := c.params.EndBrightness + seasonal.BrightnessBoostPercent
	if end > 100 {
		end = 100
	}

	return RampParameters{
		DurationMinutes:        base + adjustment,
		StartBrightnessPercent: c.params.StartBrightness,
		EndBrightnessPercent:   end,
		StartTemperatureKelvin: c.params.StartKelvin,
		EndTemperatureKelvin:   c.params.EndKelvin,
		CurveType:              "smooth",
	}
}

// seasonalAdjustments derives the season and its timing/brightness
// corrections: winter transitions earlier with a brightness boost,
// spring later
func seasonalAdjustments(targetDate time.Time) SeasonalAdjustments {
	season := conditions.SeasonFor(targetDate)

	adj := SeasonalAdjustments{Season: season}
	switch season {
	case conditions.SeasonWinter:
		adj.BrightnessBoostPercent = 10
		adj.TimingAdjustmentMinutes = -15
	case conditions.SeasonFall:
		adj.BrightnessBoostPercent = 5
		adj.TimingAdjustmentMinutes = -10
	case conditions.SeasonSpring:
		adj.TimingAdjustmentMinutes = 10
	}
	return adj
}

// astronomicalSunrise computes sunrise from sun geometry for the
// configured coordinates
func (c *Calculator) astronomicalSunrise(date time.Time) (time.Time, error) {
	noon := dateAt(date, 12, 0)
	times := suncalc.GetTimes(noon, c.params.Latitude, c.params.Longitude)

	sunrise, ok := times[suncalc.Sunrise]
	if !ok || sunrise.Value.IsZero() {
		return time.Time{}, &faults.ComputationError{
			Component: "sunrise",
			Cause: fmt.Errorf("no sunrise for %s at lat=%f lon=%f",
				date.Format("2006-01-02"), c.params.Latitude, c.params.Longitude),
		}
	}
	return sunrise.Value.In(date.Location()), nil
}

// approximateSunrise is the documented fallback when astronomy is
// unavailable: a fixed per-season table
func approximateSunrise(date time.Time, season conditions.Season) time.Time {
	switch season {
	case conditions.SeasonWinter:
		return dateAt(date, 7, 15)
	case conditions.SeasonSummer:
		return dateAt(date, 5, 45)
	default:
		return dateAt(date, 6, 30)
	}
}

// SunElevation returns the sun's elevation in degrees at t for the
// given coordinates
func SunElevation(t time.Time, latitude, longitude float64) float64 {
	position := suncalc.GetPosition(t, latitude, longitude)
	return position.Altitude * (180.0 / math.Pi)
}

func dateAt(date time.Time, hour, minute int) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), hour, minute, 0, 0, date.Location())
}
