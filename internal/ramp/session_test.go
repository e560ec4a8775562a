package ramp

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/halviala/als-platform/internal/conditions"
	"github.com/halviala/als-platform/internal/schedule"
	"github.com/halviala/als-platform/pkg/redis"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testSchedule(workday bool) *schedule.Schedule {
	return &schedule.Schedule{
		CalculationDate: "2026-08-27",
		IsWorkday:       workday,
		Ramp: schedule.RampParameters{
			DurationMinutes:        50,
			StartBrightnessPercent: 10,
			EndBrightnessPercent:   100,
			StartTemperatureKelvin: 2000,
			EndTemperatureKelvin:   4000,
			CurveType:              "smooth",
		},
	}
}

func newTestManager(t *testing.T, at time.Time) *SessionManager {
	t.Helper()
	m := NewSessionManager(DefaultSessionConfig(), redis.NewMemory(), quietLogger())
	m.now = func() time.Time { return at }
	return m
}

func clockAt(hour, minute int) time.Time {
	return time.Date(2026, time.August, 27, hour, minute, 0, 0, time.Local)
}

func TestStartRequiresNightMode(t *testing.T) {
	m := newTestManager(t, clockAt(5, 0))

	_, err := m.Start(context.Background(), "motion", conditions.ModeDay, testSchedule(true))
	if !errors.Is(err, ErrWrongMode) {
		t.Errorf("Day mode start: got %v, want ErrWrongMode", err)
	}
}

func TestStartRequiresMorningWindow(t *testing.T) {
	cases := []struct {
		name string
		at   time.Time
		ok   bool
	}{
		{"before window", clockAt(4, 30), false},
		{"window start", clockAt(4, 45), true},
		{"mid window", clockAt(6, 0), true},
		{"late night", clockAt(23, 12), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := newTestManager(t, tc.at)
			_, err := m.Start(context.Background(), "schedule", conditions.ModeNight, testSchedule(true))
			if tc.ok && err != nil {
				t.Errorf("start at %s: unexpected error %v", tc.at.Format("15:04"), err)
			}
			if !tc.ok && !errors.Is(err, ErrOutsideWindow) {
				t.Errorf("start at %s: got %v, want ErrOutsideWindow", tc.at.Format("15:04"), err)
			}
		})
	}
}

func TestOnlyOneActiveSession(t *testing.T) {
	m := newTestManager(t, clockAt(5, 0))

	first, err := m.Start(context.Background(), "motion", conditions.ModeNight, testSchedule(true))
	if err != nil {
		t.Fatalf("first start: %v", err)
	}
	if first.ID == "" {
		t.Error("session should carry an id")
	}

	if _, err := m.Start(context.Background(), "motion", conditions.ModeNight, testSchedule(true)); !errors.Is(err, ErrAlreadyActive) {
		t.Errorf("second start: got %v, want ErrAlreadyActive", err)
	}
}

func TestOnePerDayGuard(t *testing.T) {
	m := newTestManager(t, clockAt(5, 0))
	ctx := context.Background()

	if _, err := m.Start(ctx, "motion", conditions.ModeNight, testSchedule(true)); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := m.End("completed"); err != nil {
		t.Fatalf("end: %v", err)
	}

	if _, err := m.Start(ctx, "motion", conditions.ModeNight, testSchedule(true)); !errors.Is(err, ErrAlreadyRan) {
		t.Errorf("same-day restart: got %v, want ErrAlreadyRan", err)
	}

	// midnight reset clears the guard
	m.ResetDaily(ctx)
	if _, err := m.Start(ctx, "motion", conditions.ModeNight, testSchedule(true)); err != nil {
		t.Errorf("start after reset: %v", err)
	}
}

func TestDisabledManagerNeverStarts(t *testing.T) {
	cfg := DefaultSessionConfig()
	cfg.Enabled = false
	m := NewSessionManager(cfg, redis.NewMemory(), quietLogger())
	m.now = func() time.Time { return clockAt(5, 0) }

	if _, err := m.Start(context.Background(), "motion", conditions.ModeNight, testSchedule(true)); !errors.Is(err, ErrDisabled) {
		t.Errorf("disabled start: got %v, want ErrDisabled", err)
	}
}

func TestDurationClamped(t *testing.T) {
	m := newTestManager(t, clockAt(5, 0))

	sched := testSchedule(true)
	sched.Ramp.DurationMinutes = 5
	session, err := m.Start(context.Background(), "schedule", conditions.ModeNight, sched)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if session.Duration != 15*time.Minute {
		t.Errorf("duration = %s, want clamped to 15m", session.Duration)
	}

	sched.Ramp.DurationMinutes = 300
	m2 := newTestManager(t, clockAt(5, 0))
	session, err = m2.Start(context.Background(), "schedule", conditions.ModeNight, sched)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if session.Duration != 120*time.Minute {
		t.Errorf("duration = %s, want clamped to 120m", session.Duration)
	}
}

func TestWorkWindowMotionDetection(t *testing.T) {
	// motion inside 04:50-05:00 flags a work departure
	m := newTestManager(t, clockAt(4, 55))
	session, err := m.Start(context.Background(), "motion", conditions.ModeNight, testSchedule(true))
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if !session.WorkWindowMotion {
		t.Error("motion at 04:55 should set WorkWindowMotion")
	}

	// the same clock on a schedule trigger does not
	m2 := newTestManager(t, clockAt(4, 55))
	session, err = m2.Start(context.Background(), "schedule", conditions.ModeNight, testSchedule(true))
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if session.WorkWindowMotion {
		t.Error("schedule trigger should not set WorkWindowMotion")
	}

	// motion after the window does not
	m3 := newTestManager(t, clockAt(5, 30))
	session, err = m3.Start(context.Background(), "motion", conditions.ModeNight, testSchedule(true))
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if session.WorkWindowMotion {
		t.Error("motion at 05:30 should not set WorkWindowMotion")
	}
}

func TestProgressAndValues(t *testing.T) {
	m := newTestManager(t, clockAt(5, 0))
	session, err := m.Start(context.Background(), "motion", conditions.ModeNight, testSchedule(true))
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	if p := session.Progress(session.StartedAt); p != 0 {
		t.Errorf("progress at start = %.1f, want 0", p)
	}

	half := session.StartedAt.Add(session.Duration / 2)
	if p := session.Progress(half); p < 49 || p > 51 {
		t.Errorf("progress at half = %.1f, want ~50", p)
	}

	brightness, kelvin := session.Values(half)
	if brightness != 55 {
		t.Errorf("brightness at half = %d, want 55", brightness)
	}
	if kelvin != 3000 {
		t.Errorf("kelvin at half = %d, want 3000", kelvin)
	}

	done := session.StartedAt.Add(session.Duration + time.Minute)
	if !session.Done(done) {
		t.Error("session should be done past its duration")
	}
	brightness, kelvin = session.Values(done)
	if brightness != 100 || kelvin != 4000 {
		t.Errorf("values past end = (%d, %d), want (100, 4000)", brightness, kelvin)
	}
}

func TestEndRecordsReason(t *testing.T) {
	m := newTestManager(t, clockAt(5, 0))
	if _, err := m.Start(context.Background(), "motion", conditions.ModeNight, testSchedule(true)); err != nil {
		t.Fatalf("start: %v", err)
	}

	session, err := m.End("manual_stop")
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if session.EndReason != "manual_stop" {
		t.Errorf("end reason = %q, want manual_stop", session.EndReason)
	}
	if session.EndedAt.IsZero() {
		t.Error("EndedAt should be set")
	}
	if m.Active() != nil {
		t.Error("no session should remain active after End")
	}

	if _, err := m.End("again"); !errors.Is(err, ErrNoActive) {
		t.Errorf("double end: got %v, want ErrNoActive", err)
	}
}
