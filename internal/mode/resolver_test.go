package mode

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/halviala/als-platform/internal/conditions"
	"github.com/halviala/als-platform/pkg/redis"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestResolver() *Resolver {
	return NewResolver(DefaultConfig(), redis.NewMemory(), quietLogger())
}

func at(hour, minute int) time.Time {
	return time.Date(2026, time.August, 27, hour, minute, 0, 0, time.Local)
}

func TestInitialModeIsNight(t *testing.T) {
	r := newTestResolver()
	if r.Current() != conditions.ModeNight {
		t.Errorf("initial mode = %s, want Night", r.Current())
	}
}

func TestEveningCutoffWins(t *testing.T) {
	r := newTestResolver()
	tr := r.Resolve(context.Background(), Inputs{
		Now: at(22, 30), SunElevation: 20, SunValid: true, RampActive: true,
	})
	if tr.Mode != conditions.ModeEvening {
		t.Errorf("mode = %s, want Evening past cutoff", tr.Mode)
	}
	if tr.Reason != "evening_cutoff" {
		t.Errorf("reason = %q, want evening_cutoff", tr.Reason)
	}
}

func TestEveningOverride(t *testing.T) {
	r := newTestResolver()
	tr := r.Resolve(context.Background(), Inputs{
		Now: at(12, 0), SunElevation: 45, SunValid: true, EveningOverride: true,
	})
	if tr.Mode != conditions.ModeEvening || tr.Reason != "evening_override" {
		t.Errorf("got %s/%q, want Evening/evening_override", tr.Mode, tr.Reason)
	}
}

func TestLowSunAfternoonIsEvening(t *testing.T) {
	r := newTestResolver()
	tr := r.Resolve(context.Background(), Inputs{
		Now: at(16, 30), SunElevation: 2.0, SunValid: true,
	})
	if tr.Mode != conditions.ModeEvening {
		t.Errorf("mode = %s, want Evening for low sun at 16:30", tr.Mode)
	}
}

func TestLowSunMorningIsNotEvening(t *testing.T) {
	// a dark winter morning must not match the afternoon low-sun rule
	r := newTestResolver()
	tr := r.Resolve(context.Background(), Inputs{
		Now: at(7, 30), SunElevation: -2.0, SunValid: true,
	})
	if tr.Mode == conditions.ModeEvening {
		t.Error("07:30 with low sun should not resolve to Evening")
	}
	if tr.Mode != conditions.ModeNight {
		t.Errorf("mode = %s, want held Night", tr.Mode)
	}
}

func TestRampActiveIsEarlyMorning(t *testing.T) {
	r := newTestResolver()
	tr := r.Resolve(context.Background(), Inputs{
		Now: at(5, 15), SunElevation: -5, SunValid: true, RampActive: true,
	})
	if tr.Mode != conditions.ModeEarlyMorning || tr.Reason != "ramp_active" {
		t.Errorf("got %s/%q, want Early Morning/ramp_active", tr.Mode, tr.Reason)
	}
}

func TestHighSunIsDay(t *testing.T) {
	r := newTestResolver()
	tr := r.Resolve(context.Background(), Inputs{
		Now: at(11, 0), SunElevation: 25, SunValid: true,
	})
	if tr.Mode != conditions.ModeDay {
		t.Errorf("mode = %s, want Day", tr.Mode)
	}
	if !tr.Changed {
		t.Error("Night to Day should report Changed")
	}
}

func TestNoConditionHoldsCurrentMode(t *testing.T) {
	// cloudy mid-day with sun below the day threshold: the mode sticks
	// instead of falling through to Evening
	r := newTestResolver()
	ctx := context.Background()

	r.Resolve(ctx, Inputs{Now: at(11, 0), SunElevation: 25, SunValid: true})
	if r.Current() != conditions.ModeDay {
		t.Fatalf("setup: mode = %s, want Day", r.Current())
	}

	tr := r.Resolve(ctx, Inputs{Now: at(13, 0), SunElevation: 6, SunValid: true})
	if tr.Mode != conditions.ModeDay {
		t.Errorf("mode = %s, want held Day", tr.Mode)
	}
	if tr.Reason != "hold_current" {
		t.Errorf("reason = %q, want hold_current", tr.Reason)
	}
	if tr.Changed {
		t.Error("holding should not report Changed")
	}
}

func TestInvalidSunObservationHolds(t *testing.T) {
	r := newTestResolver()
	ctx := context.Background()

	r.Resolve(ctx, Inputs{Now: at(11, 0), SunElevation: 25, SunValid: true})
	tr := r.Resolve(ctx, Inputs{Now: at(12, 0), SunValid: false})
	if tr.Mode != conditions.ModeDay {
		t.Errorf("mode = %s, want held Day when sun is unknown", tr.Mode)
	}
}

func TestModePersistsAcrossRestart(t *testing.T) {
	mem := redis.NewMemory()
	ctx := context.Background()

	first := NewResolver(DefaultConfig(), mem, quietLogger())
	first.Resolve(ctx, Inputs{Now: at(11, 0), SunElevation: 25, SunValid: true})
	if first.Current() != conditions.ModeDay {
		t.Fatalf("setup: mode = %s, want Day", first.Current())
	}

	second := NewResolver(DefaultConfig(), mem, quietLogger())
	second.Restore(ctx)
	if second.Current() != conditions.ModeDay {
		t.Errorf("restored mode = %s, want Day", second.Current())
	}
}

func TestRestoreRejectsGarbage(t *testing.T) {
	mem := redis.NewMemory()
	ctx := context.Background()
	mem.Set(ctx, redis.ModeStateKey(), "Disco", 0)

	r := NewResolver(DefaultConfig(), mem, quietLogger())
	r.Restore(ctx)
	if r.Current() != conditions.ModeNight {
		t.Errorf("mode after bad restore = %s, want Night", r.Current())
	}
}

func TestMidnightReset(t *testing.T) {
	r := newTestResolver()
	ctx := context.Background()

	r.Resolve(ctx, Inputs{Now: at(11, 0), SunElevation: 25, SunValid: true})
	r.ResetNight(ctx)
	if r.Current() != conditions.ModeNight {
		t.Errorf("mode after midnight reset = %s, want Night", r.Current())
	}
}
