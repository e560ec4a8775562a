// Package mode resolves the home's lighting mode from sun position,
// clock and ramp state. The machine is sticky: when no transition rule
// fires, the current mode holds. Earlier revisions fell through to
// Evening whenever no rule matched, which mislabeled mid-day cloudy
// hours; the hold rule replaces that.
package mode

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/halviala/als-platform/internal/conditions"
	"github.com/halviala/als-platform/internal/timewindow"
	"github.com/halviala/als-platform/pkg/redis"
)

// Config holds the transition thresholds
type Config struct {
	// DayElevationThreshold is the sun elevation (degrees) at which
	// the home enters Day mode
	DayElevationThreshold float64

	// EveningElevationThreshold is the sun elevation below which an
	// afternoon counts as evening
	EveningElevationThreshold float64

	// EveningCutoff is the wall-clock time after which the home is in
	// Evening regardless of sun position
	EveningCutoff timewindow.ClockTime

	// EveningEarliestHour gates the low-sun evening rule so a dark
	// winter morning is not classified as Evening
	EveningEarliestHour int
}

// DefaultConfig returns the thresholds the household runs with
func DefaultConfig() Config {
	return Config{
		DayElevationThreshold:     10.0,
		EveningElevationThreshold: 4.0,
		EveningCutoff:             timewindow.MustParseClock("22:00"),
		EveningEarliestHour:       15,
	}
}

// Inputs is one resolution tick's worth of observations
type Inputs struct {
	Now             time.Time
	SunElevation    float64
	SunValid        bool
	EveningOverride bool
	RampActive      bool
}

// Transition is the outcome of one resolution
type Transition struct {
	Mode    conditions.Mode
	Reason  string
	Changed bool
}

// Resolver is the sticky mode state machine. Resolved states are
// persisted to Redis so a restart resumes from the last known mode.
type Resolver struct {
	cfg    Config
	redis  redis.Client
	logger *slog.Logger

	mu      sync.Mutex
	current conditions.Mode
}

// NewResolver creates a resolver starting in Night mode
func NewResolver(cfg Config, redisClient redis.Client, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		cfg:     cfg,
		redis:   redisClient,
		logger:  logger,
		current: conditions.ModeNight,
	}
}

// Restore loads the last persisted mode. A missing or invalid persisted
// value leaves the resolver in Night.
func (r *Resolver) Restore(ctx context.Context) {
	value, err := r.redis.Get(ctx, redis.ModeStateKey())
	if errors.Is(err, redis.ErrNotFound) {
		return
	}
	if err != nil {
		r.logger.Warn("Failed to restore mode state, starting in Night", "error", err)
		return
	}

	restored := conditions.Mode(value)
	if !restored.Valid() {
		r.logger.Warn("Persisted mode state invalid, starting in Night", "value", value)
		return
	}

	r.mu.Lock()
	r.current = restored
	r.mu.Unlock()
	r.logger.Info("Mode state restored", "mode", restored)
}

// Current returns the mode the home is in
func (r *Resolver) Current() conditions.Mode {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Resolve applies the transition rules and returns the resulting mode.
// Rule order: evening conditions, then active ramp, then daylight; when
// none fires the current mode holds.
func (r *Resolver) Resolve(ctx context.Context, in Inputs) Transition {
	r.mu.Lock()
	previous := r.current
	next, reason := r.evaluate(previous, in)
	r.current = next
	r.mu.Unlock()

	changed := next != previous
	if changed {
		r.logger.Info("Mode transition",
			"from", previous, "to", next, "reason", reason)
		r.persist(ctx, next)
	}

	return Transition{Mode: next, Reason: reason, Changed: changed}
}

func (r *Resolver) evaluate(current conditions.Mode, in Inputs) (conditions.Mode, string) {
	if in.EveningOverride {
		return conditions.ModeEvening, "evening_override"
	}
	clock := timewindow.ClockOf(in.Now)
	if clock.AtOrAfter(r.cfg.EveningCutoff) {
		return conditions.ModeEvening, "evening_cutoff"
	}
	if in.SunValid && in.Now.Hour() >= r.cfg.EveningEarliestHour &&
		in.SunElevation < r.cfg.EveningElevationThreshold {
		return conditions.ModeEvening, "sun_below_evening_threshold"
	}

	if in.RampActive {
		return conditions.ModeEarlyMorning, "ramp_active"
	}

	if in.SunValid && in.SunElevation >= r.cfg.DayElevationThreshold {
		return conditions.ModeDay, "sun_above_day_threshold"
	}

	return current, "hold_current"
}

// ResetNight forces the machine back to Night. Called at the midnight
// rollover.
func (r *Resolver) ResetNight(ctx context.Context) {
	r.mu.Lock()
	previous := r.current
	r.current = conditions.ModeNight
	r.mu.Unlock()

	if previous != conditions.ModeNight {
		r.logger.Info("Mode transition", "from", previous, "to", conditions.ModeNight, "reason", "midnight_reset")
		r.persist(ctx, conditions.ModeNight)
	}
}

func (r *Resolver) persist(ctx context.Context, mode conditions.Mode) {
	if err := r.redis.Set(ctx, redis.ModeStateKey(), string(mode), 0); err != nil {
		r.logger.Warn("Failed to persist mode state", "mode", mode, "error", err)
	}
}
