package ramp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/halviala/als-platform/internal/conditions"
	"github.com/halviala/als-platform/internal/schedule"
	"github.com/halviala/als-platform/internal/timewindow"
	"github.com/halviala/als-platform/pkg/redis"
)

// Start preconditions that callers are expected to handle without
// treating the ramp as broken
var (
	ErrDisabled      = errors.New("ramp: disabled")
	ErrAlreadyActive = errors.New("ramp: session already active")
	ErrAlreadyRan    = errors.New("ramp: already ran today")
	ErrWrongMode     = errors.New("ramp: mode is not Night")
	ErrOutsideWindow = errors.New("ramp: outside the morning window")
	ErrNoActive      = errors.New("ramp: no active session")
)

const (
	minDurationMinutes = 15
	maxDurationMinutes = 120

	// keep the daily guard around long enough to survive restarts,
	// short enough to expire on its own
	lastRunTTL = 48 * time.Hour
)

// Session is one morning ramp run
type Session struct {
	ID               string
	TriggerSource    string
	StartedAt        time.Time
	Duration         time.Duration
	IsWorkday        bool
	Params           schedule.RampParameters
	WorkWindowMotion bool
	EndedAt          time.Time
	EndReason        string
}

// Progress returns completion at the given instant as 0-100
func (s *Session) Progress(now time.Time) float64 {
	if s.Duration <= 0 {
		return 100
	}
	p := float64(now.Sub(s.StartedAt)) / float64(s.Duration) * 100
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// Done reports whether the session has run its full duration
func (s *Session) Done(now time.Time) bool {
	return s.Progress(now) >= 100
}

// Values returns the ramp brightness and color temperature at the
// given instant
func (s *Session) Values(now time.Time) (brightness, kelvin int) {
	progress := s.Progress(now) / 100
	curve := Curve(s.Params.CurveType)
	brightness = Interpolate(s.Params.StartBrightnessPercent, s.Params.EndBrightnessPercent, progress, curve)
	kelvin = Interpolate(s.Params.StartTemperatureKelvin, s.Params.EndTemperatureKelvin, progress, curve)
	return brightness, kelvin
}

// SessionConfig holds the ramp gating windows
type SessionConfig struct {
	Enabled         bool
	MorningStart    timewindow.ClockTime // earliest ramp start
	MorningEnd      timewindow.ClockTime
	WorkWindowStart timewindow.ClockTime // narrow early-motion window
	WorkWindowEnd   timewindow.ClockTime
}

// DefaultSessionConfig returns the gating windows the household runs
// with: ramps from 04:45, work-departure motion between 04:50 and 05:00
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Enabled:         true,
		MorningStart:    timewindow.MustParseClock("04:45"),
		MorningEnd:      timewindow.MustParseClock("08:00"),
		WorkWindowStart: timewindow.MustParseClock("04:50"),
		WorkWindowEnd:   timewindow.MustParseClock("05:00"),
	}
}

// SessionManager owns the single ramp session and the one-per-day
// guard. Safe for concurrent use.
type SessionManager struct {
	cfg    SessionConfig
	redis  redis.Client
	logger *slog.Logger

	mu     sync.Mutex
	active *Session

	now func() time.Time
}

// NewSessionManager creates a session manager
func NewSessionManager(cfg SessionConfig, redisClient redis.Client, logger *slog.Logger) *SessionManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionManager{
		cfg:    cfg,
		redis:  redisClient,
		logger: logger,
		now:    time.Now,
	}
}

// WithClock replaces the manager's time source
func (m *SessionManager) WithClock(clock func() time.Time) *SessionManager {
	m.now = clock
	return m
}

// Active returns the running session, or nil
func (m *SessionManager) Active() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Start begins a ramp session if every precondition holds: ramping
// enabled, no session active, none run yet today, mode Night, and the
// clock inside the morning window.
func (m *SessionManager) Start(ctx context.Context, trigger string, mode conditions.Mode, sched *schedule.Schedule) (*Session, error) {
	if !m.cfg.Enabled {
		return nil, ErrDisabled
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil {
		return nil, ErrAlreadyActive
	}

	now := m.now()

	if ran, err := m.ranToday(ctx, now); err != nil {
		// losing the guard is better than losing the morning ramp
		m.logger.Warn("Ramp daily guard unavailable, proceeding", "error", err)
	} else if ran {
		return nil, ErrAlreadyRan
	}

	if mode != conditions.ModeNight {
		return nil, fmt.Errorf("%w: current mode %s", ErrWrongMode, mode)
	}

	clock := timewindow.ClockOf(now)
	if !timewindow.InWindow(clock, m.cfg.MorningStart, m.cfg.MorningEnd) {
		return nil, fmt.Errorf("%w: clock %s", ErrOutsideWindow, clock)
	}

	duration := clampDuration(sched.Ramp.DurationMinutes)

	session := &Session{
		ID:            uuid.New().String(),
		TriggerSource: trigger,
		StartedAt:     now,
		Duration:      duration,
		IsWorkday:     sched.IsWorkday,
		Params:        sched.Ramp,
		WorkWindowMotion: trigger == "motion" &&
			timewindow.InWindow(clock, m.cfg.WorkWindowStart, m.cfg.WorkWindowEnd),
	}
	m.active = session

	if err := m.markRan(ctx, now); err != nil {
		m.logger.Warn("Failed to persist ramp daily guard", "error", err)
	}
	m.persistSession(ctx, session)

	m.logger.Info("Ramp session started",
		"session_id", session.ID,
		"trigger", trigger,
		"duration_min", int(duration.Minutes()),
		"is_workday", session.IsWorkday,
		"work_window_motion", session.WorkWindowMotion)

	return session, nil
}

// End finishes the active session with a reason and returns it
func (m *SessionManager) End(reason string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active == nil {
		return nil, ErrNoActive
	}

	session := m.active
	session.EndedAt = m.now()
	session.EndReason = reason
	m.active = nil

	if err := m.redis.Del(context.Background(), redis.RampSessionKey()); err != nil {
		m.logger.Warn("Failed to clear ramp session state", "error", err)
	}

	m.logger.Info("Ramp session ended",
		"session_id", session.ID,
		"reason", reason,
		"progress", fmt.Sprintf("%.0f%%", session.Progress(session.EndedAt)))

	return session, nil
}

// ResetDaily clears the session and the one-per-day guard. Called at
// midnight rollover.
func (m *SessionManager) ResetDaily(ctx context.Context) {
	m.mu.Lock()
	if m.active != nil {
		m.logger.Warn("Ramp session still active at midnight reset", "session_id", m.active.ID)
		m.active.EndedAt = m.now()
		m.active.EndReason = "midnight_reset"
		m.active = nil
	}
	m.mu.Unlock()

	if err := m.redis.Del(ctx, redis.RampLastRunKey(), redis.RampSessionKey()); err != nil {
		m.logger.Warn("Failed to clear ramp daily guard", "error", err)
	}
}

// persistSession mirrors the active session to Redis so dashboards can
// observe the ramp without asking the agent
func (m *SessionManager) persistSession(ctx context.Context, session *Session) {
	fields := map[string]string{
		"id":         session.ID,
		"trigger":    session.TriggerSource,
		"started_at": session.StartedAt.Format(time.RFC3339),
		"duration":   session.Duration.String(),
		"is_workday": fmt.Sprintf("%t", session.IsWorkday),
	}
	for field, value := range fields {
		if err := m.redis.HSet(ctx, redis.RampSessionKey(), field, value); err != nil {
			m.logger.Warn("Failed to persist ramp session state", "error", err)
			return
		}
	}
}

func (m *SessionManager) ranToday(ctx context.Context, now time.Time) (bool, error) {
	lastRun, err := m.redis.Get(ctx, redis.RampLastRunKey())
	if errors.Is(err, redis.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading ramp daily guard: %w", err)
	}
	return lastRun == now.Format("2006-01-02"), nil
}

func (m *SessionManager) markRan(ctx context.Context, now time.Time) error {
	return m.redis.Set(ctx, redis.RampLastRunKey(), now.Format("2006-01-02"), lastRunTTL)
}

func clampDuration(minutes int) time.Duration {
	if minutes < minDurationMinutes {
		minutes = minDurationMinutes
	}
	if minutes > maxDurationMinutes {
		minutes = maxDurationMinutes
	}
	return time.Duration(minutes) * time.Minute
}
