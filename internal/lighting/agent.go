// Package lighting runs the adaptive lighting agent: it listens to
// motion, teaching and override traffic, resolves the home mode, and
// drives the lights from the control hierarchy.
package lighting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/halviala/als-platform/internal/conditions"
	"github.com/halviala/als-platform/internal/diagnostics"
	"github.com/halviala/als-platform/internal/faults"
	"github.com/halviala/als-platform/internal/hierarchy"
	"github.com/halviala/als-platform/internal/mode"
	"github.com/halviala/als-platform/internal/ramp"
	"github.com/halviala/als-platform/internal/schedule"
	"github.com/halviala/als-platform/internal/store"
	"github.com/halviala/als-platform/internal/timewindow"
	"github.com/halviala/als-platform/pkg/config"
	"github.com/halviala/als-platform/pkg/hass"
	"github.com/halviala/als-platform/pkg/mqtt"
	"github.com/halviala/als-platform/pkg/redis"
)

// TeachRequest is the payload on the teaching topic
type TeachRequest struct {
	BrightnessPercent int  `json:"brightness_percent"`
	TemperatureKelvin *int `json:"temperature_kelvin,omitempty"`
}

// TeachStatus is published after every teaching attempt
type TeachStatus struct {
	Room         string `json:"room"`
	ConditionKey string `json:"condition_key"`
	Accepted     bool   `json:"accepted"`
	Duplicate    bool   `json:"duplicate"`
	SampleCount  int    `json:"sample_count"`
	TotalSamples int    `json:"total_samples"`
	Error        string `json:"error,omitempty"`
}

// OverrideRequest is the payload on the override topic
type OverrideRequest struct {
	Action          string `json:"action"` // set | clear | evening_on | evening_off
	DurationMinutes int    `json:"duration_minutes,omitempty"`
}

// LightCommand is published on the per-room light set topic
type LightCommand struct {
	State             string  `json:"state"` // on | off
	BrightnessPercent int     `json:"brightness_percent,omitempty"`
	TemperatureKelvin *int    `json:"temperature_kelvin,omitempty"`
	Source            string  `json:"source"`
	Confidence        float64 `json:"confidence,omitempty"`
}

// Agent is the adaptive lighting agent
type Agent struct {
	cfg    *config.Config
	mqtt   mqtt.Client
	redis  redis.Client
	store  *store.Store
	prefs  *hierarchy.Preferences
	logger *slog.Logger

	calculator *schedule.Calculator
	sessions   *ramp.SessionManager
	resolver   *mode.Resolver
	controller *hierarchy.Controller
	diag       *diagnostics.Aggregator
	notifier   *diagnostics.FallbackNotifier

	overrides   *OverrideManager
	rateLimiter *RateLimiter

	morningStart timewindow.ClockTime

	// latest cloud coverage observation
	cloudMu    sync.RWMutex
	cloudPct   float64
	cloudValid bool

	ticker   *time.Ticker
	stopChan chan struct{}
	lastDay  string

	now func() time.Time
}

// NewAgent wires the agent from its clients and configuration
func NewAgent(cfg *config.Config, mqttClient mqtt.Client, redisClient redis.Client, sampleStore *store.Store, prefs *hierarchy.Preferences, logger *slog.Logger) (*Agent, error) {
	morningStart, err := timewindow.ParseClock(cfg.MorningWindowStart)
	if err != nil {
		return nil, &faults.ConfigurationError{Entity: "morning_window_start", Message: err.Error()}
	}
	morningEnd, err := timewindow.ParseClock(cfg.MorningWindowEnd)
	if err != nil {
		return nil, &faults.ConfigurationError{Entity: "morning_window_end", Message: err.Error()}
	}
	eveningCutoff, err := timewindow.ParseClock(cfg.EveningCutoff)
	if err != nil {
		return nil, &faults.ConfigurationError{Entity: "evening_cutoff", Message: err.Error()}
	}

	calculator := schedule.NewCalculator(schedule.Params{
		Latitude:           cfg.Latitude,
		Longitude:          cfg.Longitude,
		WorkdayRampMinutes: cfg.WorkdayRampMinutes,
		OffdayRampMinutes:  cfg.OffdayRampMinutes,
		StartBrightness:    cfg.RampStartBrightness,
		EndBrightness:      cfg.RampEndBrightness,
		StartKelvin:        cfg.RampStartKelvin,
		EndKelvin:          cfg.RampEndKelvin,
	}, &schedule.CalendarWorkdays{}, logger)

	sessionCfg := ramp.DefaultSessionConfig()
	sessionCfg.MorningStart = morningStart
	sessionCfg.MorningEnd = morningEnd

	resolver := mode.NewResolver(mode.Config{
		DayElevationThreshold:     cfg.DayElevationThreshold,
		EveningElevationThreshold: cfg.EveningElevationThreshold,
		EveningCutoff:             eveningCutoff,
		EveningEarliestHour:       15,
	}, redisClient, logger)

	diag := diagnostics.NewAggregator(redisClient, logger)

	a := &Agent{
		cfg:          cfg,
		mqtt:         mqttClient,
		redis:        redisClient,
		store:        sampleStore,
		prefs:        prefs,
		logger:       logger,
		calculator:   calculator,
		resolver:     resolver,
		controller:   hierarchy.NewController(sampleStore, prefs, logger),
		diag:         diag,
		notifier:     diagnostics.NewFallbackNotifier(diagnostics.NewMQTTNotifier(mqttClient), redisClient, logger),
		overrides:    NewOverrideManager(),
		rateLimiter:  NewRateLimiter(),
		morningStart: morningStart,
		stopChan:     make(chan struct{}),
		now:          time.Now,
	}
	a.sessions = ramp.NewSessionManager(sessionCfg, redisClient, logger).
		WithClock(func() time.Time { return a.now() })
	return a, nil
}

// Start connects the agent and begins processing. Blocks until the
// context is cancelled.
func (a *Agent) Start(ctx context.Context) error {
	a.logger.Info("Starting lighting agent",
		"service_name", a.cfg.ServiceName,
		"decision_interval_sec", a.cfg.DecisionIntervalSec,
		"manual_override_minutes", a.cfg.ManualOverrideMinutes)

	if err := a.mqtt.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to MQTT: %w", err)
	}
	if err := a.redis.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}

	a.resolver.Restore(ctx)
	a.lastDay = a.now().Format("2006-01-02")

	subscriptions := []struct {
		topic   string
		handler mqtt.MessageHandler
	}{
		{mqtt.TopicMotionAll, a.handleMotionMessage},
		{mqtt.TopicTeachAll, a.handleTeachMessage},
		{mqtt.TopicOverrideAll, a.handleOverrideMessage},
		{mqtt.TopicCloudCover, a.handleCloudMessage},
	}
	for _, sub := range subscriptions {
		if err := a.mqtt.Subscribe(sub.topic, 0, sub.handler); err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", sub.topic, err)
		}
		a.logger.Info("Subscribed", "topic", sub.topic)
	}

	a.startDecisionLoop()

	a.logger.Info("Lighting agent started and ready")
	<-ctx.Done()
	a.logger.Info("Lighting agent stopping")
	return nil
}

// Stop gracefully stops the agent
func (a *Agent) Stop() error {
	a.logger.Info("Stopping lighting agent")

	if a.ticker != nil {
		a.ticker.Stop()
	}
	close(a.stopChan)

	a.mqtt.Disconnect()
	if err := a.redis.Close(); err != nil {
		a.logger.Error("Error closing Redis connection", "error", err)
		return err
	}

	a.logger.Info("Lighting agent stopped")
	return nil
}

func (a *Agent) startDecisionLoop() {
	interval := time.Duration(a.cfg.DecisionIntervalSec) * time.Second
	a.ticker = time.NewTicker(interval)

	go func() {
		a.logger.Info("Starting decision loop", "interval_sec", a.cfg.DecisionIntervalSec)
		for {
			select {
			case <-a.ticker.C:
				a.tick(context.Background())
			case <-a.stopChan:
				return
			}
		}
	}()
}

// tick is one pass of the periodic loop: date rollover, mode
// resolution, ramp progression
func (a *Agent) tick(ctx context.Context) {
	now := a.now()

	if day := now.Format("2006-01-02"); day != a.lastDay {
		a.midnightRollover(ctx, day)
	}

	transition := a.resolver.Resolve(ctx, mode.Inputs{
		Now:             now,
		SunElevation:    schedule.SunElevation(now, a.cfg.Latitude, a.cfg.Longitude),
		SunValid:        true,
		EveningOverride: a.overrides.EveningOverride(),
		RampActive:      a.sessions.Active() != nil,
	})
	if transition.Changed {
		if err := a.mqtt.PublishJSON(mqtt.TopicMode, 1, true, map[string]string{
			"mode":   string(transition.Mode),
			"reason": transition.Reason,
		}); err != nil {
			a.logger.Error("Failed to publish mode", "error", err)
		}
	}

	a.progressRamp(ctx, now, transition.Mode)
	a.overrides.CleanupExpired()
	if rooms := a.overrides.ActiveRooms(); len(rooms) > 0 {
		a.logger.Debug("Manual overrides active", "rooms", rooms)
	}
	if a.diag.DailyCheck(ctx) {
		if err := a.mqtt.PublishJSON(mqtt.TopicHealth, 1, true, map[string]string{
			"health": a.diag.GlobalHealth(ctx),
		}); err != nil {
			a.logger.Error("Failed to publish health status", "error", err)
		}
		if err := a.notifier.Flush(ctx); err != nil {
			a.logger.Warn("Failed to flush pending notifications", "error", err)
		}
	}
}

func (a *Agent) midnightRollover(ctx context.Context, day string) {
	a.logger.Info("Midnight rollover", "date", day)
	a.lastDay = day
	a.resolver.ResetNight(ctx)
	a.sessions.ResetDaily(ctx)

	sched := a.calculator.Current()
	payload, err := json.Marshal(sched)
	if err == nil {
		if err := a.redis.Set(ctx, redis.ScheduleCacheKey(day), string(payload), 48*time.Hour); err != nil {
			a.logger.Warn("Failed to cache daily schedule", "error", err)
		}
	}

	if days := a.cfg.RetentionDays; days > 0 {
		if pruned, err := a.store.PruneOlderThan(ctx, days); err != nil {
			a.diag.Record(ctx, "store", fmt.Sprintf("retention prune failed: %v", err))
		} else if pruned > 0 {
			a.logger.Info("Pruned aged samples", "count", pruned, "retention_days", days)
		}
	}

	if stats, err := a.store.GetStats(ctx); err != nil {
		a.logger.Warn("Store stats unavailable", "error", err)
	} else {
		a.logger.Info("Learning store stats",
			"total_samples", stats.TotalSamples,
			"rooms", stats.UniqueRooms,
			"conditions", stats.UniqueConditions,
			"recent_samples", stats.RecentSamples)
	}
}

// progressRamp starts the scheduled ramp when its window opens and
// pushes interpolated values to participating rooms while it runs
func (a *Agent) progressRamp(ctx context.Context, now time.Time, currentMode conditions.Mode) {
	session := a.sessions.Active()
	if session == nil {
		sched := a.calculator.Current()
		rampStart := sched.MorningDayTransitionTime.Add(-clampedRampDuration(sched))
		if now.Before(rampStart) {
			return
		}
		started, err := a.sessions.Start(ctx, "schedule", currentMode, sched)
		if err != nil {
			if !expectedStartRefusal(err) {
				a.diag.Record(ctx, "ramp", fmt.Sprintf("ramp start failed: %v", err))
				if sendErr := a.notifier.Send(ctx, "Adaptive Lighting", fmt.Sprintf("morning ramp failed to start: %v", err), "warning"); sendErr != nil {
					a.logger.Error("Failed to send ramp notification", "error", sendErr)
				}
			}
			return
		}
		session = started
	}

	if session.Done(now) {
		if _, err := a.sessions.End("completed"); err == nil {
			a.logger.Info("Morning ramp completed", "session_id", session.ID)
		}
		return
	}

	brightness, kelvin := session.Values(now)
	for room, rc := range a.prefs.Rooms {
		if !rc.Ramp || rc.MainLight == "" {
			continue
		}
		if a.overrides.Active(room) {
			continue
		}
		command := LightCommand{
			State:             "on",
			BrightnessPercent: brightness,
			TemperatureKelvin: &kelvin,
			Source:            "ramp",
		}
		if err := a.mqtt.PublishJSON(mqtt.LightSetTopic(room), 0, false, command); err != nil {
			a.diag.Record(ctx, "ramp", fmt.Sprintf("%s ramp command failed: %v", room, err))
			continue
		}
		a.rateLimiter.Record(room)
	}
}

func clampedRampDuration(sched *schedule.Schedule) time.Duration {
	minutes := sched.Ramp.DurationMinutes
	if minutes < 15 {
		minutes = 15
	}
	if minutes > 120 {
		minutes = 120
	}
	return time.Duration(minutes) * time.Minute
}

// expectedStartRefusal filters the ramp start errors that are normal
// operating conditions rather than faults
func expectedStartRefusal(err error) bool {
	return errors.Is(err, ramp.ErrAlreadyRan) ||
		errors.Is(err, ramp.ErrWrongMode) ||
		errors.Is(err, ramp.ErrOutsideWindow) ||
		errors.Is(err, ramp.ErrAlreadyActive) ||
		errors.Is(err, ramp.ErrDisabled)
}

// roomFromTopic extracts the room segment from als/{kind}/{room} topics
func roomFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) < 3 {
		return ""
	}
	return conditions.NormalizeRoom(parts[2])
}

func (a *Agent) handleMotionMessage(msg mqtt.Message) {
	ctx := context.Background()
	room := roomFromTopic(msg.Topic())
	if room == "" {
		return
	}

	state := hass.Normalize(string(msg.Payload()))
	if !state.Present() {
		a.logger.Debug("Ignoring absent motion state", "room", room)
		return
	}

	switch strings.ToLower(state.String("")) {
	case "on", "detected", "true":
		a.handleMotion(ctx, room)
	case "off", "clear", "false":
		a.handleMotionClear(ctx, room)
	default:
		a.logger.Debug("Unrecognized motion payload", "room", room, "payload", state.String(""))
	}
}

// handleMotion runs the full motion path for a room: possible ramp
// start, accent presets, then the main light through the hierarchy
func (a *Agent) handleMotion(ctx context.Context, room string) {
	now := a.now()
	currentMode := a.resolver.Current()
	rc := a.prefs.For(room)

	// early motion in Night mode can open the morning ramp
	if currentMode == conditions.ModeNight {
		if _, err := a.sessions.Start(ctx, "motion", currentMode, a.calculator.Current()); err == nil {
			a.logger.Info("Morning ramp opened by motion", "room", room)
			currentMode = conditions.ModeEarlyMorning
		} else if !expectedStartRefusal(err) {
			a.diag.Record(ctx, "ramp", fmt.Sprintf("%s motion ramp start failed: %v", room, err))
		}
	}

	for _, command := range AccentsOnMotion(currentMode, rc.AccentFixtures) {
		if err := a.mqtt.PublishJSON(mqtt.AccentPresetTopic(command.Fixture), 0, false, map[string]string{"preset": command.Preset}); err != nil {
			a.diag.Record(ctx, "accent", fmt.Sprintf("%s accent preset failed: %v", room, err))
		}
	}

	if rc.MainLight == "" {
		return
	}
	if NightBlocked(currentMode, timewindow.ClockOf(now), a.morningStart) {
		a.logger.Debug("Main light night-blocked", "room", room)
		return
	}
	if !a.rateLimiter.Allow(room, time.Duration(a.cfg.MinDecisionIntervalMs)*time.Millisecond) {
		a.logger.Debug("Decision rate limited", "room", room)
		return
	}

	decision := a.controller.Decide(ctx, hierarchy.Request{
		Room:         room,
		ConditionKey: a.conditionKey(currentMode, now),
		Mode:         currentMode,
		ManualActive: a.overrides.Active(room),
	})
	a.applyDecision(ctx, room, decision)
}

// handleMotionClear winds the room back down when motion clears
func (a *Agent) handleMotionClear(ctx context.Context, room string) {
	currentMode := a.resolver.Current()
	rc := a.prefs.For(room)

	for _, command := range AccentsOnClear(currentMode, rc.AccentFixtures) {
		if err := a.mqtt.PublishJSON(mqtt.AccentPresetTopic(command.Fixture), 0, false, map[string]string{"preset": command.Preset}); err != nil {
			a.diag.Record(ctx, "accent", fmt.Sprintf("%s accent clear failed: %v", room, err))
		}
	}

	if rc.MainLight == "" || !rc.TurnOffOnClear {
		return
	}
	if a.overrides.Active(room) {
		return
	}
	command := LightCommand{State: "off", Source: "motion_clear"}
	if err := a.mqtt.PublishJSON(mqtt.LightSetTopic(room), 0, false, command); err != nil {
		a.diag.Record(ctx, "light", fmt.Sprintf("%s turn-off failed: %v", room, err))
	}
}

func (a *Agent) handleTeachMessage(msg mqtt.Message) {
	ctx := context.Background()
	room := roomFromTopic(msg.Topic())
	if room == "" {
		return
	}

	var req TeachRequest
	if err := json.Unmarshal(msg.Payload(), &req); err != nil {
		a.publishTeachStatus(TeachStatus{Room: room, Error: fmt.Sprintf("invalid payload: %v", err)})
		return
	}

	conditionKey := a.conditionKey(a.resolver.Current(), a.now())
	result, err := a.store.Insert(ctx, room, conditionKey, req.BrightnessPercent, req.TemperatureKelvin)
	if err != nil {
		status := TeachStatus{Room: room, ConditionKey: conditionKey, Error: err.Error()}
		switch {
		case faults.IsValidation(err):
			// caller error, not a system fault
		case faults.IsRetryable(err):
			a.logger.Warn("Teach insert failed after retries", "room", room, "error", err)
			a.diag.Record(ctx, "store", fmt.Sprintf("%s teach insert failed: %v", room, err))
		default:
			a.diag.Record(ctx, "store", fmt.Sprintf("%s teach insert failed: %v", room, err))
			if sendErr := a.notifier.Send(ctx, "Storage failure",
				fmt.Sprintf("Teaching for %s could not be saved: %v", room, err), "error"); sendErr != nil {
				a.logger.Error("Failed to notify about storage failure", "error", sendErr)
			}
		}
		a.publishTeachStatus(status)
		return
	}

	a.publishTeachStatus(TeachStatus{
		Room:         room,
		ConditionKey: conditionKey,
		Accepted:     !result.Duplicate,
		Duplicate:    result.Duplicate,
		SampleCount:  result.SampleCount,
		TotalSamples: result.TotalSamples,
	})
	a.logger.Info("Teaching recorded",
		"room", room,
		"condition_key", conditionKey,
		"duplicate", result.Duplicate,
		"sample_count", result.SampleCount)
}

func (a *Agent) publishTeachStatus(status TeachStatus) {
	if err := a.mqtt.PublishJSON(mqtt.TopicTeachStatus, 0, false, status); err != nil {
		a.logger.Error("Failed to publish teach status", "error", err)
	}
}

func (a *Agent) handleOverrideMessage(msg mqtt.Message) {
	room := roomFromTopic(msg.Topic())
	if room == "" {
		return
	}

	var req OverrideRequest
	if err := json.Unmarshal(msg.Payload(), &req); err != nil {
		a.logger.Warn("Invalid override payload", "room", room, "error", err)
		return
	}

	switch req.Action {
	case "set":
		minutes := req.DurationMinutes
		if minutes <= 0 {
			minutes = a.cfg.ManualOverrideMinutes
		}
		expires := a.overrides.Set(room, minutes)
		a.logger.Info("Manual override set", "room", room, "expires_at", expires.Format(time.RFC3339))
	case "clear":
		if a.overrides.Clear(room) {
			a.logger.Info("Manual override cleared", "room", room)
		}
	case "evening_on":
		a.overrides.SetEveningOverride(true)
		a.logger.Info("Evening override enabled", "room", room)
	case "evening_off":
		a.overrides.SetEveningOverride(false)
		a.logger.Info("Evening override disabled", "room", room)
	default:
		a.logger.Warn("Unknown override action", "room", room, "action", req.Action)
	}
}

func (a *Agent) handleCloudMessage(msg mqtt.Message) {
	value := hass.Normalize(string(msg.Payload()))
	a.cloudMu.Lock()
	defer a.cloudMu.Unlock()
	if !value.Present() {
		a.cloudValid = false
		return
	}
	a.cloudPct = value.Float(0)
	a.cloudValid = true
}

// conditionKey encodes current conditions for the learning store
func (a *Agent) conditionKey(currentMode conditions.Mode, now time.Time) string {
	a.cloudMu.RLock()
	cloud := a.cloudPct
	valid := a.cloudValid
	a.cloudMu.RUnlock()
	if !valid {
		cloud = 0
	}

	return conditions.Encode(
		currentMode,
		schedule.SunElevation(now, a.cfg.Latitude, a.cfg.Longitude),
		cloud,
		conditions.SeasonFor(now),
	)
}

// applyDecision publishes the resolved lighting command for a room
func (a *Agent) applyDecision(ctx context.Context, room string, decision hierarchy.Decision) {
	if decision.Action == "maintain" {
		a.logger.Debug("Maintaining current state", "room", room, "reason", decision.FallbackReason)
		return
	}

	command := LightCommand{
		State:             "on",
		BrightnessPercent: decision.Brightness,
		TemperatureKelvin: decision.Temperature,
		Source:            string(decision.ActualSystem),
		Confidence:        decision.Confidence,
	}
	if err := a.mqtt.PublishJSON(mqtt.LightSetTopic(room), 0, false, command); err != nil {
		a.diag.Record(ctx, "light", fmt.Sprintf("%s light command failed: %v", room, err))
		return
	}

	if decision.FallbackReason != "" {
		a.logger.Info("Decision used fallback tier",
			"room", room,
			"preferred", decision.PreferredSystem,
			"actual", decision.ActualSystem,
			"reason", decision.FallbackReason)
	}
}
