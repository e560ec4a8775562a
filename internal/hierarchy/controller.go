package hierarchy

import (
	"context"
	"log/slog"
	"time"

	"github.com/halviala/als-platform/internal/conditions"
	"github.com/halviala/als-platform/internal/store"
)

// output bounds
const (
	minBrightness = 1
	maxBrightness = 100
	minKelvin     = 1800
	maxKelvin     = 6500
)

// SampleSource is the slice of the learned store the controller needs
type SampleSource interface {
	Query(ctx context.Context, room, conditionKey string, limit int) ([]store.LearnedSample, error)
}

// Request is one decision query
type Request struct {
	Room         string
	ConditionKey string
	Mode         conditions.Mode
	ManualActive bool
}

// Decision is the resolved lighting command for a room. Action is
// "apply" for concrete values or "maintain" when the manual tier holds
// the current state.
type Decision struct {
	Room            string    `json:"room"`
	Action          string    `json:"action"`
	Brightness      int       `json:"brightness_percent"`
	Temperature     *int      `json:"temperature_kelvin,omitempty"`
	PreferredSystem System    `json:"preferred_system"`
	ActualSystem    System    `json:"actual_system"`
	Confidence      float64   `json:"confidence"`
	FallbackReason  string    `json:"fallback_reason,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// Controller resolves decisions by walking the tiers from the room's
// preferred system downward. A tier that cannot answer passes to the
// next; the intelligent tier always answers, so only an explicit manual
// override reaches the manual tier.
type Controller struct {
	samples SampleSource
	prefs   *Preferences
	logger  *slog.Logger
	now     func() time.Time
}

// NewController creates a hierarchy controller
func NewController(samples SampleSource, prefs *Preferences, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		samples: samples,
		prefs:   prefs,
		logger:  logger,
		now:     time.Now,
	}
}

// tierOrder is the fixed resolution chain
var tierOrder = []System{SystemRecorded, SystemLearned, SystemIntelligent}

// Decide resolves the lighting command for a room under the given
// conditions. FallbackReason is set whenever the answering tier is not
// the room's preferred one.
func (c *Controller) Decide(ctx context.Context, req Request) Decision {
	room := conditions.NormalizeRoom(req.Room)
	rc := c.prefs.For(room)
	preferred := rc.PreferredSystem

	if req.ManualActive {
		d := Decision{
			Room:            room,
			Action:          "maintain",
			PreferredSystem: preferred,
			ActualSystem:    SystemManual,
			Confidence:      1.0,
			Timestamp:       c.now(),
		}
		if preferred != SystemManual {
			d.FallbackReason = "manual_override_active"
		}
		return d
	}

	start := 0
	for i, tier := range tierOrder {
		if tier == preferred {
			start = i
			break
		}
	}

	var reasons []string
	for _, tier := range tierOrder[start:] {
		d, reason := c.tryTier(ctx, tier, room, req)
		if d == nil {
			reasons = append(reasons, reason)
			continue
		}

		d.Room = room
		d.Action = "apply"
		d.PreferredSystem = preferred
		d.ActualSystem = tier
		d.Timestamp = c.now()
		if tier != preferred {
			d.FallbackReason = fallbackReason(reasons, tier)
		}
		clamp(d)

		c.logger.Debug("Lighting decision",
			"room", room,
			"system", tier,
			"brightness", d.Brightness,
			"confidence", d.Confidence,
			"fallback_reason", d.FallbackReason)
		return *d
	}

	// unreachable while the intelligent tier answers unconditionally
	d := c.intelligentDecision(req.Mode)
	d.Room = room
	d.Action = "apply"
	d.PreferredSystem = preferred
	d.ActualSystem = SystemIntelligent
	d.FallbackReason = "no_tier_answered"
	d.Timestamp = c.now()
	clamp(d)
	return *d
}

func (c *Controller) tryTier(ctx context.Context, tier System, room string, req Request) (*Decision, string) {
	switch tier {
	case SystemRecorded:
		return c.recordedDecision(ctx, room, req.ConditionKey)
	case SystemLearned:
		return c.learnedDecision(ctx, room, req.ConditionKey)
	case SystemIntelligent:
		return c.intelligentDecision(req.Mode), ""
	}
	return nil, "unknown_tier"
}

// recordedDecision replays the most recent taught sample for the
// current conditions. Confidence grows with how often the conditions
// have been taught, saturating at 10 samples.
func (c *Controller) recordedDecision(ctx context.Context, room, conditionKey string) (*Decision, string) {
	if conditionKey == "" {
		return nil, "no_condition_key"
	}

	samples, err := c.samples.Query(ctx, room, conditionKey, 10)
	if err != nil {
		c.logger.Warn("Recorded tier query failed", "room", room, "error", err)
		return nil, "recorded_query_failed"
	}
	if len(samples) == 0 {
		return nil, "no_recorded_samples"
	}

	latest := samples[0]
	confidence := float64(len(samples)) / 10
	if confidence > 1 {
		confidence = 1
	}

	return &Decision{
		Brightness:  latest.BrightnessPercent,
		Temperature: latest.TemperatureKelvin,
		Confidence:  confidence,
	}, ""
}

// learnedDecision aggregates recent samples for the conditions; it
// abstains below three samples
func (c *Controller) learnedDecision(ctx context.Context, room, conditionKey string) (*Decision, string) {
	if conditionKey == "" {
		return nil, "no_condition_key"
	}

	samples, err := c.samples.Query(ctx, room, conditionKey, 50)
	if err != nil {
		c.logger.Warn("Learned tier query failed", "room", room, "error", err)
		return nil, "learned_query_failed"
	}

	analysis, ok := AnalyzeSamples(samples, c.now())
	if !ok {
		return nil, "insufficient_learned_samples"
	}

	return &Decision{
		Brightness:  analysis.Brightness,
		Temperature: analysis.Temperature,
		Confidence:  analysis.Confidence,
	}, ""
}

// intelligentDecision is the rule table keyed by home mode. It always
// answers, with a fixed mid confidence.
func (c *Controller) intelligentDecision(mode conditions.Mode) *Decision {
	var brightness, kelvin int
	switch mode {
	case conditions.ModeNight:
		brightness, kelvin = 15, 2000
	case conditions.ModeEarlyMorning:
		brightness, kelvin = 50, 3000
	case conditions.ModeDay:
		brightness, kelvin = 80, 5000
	case conditions.ModeEvening:
		brightness, kelvin = 45, 2700
	default:
		brightness, kelvin = 45, 2700
	}
	return &Decision{
		Brightness:  brightness,
		Temperature: &kelvin,
		Confidence:  0.5,
	}
}

// fallbackReason reports why the answering tier is below the preferred
// one, naming the skipped tiers' abstention causes
func fallbackReason(reasons []string, actual System) string {
	if len(reasons) == 0 {
		return "fell_back_to_" + string(actual)
	}
	out := reasons[0]
	for _, r := range reasons[1:] {
		out += "," + r
	}
	return out
}

func clamp(d *Decision) {
	if d.Brightness < minBrightness {
		d.Brightness = minBrightness
	}
	if d.Brightness > maxBrightness {
		d.Brightness = maxBrightness
	}
	if d.Temperature != nil {
		k := *d.Temperature
		if k < minKelvin {
			k = minKelvin
		}
		if k > maxKelvin {
			k = maxKelvin
		}
		d.Temperature = &k
	}
	if d.Confidence < 0 {
		d.Confidence = 0
	}
	if d.Confidence > 1 {
		d.Confidence = 1
	}
}
