// Package diagnostics classifies runtime errors into per-room feeds and
// aggregates room health into a single home status.
package diagnostics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/halviala/als-platform/pkg/redis"
)

// Health pill values, ordered from best to worst
const (
	HealthHealthy  = "healthy"
	HealthWarning  = "warning"
	HealthCritical = "critical"
)

// feed caps
const (
	roomFeedCap   = 5
	globalFeedCap = 20
)

// criticalThreshold is the 24h error count at which a room turns critical
const criticalThreshold = 3

// Entry is one classified error in a feed
type Entry struct {
	ID        string    `json:"id"`
	Room      string    `json:"room"`
	Source    string    `json:"source"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// knownRooms maps message keywords to feed rooms. Checked in order so
// "living room" variants collapse to one feed.
var knownRooms = []struct {
	keyword string
	room    string
}{
	{"living_room", "living_room"},
	{"living room", "living_room"},
	{"livingroom", "living_room"},
	{"kitchen", "kitchen"},
	{"bedroom", "bedroom"},
	{"bathroom", "bathroom"},
	{"hallway", "hallway"},
	{"study", "study"},
	{"sauna", "sauna"},
}

// ClassifyRoom maps an error message to the room feed it belongs to;
// unmatched messages land in the global feed
func ClassifyRoom(message string) string {
	lower := strings.ToLower(message)
	for _, entry := range knownRooms {
		if strings.Contains(lower, entry.keyword) {
			return entry.room
		}
	}
	return "global"
}

// Aggregator records classified errors and keeps room and home health
// pills current. Safe for concurrent use.
type Aggregator struct {
	redis  redis.Client
	logger *slog.Logger

	mu    sync.Mutex
	rooms map[string]bool

	now func() time.Time
}

// NewAggregator creates a diagnostics aggregator
func NewAggregator(redisClient redis.Client, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		redis:  redisClient,
		logger: logger,
		rooms:  make(map[string]bool),
		now:    time.Now,
	}
}

// Record classifies an error message, pushes it onto the owning room's
// feed and the global feed, and refreshes the health pills. Recording
// never fails loudly: a broken diagnostics path must not take down the
// lighting decisions it reports on.
func (a *Aggregator) Record(ctx context.Context, source, message string) Entry {
	room := ClassifyRoom(message)
	entry := Entry{
		ID:        uuid.New().String(),
		Room:      room,
		Source:    source,
		Message:   message,
		Timestamp: a.now(),
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		a.logger.Warn("Failed to encode diagnostics entry", "error", err)
		return entry
	}

	a.push(ctx, redis.ErrorFeedKey(room), payload, roomFeedCap)
	if room != "global" {
		a.push(ctx, redis.ErrorFeedKey("global"), payload, globalFeedCap)
	}

	a.mu.Lock()
	a.rooms[room] = true
	a.mu.Unlock()

	a.refreshHealth(ctx, room)
	a.refreshGlobalHealth(ctx)

	a.logger.Debug("Diagnostics entry recorded", "room", room, "source", source)
	return entry
}

func (a *Aggregator) push(ctx context.Context, key string, payload []byte, limit int) {
	if err := a.redis.LPush(ctx, key, string(payload)); err != nil {
		a.logger.Warn("Failed to push diagnostics entry", "key", key, "error", err)
		return
	}
	if err := a.redis.LTrim(ctx, key, 0, int64(limit-1)); err != nil {
		a.logger.Warn("Failed to trim diagnostics feed", "key", key, "error", err)
	}
}

// RoomHealth returns the room's current health pill
func (a *Aggregator) RoomHealth(ctx context.Context, room string) string {
	pill, err := a.redis.Get(ctx, redis.HealthPillKey(room))
	if err != nil {
		return HealthHealthy
	}
	return pill
}

// GlobalHealth returns the aggregated home health pill
func (a *Aggregator) GlobalHealth(ctx context.Context) string {
	pill, err := a.redis.Get(ctx, redis.GlobalHealthKey())
	if err != nil {
		return HealthHealthy
	}
	return pill
}

// Feed returns the entries in a room's error feed, newest first
func (a *Aggregator) Feed(ctx context.Context, room string) ([]Entry, error) {
	raw, err := a.redis.LRange(ctx, redis.ErrorFeedKey(room), 0, -1)
	if err != nil {
		return nil, fmt.Errorf("reading error feed for %s: %w", room, err)
	}
	entries := make([]Entry, 0, len(raw))
	for _, item := range raw {
		var entry Entry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// refreshHealth recomputes a room's pill from its 24h error count
func (a *Aggregator) refreshHealth(ctx context.Context, room string) {
	entries, err := a.Feed(ctx, room)
	if err != nil {
		a.logger.Warn("Failed to read feed for health pill", "room", room, "error", err)
		return
	}

	cutoff := a.now().Add(-24 * time.Hour)
	recent := 0
	for _, entry := range entries {
		if entry.Timestamp.After(cutoff) {
			recent++
		}
	}

	pill := HealthHealthy
	switch {
	case recent >= criticalThreshold:
		pill = HealthCritical
	case recent > 0:
		pill = HealthWarning
	}

	if err := a.redis.Set(ctx, redis.HealthPillKey(room), pill, 0); err != nil {
		a.logger.Warn("Failed to store health pill", "room", room, "error", err)
	}
}

// refreshGlobalHealth sets the home pill to the worst room pill
func (a *Aggregator) refreshGlobalHealth(ctx context.Context) {
	a.mu.Lock()
	rooms := make([]string, 0, len(a.rooms))
	for room := range a.rooms {
		rooms = append(rooms, room)
	}
	a.mu.Unlock()

	worst := HealthHealthy
	for _, room := range rooms {
		pill := a.RoomHealth(ctx, room)
		if healthRank(pill) > healthRank(worst) {
			worst = pill
		}
	}

	if err := a.redis.Set(ctx, redis.GlobalHealthKey(), worst, 0); err != nil {
		a.logger.Warn("Failed to store global health pill", "error", err)
	}
}

func healthRank(pill string) int {
	switch pill {
	case HealthCritical:
		return 2
	case HealthWarning:
		return 1
	}
	return 0
}

// DailyCheck runs the periodic health refresh at most once per calendar
// day; repeated calls on the same date are no-ops
func (a *Aggregator) DailyCheck(ctx context.Context) bool {
	today := a.now().Format("2006-01-02")

	last, err := a.redis.Get(ctx, redis.HealthCheckGuardKey())
	if err == nil && last == today {
		return false
	}

	a.mu.Lock()
	rooms := make([]string, 0, len(a.rooms))
	for room := range a.rooms {
		rooms = append(rooms, room)
	}
	a.mu.Unlock()

	for _, room := range rooms {
		a.refreshHealth(ctx, room)
	}
	a.refreshGlobalHealth(ctx)

	if err := a.redis.Set(ctx, redis.HealthCheckGuardKey(), today, 48*time.Hour); err != nil {
		a.logger.Warn("Failed to store daily check guard", "error", err)
	}
	a.logger.Info("Daily diagnostics check complete", "rooms", len(rooms))
	return true
}
