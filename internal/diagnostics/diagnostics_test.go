package diagnostics

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/halviala/als-platform/pkg/redis"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestClassifyRoom(t *testing.T) {
	cases := []struct {
		message string
		room    string
	}{
		{"kitchen WLED preset failed", "kitchen"},
		{"Living Room main light unreachable", "living_room"},
		{"livingroom sensor timeout", "living_room"},
		{"bedroom decision rate limited", "bedroom"},
		{"database is locked", "global"},
	}
	for _, tc := range cases {
		if got := ClassifyRoom(tc.message); got != tc.room {
			t.Errorf("ClassifyRoom(%q) = %q, want %q", tc.message, got, tc.room)
		}
	}
}

func TestRecordPushesToRoomAndGlobalFeeds(t *testing.T) {
	mem := redis.NewMemory()
	a := NewAggregator(mem, quietLogger())
	ctx := context.Background()

	entry := a.Record(ctx, "agent", "kitchen WLED preset failed")
	if entry.Room != "kitchen" {
		t.Fatalf("entry room = %q, want kitchen", entry.Room)
	}
	if entry.ID == "" {
		t.Error("entry should carry an id")
	}

	roomFeed, err := a.Feed(ctx, "kitchen")
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if len(roomFeed) != 1 {
		t.Errorf("kitchen feed length = %d, want 1", len(roomFeed))
	}

	globalFeed, err := a.Feed(ctx, "global")
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if len(globalFeed) != 1 {
		t.Errorf("global feed length = %d, want 1", len(globalFeed))
	}
}

func TestRoomFeedCappedAtFive(t *testing.T) {
	a := NewAggregator(redis.NewMemory(), quietLogger())
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		a.Record(ctx, "agent", "kitchen light command failed")
	}

	feed, err := a.Feed(ctx, "kitchen")
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if len(feed) != 5 {
		t.Errorf("kitchen feed length = %d, want capped at 5", len(feed))
	}
}

func TestHealthPillThresholds(t *testing.T) {
	mem := redis.NewMemory()
	a := NewAggregator(mem, quietLogger())
	ctx := context.Background()

	if pill := a.RoomHealth(ctx, "bedroom"); pill != HealthHealthy {
		t.Errorf("untouched room pill = %q, want healthy", pill)
	}

	a.Record(ctx, "agent", "bedroom sensor timeout")
	if pill := a.RoomHealth(ctx, "bedroom"); pill != HealthWarning {
		t.Errorf("pill after 1 error = %q, want warning", pill)
	}

	a.Record(ctx, "agent", "bedroom sensor timeout")
	a.Record(ctx, "agent", "bedroom sensor timeout")
	if pill := a.RoomHealth(ctx, "bedroom"); pill != HealthCritical {
		t.Errorf("pill after 3 errors = %q, want critical", pill)
	}
}

func TestOldErrorsDoNotCountTowardHealth(t *testing.T) {
	mem := redis.NewMemory()
	a := NewAggregator(mem, quietLogger())
	ctx := context.Background()

	// record three errors two days in the past
	past := time.Now().Add(-48 * time.Hour)
	a.now = func() time.Time { return past }
	for i := 0; i < 3; i++ {
		a.Record(ctx, "agent", "study light unreachable")
	}

	// re-evaluated today, the room is healthy again
	a.now = time.Now
	a.refreshHealth(ctx, "study")
	if pill := a.RoomHealth(ctx, "study"); pill != HealthHealthy {
		t.Errorf("pill with only stale errors = %q, want healthy", pill)
	}
}

func TestGlobalHealthIsWorstRoom(t *testing.T) {
	mem := redis.NewMemory()
	a := NewAggregator(mem, quietLogger())
	ctx := context.Background()

	a.Record(ctx, "agent", "hallway sensor timeout")
	if pill := a.GlobalHealth(ctx); pill != HealthWarning {
		t.Errorf("global pill = %q, want warning", pill)
	}

	for i := 0; i < 3; i++ {
		a.Record(ctx, "agent", "kitchen light command failed")
	}
	if pill := a.GlobalHealth(ctx); pill != HealthCritical {
		t.Errorf("global pill = %q, want critical after kitchen turns critical", pill)
	}
}

func TestDailyCheckIsDateGuarded(t *testing.T) {
	a := NewAggregator(redis.NewMemory(), quietLogger())
	ctx := context.Background()

	if !a.DailyCheck(ctx) {
		t.Error("first daily check should run")
	}
	if guard, err := a.redis.Get(ctx, redis.HealthCheckGuardKey()); err != nil || guard == "" {
		t.Errorf("guard date not stored under builder key: %q, %v", guard, err)
	}
	if a.DailyCheck(ctx) {
		t.Error("second same-day check should be a no-op")
	}

	a.now = func() time.Time { return time.Now().AddDate(0, 0, 1) }
	if !a.DailyCheck(ctx) {
		t.Error("next-day check should run again")
	}
}

// Notifier that can be told to fail
type flakyNotifier struct {
	fail bool
	sent []Notification
}

func (f *flakyNotifier) Send(ctx context.Context, title, message, severity string) error {
	if f.fail {
		return errors.New("broker unavailable")
	}
	f.sent = append(f.sent, Notification{Title: title, Message: message, Severity: severity})
	return nil
}

func TestFallbackNotifierPersistsOnFailure(t *testing.T) {
	mem := redis.NewMemory()
	primary := &flakyNotifier{fail: true}
	n := NewFallbackNotifier(primary, mem, quietLogger())
	ctx := context.Background()

	if err := n.Send(ctx, "ALS", "ramp failed to start", "warning"); err != nil {
		t.Fatalf("Send with fallback: %v", err)
	}

	pending, err := n.Pending(ctx)
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending = %d, want 1", len(pending))
	}
	if pending[0].Message != "ramp failed to start" {
		t.Errorf("pending message = %q", pending[0].Message)
	}
}

func TestFallbackNotifierFlush(t *testing.T) {
	mem := redis.NewMemory()
	primary := &flakyNotifier{fail: true}
	n := NewFallbackNotifier(primary, mem, quietLogger())
	ctx := context.Background()

	n.Send(ctx, "ALS", "first", "info")
	n.Send(ctx, "ALS", "second", "info")

	primary.fail = false
	if err := n.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if len(primary.sent) != 2 {
		t.Errorf("flushed = %d, want 2", len(primary.sent))
	}

	pending, _ := n.Pending(ctx)
	if len(pending) != 0 {
		t.Errorf("pending after flush = %d, want 0", len(pending))
	}
}

func TestFallbackNotifierPassesThroughWhenHealthy(t *testing.T) {
	primary := &flakyNotifier{}
	n := NewFallbackNotifier(primary, redis.NewMemory(), quietLogger())

	if err := n.Send(context.Background(), "ALS", "all good", "info"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(primary.sent) != 1 {
		t.Errorf("primary sent = %d, want 1", len(primary.sent))
	}
	pending, _ := n.Pending(context.Background())
	if len(pending) != 0 {
		t.Errorf("pending = %d, want 0", len(pending))
	}
}
