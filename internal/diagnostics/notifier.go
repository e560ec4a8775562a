package diagnostics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/halviala/als-platform/pkg/mqtt"
	"github.com/halviala/als-platform/pkg/redis"
)

// Notifier delivers a user-visible notification
type Notifier interface {
	Send(ctx context.Context, title, message, severity string) error
}

// Notification is the wire payload published on the notify topic
type Notification struct {
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Severity  string    `json:"severity"`
	Timestamp time.Time `json:"timestamp"`
}

// MQTTNotifier publishes notifications on the platform notify topic
type MQTTNotifier struct {
	client mqtt.Client
}

// NewMQTTNotifier creates the primary notifier
func NewMQTTNotifier(client mqtt.Client) *MQTTNotifier {
	return &MQTTNotifier{client: client}
}

func (n *MQTTNotifier) Send(ctx context.Context, title, message, severity string) error {
	payload := Notification{
		Title:     title,
		Message:   message,
		Severity:  severity,
		Timestamp: time.Now(),
	}
	if err := n.client.PublishJSON(mqtt.TopicNotify, 1, false, payload); err != nil {
		return fmt.Errorf("publishing notification: %w", err)
	}
	return nil
}

// FallbackNotifier tries the primary notifier and, on failure, persists
// the notification to Redis so it survives until the channel recovers
type FallbackNotifier struct {
	primary Notifier
	redis   redis.Client
	logger  *slog.Logger
}

// NewFallbackNotifier wraps primary with a Redis persistence fallback
func NewFallbackNotifier(primary Notifier, redisClient redis.Client, logger *slog.Logger) *FallbackNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &FallbackNotifier{primary: primary, redis: redisClient, logger: logger}
}

func (n *FallbackNotifier) Send(ctx context.Context, title, message, severity string) error {
	err := n.primary.Send(ctx, title, message, severity)
	if err == nil {
		return nil
	}
	n.logger.Warn("Primary notification channel failed, persisting", "error", err)

	payload, marshalErr := json.Marshal(Notification{
		Title:     title,
		Message:   message,
		Severity:  severity,
		Timestamp: time.Now(),
	})
	if marshalErr != nil {
		return fmt.Errorf("encoding fallback notification: %w", marshalErr)
	}
	if redisErr := n.redis.LPush(ctx, redis.NotificationFallbackKey(), string(payload)); redisErr != nil {
		return fmt.Errorf("persisting fallback notification: %w", redisErr)
	}
	return nil
}

// Pending returns notifications persisted while the primary channel was
// down, newest first
func (n *FallbackNotifier) Pending(ctx context.Context) ([]Notification, error) {
	raw, err := n.redis.LRange(ctx, redis.NotificationFallbackKey(), 0, -1)
	if err != nil {
		return nil, fmt.Errorf("reading pending notifications: %w", err)
	}
	out := make([]Notification, 0, len(raw))
	for _, item := range raw {
		var notification Notification
		if err := json.Unmarshal([]byte(item), &notification); err != nil {
			continue
		}
		out = append(out, notification)
	}
	return out, nil
}

// Flush re-sends persisted notifications through the recovered primary
// channel and clears the backlog on success
func (n *FallbackNotifier) Flush(ctx context.Context) error {
	pending, err := n.Pending(ctx)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	for _, notification := range pending {
		if err := n.primary.Send(ctx, notification.Title, notification.Message, notification.Severity); err != nil {
			return fmt.Errorf("flushing pending notifications: %w", err)
		}
	}
	if err := n.redis.Del(ctx, redis.NotificationFallbackKey()); err != nil {
		return fmt.Errorf("clearing pending notifications: %w", err)
	}
	n.logger.Info("Flushed pending notifications", "count", len(pending))
	return nil
}
