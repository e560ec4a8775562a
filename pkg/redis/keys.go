package redis

import "fmt"

// Key construction helpers for ALS state persisted in Redis.

// ModeStateKey returns the key holding the last resolved home mode (string)
func ModeStateKey() string {
	return "als:mode:current"
}

// ScheduleCacheKey returns the key caching the daily schedule (JSON string)
// Pattern: als:schedule:{YYYY-MM-DD}
func ScheduleCacheKey(date string) string {
	return fmt.Sprintf("als:schedule:%s", date)
}

// RampSessionKey returns the key holding the active ramp session (hash)
func RampSessionKey() string {
	return "als:ramp:session"
}

// RampLastRunKey returns the key holding the last ramp run date (string)
func RampLastRunKey() string {
	return "als:ramp:last_run_date"
}

// ErrorFeedKey returns the key for a room's error feed (list, newest first)
// Pattern: als:errors:{room}; room "global" collects unclassified errors
func ErrorFeedKey(room string) string {
	return fmt.Sprintf("als:errors:%s", room)
}

// HealthPillKey returns the key for a room's health pill status (string)
func HealthPillKey(room string) string {
	return fmt.Sprintf("als:health:%s", room)
}

// GlobalHealthKey returns the key for the aggregated home health status (string)
func GlobalHealthKey() string {
	return "als:health:global"
}

// HealthCheckGuardKey returns the key holding the last daily health
// check date (string)
func HealthCheckGuardKey() string {
	return "als:health:last_check_date"
}

// NotificationFallbackKey returns the key for persisted notifications (list)
// Used when the primary notification channel is unavailable
func NotificationFallbackKey() string {
	return "als:notifications:pending"
}
