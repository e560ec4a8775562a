package lighting

import (
	"sync"
	"time"
)

// RateLimiter spaces out lighting decisions per room so a chatty motion
// sensor cannot flood the lights with commands
type RateLimiter struct {
	mu           sync.RWMutex
	lastDecision map[string]time.Time
}

// NewRateLimiter creates an empty rate limiter
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		lastDecision: make(map[string]time.Time),
	}
}

// Allow reports whether at least minInterval has passed since the last
// decision for the room, recording the decision time when it has
func (rl *RateLimiter) Allow(room string, minInterval time.Duration) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	last, exists := rl.lastDecision[room]
	if exists && time.Since(last) < minInterval {
		return false
	}
	rl.lastDecision[room] = time.Now()
	return true
}

// Record marks a decision time without the interval check. Used when a
// decision bypasses rate limiting, a forced refresh for instance.
func (rl *RateLimiter) Record(room string) {
	rl.mu.Lock()
	rl.lastDecision[room] = time.Now()
	rl.mu.Unlock()
}

// Last returns the last decision time for a room
func (rl *RateLimiter) Last(room string) (time.Time, bool) {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	last, exists := rl.lastDecision[room]
	return last, exists
}
