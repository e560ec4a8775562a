package lighting

import (
	"sync"
	"time"
)

// OverrideManager tracks per-room manual overrides with expiry. While a
// room is overridden the decision loop maintains its current state, and
// an "evening" override additionally forces the home mode.
type OverrideManager struct {
	mu        sync.RWMutex
	overrides map[string]time.Time
	evening   bool
}

// NewOverrideManager creates an empty override manager
func NewOverrideManager() *OverrideManager {
	return &OverrideManager{
		overrides: make(map[string]time.Time),
	}
}

// Set places a manual override on a room for the given duration and
// returns its expiry
func (om *OverrideManager) Set(room string, durationMinutes int) time.Time {
	om.mu.Lock()
	defer om.mu.Unlock()

	expiresAt := time.Now().Add(time.Duration(durationMinutes) * time.Minute)
	om.overrides[room] = expiresAt
	return expiresAt
}

// Active reports whether a room has an unexpired override. Expired
// entries are removed on read.
func (om *OverrideManager) Active(room string) bool {
	om.mu.Lock()
	defer om.mu.Unlock()

	expiresAt, exists := om.overrides[room]
	if !exists {
		return false
	}
	if time.Now().After(expiresAt) {
		delete(om.overrides, room)
		return false
	}
	return true
}

// Clear removes a room's override; reports whether one existed
func (om *OverrideManager) Clear(room string) bool {
	om.mu.Lock()
	defer om.mu.Unlock()

	if _, exists := om.overrides[room]; exists {
		delete(om.overrides, room)
		return true
	}
	return false
}

// SetEveningOverride flips the whole-home evening override
func (om *OverrideManager) SetEveningOverride(on bool) {
	om.mu.Lock()
	om.evening = on
	om.mu.Unlock()
}

// EveningOverride reports whether the evening override is on
func (om *OverrideManager) EveningOverride() bool {
	om.mu.RLock()
	defer om.mu.RUnlock()
	return om.evening
}

// ActiveRooms returns the rooms with unexpired overrides
func (om *OverrideManager) ActiveRooms() []string {
	om.mu.RLock()
	defer om.mu.RUnlock()

	now := time.Now()
	rooms := make([]string, 0, len(om.overrides))
	for room, expiresAt := range om.overrides {
		if now.Before(expiresAt) {
			rooms = append(rooms, room)
		}
	}
	return rooms
}

// CleanupExpired removes expired overrides and returns how many
func (om *OverrideManager) CleanupExpired() int {
	om.mu.Lock()
	defer om.mu.Unlock()

	now := time.Now()
	cleaned := 0
	for room, expiresAt := range om.overrides {
		if now.After(expiresAt) {
			delete(om.overrides, room)
			cleaned++
		}
	}
	return cleaned
}
