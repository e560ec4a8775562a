// Package hierarchy resolves the lighting decision for a room by
// walking the control tiers: recorded, learned, intelligent, manual.
package hierarchy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/halviala/als-platform/internal/conditions"
)

// System identifies a control tier
type System string

const (
	SystemRecorded    System = "recorded"
	SystemLearned     System = "learned"
	SystemIntelligent System = "intelligent"
	SystemManual      System = "manual"
)

// Valid reports whether s names a known tier
func (s System) Valid() bool {
	switch s {
	case SystemRecorded, SystemLearned, SystemIntelligent, SystemManual:
		return true
	}
	return false
}

// RoomConfig is one room's entry in the preferences file
type RoomConfig struct {
	PreferredSystem System   `yaml:"preferred_system"`
	MainLight       string   `yaml:"main_light"`
	AccentFixtures  []string `yaml:"accent_fixtures"`
	TurnOffOnClear  bool     `yaml:"turn_off_on_clear"`
	Ramp            bool     `yaml:"ramp"`
}

// Preferences holds per-room lighting configuration loaded from YAML
type Preferences struct {
	Rooms map[string]RoomConfig `yaml:"rooms"`
}

// LoadPreferences reads and validates a room preferences file
func LoadPreferences(path string) (*Preferences, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading room preferences: %w", err)
	}

	var prefs Preferences
	if err := yaml.Unmarshal(data, &prefs); err != nil {
		return nil, fmt.Errorf("parsing room preferences: %w", err)
	}

	for room, rc := range prefs.Rooms {
		if rc.PreferredSystem != "" && !rc.PreferredSystem.Valid() {
			return nil, fmt.Errorf("room %q: unknown preferred system %q", room, rc.PreferredSystem)
		}
	}
	return &prefs, nil
}

// For returns the configuration for a room. Unconfigured rooms default
// to the intelligent tier.
func (p *Preferences) For(room string) RoomConfig {
	normalized := conditions.NormalizeRoom(room)
	if p != nil {
		if rc, ok := p.Rooms[normalized]; ok {
			if rc.PreferredSystem == "" {
				rc.PreferredSystem = SystemIntelligent
			}
			return rc
		}
	}
	return RoomConfig{PreferredSystem: SystemIntelligent}
}
