package lighting

import (
	"strings"

	"github.com/halviala/als-platform/internal/conditions"
	"github.com/halviala/als-platform/internal/timewindow"
)

// AccentCommand is one outgoing accent (WLED) preset change
type AccentCommand struct {
	Fixture string
	Preset  string
}

// accent presets per mode for motion
var motionPresets = map[conditions.Mode]string{
	conditions.ModeNight:        "night",
	conditions.ModeEarlyMorning: "morning",
	conditions.ModeEvening:      "evening",
}

// AccentsOnMotion returns the accent preset commands for motion in a
// room. Day mode skips accents entirely.
func AccentsOnMotion(mode conditions.Mode, fixtures []string) []AccentCommand {
	if mode == conditions.ModeDay || len(fixtures) == 0 {
		return nil
	}
	preset, ok := motionPresets[mode]
	if !ok {
		return nil
	}
	commands := make([]AccentCommand, 0, len(fixtures))
	for _, fixture := range fixtures {
		commands = append(commands, AccentCommand{Fixture: fixture, Preset: preset})
	}
	return commands
}

// AccentsOnClear returns the accent commands for motion clearing: sink
// fixtures go dark, fridge fixtures drop to the night preset. Day mode
// leaves accents alone, matching AccentsOnMotion.
func AccentsOnClear(mode conditions.Mode, fixtures []string) []AccentCommand {
	if mode == conditions.ModeDay || len(fixtures) == 0 {
		return nil
	}
	commands := make([]AccentCommand, 0, len(fixtures))
	for _, fixture := range fixtures {
		preset := "off"
		if strings.Contains(fixture, "fridge") {
			preset = "night"
		}
		commands = append(commands, AccentCommand{Fixture: fixture, Preset: preset})
	}
	return commands
}

// NightBlocked reports whether main-light activation is suppressed:
// Night mode before the morning window start blocks motion lighting
func NightBlocked(mode conditions.Mode, clock timewindow.ClockTime, morningStart timewindow.ClockTime) bool {
	return mode == conditions.ModeNight && clock.Before(morningStart)
}
