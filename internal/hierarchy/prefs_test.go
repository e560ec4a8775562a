package hierarchy

import (
	"os"
	"path/filepath"
	"testing"
)

func writePrefs(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rooms.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing preferences file: %v", err)
	}
	return path
}

func TestLoadPreferences(t *testing.T) {
	path := writePrefs(t, `
rooms:
  living_room:
    preferred_system: learned
    main_light: light.living_room_ceiling
    turn_off_on_clear: true
  kitchen:
    preferred_system: recorded
    main_light: light.kitchen_ceiling
    accent_fixtures:
      - wled_sink
      - wled_fridge
`)

	prefs, err := LoadPreferences(path)
	if err != nil {
		t.Fatalf("LoadPreferences: %v", err)
	}

	lr := prefs.For("Living Room")
	if lr.PreferredSystem != SystemLearned {
		t.Errorf("living_room preferred system = %s, want learned", lr.PreferredSystem)
	}
	if !lr.TurnOffOnClear {
		t.Error("living_room should turn off on clear")
	}

	kitchen := prefs.For("kitchen")
	if len(kitchen.AccentFixtures) != 2 {
		t.Errorf("kitchen accent fixtures = %v, want 2 entries", kitchen.AccentFixtures)
	}
}

func TestLoadPreferencesRejectsUnknownSystem(t *testing.T) {
	path := writePrefs(t, `
rooms:
  study:
    preferred_system: psychic
`)
	if _, err := LoadPreferences(path); err == nil {
		t.Error("unknown preferred system should be rejected")
	}
}

func TestLoadPreferencesMissingFile(t *testing.T) {
	if _, err := LoadPreferences(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("missing file should be an error")
	}
}

func TestPreferencesDefaultSystem(t *testing.T) {
	path := writePrefs(t, `
rooms:
  bedroom:
    main_light: light.bedroom_ceiling
`)
	prefs, err := LoadPreferences(path)
	if err != nil {
		t.Fatalf("LoadPreferences: %v", err)
	}
	if got := prefs.For("bedroom").PreferredSystem; got != SystemIntelligent {
		t.Errorf("unset preferred system = %s, want intelligent default", got)
	}
}
