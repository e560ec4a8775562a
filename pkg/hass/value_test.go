package hass

import "testing"

func TestNormalize_SentinelsAreAbsent(t *testing.T) {
	for _, raw := range []string{"", "unknown", "unavailable"} {
		v := Normalize(raw)
		if v.Present() {
			t.Errorf("Expected %q to be absent", raw)
		}
		if got := v.Float(42.0); got != 42.0 {
			t.Errorf("Expected default 42.0 for %q, got %f", raw, got)
		}
		if got := v.String("fallback"); got != "fallback" {
			t.Errorf("Expected default string for %q, got %q", raw, got)
		}
	}
}

func TestNormalize_RealValues(t *testing.T) {
	v := Normalize("23.5")
	if !v.Present() {
		t.Fatal("Expected value to be present")
	}
	if got := v.Float(0); got != 23.5 {
		t.Errorf("Expected 23.5, got %f", got)
	}
	if got := v.Int(0); got != 23 {
		t.Errorf("Expected 23, got %d", got)
	}
}

func TestNormalize_Bool(t *testing.T) {
	if !Normalize("on").Bool(false) {
		t.Error("Expected 'on' to be true")
	}
	if Normalize("off").Bool(true) {
		t.Error("Expected 'off' to be false")
	}
	if !Normalize("unavailable").Bool(true) {
		t.Error("Expected absent value to use default")
	}
	if Normalize("garbage").Bool(false) {
		t.Error("Expected unparsable value to use default")
	}
}
