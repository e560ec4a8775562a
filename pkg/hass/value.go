// Package hass normalizes entity values arriving from the Home Assistant
// side of the bridge. The platform reports missing data with sentinel
// strings; those are converted to an explicit absent Value at ingress so
// core logic never tests magic strings.
package hass

import "strconv"

// Value is an entity state that is either present or absent with a reason.
type Value struct {
	raw     string
	present bool
}

// Normalize converts a raw entity state into a Value. The sentinels
// "unknown", "unavailable" and the empty string map to absent.
func Normalize(raw string) Value {
	switch raw {
	case "", "unknown", "unavailable":
		return Value{raw: raw, present: false}
	default:
		return Value{raw: raw, present: true}
	}
}

// Present reports whether the value carries real data
func (v Value) Present() bool {
	return v.present
}

// String returns the value, or def when absent
func (v Value) String(def string) string {
	if !v.present {
		return def
	}
	return v.raw
}

// Float returns the value parsed as float64, or def when absent or unparsable
func (v Value) Float(def float64) float64 {
	if !v.present {
		return def
	}
	f, err := strconv.ParseFloat(v.raw, 64)
	if err != nil {
		return def
	}
	return f
}

// Int returns the value parsed as int, or def when absent or unparsable.
// Accepts float-formatted numbers the way the platform emits them.
func (v Value) Int(def int) int {
	if !v.present {
		return def
	}
	f, err := strconv.ParseFloat(v.raw, 64)
	if err != nil {
		return def
	}
	return int(f)
}

// Bool returns true for "on"/"true"/"1", false for "off"/"false"/"0",
// and def otherwise
func (v Value) Bool(def bool) bool {
	if !v.present {
		return def
	}
	switch v.raw {
	case "on", "true", "1":
		return true
	case "off", "false", "0":
		return false
	}
	return def
}
