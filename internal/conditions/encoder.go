// Package conditions derives the discrete condition key used to index
// learned lighting samples.
package conditions

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Mode is the home-wide lighting regime
type Mode string

const (
	ModeNight        Mode = "Night"
	ModeEarlyMorning Mode = "Early Morning"
	ModeDay          Mode = "Day"
	ModeEvening      Mode = "Evening"
)

// Valid reports whether m is one of the four known modes
func (m Mode) Valid() bool {
	switch m {
	case ModeNight, ModeEarlyMorning, ModeDay, ModeEvening:
		return true
	}
	return false
}

// Season is a calendar quarter anchored on solstices and equinoxes
type Season string

const (
	SeasonWinter Season = "Winter"
	SeasonSpring Season = "Spring"
	SeasonSummer Season = "Summer"
	SeasonFall   Season = "Fall"
)

// SeasonFor returns the season for a date using solstice/equinox
// thresholds: winter from Dec 21, spring from Mar 20, summer from
// Jun 21, fall from Sep 22.
func SeasonFor(t time.Time) Season {
	month := int(t.Month())
	day := t.Day()

	switch {
	case (month == 12 && day >= 21) || month <= 2 || (month == 3 && day < 20):
		return SeasonWinter
	case (month == 3 && day >= 20) || month <= 5 || (month == 6 && day < 21):
		return SeasonSpring
	case (month == 6 && day >= 21) || month <= 8 || (month == 9 && day < 22):
		return SeasonSummer
	default:
		return SeasonFall
	}
}

// SunBucket discretizes sun elevation in degrees. Malformed inputs
// (NaN, Inf) default to High_Sun so that key derivation never fails.
func SunBucket(elevationDeg float64) string {
	if math.IsNaN(elevationDeg) || math.IsInf(elevationDeg, 0) {
		return "High_Sun"
	}
	switch {
	case elevationDeg < 0:
		return "Below_Horizon"
	case elevationDeg < 15:
		return "Low_Sun"
	case elevationDeg < 40:
		return "Mid_Sun"
	default:
		return "High_Sun"
	}
}

// CloudBucket discretizes cloud coverage into 20% steps clamped to
// [0,100]. Malformed inputs default to 0.
func CloudBucket(coveragePct float64) int {
	if math.IsNaN(coveragePct) || math.IsInf(coveragePct, 0) {
		return 0
	}
	bucket := int(math.Floor(coveragePct/20)) * 20
	if bucket < 0 {
		return 0
	}
	if bucket > 100 {
		return 100
	}
	return bucket
}

// Encode derives the condition key for the given environmental inputs.
// Mode spaces are collapsed so keys stay single tokens, e.g.
// "Day_High_Sun_60_Summer" or "Early_Morning_Low_Sun_0_Winter".
func Encode(mode Mode, sunElevationDeg, cloudCoveragePct float64, season Season) string {
	modePart := strings.ReplaceAll(string(mode), " ", "_")
	return fmt.Sprintf("%s_%s_%d_%s", modePart, SunBucket(sunElevationDeg), CloudBucket(cloudCoveragePct), season)
}

// NormalizeRoom canonicalizes a room identifier: lowercase, spaces to
// underscores, and the historical "livingroom" spelling folded into
// "living_room".
func NormalizeRoom(room string) string {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(room)), " ", "_")
	if normalized == "livingroom" {
		return "living_room"
	}
	return normalized
}
