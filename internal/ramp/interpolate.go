// Package ramp implements the morning wake-up ramp: value interpolation
// along a curve and the session lifecycle around it.
package ramp

import "math"

// Curve selects the interpolation shape
type Curve string

const (
	CurveLinear Curve = "linear"
	CurveSmooth Curve = "smooth"
)

// Interpolate returns the value between start and end at the given
// progress (0.0-1.0). Progress outside the range is clamped, and the
// result never leaves the [start,end] envelope regardless of curve.
func Interpolate(start, end int, progress float64, curve Curve) int {
	if math.IsNaN(progress) {
		progress = 0
	}
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}

	eased := progress
	if curve == CurveSmooth {
		eased = (1 - math.Cos(progress*math.Pi)) / 2
	}

	value := int(math.Round(float64(start) + float64(end-start)*eased))

	lo, hi := start, end
	if lo > hi {
		lo, hi = hi, lo
	}
	if value < lo {
		value = lo
	}
	if value > hi {
		value = hi
	}
	return value
}
