package hierarchy

import (
	"math"
	"time"

	"github.com/halviala/als-platform/internal/store"
)

// minLearnedSamples is the floor below which the learned tier abstains
const minLearnedSamples = 3

// recencyHalfLifeDays controls how fast old samples lose weight
const recencyHalfLifeDays = 14.0

// Analysis is the learned tier's aggregate over recent samples
type Analysis struct {
	Brightness  int
	Temperature *int
	Confidence  float64
	SampleCount int
}

// AnalyzeSamples computes a recency and consistency weighted average of
// the samples. Returns false when fewer than minLearnedSamples are
// available.
func AnalyzeSamples(samples []store.LearnedSample, now time.Time) (*Analysis, bool) {
	if len(samples) < minLearnedSamples {
		return nil, false
	}

	var weightSum, brightnessSum float64
	var tempWeightSum, tempSum float64

	for _, sample := range samples {
		w := recencyWeight(sample, now)
		weightSum += w
		brightnessSum += w * float64(sample.BrightnessPercent)
		if sample.TemperatureKelvin != nil {
			tempWeightSum += w
			tempSum += w * float64(*sample.TemperatureKelvin)
		}
	}
	if weightSum == 0 {
		return nil, false
	}

	analysis := &Analysis{
		Brightness:  int(math.Round(brightnessSum / weightSum)),
		SampleCount: len(samples),
	}
	if tempWeightSum > 0 {
		kelvin := int(math.Round(tempSum / tempWeightSum))
		analysis.Temperature = &kelvin
	}

	analysis.Confidence = confidence(samples, float64(analysis.Brightness))
	return analysis, true
}

// recencyWeight decays exponentially with sample age
func recencyWeight(sample store.LearnedSample, now time.Time) float64 {
	taught, err := time.ParseInLocation("2006-01-02T15:04:05", sample.Timestamp, now.Location())
	if err != nil {
		// unparseable timestamps count as very old, not as errors
		return 0.1
	}
	ageDays := now.Sub(taught).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}
	return math.Pow(0.5, ageDays/recencyHalfLifeDays)
}

// confidence combines sample volume with brightness consistency: many
// tightly-grouped samples approach 1.0, scattered teaching stays low
func confidence(samples []store.LearnedSample, mean float64) float64 {
	var variance float64
	for _, sample := range samples {
		d := float64(sample.BrightnessPercent) - mean
		variance += d * d
	}
	variance /= float64(len(samples))
	stddev := math.Sqrt(variance)

	consistency := 1 - stddev/50
	if consistency < 0 {
		consistency = 0
	}

	volume := float64(len(samples)) / 10
	if volume > 1 {
		volume = 1
	}

	c := consistency * volume
	if c > 1 {
		c = 1
	}
	return c
}
