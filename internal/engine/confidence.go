// Package engine ties the historical accessor, classifier, and cache
// together into the single-day prediction pipeline and the date-range
// analyzer built on top of it.
package engine

import (
	"math"

	"climarisk/internal/classify"
	"climarisk/internal/types"
)

// maxVariancePenalty caps how much dispersion in the window can depress
// confidence. A fully saturated penalty still leaves half the sample-size
// term, keeping confidence monotone in the number of matched years.
const maxVariancePenalty = 0.5

// Confidence scores how much weight a probability estimate deserves:
// min(1, n/target) scaled down by the window's dispersion penalty.
// For fixed dispersion the result is non-decreasing in sampleYears.
func Confidence(sampleYears, targetYears int, values []float64) float64 {
	if sampleYears <= 0 || targetYears <= 0 {
		return 0
	}
	coverage := float64(sampleYears) / float64(targetYears)
	if coverage > 1 {
		coverage = 1
	}
	return coverage * (1 - dispersionPenalty(values))
}

// dispersionPenalty normalizes the window's spread into [0, maxVariancePenalty].
// The +1 in the denominator keeps near-zero means (freezing temperatures,
// dry spells) from blowing the ratio up.
func dispersionPenalty(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var variance float64
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(values))

	penalty := math.Sqrt(variance) / (math.Abs(mean) + 1)
	if penalty > maxVariancePenalty {
		return maxVariancePenalty
	}
	return penalty
}

// CategoryConfidence computes the confidence for one category over the
// window, using that category's metric series.
func CategoryConfidence(
	window []types.WeatherObservation,
	cat types.ConditionCategory,
	sampleYears, targetYears int,
) float64 {
	return Confidence(sampleYears, targetYears, classify.MetricValues(window, cat))
}

// OverallConfidence is the weakest per-category confidence; the aggregate
// score is only as trustworthy as its least-covered input.
func OverallConfidence(conditions map[types.ConditionCategory]types.ConditionResult) float64 {
	overall := math.Inf(1)
	for _, c := range conditions {
		if c.Confidence < overall {
			overall = c.Confidence
		}
	}
	if math.IsInf(overall, 1) {
		return 0
	}
	return overall
}
