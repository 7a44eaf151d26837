package classify

import (
	"math"
	"time"

	"climarisk/internal/types"
)

// featureCount is the fixed width of the model feature vector. Stored
// artifacts whose weight vector disagrees are rejected at load time.
const featureCount = 6

// FeatureVector derives the trained-model input from the analog window:
// mean, max, and variance of the category metric, plus normalized
// day-of-year and location. The layout is part of the artifact contract;
// changing it requires retraining and a version bump.
func FeatureVector(window []types.WeatherObservation, cat types.ConditionCategory, dayOfYear int, loc types.Location) []float64 {
	mean, maxV, variance := summarize(MetricValues(window, cat))
	return []float64{
		mean,
		maxV,
		variance,
		float64(dayOfYear) / 366.0,
		loc.Lat / 90.0,
		loc.Lon / 180.0,
	}
}

// DayOfYear returns the 1-based ordinal day for a calendar date.
func DayOfYear(t time.Time) int {
	return t.YearDay()
}

// summarize computes the mean, max, and population variance of values.
// Zero values yield all zeros.
func summarize(values []float64) (mean, maxV, variance float64) {
	if len(values) == 0 {
		return 0, 0, 0
	}

	maxV = math.Inf(-1)
	var sum float64
	for _, v := range values {
		sum += v
		if v > maxV {
			maxV = v
		}
	}
	mean = sum / float64(len(values))

	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	variance = sq / float64(len(values))
	return mean, maxV, variance
}
