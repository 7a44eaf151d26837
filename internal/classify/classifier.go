// Package classify estimates per-category exceedance probabilities over an
// analog window of historical observations. Two strategies implement one
// Classifier interface -- empirical frequency and trained per-category
// models -- selected by configuration so the rest of the pipeline is
// mode-agnostic.
package classify

import (
	"time"

	"climarisk/internal/types"
)

// Target identifies the day and place being scored. The empirical strategy
// ignores it; the trained-model strategy folds it into the feature vector.
type Target struct {
	Date     time.Time
	Location types.Location
}

// Classifier produces the probability, in [0,1], that the target day
// exceeds the category's threshold, given the historical analog window.
// Implementations are pure functions over immutable inputs and are safe for
// concurrent use.
type Classifier interface {
	// Score estimates the exceedance probability for one category. The
	// window may be smaller than the minimum sample count; implementations
	// still return a probability and leave confidence handling to the
	// caller.
	Score(window []types.WeatherObservation, target Target, threshold types.ConditionThreshold) (float64, error)

	// Mode identifies the strategy for diagnostics.
	Mode() types.ClassifierMode
}

// metricValue extracts the observation metric relevant to a category.
// very_uncomfortable is derived: the Rothfusz heat index over mean
// temperature and relative humidity.
func metricValue(obs types.WeatherObservation, cat types.ConditionCategory) float64 {
	switch cat {
	case types.ConditionVeryHot:
		return obs.TempMaxC
	case types.ConditionVeryCold:
		return obs.TempMinC
	case types.ConditionVeryWindy:
		return obs.WindSpeedMS
	case types.ConditionVeryWet:
		return obs.PrecipMM
	case types.ConditionVeryUncomfortable:
		return HeatIndexC(obs.TempMeanC, obs.HumidityPct)
	default:
		return 0
	}
}

// MetricValues extracts the category metric for every observation in the
// window, preserving order.
func MetricValues(window []types.WeatherObservation, cat types.ConditionCategory) []float64 {
	values := make([]float64, len(window))
	for i, obs := range window {
		values[i] = metricValue(obs, cat)
	}
	return values
}

// exceeds applies the threshold's comparison operator.
func exceeds(value float64, threshold types.ConditionThreshold) bool {
	switch threshold.Operator {
	case types.CompareGreater:
		return value > threshold.Value
	case types.CompareLess:
		return value < threshold.Value
	default:
		return false
	}
}

// Empirical estimates probability as the fraction of the window's
// observations whose relevant metric exceeds the threshold.
type Empirical struct{}

// NewEmpirical creates the frequency-based classifier. It needs no stored
// artifacts and is the default strategy.
func NewEmpirical() *Empirical {
	return &Empirical{}
}

// Score implements Classifier.
func (e *Empirical) Score(window []types.WeatherObservation, _ Target, threshold types.ConditionThreshold) (float64, error) {
	if len(window) == 0 {
		return 0, nil
	}
	count := 0
	for _, v := range MetricValues(window, threshold.Category) {
		if exceeds(v, threshold) {
			count++
		}
	}
	return float64(count) / float64(len(window)), nil
}

// Mode implements Classifier.
func (e *Empirical) Mode() types.ClassifierMode {
	return types.ClassifierEmpirical
}
