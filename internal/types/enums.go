package types

// ConditionCategory is one of the five adverse-weather classifications the
// engine scores for every query.
type ConditionCategory string

const (
	ConditionVeryHot           ConditionCategory = "very_hot"
	ConditionVeryCold          ConditionCategory = "very_cold"
	ConditionVeryWindy         ConditionCategory = "very_windy"
	ConditionVeryWet           ConditionCategory = "very_wet"
	ConditionVeryUncomfortable ConditionCategory = "very_uncomfortable"
)

// AllCategories returns the five condition categories in canonical order.
// The order is load-bearing: recommendation tie-breaks and fingerprint
// canonicalization both depend on it.
func AllCategories() []ConditionCategory {
	return []ConditionCategory{
		ConditionVeryHot,
		ConditionVeryCold,
		ConditionVeryWindy,
		ConditionVeryWet,
		ConditionVeryUncomfortable,
	}
}

// Valid reports whether c is one of the five known categories.
func (c ConditionCategory) Valid() bool {
	switch c {
	case ConditionVeryHot, ConditionVeryCold, ConditionVeryWindy,
		ConditionVeryWet, ConditionVeryUncomfortable:
		return true
	}
	return false
}

// RiskLevel is the discrete bucket derived from the overall risk score.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskModerate RiskLevel = "moderate"
	RiskHigh     RiskLevel = "high"
	RiskVeryHigh RiskLevel = "very_high"
)

// Fixed score breakpoints for risk levels. Inclusive at the lower bound,
// exclusive at the upper bound. These are contract constants and must never
// be derived dynamically.
const (
	RiskScoreVeryHigh = 30.0
	RiskScoreHigh     = 20.0
	RiskScoreModerate = 10.0
)

// RiskLevelForScore maps an overall risk score in [0,100] to its level.
func RiskLevelForScore(score float64) RiskLevel {
	switch {
	case score >= RiskScoreVeryHigh:
		return RiskVeryHigh
	case score >= RiskScoreHigh:
		return RiskHigh
	case score >= RiskScoreModerate:
		return RiskModerate
	default:
		return RiskLow
	}
}

// ComparisonOperator describes which side of a threshold counts as an
// exceedance.
type ComparisonOperator string

const (
	CompareGreater ComparisonOperator = "gt"
	CompareLess    ComparisonOperator = "lt"
)

// ClassifierMode selects the probability-estimation strategy.
type ClassifierMode string

const (
	// ClassifierEmpirical estimates probability as the exceedance frequency
	// over the historical analog window.
	ClassifierEmpirical ClassifierMode = "empirical"
	// ClassifierModel uses previously fit per-category models over a feature
	// vector derived from the window.
	ClassifierModel ClassifierMode = "model"
)
