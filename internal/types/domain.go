// Package types defines the shared domain model for the climarisk engine:
// observations, thresholds, activity profiles, prediction results, and the
// application error taxonomy. It has no dependencies on other internal
// packages so that every layer can exchange these values freely.
package types

import (
	"math"
	"time"
)

// GridPrecision is the number of decimal places coordinates are rounded to
// before they participate in storage keys or cache fingerprints. Two decimal
// places is roughly a 1.1 km cell at the equator.
const GridPrecision = 2

// Location is a grid-rounded geographic point. DisplayName is optional and
// carried through from the geocoding collaborator when present.
type Location struct {
	Lat         float64 `json:"latitude"`
	Lon         float64 `json:"longitude"`
	DisplayName string  `json:"location_name,omitempty"`
}

// RoundCoord snaps a coordinate to the fixed grid precision.
func RoundCoord(v float64) float64 {
	scale := math.Pow(10, GridPrecision)
	return math.Round(v*scale) / scale
}

// Rounded returns a copy of the location snapped to the grid.
func (l Location) Rounded() Location {
	l.Lat = RoundCoord(l.Lat)
	l.Lon = RoundCoord(l.Lon)
	return l
}

// WeatherObservation is one daily observation row for a grid cell. Rows are
// immutable once ingested; the engine never mutates or deletes them.
type WeatherObservation struct {
	Date           time.Time `json:"date"`
	Location       Location  `json:"location"`
	TempMaxC       float64   `json:"temp_max_c"`
	TempMinC       float64   `json:"temp_min_c"`
	TempMeanC      float64   `json:"temp_mean_c"`
	HumidityPct    float64   `json:"humidity_pct"`
	WindSpeedMS    float64   `json:"wind_speed_ms"`
	PrecipMM       float64   `json:"precip_mm"`
	PressureKPa    float64   `json:"pressure_kpa"`
}

// ConditionThreshold is a single category's exceedance rule.
type ConditionThreshold struct {
	Category ConditionCategory  `json:"category"`
	Value    float64            `json:"value"`
	Operator ComparisonOperator `json:"operator"`
}

// ThresholdSet maps each category to its threshold. A request may carry a
// custom set; the defaults below are fixed constants and are never mutated.
type ThresholdSet map[ConditionCategory]ConditionThreshold

// Default threshold values, per meteorological convention.
const (
	DefaultHotThresholdC          = 35.0
	DefaultColdThresholdC         = 0.0
	DefaultWindyThresholdMS       = 15.0
	DefaultWetThresholdMM         = 25.0
	DefaultUncomfortableHeatIndex = 40.0
)

// DefaultThresholds returns a fresh copy of the default threshold set so
// callers can overlay request-scoped overrides without aliasing.
func DefaultThresholds() ThresholdSet {
	return ThresholdSet{
		ConditionVeryHot:           {Category: ConditionVeryHot, Value: DefaultHotThresholdC, Operator: CompareGreater},
		ConditionVeryCold:          {Category: ConditionVeryCold, Value: DefaultColdThresholdC, Operator: CompareLess},
		ConditionVeryWindy:         {Category: ConditionVeryWindy, Value: DefaultWindyThresholdMS, Operator: CompareGreater},
		ConditionVeryWet:           {Category: ConditionVeryWet, Value: DefaultWetThresholdMM, Operator: CompareGreater},
		ConditionVeryUncomfortable: {Category: ConditionVeryUncomfortable, Value: DefaultUncomfortableHeatIndex, Operator: CompareGreater},
	}
}

// Merge overlays the given overrides on a copy of the receiver. The receiver
// is left untouched.
func (ts ThresholdSet) Merge(overrides ThresholdSet) ThresholdSet {
	merged := make(ThresholdSet, len(ts))
	for cat, th := range ts {
		merged[cat] = th
	}
	for cat, th := range overrides {
		merged[cat] = th
	}
	return merged
}

// ActivityProfile describes how an activity weighs the five categories and
// which recommendation text to surface per category. Profiles are read-only
// reference data loaded once at process start.
type ActivityProfile struct {
	ID              string                        `json:"id"`
	Name            string                        `json:"name"`
	Weights         map[ConditionCategory]float64 `json:"weights"`
	Recommendations map[ConditionCategory]string  `json:"recommendations"`
}

// ConditionResult is the per-category output of the classification path.
type ConditionResult struct {
	Probability float64 `json:"probability"`
	Confidence  float64 `json:"confidence"`
}

// PredictionResult is the immutable product of one single-day computation.
// It is cached by value and never mutated after creation.
type PredictionResult struct {
	Location        Location                              `json:"location"`
	Date            time.Time                             `json:"date"`
	Activity        string                                `json:"activity"`
	Conditions      map[ConditionCategory]ConditionResult `json:"conditions"`
	OverallScore    float64                               `json:"overall_risk_score"`
	RiskLevel       RiskLevel                             `json:"risk_level"`
	Confidence      float64                               `json:"confidence"`
	Recommendations []string                              `json:"recommendations"`
	SampleYears     int                                   `json:"sample_years"`
	GeneratedAt     time.Time                             `json:"generated_at"`
}

// RangeSummary aggregates per-day predictions over a date span.
type RangeSummary struct {
	AvgTemperature     float64   `json:"avg_temperature"`
	AvgWindSpeed       float64   `json:"avg_wind_speed"`
	AvgHumidity        float64   `json:"avg_humidity"`
	TotalPrecipitation float64   `json:"total_precipitation"`
	BestDay            time.Time `json:"best_day"`
	BestDayScore       float64   `json:"best_day_score"`
	WorstDay           time.Time `json:"worst_day"`
	WorstDayScore      float64   `json:"worst_day_score"`
}

// ModelInfo is the diagnostic view over one stored model artifact.
type ModelInfo struct {
	Category  ConditionCategory `json:"category"`
	Version   int               `json:"version"`
	Accuracy  float64           `json:"accuracy"`
	TrainedAt time.Time         `json:"trained_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// QueryLogEntry is one analytics row, written once per served request.
type QueryLogEntry struct {
	ID        string        `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
	Endpoint  string        `json:"endpoint"`
	Activity  string        `json:"activity"`
	Lat       float64       `json:"lat"`
	Lon       float64       `json:"lon"`
	CacheHit  bool          `json:"cache_hit"`
	Latency   time.Duration `json:"latency"`
}

// AnalyticsSummary is the read-only aggregate over the query log.
type AnalyticsSummary struct {
	TotalQueries   int64            `json:"total_queries"`
	CacheHits      int64            `json:"cache_hits"`
	CacheHitRate   float64          `json:"cache_hit_rate"`
	AvgLatencyMS   float64          `json:"avg_latency_ms"`
	TopActivities  map[string]int64 `json:"top_activities"`
	WindowStart    time.Time        `json:"window_start"`
	WindowEnd      time.Time        `json:"window_end"`
}

// ResponseMeta carries non-blocking warnings alongside successful responses,
// such as a fallback to the baseline activity profile or thin historical
// coverage.
type ResponseMeta struct {
	Warnings []string `json:"warnings,omitempty"`
}
