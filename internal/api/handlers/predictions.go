// Package handlers contains the HTTP handler implementations for the
// climarisk API: single-day prediction, date-range analysis, activity
// listing, model metadata, and analytics views.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"climarisk/internal/core"
	"climarisk/internal/engine"
	"climarisk/internal/external"
	"climarisk/internal/types"
)

// RangeAnalyzer runs the date-range pipeline. Matches engine.Analyzer but is
// defined locally to avoid tight coupling per the handler injection pattern.
type RangeAnalyzer interface {
	Analyze(ctx context.Context, req engine.RangeRequest) (*types.RangeSummary, error)
}

// QueryRecorder appends one analytics row per served request. Recording is
// best-effort: a failure is logged and never surfaces to the caller.
type QueryRecorder interface {
	Record(ctx context.Context, entry types.QueryLogEntry) error
}

// PredictionHandler maps HTTP requests to the prediction and range-analysis
// services.
type PredictionHandler struct {
	predictor engine.Predictor
	analyzer  RangeAnalyzer
	geocoder  external.Geocoder
	recorder  QueryRecorder
	validator *core.Validator
	clock     types.Clock
	logger    *slog.Logger
}

// NewPredictionHandler creates a PredictionHandler with the provided
// dependencies. The geocoder and recorder may be nil; geocoding requests are
// then rejected and analytics recording is skipped.
func NewPredictionHandler(
	predictor engine.Predictor,
	analyzer RangeAnalyzer,
	geocoder external.Geocoder,
	recorder QueryRecorder,
	val *core.Validator,
	clock types.Clock,
	logger *slog.Logger,
) *PredictionHandler {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PredictionHandler{
		predictor: predictor,
		analyzer:  analyzer,
		geocoder:  geocoder,
		recorder:  recorder,
		validator: val,
		clock:     clock,
		logger:    logger,
	}
}

// RegisterRoutes mounts the prediction endpoints onto the mux.
func (h *PredictionHandler) RegisterRoutes(r chi.Router) {
	r.Post("/predict-weather", h.HandlePredict)
	r.Get("/predict-weather-simple", h.HandlePredictSimple)
	r.Post("/date-range-analysis", h.HandleRangeAnalysis)
}

// --- Request payloads ---

type predictLocationPayload struct {
	Latitude     *float64 `json:"latitude" validate:"omitempty,min=-90,max=90"`
	Longitude    *float64 `json:"longitude" validate:"omitempty,min=-180,max=180"`
	LocationName string   `json:"location_name"`
}

type thresholdPayload struct {
	Value    float64 `json:"value"`
	Operator string  `json:"operator" validate:"omitempty,oneof=gt lt"`
}

type predictWeatherPayload struct {
	Date             string                      `json:"date"`
	Location         predictLocationPayload      `json:"location"`
	Activity         string                      `json:"activity"`
	CustomThresholds map[string]thresholdPayload `json:"custom_thresholds" validate:"omitempty,dive"`
}

type rangeAnalysisPayload struct {
	Latitude  *float64 `json:"latitude" validate:"required,min=-90,max=90"`
	Longitude *float64 `json:"longitude" validate:"required,min=-180,max=180"`
	StartDate string   `json:"start_date" validate:"required"`
	EndDate   string   `json:"end_date" validate:"required"`
	Activity  string   `json:"activity"`
}

// --- Response payloads ---

type predictionPayload struct {
	RiskLevel        types.RiskLevel                                   `json:"risk_level"`
	OverallRiskScore float64                                           `json:"overall_risk_score"`
	Confidence       float64                                           `json:"confidence"`
	Conditions       map[types.ConditionCategory]types.ConditionResult `json:"conditions"`
	Recommendations  []string                                          `json:"recommendations"`
	SampleYears      int                                               `json:"sample_years"`
	GeneratedAt      time.Time                                         `json:"generated_at"`
}

type predictWeatherResponse struct {
	Location   types.Location    `json:"location"`
	Date       string            `json:"date"`
	Activity   string            `json:"activity"`
	Prediction predictionPayload `json:"prediction"`
}

type rangeAnalysisResponse struct {
	Location  types.Location      `json:"location"`
	StartDate string              `json:"start_date"`
	EndDate   string              `json:"end_date"`
	Activity  string              `json:"activity"`
	Summary   *types.RangeSummary `json:"summary"`
}

// HandlePredict handles POST /predict-weather.
//
//  1. Decode and validate the body.
//  2. Resolve the location: explicit coordinates win; a bare location_name
//     goes through the geocoding collaborator.
//  3. Translate custom thresholds onto the engine's threshold set.
//  4. Run the single-day pipeline and record the query.
func (h *PredictionHandler) HandlePredict(w http.ResponseWriter, r *http.Request) {
	started := h.clock.Now()

	var payload predictWeatherPayload
	if err := core.DecodeJSON(w, r, &payload); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(payload); err != nil {
		core.Error(w, r, err)
		return
	}

	date, err := parseDay(payload.Date, "date")
	if err != nil {
		core.Error(w, r, err)
		return
	}

	loc, err := h.resolveLocation(r.Context(), payload.Location)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	thresholds, err := buildThresholds(payload.CustomThresholds)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	result, cacheHit, err := h.predictor.Predict(r.Context(), engine.PredictRequest{
		Location:   loc,
		Date:       date,
		Activity:   payload.Activity,
		Thresholds: thresholds,
	})
	if err != nil {
		core.Error(w, r, err)
		return
	}

	meta := h.activityMeta(payload.Activity, result.Activity)
	h.record(r.Context(), "/predict-weather", result.Activity, loc, cacheHit, started)

	core.JSON(w, r, http.StatusOK, core.APIResponse{
		Data: predictWeatherResponse{
			Location:   result.Location,
			Date:       result.Date.Format(time.DateOnly),
			Activity:   result.Activity,
			Prediction: toPredictionPayload(result),
		},
		Meta: meta,
	})
}

// HandlePredictSimple handles GET /predict-weather-simple. Query params:
// date_str (YYYY-MM-DD), lat, lon, activity (optional).
func (h *PredictionHandler) HandlePredictSimple(w http.ResponseWriter, r *http.Request) {
	started := h.clock.Now()
	q := r.URL.Query()

	date, err := parseDay(q.Get("date_str"), "date_str")
	if err != nil {
		core.Error(w, r, err)
		return
	}

	lat, err := parseCoordParam(q.Get("lat"), "lat", types.ErrCodeValidationInvalidLat)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	lon, err := parseCoordParam(q.Get("lon"), "lon", types.ErrCodeValidationInvalidLon)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	loc := types.Location{Lat: lat, Lon: lon}
	activity := q.Get("activity")

	result, cacheHit, err := h.predictor.Predict(r.Context(), engine.PredictRequest{
		Location: loc,
		Date:     date,
		Activity: activity,
	})
	if err != nil {
		core.Error(w, r, err)
		return
	}

	meta := h.activityMeta(activity, result.Activity)
	h.record(r.Context(), "/predict-weather-simple", result.Activity, loc, cacheHit, started)

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: result, Meta: meta})
}

// HandleRangeAnalysis handles POST /date-range-analysis.
func (h *PredictionHandler) HandleRangeAnalysis(w http.ResponseWriter, r *http.Request) {
	started := h.clock.Now()

	var payload rangeAnalysisPayload
	if err := core.DecodeJSON(w, r, &payload); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(payload); err != nil {
		core.Error(w, r, err)
		return
	}

	start, err := parseDay(payload.StartDate, "start_date")
	if err != nil {
		core.Error(w, r, err)
		return
	}
	end, err := parseDay(payload.EndDate, "end_date")
	if err != nil {
		core.Error(w, r, err)
		return
	}

	loc := types.Location{Lat: *payload.Latitude, Lon: *payload.Longitude}

	summary, err := h.analyzer.Analyze(r.Context(), engine.RangeRequest{
		Location: loc,
		Start:    start,
		End:      end,
		Activity: payload.Activity,
	})
	if err != nil {
		core.Error(w, r, err)
		return
	}

	h.record(r.Context(), "/date-range-analysis", payload.Activity, loc, false, started)

	core.JSON(w, r, http.StatusOK, core.APIResponse{
		Data: rangeAnalysisResponse{
			Location:  loc,
			StartDate: start.Format(time.DateOnly),
			EndDate:   end.Format(time.DateOnly),
			Activity:  payload.Activity,
			Summary:   summary,
		},
	})
}

// resolveLocation prefers explicit coordinates; a bare location_name goes
// through the geocoder. Neither present is a validation error.
func (h *PredictionHandler) resolveLocation(ctx context.Context, p predictLocationPayload) (types.Location, error) {
	if p.Latitude != nil && p.Longitude != nil {
		return types.Location{Lat: *p.Latitude, Lon: *p.Longitude, DisplayName: p.LocationName}, nil
	}
	if p.LocationName == "" {
		return types.Location{}, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"location requires either latitude/longitude or location_name",
			nil,
		)
	}
	if h.geocoder == nil {
		return types.Location{}, types.NewAppError(
			types.ErrCodeNotFoundLocation,
			"location name resolution is not available",
			nil,
		)
	}
	return h.geocoder.Resolve(ctx, p.LocationName)
}

// activityMeta attaches a warning when the requested activity label could not
// be resolved and the baseline profile was used instead.
func (h *PredictionHandler) activityMeta(requested, served string) *types.ResponseMeta {
	if requested == "" {
		return nil
	}
	if _, err := engine.ResolveActivity(requested); err != nil {
		return &types.ResponseMeta{
			Warnings: []string{"unknown activity " + strconv.Quote(requested) + "; baseline profile " + strconv.Quote(served) + " applied"},
		}
	}
	return nil
}

// record appends one analytics row. Failures are logged, never surfaced.
func (h *PredictionHandler) record(ctx context.Context, endpoint, activity string, loc types.Location, cacheHit bool, started time.Time) {
	if h.recorder == nil {
		return
	}
	entry := types.QueryLogEntry{
		ID:        uuid.NewString(),
		Timestamp: started,
		Endpoint:  endpoint,
		Activity:  activity,
		Lat:       loc.Lat,
		Lon:       loc.Lon,
		CacheHit:  cacheHit,
		Latency:   h.clock.Now().Sub(started),
	}
	if err := h.recorder.Record(context.WithoutCancel(ctx), entry); err != nil {
		h.logger.WarnContext(ctx, "failed to record query log entry",
			slog.String("endpoint", endpoint),
			slog.String("error", err.Error()),
		)
	}
}

func toPredictionPayload(result *types.PredictionResult) predictionPayload {
	return predictionPayload{
		RiskLevel:        result.RiskLevel,
		OverallRiskScore: result.OverallScore,
		Confidence:       result.Confidence,
		Conditions:       result.Conditions,
		Recommendations:  result.Recommendations,
		SampleYears:      result.SampleYears,
		GeneratedAt:      result.GeneratedAt,
	}
}

// parseDay parses a YYYY-MM-DD field and normalizes it to UTC midnight.
func parseDay(raw, field string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, types.NewAppError(
			types.ErrCodeValidationMissingField,
			field+" is required",
			nil,
		)
	}
	parsed, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, types.NewAppError(
			types.ErrCodeValidationInvalidDate,
			field+" must be a valid YYYY-MM-DD date",
			nil,
		)
	}
	return parsed.UTC(), nil
}

func parseCoordParam(raw, field string, code types.ErrorCode) (float64, error) {
	if raw == "" {
		return 0, types.NewAppError(
			types.ErrCodeValidationMissingField,
			field+" query parameter is required",
			nil,
		)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, types.NewAppError(code, field+" must be a valid number", nil)
	}
	return v, nil
}

// buildThresholds translates custom threshold overrides into the engine's
// threshold set. An omitted operator inherits the category's default
// direction.
func buildThresholds(overrides map[string]thresholdPayload) (types.ThresholdSet, error) {
	if len(overrides) == 0 {
		return nil, nil
	}
	defaults := types.DefaultThresholds()
	set := make(types.ThresholdSet, len(overrides))
	for name, p := range overrides {
		cat := types.ConditionCategory(strings.ToLower(strings.TrimSpace(name)))
		if !cat.Valid() {
			return nil, types.NewAppError(
				types.ErrCodeValidationInvalidCategory,
				"unknown condition category "+strconv.Quote(name),
				nil,
			)
		}
		op := types.ComparisonOperator(p.Operator)
		if op == "" {
			op = defaults[cat].Operator
		}
		set[cat] = types.ConditionThreshold{Category: cat, Value: p.Value, Operator: op}
	}
	return set, nil
}
