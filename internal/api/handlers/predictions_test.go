package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"climarisk/internal/core"
	"climarisk/internal/engine"
	"climarisk/internal/external"
	"climarisk/internal/types"
)

// --- Mocks ---

type stubPredictor struct {
	result   *types.PredictionResult
	cacheHit bool
	err      error
	lastReq  engine.PredictRequest
	calls    int
}

func (s *stubPredictor) Predict(_ context.Context, req engine.PredictRequest) (*types.PredictionResult, bool, error) {
	s.lastReq = req
	s.calls++
	if s.err != nil {
		return nil, false, s.err
	}
	if s.result != nil {
		return s.result, s.cacheHit, nil
	}
	profile, err := engine.ResolveActivity(req.Activity)
	if err != nil {
		profile = engine.BaselineProfile()
	}
	return &types.PredictionResult{
		Location:  req.Location,
		Date:      req.Date,
		Activity:  profile.ID,
		RiskLevel: types.RiskLow,
		Conditions: map[types.ConditionCategory]types.ConditionResult{
			types.ConditionVeryHot: {Probability: 0.1, Confidence: 0.9},
		},
		Confidence:  0.9,
		SampleYears: 12,
		GeneratedAt: time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
	}, s.cacheHit, nil
}

type stubAnalyzer struct {
	summary *types.RangeSummary
	err     error
	lastReq engine.RangeRequest
}

func (s *stubAnalyzer) Analyze(_ context.Context, req engine.RangeRequest) (*types.RangeSummary, error) {
	s.lastReq = req
	if s.err != nil {
		return nil, s.err
	}
	return s.summary, nil
}

type stubGeocoder struct {
	loc       types.Location
	err       error
	lastQuery string
}

func (s *stubGeocoder) Resolve(_ context.Context, query string) (types.Location, error) {
	s.lastQuery = query
	return s.loc, s.err
}

type stubRecorder struct {
	entries []types.QueryLogEntry
	err     error
}

func (s *stubRecorder) Record(_ context.Context, entry types.QueryLogEntry) error {
	s.entries = append(s.entries, entry)
	return s.err
}

type frozenClock struct {
	now time.Time
}

func (c frozenClock) Now() time.Time { return c.now }

// --- Helpers ---

type apiEnvelope struct {
	Data json.RawMessage     `json:"data"`
	Meta *types.ResponseMeta `json:"meta"`
}

type apiErrorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func newTestPredictionHandler(p *stubPredictor, a *stubAnalyzer, g *stubGeocoder, rec *stubRecorder) *PredictionHandler {
	logger := slog.Default()
	clock := frozenClock{now: time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)}
	var geocoder external.Geocoder
	if g != nil {
		geocoder = g
	}
	var recorder QueryRecorder
	if rec != nil {
		recorder = rec
	}
	return NewPredictionHandler(p, a, geocoder, recorder, core.NewValidator(logger), clock, logger)
}

func makePredictionRouter(h *PredictionHandler) http.Handler {
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func doJSON(t *testing.T, router http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) apiEnvelope {
	t.Helper()
	var env apiEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return env
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) apiErrorEnvelope {
	t.Helper()
	var env apiErrorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return env
}

// --- HandlePredict ---

func TestHandlePredict_Success(t *testing.T) {
	predictor := &stubPredictor{cacheHit: true}
	recorder := &stubRecorder{}
	handler := newTestPredictionHandler(predictor, &stubAnalyzer{}, nil, recorder)
	router := makePredictionRouter(handler)

	body := `{
		"date": "2026-09-15",
		"location": {"latitude": 40.7128, "longitude": -74.006},
		"activity": "hiking"
	}`
	rec := doJSON(t, router, http.MethodPost, "/predict-weather", body)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	env := decodeEnvelope(t, rec)
	var resp predictWeatherResponse
	if err := json.Unmarshal(env.Data, &resp); err != nil {
		t.Fatalf("failed to decode data: %v", err)
	}
	if resp.Date != "2026-09-15" {
		t.Errorf("expected date 2026-09-15, got %q", resp.Date)
	}
	if resp.Activity != "hiking" {
		t.Errorf("expected activity hiking, got %q", resp.Activity)
	}
	if resp.Prediction.RiskLevel != types.RiskLow {
		t.Errorf("expected risk level low, got %q", resp.Prediction.RiskLevel)
	}
	if env.Meta != nil {
		t.Errorf("expected no meta for a known activity, got %+v", env.Meta)
	}

	if predictor.lastReq.Location.Lat != 40.7128 || predictor.lastReq.Location.Lon != -74.006 {
		t.Errorf("unexpected location passed to predictor: %+v", predictor.lastReq.Location)
	}

	if len(recorder.entries) != 1 {
		t.Fatalf("expected 1 query log entry, got %d", len(recorder.entries))
	}
	entry := recorder.entries[0]
	if entry.Endpoint != "/predict-weather" {
		t.Errorf("expected endpoint /predict-weather, got %q", entry.Endpoint)
	}
	if !entry.CacheHit {
		t.Error("expected cache hit to be recorded")
	}
	if entry.ID == "" {
		t.Error("expected a generated entry ID")
	}
}

func TestHandlePredict_MalformedJSON(t *testing.T) {
	handler := newTestPredictionHandler(&stubPredictor{}, &stubAnalyzer{}, nil, nil)
	router := makePredictionRouter(handler)

	rec := doJSON(t, router, http.MethodPost, "/predict-weather", `{"date": `)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
	if code := decodeError(t, rec).Error.Code; code != string(types.ErrCodeValidationInvalidJSON) {
		t.Errorf("expected code validation_invalid_json, got %q", code)
	}
}

func TestHandlePredict_MissingDate(t *testing.T) {
	handler := newTestPredictionHandler(&stubPredictor{}, &stubAnalyzer{}, nil, nil)
	router := makePredictionRouter(handler)

	body := `{"location": {"latitude": 40.7, "longitude": -74.0}, "activity": "hiking"}`
	rec := doJSON(t, router, http.MethodPost, "/predict-weather", body)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
	if code := decodeError(t, rec).Error.Code; code != string(types.ErrCodeValidationMissingField) {
		t.Errorf("expected code validation_missing_required_field, got %q", code)
	}
}

func TestHandlePredict_InvalidDate(t *testing.T) {
	handler := newTestPredictionHandler(&stubPredictor{}, &stubAnalyzer{}, nil, nil)
	router := makePredictionRouter(handler)

	body := `{"date": "15/09/2026", "location": {"latitude": 40.7, "longitude": -74.0}}`
	rec := doJSON(t, router, http.MethodPost, "/predict-weather", body)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
	if code := decodeError(t, rec).Error.Code; code != string(types.ErrCodeValidationInvalidDate) {
		t.Errorf("expected code validation_invalid_date, got %q", code)
	}
}

func TestHandlePredict_GeocodesLocationName(t *testing.T) {
	predictor := &stubPredictor{}
	geocoder := &stubGeocoder{
		loc: types.Location{Lat: 48.8566, Lon: 2.3522, DisplayName: "Paris, France"},
	}
	handler := newTestPredictionHandler(predictor, &stubAnalyzer{}, geocoder, nil)
	router := makePredictionRouter(handler)

	body := `{"date": "2026-09-15", "location": {"location_name": "Paris"}, "activity": "general"}`
	rec := doJSON(t, router, http.MethodPost, "/predict-weather", body)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if geocoder.lastQuery != "Paris" {
		t.Errorf("expected geocoder query Paris, got %q", geocoder.lastQuery)
	}
	if predictor.lastReq.Location.Lat != 48.8566 {
		t.Errorf("expected resolved latitude, got %v", predictor.lastReq.Location.Lat)
	}
	if predictor.lastReq.Location.DisplayName != "Paris, France" {
		t.Errorf("expected resolved display name, got %q", predictor.lastReq.Location.DisplayName)
	}
}

func TestHandlePredict_GeocoderNotFound(t *testing.T) {
	geocoder := &stubGeocoder{
		err: types.NewAppError(types.ErrCodeNotFoundLocation, "no results for query", nil),
	}
	handler := newTestPredictionHandler(&stubPredictor{}, &stubAnalyzer{}, geocoder, nil)
	router := makePredictionRouter(handler)

	body := `{"date": "2026-09-15", "location": {"location_name": "Atlantis"}}`
	rec := doJSON(t, router, http.MethodPost, "/predict-weather", body)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}
}

func TestHandlePredict_NoLocation(t *testing.T) {
	handler := newTestPredictionHandler(&stubPredictor{}, &stubAnalyzer{}, nil, nil)
	router := makePredictionRouter(handler)

	body := `{"date": "2026-09-15", "location": {}}`
	rec := doJSON(t, router, http.MethodPost, "/predict-weather", body)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
	if code := decodeError(t, rec).Error.Code; code != string(types.ErrCodeValidationMissingField) {
		t.Errorf("expected code validation_missing_required_field, got %q", code)
	}
}

func TestHandlePredict_UnknownThresholdCategory(t *testing.T) {
	handler := newTestPredictionHandler(&stubPredictor{}, &stubAnalyzer{}, nil, nil)
	router := makePredictionRouter(handler)

	body := `{
		"date": "2026-09-15",
		"location": {"latitude": 40.7, "longitude": -74.0},
		"custom_thresholds": {"very_sandy": {"value": 10}}
	}`
	rec := doJSON(t, router, http.MethodPost, "/predict-weather", body)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
	if code := decodeError(t, rec).Error.Code; code != string(types.ErrCodeValidationInvalidCategory) {
		t.Errorf("expected code validation_invalid_category, got %q", code)
	}
}

func TestHandlePredict_ThresholdInheritsDefaultOperator(t *testing.T) {
	predictor := &stubPredictor{}
	handler := newTestPredictionHandler(predictor, &stubAnalyzer{}, nil, nil)
	router := makePredictionRouter(handler)

	body := `{
		"date": "2026-09-15",
		"location": {"latitude": 40.7, "longitude": -74.0},
		"custom_thresholds": {
			"very_cold": {"value": -5},
			"very_hot": {"value": 30, "operator": "gt"}
		}
	}`
	rec := doJSON(t, router, http.MethodPost, "/predict-weather", body)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	cold, ok := predictor.lastReq.Thresholds[types.ConditionVeryCold]
	if !ok {
		t.Fatal("expected very_cold threshold override")
	}
	if cold.Operator != types.CompareLess {
		t.Errorf("expected very_cold to inherit lt, got %q", cold.Operator)
	}
	if cold.Value != -5 {
		t.Errorf("expected value -5, got %v", cold.Value)
	}
	if hot := predictor.lastReq.Thresholds[types.ConditionVeryHot]; hot.Value != 30 {
		t.Errorf("expected very_hot value 30, got %v", hot.Value)
	}
	if _, ok := predictor.lastReq.Thresholds[types.ConditionVeryWindy]; ok {
		t.Error("expected no very_windy entry in the override set")
	}
}

func TestHandlePredict_UnknownActivityWarns(t *testing.T) {
	predictor := &stubPredictor{}
	handler := newTestPredictionHandler(predictor, &stubAnalyzer{}, nil, nil)
	router := makePredictionRouter(handler)

	body := `{
		"date": "2026-09-15",
		"location": {"latitude": 40.7, "longitude": -74.0},
		"activity": "skydiving"
	}`
	rec := doJSON(t, router, http.MethodPost, "/predict-weather", body)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	env := decodeEnvelope(t, rec)
	if env.Meta == nil || len(env.Meta.Warnings) != 1 {
		t.Fatalf("expected one warning, got %+v", env.Meta)
	}

	var resp predictWeatherResponse
	if err := json.Unmarshal(env.Data, &resp); err != nil {
		t.Fatalf("failed to decode data: %v", err)
	}
	if resp.Activity != engine.BaselineActivityID {
		t.Errorf("expected baseline activity, got %q", resp.Activity)
	}
}

func TestHandlePredict_ServiceErrorPropagates(t *testing.T) {
	predictor := &stubPredictor{
		err: types.NewAppError(types.ErrCodeUpstreamDataUnavailable, "archive unreachable", nil),
	}
	handler := newTestPredictionHandler(predictor, &stubAnalyzer{}, nil, nil)
	router := makePredictionRouter(handler)

	body := `{"date": "2026-09-15", "location": {"latitude": 40.7, "longitude": -74.0}}`
	rec := doJSON(t, router, http.MethodPost, "/predict-weather", body)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected status 502, got %d", rec.Code)
	}
}

func TestHandlePredict_RecorderFailureDoesNotFailRequest(t *testing.T) {
	recorder := &stubRecorder{err: errors.New("insert failed")}
	handler := newTestPredictionHandler(&stubPredictor{}, &stubAnalyzer{}, nil, recorder)
	router := makePredictionRouter(handler)

	body := `{"date": "2026-09-15", "location": {"latitude": 40.7, "longitude": -74.0}}`
	rec := doJSON(t, router, http.MethodPost, "/predict-weather", body)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 despite recorder failure, got %d", rec.Code)
	}
}

// --- HandlePredictSimple ---

func TestHandlePredictSimple_Success(t *testing.T) {
	predictor := &stubPredictor{}
	recorder := &stubRecorder{}
	handler := newTestPredictionHandler(predictor, &stubAnalyzer{}, nil, recorder)
	router := makePredictionRouter(handler)

	req := httptest.NewRequest(http.MethodGet, "/predict-weather-simple?date_str=2026-09-15&lat=40.7&lon=-74.0&activity=fishing", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	env := decodeEnvelope(t, rec)
	var result types.PredictionResult
	if err := json.Unmarshal(env.Data, &result); err != nil {
		t.Fatalf("failed to decode data: %v", err)
	}
	if result.Activity != "fishing" {
		t.Errorf("expected activity fishing, got %q", result.Activity)
	}
	if !result.Date.Equal(time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected date %v", result.Date)
	}
	if len(recorder.entries) != 1 {
		t.Fatalf("expected 1 query log entry, got %d", len(recorder.entries))
	}
	if recorder.entries[0].Endpoint != "/predict-weather-simple" {
		t.Errorf("unexpected endpoint %q", recorder.entries[0].Endpoint)
	}
}

func TestHandlePredictSimple_MissingLat(t *testing.T) {
	handler := newTestPredictionHandler(&stubPredictor{}, &stubAnalyzer{}, nil, nil)
	router := makePredictionRouter(handler)

	req := httptest.NewRequest(http.MethodGet, "/predict-weather-simple?date_str=2026-09-15&lon=-74.0", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
	if code := decodeError(t, rec).Error.Code; code != string(types.ErrCodeValidationMissingField) {
		t.Errorf("expected code validation_missing_required_field, got %q", code)
	}
}

func TestHandlePredictSimple_BadLat(t *testing.T) {
	handler := newTestPredictionHandler(&stubPredictor{}, &stubAnalyzer{}, nil, nil)
	router := makePredictionRouter(handler)

	req := httptest.NewRequest(http.MethodGet, "/predict-weather-simple?date_str=2026-09-15&lat=north&lon=-74.0", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
	if code := decodeError(t, rec).Error.Code; code != string(types.ErrCodeValidationInvalidLat) {
		t.Errorf("expected code validation_invalid_latitude, got %q", code)
	}
}

func TestHandlePredictSimple_BadDate(t *testing.T) {
	handler := newTestPredictionHandler(&stubPredictor{}, &stubAnalyzer{}, nil, nil)
	router := makePredictionRouter(handler)

	req := httptest.NewRequest(http.MethodGet, "/predict-weather-simple?date_str=tomorrow&lat=40.7&lon=-74.0", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
	if code := decodeError(t, rec).Error.Code; code != string(types.ErrCodeValidationInvalidDate) {
		t.Errorf("expected code validation_invalid_date, got %q", code)
	}
}

// --- HandleRangeAnalysis ---

func TestHandleRangeAnalysis_Success(t *testing.T) {
	analyzer := &stubAnalyzer{
		summary: &types.RangeSummary{
			AvgTemperature:     26.0,
			AvgWindSpeed:       5.0,
			AvgHumidity:        65.0,
			TotalPrecipitation: 15.0,
			BestDay:            time.Date(2026, 9, 17, 0, 0, 0, 0, time.UTC),
			BestDayScore:       8,
			WorstDay:           time.Date(2026, 9, 16, 0, 0, 0, 0, time.UTC),
			WorstDayScore:      31,
		},
	}
	recorder := &stubRecorder{}
	handler := newTestPredictionHandler(&stubPredictor{}, analyzer, nil, recorder)
	router := makePredictionRouter(handler)

	body := `{
		"latitude": 40.7,
		"longitude": -74.0,
		"start_date": "2026-09-15",
		"end_date": "2026-09-19",
		"activity": "camping"
	}`
	rec := doJSON(t, router, http.MethodPost, "/date-range-analysis", body)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	env := decodeEnvelope(t, rec)
	var resp rangeAnalysisResponse
	if err := json.Unmarshal(env.Data, &resp); err != nil {
		t.Fatalf("failed to decode data: %v", err)
	}
	if resp.StartDate != "2026-09-15" || resp.EndDate != "2026-09-19" {
		t.Errorf("unexpected range echo: %q..%q", resp.StartDate, resp.EndDate)
	}
	if resp.Summary == nil || resp.Summary.WorstDayScore != 31 {
		t.Errorf("unexpected summary: %+v", resp.Summary)
	}

	if analyzer.lastReq.Activity != "camping" {
		t.Errorf("expected activity camping, got %q", analyzer.lastReq.Activity)
	}
	if !analyzer.lastReq.Start.Equal(time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected start %v", analyzer.lastReq.Start)
	}
	if len(recorder.entries) != 1 {
		t.Fatalf("expected 1 query log entry, got %d", len(recorder.entries))
	}
	if recorder.entries[0].CacheHit {
		t.Error("range analysis entries should never record a cache hit")
	}
}

func TestHandleRangeAnalysis_MissingStartDate(t *testing.T) {
	handler := newTestPredictionHandler(&stubPredictor{}, &stubAnalyzer{}, nil, nil)
	router := makePredictionRouter(handler)

	body := `{"latitude": 40.7, "longitude": -74.0, "end_date": "2026-09-19"}`
	rec := doJSON(t, router, http.MethodPost, "/date-range-analysis", body)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

func TestHandleRangeAnalysis_InvalidRangeFromService(t *testing.T) {
	analyzer := &stubAnalyzer{
		err: types.NewAppError(types.ErrCodeValidationInvalidRange, "span exceeds maximum", nil),
	}
	handler := newTestPredictionHandler(&stubPredictor{}, analyzer, nil, nil)
	router := makePredictionRouter(handler)

	body := `{"latitude": 40.7, "longitude": -74.0, "start_date": "2026-01-01", "end_date": "2026-06-01"}`
	rec := doJSON(t, router, http.MethodPost, "/date-range-analysis", body)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
	if code := decodeError(t, rec).Error.Code; code != string(types.ErrCodeValidationInvalidRange) {
		t.Errorf("expected code validation_invalid_range, got %q", code)
	}
}
