package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"climarisk/internal/cache"
	"climarisk/internal/classify"
	"climarisk/internal/config"
	"climarisk/internal/history"
	"climarisk/internal/types"
)

// PredictRequest is one single-day inference request, already validated at
// the transport layer.
type PredictRequest struct {
	Location   types.Location
	Date       time.Time
	Activity   string
	Thresholds types.ThresholdSet // overrides; nil applies the defaults
}

// Predictor runs the single-day pipeline. The boolean reports whether the
// result was served from cache.
type Predictor interface {
	Predict(ctx context.Context, req PredictRequest) (*types.PredictionResult, bool, error)
}

// Service is the production Predictor: analog window retrieval, per-category
// classification, confidence scoring, and activity-weighted aggregation,
// fronted by the singleflight cache manager.
type Service struct {
	accessor   history.Accessor
	classifier classify.Classifier
	cache      *cache.Manager
	cfg        config.EngineConfig
	clock      types.Clock
	logger     *slog.Logger
}

// NewService wires the pipeline. A nil clock defaults to real UTC time.
func NewService(
	accessor history.Accessor,
	classifier classify.Classifier,
	cacheManager *cache.Manager,
	cfg config.EngineConfig,
	clock types.Clock,
	logger *slog.Logger,
) *Service {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		accessor:   accessor,
		classifier: classifier,
		cache:      cacheManager,
		cfg:        cfg,
		clock:      clock,
		logger:     logger,
	}
}

// Predict serves one single-day prediction, computing on cache miss. An
// unresolvable activity label falls back to the baseline profile rather than
// failing the request.
func (s *Service) Predict(ctx context.Context, req PredictRequest) (*types.PredictionResult, bool, error) {
	profile, err := ResolveActivity(req.Activity)
	if err != nil {
		var appErr *types.AppError
		if !errors.As(err, &appErr) || appErr.Code != types.ErrCodeUnknownActivity {
			return nil, false, err
		}
		s.logger.WarnContext(ctx, "unknown activity label; using baseline profile",
			slog.String("activity", req.Activity),
		)
		profile = BaselineProfile()
	}

	key := cache.Key{
		Location:   req.Location,
		Date:       req.Date,
		Activity:   profile.ID,
		Thresholds: req.Thresholds,
	}

	return s.cache.GetOrCompute(ctx, key, func(ctx context.Context) (*types.PredictionResult, error) {
		return s.compute(ctx, req, profile)
	})
}

// compute is the uncached pipeline body.
func (s *Service) compute(
	ctx context.Context,
	req PredictRequest,
	profile types.ActivityProfile,
) (*types.PredictionResult, error) {
	window, err := s.accessor.FetchWindow(ctx, req.Location, req.Date)
	if err != nil {
		return nil, err
	}

	if window.SampleYears < s.cfg.MinSampleYears {
		s.logger.WarnContext(ctx, "thin historical coverage; confidence degraded",
			slog.String("code", string(types.ErrCodeInsufficientHistory)),
			slog.Int("sample_years", window.SampleYears),
			slog.Int("min_sample_years", s.cfg.MinSampleYears),
		)
	}

	thresholds := types.DefaultThresholds().Merge(req.Thresholds)
	target := classify.Target{Date: req.Date, Location: req.Location}

	conditions := make(map[types.ConditionCategory]types.ConditionResult, len(types.AllCategories()))
	for _, cat := range types.AllCategories() {
		prob, err := s.classifier.Score(window.Observations, target, thresholds[cat])
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalModel, "classifying "+string(cat), err)
		}
		conditions[cat] = types.ConditionResult{
			Probability: prob,
			Confidence:  CategoryConfidence(window.Observations, cat, window.SampleYears, s.cfg.TargetSampleYears),
		}
	}

	score := OverallScore(conditions, profile)

	return &types.PredictionResult{
		Location:        req.Location,
		Date:            req.Date,
		Activity:        profile.ID,
		Conditions:      conditions,
		OverallScore:    score,
		RiskLevel:       types.RiskLevelForScore(score),
		Confidence:      OverallConfidence(conditions),
		Recommendations: Recommendations(conditions, profile),
		SampleYears:     window.SampleYears,
		GeneratedAt:     s.clock.Now(),
	}, nil
}

// Mode reports the active classifier strategy.
func (s *Service) Mode() types.ClassifierMode {
	return s.classifier.Mode()
}
