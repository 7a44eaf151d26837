package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"climarisk/internal/config"
	"climarisk/internal/history"
	"climarisk/internal/types"
)

// RangeRequest asks for an aggregate view over consecutive days.
type RangeRequest struct {
	Location types.Location
	Start    time.Time
	End      time.Time
	Activity string
}

// Analyzer runs the single-day pipeline across a date span and folds the
// results into a RangeSummary.
type Analyzer struct {
	predictor Predictor
	accessor  history.Accessor
	cfg       config.EngineConfig
	logger    *slog.Logger
}

// NewAnalyzer creates an Analyzer over the given predictor and accessor.
func NewAnalyzer(predictor Predictor, accessor history.Accessor, cfg config.EngineConfig, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{
		predictor: predictor,
		accessor:  accessor,
		cfg:       cfg,
		logger:    logger,
	}
}

// dayOutcome is one day's contribution to the fold.
type dayOutcome struct {
	date     time.Time
	score    float64
	tempMean float64
	windMean float64
	humMean  float64
	precip   float64
}

// Analyze computes per-day predictions in parallel (bounded by the
// configured concurrency) and folds them. Day order is preserved so the
// earliest day wins best/worst ties deterministically.
func (a *Analyzer) Analyze(ctx context.Context, req RangeRequest) (*types.RangeSummary, error) {
	if err := a.validateSpan(req.Start, req.End); err != nil {
		return nil, err
	}

	days := enumerateDays(req.Start, req.End)
	outcomes := make([]dayOutcome, len(days))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.RangeConcurrency)

	for i, day := range days {
		g.Go(func() error {
			result, _, err := a.predictor.Predict(gctx, PredictRequest{
				Location: req.Location,
				Date:     day,
				Activity: req.Activity,
			})
			if err != nil {
				return err
			}

			window, err := a.accessor.FetchWindow(gctx, req.Location, day)
			if err != nil {
				return err
			}

			outcomes[i] = foldDay(day, result.OverallScore, window.Observations)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return summarize(outcomes), nil
}

func (a *Analyzer) validateSpan(start, end time.Time) error {
	if end.Before(start) {
		return types.NewAppError(
			types.ErrCodeValidationInvalidRange,
			"end date precedes start date",
			nil,
		)
	}
	span := int(end.Sub(start).Hours()/24) + 1
	if span > a.cfg.MaxRangeDays {
		return types.NewAppError(
			types.ErrCodeValidationInvalidRange,
			fmt.Sprintf("range spans %d days; maximum is %d", span, a.cfg.MaxRangeDays),
			nil,
		)
	}
	return nil
}

func enumerateDays(start, end time.Time) []time.Time {
	var days []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// foldDay condenses one day's analog window into climate means. The day's
// typical precipitation is the window mean, so the range total reads as an
// expected accumulation.
func foldDay(date time.Time, score float64, window []types.WeatherObservation) dayOutcome {
	out := dayOutcome{date: date, score: score}
	if len(window) == 0 {
		return out
	}
	for _, o := range window {
		out.tempMean += o.TempMeanC
		out.windMean += o.WindSpeedMS
		out.humMean += o.HumidityPct
		out.precip += o.PrecipMM
	}
	n := float64(len(window))
	out.tempMean /= n
	out.windMean /= n
	out.humMean /= n
	out.precip /= n
	return out
}

func summarize(outcomes []dayOutcome) *types.RangeSummary {
	summary := &types.RangeSummary{}
	if len(outcomes) == 0 {
		return summary
	}

	best, worst := outcomes[0], outcomes[0]
	for _, o := range outcomes {
		summary.AvgTemperature += o.tempMean
		summary.AvgWindSpeed += o.windMean
		summary.AvgHumidity += o.humMean
		summary.TotalPrecipitation += o.precip

		// Strict comparisons keep the earliest day on score ties.
		if o.score < best.score {
			best = o
		}
		if o.score > worst.score {
			worst = o
		}
	}

	n := float64(len(outcomes))
	summary.AvgTemperature /= n
	summary.AvgWindSpeed /= n
	summary.AvgHumidity /= n

	summary.BestDay = best.date
	summary.BestDayScore = best.score
	summary.WorstDay = worst.date
	summary.WorstDayScore = worst.score
	return summary
}
