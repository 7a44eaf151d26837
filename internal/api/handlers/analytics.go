package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"climarisk/internal/core"
	"climarisk/internal/types"
)

// defaultAnalyticsWindow is the lookback applied when the caller does not
// supply an explicit time range.
const defaultAnalyticsWindow = 30 * 24 * time.Hour

// AnalyticsSource aggregates the query log over a time window.
type AnalyticsSource interface {
	Summary(ctx context.Context, start, end time.Time) (*types.AnalyticsSummary, error)
}

// AnalyticsHandler serves the read-only analytics view.
type AnalyticsHandler struct {
	source AnalyticsSource
	clock  types.Clock
	logger *slog.Logger
}

// NewAnalyticsHandler creates an AnalyticsHandler with the provided
// dependencies.
func NewAnalyticsHandler(source AnalyticsSource, clock types.Clock, logger *slog.Logger) *AnalyticsHandler {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalyticsHandler{
		source: source,
		clock:  clock,
		logger: logger,
	}
}

// RegisterRoutes mounts the analytics endpoints onto the mux.
func (h *AnalyticsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/analytics/summary", h.HandleSummary)
}

// HandleSummary handles GET /analytics/summary. Optional start/end query
// params are RFC3339 timestamps; the window defaults to the last 30 days.
func (h *AnalyticsHandler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	end := h.clock.Now()
	start := end.Add(-defaultAnalyticsWindow)

	if raw := q.Get("start"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			core.Error(w, r, types.NewAppError(
				types.ErrCodeValidationInvalidDate,
				"start must be a valid RFC3339 timestamp",
				nil,
			))
			return
		}
		start = parsed.UTC()
	}
	if raw := q.Get("end"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			core.Error(w, r, types.NewAppError(
				types.ErrCodeValidationInvalidDate,
				"end must be a valid RFC3339 timestamp",
				nil,
			))
			return
		}
		end = parsed.UTC()
	}

	if end.Before(start) {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationInvalidRange,
			"end must not precede start",
			nil,
		))
		return
	}

	summary, err := h.source.Summary(r.Context(), start, end)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: summary})
}
