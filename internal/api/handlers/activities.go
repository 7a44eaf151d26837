package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"climarisk/internal/core"
	"climarisk/internal/engine"
	"climarisk/internal/types"
)

// ActivityHandler serves the static activity profile catalog.
type ActivityHandler struct{}

// NewActivityHandler creates an ActivityHandler.
func NewActivityHandler() *ActivityHandler {
	return &ActivityHandler{}
}

// RegisterRoutes mounts the activity endpoints onto the mux.
func (h *ActivityHandler) RegisterRoutes(r chi.Router) {
	r.Get("/activities", h.HandleList)
}

type activityView struct {
	ID      string                              `json:"id"`
	Name    string                              `json:"name"`
	Weights map[types.ConditionCategory]float64 `json:"weights"`
}

// HandleList handles GET /activities. Profiles are process-constant, so the
// response is assembled fresh on every call without any service hop.
func (h *ActivityHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	profiles := engine.ListActivities()
	views := make([]activityView, 0, len(profiles))
	for _, p := range profiles {
		views = append(views, activityView{
			ID:      p.ID,
			Name:    p.Name,
			Weights: p.Weights,
		})
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: views})
}
