package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"climarisk/internal/core"
	"climarisk/internal/types"
)

// ModelCatalog lists stored model artifact metadata.
type ModelCatalog interface {
	ListInfo(ctx context.Context) ([]types.ModelInfo, error)
}

// ModeReporter exposes the active classifier strategy.
type ModeReporter interface {
	Mode() types.ClassifierMode
}

// ModelHandler serves the diagnostic model metadata view.
type ModelHandler struct {
	catalog ModelCatalog
	mode    ModeReporter
	logger  *slog.Logger
}

// NewModelHandler creates a ModelHandler with the provided dependencies.
func NewModelHandler(catalog ModelCatalog, mode ModeReporter, logger *slog.Logger) *ModelHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ModelHandler{
		catalog: catalog,
		mode:    mode,
		logger:  logger,
	}
}

// RegisterRoutes mounts the model endpoints onto the mux.
func (h *ModelHandler) RegisterRoutes(r chi.Router) {
	r.Get("/models/info", h.HandleInfo)
}

type modelInfoResponse struct {
	Mode   types.ClassifierMode `json:"mode"`
	Models []types.ModelInfo    `json:"models"`
}

// HandleInfo handles GET /models/info. In empirical mode the model list is
// typically empty; the mode field tells the two apart.
func (h *ModelHandler) HandleInfo(w http.ResponseWriter, r *http.Request) {
	models, err := h.catalog.ListInfo(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if models == nil {
		models = []types.ModelInfo{}
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{
		Data: modelInfoResponse{
			Mode:   h.mode.Mode(),
			Models: models,
		},
	})
}
