package api

import (
	"context"
	"net/http"

	"github.com/LinkesAuge/chestbuddy/internal/domain/correction"
)

// CorrectionsDependencies defines the interface for batch correction passes.
type CorrectionsDependencies interface {
	ApplyCorrections(ctx context.Context) (correction.Summary, []correction.Change, error)
	PreviewCorrections(ctx context.Context) ([]correction.Change, error)
}

// CorrectionsHandler handles batch correction requests.
type CorrectionsHandler struct {
	deps CorrectionsDependencies
}

// NewCorrectionsHandler creates a new corrections handler.
func NewCorrectionsHandler(deps CorrectionsDependencies) *CorrectionsHandler {
	return &CorrectionsHandler{deps: deps}
}

// correctionsResponse reports an applied or previewed correction pass.
// Preview responses omit the summary.
type correctionsResponse struct {
	Summary *correction.Summary `json:"summary,omitempty"`
	Changes []correction.Change `json:"changes"`
}

// HandleApply handles POST /api/v1/corrections/apply requests, rewriting
// every matching record and revalidating the changed ones.
func (h *CorrectionsHandler) HandleApply(w http.ResponseWriter, r *http.Request) {
	summary, changes, err := h.deps.ApplyCorrections(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if changes == nil {
		changes = []correction.Change{}
	}
	writeJSON(w, http.StatusOK, correctionsResponse{Summary: &summary, Changes: changes})
}

// HandlePreview handles POST /api/v1/corrections/preview requests without
// touching any record.
func (h *CorrectionsHandler) HandlePreview(w http.ResponseWriter, r *http.Request) {
	changes, err := h.deps.PreviewCorrections(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if changes == nil {
		changes = []correction.Change{}
	}
	writeJSON(w, http.StatusOK, correctionsResponse{Changes: changes})
}
