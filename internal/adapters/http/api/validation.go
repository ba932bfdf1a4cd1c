package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/LinkesAuge/chestbuddy/internal/domain/validation"
)

// ValidationDependencies defines the interface for validation operations.
type ValidationDependencies interface {
	ValidateAll(ctx context.Context) (validation.Summary, error)
	LastValidation() (validation.Summary, bool)
	Suggestions(field, value string) ([]validation.Suggestion, error)
}

// ValidationHandler handles validation requests.
type ValidationHandler struct {
	deps ValidationDependencies
}

// NewValidationHandler creates a new validation handler.
func NewValidationHandler(deps ValidationDependencies) *ValidationHandler {
	return &ValidationHandler{deps: deps}
}

// HandleRun handles POST /api/v1/validation/run requests, validating the
// whole table against the reference lists.
func (h *ValidationHandler) HandleRun(w http.ResponseWriter, r *http.Request) {
	summary, err := h.deps.ValidateAll(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// HandleSummary handles GET /api/v1/validation/summary requests,
// returning the outcome of the most recent run.
func (h *ValidationHandler) HandleSummary(w http.ResponseWriter, _ *http.Request) {
	summary, ok := h.deps.LastValidation()
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", errors.New("no validation run yet"))
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// suggestionsResponse echoes the probe value with its closest list entries.
type suggestionsResponse struct {
	Field       string                  `json:"field"`
	Value       string                  `json:"value"`
	Suggestions []validation.Suggestion `json:"suggestions"`
}

// HandleSuggestions handles GET /api/v1/suggestions?field=&value= requests.
func (h *ValidationHandler) HandleSuggestions(w http.ResponseWriter, r *http.Request) {
	field := r.URL.Query().Get("field")
	value := r.URL.Query().Get("value")
	if field == "" || value == "" {
		writeError(w, http.StatusBadRequest, "bad_request", errors.New("field and value parameters are required"))
		return
	}
	suggestions, err := h.deps.Suggestions(field, value)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if suggestions == nil {
		suggestions = []validation.Suggestion{}
	}
	writeJSON(w, http.StatusOK, suggestionsResponse{
		Field:       field,
		Value:       value,
		Suggestions: suggestions,
	})
}
