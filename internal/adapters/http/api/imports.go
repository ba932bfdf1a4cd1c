package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/LinkesAuge/chestbuddy/internal/jobs"
)

// ImportsDependencies defines the interface for import job operations.
type ImportsDependencies interface {
	ImportOptions() jobs.Options
	ImportFile(ctx context.Context, path string, opts jobs.Options) (jobs.Status, error)
	ImportStatus(id string) (jobs.Status, error)
	ListImports() []jobs.Status
	CancelImport(id string) error
}

// ImportsHandler handles import job requests.
type ImportsHandler struct {
	deps ImportsDependencies
}

// NewImportsHandler creates a new imports handler.
func NewImportsHandler(deps ImportsDependencies) *ImportsHandler {
	return &ImportsHandler{deps: deps}
}

// importRequest mirrors the OpenAPI schema for POST /api/v1/imports.
// Validate and Correct fall back to the service configuration when omitted.
type importRequest struct {
	Path     string `json:"path"`
	Validate *bool  `json:"validate,omitempty"`
	Correct  *bool  `json:"correct,omitempty"`
}

func (r importRequest) validate() error {
	if strings.TrimSpace(r.Path) == "" {
		return errors.New("missing path")
	}
	return nil
}

// jobResponse acknowledges an accepted or canceled import job.
type jobResponse struct {
	JobID string     `json:"job_id"`
	State jobs.State `json:"state"`
}

// HandleCreate handles POST /api/v1/imports requests.
func (h *ImportsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	opts := h.deps.ImportOptions()
	if req.Validate != nil {
		opts.Validate = *req.Validate
	}
	if req.Correct != nil {
		opts.Correct = *req.Correct
	}

	status, err := h.deps.ImportFile(r.Context(), strings.TrimSpace(req.Path), opts)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, jobResponse{JobID: status.JobID, State: status.State})
}

// HandleList handles GET /api/v1/imports requests, returning every job
// the tracker still remembers.
func (h *ImportsHandler) HandleList(w http.ResponseWriter, _ *http.Request) {
	list := h.deps.ListImports()
	if list == nil {
		list = []jobs.Status{}
	}
	writeJSON(w, http.StatusOK, list)
}

// HandleStatus handles GET /api/v1/imports/{id} requests.
func (h *ImportsHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.deps.ImportStatus(r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// HandleCancel handles DELETE /api/v1/imports/{id} requests. Cancellation
// is asynchronous; a running job stops between chunks and keeps the rows
// already imported.
func (h *ImportsHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.deps.CancelImport(id); err != nil {
		writeServiceError(w, err)
		return
	}
	status, err := h.deps.ImportStatus(id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, jobResponse{JobID: status.JobID, State: status.State})
}
