package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/LinkesAuge/chestbuddy/internal/adapters/archive"
)

// defaultArchiveLimit bounds GET /api/v1/archive/imports when no limit
// parameter is given.
const defaultArchiveLimit = 20

// ArchiveDependencies defines the interface for import history queries.
type ArchiveDependencies interface {
	RecentImports(ctx context.Context, limit int) ([]archive.ImportRun, error)
}

// ArchiveHandler handles import history requests.
type ArchiveHandler struct {
	deps ArchiveDependencies
}

// NewArchiveHandler creates a new archive handler.
func NewArchiveHandler(deps ArchiveDependencies) *ArchiveHandler {
	return &ArchiveHandler{deps: deps}
}

// HandleRecentImports handles GET /api/v1/archive/imports?limit=N
// requests. The list is empty when archiving is disabled.
func (h *ArchiveHandler) HandleRecentImports(w http.ResponseWriter, r *http.Request) {
	limit := defaultArchiveLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", errors.New("limit must be a positive integer"))
			return
		}
		limit = parsed
	}
	runs, err := h.deps.RecentImports(r.Context(), limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if runs == nil {
		runs = []archive.ImportRun{}
	}
	writeJSON(w, http.StatusOK, runs)
}
