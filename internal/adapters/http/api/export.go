package api

import (
	"context"
	"io"
	"net/http"

	"github.com/LinkesAuge/chestbuddy/internal/adapters/repository"
)

// ExportDependencies defines the interface for CSV export.
type ExportDependencies interface {
	ExportCSV(ctx context.Context, w io.Writer, q repository.ListQuery, withBOM bool) (int, error)
}

// ExportHandler streams filtered records as CSV.
type ExportHandler struct {
	deps ExportDependencies
}

// NewExportHandler creates a new export handler.
func NewExportHandler(deps ExportDependencies) *ExportHandler {
	return &ExportHandler{deps: deps}
}

// HandleExport handles GET /api/v1/export requests. The record listing
// filters apply; bom=1 prefixes a UTF-8 byte order mark for Excel.
func (h *ExportHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	q, err := parseListQuery(r.URL.Query(), 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	withBOM := r.URL.Query().Get("bom") == "1"

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="chests.csv"`)
	if _, err := h.deps.ExportCSV(r.Context(), w, q, withBOM); err != nil {
		// The header line may already be on the wire; the error body is
		// best effort.
		writeServiceError(w, err)
		return
	}
}
