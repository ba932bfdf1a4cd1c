package api

import (
	"context"
	"net/http"
)

// ChartsDependencies defines the interface for chart series queries.
type ChartsDependencies interface {
	ChartData(ctx context.Context, kind string) (ChartSeries, error)
	AllCharts(ctx context.Context) (map[string]ChartSeries, error)
}

// ChartsHandler handles chart data requests.
type ChartsHandler struct {
	deps ChartsDependencies
}

// NewChartsHandler creates a new charts handler.
func NewChartsHandler(deps ChartsDependencies) *ChartsHandler {
	return &ChartsHandler{deps: deps}
}

// HandleGet handles GET /api/v1/charts/{kind} requests.
func (h *ChartsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	series, err := h.deps.ChartData(r.Context(), r.PathValue("kind"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, series)
}

// HandleAll handles GET /api/v1/charts requests, returning every series
// keyed by kind. The dashboard page polls this.
func (h *ChartsHandler) HandleAll(w http.ResponseWriter, r *http.Request) {
	series, err := h.deps.AllCharts(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, series)
}
