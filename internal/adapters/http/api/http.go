// Package api exposes the chest tracking service over HTTP: imports,
// records, validation, correction rules, charts and the leaderboard,
// registered under /api/v1 on a standard ServeMux.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	service "github.com/LinkesAuge/chestbuddy/internal/app"
	"github.com/LinkesAuge/chestbuddy/internal/domain/types"
)

// ChartSeries is the series shape the chart endpoints return.
type ChartSeries = types.ChartSeries

// Service bundles everything the HTTP layer needs from the application
// core. Handlers declare narrower slices of it so tests can stub exactly
// what they touch.
type Service interface {
	ImportsDependencies
	ArchiveDependencies
	RecordsDependencies
	ExportDependencies
	ValidationDependencies
	ListsDependencies
	RulesDependencies
	CorrectionsDependencies
	ChartsDependencies
	LeaderboardDependencies
	RankDependencies
	StatsProvider
}

var _ Service = (*service.Service)(nil)

// Server wires HTTP routes for the chest tracking API.
type Server struct {
	healthHandler      *HealthHandler
	importsHandler     *ImportsHandler
	recordsHandler     *RecordsHandler
	exportHandler      *ExportHandler
	validationHandler  *ValidationHandler
	listsHandler       *ListsHandler
	rulesHandler       *RulesHandler
	correctionsHandler *CorrectionsHandler
	chartsHandler      *ChartsHandler
	leaderboardHandler *LeaderboardHandler
	rankHandler        *RankHandler
	statsHandler       *StatsHandler
	archiveHandler     *ArchiveHandler
	dashboardHandler   *dashboardHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(svc Service) *Server {
	return &Server{
		healthHandler:      NewHealthHandler(),
		importsHandler:     NewImportsHandler(svc),
		recordsHandler:     NewRecordsHandler(svc),
		exportHandler:      NewExportHandler(svc),
		validationHandler:  NewValidationHandler(svc),
		listsHandler:       NewListsHandler(svc),
		rulesHandler:       NewRulesHandler(svc),
		correctionsHandler: NewCorrectionsHandler(svc),
		chartsHandler:      NewChartsHandler(svc),
		leaderboardHandler: NewLeaderboardHandler(svc, maxLeaderboardLimit),
		rankHandler:        NewRankHandler(svc),
		statsHandler:       NewStatsHandler(svc),
		archiveHandler:     NewArchiveHandler(svc),
		dashboardHandler:   newDashboardHandler(),
	}
}

// Register attaches all HTTP routes to mux. Method patterns let the mux
// reject mismatched verbs with 405 before a handler runs.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /metrics", s.healthHandler.HandleMetrics)
	mux.HandleFunc("GET /dashboard", s.dashboardHandler.HandleDashboard)

	mux.HandleFunc("POST /api/v1/imports", MetricsMiddleware(s.importsHandler.HandleCreate, "imports"))
	mux.HandleFunc("GET /api/v1/imports", MetricsMiddleware(s.importsHandler.HandleList, "imports"))
	mux.HandleFunc("GET /api/v1/imports/{id}", MetricsMiddleware(s.importsHandler.HandleStatus, "import"))
	mux.HandleFunc("DELETE /api/v1/imports/{id}", MetricsMiddleware(s.importsHandler.HandleCancel, "import"))

	mux.HandleFunc("GET /api/v1/records", MetricsMiddleware(s.recordsHandler.HandleList, "records"))
	mux.HandleFunc("DELETE /api/v1/records", MetricsMiddleware(s.recordsHandler.HandleClear, "records"))
	mux.HandleFunc("GET /api/v1/records/{id}", MetricsMiddleware(s.recordsHandler.HandleGet, "record"))
	mux.HandleFunc("PATCH /api/v1/records/{id}", MetricsMiddleware(s.recordsHandler.HandlePatch, "record"))
	mux.HandleFunc("DELETE /api/v1/records/{id}", MetricsMiddleware(s.recordsHandler.HandleDelete, "record"))
	mux.HandleFunc("GET /api/v1/export", MetricsMiddleware(s.exportHandler.HandleExport, "export"))

	mux.HandleFunc("POST /api/v1/validation/run", MetricsMiddleware(s.validationHandler.HandleRun, "validation_run"))
	mux.HandleFunc("GET /api/v1/validation/summary", MetricsMiddleware(s.validationHandler.HandleSummary, "validation_summary"))
	mux.HandleFunc("GET /api/v1/suggestions", MetricsMiddleware(s.validationHandler.HandleSuggestions, "suggestions"))

	mux.HandleFunc("GET /api/v1/lists/{kind}", MetricsMiddleware(s.listsHandler.HandleGet, "lists"))
	mux.HandleFunc("POST /api/v1/lists/{kind}", MetricsMiddleware(s.listsHandler.HandleAdd, "lists"))
	mux.HandleFunc("DELETE /api/v1/lists/{kind}", MetricsMiddleware(s.listsHandler.HandleRemove, "lists"))

	mux.HandleFunc("GET /api/v1/rules", MetricsMiddleware(s.rulesHandler.HandleList, "rules"))
	mux.HandleFunc("POST /api/v1/rules", MetricsMiddleware(s.rulesHandler.HandleCreate, "rules"))
	mux.HandleFunc("PUT /api/v1/rules/{id}", MetricsMiddleware(s.rulesHandler.HandleUpdate, "rule"))
	mux.HandleFunc("DELETE /api/v1/rules/{id}", MetricsMiddleware(s.rulesHandler.HandleDelete, "rule"))
	mux.HandleFunc("POST /api/v1/corrections/apply", MetricsMiddleware(s.correctionsHandler.HandleApply, "corrections_apply"))
	mux.HandleFunc("POST /api/v1/corrections/preview", MetricsMiddleware(s.correctionsHandler.HandlePreview, "corrections_preview"))

	mux.HandleFunc("GET /api/v1/charts", MetricsMiddleware(s.chartsHandler.HandleAll, "charts"))
	mux.HandleFunc("GET /api/v1/charts/{kind}", MetricsMiddleware(s.chartsHandler.HandleGet, "charts"))
	mux.HandleFunc("GET /api/v1/leaderboard", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard"))
	mux.HandleFunc("GET /api/v1/players/{name}/rank", MetricsMiddleware(s.rankHandler.HandleGetRank, "rank"))
	mux.HandleFunc("GET /api/v1/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("GET /api/v1/archive/imports", MetricsMiddleware(s.archiveHandler.HandleRecentImports, "archive_imports"))
}

// errorResponse is the uniform error envelope for every endpoint.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Error: msg, Code: code})
}
