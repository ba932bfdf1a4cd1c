package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/LinkesAuge/chestbuddy/internal/adapters/repository"
	"github.com/LinkesAuge/chestbuddy/internal/domain/model"
)

// Paging bounds for record listings.
const (
	defaultRecordLimit = 100
	maxRecordLimit     = 1000
)

// RecordsDependencies defines the interface for record CRUD operations.
type RecordsDependencies interface {
	Records(ctx context.Context, q repository.ListQuery) ([]model.Record, int, error)
	Record(ctx context.Context, id string) (model.Record, error)
	UpdateRecord(ctx context.Context, id string, edits model.CellEdits) (model.Record, error)
	DeleteRecord(ctx context.Context, id string) error
	ClearRecords(ctx context.Context) (int, error)
}

// RecordsHandler handles record requests.
type RecordsHandler struct {
	deps RecordsDependencies
}

// NewRecordsHandler creates a new records handler.
func NewRecordsHandler(deps RecordsDependencies) *RecordsHandler {
	return &RecordsHandler{deps: deps}
}

// recordsResponse pages records together with the total matching count.
type recordsResponse struct {
	Records []model.Record `json:"records"`
	Total   int            `json:"total"`
	Limit   int            `json:"limit"`
	Offset  int            `json:"offset"`
}

// clearResponse reports how many records a table clear dropped.
type clearResponse struct {
	Dropped int `json:"dropped"`
}

// parseListQuery builds a store query from URL parameters. The same
// filters drive both record listing and CSV export; export passes a
// zero default limit to mean "everything".
func parseListQuery(values url.Values, defaultLimit int) (repository.ListQuery, error) {
	q := repository.ListQuery{
		Limit:     defaultLimit,
		Player:    values.Get("player"),
		ChestType: values.Get("chest_type"),
		Clan:      values.Get("clan"),
		Source:    values.Get("source"),
	}
	if raw := values.Get("from"); raw != "" {
		d, err := model.ParseDate(raw)
		if err != nil {
			return q, fmt.Errorf("from: %w", err)
		}
		q.From = d
	}
	if raw := values.Get("to"); raw != "" {
		d, err := model.ParseDate(raw)
		if err != nil {
			return q, fmt.Errorf("to: %w", err)
		}
		q.To = d
	}
	if raw := values.Get("status"); raw != "" {
		switch status := model.ValidationStatus(raw); status {
		case model.StatusPending, model.StatusValid, model.StatusInvalid:
			q.Status = status
		default:
			return q, fmt.Errorf("status: unknown value %q", raw)
		}
	}
	if raw := values.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return q, fmt.Errorf("limit: must be a positive integer")
		}
		if n > maxRecordLimit {
			return q, fmt.Errorf("limit: exceeds maximum of %d", maxRecordLimit)
		}
		q.Limit = n
	}
	if raw := values.Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return q, fmt.Errorf("offset: must be a non-negative integer")
		}
		q.Offset = n
	}
	return q, nil
}

// HandleList handles GET /api/v1/records requests.
func (h *RecordsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q, err := parseListQuery(r.URL.Query(), defaultRecordLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	recs, total, err := h.deps.Records(r.Context(), q)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if recs == nil {
		recs = []model.Record{}
	}
	writeJSON(w, http.StatusOK, recordsResponse{
		Records: recs,
		Total:   total,
		Limit:   q.Limit,
		Offset:  q.Offset,
	})
}

// HandleGet handles GET /api/v1/records/{id} requests.
func (h *RecordsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	rec, err := h.deps.Record(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// recordPatch is a sparse cell edit; absent fields stay untouched.
type recordPatch struct {
	Date      *string `json:"date,omitempty"`
	Player    *string `json:"player,omitempty"`
	Source    *string `json:"source,omitempty"`
	ChestType *string `json:"chest_type,omitempty"`
	Value     *int    `json:"value,omitempty"`
	Clan      *string `json:"clan,omitempty"`
}

func (p recordPatch) edits() (model.CellEdits, error) {
	edits := model.CellEdits{
		Player:    p.Player,
		Source:    p.Source,
		ChestType: p.ChestType,
		Value:     p.Value,
		Clan:      p.Clan,
	}
	if p.Date != nil {
		d, err := model.ParseDate(*p.Date)
		if err != nil {
			return edits, fmt.Errorf("date: %w", err)
		}
		edits.Date = &d
	}
	return edits, nil
}

// HandlePatch handles PATCH /api/v1/records/{id} requests. The edited
// record drops back to pending validation.
func (h *RecordsHandler) HandlePatch(w http.ResponseWriter, r *http.Request) {
	var patch recordPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	edits, err := patch.edits()
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation", err)
		return
	}
	rec, err := h.deps.UpdateRecord(r.Context(), r.PathValue("id"), edits)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// HandleDelete handles DELETE /api/v1/records/{id} requests.
func (h *RecordsHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.DeleteRecord(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleClear handles DELETE /api/v1/records requests, dropping the whole
// table including dedupe state.
func (h *RecordsHandler) HandleClear(w http.ResponseWriter, r *http.Request) {
	dropped, err := h.deps.ClearRecords(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, clearResponse{Dropped: dropped})
}
