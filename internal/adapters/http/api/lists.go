package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
)

// ListsDependencies defines the interface for reference list management.
type ListsDependencies interface {
	ListEntries(kind string) ([]string, error)
	AddListEntries(ctx context.Context, kind string, entries []string) (int, error)
	RemoveListEntry(ctx context.Context, kind, entry string) (int, error)
}

// ListsHandler handles reference list requests.
type ListsHandler struct {
	deps ListsDependencies
}

// NewListsHandler creates a new lists handler.
func NewListsHandler(deps ListsDependencies) *ListsHandler {
	return &ListsHandler{deps: deps}
}

// listResponse carries a reference list's sorted entries.
type listResponse struct {
	Kind    string   `json:"kind"`
	Entries []string `json:"entries"`
	Count   int      `json:"count"`
}

// listCountResponse acknowledges a list mutation with the new size.
type listCountResponse struct {
	Kind  string `json:"kind"`
	Count int    `json:"count"`
}

// listAddRequest mirrors the POST /api/v1/lists/{kind} body.
type listAddRequest struct {
	Entries []string `json:"entries"`
}

// HandleGet handles GET /api/v1/lists/{kind} requests.
func (h *ListsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	kind := r.PathValue("kind")
	entries, err := h.deps.ListEntries(kind)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if entries == nil {
		entries = []string{}
	}
	writeJSON(w, http.StatusOK, listResponse{Kind: kind, Entries: entries, Count: len(entries)})
}

// HandleAdd handles POST /api/v1/lists/{kind} requests, merging new
// entries into the list and persisting it.
func (h *ListsHandler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	kind := r.PathValue("kind")
	var req listAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	if len(req.Entries) == 0 {
		writeError(w, http.StatusBadRequest, "bad_request", errors.New("missing entries"))
		return
	}
	count, err := h.deps.AddListEntries(r.Context(), kind, req.Entries)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listCountResponse{Kind: kind, Count: count})
}

// HandleRemove handles DELETE /api/v1/lists/{kind}?entry= requests.
func (h *ListsHandler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	kind := r.PathValue("kind")
	entry := r.URL.Query().Get("entry")
	if entry == "" {
		writeError(w, http.StatusBadRequest, "bad_request", errors.New("missing entry parameter"))
		return
	}
	count, err := h.deps.RemoveListEntry(r.Context(), kind, entry)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listCountResponse{Kind: kind, Count: count})
}
