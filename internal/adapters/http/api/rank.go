package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/LinkesAuge/chestbuddy/internal/domain/types"
)

// RankDependencies defines the interface for player rank lookups.
type RankDependencies interface {
	PlayerRank(ctx context.Context, player string) (types.Entry, error)
}

// RankHandler handles player rank requests.
type RankHandler struct {
	deps RankDependencies
}

// NewRankHandler creates a new rank handler.
func NewRankHandler(deps RankDependencies) *RankHandler {
	return &RankHandler{deps: deps}
}

// HandleGetRank handles GET /api/v1/players/{name}/rank requests. Player
// names are matched exactly, including non-ASCII ones.
func (h *RankHandler) HandleGetRank(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if strings.TrimSpace(name) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", errors.New("missing player name"))
		return
	}
	entry, err := h.deps.PlayerRank(r.Context(), name)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}
