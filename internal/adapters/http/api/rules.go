package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/LinkesAuge/chestbuddy/internal/domain/correction"
	"github.com/LinkesAuge/chestbuddy/internal/domain/model"
)

// RulesDependencies defines the interface for correction rule management.
type RulesDependencies interface {
	Rules() ([]correction.Rule, error)
	AddRule(ctx context.Context, rule correction.Rule) (correction.Rule, error)
	UpdateRule(ctx context.Context, id string, rule correction.Rule) (correction.Rule, error)
	RemoveRule(ctx context.Context, id string) error
}

// RulesHandler handles correction rule requests.
type RulesHandler struct {
	deps RulesDependencies
}

// NewRulesHandler creates a new rules handler.
func NewRulesHandler(deps RulesDependencies) *RulesHandler {
	return &RulesHandler{deps: deps}
}

// ruleRequest mirrors the rule create/update body. Enabled defaults to
// true when omitted; an empty field applies the rule to all fields.
type ruleRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Field   string `json:"field,omitempty"`
	Enabled *bool  `json:"enabled,omitempty"`
}

func (r ruleRequest) rule() correction.Rule {
	rule := correction.Rule{
		From:    r.From,
		To:      r.To,
		Field:   model.Field(r.Field),
		Enabled: true,
	}
	if r.Enabled != nil {
		rule.Enabled = *r.Enabled
	}
	return rule
}

// HandleList handles GET /api/v1/rules requests.
func (h *RulesHandler) HandleList(w http.ResponseWriter, _ *http.Request) {
	rules, err := h.deps.Rules()
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if rules == nil {
		rules = []correction.Rule{}
	}
	writeJSON(w, http.StatusOK, rules)
}

// HandleCreate handles POST /api/v1/rules requests.
func (h *RulesHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req ruleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	rule, err := h.deps.AddRule(r.Context(), req.rule())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rule)
}

// HandleUpdate handles PUT /api/v1/rules/{id} requests.
func (h *RulesHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req ruleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	rule, err := h.deps.UpdateRule(r.Context(), r.PathValue("id"), req.rule())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

// HandleDelete handles DELETE /api/v1/rules/{id} requests.
func (h *RulesHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.RemoveRule(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
