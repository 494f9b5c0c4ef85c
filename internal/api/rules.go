package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/opensource-finance/truerev/internal/domain"
	"github.com/opensource-finance/truerev/internal/rules"
)

// ToggleRequest is the optional body of POST /rules/{id}/toggle. Without
// it the rule's state flips.
type ToggleRequest struct {
	Active *bool `json:"is_active"`
}

// TestRuleRequest is the body of POST /rules/test.
type TestRuleRequest struct {
	Rule domain.RiskRule `json:"rule"`
	Data json.RawMessage `json:"data"`
}

// ruleBody distinguishes an omitted is_active from false.
type ruleBody struct {
	domain.RiskRule
	Active *bool `json:"is_active"`
}

func (b ruleBody) rule(defaultActive bool) domain.RiskRule {
	r := b.RiskRule
	r.Active = defaultActive
	if b.Active != nil {
		r.Active = *b.Active
	}
	return r
}

// engine returns the tenant's rule engine, seeding defaults on first use.
func (h *Handler) engine(w http.ResponseWriter, r *http.Request) (*rules.Engine, bool) {
	if h.rules == nil || h.repo == nil {
		writeError(w, http.StatusServiceUnavailable, "rule store not configured")
		return nil, false
	}
	e, err := h.rules.Engine(r.Context(), GetTenantID(r.Context()))
	if err != nil {
		slog.Error("failed to load tenant rules", "tenant_id", GetTenantID(r.Context()), "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load rules")
		return nil, false
	}
	return e, true
}

// reload recompiles the tenant's rules after a change. The change is
// already stored, so a failure is logged rather than returned.
func (h *Handler) reload(ctx context.Context, tenantID string) {
	n, err := h.rules.Reload(ctx, tenantID)
	if err != nil {
		slog.Warn("rule reload failed, previous rule set kept", "tenant_id", tenantID, "error", err)
		return
	}
	h.metrics.SetRulesLoaded(n)
}

// ListRules handles GET /rules. ?active=true limits to active rules.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.engine(w, r); !ok {
		return
	}
	activeOnly, _ := strconv.ParseBool(r.URL.Query().Get("active"))
	list, err := h.repo.ListRiskRules(r.Context(), GetTenantID(r.Context()), activeOnly)
	if err != nil {
		h.repoError(w, err, "")
		return
	}
	if list == nil {
		list = []*domain.RiskRule{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"rules": list,
		"count": len(list),
	})
}

// GetRule handles GET /rules/{id}.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.engine(w, r); !ok {
		return
	}
	rule, err := h.repo.GetRiskRule(r.Context(), GetTenantID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.repoError(w, err, "rule not found")
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

// CreateRule handles POST /rules. New rules are active unless the body
// says otherwise.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	e, ok := h.engine(w, r)
	if !ok {
		return
	}
	var body ruleBody
	if !decodeJSON(w, r, &body) {
		return
	}
	rule := body.rule(true)
	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}
	h.saveRule(w, r, e, &rule, http.StatusCreated)
}

// UpdateRule handles PUT /rules/{id}. The rule must exist.
func (h *Handler) UpdateRule(w http.ResponseWriter, r *http.Request) {
	e, ok := h.engine(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	existing, err := h.repo.GetRiskRule(ctx, GetTenantID(ctx), id)
	if err != nil {
		h.repoError(w, err, "rule not found")
		return
	}

	var body ruleBody
	if !decodeJSON(w, r, &body) {
		return
	}
	rule := body.rule(existing.Active)
	rule.ID = id
	rule.CreatedAt = existing.CreatedAt
	h.saveRule(w, r, e, &rule, http.StatusOK)
}

func (h *Handler) saveRule(w http.ResponseWriter, r *http.Request, e *rules.Engine, rule *domain.RiskRule, status int) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	if v := e.ValidateRule(rule); !v.Valid {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "invalid rule",
			"errors": v.Errors,
		})
		return
	}
	if err := h.repo.SaveRiskRule(ctx, tenantID, rule); err != nil {
		h.repoError(w, err, "")
		return
	}
	h.reload(ctx, tenantID)

	slog.Info("rule saved", "tenant_id", tenantID, "rule_id", rule.ID, "active", rule.Active)
	writeJSON(w, status, rule)
}

// DeleteRule handles DELETE /rules/{id}.
func (h *Handler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.engine(w, r); !ok {
		return
	}
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	id := chi.URLParam(r, "id")
	if err := h.repo.DeleteRiskRule(ctx, tenantID, id); err != nil {
		h.repoError(w, err, "rule not found")
		return
	}
	h.reload(ctx, tenantID)
	writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
}

// ToggleRule handles POST /rules/{id}/toggle.
func (h *Handler) ToggleRule(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.engine(w, r); !ok {
		return
	}
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	id := chi.URLParam(r, "id")

	rule, err := h.repo.GetRiskRule(ctx, tenantID, id)
	if err != nil {
		h.repoError(w, err, "rule not found")
		return
	}
	active := !rule.Active
	if r.ContentLength != 0 {
		var req ToggleRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.Active != nil {
			active = *req.Active
		}
	}

	if err := h.repo.SetRiskRuleActive(ctx, tenantID, id, active); err != nil {
		h.repoError(w, err, "rule not found")
		return
	}
	h.reload(ctx, tenantID)
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "is_active": active})
}

// ValidateRule handles POST /rules/validate.
func (h *Handler) ValidateRule(w http.ResponseWriter, r *http.Request) {
	e, ok := h.engine(w, r)
	if !ok {
		return
	}
	var rule domain.RiskRule
	if !decodeJSON(w, r, &rule) {
		return
	}
	writeJSON(w, http.StatusOK, e.ValidateRule(&rule))
}

// TestRule handles POST /rules/test: a dry run of one rule against sample
// data, without storing or loading it.
func (h *Handler) TestRule(w http.ResponseWriter, r *http.Request) {
	e, ok := h.engine(w, r)
	if !ok {
		return
	}
	var req TestRuleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	data := req.Data
	if len(data) == 0 {
		data = json.RawMessage("{}")
	}
	rc, err := rules.FromJSON(data)
	if err != nil {
		writeError(w, http.StatusBadRequest, "data must be a JSON object")
		return
	}
	writeJSON(w, http.StatusOK, e.TestRule(req.Rule, rc))
}

// ReloadRules handles POST /rules/reload.
func (h *Handler) ReloadRules(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.engine(w, r); !ok {
		return
	}
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	n, err := h.rules.Reload(ctx, tenantID)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":  err.Error(),
			"loaded": n,
		})
		return
	}
	h.metrics.SetRulesLoaded(n)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "reloaded",
		"loaded": n,
	})
}

// RuleFields handles GET /rules/fields.
func (h *Handler) RuleFields(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"fields":    rules.AvailableFields(),
		"operators": domain.Operators,
	})
}
