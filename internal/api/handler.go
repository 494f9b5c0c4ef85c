// Package api exposes the underwriting pipeline over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/opensource-finance/truerev/internal/cache"
	"github.com/opensource-finance/truerev/internal/domain"
	"github.com/opensource-finance/truerev/internal/metrics"
	"github.com/opensource-finance/truerev/internal/pipeline"
	"github.com/opensource-finance/truerev/internal/repository"
	"github.com/opensource-finance/truerev/internal/rules"
)

// maxBodyBytes bounds request bodies. Statements of a few thousand
// transactions fit comfortably.
const maxBodyBytes = 8 << 20

// Deps are the collaborators of the API. Only Pipeline is required.
type Deps struct {
	Pipeline *pipeline.Pipeline
	Repo     domain.Repository
	Cache    domain.Cache
	Bus      domain.EventBus
	Rules    *rules.Store
	Metrics  *metrics.Metrics
	Version  string

	// MetricsPath defaults to /metrics.
	MetricsPath string
}

// Handler holds dependencies for API handlers.
type Handler struct {
	pipeline *pipeline.Pipeline
	repo     domain.Repository
	cache    domain.Cache
	bus      domain.EventBus
	rules    *rules.Store
	metrics  *metrics.Metrics
	version  string
}

// NewHandler creates a new API handler.
func NewHandler(d Deps) *Handler {
	return &Handler{
		pipeline: d.Pipeline,
		repo:     d.Repo,
		cache:    d.Cache,
		bus:      d.Bus,
		rules:    d.Rules,
		metrics:  d.Metrics,
		version:  d.Version,
	}
}

// QueuedResponse acknowledges an asynchronous assessment.
type QueuedResponse struct {
	ApplicationID string `json:"application_id"`
	Status        string `json:"status"`
	Topic         string `json:"topic"`
}

// CreateAssessment handles POST /assessments. With ?async=true the
// application is queued on the bus and 202 is returned; otherwise the
// pipeline runs inline and the report is returned.
func (h *Handler) CreateAssessment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var req pipeline.Request
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if async, _ := strconv.ParseBool(r.URL.Query().Get("async")); async {
		h.queueAssessment(w, r, tenantID, &req)
		return
	}

	report, err := h.pipeline.Run(ctx, tenantID, &req)
	if errors.Is(err, pipeline.ErrInvalidRequest) || errors.Is(err, repository.ErrInvalidInput) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		slog.Error("assessment failed",
			"tenant_id", tenantID,
			"trace_id", GetTraceID(ctx),
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, "assessment failed")
		return
	}
	writeJSON(w, http.StatusCreated, report)
}

func (h *Handler) queueAssessment(w http.ResponseWriter, r *http.Request, tenantID string, req *pipeline.Request) {
	if h.bus == nil {
		writeError(w, http.StatusServiceUnavailable, "event bus not configured")
		return
	}
	if req.Application.ID == "" {
		req.Application.ID = uuid.New().String()
	}
	payload, err := json.Marshal(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid application")
		return
	}
	if err := h.bus.Publish(r.Context(), tenantID, domain.TopicApplicationSubmitted, payload); err != nil {
		slog.Error("failed to queue application",
			"tenant_id", tenantID,
			"application_id", req.Application.ID,
			"error", err,
		)
		writeError(w, http.StatusServiceUnavailable, "failed to queue application")
		return
	}
	h.metrics.BusMessage(domain.TopicApplicationSubmitted, "published")
	writeJSON(w, http.StatusAccepted, QueuedResponse{
		ApplicationID: req.Application.ID,
		Status:        "queued",
		Topic:         domain.TopicApplicationSubmitted,
	})
}

// GetAssessment handles GET /assessments/{id}.
func (h *Handler) GetAssessment(w http.ResponseWriter, r *http.Request) {
	if !h.requireRepo(w) {
		return
	}
	a, err := h.repo.GetAssessment(r.Context(), GetTenantID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.repoError(w, err, "assessment not found")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// ListAssessments handles GET /assessments, optionally filtered by
// ?application_id=.
func (h *Handler) ListAssessments(w http.ResponseWriter, r *http.Request) {
	if !h.requireRepo(w) {
		return
	}
	list, err := h.repo.ListAssessments(r.Context(), GetTenantID(r.Context()), r.URL.Query().Get("application_id"))
	if err != nil {
		h.repoError(w, err, "")
		return
	}
	if list == nil {
		list = []*domain.Assessment{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"assessments": list,
		"count":       len(list),
	})
}

// Health reports liveness with the state of each backing service.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	checks := h.checks(r)
	for _, v := range checks {
		if v != "ok" {
			status = "degraded"
		}
	}
	resp := map[string]any{
		"status":  status,
		"version": h.version,
		"checks":  checks,
	}
	if sc, ok := h.cache.(interface{ Stats() cache.Stats }); ok {
		resp["cache"] = sc.Stats()
	}
	writeJSON(w, http.StatusOK, resp)
}

// Ready returns 503 until every configured backing service answers.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	checks := h.checks(r)
	for _, v := range checks {
		if v != "ok" {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"ready":  false,
				"checks": checks,
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ready":  true,
		"checks": checks,
	})
}

func (h *Handler) checks(r *http.Request) map[string]string {
	out := make(map[string]string, 3)
	ping := func(name string, fn func() error) {
		if err := fn(); err != nil {
			out[name] = err.Error()
			return
		}
		out[name] = "ok"
	}
	ctx := r.Context()
	if h.repo != nil {
		ping("repository", func() error { return h.repo.Ping(ctx) })
	}
	if h.cache != nil {
		ping("cache", func() error { return h.cache.Ping(ctx) })
	}
	if h.bus != nil {
		ping("bus", func() error { return h.bus.Ping(ctx) })
	}
	return out
}

func (h *Handler) requireRepo(w http.ResponseWriter) bool {
	if h.repo == nil {
		writeError(w, http.StatusServiceUnavailable, "repository not configured")
		return false
	}
	return true
}

// repoError maps repository sentinels onto status codes.
func (h *Handler) repoError(w http.ResponseWriter, err error, notFound string) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		if notFound == "" {
			notFound = "not found"
		}
		writeError(w, http.StatusNotFound, notFound)
	case errors.Is(err, repository.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		slog.Error("repository error", "error", err)
		writeError(w, http.StatusInternalServerError, "storage error")
	}
}

// decodeJSON reads a bounded JSON body into v, writing a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON request body: %v", err))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Warn("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
