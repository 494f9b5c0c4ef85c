package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/opensource-finance/truerev/internal/domain"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, d Deps) *Server {
	handler := NewHandler(d)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)
	router.Use(RecoverMiddleware)
	router.Use(TracingMiddleware)
	router.Use(LoggingMiddleware)
	router.Use(MetricsMiddleware(d.Metrics))
	router.Use(middleware.RealIP)
	router.Use(middleware.Compress(5))

	// No tenant required
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)
	if d.Metrics != nil {
		path := d.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		router.Method(http.MethodGet, path, d.Metrics.Handler())
	}

	router.Group(func(r chi.Router) {
		r.Use(TenantMiddleware)

		// Assessments
		r.Post("/assessments", handler.CreateAssessment)
		r.Get("/assessments", handler.ListAssessments)
		r.Get("/assessments/{id}", handler.GetAssessment)

		// Statement analysis
		r.Post("/revenue/classify", handler.ClassifyRevenue)
		r.Post("/revenue/monthly", handler.MonthlyRevenue)
		r.Post("/nsf", handler.AnalyzeNSF)
		r.Post("/fraud", handler.AnalyzeFraud)

		// Offers and positions
		r.Post("/offers", handler.CalculateOffer)
		r.Post("/offers/validate", handler.ValidateOffer)
		r.Post("/offers/scenarios", handler.OfferScenarios)
		r.Post("/capacity", handler.Capacity)
		r.Post("/stacking", handler.OptimizeStacking)
		r.Post("/stacking/buyout", handler.AnalyzeBuyout)
		r.Post("/quick-check", handler.QuickCheck)

		// Rule management
		r.Get("/rules", handler.ListRules)
		r.Post("/rules", handler.CreateRule)
		r.Get("/rules/fields", handler.RuleFields)
		r.Post("/rules/validate", handler.ValidateRule)
		r.Post("/rules/test", handler.TestRule)
		r.Post("/rules/reload", handler.ReloadRules)
		r.Get("/rules/{id}", handler.GetRule)
		r.Put("/rules/{id}", handler.UpdateRule)
		r.Delete("/rules/{id}", handler.DeleteRule)
		r.Post("/rules/{id}/toggle", handler.ToggleRule)
	})

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}
