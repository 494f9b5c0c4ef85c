// Package pipeline runs the full underwriting flow for one application:
// statement analysis, collaborator signals, scoring, rules and offer sizing.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/opensource-finance/truerev/internal/capacity"
	"github.com/opensource-finance/truerev/internal/domain"
	"github.com/opensource-finance/truerev/internal/fraud"
	"github.com/opensource-finance/truerev/internal/metrics"
	"github.com/opensource-finance/truerev/internal/nsf"
	"github.com/opensource-finance/truerev/internal/revenue"
	"github.com/opensource-finance/truerev/internal/rules"
	"github.com/opensource-finance/truerev/internal/scoring"
	"github.com/opensource-finance/truerev/internal/signals"
	"github.com/opensource-finance/truerev/internal/stats"
)

var tracer = otel.Tracer("truerev-pipeline")

// ErrInvalidRequest is returned for requests the pipeline cannot run.
var ErrInvalidRequest = errors.New("invalid request")

// Request is one application submitted for underwriting.
type Request struct {
	Application  domain.Application   `json:"application"`
	Transactions []domain.Transaction `json:"transactions"`

	// Signals are collaborator results the caller already holds.
	Signals domain.Signals `json:"signals"`
}

// Validate rejects applications whose amounts cannot be underwritten.
func (r *Request) Validate() error {
	app := r.Application
	if app.RequestedAmount < 0 || app.StatedMonthlyRevenue < 0 {
		return fmt.Errorf("%w: amounts must not be negative", ErrInvalidRequest)
	}
	if err := domain.ValidatePositions(app.ExistingPositions); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}

// Report is the persisted outcome of a pipeline run.
type Report struct {
	*scoring.Assessment
	BankAnalysis *BankAnalysis `json:"bank_analysis,omitempty"`
}

// Event is published on the bus when an assessment completes.
type Event struct {
	AssessmentID  string                `json:"assessment_id"`
	ApplicationID string                `json:"application_id"`
	Action        domain.DecisionAction `json:"action"`
	Score         int                   `json:"score"`
	ReviewLevel   string                `json:"review_level,omitempty"`
	ReasonCode    string                `json:"reason_code,omitempty"`
}

// Deps are the optional collaborators of a pipeline. Nil members are skipped.
type Deps struct {
	Repo    domain.Repository
	Bus     domain.EventBus
	Signals *signals.Service
	Rules   *rules.Store
	Metrics *metrics.Metrics
}

// Pipeline wires the analyzers into one underwriting run.
type Pipeline struct {
	cfg        domain.UnderwritingConfig
	cap        capacity.Cap
	stats      *stats.Analyzer
	classifier *revenue.Classifier
	nsf        *nsf.Analyzer
	fraud      *fraud.Detector
	assessor   *scoring.Assessor
	deps       Deps
}

// New builds a pipeline from the underwriting configuration.
func New(cfg domain.UnderwritingConfig, deps Deps) *Pipeline {
	st := stats.NewAnalyzer(cfg.Stats)
	c := capacity.New(cfg.Capacity)
	classifier := revenue.NewClassifier(cfg.Revenue, c, st)
	return &Pipeline{
		cfg:        cfg,
		cap:        c,
		stats:      st,
		classifier: classifier,
		nsf:        nsf.NewAnalyzer(cfg.NSF),
		fraud:      fraud.NewDetector(cfg.Fraud, classifier),
		assessor:   scoring.NewAssessor(cfg, nil),
		deps:       deps,
	}
}

// Capacity returns the withhold cap shared by offers and stacking.
func (p *Pipeline) Capacity() capacity.Cap { return p.cap }

// Classifier returns the transaction revenue classifier.
func (p *Pipeline) Classifier() *revenue.Classifier { return p.classifier }

// NSF returns the NSF and overdraft analyzer.
func (p *Pipeline) NSF() *nsf.Analyzer { return p.nsf }

// Fraud returns the statement fraud detector.
func (p *Pipeline) Fraud() *fraud.Detector { return p.fraud }

// Stats returns the statement statistics analyzer.
func (p *Pipeline) Stats() *stats.Analyzer { return p.stats }

// Assessor returns the risk assessor, which owns the rules engine and offer calculators.
func (p *Pipeline) Assessor() *scoring.Assessor { return p.assessor }

// Run underwrites one application and persists the report.
// Business declines are results; errors are reserved for bad input and
// storage failures.
func (p *Pipeline) Run(ctx context.Context, tenantID string, req *Request) (*Report, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "pipeline.Run")
	defer span.End()

	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidRequest)
	}
	if req == nil {
		return nil, fmt.Errorf("%w: request body is required", ErrInvalidRequest)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	app := req.Application
	if app.ID == "" {
		app.ID = uuid.New().String()
	}
	span.SetAttributes(
		attribute.String("tenant.id", tenantID),
		attribute.String("application.id", app.ID),
		attribute.Int("transactions", len(req.Transactions)),
	)

	bank := p.AnalyzeStatements(app, req.Transactions)

	sigs := req.Signals
	if bank != nil && sigs.BankAnalysis == nil {
		s := bank.Signal
		sigs.BankAnalysis = &s
	}
	var missing []domain.SignalKind
	if p.deps.Signals != nil {
		sigs, missing = p.deps.Signals.Collect(ctx, tenantID, &app, sigs)
	} else {
		if sigs.Industry == "" {
			sigs.Industry = app.Industry
		}
		missing = signals.Missing(sigs)
	}
	for _, k := range missing {
		p.deps.Metrics.SignalMissing(string(k))
	}

	in := scoring.Input{
		TenantID:    tenantID,
		Application: app,
		Signals:     sigs,
		Missing:     missing,
		StartTime:   start,
	}
	if bank != nil {
		in.Fraud = &bank.Fraud
		in.MCA = &scoring.MCAActivity{
			ActivePositions:   bank.MCAPayments.ActivePositions,
			TotalDailyPayment: bank.MCAPayments.TotalDailyPayment,
		}
		in.VolatilityLevel = bank.Volatility.Level
	}
	if p.deps.Rules != nil {
		re, err := p.deps.Rules.Engine(ctx, tenantID)
		if err != nil {
			slog.Warn("tenant rules unavailable, assessing without custom rules",
				"tenant_id", tenantID, "error", err)
		} else {
			in.Rules = re
		}
	}

	a := p.assessor.Assess(ctx, in)
	report := &Report{Assessment: a, BankAnalysis: bank}

	if err := p.save(ctx, report); err != nil {
		span.RecordError(err)
		return nil, err
	}
	p.publish(ctx, report)

	elapsed := time.Since(start)
	p.deps.Metrics.ObserveAssessment(string(a.Decision.Action), a.OverallScore, elapsed)
	span.SetAttributes(
		attribute.String("decision", string(a.Decision.Action)),
		attribute.Int("score", a.OverallScore),
	)
	slog.Info("assessment completed",
		"tenant_id", tenantID,
		"assessment_id", a.ID,
		"application_id", app.ID,
		"action", a.Decision.Action,
		"score", a.OverallScore,
		"duration_ms", elapsed.Milliseconds(),
	)
	return report, nil
}

func (p *Pipeline) save(ctx context.Context, r *Report) error {
	if p.deps.Repo == nil {
		return nil
	}
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode assessment: %w", err)
	}
	rec := &domain.Assessment{
		ID:            r.ID,
		TenantID:      r.TenantID,
		ApplicationID: r.ApplicationID,
		Action:        r.Decision.Action,
		Score:         r.OverallScore,
		CreatedAt:     r.CreatedAt,
		Result:        body,
	}
	if err := p.deps.Repo.SaveAssessment(ctx, r.TenantID, rec); err != nil {
		return fmt.Errorf("failed to save assessment: %w", err)
	}
	return nil
}

// publish announces the outcome. Bus failures are logged, never returned.
func (p *Pipeline) publish(ctx context.Context, r *Report) {
	if p.deps.Bus == nil {
		return
	}
	payload, err := json.Marshal(Event{
		AssessmentID:  r.ID,
		ApplicationID: r.ApplicationID,
		Action:        r.Decision.Action,
		Score:         r.OverallScore,
		ReviewLevel:   r.ReviewLevel,
		ReasonCode:    r.Decision.ReasonCode,
	})
	if err != nil {
		return
	}

	topics := []string{domain.TopicAssessmentCompleted}
	if r.Decision.Action == domain.ActionReview {
		topics = append(topics, domain.TopicAssessmentReview)
	}
	for _, topic := range topics {
		if err := p.deps.Bus.Publish(ctx, r.TenantID, topic, payload); err != nil {
			slog.Warn("failed to publish assessment event",
				"tenant_id", r.TenantID,
				"assessment_id", r.ID,
				"topic", topic,
				"error", err,
			)
		}
	}
}
