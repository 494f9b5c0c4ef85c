package scoring

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/opensource-finance/truerev/internal/capacity"
	"github.com/opensource-finance/truerev/internal/domain"
	"github.com/opensource-finance/truerev/internal/fraud"
	"github.com/opensource-finance/truerev/internal/offer"
	"github.com/opensource-finance/truerev/internal/rules"
	"github.com/opensource-finance/truerev/internal/stacking"
)

// EngineVersion is stamped on every assessment.
const EngineVersion = "truerev-1.0"

// Review levels for REVIEW outcomes.
const (
	ReviewSenior      = "senior"
	ReviewExperienced = "experienced"
	ReviewStandard    = "standard"
)

var tracer = otel.Tracer("truerev-scoring")

// Input contains all data needed for a comprehensive assessment.
type Input struct {
	TenantID    string
	Application domain.Application
	Signals     domain.Signals

	// Fraud is the statement fraud analysis, nil when no statements were analyzed.
	Fraud *fraud.Analysis

	// MCA is the remittance detected on the statements.
	MCA *MCAActivity

	VolatilityLevel string

	// Missing lists collaborator signals whose fetch failed.
	Missing []domain.SignalKind

	// Rules overrides the assessor's rule engine, usually with the tenant's.
	Rules *rules.Engine

	StartTime time.Time
}

func (in Input) industry() string {
	if in.Signals.Industry != "" {
		return in.Signals.Industry
	}
	return in.Application.Industry
}

// Metadata contains processing information.
type Metadata struct {
	DecisionMs     int64  `json:"decision_ms"`
	TotalMs        int64  `json:"total_ms"`
	RulesEvaluated int    `json:"rules_evaluated"`
	RulesMatched   int    `json:"rules_matched"`
	RevenueSource  string `json:"revenue_source"`
	EngineVersion  string `json:"engine_version"`
}

// Assessment is the comprehensive underwriting outcome.
type Assessment struct {
	ID                    string               `json:"id"`
	TenantID              string               `json:"tenant_id"`
	ApplicationID         string               `json:"application_id"`
	OverallScore          int                  `json:"overall_score"`
	BaseScore             int                  `json:"base_score"`
	ScoreAdjustments      int                  `json:"score_adjustments"`
	RiskLevel             string               `json:"risk_level"`
	Decision              domain.Decision      `json:"decision"`
	ReviewLevel           string               `json:"review_level,omitempty"`
	OfferTerms            *offer.Result        `json:"offer_terms"`
	Flags                 []string             `json:"flags"`
	ComponentScores       map[string]int       `json:"component_scores"`
	Weights               map[string]float64   `json:"weights"`
	ComponentDetails      map[string]Component `json:"component_details"`
	FraudAnalysis         *fraud.Analysis      `json:"fraud_analysis,omitempty"`
	CustomRules           *rules.Result        `json:"custom_rules,omitempty"`
	PositionOptimization  *stacking.Result     `json:"position_optimization,omitempty"`
	Blocked               bool                 `json:"blocked"`
	BlockReason           string               `json:"block_reason,omitempty"`
	MissingSignals        []domain.SignalKind  `json:"missing_signals,omitempty"`
	RequiredVerifications []rules.Verification `json:"required_verifications"`
	Summary               string               `json:"summary"`
	Metadata              Metadata             `json:"metadata"`
	CreatedAt             time.Time            `json:"created_at"`
}

// Assessor aggregates scoring, rules, fraud and offer sizing into one decision.
type Assessor struct {
	cfg      domain.UnderwritingConfig
	engine   *Engine
	rules    *rules.Engine
	offers   *offer.Calculator
	stacking *stacking.Optimizer
}

// NewAssessor creates an assessor. A nil rule engine skips custom rules.
func NewAssessor(cfg domain.UnderwritingConfig, re *rules.Engine) *Assessor {
	c := capacity.New(cfg.Capacity)
	return &Assessor{
		cfg:      cfg,
		engine:   NewEngine(cfg.Scoring),
		rules:    re,
		offers:   offer.NewCalculator(cfg.Pricing, c),
		stacking: stacking.NewOptimizer(cfg.Stacking, c),
	}
}

// Engine returns the weighted scoring engine.
func (a *Assessor) Engine() *Engine { return a.engine }

// Offers returns the offer calculator.
func (a *Assessor) Offers() *offer.Calculator { return a.offers }

// Stacking returns the position stacking optimizer.
func (a *Assessor) Stacking() *stacking.Optimizer { return a.stacking }

// Assess scores the application and resolves the final decision.
//
// Precedence: blocking rule, high fraud risk, rule-forced decline, capacity
// decline, missing required signal, then the score thresholds.
func (a *Assessor) Assess(ctx context.Context, in Input) *Assessment {
	_, span := tracer.Start(ctx, "scoring.Assess")
	defer span.End()

	start := time.Now()
	if in.StartTime.IsZero() {
		in.StartTime = start
	}

	out := &Assessment{
		ID:                    uuid.New().String(),
		TenantID:              in.TenantID,
		ApplicationID:         in.Application.ID,
		FraudAnalysis:         in.Fraud,
		MissingSignals:        in.Missing,
		RequiredVerifications: []rules.Verification{},
		CreatedAt:             time.Now().UTC(),
	}

	base := a.engine.CalculateRiskScore(in.Signals)
	out.BaseScore = base.OverallScore
	out.ComponentScores = base.ComponentScores
	out.Weights = base.Weights
	out.ComponentDetails = base.Details

	flags := slices.Clone(base.Flags)
	flags = append(flags, a.autoFlags(in)...)
	score := base.OverallScore

	re := a.rules
	if in.Rules != nil {
		re = in.Rules
	}
	if re != nil {
		rctx, err := a.RuleContext(in, score)
		if err != nil {
			slog.Warn("rule context unavailable, skipping custom rules",
				"tenant_id", in.TenantID, "application_id", in.Application.ID, "error", err)
		} else {
			res := re.Evaluate(rctx)
			out.CustomRules = &res
			out.Metadata.RulesEvaluated = re.RulesCount()
			out.Metadata.RulesMatched = len(res.MatchedRules)

			score = res.ApplyScore(score)
			for _, f := range res.Flags {
				flags = append(flags, "[rule] "+f.Message)
			}
			out.Blocked = res.Blocked
			out.BlockReason = res.BlockReason
			out.RequiredVerifications = res.RequiredVerifications
		}
	}

	if fi := a.cfg.Scoring.FraudImpact; fi.Enabled && in.Fraud != nil && in.Fraud.FraudScore < fi.ScoreThreshold {
		penalty := int(math.Round((100 - in.Fraud.FraudScore) * fi.PenaltyMultiplier))
		score = max(0, score-penalty)
		flags = append(flags, "[fraud] Fraud risk detected - score penalty applied")
	}

	revenue := a.monthlyRevenue(in)
	out.Metadata.RevenueSource = a.revenueSource(in)

	var sized *offer.Result
	if in.Application.RequestedAmount > 0 {
		opt := a.stacking.Optimize(stacking.Input{
			MonthlyRevenue:    revenue,
			RequestedAmount:   in.Application.RequestedAmount,
			ExistingPositions: in.Application.ExistingPositions,
			BankAnalysis:      in.Signals.BankAnalysis,
			RiskScore:         &score,
		})
		out.PositionOptimization = &opt

		res := a.offers.Calculate(a.offerInput(in, revenue, score, out.CustomRules))
		sized = &res
	}

	out.OverallScore = score
	out.ScoreAdjustments = score - base.OverallScore
	out.RiskLevel = RiskLevel(score)
	out.Decision = a.finalDecision(score, in, out, sized)

	if sized != nil && sized.Status != offer.StatusDeclined &&
		(out.Decision.Action == domain.ActionApprove || out.Decision.Action == domain.ActionReview) {
		if out.Decision.ReasonCode == domain.ReasonSignalMissing {
			sized.Status = offer.StatusNeedsReview
		}
		out.OfferTerms = sized
	}
	if out.Decision.Action == domain.ActionReview {
		out.ReviewLevel = reviewLevel(score, out.CustomRules)
	}

	if flags == nil {
		flags = []string{}
	}
	out.Flags = flags
	out.Summary = a.comprehensiveSummary(out)
	out.Metadata.DecisionMs = time.Since(start).Milliseconds()
	out.Metadata.TotalMs = time.Since(in.StartTime).Milliseconds()
	out.Metadata.EngineVersion = EngineVersion

	span.SetAttributes(
		attribute.String("decision", string(out.Decision.Action)),
		attribute.Int("score", score),
	)
	slog.Debug("assessment decided",
		"tenant_id", in.TenantID,
		"assessment_id", out.ID,
		"action", out.Decision.Action,
		"score", score,
		"duration_ms", out.Metadata.DecisionMs,
	)
	return out
}

func (a *Assessor) finalDecision(score int, in Input, out *Assessment, sized *offer.Result) domain.Decision {
	if out.Blocked {
		reason := out.BlockReason
		if reason == "" {
			reason = "Policy violation"
		}
		return domain.Decision{
			Action:     domain.ActionDecline,
			Type:       domain.DecisionTypeAuto,
			Message:    "Application blocked: " + reason,
			ReasonCode: domain.ReasonBlocked,
		}
	}

	if in.Fraud != nil && in.Fraud.RiskLevel == fraud.LevelHigh {
		return domain.Decision{
			Action:     domain.ActionDecline,
			Type:       domain.DecisionTypeAuto,
			Message:    "High fraud risk detected",
			ReasonCode: domain.ReasonFraudRisk,
		}
	}

	if out.CustomRules != nil {
		if d, ok := out.CustomRules.Decision(); ok && d.Decision == string(domain.ActionDecline) {
			return domain.Decision{
				Action:     domain.ActionDecline,
				Type:       domain.DecisionTypeRule,
				Message:    d.Reason,
				ReasonCode: domain.ReasonRuleDecline,
			}
		}
	}

	if msg, exceeded := capacityExceeded(sized, out.PositionOptimization); exceeded {
		return domain.Decision{
			Action:     domain.ActionDecline,
			Type:       domain.DecisionTypeCapacity,
			Message:    msg,
			ReasonCode: domain.ReasonCapacityExceeded,
		}
	}

	if missing := a.missingRequired(in); len(missing) > 0 {
		return domain.Decision{
			Action:     domain.ActionReview,
			Type:       domain.DecisionTypeManual,
			Message:    "Required signal unavailable: " + strings.Join(missing, ", "),
			ReasonCode: domain.ReasonSignalMissing,
		}
	}

	return a.engine.Decide(score)
}

// capacityExceeded reports a sizing decline from either calculator.
// The offer calculator's reason wins when both decline.
func capacityExceeded(sized *offer.Result, opt *stacking.Result) (string, bool) {
	if sized != nil && sized.Status == offer.StatusDeclined {
		return sized.Explanation, true
	}
	if opt != nil && !opt.OptimalPosition.CanFund {
		return opt.OptimalPosition.Reason, true
	}
	return "", false
}

// missingRequired lists the offer-critical signals that are absent.
// They only matter when an amount is requested.
func (a *Assessor) missingRequired(in Input) []string {
	if in.Application.RequestedAmount <= 0 {
		return nil
	}
	var out []string
	for _, kind := range a.cfg.Signals.RequiredForOffer {
		if !hasSignal(in.Signals, kind) {
			out = append(out, string(kind))
		}
	}
	return out
}

func hasSignal(s domain.Signals, kind domain.SignalKind) bool {
	switch kind {
	case domain.SignalCredit:
		return s.Credit != nil
	case domain.SignalIdentity:
		return s.Identity != nil
	case domain.SignalStacking:
		return s.Stacking != nil
	case domain.SignalUCC:
		return s.UCC != nil
	}
	return true
}

// monthlyRevenue prefers statement true revenue over the stated figure.
func (a *Assessor) monthlyRevenue(in Input) float64 {
	if b := in.Signals.BankAnalysis; b != nil && b.MonthlyTrueRevenue > 0 {
		return b.MonthlyTrueRevenue
	}
	return in.Application.StatedMonthlyRevenue
}

func (a *Assessor) revenueSource(in Input) string {
	if b := in.Signals.BankAnalysis; b != nil && b.MonthlyTrueRevenue > 0 {
		return "true_revenue"
	}
	return "stated"
}

// position defaults to one past the existing positions.
func (a *Assessor) position(in Input) int {
	if in.Application.Position > 0 {
		return in.Application.Position
	}
	return len(in.Application.ExistingPositions) + 1
}

func (a *Assessor) offerInput(in Input, revenue float64, score int, res *rules.Result) offer.Input {
	existing := in.Application.ExistingDailyPayment()
	if len(in.Application.ExistingPositions) == 0 && in.MCA != nil {
		existing = in.MCA.TotalDailyPayment
	}

	credit := in.Application.CreditScore
	if in.Signals.Credit != nil {
		credit = in.Signals.Credit.CreditScore
	}

	oi := offer.Input{
		MonthlyTrueRevenue:   revenue,
		ExistingDailyPayment: existing,
		RequestedAmount:      in.Application.RequestedAmount,
		Position:             a.position(in),
		TermMonths:           in.Application.TermMonths,
		Industry:             in.industry(),
		CreditScore:          credit,
		RiskScore:            &score,
		VolatilityLevel:      in.VolatilityLevel,
	}
	if res != nil {
		oi.Limits = limitsOf(res.TermAdjustments)
	}
	return oi
}

// limitsOf folds rule term adjustments into offer limits: the tightest term
// and funding caps win, factor rate adjustments add up and amount
// percentages multiply.
func limitsOf(adjs []rules.TermAdjustment) *offer.Limits {
	if len(adjs) == 0 {
		return nil
	}
	l := &offer.Limits{}
	for _, adj := range adjs {
		if adj.MaxTermMonths != nil && (l.MaxTermMonths == nil || *adj.MaxTermMonths < *l.MaxTermMonths) {
			v := *adj.MaxTermMonths
			l.MaxTermMonths = &v
		}
		if adj.FactorRateAdjustment != nil {
			l.FactorRateAdjustment += *adj.FactorRateAdjustment
		}
		if adj.MaxFundingAmount != nil && (l.MaxFundingAmount == nil || *adj.MaxFundingAmount < *l.MaxFundingAmount) {
			v := *adj.MaxFundingAmount
			l.MaxFundingAmount = &v
		}
		if adj.MaxAmountPercentage != nil {
			v := *adj.MaxAmountPercentage
			if l.MaxAmountPercentage != nil {
				v *= *l.MaxAmountPercentage
			}
			l.MaxAmountPercentage = &v
		}
	}
	return l
}

// reviewLevel routes a REVIEW to an underwriter tier.
func reviewLevel(score int, res *rules.Result) string {
	high := 0
	if res != nil {
		for _, f := range res.Flags {
			if f.Severity == "high" {
				high++
			}
		}
	}
	switch {
	case score < 30 || high >= 2:
		return ReviewSenior
	case score < 50 || high >= 1:
		return ReviewExperienced
	}
	return ReviewStandard
}

func (a *Assessor) comprehensiveSummary(out *Assessment) string {
	var b strings.Builder
	b.WriteString("=== COMPREHENSIVE RISK ASSESSMENT ===\n\n")
	fmt.Fprintf(&b, "Overall Risk Score: %d/100 (%s risk)\n", out.OverallScore, out.RiskLevel)
	fmt.Fprintf(&b, "Decision: %s (%s)\n", out.Decision.Action, out.Decision.Type)
	fmt.Fprintf(&b, "Reason: %s\n\n", out.Decision.Message)

	if out.FraudAnalysis != nil {
		fmt.Fprintf(&b, "Fraud Score: %.0f/100 (%s risk)\n", out.FraudAnalysis.FraudScore, out.FraudAnalysis.RiskLevel)
	}
	if d, ok := out.ComponentDetails["bank_analysis"]; ok {
		fmt.Fprintf(&b, "Bank Analysis Score: %d/100\n", d.NormalizedScore)
	}
	if out.PositionOptimization != nil {
		fmt.Fprintf(&b, "Position Recommendation: %s\n", out.PositionOptimization.Recommendation.Decision)
	}

	if len(out.Flags) > 0 {
		fmt.Fprintf(&b, "\nKey Flags (%d total):\n", len(out.Flags))
		limit := a.cfg.Scoring.SummaryFlagLimit
		if limit <= 0 {
			limit = len(out.Flags)
		}
		for _, f := range out.Flags[:min(limit, len(out.Flags))] {
			fmt.Fprintf(&b, "- %s\n", f)
		}
	}

	if out.CustomRules != nil && len(out.CustomRules.MatchedRules) > 0 {
		b.WriteString("\nMatched Rules:\n")
		for _, r := range out.CustomRules.MatchedRules {
			fmt.Fprintf(&b, "- %s\n", r.Name)
		}
	}
	return b.String()
}
