package scoring

import (
	"context"
	"encoding/json"
	"slices"
	"strings"
	"testing"

	"github.com/opensource-finance/truerev/internal/domain"
	"github.com/opensource-finance/truerev/internal/fraud"
	"github.com/opensource-finance/truerev/internal/offer"
	"github.com/opensource-finance/truerev/internal/rules"
)

func raw(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

func testRule(id string, priority int, action domain.RuleAction, value any, field string, op domain.RuleOperator, operand any) domain.RiskRule {
	return domain.RiskRule{
		ID:          id,
		Name:        id,
		Conditions:  []domain.RuleCondition{{Field: field, Operator: op, Value: raw(operand)}},
		Logic:       domain.LogicAnd,
		Action:      action,
		ActionValue: raw(value),
		Priority:    priority,
		Active:      true,
	}
}

func newAssessor(t *testing.T, rr ...domain.RiskRule) *Assessor {
	t.Helper()
	cfg := domain.DefaultUnderwritingConfig()
	if len(rr) == 0 {
		return NewAssessor(cfg, nil)
	}
	engine, err := rules.NewEngine()
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	if err := engine.ReloadRules(rr); err != nil {
		t.Fatalf("ReloadRules: %v", err)
	}
	return NewAssessor(cfg, engine)
}

// strongInput scores 94: credit 100, bank 85, stacking 100, industry 90.
func strongInput() Input {
	return Input{
		TenantID: "tenant-001",
		Application: domain.Application{
			ID:                   "app-001",
			CreditScore:          760,
			StatedMonthlyRevenue: 100000,
			RequestedAmount:      40000,
			TermMonths:           6,
		},
		Signals: domain.Signals{
			Credit: &domain.CreditSignal{CreditScore: 760},
			BankAnalysis: &domain.BankAnalysisSignal{
				Score:               80,
				RevenueConsistency:  floatPtr(0.9),
				AverageDailyBalance: floatPtr(20000),
				MonthlyTrueRevenue:  100000,
			},
			Stacking: &domain.StackingSignal{},
			Industry: "Healthcare",
		},
	}
}

func TestAssessApprove(t *testing.T) {
	a := newAssessor(t)
	out := a.Assess(context.Background(), strongInput())

	if out.ID == "" {
		t.Error("expected an assessment ID")
	}
	if out.BaseScore != 94 || out.OverallScore != 94 {
		t.Errorf("scores = %d/%d, want 94/94", out.BaseScore, out.OverallScore)
	}
	if out.Decision.Action != domain.ActionApprove {
		t.Fatalf("decision = %+v, want APPROVE", out.Decision)
	}
	if out.OfferTerms == nil || out.OfferTerms.Offer == nil {
		t.Fatal("expected offer terms")
	}
	if out.OfferTerms.Status != offer.StatusApproved || out.OfferTerms.Offer.FundingAmount != 40000 {
		t.Errorf("offer = %s %.2f, want approved 40000", out.OfferTerms.Status, out.OfferTerms.Offer.FundingAmount)
	}
	if out.PositionOptimization == nil {
		t.Error("expected position optimization")
	}
	if out.Metadata.RevenueSource != "true_revenue" || out.Metadata.EngineVersion != EngineVersion {
		t.Errorf("metadata = %+v", out.Metadata)
	}
	if out.Flags == nil || len(out.Flags) != 0 {
		t.Errorf("Flags = %v, want empty", out.Flags)
	}
	if !strings.Contains(out.Summary, "Decision: APPROVE (auto)") {
		t.Errorf("summary = %q", out.Summary)
	}
	if out.ReviewLevel != "" {
		t.Errorf("ReviewLevel = %q, want empty for approvals", out.ReviewLevel)
	}
}

func TestAssessFraud(t *testing.T) {
	a := newAssessor(t)

	t.Run("HighRiskDeclines", func(t *testing.T) {
		in := strongInput()
		in.Fraud = &fraud.Analysis{FraudScore: 30, RiskLevel: fraud.LevelHigh}
		out := a.Assess(context.Background(), in)

		if out.OverallScore != 73 || out.ScoreAdjustments != -21 {
			t.Errorf("score = %d (adj %d), want 73 (-21)", out.OverallScore, out.ScoreAdjustments)
		}
		if out.Decision.ReasonCode != domain.ReasonFraudRisk || out.Decision.Action != domain.ActionDecline {
			t.Errorf("decision = %+v", out.Decision)
		}
		if out.OfferTerms != nil {
			t.Error("declined assessment must not carry offer terms")
		}
		if !slices.Contains(out.Flags, "[fraud] Fraud risk detected - score penalty applied") {
			t.Errorf("Flags = %v", out.Flags)
		}
	})

	t.Run("PenaltyOnlyBelowThreshold", func(t *testing.T) {
		in := strongInput()
		in.Fraud = &fraud.Analysis{FraudScore: 70, RiskLevel: fraud.LevelMedium}
		out := a.Assess(context.Background(), in)
		if out.OverallScore != 94 {
			t.Errorf("OverallScore = %d, want 94", out.OverallScore)
		}
		if out.Decision.Action != domain.ActionApprove {
			t.Errorf("decision = %+v", out.Decision)
		}
	})
}

func TestAssessRules(t *testing.T) {
	t.Run("BlockWins", func(t *testing.T) {
		a := newAssessor(t,
			testRule("block", 10, domain.ActionBlock, "Restricted industry", "industry", domain.OpEq, "healthcare"),
			testRule("boost", 5, domain.ActionAdjustScore, 5, "credit.credit_score", domain.OpGte, 700),
		)
		out := a.Assess(context.Background(), strongInput())

		if !out.Blocked || out.Decision.ReasonCode != domain.ReasonBlocked {
			t.Fatalf("decision = %+v blocked=%v", out.Decision, out.Blocked)
		}
		if out.Decision.Message != "Application blocked: Restricted industry" {
			t.Errorf("Message = %q", out.Decision.Message)
		}
		if out.CustomRules == nil || len(out.CustomRules.MatchedRules) != 2 {
			t.Errorf("expected both rules recorded, got %+v", out.CustomRules)
		}
		if out.OverallScore != 99 {
			t.Errorf("OverallScore = %d, want 99", out.OverallScore)
		}
	})

	t.Run("RuleDecline", func(t *testing.T) {
		a := newAssessor(t,
			testRule("Credit policy", 100, domain.ActionSetDecision, "decline", "credit.credit_score", domain.OpLt, 800),
		)
		out := a.Assess(context.Background(), strongInput())
		if out.Decision.ReasonCode != domain.ReasonRuleDecline || out.Decision.Type != domain.DecisionTypeRule {
			t.Errorf("decision = %+v", out.Decision)
		}
		if out.Decision.Message != "Credit policy" {
			t.Errorf("Message = %q", out.Decision.Message)
		}
	})

	t.Run("AdjustmentsAndTerms", func(t *testing.T) {
		a := newAssessor(t,
			testRule("penalty", 50, domain.ActionAdjustScore, -10, "monthly_revenue", domain.OpGte, 1),
			testRule("short term", 40, domain.ActionAdjustTerms, map[string]any{"max_term_months": 3}, "monthly_revenue", domain.OpGte, 1),
			testRule("flag", 30, domain.ActionAddFlag, "Checked by policy", "industry", domain.OpIsNotNull, nil),
			testRule("kyc", 20, domain.ActionRequireVerification, "bank_verification", "requested_amount", domain.OpGt, 0),
		)
		out := a.Assess(context.Background(), strongInput())

		if out.OverallScore != 84 || out.ScoreAdjustments != -10 {
			t.Errorf("score = %d (adj %d), want 84 (-10)", out.OverallScore, out.ScoreAdjustments)
		}
		if out.Decision.Action != domain.ActionApprove {
			t.Fatalf("decision = %+v", out.Decision)
		}
		if out.OfferTerms == nil || out.OfferTerms.Offer == nil || out.OfferTerms.Offer.TermMonths != 3 {
			t.Errorf("offer terms = %+v, want term 3", out.OfferTerms)
		}
		if !slices.Contains(out.Flags, "[rule] Checked by policy") {
			t.Errorf("Flags = %v", out.Flags)
		}
		if len(out.RequiredVerifications) != 1 || out.RequiredVerifications[0].Type != "bank_verification" {
			t.Errorf("RequiredVerifications = %+v", out.RequiredVerifications)
		}
		if out.Metadata.RulesEvaluated != 4 || out.Metadata.RulesMatched != 4 {
			t.Errorf("metadata = %+v", out.Metadata)
		}
	})
}

func TestAssessCapacityExceeded(t *testing.T) {
	a := newAssessor(t)
	in := strongInput()
	in.Application.ExistingPositions = []domain.ExistingPosition{
		{Funder: "Alpha", DailyPayment: 1000, RemainingBalance: 30000},
	}
	out := a.Assess(context.Background(), in)

	if out.Decision.ReasonCode != domain.ReasonCapacityExceeded || out.Decision.Type != domain.DecisionTypeCapacity {
		t.Fatalf("decision = %+v", out.Decision)
	}
	if !strings.HasPrefix(out.Decision.Message, "Merchant is at maximum withhold capacity") {
		t.Errorf("Message = %q", out.Decision.Message)
	}
	if out.OfferTerms != nil {
		t.Error("capacity decline must not carry offer terms")
	}
}

func TestAssessMissingRequiredSignal(t *testing.T) {
	a := newAssessor(t)
	in := strongInput()
	in.Signals.Stacking = nil
	in.Missing = []domain.SignalKind{domain.SignalStacking}
	out := a.Assess(context.Background(), in)

	// credit 100, bank 85, industry 90 over weight 0.60
	if out.OverallScore != 92 {
		t.Errorf("OverallScore = %d, want 92", out.OverallScore)
	}
	if out.Decision.Action != domain.ActionReview || out.Decision.ReasonCode != domain.ReasonSignalMissing {
		t.Fatalf("decision = %+v", out.Decision)
	}
	if out.OfferTerms == nil || out.OfferTerms.Status != offer.StatusNeedsReview {
		t.Errorf("offer terms = %+v, want needs_review", out.OfferTerms)
	}
	if out.ReviewLevel != ReviewStandard {
		t.Errorf("ReviewLevel = %q, want standard", out.ReviewLevel)
	}

	t.Run("NotNeededWithoutRequest", func(t *testing.T) {
		in.Application.RequestedAmount = 0
		out := a.Assess(context.Background(), in)
		if out.Decision.Action != domain.ActionApprove {
			t.Errorf("decision = %+v, want APPROVE", out.Decision)
		}
		if out.OfferTerms != nil || out.PositionOptimization != nil {
			t.Error("no amount requested, no sizing expected")
		}
	})
}

func TestAutoFlags(t *testing.T) {
	a := newAssessor(t)
	out := a.Assess(context.Background(), Input{
		Application: domain.Application{
			CreditScore:          450,
			StatedMonthlyRevenue: 5000,
			TimeInBusinessMonths: intPtr(3),
		},
		Signals: domain.Signals{
			BankAnalysis: &domain.BankAnalysisSignal{NSFCount: 6, RevenueTrendPercent: -25},
		},
		MCA: &MCAActivity{ActivePositions: 3},
	})

	for _, want := range []string{
		"[auto] Very low credit score",
		"[auto] Multiple active MCA positions",
		"[auto] Business less than 6 months old",
		"[auto] Monthly revenue below $10,000",
		"[auto] High NSF/overdraft frequency",
		"[auto] Significant revenue decline",
	} {
		if !slices.Contains(out.Flags, want) {
			t.Errorf("missing flag %q in %v", want, out.Flags)
		}
	}
	if out.Metadata.RevenueSource != "stated" {
		t.Errorf("RevenueSource = %q, want stated", out.Metadata.RevenueSource)
	}
}

func TestRuleContext(t *testing.T) {
	a := newAssessor(t)
	in := strongInput()
	in.Fraud = &fraud.Analysis{FraudScore: 82, FlagCount: fraud.FlagCount{High: 1}}
	in.MCA = &MCAActivity{ActivePositions: 2, TotalDailyPayment: 310}

	ctx, err := a.RuleContext(in, 70)
	if err != nil {
		t.Fatalf("RuleContext: %v", err)
	}

	if s, _ := ctx.Lookup("industry").Str(); s != "healthcare" {
		t.Errorf("industry = %q, want healthcare", s)
	}
	checks := map[string]float64{
		"risk_score":                        70,
		"monthly_revenue":                   100000,
		"position":                          1,
		"credit.credit_score":               760,
		"fraud_analysis.fraud_score":        82,
		"fraud_analysis.flag_count.high":    1,
		"mca.active_positions":              2,
		"bank_analysis.revenue_consistency": 0.9,
	}
	for path, want := range checks {
		got, ok := ctx.Lookup(path).Numeric()
		if !ok || got != want {
			t.Errorf("%s = %v (numeric %v), want %v", path, got, ok, want)
		}
	}
	if !ctx.Lookup("time_in_business_months").IsNull() {
		t.Error("time_in_business_months should be null when unknown")
	}
	if !ctx.Lookup("ucc.active_filings").IsNull() {
		t.Error("absent ucc signal should resolve to null")
	}
}

func TestLimitsOf(t *testing.T) {
	if limitsOf(nil) != nil {
		t.Error("no adjustments should give nil limits")
	}

	nine, four := 9, 4
	rate1, rate2 := 0.05, 0.02
	cap1, cap2 := 30000.0, 20000.0
	l := limitsOf([]rules.TermAdjustment{
		{MaxTermMonths: &nine, FactorRateAdjustment: &rate1, MaxFundingAmount: &cap1},
		{MaxTermMonths: &four, FactorRateAdjustment: &rate2, MaxFundingAmount: &cap2},
	})
	if *l.MaxTermMonths != 4 {
		t.Errorf("MaxTermMonths = %d, want 4", *l.MaxTermMonths)
	}
	if l.FactorRateAdjustment < 0.0699 || l.FactorRateAdjustment > 0.0701 {
		t.Errorf("FactorRateAdjustment = %v, want 0.07", l.FactorRateAdjustment)
	}
	if *l.MaxFundingAmount != 20000 {
		t.Errorf("MaxFundingAmount = %v, want 20000", *l.MaxFundingAmount)
	}
	if l.MaxAmountPercentage != nil {
		t.Errorf("MaxAmountPercentage = %v, want nil", *l.MaxAmountPercentage)
	}

	half, most := 0.5, 0.8
	l = limitsOf([]rules.TermAdjustment{{MaxAmountPercentage: &half}, {MaxAmountPercentage: &most}})
	if l.MaxAmountPercentage == nil || *l.MaxAmountPercentage != 0.4 {
		t.Errorf("MaxAmountPercentage = %v, want 0.4", l.MaxAmountPercentage)
	}
}

func TestReviewLevel(t *testing.T) {
	high := &rules.Result{Flags: []rules.Flag{{Severity: "high"}}}
	twoHigh := &rules.Result{Flags: []rules.Flag{{Severity: "high"}, {Severity: "high"}}}

	tests := []struct {
		name  string
		score int
		res   *rules.Result
		want  string
	}{
		{"LowScore", 25, nil, ReviewSenior},
		{"TwoHighFlags", 70, twoHigh, ReviewSenior},
		{"MidScore", 45, nil, ReviewExperienced},
		{"OneHighFlag", 70, high, ReviewExperienced},
		{"Standard", 70, nil, ReviewStandard},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := reviewLevel(tt.score, tt.res); got != tt.want {
				t.Errorf("reviewLevel = %s, want %s", got, tt.want)
			}
		})
	}
}
