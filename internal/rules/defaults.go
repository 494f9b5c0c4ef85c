package rules

import (
	"encoding/json"

	"github.com/opensource-finance/truerev/internal/domain"
)

func raw(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

func cond(field string, op domain.RuleOperator, value any) domain.RuleCondition {
	return domain.RuleCondition{Field: field, Operator: op, Value: raw(value)}
}

func stock(id, name string, c domain.RuleCondition, action domain.RuleAction, value any, severity string, priority int) domain.RiskRule {
	return domain.RiskRule{
		ID:          id,
		Name:        name,
		Conditions:  []domain.RuleCondition{c},
		Logic:       domain.LogicAnd,
		Action:      action,
		ActionValue: raw(value),
		Severity:    severity,
		Priority:    priority,
		Active:      true,
	}
}

// DefaultRules returns the stock rule set used when no rules are stored.
func DefaultRules() []domain.RiskRule {
	return []domain.RiskRule{
		stock("default_1", "Very Low Credit Score",
			cond("credit.credit_score", domain.OpLt, 500),
			domain.ActionAdjustScore, -30, "high", 100),
		stock("default_2", "Excellent Credit Score",
			cond("credit.credit_score", domain.OpGte, 750),
			domain.ActionAdjustScore, 15, "low", 90),
		stock("default_3", "High Stacking - 4+ Positions",
			cond("stacking.active_mcas", domain.OpGte, 4),
			domain.ActionSetDecision, "decline", "high", 200),
		stock("default_4", "Multiple Active MCAs",
			cond("stacking.active_mcas", domain.OpBetween, []int{2, 3}),
			domain.ActionAddFlag, "Multiple active MCA positions detected", "medium", 80),
		stock("default_5", "High NSF Frequency",
			cond("bank_analysis.nsf_count", domain.OpGte, 5),
			domain.ActionAdjustScore, -20, "high", 85),
		stock("default_6", "Severe Revenue Decline",
			cond("bank_analysis.revenue_trend_percent", domain.OpLt, -30),
			domain.ActionAddFlag, "Severe revenue decline detected (>30%)", "high", 90),
		stock("default_7", "High Risk Industry",
			cond("industry", domain.OpIn, []string{"gambling", "cannabis", "adult entertainment", "cryptocurrency"}),
			domain.ActionRequireVerification, "enhanced_due_diligence", "high", 95),
		stock("default_8", "High Fraud Risk",
			cond("fraud_analysis.fraud_score", domain.OpLt, 50),
			domain.ActionSetDecision, "decline", "high", 250),
		stock("default_9", "New Business - Less than 6 months",
			cond("time_in_business_months", domain.OpLt, 6),
			domain.ActionAdjustScore, -15, "medium", 70),
		stock("default_10", "Very Low Monthly Revenue",
			cond("monthly_revenue", domain.OpLt, 10000),
			domain.ActionAdjustTerms, map[string]any{"max_term_months": 6, "factor_rate_adjustment": 0.05}, "medium", 60),
	}
}

// Field is a context path rule authors can reference.
type Field struct {
	Path  string `json:"path"`
	Label string `json:"label"`
}

// FieldGroup groups fields for rule builders.
type FieldGroup struct {
	Group  string  `json:"group"`
	Fields []Field `json:"fields"`
}

// AvailableFields lists the context paths populated by the underwriting pipeline.
func AvailableFields() []FieldGroup {
	return []FieldGroup{
		{Group: "Application Data", Fields: []Field{
			{"monthly_revenue", "Monthly Revenue"},
			{"stated_monthly_revenue", "Stated Monthly Revenue"},
			{"requested_amount", "Requested Funding Amount"},
			{"time_in_business_months", "Time in Business (months)"},
			{"industry", "Industry"},
			{"position", "Requested Position"},
			{"risk_score", "Risk Score"},
		}},
		{Group: "Credit Data", Fields: []Field{
			{"credit.credit_score", "Credit Score"},
			{"credit.bankruptcies", "Bankruptcy Count"},
			{"credit.delinquencies", "Delinquency Count"},
		}},
		{Group: "Bank Analysis", Fields: []Field{
			{"bank_analysis.score", "Bank Analysis Score"},
			{"bank_analysis.monthly_true_revenue", "Average Monthly True Revenue"},
			{"bank_analysis.revenue_consistency", "Revenue Consistency"},
			{"bank_analysis.avg_daily_balance", "Average Daily Balance"},
			{"bank_analysis.nsf_count", "NSF Count"},
			{"bank_analysis.nsf_frequency", "NSF Events per Month"},
			{"bank_analysis.negative_days", "Negative Balance Days"},
			{"bank_analysis.revenue_trend_percent", "Revenue Trend %"},
			{"mca.active_positions", "Detected MCA Funders"},
			{"mca.total_daily_payment", "Detected MCA Daily Payments"},
		}},
		{Group: "Stacking Data", Fields: []Field{
			{"stacking.active_mcas", "Active MCA Count"},
			{"stacking.total_exposure", "Total MCA Exposure"},
			{"stacking.has_defaults", "Has MCA Defaults"},
		}},
		{Group: "Identity Verification", Fields: []Field{
			{"identity.score", "Identity Verification Score"},
			{"identity.status", "Identity Status"},
		}},
		{Group: "Fraud Analysis", Fields: []Field{
			{"fraud_analysis.fraud_score", "Fraud Score"},
			{"fraud_analysis.risk_level", "Fraud Risk Level"},
			{"fraud_analysis.flag_count.high", "High Severity Fraud Flags"},
		}},
		{Group: "UCC Data", Fields: []Field{
			{"ucc.active_filings", "Active UCC Filings"},
			{"ucc.has_blanket_lien", "Has Blanket Lien"},
		}},
	}
}
