package domain

import (
	"encoding/json"
	"time"
)

// CapacitySnapshot describes how much daily remittance a merchant can carry.
type CapacitySnapshot struct {
	MonthlyTrueRevenue       float64 `json:"monthly_true_revenue"`
	DailyTrueRevenue         float64 `json:"daily_true_revenue"`
	MaxWithholdPercent       float64 `json:"max_withhold_percent"`
	MaxDailyPayment          float64 `json:"max_daily_payment"`
	ExistingDailyPayment     float64 `json:"existing_daily_payment"`
	CurrentWithholdPercent   float64 `json:"current_withhold_percent"`
	RemainingDailyCapacity   float64 `json:"remaining_daily_capacity"`
	RemainingWithholdPercent float64 `json:"remaining_withhold_percent"`
	AtCapacity               bool    `json:"at_capacity"`
}

// Offer is a priced funding proposal.
type Offer struct {
	FundingAmount      float64           `json:"funding_amount"`
	FactorRate         float64           `json:"factor_rate"`
	PaybackAmount      float64           `json:"payback_amount"`
	TermMonths         int               `json:"term_months"`
	TermBusinessDays   int               `json:"term_business_days"`
	DailyPayment       float64           `json:"daily_payment"`
	WeeklyPayment      float64           `json:"weekly_payment"`
	MonthlyPayment     float64           `json:"monthly_payment"`
	HoldbackPercentage float64           `json:"holdback_percentage"`
	Position           int               `json:"position"`
	CostOfCapital      float64           `json:"cost_of_capital"`
	CostPercentage     float64           `json:"cost_percentage"`
	WithholdBreakdown  WithholdBreakdown `json:"withhold_breakdown"`
}

// WithholdBreakdown shows the daily remittance before and after the new position.
type WithholdBreakdown struct {
	ExistingDaily          float64 `json:"existing_daily"`
	ExistingPercent        float64 `json:"existing_percent"`
	NewDaily               float64 `json:"new_daily"`
	NewPercent             float64 `json:"new_percent"`
	TotalDaily             float64 `json:"total_daily"`
	TotalPercent           float64 `json:"total_percent"`
	RemainingCapacityAfter float64 `json:"remaining_capacity_after"`
	RemainingPercentAfter  float64 `json:"remaining_percent_after"`
}

// DecisionAction is the top-level underwriting outcome.
type DecisionAction string

const (
	ActionApprove DecisionAction = "APPROVE"
	ActionReview  DecisionAction = "REVIEW"
	ActionDecline DecisionAction = "DECLINE"
)

// Decision types.
const (
	DecisionTypeAuto     = "auto"
	DecisionTypeManual   = "manual"
	DecisionTypeSenior   = "senior"
	DecisionTypeRule     = "rule"
	DecisionTypeCapacity = "capacity"
)

// Decision reason codes.
const (
	ReasonBlocked          = "BLOCKED"
	ReasonFraudRisk        = "FRAUD_RISK"
	ReasonRuleDecline      = "RULE_DECLINE"
	ReasonCapacityExceeded = "CAPACITY_EXCEEDED"
	ReasonSignalMissing    = "SIGNAL_UNAVAILABLE"
)

// Decision is an underwriting action with its explanation.
type Decision struct {
	Action     DecisionAction `json:"action"`
	Type       string         `json:"type"`
	Message    string         `json:"message"`
	ReasonCode string         `json:"reason_code,omitempty"`
}

// RiskAssessment is the weighted scoring result. Rebuilt per evaluation.
type RiskAssessment struct {
	ComponentScores map[string]int     `json:"component_scores"`
	Weights         map[string]float64 `json:"weights"`
	OverallScore    int                `json:"overall_score"`
	RiskLevel       string             `json:"risk_level"`
	Decision        Decision           `json:"decision"`
	Flags           []string           `json:"flags"`
	CalculatedAt    time.Time          `json:"calculated_at"`
}

// Assessment is a persisted pipeline run.
type Assessment struct {
	ID            string          `json:"id"`
	TenantID      string          `json:"tenant_id"`
	ApplicationID string          `json:"application_id"`
	Action        DecisionAction  `json:"action"`
	Score         int             `json:"score"`
	CreatedAt     time.Time       `json:"created_at"`
	Result        json.RawMessage `json:"result"`
}

// Risk scoring components.
const (
	ComponentCredit   = "credit_score"
	ComponentBank     = "bank_analysis"
	ComponentIdentity = "identity_verification"
	ComponentStacking = "stacking_check"
	ComponentUCC      = "ucc_filings"
	ComponentIndustry = "industry_risk"
)
