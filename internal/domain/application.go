package domain

import "fmt"

// Application is the merchant application record supplied by the caller.
type Application struct {
	ID                   string             `json:"id"`
	BusinessName         string             `json:"business_name,omitempty"`
	Industry             string             `json:"industry,omitempty"`
	CreditScore          int                `json:"credit_score,omitempty"`
	StatedMonthlyRevenue float64            `json:"stated_monthly_revenue,omitempty"`
	RequestedAmount      float64            `json:"requested_amount,omitempty"`
	Position             int                `json:"position,omitempty"`
	TermMonths           int                `json:"term_months,omitempty"`
	TimeInBusinessMonths *int               `json:"time_in_business_months,omitempty"`
	ExistingPositions    []ExistingPosition `json:"existing_positions,omitempty"`
	OpeningBalance       *float64           `json:"opening_balance,omitempty"`
}

// ExistingDailyPayment sums the daily remittance of all existing positions.
func (a Application) ExistingDailyPayment() float64 {
	total := 0.0
	for _, p := range a.ExistingPositions {
		total += p.DailyPayment
	}
	return total
}

// ValidatePositions rejects positions with negative remittance or balance.
func ValidatePositions(positions []ExistingPosition) error {
	for i, p := range positions {
		if p.DailyPayment < 0 {
			return fmt.Errorf("existing_positions[%d]: daily_payment must not be negative", i)
		}
		if p.RemainingBalance < 0 {
			return fmt.Errorf("existing_positions[%d]: remaining_balance must not be negative", i)
		}
	}
	return nil
}

// ExistingPosition is an MCA the merchant is already remitting on.
type ExistingPosition struct {
	Funder           string  `json:"funder"`
	DailyPayment     float64 `json:"daily_payment"`
	RemainingBalance float64 `json:"remaining_balance"`
	FactorRate       float64 `json:"factor_rate,omitempty"`
	StartDate        string  `json:"start_date,omitempty"`
}

// SignalKind names an external collaborator signal.
type SignalKind string

const (
	SignalCredit   SignalKind = "credit"
	SignalIdentity SignalKind = "identity"
	SignalStacking SignalKind = "stacking"
	SignalUCC      SignalKind = "ucc"
)

// CreditSignal is the normalized credit bureau result.
type CreditSignal struct {
	CreditScore   int      `json:"credit_score"`
	Bankruptcies  int      `json:"bankruptcies"`
	Delinquencies int      `json:"delinquencies"`
	Flags         []string `json:"flags,omitempty"`
}

// IdentitySignal is the normalized identity verification result.
type IdentitySignal struct {
	Score  *float64 `json:"score,omitempty"`
	Status string   `json:"status,omitempty"`
	Flags  []string `json:"flags,omitempty"`
}

// StackingSignal is the normalized stacking registry result.
type StackingSignal struct {
	ActiveMCAs    int      `json:"active_mcas"`
	RiskScore     *float64 `json:"risk_score,omitempty"`
	TotalExposure float64  `json:"total_exposure"`
	HasDefaults   bool     `json:"has_defaults"`
	Flags         []string `json:"flags,omitempty"`
}

// UCCSignal is the normalized UCC filing search result.
type UCCSignal struct {
	ActiveFilings  int      `json:"active_filings"`
	RiskScore      *float64 `json:"risk_score,omitempty"`
	HasBlanketLien bool     `json:"has_blanket_lien"`
	Flags          []string `json:"flags,omitempty"`
}

// BankAnalysisSignal summarizes the statement analysis for scoring and stacking.
type BankAnalysisSignal struct {
	Score               int      `json:"score"`
	RiskLevel           string   `json:"risk_level"`
	RevenueConsistency  *float64 `json:"revenue_consistency,omitempty"`
	AverageDailyBalance *float64 `json:"avg_daily_balance,omitempty"`
	NSFCount            int      `json:"nsf_count"`
	NSFFrequency        float64  `json:"nsf_frequency"`
	NSFRisk             string   `json:"nsf_risk"`
	NegativeDays        int      `json:"negative_days"`
	MonthlyTrueRevenue  float64  `json:"monthly_true_revenue"`
	RevenueTrendPercent float64  `json:"revenue_trend_percent"`
	MonthsAnalyzed      int      `json:"months_analyzed"`
	Flags               []string `json:"flags,omitempty"`
}

// Signals is the sparse set of component inputs for risk scoring.
// A nil field means the signal is absent and is excluded from the weighted average.
type Signals struct {
	Credit       *CreditSignal       `json:"credit,omitempty"`
	BankAnalysis *BankAnalysisSignal `json:"bank_analysis,omitempty"`
	Identity     *IdentitySignal     `json:"identity,omitempty"`
	Stacking     *StackingSignal     `json:"stacking,omitempty"`
	UCC          *UCCSignal          `json:"ucc,omitempty"`
	Industry     string              `json:"industry,omitempty"`
}
