package scoring

import (
	"strings"

	"github.com/opensource-finance/truerev/internal/domain"
	"github.com/opensource-finance/truerev/internal/fraud"
	"github.com/opensource-finance/truerev/internal/rules"
)

// MCAActivity is the MCA remittance detected on the statements.
type MCAActivity struct {
	ActivePositions   int     `json:"active_positions"`
	TotalDailyPayment float64 `json:"total_daily_payment"`
}

// facts is the document custom rules are evaluated against.
// Paths must stay in step with rules.AvailableFields.
type facts struct {
	MonthlyRevenue       float64                    `json:"monthly_revenue"`
	StatedMonthlyRevenue float64                    `json:"stated_monthly_revenue"`
	RequestedAmount      float64                    `json:"requested_amount"`
	TimeInBusinessMonths *int                       `json:"time_in_business_months"`
	Industry             string                     `json:"industry"`
	Position             int                        `json:"position"`
	RiskScore            int                        `json:"risk_score"`
	Credit               *domain.CreditSignal       `json:"credit"`
	BankAnalysis         *domain.BankAnalysisSignal `json:"bank_analysis"`
	Identity             *domain.IdentitySignal     `json:"identity"`
	Stacking             *domain.StackingSignal     `json:"stacking"`
	UCC                  *domain.UCCSignal          `json:"ucc"`
	FraudAnalysis        *fraud.Analysis            `json:"fraud_analysis"`
	MCA                  *MCAActivity               `json:"mca"`
}

func (in Input) facts(revenue float64, position, score int) facts {
	return facts{
		MonthlyRevenue:       revenue,
		StatedMonthlyRevenue: in.Application.StatedMonthlyRevenue,
		RequestedAmount:      in.Application.RequestedAmount,
		TimeInBusinessMonths: in.Application.TimeInBusinessMonths,
		Industry:             strings.ToLower(in.industry()),
		Position:             position,
		RiskScore:            score,
		Credit:               in.Signals.Credit,
		BankAnalysis:         in.Signals.BankAnalysis,
		Identity:             in.Signals.Identity,
		Stacking:             in.Signals.Stacking,
		UCC:                  in.Signals.UCC,
		FraudAnalysis:        in.Fraud,
		MCA:                  in.MCA,
	}
}

// RuleContext builds the rule context for an input at a given score.
// It is what Assess evaluates custom rules against.
func (a *Assessor) RuleContext(in Input, score int) (rules.Context, error) {
	return rules.ContextOf(in.facts(a.monthlyRevenue(in), a.position(in), score))
}
