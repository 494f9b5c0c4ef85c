package offer

import (
	"fmt"
	"strings"

	"github.com/opensource-finance/truerev/internal/domain"
	"github.com/opensource-finance/truerev/internal/money"
)

// MathBreakdown shows every step of the sizing arithmetic for audit.
type MathBreakdown struct {
	Revenue    RevenueStep    `json:"step_1_revenue"`
	Capacity   CapacityStep   `json:"step_2_capacity"`
	MaxFunding MaxFundingStep `json:"step_3_max_funding"`
	Approved   ApprovedStep   `json:"step_4_approved"`
	Final      FinalStep      `json:"step_5_final"`
}

type RevenueStep struct {
	MonthlyTrueRevenue   float64 `json:"monthly_true_revenue"`
	BusinessDaysPerMonth float64 `json:"business_days_per_month"`
	DailyTrueRevenue     float64 `json:"daily_true_revenue"`
	Formula              string  `json:"formula"`
}

type CapacityStep struct {
	MaxWithholdPercent     float64 `json:"max_withhold_percent"`
	MaxDailyPayment        float64 `json:"max_daily_payment"`
	ExistingDailyPayment   float64 `json:"existing_daily_payment"`
	RemainingDailyCapacity float64 `json:"remaining_daily_capacity"`
	Formula                string  `json:"formula"`
}

type MaxFundingStep struct {
	RemainingDailyCapacity float64 `json:"remaining_daily_capacity"`
	TermBusinessDays       int     `json:"term_business_days"`
	FactorRate             float64 `json:"factor_rate"`
	MaxPayback             float64 `json:"max_payback"`
	MaxFunding             float64 `json:"max_funding"`
	Formula                string  `json:"formula"`
}

type ApprovedStep struct {
	RequestedAmount    float64 `json:"requested_amount"`
	MaxByCapacity      float64 `json:"max_by_capacity"`
	ApprovalPercentage float64 `json:"approval_percentage"`
	MaxByApproval      float64 `json:"max_by_approval"`
	ApprovedAmount     float64 `json:"approved_amount"`
	Formula            string  `json:"formula"`
}

type FinalStep struct {
	ApprovedAmount   float64 `json:"approved_amount"`
	FactorRate       float64 `json:"factor_rate"`
	PaybackAmount    float64 `json:"payback_amount"`
	TermBusinessDays int     `json:"term_business_days"`
	DailyPayment     float64 `json:"daily_payment"`
	Formula          string  `json:"formula"`
}

func breakdown(in Input, snap domain.CapacitySnapshot, businessDays, termDays, rate, maxFunding, approval, maxByApproval, approved, payback, daily float64) *MathBreakdown {
	days := int(money.Round(termDays, 0))
	return &MathBreakdown{
		Revenue: RevenueStep{
			MonthlyTrueRevenue:   money.Round2(in.MonthlyTrueRevenue),
			BusinessDaysPerMonth: businessDays,
			DailyTrueRevenue:     money.Round2(snap.DailyTrueRevenue),
			Formula:              "Monthly Revenue ÷ Business Days",
		},
		Capacity: CapacityStep{
			MaxWithholdPercent:     money.Round2(snap.MaxWithholdPercent),
			MaxDailyPayment:        money.Round2(snap.MaxDailyPayment),
			ExistingDailyPayment:   money.Round2(in.ExistingDailyPayment),
			RemainingDailyCapacity: money.Round2(snap.RemainingDailyCapacity),
			Formula:                "Daily Revenue × Max Withhold % - Existing Payments",
		},
		MaxFunding: MaxFundingStep{
			RemainingDailyCapacity: money.Round2(snap.RemainingDailyCapacity),
			TermBusinessDays:       days,
			FactorRate:             money.Round4(rate),
			MaxPayback:             money.Round2(snap.RemainingDailyCapacity * termDays),
			MaxFunding:             money.Round2(maxFunding),
			Formula:                "Remaining Capacity × Term Days ÷ Factor Rate",
		},
		Approved: ApprovedStep{
			RequestedAmount:    money.Round2(in.RequestedAmount),
			MaxByCapacity:      money.Round2(maxFunding),
			ApprovalPercentage: money.Round2(approval * 100),
			MaxByApproval:      money.Round2(maxByApproval),
			ApprovedAmount:     money.Round2(approved),
			Formula:            "MIN(Capacity Max, Request × Approval %)",
		},
		Final: FinalStep{
			ApprovedAmount:   money.Round2(approved),
			FactorRate:       money.Round4(rate),
			PaybackAmount:    money.Round2(payback),
			TermBusinessDays: days,
			DailyPayment:     money.Round2(daily),
			Formula:          "Funded × Factor Rate ÷ Term Days",
		},
	}
}

// explain renders the offer in one paragraph using the rounded output values.
func explain(o *domain.Offer, status string, requested, maxPercent float64) string {
	lines := make([]string, 0, 4)
	if status == StatusApproved {
		lines = append(lines, fmt.Sprintf("APPROVED: $%s at %.2f factor for %d months.",
			money.Format2(o.FundingAmount), o.FactorRate, o.TermMonths))
	} else {
		lines = append(lines, fmt.Sprintf("APPROVED (REDUCED): $%s of $%s requested (%.0f%%).",
			money.Format2(o.FundingAmount), money.Format2(requested), o.FundingAmount/requested*100))
	}

	w := o.WithholdBreakdown
	lines = append(lines,
		fmt.Sprintf("Daily payment: $%s (%.1f%% of daily revenue).", money.Format2(o.DailyPayment), w.NewPercent),
		fmt.Sprintf("Total withhold after this position: %.1f%% of %.1f%% maximum.", w.TotalPercent, maxPercent),
		fmt.Sprintf("Remaining capacity: $%s/day (%.1f%%).", money.Format2(w.RemainingCapacityAfter), w.RemainingPercentAfter),
	)
	return strings.Join(lines, " ")
}
