package scoring

import (
	"fmt"

	"github.com/opensource-finance/truerev/internal/domain"
	"github.com/opensource-finance/truerev/internal/money"
)

// autoFlags raises the standing assessment flags.
func (a *Assessor) autoFlags(in Input) []string {
	c := a.cfg.Scoring.AutoFlags
	var flags []string
	add := func(msg string) { flags = append(flags, "[auto] "+msg) }

	credit := in.Application.CreditScore
	if in.Signals.Credit != nil {
		credit = in.Signals.Credit.CreditScore
	}
	if credit > 0 && credit < c.VeryLowCredit {
		add("Very low credit score")
	}

	active := len(in.Application.ExistingPositions)
	if in.Signals.Stacking != nil {
		active = max(active, in.Signals.Stacking.ActiveMCAs)
	}
	if in.MCA != nil {
		active = max(active, in.MCA.ActivePositions)
	}
	if active >= c.HighStackingMCAs {
		add("Multiple active MCA positions")
	}

	if t := in.Application.TimeInBusinessMonths; t != nil && *t < c.NewBusinessMonths {
		add(fmt.Sprintf("Business less than %d months old", c.NewBusinessMonths))
	}

	if rev := a.monthlyRevenue(in); rev > 0 && rev < c.LowMonthlyRevenue {
		add(fmt.Sprintf("Monthly revenue below $%s", money.Format(c.LowMonthlyRevenue)))
	}

	if b := in.Signals.BankAnalysis; b != nil {
		if b.NSFCount > c.HighNSFCount {
			add("High NSF/overdraft frequency")
		}
		if b.RevenueTrendPercent < c.RevenueDeclinePercent {
			add("Significant revenue decline")
		}
	}
	return flags
}

// Quick check decisions.
const (
	QuickContinue = "CONTINUE"
	QuickDecline  = "DECLINE"
)

// QuickInput is the minimal data for a pre-screen. Nil fields are skipped.
type QuickInput struct {
	CreditScore          *int     `json:"credit_score,omitempty"`
	ActiveMCAs           *int     `json:"active_mcas,omitempty"`
	MonthlyRevenue       *float64 `json:"monthly_revenue,omitempty"`
	TimeInBusinessMonths *int     `json:"time_in_business_months,omitempty"`
}

// QuickResult is the outcome of a pre-screen.
type QuickResult struct {
	Score     int      `json:"score"`
	RiskLevel string   `json:"risk_level,omitempty"`
	Decision  string   `json:"decision"`
	Reason    string   `json:"reason,omitempty"`
	Flags     []string `json:"flags"`
	Message   string   `json:"message,omitempty"`
}

// QuickCheck screens an application before the full analysis runs.
func (e *Engine) QuickCheck(in QuickInput) QuickResult {
	c := e.cfg.QuickCheck
	score := c.BaseScore
	flags := []string{}

	if in.CreditScore != nil {
		switch {
		case *in.CreditScore < c.VeryLowCredit:
			score -= c.VeryLowPenalty
			flags = append(flags, "Very low credit score")
		case *in.CreditScore >= c.GoodCredit:
			score += c.GoodCreditBonus
		}
	}

	if in.ActiveMCAs != nil {
		if *in.ActiveMCAs >= c.MaxActiveMCAs {
			return QuickResult{
				Score:    0,
				Decision: QuickDecline,
				Reason:   "Too many active MCA positions",
				Flags:    []string{"Maximum MCA positions exceeded"},
			}
		}
		score -= *in.ActiveMCAs * c.PerMCAPenalty
	}

	if in.MonthlyRevenue != nil && *in.MonthlyRevenue < c.LowRevenue {
		score -= c.LowRevenuePenalty
		flags = append(flags, "Low monthly revenue")
	}

	if in.TimeInBusinessMonths != nil && *in.TimeInBusinessMonths < c.NewBusinessMonths {
		score -= c.NewBusinessPenalty
		flags = append(flags, fmt.Sprintf("Less than %d months in business", c.NewBusinessMonths))
	}

	score = money.ClampInt(score, 0, 100)
	out := QuickResult{Score: score, RiskLevel: RiskLevel(score), Flags: flags}
	if score >= e.cfg.Thresholds.AutoDecline {
		out.Decision = QuickContinue
		out.Message = "Preliminary check passed - proceed with full analysis"
	} else {
		out.Decision = QuickDecline
		out.Message = "Application does not meet minimum requirements"
	}
	return out
}

// LegacyTerms is the flat score-tier estimate.
type LegacyTerms struct {
	ApprovedAmount     float64 `json:"approved_amount"`
	FactorRate         float64 `json:"factor_rate"`
	PaybackAmount      float64 `json:"payback_amount"`
	TermMonths         int     `json:"term_months"`
	DailyPayment       float64 `json:"daily_payment"`
	WeeklyPayment      float64 `json:"weekly_payment"`
	HoldbackPercentage float64 `json:"holdback_percentage"`
}

// LegacyOfferTerms estimates terms from the score alone. It ignores capacity
// and is only an indication; Calculator sizes real offers.
func (e *Engine) LegacyOfferTerms(score int, requested float64) LegacyTerms {
	var tier domain.LegacyTier
	for _, t := range e.cfg.LegacyTiers {
		tier = t
		if score >= t.MinScore {
			break
		}
	}

	approved := requested * tier.ApprovalPercentage
	payback := approved * tier.FactorRate
	daily := 0.0
	if days := float64(tier.MaxTermMonths) * e.cfg.LegacyBusinessDays; days > 0 {
		daily = payback / days
	}

	return LegacyTerms{
		ApprovedAmount:     money.Round2(approved),
		FactorRate:         tier.FactorRate,
		PaybackAmount:      money.Round2(payback),
		TermMonths:         tier.MaxTermMonths,
		DailyPayment:       money.Round2(daily),
		WeeklyPayment:      money.Round2(daily * 5),
		HoldbackPercentage: tier.Holdback,
	}
}
