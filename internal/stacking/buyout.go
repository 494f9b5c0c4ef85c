package stacking

import (
	"sort"

	"github.com/opensource-finance/truerev/internal/domain"
	"github.com/opensource-finance/truerev/internal/money"
)

// BuyoutCandidate is an existing position the new funding could pay off.
type BuyoutCandidate struct {
	Funder           string  `json:"funder"`
	RemainingBalance float64 `json:"remaining_balance"`
	BuyoutAmount     float64 `json:"buyout_amount"`
	MonthlySavings   float64 `json:"monthly_savings"`
	MonthsRemaining  int     `json:"months_remaining"`
	Priority         float64 `json:"priority"`
}

// Buyout is the outcome of AnalyzeBuyout.
type Buyout struct {
	Recommended                bool              `json:"recommended"`
	Reason                     string            `json:"reason"`
	TotalBuyoutCost            float64           `json:"total_buyout_cost"`
	RemainingForWorkingCapital float64           `json:"remaining_for_working_capital"`
	Candidates                 []BuyoutCandidate `json:"candidates"`
}

// AnalyzeBuyout ranks existing positions for consolidation into newFunding.
// Positions near payoff are discounted; candidates sort by priority, highest first.
func (o *Optimizer) AnalyzeBuyout(positions []domain.ExistingPosition, newFunding float64) Buyout {
	if len(positions) == 0 {
		return Buyout{Reason: "No existing positions to buy out", Candidates: []BuyoutCandidate{}}
	}

	b := o.cfg.Buyout
	days := o.ceiling.BusinessDays()
	total := 0.0
	candidates := make([]BuyoutCandidate, 0, len(positions))

	for _, p := range positions {
		months := o.monthsRemaining(p)

		payoff := 1.0
		switch {
		case months <= b.NearTermMonths:
			payoff = 1 - b.NearTermDiscount
		case months <= b.MidTermMonths:
			payoff = 1 - b.MidTermDiscount
		}

		amount := p.RemainingBalance * payoff
		savings := p.DailyPayment * days
		total += amount

		funder := p.Funder
		if funder == "" {
			funder = "Unknown"
		}
		candidates = append(candidates, BuyoutCandidate{
			Funder:           funder,
			RemainingBalance: p.RemainingBalance,
			BuyoutAmount:     money.Round2(amount),
			MonthlySavings:   money.Round2(savings),
			MonthsRemaining:  months,
			Priority:         money.Round2(buyoutPriority(p.RemainingBalance, savings, months)),
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Priority > candidates[j].Priority
	})

	out := Buyout{
		Recommended:                total <= newFunding*b.MaxFundingShare,
		TotalBuyoutCost:            money.Round2(total),
		RemainingForWorkingCapital: money.Round2(newFunding - total),
		Candidates:                 candidates,
	}
	if out.Recommended {
		out.Reason = "Buyout would simplify position and reduce daily payment burden"
	} else {
		out.Reason = "Buyout cost too high relative to new funding"
	}
	return out
}

// buyoutPriority favors large monthly savings, small balances and long remaining terms.
func buyoutPriority(balance, monthlySavings float64, monthsRemaining int) float64 {
	savings := min(100, monthlySavings/1000*10)
	small := max(0, 50-balance/10000*10)
	term := min(50, float64(monthsRemaining)*5)
	return savings + small + term
}
