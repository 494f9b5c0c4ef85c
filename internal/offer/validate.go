package offer

import (
	"fmt"

	"github.com/opensource-finance/truerev/internal/domain"
	"github.com/opensource-finance/truerev/internal/money"
)

// Scenario is one alternative term priced from the same input.
type Scenario struct {
	Name       string `json:"name"`
	TermMonths int    `json:"term_months"`
	Result     Result `json:"result"`
}

// Scenarios prices the input at each configured alternative term.
func (c *Calculator) Scenarios(in Input) []Scenario {
	out := make([]Scenario, 0, len(c.cfg.ScenarioTerms))
	for _, months := range c.cfg.ScenarioTerms {
		alt := in
		alt.TermMonths = months
		out = append(out, Scenario{
			Name:       fmt.Sprintf("%d_months", months),
			TermMonths: months,
			Result:     c.Calculate(alt),
		})
	}
	return out
}

// Validation is the outcome of ValidateOfferTerms.
type Validation struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// ValidateOfferTerms re-checks offer terms against the configured bounds.
// HoldbackPercentage is read on the 0-100 scale the calculator emits.
func (c *Calculator) ValidateOfferTerms(o domain.Offer) Validation {
	b := c.cfg.Bounds
	errs := []string{}

	if o.FactorRate < b.MinFactorRate || o.FactorRate > b.MaxFactorRate {
		errs = append(errs, fmt.Sprintf("Factor rate %.4f outside valid range (%.2f - %.2f)",
			o.FactorRate, b.MinFactorRate, b.MaxFactorRate))
	}
	if o.TermMonths < b.MinTermMonths || o.TermMonths > b.MaxTermMonths {
		errs = append(errs, fmt.Sprintf("Term %d months outside valid range (%d - %d)",
			o.TermMonths, b.MinTermMonths, b.MaxTermMonths))
	}
	if o.DailyPayment < b.MinDailyPayment || o.DailyPayment > b.MaxDailyPayment {
		errs = append(errs, fmt.Sprintf("Daily payment $%.2f outside valid range ($%s - $%s)",
			o.DailyPayment, money.Format(b.MinDailyPayment), money.Format(b.MaxDailyPayment)))
	}
	if h := o.HoldbackPercentage / 100; h < b.MinHoldback || h > b.MaxHoldback {
		errs = append(errs, fmt.Sprintf("Holdback %.2f%% outside valid range (%.0f%% - %.0f%%)",
			o.HoldbackPercentage, b.MinHoldback*100, b.MaxHoldback*100))
	}

	return Validation{Valid: len(errs) == 0, Errors: errs}
}
