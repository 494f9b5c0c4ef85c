// Package offer sizes MCA offers under the withhold cap.
//
// The calculator prices an offer from tier, credit, industry, position and
// volatility tables, sizes it against remaining daily capacity, and guards
// the result so existing plus new daily remittance never exceeds the cap.
package offer

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/opensource-finance/truerev/internal/capacity"
	"github.com/opensource-finance/truerev/internal/domain"
	"github.com/opensource-finance/truerev/internal/money"
)

// Offer statuses.
const (
	StatusApproved        = "approved"
	StatusApprovedReduced = "approved_reduced"
	StatusDeclined        = "declined"
	StatusNeedsReview     = "needs_review"
)

// Decline reasons.
const (
	DeclineInvalidRevenue   = "invalid_revenue"
	DeclineInvalidInput     = "invalid_input"
	DeclineAtCapacity       = "at_capacity"
	DeclineTooManyPositions = "too_many_positions"
	DeclineBelowMinimum     = "below_minimum"
)

// Input is a request for an offer.
// Zero values of Position, TermMonths and VolatilityLevel take the configured defaults.
type Input struct {
	MonthlyTrueRevenue   float64  `json:"monthly_true_revenue"`
	ExistingDailyPayment float64  `json:"existing_daily_payment"`
	RequestedAmount      float64  `json:"requested_amount"`
	Position             int      `json:"position,omitempty"`
	TermMonths           int      `json:"term_months,omitempty"`
	FactorRate           *float64 `json:"factor_rate,omitempty"`
	Industry             string   `json:"industry,omitempty"`
	CreditScore          int      `json:"credit_score,omitempty"`
	RiskScore            *int     `json:"risk_score,omitempty"`
	VolatilityLevel      string   `json:"volatility_level,omitempty"`

	// Limits carry term overrides produced by custom rules.
	Limits *Limits `json:"limits,omitempty"`
}

// Limits tighten the computed terms. They never loosen the cap.
type Limits struct {
	MaxTermMonths        *int     `json:"max_term_months,omitempty"`
	FactorRateAdjustment float64  `json:"factor_rate_adjustment,omitempty"`
	MaxFundingAmount     *float64 `json:"max_funding_amount,omitempty"`
	MaxAmountPercentage  *float64 `json:"max_amount_percentage,omitempty"`
}

// amountShare returns the share of the approved amount a rule allows.
// Shares outside (0, 1) cannot tighten and are ignored.
func (l *Limits) amountShare() (float64, bool) {
	if l == nil || l.MaxAmountPercentage == nil {
		return 0, false
	}
	p := *l.MaxAmountPercentage
	return p, p > 0 && p < 1
}

// Adjustment is one line of a pricing adjustment list.
type Adjustment struct {
	Type        string  `json:"type"`
	Description string  `json:"description"`
	Value       float64 `json:"value"`
}

// Adjustments groups the pricing adjustments by the term they move.
type Adjustments struct {
	FactorRate []Adjustment `json:"factor_rate"`
	Term       []Adjustment `json:"term"`
	Approval   []Adjustment `json:"approval"`
	Holdback   []Adjustment `json:"holdback"`
}

// Tier is the factor rate tier selected for the risk score.
type Tier struct {
	Name               string  `json:"name"`
	MinRiskScore       int     `json:"min_risk_score"`
	BaseRate           float64 `json:"base_rate"`
	MaxRate            float64 `json:"max_rate"`
	MaxTermMonths      int     `json:"max_term_months"`
	ApprovalPercentage float64 `json:"approval_percentage"`
}

// Result is the outcome of Calculate.
type Result struct {
	Status        string                  `json:"status"`
	CanFund       bool                    `json:"can_fund"`
	Capacity      domain.CapacitySnapshot `json:"capacity"`
	Tier          *Tier                   `json:"tier,omitempty"`
	Offer         *domain.Offer           `json:"offer"`
	Adjustments   Adjustments             `json:"adjustments"`
	Warnings      []string                `json:"warnings"`
	Explanation   string                  `json:"explanation"`
	MathBreakdown *MathBreakdown          `json:"math_breakdown,omitempty"`
	DeclineReason string                  `json:"decline_reason,omitempty"`
}

// Calculator prices offers from an immutable pricing snapshot.
type Calculator struct {
	cfg     domain.PricingConfig
	ceiling capacity.Cap
}

// NewCalculator creates a calculator.
func NewCalculator(cfg domain.PricingConfig, c capacity.Cap) *Calculator {
	return &Calculator{cfg: cfg, ceiling: c}
}

// CheckCapacity returns the capacity snapshot without pricing an offer.
func (c *Calculator) CheckCapacity(monthlyRevenue, existingDaily float64, industry string) domain.CapacitySnapshot {
	return capacity.Rounded(c.capacity(monthlyRevenue, existingDaily, industry))
}

func (c *Calculator) capacity(monthlyRevenue, existingDaily float64, industry string) domain.CapacitySnapshot {
	var override *float64
	if adj, ok := c.cfg.IndustryAdjustments[industryKey(industry)]; ok {
		override = adj.MaxWithholdOverride
	}
	return c.ceiling.Snapshot(monthlyRevenue, existingDaily, override)
}

// Calculate runs the offer algorithm. Declines are results, not errors.
func (c *Calculator) Calculate(in Input) Result {
	in = c.withDefaults(in)

	res := Result{
		Status:   StatusDeclined,
		Warnings: []string{},
		Adjustments: Adjustments{
			FactorRate: []Adjustment{},
			Term:       []Adjustment{},
			Approval:   []Adjustment{},
			Holdback:   []Adjustment{},
		},
	}

	if in.MonthlyTrueRevenue <= 0 {
		res.DeclineReason = DeclineInvalidRevenue
		res.Explanation = "Cannot calculate offer without valid monthly True Revenue."
		return res
	}
	if in.ExistingDailyPayment < 0 || in.RequestedAmount < 0 {
		res.DeclineReason = DeclineInvalidInput
		res.Explanation = "Existing daily payment and requested amount must not be negative."
		return res
	}

	snap := c.capacity(in.MonthlyTrueRevenue, in.ExistingDailyPayment, in.Industry)
	res.Capacity = capacity.Rounded(snap)

	if snap.AtCapacity {
		res.DeclineReason = DeclineAtCapacity
		res.Explanation = fmt.Sprintf(
			"Merchant is at maximum withhold capacity. Current withhold: %.1f%% of %.1f%% maximum.",
			snap.CurrentWithholdPercent, snap.MaxWithholdPercent)
		return res
	}

	if in.Position > c.cfg.MaxPositions {
		res.DeclineReason = DeclineTooManyPositions
		res.Explanation = fmt.Sprintf("Position %d exceeds maximum allowed positions (%d).",
			in.Position, c.cfg.MaxPositions)
		return res
	}

	tier := c.tier(*in.RiskScore)
	res.Tier = &Tier{
		Name:               tier.Name,
		MinRiskScore:       tier.MinRiskScore,
		BaseRate:           tier.BaseRate,
		MaxRate:            tier.MaxRate,
		MaxTermMonths:      tier.MaxTermMonths,
		ApprovalPercentage: tier.ApprovalPercentage,
	}

	rate, rateAdj := c.factorRate(tier, in)
	res.Adjustments.FactorRate = rateAdj
	if in.FactorRate != nil {
		requested := *in.FactorRate
		if requested >= c.cfg.Bounds.MinFactorRate && requested <= tier.MaxRate {
			rate = requested
		} else {
			res.Warnings = append(res.Warnings, fmt.Sprintf(
				"Requested factor rate %.2f adjusted to %.2f (valid range: %.2f - %.2f)",
				requested, rate, c.cfg.Bounds.MinFactorRate, tier.MaxRate))
		}
	}

	term, termAdj := c.term(tier, in)
	res.Adjustments.Term = termAdj

	businessDays := c.ceiling.BusinessDays()
	termDays := float64(term) * businessDays

	maxPayback := snap.RemainingDailyCapacity * termDays
	maxFunding := min(maxPayback/rate, c.cfg.MaxFunding)
	if in.Limits != nil && in.Limits.MaxFundingAmount != nil && *in.Limits.MaxFundingAmount > 0 {
		maxFunding = min(maxFunding, *in.Limits.MaxFundingAmount)
	}

	approval, approvalAdj := c.approval(tier, in)
	res.Adjustments.Approval = approvalAdj

	maxByApproval := in.RequestedAmount * approval
	if p, ok := in.Limits.amountShare(); ok {
		maxByApproval *= p
		res.Adjustments.Approval = append(res.Adjustments.Approval,
			Adjustment{Type: "rule_limit", Description: "Rule amount limit", Value: money.Round4(p - 1)})
	}
	approved := min(maxFunding, maxByApproval)

	if approved < c.cfg.MinFunding {
		res.DeclineReason = DeclineBelowMinimum
		res.Explanation = fmt.Sprintf("Calculated funding amount $%s is below minimum threshold of $%s.",
			money.Format2(approved), money.Format2(c.cfg.MinFunding))
		return res
	}

	payback := approved * rate
	daily := payback / termDays

	if !capacity.Fits(snap, daily) {
		daily = snap.RemainingDailyCapacity
		payback = daily * termDays
		approved = payback / rate

		if approved < c.cfg.MinFunding {
			res.DeclineReason = DeclineAtCapacity
			res.Explanation = fmt.Sprintf(
				"After applying %.1f%% withhold cap, funding amount $%s is below minimum.",
				snap.MaxWithholdPercent, money.Format2(approved))
			return res
		}

		slog.Debug("offer reduced to fit withhold cap",
			"remaining_daily_capacity", snap.RemainingDailyCapacity,
			"funding_amount", approved,
		)
		res.Warnings = append(res.Warnings, fmt.Sprintf(
			"Offer reduced to comply with %.1f%% maximum withhold cap", snap.MaxWithholdPercent))
	}

	totalDaily := in.ExistingDailyPayment + daily
	totalPercent := totalDaily / snap.DailyTrueRevenue * 100

	holdback, holdbackAdj := c.holdback(*in.RiskScore, in.Position)
	res.Adjustments.Holdback = holdbackAdj

	offer := &domain.Offer{
		FundingAmount:      money.Round2(approved),
		FactorRate:         money.Round4(rate),
		PaybackAmount:      money.Round2(payback),
		TermMonths:         term,
		TermBusinessDays:   int(money.Round(termDays, 0)),
		DailyPayment:       money.Round2(daily),
		WeeklyPayment:      money.Round2(daily * 5),
		MonthlyPayment:     money.Round2(daily * businessDays),
		HoldbackPercentage: money.Round2(holdback * 100),
		Position:           in.Position,
		CostOfCapital:      money.Round2(payback - approved),
		CostPercentage:     money.Round2((payback/approved - 1) * 100),
		WithholdBreakdown: domain.WithholdBreakdown{
			ExistingDaily:          money.Round2(in.ExistingDailyPayment),
			ExistingPercent:        money.Round2(snap.CurrentWithholdPercent),
			NewDaily:               money.Round2(daily),
			NewPercent:             money.Round2(daily / snap.DailyTrueRevenue * 100),
			TotalDaily:             money.Round2(totalDaily),
			TotalPercent:           money.Round2(totalPercent),
			RemainingCapacityAfter: money.Round2(snap.MaxDailyPayment - totalDaily),
			RemainingPercentAfter:  money.Round2(snap.MaxWithholdPercent - totalPercent),
		},
	}

	res.MathBreakdown = breakdown(in, snap, businessDays, termDays, rate, maxFunding, approval, maxByApproval, approved, payback, daily)

	res.Status = StatusApproved
	if approved < in.RequestedAmount*c.cfg.ReducedThreshold {
		res.Status = StatusApprovedReduced
	}
	res.CanFund = true
	res.Offer = offer
	res.Explanation = explain(offer, res.Status, in.RequestedAmount, snap.MaxWithholdPercent)
	return res
}

func (c *Calculator) withDefaults(in Input) Input {
	d := c.cfg.Defaults
	if in.Position <= 0 {
		in.Position = d.Position
	}
	if in.TermMonths <= 0 {
		in.TermMonths = d.TermMonths
	}
	if in.RiskScore == nil {
		score := d.RiskScore
		in.RiskScore = &score
	}
	if in.VolatilityLevel == "" {
		in.VolatilityLevel = d.VolatilityLevel
	}
	in.Industry = industryKey(in.Industry)
	return in
}

// tier returns the first tier whose minimum the score meets, else the last.
func (c *Calculator) tier(riskScore int) domain.FactorTier {
	for _, t := range c.cfg.FactorTiers {
		if riskScore >= t.MinRiskScore {
			return t
		}
	}
	return c.cfg.FactorTiers[len(c.cfg.FactorTiers)-1]
}

func (c *Calculator) creditTier(score int) domain.CreditTier {
	for _, t := range c.cfg.CreditTiers {
		if score >= t.MinScore {
			return t
		}
	}
	return c.cfg.CreditTiers[len(c.cfg.CreditTiers)-1]
}

func (c *Calculator) factorRate(tier domain.FactorTier, in Input) (float64, []Adjustment) {
	adj := []Adjustment{}

	if p := c.cfg.PositionAdjustments[in.Position].FactorAdjustment; p != 0 {
		adj = append(adj, Adjustment{Type: "position", Description: fmt.Sprintf("Position %d adjustment", in.Position), Value: p})
	}
	credit := c.creditTier(in.CreditScore)
	if credit.FactorAdjustment != 0 {
		adj = append(adj, Adjustment{
			Type:        "credit_score",
			Description: fmt.Sprintf("%s credit (%d)", credit.Name, in.CreditScore),
			Value:       credit.FactorAdjustment,
		})
	}
	if ind, ok := c.cfg.IndustryAdjustments[in.Industry]; ok && ind.FactorAdjustment != 0 {
		adj = append(adj, Adjustment{Type: "industry", Description: industryLabel(in.Industry), Value: ind.FactorAdjustment})
	}
	if vol, ok := c.cfg.VolatilityAdjustments[in.VolatilityLevel]; ok && vol.FactorAdjustment != 0 {
		adj = append(adj, Adjustment{Type: "volatility", Description: volatilityLabel(in.VolatilityLevel), Value: vol.FactorAdjustment})
	}
	if in.Limits != nil && in.Limits.FactorRateAdjustment != 0 {
		adj = append(adj, Adjustment{Type: "rule", Description: "Custom rule adjustment", Value: in.Limits.FactorRateAdjustment})
	}

	rate := tier.BaseRate + sum(adj)
	return money.Clamp(rate, c.cfg.Bounds.MinFactorRate, tier.MaxRate), adj
}

func (c *Calculator) term(tier domain.FactorTier, in Input) (int, []Adjustment) {
	adj := []Adjustment{}
	total := 0

	credit := c.creditTier(in.CreditScore)
	if credit.TermAdjustment != 0 {
		total += credit.TermAdjustment
		adj = append(adj, Adjustment{Type: "credit_score", Description: credit.Name + " credit", Value: float64(credit.TermAdjustment)})
	}
	if ind, ok := c.cfg.IndustryAdjustments[in.Industry]; ok && ind.TermAdjustment != 0 {
		total += ind.TermAdjustment
		adj = append(adj, Adjustment{Type: "industry", Description: industryLabel(in.Industry), Value: float64(ind.TermAdjustment)})
	}
	if vol, ok := c.cfg.VolatilityAdjustments[in.VolatilityLevel]; ok && vol.TermAdjustment != 0 {
		total += vol.TermAdjustment
		adj = append(adj, Adjustment{Type: "volatility", Description: volatilityLabel(in.VolatilityLevel), Value: float64(vol.TermAdjustment)})
	}

	floor := c.cfg.MinTermMonths
	maxTerm := max(floor, tier.MaxTermMonths+total)
	if in.Limits != nil && in.Limits.MaxTermMonths != nil && *in.Limits.MaxTermMonths > 0 {
		maxTerm = min(maxTerm, *in.Limits.MaxTermMonths)
	}
	return max(floor, min(in.TermMonths, maxTerm)), adj
}

func (c *Calculator) approval(tier domain.FactorTier, in Input) (float64, []Adjustment) {
	adj := []Adjustment{}

	modifier := 1.0
	if p, ok := c.cfg.PositionAdjustments[in.Position]; ok && p.ApprovalModifier > 0 {
		modifier = p.ApprovalModifier
	}
	if modifier != 1.0 {
		adj = append(adj, Adjustment{Type: "position", Description: fmt.Sprintf("Position %d", in.Position), Value: modifier - 1.0})
	}

	boost := 0.0
	credit := c.creditTier(in.CreditScore)
	if credit.ApprovalBoost != 0 {
		boost += credit.ApprovalBoost
		adj = append(adj, Adjustment{Type: "credit_score", Description: credit.Name + " credit", Value: credit.ApprovalBoost})
	}
	if vol, ok := c.cfg.VolatilityAdjustments[in.VolatilityLevel]; ok && vol.ApprovalBoost != 0 {
		boost += vol.ApprovalBoost
		adj = append(adj, Adjustment{Type: "volatility", Description: volatilityLabel(in.VolatilityLevel), Value: vol.ApprovalBoost})
	}

	pct := tier.ApprovalPercentage*modifier + boost
	return money.Round4(money.Clamp(pct, c.cfg.MinApproval, c.cfg.MaxApproval)), adj
}

// HoldbackRiskLevel buckets a risk score for the holdback table.
func HoldbackRiskLevel(riskScore int) string {
	switch {
	case riskScore >= 70:
		return "low"
	case riskScore >= 40:
		return "medium"
	case riskScore >= 20:
		return "high"
	default:
		return "very_high"
	}
}

func (c *Calculator) holdback(riskScore, position int) (float64, []Adjustment) {
	h := c.cfg.Holdback
	adj := []Adjustment{}

	level := HoldbackRiskLevel(riskScore)
	if v := h.RiskAdjustments[level]; v != 0 {
		adj = append(adj, Adjustment{Type: "risk", Description: label(level) + " risk", Value: v})
	}
	if position > 1 {
		adj = append(adj, Adjustment{
			Type:        "stacking",
			Description: fmt.Sprintf("Position %d", position),
			Value:       float64(position-1) * h.PerPositionAddition,
		})
	}

	return money.Round4(money.Clamp(h.Base+sum(adj), h.Min, h.Max)), adj
}

func sum(adj []Adjustment) float64 {
	total := 0.0
	for _, a := range adj {
		total += a.Value
	}
	return total
}

// industryKey normalizes an industry name to the adjustment table key.
func industryKey(industry string) string {
	k := strings.ToLower(strings.TrimSpace(industry))
	return strings.NewReplacer(" ", "_", "-", "_", "/", "_").Replace(k)
}

func industryLabel(key string) string {
	return label(strings.ReplaceAll(key, "_", " "))
}

func volatilityLabel(level string) string {
	return label(level) + " volatility"
}

func label(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
