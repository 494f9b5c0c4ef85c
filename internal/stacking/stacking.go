// Package stacking sizes a new MCA position on top of existing ones.
//
// The optimizer measures the merchant's current remittance burden, shrinks
// the remaining room for weak bank analysis, prices a position with a
// stacking premium and grades the combined exposure. Its burden ceiling is
// the same capacity.Cap the offer calculator uses.
package stacking

import (
	"fmt"
	"math"
	"strings"

	"github.com/opensource-finance/truerev/internal/capacity"
	"github.com/opensource-finance/truerev/internal/domain"
	"github.com/opensource-finance/truerev/internal/money"
)

// Recommendation decisions.
const (
	DecisionApprove               = "APPROVE"
	DecisionApproveWithConditions = "APPROVE_WITH_CONDITIONS"
	DecisionDecline               = "DECLINE"
)

// Stacking risk levels.
const (
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

// Stacking risk score deductions.
const (
	maxPositionsPenalty   = 30
	multiPositionsPenalty = 15
	highExposurePenalty   = 25
	exposurePenalty       = 15
	overlapPenalty        = 15
)

// Input describes the merchant and the requested position.
type Input struct {
	MonthlyRevenue    float64                    `json:"monthly_revenue"`
	RequestedAmount   float64                    `json:"requested_amount"`
	ExistingPositions []domain.ExistingPosition  `json:"existing_positions,omitempty"`
	BankAnalysis      *domain.BankAnalysisSignal `json:"bank_analysis,omitempty"`

	// RiskScore defaults to 50 when nil.
	RiskScore *int `json:"risk_score,omitempty"`
}

// PositionState is an existing position with its projected payoff.
type PositionState struct {
	Funder           string   `json:"funder"`
	DailyPayment     float64  `json:"daily_payment"`
	RemainingBalance float64  `json:"remaining_balance"`
	MonthsRemaining  int      `json:"months_remaining"`
	FactorRate       *float64 `json:"factor_rate"`
	StartDate        string   `json:"start_date,omitempty"`
}

// Burden is the merchant's current MCA remittance.
type Burden struct {
	TotalDailyPayment   float64         `json:"total_daily_payment"`
	TotalWeeklyPayment  float64         `json:"total_weekly_payment"`
	TotalMonthlyPayment float64         `json:"total_monthly_payment"`
	BurdenRatio         float64         `json:"burden_ratio"`
	RemainingBalance    float64         `json:"remaining_balance"`
	Positions           []PositionState `json:"positions"`
}

// State is the merchant before the new position.
type State struct {
	MonthlyRevenue    float64 `json:"monthly_revenue"`
	ExistingPositions int     `json:"existing_positions"`
	CurrentBurden     Burden  `json:"current_burden"`
}

// Capacity is the room left for a new position.
type Capacity struct {
	MaxBurdenRatio       float64 `json:"max_burden_ratio"`
	AvailableBurdenRatio float64 `json:"available_burden_ratio"`
	MaxAdditionalDaily   float64 `json:"max_additional_daily"`
	MaxAdditionalMonthly float64 `json:"max_additional_monthly"`
	MaxFundingAmount     float64 `json:"max_funding_amount"`
	CapacityMultiplier   float64 `json:"capacity_multiplier"`
	TypicalFactorRate    float64 `json:"typical_factor_rate"`
	TypicalTermMonths    int     `json:"typical_term_months"`
	AtCapacity           bool    `json:"is_at_capacity"`
}

// Position is the priced new position.
type Position struct {
	FundingAmount      float64 `json:"funding_amount"`
	FactorRate         float64 `json:"factor_rate"`
	PaybackAmount      float64 `json:"payback_amount"`
	TermMonths         int     `json:"term_months"`
	DailyPayment       float64 `json:"daily_payment"`
	WeeklyPayment      float64 `json:"weekly_payment"`
	HoldbackPercentage float64 `json:"holdback_percentage"`
	PositionNumber     int     `json:"position_number"`
}

// Optimal is the sizing outcome.
type Optimal struct {
	CanFund            bool      `json:"can_fund"`
	Reason             string    `json:"reason"`
	RecommendedAmount  float64   `json:"recommended_amount"`
	RequestedAmount    float64   `json:"requested_amount"`
	ApprovalPercentage float64   `json:"approval_percentage"`
	Position           *Position `json:"position"`
}

// NewBurden is the remittance after the new position.
type NewBurden struct {
	TotalDailyPayment   float64 `json:"total_daily_payment"`
	TotalMonthlyPayment float64 `json:"total_monthly_payment"`
	BurdenRatio         float64 `json:"burden_ratio"`
	BurdenIncrease      float64 `json:"burden_increase"`
}

// CashFlow is the revenue left after every MCA payment.
type CashFlow struct {
	NetCashAfterMCA float64 `json:"net_cash_after_mca"`
	NetCashRatio    float64 `json:"net_cash_ratio"`
	Sustainable     bool    `json:"is_sustainable"`
}

// ScheduledPayment is one month of the projected payoff.
type ScheduledPayment struct {
	Month            int     `json:"month"`
	Payment          float64 `json:"payment"`
	RemainingBalance float64 `json:"remaining_balance"`
}

// Details projects the funded position.
type Details struct {
	Viable          bool               `json:"viable"`
	Reason          string             `json:"reason,omitempty"`
	NewBurden       *NewBurden         `json:"new_burden,omitempty"`
	CashFlowImpact  *CashFlow          `json:"cash_flow_impact,omitempty"`
	PaymentSchedule []ScheduledPayment `json:"payment_schedule,omitempty"`
	BreakEvenMonths int                `json:"break_even_months,omitempty"`
}

// Overlap compares existing payoff horizons with the new term.
type Overlap struct {
	HighOverlap   bool   `json:"high_overlap"`
	OverlapMonths int    `json:"overlap_months"`
	Message       string `json:"message"`
}

// Risk grades the combined stack.
type Risk struct {
	RiskLevel     string   `json:"risk_level"`
	RiskScore     int      `json:"risk_score"`
	PositionCount int      `json:"position_count"`
	TotalExposure float64  `json:"total_exposure"`
	ExposureRatio float64  `json:"exposure_ratio"`
	RiskFactors   []string `json:"risk_factors"`
	Overlap       Overlap  `json:"overlap_analysis"`
}

// Alternative is a suggestion for a declined stack.
type Alternative struct {
	Type            string   `json:"type"`
	Description     string   `json:"description"`
	SuggestedAmount *float64 `json:"suggested_amount,omitempty"`
}

// Recommendation is the optimizer's verdict.
type Recommendation struct {
	Decision     string        `json:"decision"`
	Confidence   string        `json:"confidence"`
	Reason       string        `json:"reason"`
	Conditions   []string      `json:"conditions,omitempty"`
	Offer        *Position     `json:"offer,omitempty"`
	Alternatives []Alternative `json:"alternatives,omitempty"`
}

// Result is the outcome of Optimize.
type Result struct {
	CurrentState     State          `json:"current_state"`
	Capacity         Capacity       `json:"capacity"`
	OptimalPosition  Optimal        `json:"optimal_position"`
	PositionDetails  Details        `json:"position_details"`
	StackingAnalysis Risk           `json:"stacking_analysis"`
	Recommendation   Recommendation `json:"recommendation"`
}

// Optimizer prices stacked positions from an immutable config snapshot.
type Optimizer struct {
	cfg     domain.StackingConfig
	ceiling capacity.Cap
}

// NewOptimizer creates an optimizer.
func NewOptimizer(cfg domain.StackingConfig, c capacity.Cap) *Optimizer {
	return &Optimizer{cfg: cfg, ceiling: c}
}

// sizing carries unrounded values between the optimizer steps.
type sizing struct {
	canFund  bool
	reason   string
	amount   float64
	rate     float64
	payback  float64
	term     int
	daily    float64
	holdback float64
	number   int
}

// Optimize sizes the new position against the existing stack.
func (o *Optimizer) Optimize(in Input) Result {
	riskScore := 50
	if in.RiskScore != nil {
		riskScore = *in.RiskScore
	}

	burden, daily, monthly := o.currentBurden(in.ExistingPositions, in.MonthlyRevenue)
	ratio := 0.0
	if daily > 0 {
		ratio = o.ceiling.Snapshot(in.MonthlyRevenue, daily, nil).CurrentWithholdPercent
	}
	capOut, maxDaily, maxFunding := o.fundingCapacity(in.MonthlyRevenue, ratio, riskScore, in.BankAnalysis)
	s := o.optimize(in, capOut.AtCapacity, maxDaily, maxFunding, riskScore)

	optimal := Optimal{
		CanFund:           s.canFund,
		Reason:            s.reason,
		RecommendedAmount: money.Round2(s.amount),
		RequestedAmount:   in.RequestedAmount,
	}
	if in.RequestedAmount > 0 {
		optimal.ApprovalPercentage = money.Round2(s.amount / in.RequestedAmount * 100)
	}
	if s.number > 0 {
		optimal.Position = &Position{
			FundingAmount:      money.Round2(s.amount),
			FactorRate:         s.rate,
			PaybackAmount:      money.Round2(s.payback),
			TermMonths:         s.term,
			DailyPayment:       money.Round2(s.daily),
			WeeklyPayment:      money.Round2(s.daily * 5),
			HoldbackPercentage: s.holdback,
			PositionNumber:     s.number,
		}
	}

	risk := o.stackingRisk(in.ExistingPositions, s, in.MonthlyRevenue)

	return Result{
		CurrentState: State{
			MonthlyRevenue:    in.MonthlyRevenue,
			ExistingPositions: len(in.ExistingPositions),
			CurrentBurden:     burden,
		},
		Capacity:         capOut,
		OptimalPosition:  optimal,
		PositionDetails:  o.details(s, in.MonthlyRevenue, daily, monthly, ratio),
		StackingAnalysis: risk,
		Recommendation:   o.recommend(optimal, risk),
	}
}

func (o *Optimizer) monthsRemaining(p domain.ExistingPosition) int {
	if p.DailyPayment <= 0 {
		return 0
	}
	return int(math.Ceil(p.RemainingBalance / (p.DailyPayment * o.ceiling.BusinessDays())))
}

// currentBurden returns the rounded burden plus the unrounded daily and monthly totals.
func (o *Optimizer) currentBurden(positions []domain.ExistingPosition, monthlyRevenue float64) (Burden, float64, float64) {
	if len(positions) == 0 || monthlyRevenue <= 0 {
		return Burden{Positions: []PositionState{}}, 0, 0
	}

	totalDaily, totalRemaining := 0.0, 0.0
	states := make([]PositionState, 0, len(positions))
	for _, p := range positions {
		totalDaily += p.DailyPayment
		totalRemaining += p.RemainingBalance

		funder := p.Funder
		if funder == "" {
			funder = "Unknown"
		}
		var rate *float64
		if p.FactorRate > 0 {
			r := p.FactorRate
			rate = &r
		}
		states = append(states, PositionState{
			Funder:           funder,
			DailyPayment:     p.DailyPayment,
			RemainingBalance: p.RemainingBalance,
			MonthsRemaining:  o.monthsRemaining(p),
			FactorRate:       rate,
			StartDate:        p.StartDate,
		})
	}

	snap := o.ceiling.Snapshot(monthlyRevenue, totalDaily, nil)
	monthly := totalDaily * o.ceiling.BusinessDays()

	return Burden{
		TotalDailyPayment:   money.Round2(totalDaily),
		TotalWeeklyPayment:  money.Round2(totalDaily * 5),
		TotalMonthlyPayment: money.Round2(monthly),
		BurdenRatio:         money.Round2(snap.CurrentWithholdPercent),
		RemainingBalance:    money.Round2(totalRemaining),
		Positions:           states,
	}, totalDaily, monthly
}

// MaxBurdenRatio is the burden percentage allowed at a risk score.
// Bands only lower the limit from the global withhold cap.
func (o *Optimizer) MaxBurdenRatio(riskScore int) float64 {
	for _, b := range o.cfg.BurdenBands {
		if riskScore >= b.MinRiskScore {
			return o.ceiling.LimitPercent(b.MaxBurdenPercent)
		}
	}
	if n := len(o.cfg.BurdenBands); n > 0 {
		return o.ceiling.LimitPercent(o.cfg.BurdenBands[n-1].MaxBurdenPercent)
	}
	return o.ceiling.Global() * 100
}

func (o *Optimizer) typical(riskScore int) domain.TypicalTerms {
	for _, t := range o.cfg.Typical {
		if riskScore >= t.MinRiskScore {
			return t
		}
	}
	return o.cfg.Typical[len(o.cfg.Typical)-1]
}

// Multiplier shrinks capacity for a weak bank analysis.
func (o *Optimizer) Multiplier(bank *domain.BankAnalysisSignal) float64 {
	if bank == nil {
		return 1.0
	}
	m := o.cfg.Multipliers
	mult := 1.0
	switch {
	case bank.Score < m.PoorBankScore:
		mult = m.PoorCashFlow
	case bank.Score < m.FairBankScore:
		mult = m.FairCashFlow
	}
	if bank.NSFRisk == RiskHigh {
		mult *= m.HighNSF
	}
	return mult
}

func (o *Optimizer) fundingCapacity(monthlyRevenue, burdenRatio float64, riskScore int, bank *domain.BankAnalysisSignal) (Capacity, float64, float64) {
	maxRatio := o.MaxBurdenRatio(riskScore)
	available := max(0, maxRatio-burdenRatio)

	days := o.ceiling.BusinessDays()
	mult := o.Multiplier(bank)
	maxDaily := available / 100 * monthlyRevenue / days * mult

	t := o.typical(riskScore)
	maxFunding := maxDaily * float64(t.TermMonths) * days / t.FactorRate

	return Capacity{
		MaxBurdenRatio:       maxRatio,
		AvailableBurdenRatio: money.Round2(available),
		MaxAdditionalDaily:   money.Round2(maxDaily),
		MaxAdditionalMonthly: money.Round2(maxDaily * days),
		MaxFundingAmount:     money.Round2(maxFunding),
		CapacityMultiplier:   money.Round4(mult),
		TypicalFactorRate:    t.FactorRate,
		TypicalTermMonths:    t.TermMonths,
		AtCapacity:           available < o.cfg.AtCapacityBurdenPercent,
	}, maxDaily, maxFunding
}

func (o *Optimizer) optimize(in Input, atCapacity bool, maxDaily, maxFunding float64, riskScore int) sizing {
	if in.MonthlyRevenue <= 0 {
		return sizing{reason: "Invalid or missing monthly revenue"}
	}
	if atCapacity {
		return sizing{reason: "Merchant is at maximum MCA capacity"}
	}

	count := len(in.ExistingPositions)
	if count >= o.cfg.MaxPositions {
		return sizing{reason: fmt.Sprintf("Too many existing positions (%d+)", o.cfg.MaxPositions)}
	}

	amount := min(in.RequestedAmount, maxFunding) * (1 - float64(count)*o.cfg.ReductionPerPosition)
	rate := money.Round2(o.typical(riskScore).FactorRate + float64(count)*o.cfg.StackingPremium)
	term := o.term(riskScore, amount*rate, maxDaily)

	days := float64(term) * o.ceiling.BusinessDays()
	payback := amount * rate
	daily := payback / days
	if daily > maxDaily {
		daily = maxDaily
		payback = daily * days
		amount = payback / rate
	}

	s := sizing{
		canFund:  amount >= o.cfg.MinFunding,
		reason:   "Position optimized successfully",
		amount:   amount,
		rate:     rate,
		payback:  payback,
		term:     term,
		daily:    daily,
		holdback: o.holdback(riskScore, count),
		number:   count + 1,
	}
	if !s.canFund {
		s.reason = "Calculated amount below minimum threshold"
	}
	return s
}

// term shortens the typical term when the payback clears capacity sooner.
func (o *Optimizer) term(riskScore int, payback, maxDaily float64) int {
	base := o.typical(riskScore).TermMonths
	if maxDaily <= 0 {
		return base
	}
	required := int(math.Ceil(payback / maxDaily / o.ceiling.BusinessDays()))
	return min(base, max(o.cfg.MinTermMonths, required))
}

func (o *Optimizer) holdback(riskScore, count int) float64 {
	h := o.cfg.Holdback
	v := h.Base
	if riskScore < h.LowScore {
		v += h.LowScoreAddition
	}
	if riskScore < h.VeryLowScore {
		v += h.VeryLowAddition
	}
	v += float64(count) * h.PerPositionAddition
	return min(h.Max, money.Round2(v))
}

func (o *Optimizer) details(s sizing, monthlyRevenue, existingDaily, existingMonthly, burdenRatio float64) Details {
	if !s.canFund {
		return Details{Reason: s.reason}
	}

	days := o.ceiling.BusinessDays()
	newMonthly := s.daily * days
	totalDaily := existingDaily + s.daily
	totalMonthly := existingMonthly + newMonthly

	ratio, netRatio := 0.0, 0.0
	net := monthlyRevenue - totalMonthly
	if monthlyRevenue > 0 {
		ratio = totalMonthly / monthlyRevenue * 100
		netRatio = net / monthlyRevenue * 100
	}

	return Details{
		Viable: true,
		NewBurden: &NewBurden{
			TotalDailyPayment:   money.Round2(totalDaily),
			TotalMonthlyPayment: money.Round2(totalMonthly),
			BurdenRatio:         money.Round2(ratio),
			BurdenIncrease:      money.Round2(ratio - burdenRatio),
		},
		CashFlowImpact: &CashFlow{
			NetCashAfterMCA: money.Round2(net),
			NetCashRatio:    money.Round2(netRatio),
			Sustainable:     netRatio >= o.cfg.SustainableNetCashPercent,
		},
		PaymentSchedule: o.schedule(s),
		BreakEvenMonths: s.term,
	}
}

func (o *Optimizer) schedule(s sizing) []ScheduledPayment {
	balance := s.payback
	monthly := s.daily * o.ceiling.BusinessDays()

	out := make([]ScheduledPayment, 0, s.term)
	for month := 1; month <= s.term; month++ {
		payment := min(monthly, balance)
		balance -= payment
		out = append(out, ScheduledPayment{
			Month:            month,
			Payment:          money.Round2(payment),
			RemainingBalance: money.Round2(max(0, balance)),
		})
		if balance <= 0 {
			break
		}
	}
	return out
}

var riskRank = map[string]int{RiskLow: 0, RiskMedium: 1, RiskHigh: 2}

func raise(level, to string) string {
	if riskRank[to] > riskRank[level] {
		return to
	}
	return level
}

func (o *Optimizer) stackingRisk(existing []domain.ExistingPosition, s sizing, monthlyRevenue float64) Risk {
	count := len(existing)
	if s.canFund {
		count++
	}

	exposure := 0.0
	for _, p := range existing {
		exposure += p.RemainingBalance
	}
	if s.canFund {
		exposure += s.payback
	}
	ratio := 0.0
	if monthlyRevenue > 0 {
		ratio = exposure / (monthlyRevenue * 12)
	}

	level, score := RiskLow, 100
	factors := []string{}

	switch {
	case count >= o.cfg.MaxPositions:
		level = raise(level, RiskHigh)
		score -= maxPositionsPenalty
		factors = append(factors, "Maximum position count reached")
	case count >= o.cfg.MaxPositions-1:
		level = raise(level, RiskMedium)
		score -= multiPositionsPenalty
		factors = append(factors, "Multiple active positions")
	}

	switch {
	case ratio > o.cfg.HighExposureRatio:
		level = raise(level, RiskHigh)
		score -= highExposurePenalty
		factors = append(factors, fmt.Sprintf("Exposure exceeds %.0f months of revenue", o.cfg.HighExposureRatio*12))
	case ratio > o.cfg.MediumExposureRatio:
		level = raise(level, RiskMedium)
		score -= exposurePenalty
		factors = append(factors, "Exposure exceeds annual revenue")
	}

	overlap := o.overlap(existing, s)
	if overlap.HighOverlap {
		score -= overlapPenalty
		factors = append(factors, overlap.Message)
	}

	return Risk{
		RiskLevel:     level,
		RiskScore:     max(0, score),
		PositionCount: count,
		TotalExposure: money.Round2(exposure),
		ExposureRatio: money.Round2(ratio),
		RiskFactors:   factors,
		Overlap:       overlap,
	}
}

func (o *Optimizer) overlap(existing []domain.ExistingPosition, s sizing) Overlap {
	if len(existing) == 0 || !s.canFund {
		return Overlap{Message: "No overlap to analyze"}
	}

	months := 0
	for _, p := range existing {
		months += min(o.monthsRemaining(p), s.term)
	}

	high := float64(months) > float64(s.term*len(existing))*o.cfg.HighOverlapRatio
	msg := "Acceptable payment overlap"
	if high {
		msg = "Significant payment overlap with existing positions"
	}
	return Overlap{HighOverlap: high, OverlapMonths: months, Message: msg}
}

func (o *Optimizer) recommend(opt Optimal, risk Risk) Recommendation {
	switch {
	case !opt.CanFund:
		return Recommendation{
			Decision:     DecisionDecline,
			Confidence:   "high",
			Reason:       opt.Reason,
			Alternatives: o.alternatives(opt, risk),
		}
	case risk.RiskLevel == RiskHigh:
		return Recommendation{
			Decision:     DecisionDecline,
			Confidence:   "high",
			Reason:       "High stacking risk: " + strings.Join(risk.RiskFactors, ", "),
			Alternatives: o.alternatives(opt, risk),
		}
	case risk.RiskLevel == RiskMedium:
		return Recommendation{
			Decision:   DecisionApproveWithConditions,
			Confidence: "medium",
			Reason:     "Moderate stacking risk requires additional review",
			Conditions: []string{
				"Verify all existing MCA positions",
				"Confirm recent bank statements",
				"Consider reduced term",
			},
			Offer: opt.Position,
		}
	default:
		return Recommendation{
			Decision:   DecisionApprove,
			Confidence: "high",
			Reason:     "Position is within acceptable parameters",
			Offer:      opt.Position,
		}
	}
}

func (o *Optimizer) alternatives(opt Optimal, risk Risk) []Alternative {
	var out []Alternative
	if risk.PositionCount >= o.cfg.MaxPositions-1 {
		out = append(out, Alternative{Type: "buyout", Description: "Consider buying out existing positions"})
	}
	if risk.ExposureRatio > o.cfg.MediumExposureRatio {
		out = append(out, Alternative{Type: "wait", Description: "Wait for existing positions to pay down"})
	}
	suggested := money.Round2(opt.RecommendedAmount * o.cfg.ReducedAmountShare)
	return append(out, Alternative{
		Type:            "reduced_amount",
		Description:     "Consider a smaller funding amount",
		SuggestedAmount: &suggested,
	})
}
