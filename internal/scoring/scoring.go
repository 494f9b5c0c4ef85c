// Package scoring combines component signals into a weighted risk score and
// aggregates every pipeline result into the final underwriting decision.
package scoring

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/opensource-finance/truerev/internal/domain"
	"github.com/opensource-finance/truerev/internal/money"
)

// Overall risk levels.
const (
	RiskLow        = "low"
	RiskMediumLow  = "medium-low"
	RiskMedium     = "medium"
	RiskMediumHigh = "medium-high"
	RiskHigh       = "high"
)

// componentOrder fixes the order details and flags are reported in.
var componentOrder = []struct {
	key   string
	label string
}{
	{domain.ComponentCredit, "credit"},
	{domain.ComponentBank, "bank_analysis"},
	{domain.ComponentIdentity, "identity"},
	{domain.ComponentStacking, "stacking"},
	{domain.ComponentUCC, "ucc"},
	{domain.ComponentIndustry, "industry"},
}

// Component is the normalized view of one signal.
type Component struct {
	RawScore        *int     `json:"raw_score,omitempty"`
	NormalizedScore int      `json:"normalized_score"`
	Weight          float64  `json:"weight"`
	WeightedScore   float64  `json:"weighted_score"`
	Status          string   `json:"status,omitempty"`
	ActiveCount     *int     `json:"active_count,omitempty"`
	Industry        string   `json:"industry,omitempty"`
	RiskLevel       string   `json:"risk_level,omitempty"`
	Flags           []string `json:"flags,omitempty"`
}

// Score is the result of CalculateRiskScore.
type Score struct {
	domain.RiskAssessment
	Details map[string]Component `json:"component_details"`
	Summary string               `json:"summary"`
}

// Engine computes weighted risk scores.
type Engine struct {
	cfg domain.ScoringConfig
}

// NewEngine creates a scoring engine.
func NewEngine(cfg domain.ScoringConfig) *Engine {
	return &Engine{cfg: cfg}
}

// CalculateRiskScore normalizes each present signal to 0-100 and averages
// them by weight. Absent signals drop out of both sides of the average.
func (e *Engine) CalculateRiskScore(s domain.Signals) Score {
	scores := make(map[string]int)
	details := make(map[string]Component)

	if s.Credit != nil {
		raw := s.Credit.CreditScore
		details["credit"] = Component{
			RawScore:        &raw,
			NormalizedScore: e.NormalizeCredit(raw),
			Flags:           s.Credit.Flags,
		}
	}
	if s.BankAnalysis != nil {
		details["bank_analysis"] = Component{
			NormalizedScore: e.BankScore(*s.BankAnalysis),
			RiskLevel:       s.BankAnalysis.RiskLevel,
			Flags:           s.BankAnalysis.Flags,
		}
	}
	if s.Identity != nil {
		status := s.Identity.Status
		if status == "" {
			status = "pending"
		}
		details["identity"] = Component{
			NormalizedScore: scoreOr(s.Identity.Score, e.cfg.IdentityDefault),
			Status:          status,
			Flags:           s.Identity.Flags,
		}
	}
	if s.Stacking != nil {
		active := s.Stacking.ActiveMCAs
		details["stacking"] = Component{
			NormalizedScore: scoreOr(s.Stacking.RiskScore, e.cfg.StackingDefault),
			ActiveCount:     &active,
			Flags:           s.Stacking.Flags,
		}
	}
	if s.UCC != nil {
		filings := s.UCC.ActiveFilings
		details["ucc"] = Component{
			NormalizedScore: scoreOr(s.UCC.RiskScore, e.cfg.UCCDefault),
			ActiveCount:     &filings,
			Flags:           s.UCC.Flags,
		}
	}
	if s.Industry != "" {
		details["industry"] = Component{
			NormalizedScore: e.IndustryScore(s.Industry),
			Industry:        s.Industry,
			RiskLevel:       e.IndustryRiskLevel(s.Industry),
		}
	}

	weights := make(map[string]float64)
	var weightedSum, totalWeight float64
	var flags []string
	for _, c := range componentOrder {
		d, ok := details[c.label]
		if !ok {
			continue
		}
		w := e.cfg.Weights[c.key]
		d.Weight = w
		d.WeightedScore = money.Round2(float64(d.NormalizedScore) * w)
		details[c.label] = d

		scores[c.key] = d.NormalizedScore
		weights[c.key] = w
		weightedSum += float64(d.NormalizedScore) * w
		totalWeight += w

		for _, f := range d.Flags {
			flags = append(flags, fmt.Sprintf("[%s] %s", c.label, f))
		}
	}

	overall := 0
	if totalWeight > 0 {
		overall = int(math.Round(weightedSum / totalWeight))
	}
	if flags == nil {
		flags = []string{}
	}

	decision := e.Decide(overall)
	return Score{
		RiskAssessment: domain.RiskAssessment{
			ComponentScores: scores,
			Weights:         weights,
			OverallScore:    overall,
			RiskLevel:       RiskLevel(overall),
			Decision:        decision,
			Flags:           flags,
			CalculatedAt:    time.Now().UTC(),
		},
		Details: details,
		Summary: summary(overall, decision, flags),
	}
}

func scoreOr(v *float64, def int) int {
	if v == nil {
		return def
	}
	return money.ClampInt(int(math.Round(*v)), 0, 100)
}

// NormalizeCredit buckets a bureau score by the configured bands.
func (e *Engine) NormalizeCredit(creditScore int) int {
	for _, b := range e.cfg.CreditBands {
		if creditScore >= b.Min {
			return b.Score
		}
	}
	return 0
}

// BankScore normalizes the statement metrics of a bank analysis signal.
func (e *Engine) BankScore(b domain.BankAnalysisSignal) int {
	c := e.cfg.BankScore
	score := c.Base

	if b.RevenueConsistency != nil {
		switch v := *b.RevenueConsistency; {
		case v >= c.ConsistencyExcellent:
			score += c.ConsistencyExcellentAdd
		case v >= c.ConsistencyGood:
			score += c.ConsistencyGoodAdd
		default:
			score -= c.ConsistencyPoorPenalty
		}
	}

	if b.AverageDailyBalance != nil {
		switch v := *b.AverageDailyBalance; {
		case v >= c.BalanceHigh:
			score += c.BalanceHighAdd
		case v >= c.BalanceMedium:
			score += c.BalanceMediumAdd
		case v < c.BalanceLow:
			score -= c.BalanceLowPenalty
		}
	}

	score -= min(b.NSFCount*c.NSFPenaltyPer, c.NSFMaxPenalty)
	score -= min(b.NegativeDays*c.NegativeDayPenaltyPer, c.NegativeDayMaxPenalty)

	return money.ClampInt(score, 0, 100)
}

// IndustryScore grades an industry by case-insensitive keyword match.
// High risk keywords are checked first, then medium, then low.
func (e *Engine) IndustryScore(industry string) int {
	r := e.cfg.IndustryRisk
	switch e.IndustryRiskLevel(industry) {
	case RiskHigh:
		return r.HighScore
	case RiskMedium:
		return r.MediumScore
	}
	if matchesAny(industry, r.Low) {
		return r.LowScore
	}
	return r.DefaultScore
}

// IndustryRiskLevel reports high, medium or low. Unmatched industries are low.
func (e *Engine) IndustryRiskLevel(industry string) string {
	r := e.cfg.IndustryRisk
	switch {
	case matchesAny(industry, r.High):
		return RiskHigh
	case matchesAny(industry, r.Medium):
		return RiskMedium
	}
	return RiskLow
}

func matchesAny(industry string, keywords []string) bool {
	s := strings.ToLower(industry)
	for _, k := range keywords {
		if strings.Contains(s, strings.ToLower(k)) {
			return true
		}
	}
	return false
}

// RiskLevel maps an overall score to its risk level.
func RiskLevel(score int) string {
	switch {
	case score >= 80:
		return RiskLow
	case score >= 60:
		return RiskMediumLow
	case score >= 40:
		return RiskMedium
	case score >= 20:
		return RiskMediumHigh
	}
	return RiskHigh
}

// Decide maps a score to the threshold decision.
func (e *Engine) Decide(score int) domain.Decision {
	t := e.cfg.Thresholds
	switch {
	case score >= t.AutoApprove:
		return domain.Decision{
			Action:  domain.ActionApprove,
			Type:    domain.DecisionTypeAuto,
			Message: "Application meets all criteria for automatic approval",
		}
	case score >= t.ManualReview:
		return domain.Decision{
			Action:  domain.ActionReview,
			Type:    domain.DecisionTypeManual,
			Message: "Application requires manual review by underwriter",
		}
	case score >= t.AutoDecline:
		return domain.Decision{
			Action:  domain.ActionReview,
			Type:    domain.DecisionTypeSenior,
			Message: "Application requires senior underwriter review",
		}
	}
	return domain.Decision{
		Action:  domain.ActionDecline,
		Type:    domain.DecisionTypeAuto,
		Message: "Application does not meet minimum criteria",
	}
}

func summary(score int, d domain.Decision, flags []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Overall Risk Score: %d/100 (%s risk)\n", score, RiskLevel(score))
	fmt.Fprintf(&b, "Recommendation: %s\n", d.Action)
	if len(flags) > 0 {
		b.WriteString("\nKey Findings:\n")
		for _, f := range flags[:min(5, len(flags))] {
			fmt.Fprintf(&b, "- %s\n", f)
		}
	}
	return b.String()
}
