package rules

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/opensource-finance/truerev/internal/domain"
)

// DefaultSeverity applies to rules without a severity.
const DefaultSeverity = "medium"

// setScoreBase is the neutral score that set_score values are expressed against.
const setScoreBase = 50

// MatchedRule records a rule that fired.
type MatchedRule struct {
	ID     string            `json:"id"`
	Name   string            `json:"name"`
	Action domain.RuleAction `json:"action"`
}

// Flag is raised by add_flag.
type Flag struct {
	Type     string `json:"type"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
	RuleID   string `json:"rule_id"`
}

// ForcedDecision is collected from set_decision.
type ForcedDecision struct {
	Decision string `json:"decision"`
	Reason   string `json:"reason"`
	RuleID   string `json:"rule_id"`
	Priority int    `json:"priority"`
}

// Verification is collected from require_verification.
type Verification struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
	RuleID string `json:"rule_id"`
}

// TermAdjustment overrides offer terms.
// MaxAmountPercentage scales the approved amount.
type TermAdjustment struct {
	MaxTermMonths        *int     `json:"max_term_months,omitempty"`
	FactorRateAdjustment *float64 `json:"factor_rate_adjustment,omitempty"`
	MaxFundingAmount     *float64 `json:"max_funding_amount,omitempty"`
	MaxAmountPercentage  *float64 `json:"max_amount_percentage,omitempty"`
}

// Result is the folded outcome of every matching rule.
type Result struct {
	ScoreAdjustments      []int            `json:"score_adjustments"`
	TotalScoreAdjustment  int              `json:"total_score_adjustment"`
	ScoreMultiplier       float64          `json:"score_multiplier"`
	Flags                 []Flag           `json:"flags"`
	Decisions             []ForcedDecision `json:"decisions"`
	TermAdjustments       []TermAdjustment `json:"term_adjustments"`
	RequiredVerifications []Verification   `json:"required_verifications"`
	Blocked               bool             `json:"blocked"`
	BlockReason           string           `json:"block_reason,omitempty"`
	MatchedRules          []MatchedRule    `json:"matched_rules"`
}

func newResult() Result {
	return Result{
		ScoreAdjustments:      []int{},
		ScoreMultiplier:       1,
		Flags:                 []Flag{},
		Decisions:             []ForcedDecision{},
		TermAdjustments:       []TermAdjustment{},
		RequiredVerifications: []Verification{},
		MatchedRules:          []MatchedRule{},
	}
}

// Decision returns the forced decision of the highest priority rule, if any.
func (r Result) Decision() (ForcedDecision, bool) {
	if len(r.Decisions) == 0 {
		return ForcedDecision{}, false
	}
	best := r.Decisions[0]
	for _, d := range r.Decisions[1:] {
		if d.Priority > best.Priority {
			best = d
		}
	}
	return best, true
}

// ApplyScore folds the adjustments into a base score: delta first, then the
// multiplier, then clamped to 0-100.
func (r Result) ApplyScore(base int) int {
	score := float64(base+r.TotalScoreAdjustment) * r.ScoreMultiplier
	return int(math.Max(0, math.Min(100, math.Round(score))))
}

// actionHandler folds one matching rule into the result.
type actionHandler func(rule domain.RiskRule, value Value, res *Result)

var actionHandlers = map[domain.RuleAction]actionHandler{
	domain.ActionAdjustScore: func(_ domain.RiskRule, v Value, res *Result) {
		if f, ok := scoreNumber(v); ok {
			res.ScoreAdjustments = append(res.ScoreAdjustments, int(f))
		}
	},
	domain.ActionSetScore: func(_ domain.RiskRule, v Value, res *Result) {
		if f, ok := scoreNumber(v); ok {
			res.ScoreAdjustments = []int{int(f) - setScoreBase}
		}
	},
	domain.ActionMultiplyScore: func(_ domain.RiskRule, v Value, res *Result) {
		if f, ok := scoreNumber(v); ok {
			res.ScoreMultiplier *= f
		}
	},
	domain.ActionAddFlag: func(rule domain.RiskRule, v Value, res *Result) {
		severity := rule.Severity
		if severity == "" {
			severity = DefaultSeverity
		}
		res.Flags = append(res.Flags, Flag{Type: rule.Name, Message: text(v), Severity: severity, RuleID: rule.ID})
	},
	domain.ActionSetDecision: func(rule domain.RiskRule, v Value, res *Result) {
		res.Decisions = append(res.Decisions, ForcedDecision{
			Decision: strings.ToUpper(text(v)),
			Reason:   rule.Name,
			RuleID:   rule.ID,
			Priority: rule.Priority,
		})
	},
	domain.ActionRequireVerification: func(rule domain.RiskRule, v Value, res *Result) {
		res.RequiredVerifications = append(res.RequiredVerifications, Verification{Type: text(v), Reason: rule.Name, RuleID: rule.ID})
	},
	domain.ActionAdjustTerms: func(_ domain.RiskRule, v Value, res *Result) {
		if adj, ok := termAdjustment(v); ok {
			res.TermAdjustments = append(res.TermAdjustments, adj)
		}
	},
	domain.ActionBlock: func(rule domain.RiskRule, v Value, res *Result) {
		res.Blocked = true
		res.BlockReason = rule.Name
		if s := text(v); s != "" {
			res.BlockReason = s
		}
	},
}

// scoreNumber returns the finite number held by a score action value.
// Anything else leaves the score untouched.
func scoreNumber(v Value) (float64, bool) {
	f, ok := v.Numeric()
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func text(v Value) string {
	if v.IsNull() {
		return ""
	}
	return v.String()
}

// termAdjustment accepts an object or a string holding a JSON object.
func termAdjustment(v Value) (TermAdjustment, bool) {
	if s, ok := v.Str(); ok {
		parsed, err := ParseValue([]byte(s))
		if err != nil {
			return TermAdjustment{}, false
		}
		v = parsed
	}
	if v.Kind() != KindMap {
		return TermAdjustment{}, false
	}
	data, err := json.Marshal(v)
	if err != nil {
		return TermAdjustment{}, false
	}
	var adj TermAdjustment
	if err := json.Unmarshal(data, &adj); err != nil {
		return TermAdjustment{}, false
	}
	return adj, adj.MaxTermMonths != nil || adj.FactorRateAdjustment != nil ||
		adj.MaxFundingAmount != nil || adj.MaxAmountPercentage != nil
}
