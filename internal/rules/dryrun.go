package rules

import "github.com/opensource-finance/truerev/internal/domain"

// ConditionResult is the per-condition detail of a dry run.
type ConditionResult struct {
	Field    string              `json:"field"`
	Operator domain.RuleOperator `json:"operator"`
	Expected Value               `json:"expected"`
	Actual   Value               `json:"actual"`
	Matched  bool                `json:"matched"`
}

// TestResult is the outcome of dry-running one rule.
type TestResult struct {
	Matched             bool              `json:"matched"`
	Results             Result            `json:"results"`
	EvaluatedConditions []ConditionResult `json:"evaluated_conditions"`
	ExpressionMatched   *bool             `json:"expression_matched,omitempty"`
	Error               string            `json:"error,omitempty"`
}

// TestRule evaluates a single rule against sample data without loading it.
func (e *Engine) TestRule(rule domain.RiskRule, ctx Context) TestResult {
	out := TestResult{Results: newResult(), EvaluatedConditions: []ConditionResult{}}

	compiled, err := e.compileRule(rule)
	if err != nil {
		out.Error = err.Error()
		return out
	}

	activation := e.activation(ctx)
	for _, c := range compiled.conditions {
		actual := ctx.Lookup(c.cond.Field)
		out.EvaluatedConditions = append(out.EvaluatedConditions, ConditionResult{
			Field:    c.cond.Field,
			Operator: c.cond.Operator,
			Expected: c.operand,
			Actual:   actual,
			Matched:  c.eval(actual),
		})
	}
	if compiled.program != nil {
		ok := evalProgram(compiled.program, activation, rule.ID)
		out.ExpressionMatched = &ok
	}

	out.Matched = compiled.matches(ctx, activation)
	if out.Matched {
		out.Results.MatchedRules = append(out.Results.MatchedRules, MatchedRule{ID: rule.ID, Name: rule.Name, Action: rule.Action})
		compiled.apply(&out.Results)
		out.Results.TotalScoreAdjustment = sum(out.Results.ScoreAdjustments)
	}
	return out
}
