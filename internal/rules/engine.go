// Package rules provides the custom underwriting rule engine.
package rules

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/opensource-finance/truerev/internal/domain"
)

// Engine evaluates risk rules against a data context.
type Engine struct {
	mu   sync.RWMutex
	env  *cel.Env
	snap *snapshot
}

// snapshot is an immutable, priority-ordered set of compiled rules.
type snapshot struct {
	rules []*CompiledRule
}

// CompiledRule holds a rule with its conditions and expression pre-compiled.
type CompiledRule struct {
	Rule       domain.RiskRule
	conditions []compiledCondition
	value      Value
	program    cel.Program
}

// NewEngine creates a new rule engine with an empty rule set.
func NewEngine() (*Engine, error) {
	// Expressions see the whole context as `data` plus a few top-level shortcuts.
	env, err := cel.NewEnv(
		cel.Variable("data", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("risk_score", cel.DoubleType),
		cel.Variable("monthly_revenue", cel.DoubleType),
		cel.Variable("requested_amount", cel.DoubleType),
		cel.Variable("industry", cel.StringType),
		cel.CrossTypeNumericComparisons(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{env: env, snap: &snapshot{}}, nil
}

// Validation lists the structural problems of a rule.
type Validation struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// ValidateRule checks a rule's structure and compiles it without loading it.
func (e *Engine) ValidateRule(rule *domain.RiskRule) Validation {
	errs := []string{}
	if rule == nil {
		return Validation{Errors: []string{"Rule is required"}}
	}

	if strings.TrimSpace(rule.Name) == "" {
		errs = append(errs, "Rule name is required")
	}
	if len(rule.Conditions) == 0 && strings.TrimSpace(rule.Expression) == "" {
		errs = append(errs, "At least one condition is required")
	}
	for i, c := range rule.Conditions {
		n := i + 1
		if c.Field == "" {
			errs = append(errs, fmt.Sprintf("Condition %d: Field is required", n))
		}
		if c.Operator == "" {
			errs = append(errs, fmt.Sprintf("Condition %d: Operator is required", n))
			continue
		}
		if !knownOperator(c.Operator) {
			errs = append(errs, fmt.Sprintf("Condition %d: Invalid operator", n))
			continue
		}
		if c.Operator.NeedsValue() && isNullJSON(c.Value) {
			errs = append(errs, fmt.Sprintf("Condition %d: Value is required", n))
			continue
		}
		if _, err := compileCondition(c); err != nil {
			errs = append(errs, fmt.Sprintf("Condition %d: %v", n, err))
		}
	}
	if rule.Logic != "" && rule.Logic != domain.LogicAnd && rule.Logic != domain.LogicOr {
		errs = append(errs, "Logic must be AND or OR")
	}
	if rule.Action == "" {
		errs = append(errs, "Action is required")
	} else if !rule.Action.Valid() {
		errs = append(errs, "Invalid action type")
	} else if rule.Action.NeedsNumber() && !numericActionValue(rule.ActionValue) {
		errs = append(errs, "Action value must be a number")
	}
	if rule.Expression != "" {
		if _, err := e.compileExpression(rule.Expression); err != nil {
			errs = append(errs, fmt.Sprintf("Expression: %v", err))
		}
	}

	return Validation{Valid: len(errs) == 0, Errors: errs}
}

func knownOperator(op domain.RuleOperator) bool {
	for _, known := range domain.Operators {
		if op == known {
			return true
		}
	}
	return false
}

func numericActionValue(raw []byte) bool {
	v, err := ParseValue(raw)
	if err != nil {
		return false
	}
	_, ok := scoreNumber(v)
	return ok
}

func isNullJSON(raw []byte) bool {
	s := strings.TrimSpace(string(raw))
	return s == "" || s == "null"
}

// LoadRule compiles and adds a rule, replacing any rule with the same ID.
func (e *Engine) LoadRule(rule domain.RiskRule) error {
	compiled, err := e.compileRule(rule)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	next := make([]*CompiledRule, 0, len(e.snap.rules)+1)
	for _, r := range e.snap.rules {
		if r.Rule.ID != rule.ID {
			next = append(next, r)
		}
	}
	next = append(next, compiled)
	e.snap = newSnapshot(next)
	return nil
}

// ReloadRules compiles the active rules and swaps them in as one snapshot.
// On any compile failure the current snapshot is kept.
func (e *Engine) ReloadRules(rules []domain.RiskRule) error {
	compiled := make([]*CompiledRule, 0, len(rules))
	for _, rule := range rules {
		if !rule.Active {
			continue
		}
		c, err := e.compileRule(rule)
		if err != nil {
			return err
		}
		compiled = append(compiled, c)
	}

	e.mu.Lock()
	e.snap = newSnapshot(compiled)
	e.mu.Unlock()

	slog.Info("risk rules reloaded", "count", len(compiled))
	return nil
}

func newSnapshot(rules []*CompiledRule) *snapshot {
	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].Rule.Priority > rules[j].Rule.Priority
	})
	return &snapshot{rules: rules}
}

// RulesCount returns the number of loaded rules.
func (e *Engine) RulesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.snap.rules)
}

// GetLoadedRules returns the loaded rules in evaluation order.
func (e *Engine) GetLoadedRules() []domain.RiskRule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]domain.RiskRule, len(e.snap.rules))
	for i, r := range e.snap.rules {
		out[i] = r.Rule
	}
	return out
}

// Close drops all loaded rules.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.snap = &snapshot{}
	return nil
}

// Evaluate folds every matching rule, in priority order, into one result.
// A block does not stop the fold; later rules are still recorded.
func (e *Engine) Evaluate(ctx Context) Result {
	e.mu.RLock()
	snap := e.snap
	e.mu.RUnlock()

	activation := e.activation(ctx)
	res := newResult()
	for _, r := range snap.rules {
		if !r.matches(ctx, activation) {
			continue
		}
		res.MatchedRules = append(res.MatchedRules, MatchedRule{ID: r.Rule.ID, Name: r.Rule.Name, Action: r.Rule.Action})
		r.apply(&res)
	}
	res.TotalScoreAdjustment = sum(res.ScoreAdjustments)
	return res
}

func sum(xs []int) int {
	total := 0
	for _, x := range xs {
		total += x
	}
	return total
}

func (r *CompiledRule) apply(res *Result) {
	if h, ok := actionHandlers[r.Rule.Action]; ok {
		h(r.Rule, r.value, res)
	}
}

// matches applies the rule logic to its conditions, then ANDs the expression.
func (r *CompiledRule) matches(ctx Context, activation map[string]any) bool {
	if len(r.conditions) == 0 && r.program == nil {
		return false
	}

	if len(r.conditions) > 0 {
		matched := r.Rule.Logic != domain.LogicOr
		for _, c := range r.conditions {
			ok := c.eval(ctx.Lookup(c.cond.Field))
			if r.Rule.Logic == domain.LogicOr {
				if ok {
					matched = true
					break
				}
				matched = false
			} else if !ok {
				matched = false
				break
			}
		}
		if !matched {
			return false
		}
	}

	if r.program != nil {
		return evalProgram(r.program, activation, r.Rule.ID)
	}
	return true
}

func evalProgram(p cel.Program, activation map[string]any, ruleID string) bool {
	out, _, err := p.Eval(activation)
	if err != nil {
		slog.Debug("rule expression evaluation failed", "rule_id", ruleID, "error", err)
		return false
	}
	b, ok := out.(types.Bool)
	return ok && bool(b)
}

func (e *Engine) activation(ctx Context) map[string]any {
	data, _ := ctx.Root().Native().(map[string]any)
	if data == nil {
		data = map[string]any{}
	}
	num := func(path string) float64 {
		f, _ := ctx.Lookup(path).Numeric()
		return f
	}
	industry, _ := ctx.Lookup("industry").Str()

	return map[string]any{
		"data":             data,
		"risk_score":       num("risk_score"),
		"monthly_revenue":  num("monthly_revenue"),
		"requested_amount": num("requested_amount"),
		"industry":         industry,
	}
}

func (e *Engine) compileRule(rule domain.RiskRule) (*CompiledRule, error) {
	if !rule.Action.Valid() {
		return nil, fmt.Errorf("rule %s: invalid action %q", rule.ID, rule.Action)
	}

	compiled := &CompiledRule{Rule: rule}
	for i, c := range rule.Conditions {
		cc, err := compileCondition(c)
		if err != nil {
			return nil, fmt.Errorf("rule %s: condition %d: %w", rule.ID, i+1, err)
		}
		compiled.conditions = append(compiled.conditions, cc)
	}

	v, err := ParseValue(rule.ActionValue)
	if err != nil {
		return nil, fmt.Errorf("rule %s: invalid action value: %w", rule.ID, err)
	}
	if _, ok := scoreNumber(v); rule.Action.NeedsNumber() && !ok {
		return nil, fmt.Errorf("rule %s: %s needs a numeric action value", rule.ID, rule.Action)
	}
	compiled.value = v

	if rule.Expression != "" {
		p, err := e.compileExpression(rule.Expression)
		if err != nil {
			return nil, fmt.Errorf("failed to compile rule %s: %w", rule.ID, err)
		}
		compiled.program = p
	}
	return compiled, nil
}

func (e *Engine) compileExpression(expr string) (cel.Program, error) {
	ast, issues := e.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("expression must return bool, got %s", ast.OutputType())
	}
	return e.env.Program(ast)
}
