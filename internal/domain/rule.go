package domain

import (
	"encoding/json"
	"time"
)

// RiskRule is a user-authored underwriting rule evaluated by the custom rule engine.
type RiskRule struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenant_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	Conditions []RuleCondition `json:"conditions"`
	Logic      RuleLogic       `json:"logic"`

	// Expression is an optional CEL boolean ANDed with the conditions.
	Expression string `json:"expression,omitempty"`

	Action      RuleAction      `json:"action"`
	ActionValue json.RawMessage `json:"action_value,omitempty"`

	Priority int    `json:"priority"`
	Severity string `json:"severity,omitempty"`
	Active   bool   `json:"is_active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RuleCondition compares a dot-path field of the data context against a value.
type RuleCondition struct {
	Field    string          `json:"field"`
	Operator RuleOperator    `json:"operator"`
	Value    json.RawMessage `json:"value,omitempty"`
}

// RuleLogic joins a rule's conditions.
type RuleLogic string

const (
	LogicAnd RuleLogic = "AND"
	LogicOr  RuleLogic = "OR"
)

// RuleOperator is a condition comparison.
type RuleOperator string

const (
	OpEq          RuleOperator = "eq"
	OpNeq         RuleOperator = "neq"
	OpGt          RuleOperator = "gt"
	OpGte         RuleOperator = "gte"
	OpLt          RuleOperator = "lt"
	OpLte         RuleOperator = "lte"
	OpIn          RuleOperator = "in"
	OpNotIn       RuleOperator = "not_in"
	OpContains    RuleOperator = "contains"
	OpNotContains RuleOperator = "not_contains"
	OpBetween     RuleOperator = "between"
	OpIsNull      RuleOperator = "is_null"
	OpIsNotNull   RuleOperator = "is_not_null"
	OpRegex       RuleOperator = "regex"
)

// Operators lists every supported operator.
var Operators = []RuleOperator{
	OpEq, OpNeq, OpGt, OpGte, OpLt, OpLte, OpIn, OpNotIn,
	OpContains, OpNotContains, OpBetween, OpIsNull, OpIsNotNull, OpRegex,
}

// NeedsValue reports whether the operator compares against a value.
func (o RuleOperator) NeedsValue() bool {
	return o != OpIsNull && o != OpIsNotNull
}

// RuleAction is what a matching rule does.
type RuleAction string

const (
	ActionAdjustScore         RuleAction = "adjust_score"
	ActionSetScore            RuleAction = "set_score"
	ActionMultiplyScore       RuleAction = "multiply_score"
	ActionAddFlag             RuleAction = "add_flag"
	ActionSetDecision         RuleAction = "set_decision"
	ActionRequireVerification RuleAction = "require_verification"
	ActionAdjustTerms         RuleAction = "adjust_terms"
	ActionBlock               RuleAction = "block"
)

// RuleActions lists every supported action.
var RuleActions = []RuleAction{
	ActionAdjustScore, ActionSetScore, ActionMultiplyScore, ActionAddFlag,
	ActionSetDecision, ActionRequireVerification, ActionAdjustTerms, ActionBlock,
}

// Valid reports whether the action is one of the supported kinds.
func (a RuleAction) Valid() bool {
	for _, known := range RuleActions {
		if a == known {
			return true
		}
	}
	return false
}

// NeedsNumber reports whether the action value must be a finite number.
func (a RuleAction) NeedsNumber() bool {
	return a == ActionAdjustScore || a == ActionSetScore || a == ActionMultiplyScore
}
