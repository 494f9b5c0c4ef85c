package rules

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/opensource-finance/truerev/internal/domain"
)

// compiledCondition is a condition with its operand decoded once.
type compiledCondition struct {
	cond    domain.RuleCondition
	operand Value
	re      *regexp.Regexp
}

func compileCondition(c domain.RuleCondition) (compiledCondition, error) {
	operand, err := ParseValue(c.Value)
	if err != nil {
		return compiledCondition{}, fmt.Errorf("invalid value: %w", err)
	}
	cc := compiledCondition{cond: c, operand: operand}
	if c.Operator == domain.OpRegex {
		pattern, ok := operand.Str()
		if !ok {
			return cc, fmt.Errorf("regex value must be a string")
		}
		re, err := compileRegex(pattern)
		if err != nil {
			return cc, fmt.Errorf("invalid regex pattern: %w", err)
		}
		cc.re = re
	}
	return cc, nil
}

// compileRegex accepts plain patterns and delimited /pattern/flags forms.
func compileRegex(pattern string) (*regexp.Regexp, error) {
	if len(pattern) >= 2 && pattern[0] == '/' {
		if end := strings.LastIndexByte(pattern, '/'); end > 0 {
			body, flags := pattern[1:end], pattern[end+1:]
			prefix := ""
			for _, f := range flags {
				switch f {
				case 'i', 'm', 's':
					prefix += string(f)
				case 'u':
				default:
					return nil, fmt.Errorf("unsupported regex flag %q", f)
				}
			}
			if prefix != "" {
				body = "(?" + prefix + ")" + body
			}
			return regexp.Compile(body)
		}
	}
	return regexp.Compile(pattern)
}

// eval applies the operator. Type mismatches evaluate false.
func (cc compiledCondition) eval(field Value) bool {
	op := cc.operand

	switch cc.cond.Operator {
	case domain.OpEq:
		return field.Equal(op)
	case domain.OpNeq:
		return !field.Equal(op)
	case domain.OpGt, domain.OpGte, domain.OpLt, domain.OpLte:
		a, ok := field.Numeric()
		if !ok {
			return false
		}
		b, ok := op.Numeric()
		if !ok {
			return false
		}
		switch cc.cond.Operator {
		case domain.OpGt:
			return a > b
		case domain.OpGte:
			return a >= b
		case domain.OpLt:
			return a < b
		default:
			return a <= b
		}
	case domain.OpIn, domain.OpNotIn:
		if op.Kind() != KindList {
			return false
		}
		found := false
		for _, item := range op.Items() {
			if field.Equal(item) {
				found = true
				break
			}
		}
		return found == (cc.cond.Operator == domain.OpIn)
	case domain.OpContains, domain.OpNotContains:
		s, ok := field.Str()
		if !ok {
			return false
		}
		needle, ok := op.Str()
		if !ok {
			return false
		}
		has := strings.Contains(strings.ToLower(s), strings.ToLower(needle))
		return has == (cc.cond.Operator == domain.OpContains)
	case domain.OpBetween:
		bounds := op.Items()
		if op.Kind() != KindList || len(bounds) != 2 {
			return false
		}
		v, ok := field.Numeric()
		if !ok {
			return false
		}
		lo, ok1 := bounds[0].Numeric()
		hi, ok2 := bounds[1].Numeric()
		return ok1 && ok2 && v >= lo && v <= hi
	case domain.OpIsNull:
		return field.IsNull()
	case domain.OpIsNotNull:
		return !field.IsNull()
	case domain.OpRegex:
		s, ok := field.Str()
		return ok && cc.re != nil && cc.re.MatchString(s)
	default:
		return false
	}
}
