package rules

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Kind is the dynamic type of a Value.
type Kind int

const (
	KindNull Kind = iota
	KindNumber
	KindString
	KindBool
	KindList
	KindMap
)

// Value is a dynamically typed datum from a rule context or a condition operand.
// The zero Value is null.
type Value struct {
	kind Kind
	num  float64
	str  string
	b    bool
	list []Value
	m    map[string]Value
}

// Null returns the null value.
func Null() Value { return Value{} }

// Number wraps a float.
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// String wraps a string.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Bool wraps a bool.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// List wraps a list of values.
func List(items ...Value) Value { return Value{kind: KindList, list: items} }

// Map wraps a map of values.
func Map(m map[string]Value) Value { return Value{kind: KindMap, m: m} }

// Kind returns the dynamic type.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Items returns the elements of a list value.
func (v Value) Items() []Value { return v.list }

// Str returns the string content and whether v is a string.
func (v Value) Str() (string, bool) { return v.str, v.kind == KindString }

// Numeric returns the numeric content of numbers and numeric strings.
func (v Value) Numeric() (float64, bool) {
	switch v.kind {
	case KindNumber:
		return v.num, true
	case KindString:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.str), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// Field returns the named entry of a map value, or null.
func (v Value) Field(name string) Value {
	if v.kind != KindMap {
		return Null()
	}
	return v.m[name]
}

// Path resolves a dot-separated path. Any missing segment yields null.
func (v Value) Path(path string) Value {
	cur := v
	for _, seg := range strings.Split(path, ".") {
		if cur.kind != KindMap {
			return Null()
		}
		next, ok := cur.m[seg]
		if !ok {
			return Null()
		}
		cur = next
	}
	return cur
}

// Equal compares loosely: numbers and numeric strings compare by value.
func (v Value) Equal(o Value) bool {
	if v.kind == KindNumber || o.kind == KindNumber {
		a, ok1 := v.Numeric()
		b, ok2 := o.Numeric()
		return ok1 && ok2 && a == b
	}
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindString:
		return v.str == o.str
	case KindBool:
		return v.b == o.b
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.m) != len(o.m) {
			return false
		}
		for k, a := range v.m {
			b, ok := o.m[k]
			if !ok || !a.Equal(b) {
				return false
			}
		}
		return true
	}
	return false
}

// Native converts the value to plain Go types for CEL activations and JSON.
func (v Value) Native() any {
	switch v.kind {
	case KindNumber:
		return v.num
	case KindString:
		return v.str
	case KindBool:
		return v.b
	case KindList:
		out := make([]any, len(v.list))
		for i, item := range v.list {
			out[i] = item.Native()
		}
		return out
	case KindMap:
		out := make(map[string]any, len(v.m))
		for k, item := range v.m {
			out[k] = item.Native()
		}
		return out
	default:
		return nil
	}
}

// MarshalJSON encodes the native form.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Native())
}

// UnmarshalJSON decodes any JSON document.
func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := ParseValue(data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindString:
		return v.str
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindMap:
		keys := make([]string, 0, len(v.m))
		for k := range v.m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return fmt.Sprintf("map%v", keys)
	default:
		b, _ := json.Marshal(v.Native())
		return string(b)
	}
}

// ParseValue decodes raw JSON into a Value. Empty input is null.
func ParseValue(data []byte) (Value, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Null(), nil
	}
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return Null(), err
	}
	return FromAny(raw), nil
}

// FromAny converts decoded JSON or plain Go data into a Value.
// Unsupported types become null.
func FromAny(raw any) Value {
	switch x := raw.(type) {
	case nil:
		return Null()
	case Value:
		return x
	case float64:
		return Number(x)
	case float32:
		return Number(float64(x))
	case int:
		return Number(float64(x))
	case int64:
		return Number(float64(x))
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return String(x.String())
		}
		return Number(f)
	case string:
		return String(x)
	case bool:
		return Bool(x)
	case []any:
		items := make([]Value, len(x))
		for i, item := range x {
			items[i] = FromAny(item)
		}
		return List(items...)
	case []string:
		items := make([]Value, len(x))
		for i, item := range x {
			items[i] = String(item)
		}
		return List(items...)
	case map[string]any:
		m := make(map[string]Value, len(x))
		for k, item := range x {
			m[k] = FromAny(item)
		}
		return Map(m)
	default:
		return Null()
	}
}

// Context is the read-only data a rule set is evaluated against.
type Context struct {
	root Value
}

// NewContext wraps a map value as a rule context.
func NewContext(root Value) Context {
	return Context{root: root}
}

// FromJSON builds a context from a JSON object.
func FromJSON(data []byte) (Context, error) {
	v, err := ParseValue(data)
	if err != nil {
		return Context{}, fmt.Errorf("decode rule context: %w", err)
	}
	if v.kind != KindMap {
		return Context{}, fmt.Errorf("rule context must be a JSON object")
	}
	return Context{root: v}, nil
}

// ContextOf builds a context from any JSON-serializable value, typically a typed facts struct.
func ContextOf(facts any) (Context, error) {
	data, err := json.Marshal(facts)
	if err != nil {
		return Context{}, fmt.Errorf("encode rule context: %w", err)
	}
	return FromJSON(data)
}

// Lookup resolves a dot path in the context.
func (c Context) Lookup(path string) Value {
	return c.root.Path(path)
}

// Root returns the context as a map value.
func (c Context) Root() Value {
	return c.root
}
