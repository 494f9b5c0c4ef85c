package rules

import "testing"

func TestValuePath(t *testing.T) {
	ctx := mustContext(t, `{"a": {"b": {"c": 3}}, "list": [1, 2], "s": "x"}`)

	tests := []struct {
		path string
		want Value
	}{
		{"a.b.c", Number(3)},
		{"a.b", Map(map[string]Value{"c": Number(3)})},
		{"a.missing", Null()},
		{"s.deeper", Null()},
		{"list", List(Number(1), Number(2))},
	}
	for _, tt := range tests {
		if got := ctx.Lookup(tt.path); !got.Equal(tt.want) {
			t.Errorf("Lookup(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestContextOf(t *testing.T) {
	type facts struct {
		Score int    `json:"score"`
		Name  string `json:"name"`
	}
	ctx, err := ContextOf(facts{Score: 7, Name: "acme"})
	if err != nil {
		t.Fatalf("ContextOf: %v", err)
	}
	if n, _ := ctx.Lookup("score").Numeric(); n != 7 {
		t.Errorf("score = %v, want 7", n)
	}

	if _, err := FromJSON([]byte(`[1, 2]`)); err == nil {
		t.Error("expected error for non-object context")
	}
}

func TestValueEqual(t *testing.T) {
	tests := []struct {
		a, b Value
		want bool
	}{
		{Number(1), String("1"), true},
		{Number(1), String("one"), false},
		{Null(), Null(), true},
		{Null(), Number(0), false},
		{Bool(true), String("true"), false},
		{List(String("a")), List(String("a")), true},
	}
	for _, tt := range tests {
		if got := tt.a.Equal(tt.b); got != tt.want {
			t.Errorf("%v.Equal(%v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}
