package money

import "testing"

func TestRound(t *testing.T) {
	tests := []struct {
		name   string
		in     float64
		places int32
		want   float64
	}{
		{"half up", 1.005, 2, 1.01},
		{"negative half", -2.345, 2, -2.35},
		{"factor rate", 1.234567, 4, 1.2346},
		{"integer", 42, 2, 42},
		{"zero", 0, 2, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Round(tt.in, tt.places); got != tt.want {
				t.Errorf("Round(%v, %d) = %v, want %v", tt.in, tt.places, got, tt.want)
			}
		})
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{50000, "50,000"},
		{999, "999"},
		{1234567.4, "1,234,567"},
		{-5000, "-5,000"},
	}
	for _, tt := range tests {
		if got := Format(tt.in); got != tt.want {
			t.Errorf("Format(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormat2(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{1234.5, "1,234.50"},
		{5000, "5,000.00"},
		{12.345, "12.35"},
		{0, "0.00"},
	}
	for _, tt := range tests {
		if got := Format2(tt.in); got != tt.want {
			t.Errorf("Format2(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestClamp(t *testing.T) {
	if got := Clamp(1.8, 1.1, 1.65); got != 1.65 {
		t.Errorf("Clamp high = %v", got)
	}
	if got := Clamp(0.05, 0.1, 1); got != 0.1 {
		t.Errorf("Clamp low = %v", got)
	}
	if got := ClampInt(120, 0, 100); got != 100 {
		t.Errorf("ClampInt = %v", got)
	}
}
