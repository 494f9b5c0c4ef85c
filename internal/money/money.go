// Package money rounds monetary values and percentages at output boundaries.
// Internal arithmetic stays in float64; rounding happens once, here.
package money

import "github.com/shopspring/decimal"

// Round rounds v half away from zero to the given decimal places.
func Round(v float64, places int32) float64 {
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}

// Round2 rounds a monetary amount or percentage to cents.
func Round2(v float64) float64 {
	return Round(v, 2)
}

// Round4 rounds a factor rate.
func Round4(v float64) float64 {
	return Round(v, 4)
}

// Format renders an amount with thousands separators and no decimals, e.g. 50000 -> "50,000".
func Format(v float64) string {
	return commas(decimal.NewFromFloat(v).Round(0).StringFixed(0))
}

// Format2 renders an amount with thousands separators and two decimals, e.g. 1234.5 -> "1,234.50".
func Format2(v float64) string {
	s := decimal.NewFromFloat(v).Round(2).StringFixed(2)
	return commas(s[:len(s)-3]) + s[len(s)-3:]
}

func commas(s string) string {
	neg := false
	if len(s) > 0 && s[0] == '-' {
		neg = true
		s = s[1:]
	}
	n := len(s)
	if n <= 3 {
		if neg {
			return "-" + s
		}
		return s
	}
	out := make([]byte, 0, n+n/3)
	pre := n % 3
	if pre > 0 {
		out = append(out, s[:pre]...)
	}
	for i := pre; i < n; i += 3 {
		if len(out) > 0 {
			out = append(out, ',')
		}
		out = append(out, s[i:i+3]...)
	}
	if neg {
		return "-" + string(out)
	}
	return string(out)
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ClampInt bounds v to [lo, hi].
func ClampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
