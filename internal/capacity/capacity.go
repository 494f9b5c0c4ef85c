// Package capacity computes withhold capacity against the system-wide cap.
// Every offer entry point sizes payments through Cap so they share one ceiling.
package capacity

import (
	"github.com/opensource-finance/truerev/internal/domain"
	"github.com/opensource-finance/truerev/internal/money"
)

// Cap is the withhold ceiling for a configuration snapshot.
type Cap struct {
	businessDays float64
	maxWithhold  float64
}

// New creates a Cap from configuration.
func New(cfg domain.CapacityConfig) Cap {
	return Cap{
		businessDays: cfg.BusinessDaysPerMonth,
		maxWithhold:  cfg.MaxWithholdPercent,
	}
}

// BusinessDays returns the business days per month.
func (c Cap) BusinessDays() float64 {
	return c.businessDays
}

// Global returns the hard cap as a fraction.
func (c Cap) Global() float64 {
	return c.maxWithhold
}

// Limit returns the effective withhold fraction for an optional override.
// An override can only lower the ceiling.
func (c Cap) Limit(override *float64) float64 {
	if override == nil || *override <= 0 {
		return c.maxWithhold
	}
	return min(*override, c.maxWithhold)
}

// LimitPercent bounds a burden percentage (0-100 scale) by the global cap.
func (c Cap) LimitPercent(p float64) float64 {
	return min(p, c.maxWithhold*100)
}

// DailyRevenue converts monthly revenue to daily revenue.
func (c Cap) DailyRevenue(monthly float64) float64 {
	if c.businessDays <= 0 {
		return 0
	}
	return monthly / c.businessDays
}

// Snapshot computes capacity for monthly revenue and existing daily debt service.
// Negative existing debt counts as none, so remaining capacity never exceeds
// the maximum daily payment. Values are unrounded; call Rounded before
// returning them to callers.
func (c Cap) Snapshot(monthlyRevenue, existingDaily float64, override *float64) domain.CapacitySnapshot {
	existingDaily = max(0, existingDaily)
	limit := c.Limit(override)
	daily := c.DailyRevenue(monthlyRevenue)
	maxDaily := daily * limit
	remaining := max(0, maxDaily-existingDaily)

	current := 0.0
	if daily > 0 {
		current = existingDaily / daily * 100
	}

	return domain.CapacitySnapshot{
		MonthlyTrueRevenue:       monthlyRevenue,
		DailyTrueRevenue:         daily,
		MaxWithholdPercent:       limit * 100,
		MaxDailyPayment:          maxDaily,
		ExistingDailyPayment:     existingDaily,
		CurrentWithholdPercent:   current,
		RemainingDailyCapacity:   remaining,
		RemainingWithholdPercent: max(0, limit*100-current),
		AtCapacity:               remaining <= 0,
	}
}

// Fits reports whether adding newDaily keeps total withhold within the snapshot's ceiling.
func Fits(s domain.CapacitySnapshot, newDaily float64) bool {
	return newDaily <= s.RemainingDailyCapacity
}

// Rounded returns the snapshot with output rounding applied.
func Rounded(s domain.CapacitySnapshot) domain.CapacitySnapshot {
	return domain.CapacitySnapshot{
		MonthlyTrueRevenue:       money.Round2(s.MonthlyTrueRevenue),
		DailyTrueRevenue:         money.Round2(s.DailyTrueRevenue),
		MaxWithholdPercent:       money.Round2(s.MaxWithholdPercent),
		MaxDailyPayment:          money.Round2(s.MaxDailyPayment),
		ExistingDailyPayment:     money.Round2(s.ExistingDailyPayment),
		CurrentWithholdPercent:   money.Round2(s.CurrentWithholdPercent),
		RemainingDailyCapacity:   money.Round2(s.RemainingDailyCapacity),
		RemainingWithholdPercent: money.Round2(s.RemainingWithholdPercent),
		AtCapacity:               s.AtCapacity,
	}
}
