// Package stats provides the descriptive statistics used across the underwriting pipeline.
package stats

import (
	"math"
	"sort"

	"github.com/opensource-finance/truerev/internal/domain"
	"github.com/opensource-finance/truerev/internal/money"
)

// Trend directions.
const (
	DirectionIncreasing = "increasing"
	DirectionDecreasing = "decreasing"
	DirectionDeclining  = "declining"
	DirectionStable     = "stable"
)

// Volatility levels.
const (
	LevelLow    = "low"
	LevelMedium = "medium"
	LevelHigh   = "high"
)

// Trend is a least-squares trend over an ordered series.
type Trend struct {
	Direction     string  `json:"direction"`
	MonthlyChange float64 `json:"monthly_change"`
	Percentage    float64 `json:"percentage_change"`
}

// Volatility describes dispersion and trend of monthly revenue.
type Volatility struct {
	HasData                bool    `json:"has_data"`
	Message                string  `json:"message,omitempty"`
	MonthsAnalyzed         int     `json:"months_analyzed,omitempty"`
	AverageRevenue         float64 `json:"average_revenue,omitempty"`
	MinRevenue             float64 `json:"min_revenue,omitempty"`
	MaxRevenue             float64 `json:"max_revenue,omitempty"`
	StdDeviation           float64 `json:"std_deviation,omitempty"`
	Variance               float64 `json:"variance,omitempty"`
	CoefficientOfVariation float64 `json:"coefficient_of_variation,omitempty"`
	Level                  string  `json:"volatility_level,omitempty"`
	Trend                  *Trend  `json:"trend,omitempty"`
}

// Point is a monthly observation keyed by YYYY-MM.
type Point struct {
	MonthKey string  `json:"month"`
	Value    float64 `json:"value"`
}

// Deviation is a month that stands out from the series average.
type Deviation struct {
	MonthKey  string  `json:"month"`
	Deviation float64 `json:"deviation"`
}

// Seasonality describes month-of-year revenue patterns.
type Seasonality struct {
	HasData        bool        `json:"has_data"`
	HasSeasonality bool        `json:"has_seasonality"`
	Pattern        string      `json:"pattern"`
	PeakMonth      string      `json:"peak_month,omitempty"`
	TroughMonth    string      `json:"trough_month,omitempty"`
	SpreadRatio    float64     `json:"spread_ratio"`
	PeakMonths     []Deviation `json:"peak_months"`
	LowMonths      []Deviation `json:"low_months"`
}

// Decline compares recent months against the older average.
type Decline struct {
	HasData bool    `json:"has_data"`
	Percent float64 `json:"value"`
	Risk    string  `json:"risk"`
}

// Analyzer grades statistics against configured thresholds.
type Analyzer struct {
	cfg domain.StatsConfig
}

// NewAnalyzer creates a new statistics analyzer.
func NewAnalyzer(cfg domain.StatsConfig) *Analyzer {
	return &Analyzer{cfg: cfg}
}

// Mean returns the arithmetic mean, 0 for an empty series.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Variance returns the population variance.
func Variance(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := Mean(values)
	sum := 0.0
	for _, v := range values {
		sum += (v - mean) * (v - mean)
	}
	return sum / float64(len(values))
}

// StdDev returns the population standard deviation.
func StdDev(values []float64) float64 {
	return math.Sqrt(Variance(values))
}

// CoefficientOfVariation returns std/|mean|*100, 0 when the mean is 0.
func CoefficientOfVariation(values []float64) float64 {
	mean := Mean(values)
	if mean == 0 {
		return 0
	}
	return StdDev(values) / math.Abs(mean) * 100
}

// LinearSlope returns the least-squares slope of values against their index.
func LinearSlope(values []float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	xMean := float64(n-1) / 2
	yMean := Mean(values)
	num, den := 0.0, 0.0
	for i, v := range values {
		dx := float64(i) - xMean
		num += dx * (v - yMean)
		den += dx * dx
	}
	if den == 0 {
		return 0
	}
	return num / den
}

// LinearTrend returns the slope of the series with its direction.
// A slope within StableTrendPercent of the mean per period is stable.
func (a *Analyzer) LinearTrend(values []float64) Trend {
	slope := LinearSlope(values)
	mean := Mean(values)

	pct := 0.0
	if mean > 0 {
		pct = slope / mean * 100
	}

	direction := DirectionStable
	band := math.Abs(mean) * a.cfg.StableTrendPercent / 100
	switch {
	case slope > band:
		direction = DirectionIncreasing
	case slope < -band:
		direction = DirectionDecreasing
	}

	return Trend{
		Direction:     direction,
		MonthlyChange: money.Round2(slope),
		Percentage:    money.Round2(pct),
	}
}

// SeriesChange returns the fitted change across the whole series relative to its first value.
// Directions are increasing, declining or stable beyond SeriesChangeMinimum percent.
func (a *Analyzer) SeriesChange(values []float64) Trend {
	n := len(values)
	if n < 2 {
		return Trend{Direction: DirectionStable}
	}
	slope := LinearSlope(values)
	first := values[0]
	if first <= 0 {
		first = 1
	}
	pct := slope * float64(n-1) / first * 100

	direction := DirectionStable
	switch {
	case pct > a.cfg.SeriesChangeMinimum:
		direction = DirectionIncreasing
	case pct < -a.cfg.SeriesChangeMinimum:
		direction = DirectionDeclining
	}
	return Trend{Direction: direction, MonthlyChange: slope, Percentage: pct}
}

// Volatility computes dispersion and trend over monthly revenue values. Needs two or more values.
func (a *Analyzer) Volatility(values []float64) Volatility {
	if len(values) < 2 {
		return Volatility{
			HasData: false,
			Message: "Insufficient data for volatility analysis (need 2+ months)",
		}
	}

	mean := Mean(values)
	variance := Variance(values)
	std := math.Sqrt(variance)
	cv := 0.0
	if mean > 0 {
		cv = std / mean * 100
	}

	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = min(lo, v)
		hi = max(hi, v)
	}

	level := LevelLow
	switch {
	case cv > a.cfg.HighVolatilityCV:
		level = LevelHigh
	case cv > a.cfg.MediumVolatilityCV:
		level = LevelMedium
	}

	trend := a.LinearTrend(values)
	return Volatility{
		HasData:                true,
		MonthsAnalyzed:         len(values),
		AverageRevenue:         money.Round2(mean),
		MinRevenue:             money.Round2(lo),
		MaxRevenue:             money.Round2(hi),
		StdDeviation:           money.Round2(std),
		Variance:               money.Round2(variance),
		CoefficientOfVariation: money.Round2(cv),
		Level:                  level,
		Trend:                  &trend,
	}
}

// Seasonality averages values per calendar month and flags spreads above SeasonalSpreadRatio.
func (a *Analyzer) Seasonality(points []Point) Seasonality {
	out := Seasonality{Pattern: "insufficient_data", PeakMonths: []Deviation{}, LowMonths: []Deviation{}}
	if len(points) < a.cfg.SeasonalMinMonths || len(points) == 0 {
		return out
	}
	out.HasData = true

	values := make([]float64, len(points))
	byMonth := make(map[string][]float64)
	for i, p := range points {
		values[i] = p.Value
		if len(p.MonthKey) >= 7 {
			mm := p.MonthKey[5:7]
			byMonth[mm] = append(byMonth[mm], p.Value)
		}
	}
	mean := Mean(values)
	base := mean
	if base <= 0 {
		base = 1
	}

	months := make([]string, 0, len(byMonth))
	for mm := range byMonth {
		months = append(months, mm)
	}
	sort.Strings(months)

	var peakAvg, troughAvg float64
	for i, mm := range months {
		avg := Mean(byMonth[mm])
		if i == 0 || avg > peakAvg {
			peakAvg, out.PeakMonth = avg, mm
		}
		if i == 0 || avg < troughAvg {
			troughAvg, out.TroughMonth = avg, mm
		}
	}
	out.SpreadRatio = money.Round2((peakAvg - troughAvg) / base)

	for _, p := range points {
		dev := (p.Value - mean) / base * 100
		switch {
		case dev > a.cfg.SeasonalDeviationPercent:
			out.PeakMonths = append(out.PeakMonths, Deviation{MonthKey: p.MonthKey, Deviation: money.Round2(dev)})
		case dev < -a.cfg.SeasonalDeviationPercent:
			out.LowMonths = append(out.LowMonths, Deviation{MonthKey: p.MonthKey, Deviation: money.Round2(dev)})
		}
	}

	out.HasSeasonality = out.SpreadRatio > a.cfg.SeasonalSpreadRatio
	out.Pattern = "stable"
	switch {
	case float64(len(out.PeakMonths)) > float64(len(points))*a.cfg.HighlyVariablePeakShare:
		out.Pattern = "highly_variable"
	case len(out.PeakMonths) > 0 && len(out.LowMonths) > 0:
		out.Pattern = "seasonal"
	}
	return out
}

// RevenueDecline compares the average of the most recent months with the older average.
func (a *Analyzer) RevenueDecline(values []float64) Decline {
	recent := a.cfg.DeclineRecentMonths
	if recent <= 0 || len(values) < recent {
		return Decline{Risk: LevelLow}
	}
	recentAvg := Mean(values[len(values)-recent:])
	older := values[:len(values)-recent]

	// With no older months the older average is 0 and no decline is reported.
	olderSum := 0.0
	for _, v := range older {
		olderSum += v
	}
	olderAvg := olderSum / float64(max(1, len(older)))

	pct := 0.0
	if olderAvg > 0 {
		pct = (olderAvg - recentAvg) / olderAvg * 100
	}

	risk := LevelLow
	switch {
	case pct > a.cfg.DeclineHighPercent:
		risk = LevelHigh
	case pct > a.cfg.DeclineMediumPercent:
		risk = LevelMedium
	}
	return Decline{HasData: true, Percent: money.Round2(pct), Risk: risk}
}
