package stats

import (
	"fmt"
	"math"
	"testing"

	"github.com/opensource-finance/truerev/internal/domain"
)

func newTestAnalyzer() *Analyzer {
	return NewAnalyzer(domain.DefaultUnderwritingConfig().Stats)
}

func approx(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}

func TestHelpers(t *testing.T) {
	values := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	if got := Mean(values); got != 5 {
		t.Errorf("Mean = %v, want 5", got)
	}
	if got := Variance(values); got != 4 {
		t.Errorf("Variance = %v, want 4", got)
	}
	if got := StdDev(values); got != 2 {
		t.Errorf("StdDev = %v, want 2", got)
	}
	if got := CoefficientOfVariation(values); got != 40 {
		t.Errorf("CoefficientOfVariation = %v, want 40", got)
	}
	if got := CoefficientOfVariation([]float64{0, 0}); got != 0 {
		t.Errorf("CoefficientOfVariation of zeros = %v, want 0", got)
	}
	if got := LinearSlope([]float64{1, 2, 3, 4}); got != 1 {
		t.Errorf("LinearSlope = %v, want 1", got)
	}
	if got := Mean(nil); got != 0 {
		t.Errorf("Mean(nil) = %v", got)
	}
}

func TestVolatility(t *testing.T) {
	a := newTestAnalyzer()

	t.Run("insufficient data", func(t *testing.T) {
		v := a.Volatility([]float64{1000})
		if v.HasData {
			t.Error("expected HasData=false")
		}
		if v.Message == "" {
			t.Error("expected a message")
		}
	})

	t.Run("growing revenue", func(t *testing.T) {
		v := a.Volatility([]float64{10000, 12000, 14000})
		if !v.HasData || v.MonthsAnalyzed != 3 {
			t.Fatalf("unexpected result %+v", v)
		}
		if v.AverageRevenue != 12000 {
			t.Errorf("AverageRevenue = %v", v.AverageRevenue)
		}
		if !approx(v.StdDeviation, 1632.99, 0.01) {
			t.Errorf("StdDeviation = %v", v.StdDeviation)
		}
		if !approx(v.CoefficientOfVariation, 13.61, 0.01) {
			t.Errorf("CV = %v", v.CoefficientOfVariation)
		}
		if v.Level != LevelLow {
			t.Errorf("Level = %s, want low", v.Level)
		}
		if v.Trend.Direction != DirectionIncreasing || v.Trend.MonthlyChange != 2000 {
			t.Errorf("Trend = %+v", v.Trend)
		}
		if !approx(v.Trend.Percentage, 16.67, 0.001) {
			t.Errorf("Trend.Percentage = %v", v.Trend.Percentage)
		}
	})

	t.Run("high volatility", func(t *testing.T) {
		v := a.Volatility([]float64{5000, 20000, 5000, 20000})
		if v.Level != LevelHigh {
			t.Errorf("Level = %s, want high (cv %v)", v.Level, v.CoefficientOfVariation)
		}
	})

	t.Run("small slope is stable", func(t *testing.T) {
		v := a.Volatility([]float64{10000, 10050})
		if v.Trend.Direction != DirectionStable {
			t.Errorf("Direction = %s, want stable", v.Trend.Direction)
		}
	})
}

func TestSeriesChange(t *testing.T) {
	a := newTestAnalyzer()
	tr := a.SeriesChange([]float64{100, 90, 80})
	if tr.Direction != DirectionDeclining || !approx(tr.Percentage, -20, 1e-9) {
		t.Errorf("SeriesChange = %+v", tr)
	}
	tr = a.SeriesChange([]float64{100, 102, 104})
	if tr.Direction != DirectionStable {
		t.Errorf("4%% growth should be stable, got %+v", tr)
	}
	if got := a.SeriesChange([]float64{5}); got.Direction != DirectionStable {
		t.Errorf("single value = %+v", got)
	}
}

func TestSeasonality(t *testing.T) {
	a := newTestAnalyzer()

	t.Run("insufficient data", func(t *testing.T) {
		s := a.Seasonality([]Point{{"2024-01", 1}, {"2024-02", 2}})
		if s.HasData || s.Pattern != "insufficient_data" {
			t.Errorf("Seasonality = %+v", s)
		}
	})

	t.Run("december peak", func(t *testing.T) {
		points := make([]Point, 0, 12)
		for m := 1; m <= 12; m++ {
			v := 100.0
			if m == 12 {
				v = 200
			}
			points = append(points, Point{MonthKey: fmt.Sprintf("2023-%02d", m), Value: v})
		}
		s := a.Seasonality(points)
		if !s.HasData || !s.HasSeasonality {
			t.Fatalf("expected seasonality, got %+v", s)
		}
		if s.PeakMonth != "12" || s.TroughMonth != "01" {
			t.Errorf("peak/trough = %s/%s", s.PeakMonth, s.TroughMonth)
		}
		if len(s.PeakMonths) != 1 || s.PeakMonths[0].MonthKey != "2023-12" {
			t.Errorf("PeakMonths = %+v", s.PeakMonths)
		}
	})
}

func TestRevenueDecline(t *testing.T) {
	a := newTestAnalyzer()

	d := a.RevenueDecline([]float64{100, 100, 100, 50, 50, 50})
	if !d.HasData || d.Percent != 50 || d.Risk != LevelHigh {
		t.Errorf("RevenueDecline = %+v", d)
	}

	d = a.RevenueDecline([]float64{100, 100, 80, 80, 80})
	if d.Percent != 20 || d.Risk != LevelMedium {
		t.Errorf("RevenueDecline = %+v", d)
	}

	d = a.RevenueDecline([]float64{100, 90})
	if d.HasData {
		t.Errorf("expected no data for two months, got %+v", d)
	}
}
