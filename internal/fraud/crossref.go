package fraud

import (
	"fmt"
	"math"
	"strings"

	"github.com/opensource-finance/truerev/internal/domain"
	"github.com/opensource-finance/truerev/internal/money"
)

// CrossRef compares the statement against the applicant's stated information.
type CrossRef struct {
	RiskLevel   string  `json:"risk_level"`
	ScoreImpact float64 `json:"score_impact"`
	Flags       []Flag  `json:"flags"`
}

// RevenueMismatch details a stated versus calculated revenue difference.
type RevenueMismatch struct {
	Stated     float64 `json:"stated"`
	Calculated float64 `json:"calculated"`
	Variance   float64 `json:"variance"`
}

func (d *Detector) crossReference(txs []domain.Transaction, app ApplicationData) CrossRef {
	flags := []Flag{}
	issues := 0

	if app.StatedMonthlyRevenue > 0 {
		total := 0.0
		months := make(map[string]struct{})
		for _, tx := range txs {
			months[tx.MonthKey()] = struct{}{}
			if d.isRevenue(tx) {
				total += tx.Amount
			}
		}
		avg := 0.0
		if len(months) > 0 {
			avg = total / float64(len(months))
		}
		variance := math.Abs(avg-app.StatedMonthlyRevenue) / app.StatedMonthlyRevenue * 100

		severity := ""
		switch {
		case variance > d.cfg.RevenueVarianceHigh:
			severity = LevelHigh
			issues++
		case variance > d.cfg.RevenueVarianceMedium:
			severity = LevelMedium
		}
		if severity != "" {
			flags = append(flags, Flag{
				Type:     "revenue_mismatch",
				Severity: severity,
				Message:  fmt.Sprintf("Stated revenue differs from bank data by %.0f%%", math.Round(variance)),
				Details: RevenueMismatch{
					Stated:     app.StatedMonthlyRevenue,
					Calculated: money.Round2(avg),
					Variance:   money.Round2(variance),
				},
			})
		}
	}

	if name := strings.ToLower(strings.TrimSpace(app.BusinessName)); name != "" {
		found := false
		for _, tx := range txs {
			if strings.Contains(strings.ToLower(tx.Description), name) {
				found = true
				break
			}
		}
		if !found {
			flags = append(flags, Flag{
				Type:     "business_name_missing",
				Severity: LevelMedium,
				Message:  "Business name not found in transaction descriptions",
			})
		}
	}

	out := CrossRef{RiskLevel: LevelLow, Flags: flags}
	switch {
	case issues >= 2:
		out.RiskLevel, out.ScoreImpact = LevelHigh, d.cfg.CrossReferenceImpact.High
	case issues >= 1 || len(flags) >= 2:
		out.RiskLevel, out.ScoreImpact = LevelMedium, d.cfg.CrossReferenceImpact.Medium
	}
	return out
}
