package pipeline

import (
	"sort"

	"github.com/opensource-finance/truerev/internal/domain"
	"github.com/opensource-finance/truerev/internal/fraud"
	"github.com/opensource-finance/truerev/internal/money"
	"github.com/opensource-finance/truerev/internal/nsf"
	"github.com/opensource-finance/truerev/internal/revenue"
	"github.com/opensource-finance/truerev/internal/scoring"
	"github.com/opensource-finance/truerev/internal/stats"
)

// BankAnalysis is everything derived from the bank statements.
type BankAnalysis struct {
	Revenue          revenue.Summary           `json:"revenue"`
	MonthlyBreakdown []domain.MonthlyAggregate `json:"monthly_breakdown"`
	Volatility       stats.Volatility          `json:"volatility"`
	Trend            *stats.Trend              `json:"trend,omitempty"`
	NSF              nsf.Analysis              `json:"nsf"`
	MCAPayments      revenue.MCAPayments       `json:"mca_payments"`
	CashFlow         CashFlow                  `json:"cash_flow"`
	Signal           domain.BankAnalysisSignal `json:"signal"`

	// Fraud is reported on the assessment itself.
	Fraud fraud.Analysis `json:"-"`
}

// CashFlow counts months by the sign of their net cash flow.
type CashFlow struct {
	Months         int                `json:"months"`
	PositiveMonths int                `json:"positive_months"`
	PositiveRatio  float64            `json:"positive_ratio"`
	NetByMonth     map[string]float64 `json:"net_by_month"`
}

// AnalyzeStatements runs every statement analyzer over txs.
// It returns nil when there is no valid transaction to analyze.
func (p *Pipeline) AnalyzeStatements(app domain.Application, txs []domain.Transaction) *BankAnalysis {
	valid := make([]domain.Transaction, 0, len(txs))
	for _, tx := range txs {
		if tx.Valid() {
			valid = append(valid, tx)
		}
	}
	if len(valid) == 0 {
		return nil
	}

	months := p.classifier.MonthlyBreakdown(valid, app.Industry)
	b := &BankAnalysis{
		Revenue:          p.classifier.CalculateTrueRevenue(valid, app.Industry),
		MonthlyBreakdown: months,
		Volatility:       p.classifier.Volatility(months),
		NSF:              p.nsf.Analyze(valid, app.OpeningBalance),
		MCAPayments:      p.classifier.DetectMCAPayments(valid),
		CashFlow:         cashFlow(valid),
		Fraud: p.fraud.Analyze(valid, &fraud.ApplicationData{
			StatedMonthlyRevenue: app.StatedMonthlyRevenue,
			BusinessName:         app.BusinessName,
		}),
	}
	b.Signal = p.bankSignal(b)
	return b
}

func cashFlow(txs []domain.Transaction) CashFlow {
	net := make(map[string]float64)
	for _, tx := range txs {
		key := tx.MonthKey()
		if tx.IsCredit() {
			net[key] += tx.Amount
		} else {
			net[key] -= tx.Amount
		}
	}

	keys := make([]string, 0, len(net))
	for k := range net {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	cf := CashFlow{Months: len(keys), NetByMonth: make(map[string]float64, len(keys))}
	for _, k := range keys {
		cf.NetByMonth[k] = money.Round2(net[k])
		if net[k] > 0 {
			cf.PositiveMonths++
		}
	}
	if cf.Months > 0 {
		cf.PositiveRatio = money.Round4(float64(cf.PositiveMonths) / float64(cf.Months))
	}
	return cf
}

// bankSignal condenses the statement analysis into the scoring signal.
func (p *Pipeline) bankSignal(b *BankAnalysis) domain.BankAnalysisSignal {
	c := p.cfg.BankAnalysis
	score := c.BaseScore
	var flags []string

	revenues := revenue.TrueRevenues(b.MonthlyBreakdown)
	months := len(revenues)
	avg := stats.Mean(revenues)
	sig := domain.BankAnalysisSignal{
		MonthlyTrueRevenue: money.Round2(avg),
		MonthsAnalyzed:     months,
	}

	if b.Volatility.HasData {
		consistency := 100 - min(100, b.Volatility.CoefficientOfVariation)
		rc := money.Round4(consistency / 100)
		sig.RevenueConsistency = &rc
		switch {
		case consistency >= c.ConsistencyExcellent:
			score += 20
		case consistency >= c.ConsistencyGood:
			score += 10
		case consistency < c.ConsistencyPoor:
			score -= 15
			flags = append(flags, "Inconsistent monthly revenue")
		}
	}

	if months >= p.cfg.Stats.SeriesChangeMinCount {
		t := p.stats.SeriesChange(revenues)
		b.Trend = &t
		sig.RevenueTrendPercent = money.Round2(t.Percentage)
		switch {
		case t.Percentage > c.StrongGrowthPercent:
			score += 15
		case t.Direction == stats.DirectionIncreasing:
			score += 8
		case t.Percentage < -c.SignificantDeclinePercent:
			score -= 15
			flags = append(flags, "Significant revenue decline")
		case t.Direction == stats.DirectionDeclining:
			score -= 8
		}
	}

	events := b.NSF.Summary.UniqueNSFEvents
	sig.NSFCount = events
	score -= min(c.NSFMaxPenalty, events*c.NSFPenaltyPerEvent)
	if months > 0 {
		sig.NSFFrequency = money.Round2(float64(events) / float64(months))
	}
	switch {
	case sig.NSFFrequency > c.NSFHighFrequency:
		sig.NSFRisk = stats.LevelHigh
		flags = append(flags, "Frequent NSF events")
	case sig.NSFFrequency > c.NSFMediumFrequency:
		sig.NSFRisk = stats.LevelMedium
	default:
		sig.NSFRisk = stats.LevelLow
	}

	if avg > 0 && b.MCAPayments.TotalMonthlyPayment > 0 {
		burden := b.MCAPayments.TotalMonthlyPayment / avg * 100
		switch {
		case burden > c.HighBurdenPercent:
			score -= 20
			flags = append(flags, "Heavy existing MCA burden")
		case burden > c.ModerateBurdenPercent:
			score -= 10
		}
	}
	if b.MCAPayments.ActivePositions >= c.MultipleFunders {
		score -= 10
		flags = append(flags, "Multiple MCA funders detected")
	}

	if b.CashFlow.Months > 0 {
		switch r := b.CashFlow.PositiveRatio; {
		case r >= c.CashFlowStrong:
			score += 15
		case r >= c.CashFlowGood:
			score += 8
		case r < c.CashFlowWeak:
			score -= 15
			flags = append(flags, "Negative cash flow in most months")
		}
	}

	if adb := b.NSF.Summary.AverageDailyBalance; adb != nil {
		v := money.Round2(*adb)
		sig.AverageDailyBalance = &v
		switch {
		case *adb >= c.HighBalance:
			score += 10
		case *adb >= c.GoodBalance:
			score += 5
		case *adb < c.LowBalance:
			score -= 10
			flags = append(flags, "Low average daily balance")
		}
	}
	sig.NegativeDays = b.NSF.Summary.NegativeDaysCount

	sig.Score = money.ClampInt(score, 0, 100)
	sig.RiskLevel = scoring.RiskLevel(sig.Score)
	sig.Flags = flags
	return sig
}
