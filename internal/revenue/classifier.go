// Package revenue classifies bank statement credits into true revenue.
package revenue

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/opensource-finance/truerev/internal/capacity"
	"github.com/opensource-finance/truerev/internal/domain"
	"github.com/opensource-finance/truerev/internal/money"
	"github.com/opensource-finance/truerev/internal/stats"
)

// ConfidenceScorer adjusts the confidence of heuristic classifications.
// Pattern matches are never rescored.
type ConfidenceScorer interface {
	Score(tx domain.Transaction, result domain.ClassificationResult) float64
}

// Classifier applies ordered pattern rules and heuristics to credits.
// Safe for concurrent use; patterns compile once in NewClassifier.
type Classifier struct {
	cfg   domain.RevenueConfig
	cap   capacity.Cap
	stats *stats.Analyzer

	exclude  []matcher
	revenue  []matcher
	industry map[string][]matcher
	mca      []matcher

	scorer ConfidenceScorer
}

// NewClassifier creates a new revenue classifier.
func NewClassifier(cfg domain.RevenueConfig, c capacity.Cap, st *stats.Analyzer) *Classifier {
	industry := make(map[string][]matcher, len(cfg.IndustryPatterns))
	for key, rules := range cfg.IndustryPatterns {
		industry[IndustryKey(key)] = compilePatterns("industry:"+key, rules)
	}
	return &Classifier{
		cfg:      cfg,
		cap:      c,
		stats:    st,
		exclude:  compilePatterns("exclude", cfg.ExcludePatterns),
		revenue:  compilePatterns("revenue", cfg.RevenuePatterns),
		industry: industry,
		mca:      compilePatterns("mca_payment", cfg.MCAPaymentPatterns),
	}
}

// WithConfidenceScorer returns a copy of the classifier that rescores heuristic results.
func (c *Classifier) WithConfidenceScorer(s ConfidenceScorer) *Classifier {
	cp := *c
	cp.scorer = s
	return &cp
}

// IndustryKey normalizes an industry label to its table key, e.g. "Professional Services" -> "professional_services".
func IndustryKey(industry string) string {
	k := strings.ToLower(strings.TrimSpace(industry))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(k)
}

// Classify classifies a single transaction.
func (c *Classifier) Classify(tx domain.Transaction, industry string) domain.ClassificationResult {
	if !tx.IsCredit() {
		return domain.ClassificationResult{
			Classification: domain.ClassNone,
			Reason:         "Not a credit transaction",
			Source:         domain.SourceRule,
			Confidence:     1.0,
		}
	}

	// Exclusions win so funding is never counted as revenue
	if rule, ok := firstMatch(c.exclude, tx.Description); ok {
		return patternResult(domain.ClassExcluded, rule.Reason, c.cfg.PatternConfidence, rule.Pattern)
	}
	if rule, ok := firstMatch(c.revenue, tx.Description); ok {
		return patternResult(domain.ClassRevenue, rule.Reason, c.cfg.PatternConfidence, rule.Pattern)
	}
	if industry != "" {
		if ms, ok := c.industry[IndustryKey(industry)]; ok {
			if rule, ok := firstMatch(ms, tx.Description); ok {
				return patternResult(domain.ClassRevenue, rule.Reason+" (industry-specific)", c.cfg.IndustryConfidence, rule.Pattern)
			}
		}
	}

	result := c.heuristics(tx.Amount)
	if c.scorer != nil {
		result.Confidence = money.Clamp(c.scorer.Score(tx, result), 0, 1)
	}
	return result
}

// IsRevenue reports whether the transaction classifies as revenue.
func (c *Classifier) IsRevenue(tx domain.Transaction) bool {
	return c.Classify(tx, "").Classification == domain.ClassRevenue
}

func patternResult(class domain.Classification, reason string, confidence float64, pattern string) domain.ClassificationResult {
	return domain.ClassificationResult{
		Classification: class,
		Reason:         reason,
		Source:         domain.SourceRule,
		Confidence:     confidence,
		MatchedPattern: pattern,
	}
}

func (c *Classifier) heuristics(amount float64) domain.ClassificationResult {
	if amount >= c.cfg.LargeDepositThreshold {
		return domain.ClassificationResult{
			Classification: domain.ClassNeedsReview,
			Reason:         "Large deposit (>$" + money.Format(c.cfg.LargeDepositThreshold) + ") requires manual review",
			Source:         domain.SourceRule,
			Confidence:     c.cfg.LargeDepositConfidence,
		}
	}

	for _, s := range c.cfg.SuspiciousLoanAmounts {
		if amount == s {
			return domain.ClassificationResult{
				Classification: domain.ClassNeedsReview,
				Reason:         "Deposit matches common loan amount - may be funding",
				Source:         domain.SourceRule,
				Confidence:     c.cfg.HeuristicConfidence,
			}
		}
	}

	step := c.cfg.RoundNumberStep
	if step > 0 && amount >= step && math.Mod(amount, step) == 0 {
		return domain.ClassificationResult{
			Classification: domain.ClassNeedsReview,
			Reason:         "Round number deposit - may be transfer, loan, or capital injection",
			Source:         domain.SourceRule,
			Confidence:     c.cfg.HeuristicConfidence,
		}
	}

	return domain.ClassificationResult{
		Classification: domain.ClassRevenue,
		Reason:         "Default classification - no pattern match",
		Source:         domain.SourceRule,
		Confidence:     c.cfg.DefaultConfidence,
	}
}

// Counts tallies classified credits.
type Counts struct {
	Revenue     int `json:"revenue"`
	Excluded    int `json:"excluded"`
	NeedsReview int `json:"needs_review"`
	Total       int `json:"total"`
}

// Summary is the true revenue of a transaction set with its audit trail.
type Summary struct {
	TrueRevenue            float64                        `json:"true_revenue"`
	ExcludedAmount         float64                        `json:"excluded_amount"`
	NeedsReviewAmount      float64                        `json:"needs_review_amount"`
	TotalCredits           float64                        `json:"total_credits"`
	RevenueRatio           float64                        `json:"revenue_ratio"`
	Counts                 Counts                         `json:"counts"`
	ClassifiedTransactions []domain.ClassifiedTransaction `json:"classified_transactions"`
}

// CalculateTrueRevenue classifies every valid transaction and totals the credits.
// Debits appear in the audit trail with a null classification and never in totals.
func (c *Classifier) CalculateTrueRevenue(txs []domain.Transaction, industry string) Summary {
	var revenue, excluded, review float64
	var counts Counts
	classified := make([]domain.ClassifiedTransaction, 0, len(txs))

	for _, tx := range txs {
		if !tx.Valid() {
			continue
		}
		result := c.Classify(tx, industry)
		classified = append(classified, domain.ClassifiedTransaction{Transaction: tx, ClassificationResult: result})

		switch result.Classification {
		case domain.ClassRevenue:
			revenue += tx.Amount
			counts.Revenue++
		case domain.ClassExcluded:
			excluded += tx.Amount
			counts.Excluded++
		case domain.ClassNeedsReview:
			review += tx.Amount
			counts.NeedsReview++
		}
	}
	counts.Total = counts.Revenue + counts.Excluded + counts.NeedsReview

	total := revenue + excluded + review
	ratio := 0.0
	if total > 0 {
		ratio = revenue / total * 100
	}

	return Summary{
		TrueRevenue:            money.Round2(revenue),
		ExcludedAmount:         money.Round2(excluded),
		NeedsReviewAmount:      money.Round2(review),
		TotalCredits:           money.Round2(total),
		RevenueRatio:           money.Round2(ratio),
		Counts:                 counts,
		ClassifiedTransactions: classified,
	}
}

// MonthlyBreakdown groups valid transactions by calendar month, ascending.
// Every month with a valid transaction appears; only credits accumulate.
func (c *Classifier) MonthlyBreakdown(txs []domain.Transaction, industry string) []domain.MonthlyAggregate {
	bd := c.cap.BusinessDays()
	byKey := make(map[string]*domain.MonthlyAggregate)

	for _, tx := range txs {
		if !tx.Valid() {
			continue
		}
		day, _ := tx.Day()
		key := tx.MonthKey()
		m, ok := byKey[key]
		if !ok {
			m = &domain.MonthlyAggregate{
				MonthKey:                key,
				MonthName:               day.Format("January 2006"),
				CalendarDays:            daysIn(day),
				BusinessDays:            bd,
				ExcludedTransactions:    []domain.ClassifiedTransaction{},
				NeedsReviewTransactions: []domain.ClassifiedTransaction{},
			}
			byKey[key] = m
		}
		if !tx.IsCredit() {
			continue
		}

		result := c.Classify(tx, industry)
		m.TotalCredits += tx.Amount
		m.TransactionCount++

		switch result.Classification {
		case domain.ClassRevenue:
			m.TrueRevenue += tx.Amount
		case domain.ClassExcluded:
			m.Excluded += tx.Amount
			m.ExcludedTransactions = append(m.ExcludedTransactions, domain.ClassifiedTransaction{Transaction: tx, ClassificationResult: result})
		case domain.ClassNeedsReview:
			m.NeedsReview += tx.Amount
			m.NeedsReviewTransactions = append(m.NeedsReviewTransactions, domain.ClassifiedTransaction{Transaction: tx, ClassificationResult: result})
		}
	}

	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]domain.MonthlyAggregate, 0, len(keys))
	for _, k := range keys {
		m := byKey[k]
		if m.BusinessDays > 0 {
			m.DailyTrueRevenue = money.Round2(m.TrueRevenue / m.BusinessDays)
		}
		if m.TotalCredits > 0 {
			m.RevenueRatio = money.Round2(m.TrueRevenue / m.TotalCredits * 100)
		}
		m.TrueRevenue = money.Round2(m.TrueRevenue)
		m.Excluded = money.Round2(m.Excluded)
		m.NeedsReview = money.Round2(m.NeedsReview)
		m.TotalCredits = money.Round2(m.TotalCredits)
		out = append(out, *m)
	}
	return out
}

func daysIn(d time.Time) int {
	return time.Date(d.Year(), d.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Volatility computes revenue volatility across a monthly breakdown.
func (c *Classifier) Volatility(months []domain.MonthlyAggregate) stats.Volatility {
	return c.stats.Volatility(TrueRevenues(months))
}

// TrueRevenues extracts the true revenue series of a monthly breakdown.
func TrueRevenues(months []domain.MonthlyAggregate) []float64 {
	values := make([]float64, len(months))
	for i, m := range months {
		values[i] = m.TrueRevenue
	}
	return values
}

// SummaryRow groups classified credits sharing a classification and reason.
type SummaryRow struct {
	Classification domain.Classification       `json:"classification"`
	Reason         string                      `json:"reason"`
	Source         domain.ClassificationSource `json:"source"`
	Count          int                         `json:"count"`
	TotalAmount    float64                     `json:"total_amount"`
}

// ClassificationSummary groups a summary's credits by classification and reason, largest total first.
func ClassificationSummary(s Summary) []SummaryRow {
	index := make(map[string]int)
	var rows []SummaryRow
	for _, ct := range s.ClassifiedTransactions {
		if ct.Classification == domain.ClassNone {
			continue
		}
		key := string(ct.Classification) + "::" + ct.Reason
		i, ok := index[key]
		if !ok {
			i = len(rows)
			index[key] = i
			rows = append(rows, SummaryRow{
				Classification: ct.Classification,
				Reason:         ct.Reason,
				Source:         ct.Source,
			})
		}
		rows[i].Count++
		rows[i].TotalAmount += ct.Amount
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].TotalAmount > rows[j].TotalAmount
	})
	for i := range rows {
		rows[i].TotalAmount = money.Round2(rows[i].TotalAmount)
	}
	return rows
}
