// Package nsf reconstructs end-of-day balances and counts unique NSF events.
package nsf

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/opensource-finance/truerev/internal/domain"
	"github.com/opensource-finance/truerev/internal/money"
)

// Balance methods.
const (
	MethodActual        = "actual_balances"
	MethodReconstructed = "reconstructed"
)

// Event types.
const (
	EventPaired     = "paired"
	EventFeeOnly    = "fee_only"
	EventReturnOnly = "return_only"
)

// DayBalance is an end-of-day balance.
type DayBalance struct {
	Date    string  `json:"date"`
	Balance float64 `json:"eod_balance"`
}

// NegativeDays is the result of the end-of-day balance scan.
type NegativeDays struct {
	Count          int          `json:"negative_days_count"`
	NegativeDates  []DayBalance `json:"negative_dates"`
	Method         string       `json:"method_used"`
	OpeningBalance *float64     `json:"opening_balance"`
	DailyBalances  []DayBalance `json:"daily_balances"`
}

// Line is a statement line identified as an NSF fee or a returned item.
type Line struct {
	Index       int     `json:"index"`
	Date        string  `json:"date"`
	Description string  `json:"description"`
	Merchant    string  `json:"merchant,omitempty"`
	Amount      float64 `json:"amount"`
	Type        string  `json:"type"`
}

// Event is a unique NSF occurrence.
type Event struct {
	Fee          *Line   `json:"fee"`
	ReturnedItem *Line   `json:"returned_item"`
	MatchScore   float64 `json:"match_score"`
	EventType    string  `json:"event_type"`
}

// Counts is the NSF fee and returned item analysis.
type Counts struct {
	FeeCount          int     `json:"nsf_fee_count"`
	ReturnedItemCount int     `json:"returned_item_count"`
	UniqueEvents      int     `json:"unique_nsf_events"`
	Fees              []Line  `json:"nsf_fees"`
	ReturnedItems     []Line  `json:"returned_items"`
	Events            []Event `json:"unique_events"`
}

// Summary flattens the headline numbers.
type Summary struct {
	NegativeDaysCount   int      `json:"negative_days_count"`
	NSFFeeCount         int      `json:"nsf_fee_count"`
	ReturnedItemCount   int      `json:"returned_item_count"`
	UniqueNSFEvents     int      `json:"unique_nsf_events"`
	AverageDailyBalance *float64 `json:"average_daily_balance,omitempty"`
}

// Analysis combines negative days and NSF counts.
type Analysis struct {
	NegativeDays NegativeDays `json:"negative_days"`
	NSF          Counts       `json:"nsf"`
	Summary      Summary      `json:"summary"`
}

// Analyzer detects NSF events and negative balance days.
type Analyzer struct {
	cfg            domain.NSFConfig
	feeKeywords    []string
	returnKeywords []string
}

// NewAnalyzer creates a new NSF analyzer.
func NewAnalyzer(cfg domain.NSFConfig) *Analyzer {
	return &Analyzer{
		cfg:            cfg,
		feeKeywords:    lower(cfg.FeeKeywords),
		returnKeywords: lower(cfg.ReturnKeywords),
	}
}

func lower(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}

// NegativeDays counts dates whose end-of-day balance is below zero.
// Bank-reported ending balances are used when any line carries one; otherwise
// balances are reconstructed from the opening balance in statement order.
func (a *Analyzer) NegativeDays(txs []domain.Transaction, openingBalance *float64) NegativeDays {
	byDate := make(map[string][]domain.Transaction)
	actual := false
	for _, tx := range txs {
		if !tx.Valid() {
			continue
		}
		byDate[tx.Date] = append(byDate[tx.Date], tx)
		if tx.EndingBalance != nil {
			actual = true
		}
	}

	dates := make([]string, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	daily := make([]DayBalance, 0, len(dates))
	if actual {
		for _, d := range dates {
			day := byDate[d]
			for i := len(day) - 1; i >= 0; i-- {
				if day[i].EndingBalance != nil {
					daily = append(daily, DayBalance{Date: d, Balance: *day[i].EndingBalance})
					break
				}
			}
		}
	} else {
		running := 0.0
		if openingBalance != nil {
			running = *openingBalance
		}
		for _, d := range dates {
			for _, tx := range byDate[d] {
				if tx.IsCredit() {
					running += tx.Amount
				} else {
					running -= tx.Amount
				}
			}
			daily = append(daily, DayBalance{Date: d, Balance: running})
		}
	}

	out := NegativeDays{
		NegativeDates:  []DayBalance{},
		Method:         MethodReconstructed,
		OpeningBalance: openingBalance,
		DailyBalances:  make([]DayBalance, 0, len(daily)),
	}
	if actual {
		out.Method = MethodActual
	}
	for _, b := range daily {
		rounded := DayBalance{Date: b.Date, Balance: money.Round2(b.Balance)}
		out.DailyBalances = append(out.DailyBalances, rounded)
		if b.Balance < 0 {
			out.Count++
			out.NegativeDates = append(out.NegativeDates, rounded)
		}
	}
	return out
}

// AverageDailyBalance averages an end-of-day balance series.
func AverageDailyBalance(daily []DayBalance) (float64, bool) {
	if len(daily) == 0 {
		return 0, false
	}
	sum := 0.0
	for _, b := range daily {
		sum += b.Balance
	}
	return sum / float64(len(daily)), true
}

// Counts identifies NSF fees and returned items and pairs them into unique events.
// A fee line is never also a returned item.
func (a *Analyzer) Counts(txs []domain.Transaction) Counts {
	fees := []Line{}
	returns := []Line{}

	for i, tx := range txs {
		if !tx.Valid() {
			continue
		}
		desc := strings.ToLower(tx.Description)
		line := Line{Index: i, Date: tx.Date, Description: tx.Description, Amount: tx.Amount, Type: string(tx.Type)}

		if containsAny(desc, a.feeKeywords) {
			fees = append(fees, line)
			continue
		}
		if containsAny(desc, a.returnKeywords) {
			line.Merchant = extractMerchant(tx.Description)
			returns = append(returns, line)
		}
	}

	events := []Event{}
	matched := make([]bool, len(returns))
	for fi := range fees {
		fee := &fees[fi]
		best, bestScore := -1, 0.0

		for ri := range returns {
			if matched[ri] {
				continue
			}
			days := daysBetween(fee.Date, returns[ri].Date)
			if days > float64(a.cfg.PairingWindowDays) {
				continue
			}
			score := (float64(a.cfg.PairingWindowDays) - days) * a.cfg.TimeWeightPerDay
			if returns[ri].Merchant != "" && fee.Description != "" {
				score += SimilarText(strings.ToLower(returns[ri].Merchant), strings.ToLower(fee.Description)) * a.cfg.SimilarityWeight
			}
			if score > bestScore {
				best, bestScore = ri, score
			}
		}

		if best >= 0 && bestScore > a.cfg.MatchThreshold {
			matched[best] = true
			events = append(events, Event{
				Fee:          fee,
				ReturnedItem: &returns[best],
				MatchScore:   money.Round2(bestScore),
				EventType:    EventPaired,
			})
			continue
		}
		events = append(events, Event{Fee: fee, EventType: EventFeeOnly})
	}

	for ri := range returns {
		if !matched[ri] {
			events = append(events, Event{ReturnedItem: &returns[ri], EventType: EventReturnOnly})
		}
	}

	return Counts{
		FeeCount:          len(fees),
		ReturnedItemCount: len(returns),
		UniqueEvents:      len(events),
		Fees:              fees,
		ReturnedItems:     returns,
		Events:            events,
	}
}

// Analyze runs the negative day scan and NSF counting together.
func (a *Analyzer) Analyze(txs []domain.Transaction, openingBalance *float64) Analysis {
	neg := a.NegativeDays(txs, openingBalance)
	counts := a.Counts(txs)

	summary := Summary{
		NegativeDaysCount: neg.Count,
		NSFFeeCount:       counts.FeeCount,
		ReturnedItemCount: counts.ReturnedItemCount,
		UniqueNSFEvents:   counts.UniqueEvents,
	}
	if avg, ok := AverageDailyBalance(neg.DailyBalances); ok {
		avg = money.Round2(avg)
		summary.AverageDailyBalance = &avg
	}

	return Analysis{NegativeDays: neg, NSF: counts, Summary: summary}
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

func daysBetween(a, b string) float64 {
	ta, err1 := time.Parse(domain.DateLayout, a)
	tb, err2 := time.Parse(domain.DateLayout, b)
	if err1 != nil || err2 != nil {
		return math.Inf(1)
	}
	return math.Abs(tb.Sub(ta).Hours() / 24)
}

var (
	merchantPrefix = regexp.MustCompile(`(?i)^(returned?|nsf|declined|reversal|reverse|ach|check|payment)\s+`)
	merchantSuffix = regexp.MustCompile(`(?i)\s+(returned?|nsf|declined|reversal|reverse)$`)
	merchantDates  = regexp.MustCompile(`\d{1,2}/\d{1,2}(/\d{2,4})?`)
	merchantNums   = regexp.MustCompile(`\b\d+\b`)
	merchantSpace  = regexp.MustCompile(`\s+`)
)

// extractMerchant strips return wording, dates and numbers from a description.
func extractMerchant(desc string) string {
	s := merchantPrefix.ReplaceAllString(desc, "")
	s = merchantSuffix.ReplaceAllString(s, "")
	s = merchantDates.ReplaceAllString(s, "")
	s = merchantNums.ReplaceAllString(s, "")
	return merchantSpace.ReplaceAllString(strings.TrimSpace(s), " ")
}
