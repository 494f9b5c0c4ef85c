package domain

import "encoding/json"

// Classification is the revenue bucket of a credit transaction.
type Classification string

const (
	ClassRevenue     Classification = "revenue"
	ClassExcluded    Classification = "excluded"
	ClassNeedsReview Classification = "needs_review"

	// ClassNone is used for debits, which are never classified.
	ClassNone Classification = ""
)

// MarshalJSON renders ClassNone as null.
func (c Classification) MarshalJSON() ([]byte, error) {
	if c == ClassNone {
		return []byte("null"), nil
	}
	return json.Marshal(string(c))
}

// UnmarshalJSON accepts null as ClassNone.
func (c *Classification) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*c = ClassNone
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*c = Classification(s)
	return nil
}

// ClassificationSource records what produced a classification.
type ClassificationSource string

const (
	SourceRule   ClassificationSource = "rule"
	SourceAI     ClassificationSource = "ai"
	SourceManual ClassificationSource = "manual"
)

// ClassificationResult is the outcome of classifying one transaction.
type ClassificationResult struct {
	Classification Classification       `json:"classification"`
	Reason         string               `json:"reason"`
	Source         ClassificationSource `json:"source"`
	Confidence     float64              `json:"confidence"`
	MatchedPattern string               `json:"matched_pattern,omitempty"`
}

// MonthlyAggregate is the per-month revenue rollup.
type MonthlyAggregate struct {
	MonthKey         string  `json:"month_key"`
	MonthName        string  `json:"month_name"`
	CalendarDays     int     `json:"calendar_days"`
	BusinessDays     float64 `json:"business_days"`
	TotalCredits     float64 `json:"total_credits"`
	TrueRevenue      float64 `json:"true_revenue"`
	Excluded         float64 `json:"excluded"`
	NeedsReview      float64 `json:"needs_review"`
	DailyTrueRevenue float64 `json:"daily_true_revenue"`
	RevenueRatio     float64 `json:"revenue_ratio"`
	TransactionCount int     `json:"transaction_count"`

	ExcludedTransactions    []ClassifiedTransaction `json:"excluded_transactions"`
	NeedsReviewTransactions []ClassifiedTransaction `json:"needs_review_transactions"`
}

// ClassifiedTransaction pairs a transaction with its classification for audit output.
type ClassifiedTransaction struct {
	Transaction
	ClassificationResult
}
