package domain

import (
	"time"
)

// DateLayout is the civil date format used by parsed bank statements.
const DateLayout = "2006-01-02"

// TransactionType is the direction of a bank statement line.
type TransactionType string

const (
	TxCredit TransactionType = "credit"
	TxDebit  TransactionType = "debit"
)

// Transaction is a single parsed bank statement line.
// Produced by the upstream statement parser and never mutated afterwards.
type Transaction struct {
	Date        string          `json:"date"`
	Description string          `json:"description"`
	Amount      float64         `json:"amount"`
	Type        TransactionType `json:"type"`

	// EndingBalance is the bank-reported running balance after this line, when available.
	EndingBalance *float64 `json:"ending_balance,omitempty"`
}

// Day parses the transaction date.
func (t Transaction) Day() (time.Time, bool) {
	d, err := time.Parse(DateLayout, t.Date)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

// Valid reports whether the line has the shape every analyzer relies on.
// Invalid lines are skipped rather than failing the batch.
func (t Transaction) Valid() bool {
	if _, ok := t.Day(); !ok {
		return false
	}
	if t.Amount <= 0 {
		return false
	}
	return t.Type == TxCredit || t.Type == TxDebit
}

// IsCredit reports whether the line is a credit.
func (t Transaction) IsCredit() bool {
	return t.Type == TxCredit
}

// MonthKey returns the YYYY-MM bucket for the transaction.
func (t Transaction) MonthKey() string {
	if len(t.Date) < 7 {
		return ""
	}
	return t.Date[:7]
}

// ValidTransactions returns the subset of lines that pass Valid, preserving order.
func ValidTransactions(txs []Transaction) []Transaction {
	out := make([]Transaction, 0, len(txs))
	for _, tx := range txs {
		if tx.Valid() {
			out = append(out, tx)
		}
	}
	return out
}
