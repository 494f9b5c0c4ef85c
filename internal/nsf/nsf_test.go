package nsf

import (
	"math"
	"testing"

	"github.com/opensource-finance/truerev/internal/domain"
)

func newTestAnalyzer() *Analyzer {
	return NewAnalyzer(domain.DefaultUnderwritingConfig().NSF)
}

func tx(date, desc string, amount float64, typ domain.TransactionType) domain.Transaction {
	return domain.Transaction{Date: date, Description: desc, Amount: amount, Type: typ}
}

func withBalance(t domain.Transaction, bal float64) domain.Transaction {
	t.EndingBalance = &bal
	return t
}

func TestNegativeDaysReconstructed(t *testing.T) {
	a := newTestAnalyzer()
	opening := 100.0

	txs := []domain.Transaction{
		tx("2024-01-03", "RENT", 300, domain.TxDebit),
		tx("2024-01-01", "SUPPLIES", 150, domain.TxDebit),
		tx("2024-01-02", "SQUARE DEPOSIT", 200, domain.TxCredit),
		tx("bad-date", "IGNORED", 1000, domain.TxDebit),
	}

	got := a.NegativeDays(txs, &opening)
	if got.Method != MethodReconstructed {
		t.Errorf("Method = %q, want %q", got.Method, MethodReconstructed)
	}
	if got.Count != 2 {
		t.Fatalf("Count = %d, want 2", got.Count)
	}
	if got.NegativeDates[0].Date != "2024-01-01" || got.NegativeDates[0].Balance != -50 {
		t.Errorf("first negative = %+v, want 2024-01-01 -50", got.NegativeDates[0])
	}
	if got.NegativeDates[1].Date != "2024-01-03" || got.NegativeDates[1].Balance != -150 {
		t.Errorf("second negative = %+v, want 2024-01-03 -150", got.NegativeDates[1])
	}
	if len(got.DailyBalances) != 3 {
		t.Errorf("DailyBalances = %d, want 3", len(got.DailyBalances))
	}
}

func TestNegativeDaysActualBalances(t *testing.T) {
	a := newTestAnalyzer()

	txs := []domain.Transaction{
		withBalance(tx("2024-01-01", "DEBIT A", 100, domain.TxDebit), 50),
		withBalance(tx("2024-01-01", "DEBIT B", 100, domain.TxDebit), -50),
		withBalance(tx("2024-01-02", "CREDIT", 500, domain.TxCredit), 450),
		tx("2024-01-03", "NO BALANCE", 900, domain.TxDebit),
	}

	got := a.NegativeDays(txs, nil)
	if got.Method != MethodActual {
		t.Errorf("Method = %q, want %q", got.Method, MethodActual)
	}
	if got.Count != 1 {
		t.Errorf("Count = %d, want 1", got.Count)
	}
	if len(got.DailyBalances) != 2 {
		t.Errorf("DailyBalances = %d, want 2 (date without a balance is skipped)", len(got.DailyBalances))
	}
}

func TestNegativeDaysEmpty(t *testing.T) {
	got := newTestAnalyzer().NegativeDays(nil, nil)
	if got.Count != 0 || got.NegativeDates == nil {
		t.Errorf("got %+v, want zero count with empty list", got)
	}
	if _, ok := AverageDailyBalance(got.DailyBalances); ok {
		t.Error("AverageDailyBalance should report no data")
	}
}

func TestCountsPairing(t *testing.T) {
	a := newTestAnalyzer()

	tests := []struct {
		name       string
		txs        []domain.Transaction
		wantFees   int
		wantReturn int
		wantEvents int
		wantTypes  []string
	}{
		{
			name: "same day fee and return pair",
			txs: []domain.Transaction{
				tx("2024-02-05", "RETURNED ITEM ACH 123", 450, domain.TxCredit),
				tx("2024-02-05", "NSF FEE", 35, domain.TxDebit),
			},
			wantFees: 1, wantReturn: 1, wantEvents: 1,
			wantTypes: []string{EventPaired},
		},
		{
			name: "three days apart with matching text pair",
			txs: []domain.Transaction{
				tx("2024-02-01", "RETURNED ACME INSURANCE CO", 450, domain.TxCredit),
				tx("2024-02-04", "OD FEE ACME INSURANCE CO", 35, domain.TxDebit),
			},
			wantFees: 1, wantReturn: 1, wantEvents: 1,
			wantTypes: []string{EventPaired},
		},
		{
			name: "four days apart are separate events",
			txs: []domain.Transaction{
				tx("2024-02-01", "RETURNED ACME INSURANCE CO", 450, domain.TxCredit),
				tx("2024-02-05", "OD FEE ACME INSURANCE CO", 35, domain.TxDebit),
			},
			wantFees: 1, wantReturn: 1, wantEvents: 2,
			wantTypes: []string{EventFeeOnly, EventReturnOnly},
		},
		{
			name: "fee line is not also a return",
			txs: []domain.Transaction{
				tx("2024-02-01", "RETURNED ITEM FEE", 35, domain.TxDebit),
			},
			wantFees: 1, wantReturn: 0, wantEvents: 1,
			wantTypes: []string{EventFeeOnly},
		},
		{
			name: "each return pairs once",
			txs: []domain.Transaction{
				tx("2024-02-01", "NSF FEE", 35, domain.TxDebit),
				tx("2024-02-01", "NSF FEE", 35, domain.TxDebit),
				tx("2024-02-01", "REJECTED PAYMENT", 200, domain.TxCredit),
			},
			wantFees: 2, wantReturn: 1, wantEvents: 2,
			wantTypes: []string{EventPaired, EventFeeOnly},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := a.Counts(tt.txs)
			if got.FeeCount != tt.wantFees {
				t.Errorf("FeeCount = %d, want %d", got.FeeCount, tt.wantFees)
			}
			if got.ReturnedItemCount != tt.wantReturn {
				t.Errorf("ReturnedItemCount = %d, want %d", got.ReturnedItemCount, tt.wantReturn)
			}
			if got.UniqueEvents != tt.wantEvents {
				t.Fatalf("UniqueEvents = %d, want %d", got.UniqueEvents, tt.wantEvents)
			}
			for i, want := range tt.wantTypes {
				if got.Events[i].EventType != want {
					t.Errorf("Events[%d].EventType = %q, want %q", i, got.Events[i].EventType, want)
				}
			}
		})
	}
}

func TestExtractMerchant(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"RETURNED ACME INSURANCE CO", "ACME INSURANCE CO"},
		{"ACH VERIZON 02/03/2024 RETURN", "VERIZON"},
		{"NSF 12345", ""},
		{"Payment  Comcast   Cable  REVERSAL", "Comcast Cable"},
	}
	for _, tt := range tests {
		if got := extractMerchant(tt.in); got != tt.want {
			t.Errorf("extractMerchant(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSimilarText(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"World", "Word", 800.0 / 9},
		{"abc", "abc", 100},
		{"abc", "xyz", 0},
		{"", "", 0},
	}
	for _, tt := range tests {
		if got := SimilarText(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("SimilarText(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestAnalyze(t *testing.T) {
	a := newTestAnalyzer()
	opening := 500.0

	txs := []domain.Transaction{
		tx("2024-03-01", "SQUARE DEPOSIT", 1000, domain.TxCredit),
		tx("2024-03-02", "RENT", 2000, domain.TxDebit),
		tx("2024-03-02", "OVERDRAFT FEE", 35, domain.TxDebit),
	}

	got := a.Analyze(txs, &opening)
	if got.Summary.NegativeDaysCount != 1 {
		t.Errorf("NegativeDaysCount = %d, want 1", got.Summary.NegativeDaysCount)
	}
	if got.Summary.NSFFeeCount != 1 || got.Summary.UniqueNSFEvents != 1 {
		t.Errorf("summary = %+v, want one fee and one event", got.Summary)
	}
	if got.Summary.AverageDailyBalance == nil {
		t.Fatal("AverageDailyBalance missing")
	}
	// 1500 then -535
	if *got.Summary.AverageDailyBalance != 482.5 {
		t.Errorf("AverageDailyBalance = %v, want 482.5", *got.Summary.AverageDailyBalance)
	}
}
