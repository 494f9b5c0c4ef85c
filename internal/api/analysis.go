package api

import (
	"net/http"

	"github.com/opensource-finance/truerev/internal/domain"
	"github.com/opensource-finance/truerev/internal/fraud"
	"github.com/opensource-finance/truerev/internal/revenue"
	"github.com/opensource-finance/truerev/internal/stats"
)

// StatementRequest is the body of the statement analysis endpoints.
type StatementRequest struct {
	Transactions   []domain.Transaction   `json:"transactions"`
	Industry       string                 `json:"industry,omitempty"`
	OpeningBalance *float64               `json:"opening_balance,omitempty"`
	Application    *fraud.ApplicationData `json:"application,omitempty"`
}

// ClassifiedTransaction pairs a transaction with its classification.
type ClassifiedTransaction struct {
	Transaction    domain.Transaction          `json:"transaction"`
	Classification domain.ClassificationResult `json:"classification"`
}

// MonthlyResponse is the body of POST /revenue/monthly.
type MonthlyResponse struct {
	Summary          revenue.Summary           `json:"summary"`
	Rows             []revenue.SummaryRow      `json:"classification_summary"`
	MonthlyBreakdown []domain.MonthlyAggregate `json:"monthly_breakdown"`
	Volatility       stats.Volatility          `json:"volatility"`
	MCAPayments      revenue.MCAPayments       `json:"mca_payments"`
}

func decodeStatements(w http.ResponseWriter, r *http.Request) (StatementRequest, bool) {
	var req StatementRequest
	if !decodeJSON(w, r, &req) {
		return req, false
	}
	if req.Transactions == nil {
		writeError(w, http.StatusBadRequest, "transactions is required")
		return req, false
	}
	return req, true
}

// ClassifyRevenue handles POST /revenue/classify. Malformed transactions
// are echoed without a classification.
func (h *Handler) ClassifyRevenue(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeStatements(w, r)
	if !ok {
		return
	}
	c := h.pipeline.Classifier()
	out := make([]ClassifiedTransaction, 0, len(req.Transactions))
	for _, tx := range req.Transactions {
		ct := ClassifiedTransaction{Transaction: tx}
		if tx.Valid() {
			ct.Classification = c.Classify(tx, req.Industry)
		}
		out = append(out, ct)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"classifications": out,
		"count":           len(out),
	})
}

// MonthlyRevenue handles POST /revenue/monthly.
func (h *Handler) MonthlyRevenue(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeStatements(w, r)
	if !ok {
		return
	}
	c := h.pipeline.Classifier()
	summary := c.CalculateTrueRevenue(req.Transactions, req.Industry)
	months := c.MonthlyBreakdown(req.Transactions, req.Industry)
	writeJSON(w, http.StatusOK, MonthlyResponse{
		Summary:          summary,
		Rows:             revenue.ClassificationSummary(summary),
		MonthlyBreakdown: months,
		Volatility:       c.Volatility(months),
		MCAPayments:      c.DetectMCAPayments(req.Transactions),
	})
}

// AnalyzeNSF handles POST /nsf.
func (h *Handler) AnalyzeNSF(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeStatements(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.pipeline.NSF().Analyze(req.Transactions, req.OpeningBalance))
}

// AnalyzeFraud handles POST /fraud. Cross referencing runs only when the
// application block is present.
func (h *Handler) AnalyzeFraud(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeStatements(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.pipeline.Fraud().Analyze(req.Transactions, req.Application))
}
