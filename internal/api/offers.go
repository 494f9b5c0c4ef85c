package api

import (
	"net/http"

	"github.com/opensource-finance/truerev/internal/capacity"
	"github.com/opensource-finance/truerev/internal/domain"
	"github.com/opensource-finance/truerev/internal/offer"
	"github.com/opensource-finance/truerev/internal/scoring"
	"github.com/opensource-finance/truerev/internal/stacking"
)

// CapacityRequest is the body of POST /capacity.
type CapacityRequest struct {
	MonthlyTrueRevenue   float64  `json:"monthly_true_revenue"`
	ExistingDailyPayment float64  `json:"existing_daily_payment"`
	MaxWithholdPercent   *float64 `json:"max_withhold_percent,omitempty"`
}

// BuyoutRequest is the body of POST /stacking/buyout.
type BuyoutRequest struct {
	Positions  []domain.ExistingPosition `json:"positions"`
	NewFunding float64                   `json:"new_funding"`
}

// CalculateOffer handles POST /offers.
func (h *Handler) CalculateOffer(w http.ResponseWriter, r *http.Request) {
	var in offer.Input
	if !decodeJSON(w, r, &in) {
		return
	}
	if in.MonthlyTrueRevenue < 0 || in.RequestedAmount < 0 || in.ExistingDailyPayment < 0 {
		writeError(w, http.StatusBadRequest, "amounts must not be negative")
		return
	}
	writeJSON(w, http.StatusOK, h.pipeline.Assessor().Offers().Calculate(in))
}

// ValidateOffer handles POST /offers/validate.
func (h *Handler) ValidateOffer(w http.ResponseWriter, r *http.Request) {
	var o domain.Offer
	if !decodeJSON(w, r, &o) {
		return
	}
	writeJSON(w, http.StatusOK, h.pipeline.Assessor().Offers().ValidateOfferTerms(o))
}

// OfferScenarios handles POST /offers/scenarios.
func (h *Handler) OfferScenarios(w http.ResponseWriter, r *http.Request) {
	var in offer.Input
	if !decodeJSON(w, r, &in) {
		return
	}
	if in.MonthlyTrueRevenue < 0 || in.RequestedAmount < 0 || in.ExistingDailyPayment < 0 {
		writeError(w, http.StatusBadRequest, "amounts must not be negative")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"scenarios": h.pipeline.Assessor().Offers().Scenarios(in),
	})
}

// Capacity handles POST /capacity. An override can only lower the
// configured withhold cap.
func (h *Handler) Capacity(w http.ResponseWriter, r *http.Request) {
	var req CapacityRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.MonthlyTrueRevenue < 0 || req.ExistingDailyPayment < 0 {
		writeError(w, http.StatusBadRequest, "amounts must not be negative")
		return
	}
	snap := h.pipeline.Capacity().Snapshot(req.MonthlyTrueRevenue, req.ExistingDailyPayment, req.MaxWithholdPercent)
	writeJSON(w, http.StatusOK, capacity.Rounded(snap))
}

// OptimizeStacking handles POST /stacking.
func (h *Handler) OptimizeStacking(w http.ResponseWriter, r *http.Request) {
	var in stacking.Input
	if !decodeJSON(w, r, &in) {
		return
	}
	if in.MonthlyRevenue < 0 || in.RequestedAmount < 0 {
		writeError(w, http.StatusBadRequest, "amounts must not be negative")
		return
	}
	if err := domain.ValidatePositions(in.ExistingPositions); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.pipeline.Assessor().Stacking().Optimize(in))
}

// AnalyzeBuyout handles POST /stacking/buyout.
func (h *Handler) AnalyzeBuyout(w http.ResponseWriter, r *http.Request) {
	var req BuyoutRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := domain.ValidatePositions(req.Positions); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.pipeline.Assessor().Stacking().AnalyzeBuyout(req.Positions, req.NewFunding))
}

// QuickCheck handles POST /quick-check.
func (h *Handler) QuickCheck(w http.ResponseWriter, r *http.Request) {
	var in scoring.QuickInput
	if !decodeJSON(w, r, &in) {
		return
	}
	writeJSON(w, http.StatusOK, h.pipeline.Assessor().Engine().QuickCheck(in))
}
