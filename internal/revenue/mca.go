package revenue

import (
	"github.com/opensource-finance/truerev/internal/capacity"
	"github.com/opensource-finance/truerev/internal/domain"
	"github.com/opensource-finance/truerev/internal/money"
)

// FunderPayment is a single detected remittance.
type FunderPayment struct {
	Date        string  `json:"date"`
	Amount      float64 `json:"amount"`
	Description string  `json:"description"`
}

// FunderActivity aggregates remittances to one funder.
type FunderActivity struct {
	Funder                  string          `json:"funder"`
	TotalAmount             float64         `json:"total_amount"`
	PaymentCount            int             `json:"payment_count"`
	Payments                []FunderPayment `json:"payments"`
	AveragePayment          float64         `json:"average_payment"`
	EstimatedDailyPayment   float64         `json:"estimated_daily_payment"`
	EstimatedMonthlyPayment float64         `json:"estimated_monthly_payment"`
}

// MCAPayments is the set of funder remittances found in debits.
type MCAPayments struct {
	ActivePositions     int              `json:"active_positions"`
	TotalDailyPayment   float64          `json:"total_daily_payment"`
	TotalMonthlyPayment float64          `json:"total_monthly_payment"`
	TotalPaid           float64          `json:"total_paid"`
	ByFunder            []FunderActivity `json:"by_funder"`
}

// DetectMCAPayments finds debits paid to known funders. The first matching funder pattern wins.
func (c *Classifier) DetectMCAPayments(txs []domain.Transaction) MCAPayments {
	index := make(map[string]int)
	byFunder := []FunderActivity{}
	totalPaid := 0.0

	for _, tx := range txs {
		if !tx.Valid() || tx.IsCredit() {
			continue
		}
		rule, ok := firstMatch(c.mca, tx.Description)
		if !ok {
			continue
		}
		i, seen := index[rule.Reason]
		if !seen {
			i = len(byFunder)
			index[rule.Reason] = i
			byFunder = append(byFunder, FunderActivity{Funder: rule.Reason})
		}
		f := &byFunder[i]
		f.TotalAmount += tx.Amount
		f.PaymentCount++
		f.Payments = append(f.Payments, FunderPayment{Date: tx.Date, Amount: tx.Amount, Description: tx.Description})
		totalPaid += tx.Amount
	}

	var daily, monthly float64
	for i := range byFunder {
		f := &byFunder[i]
		f.AveragePayment = money.Round2(f.TotalAmount / float64(f.PaymentCount))
		f.EstimatedDailyPayment = f.AveragePayment
		f.EstimatedMonthlyPayment = money.Round2(f.AveragePayment * c.cfg.FunderPaymentDays)
		f.TotalAmount = money.Round2(f.TotalAmount)
		daily += f.EstimatedDailyPayment
		monthly += f.EstimatedMonthlyPayment
	}

	return MCAPayments{
		ActivePositions:     len(byFunder),
		TotalDailyPayment:   money.Round2(daily),
		TotalMonthlyPayment: money.Round2(monthly),
		TotalPaid:           money.Round2(totalPaid),
		ByFunder:            byFunder,
	}
}

// Capacity is a withhold snapshot plus whether another position fits.
type Capacity struct {
	domain.CapacitySnapshot
	CanTakePosition bool `json:"can_take_position"`
}

// MCACapacity computes withhold capacity for monthly true revenue and existing daily remittance.
func (c *Classifier) MCACapacity(monthlyRevenue, existingDaily float64) Capacity {
	s := c.cap.Snapshot(monthlyRevenue, existingDaily, nil)
	return Capacity{
		CapacitySnapshot: capacity.Rounded(s),
		CanTakePosition:  !s.AtCapacity,
	}
}
