package settlement

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/appetiteclub/pos/services/pos/internal/order"
)

// Allocate splits total into cent amounts proportional to weights. Cents lost
// to flooring go one each to the first shares, so the shares always sum to
// total and the same inputs always give the same shares.
func Allocate(total decimal.Decimal, weights []decimal.Decimal) []decimal.Decimal {
	n := len(weights)
	shares := make([]decimal.Decimal, n)
	if n == 0 {
		return shares
	}

	sum := decimal.Zero
	for _, w := range weights {
		sum = sum.Add(w)
	}
	if !sum.IsPositive() {
		weights = make([]decimal.Decimal, n)
		for i := range weights {
			weights[i] = decimal.NewFromInt(1)
		}
		sum = decimal.NewFromInt(int64(n))
	}

	cents := total.Shift(2).Round(0).IntPart()
	parts := make([]int64, n)
	var allocated int64
	for i, w := range weights {
		parts[i] = decimal.NewFromInt(cents).Mul(w).Div(sum).Floor().IntPart()
		allocated += parts[i]
	}

	for i := 0; allocated < cents; i = (i + 1) % n {
		parts[i]++
		allocated++
	}

	for i, p := range parts {
		shares[i] = decimal.New(p, -2)
	}
	return shares
}

// EqualShares divides total between count guests.
func EqualShares(total decimal.Decimal, count int) ([]decimal.Decimal, error) {
	if count < 2 {
		return nil, fmt.Errorf("%w: equal split needs at least 2 guests", order.ErrInvalidSplit)
	}
	weights := make([]decimal.Decimal, count)
	for i := range weights {
		weights[i] = decimal.NewFromInt(1)
	}
	return Allocate(total, weights), nil
}

// SeatShare is the part of the payable total a seat owes.
type SeatShare struct {
	Seat     int             `json:"seat"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Amount   decimal.Decimal `json:"amount"`
}

// SeatShares spreads the payable total over seats in proportion to their
// subtotals, so tax, tip and discount are shared the same way.
func SeatShares(payable decimal.Decimal, index order.SeatCourseIndex) []SeatShare {
	weights := make([]decimal.Decimal, 0, len(index))
	for _, g := range index {
		weights = append(weights, g.Subtotal())
	}
	amounts := Allocate(payable, weights)

	shares := make([]SeatShare, 0, len(index))
	for i, g := range index {
		shares = append(shares, SeatShare{Seat: g.Seat, Subtotal: weights[i], Amount: amounts[i]})
	}
	return shares
}

// Change is what a cash tender returns. Tendering less than due is an error.
func Change(due, tendered decimal.Decimal) (decimal.Decimal, error) {
	if tendered.LessThan(due) {
		return decimal.Zero, fmt.Errorf("%w: tendered %s, due %s", order.ErrInsufficientAmount, tendered.StringFixed(2), due.StringFixed(2))
	}
	return tendered.Sub(due), nil
}
