package settlement

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/appetiteclub/pos/services/pos/internal/order"
)

// TipPercentages is the fixed tip menu offered at settlement.
var TipPercentages = []int{0, 5, 10, 15, 20}

// Adjustments are settlement time tip and discount. They live in the session
// and only reach the backend as part of recorded payments.
type Adjustments struct {
	TipPercent int             `json:"tip_percent"`
	TipAmount  decimal.Decimal `json:"tip_amount"`
	CustomTip  bool            `json:"custom_tip"`
	Discount   decimal.Decimal `json:"discount"`
}

// SetTipPercent selects a percentage from the tip menu and clears any custom amount.
func (a *Adjustments) SetTipPercent(percent int) error {
	valid := false
	for _, p := range TipPercentages {
		if p == percent {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("%w: %d%% is not offered", order.ErrInvalidTip, percent)
	}
	a.TipPercent = percent
	a.TipAmount = decimal.Zero
	a.CustomTip = false
	return nil
}

// SetTipAmount sets a custom tip and clears the percentage selection.
func (a *Adjustments) SetTipAmount(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("%w: negative tip", order.ErrInvalidTip)
	}
	a.TipPercent = 0
	a.TipAmount = amount.Round(2)
	a.CustomTip = true
	return nil
}

// ApplyDiscount replaces the current discount.
func (a *Adjustments) ApplyDiscount(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("%w: negative discount", order.ErrInvalidAmount)
	}
	a.Discount = amount.Round(2)
	return nil
}

func (a *Adjustments) ClearDiscount() {
	a.Discount = decimal.Zero
}

// Tip resolves the tip against the pre-tip subtotal.
func (a Adjustments) Tip(subtotal decimal.Decimal) decimal.Decimal {
	if a.CustomTip {
		return a.TipAmount
	}
	if a.TipPercent == 0 {
		return decimal.Zero
	}
	return subtotal.Mul(decimal.NewFromInt(int64(a.TipPercent))).Div(decimal.NewFromInt(100)).Round(2)
}

// Split is the split strategy of a payment session.
type Split struct {
	Strategy string `json:"strategy"`
	Count    int    `json:"count,omitempty"`
}

func (s Split) Validate() error {
	switch s.Strategy {
	case order.SplitNone, order.SplitBySeat, order.SplitCustom:
		return nil
	case order.SplitEqual:
		if s.Count < 2 {
			return fmt.Errorf("%w: equal split needs at least 2 guests", order.ErrInvalidSplit)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown strategy %q", order.ErrInvalidSplit, s.Strategy)
	}
}

// Shared reports whether the strategy divides the bill into fixed shares.
func (s Split) Shared() bool {
	return s.Strategy == order.SplitEqual || s.Strategy == order.SplitBySeat
}
