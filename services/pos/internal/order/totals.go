package order

import "github.com/shopspring/decimal"

type Totals struct {
	Subtotal   decimal.Decimal `json:"subtotal"`
	Tax        decimal.Decimal `json:"tax"`
	GrandTotal decimal.Decimal `json:"grand_total"`
}

// ComputeTotals sums active line totals. Voided items never count.
func ComputeTotals(items []*OrderItem, taxRate decimal.Decimal) Totals {
	subtotal := decimal.Zero
	for _, item := range items {
		if item.IsVoided() {
			continue
		}
		subtotal = subtotal.Add(item.LineTotal())
	}
	tax := subtotal.Mul(taxRate).Round(2)
	return Totals{
		Subtotal:   subtotal,
		Tax:        tax,
		GrandTotal: subtotal.Add(tax),
	}
}
