package order

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Snapshot is the authoritative state of one order as returned by the backend.
// Sessions replace snapshots wholesale and never patch them in place.
type Snapshot struct {
	Order    *Order        `json:"order"`
	Items    []*OrderItem  `json:"items"`
	Payments []*Payment    `json:"payments"`
	Voids    []*VoidRecord `json:"voids"`
}

// ActiveItems returns the items that still bill, in the order they were added.
func (s *Snapshot) ActiveItems() []*OrderItem {
	if s == nil {
		return nil
	}
	var active []*OrderItem
	for _, item := range s.Items {
		if !item.IsVoided() {
			active = append(active, item)
		}
	}
	return active
}

func (s *Snapshot) Item(id uuid.UUID) *OrderItem {
	if s == nil {
		return nil
	}
	for _, item := range s.Items {
		if item.ID == id {
			return item
		}
	}
	return nil
}

// NextSequence is the sequence number for the next added item.
func (s *Snapshot) NextSequence() int {
	next := 1
	if s == nil {
		return next
	}
	for _, item := range s.Items {
		if item.Sequence >= next {
			next = item.Sequence + 1
		}
	}
	return next
}

// Paid sums what payments settled so far, tips included.
func (s *Snapshot) Paid() decimal.Decimal {
	paid := decimal.Zero
	if s == nil {
		return paid
	}
	for _, p := range s.Payments {
		paid = paid.Add(p.Amount)
	}
	return paid
}

// Totals computes the order totals at the given tax rate.
func (s *Snapshot) Totals(taxRate decimal.Decimal) Totals {
	return ComputeTotals(s.ActiveItems(), taxRate)
}

func (s *Snapshot) Elapsed(now time.Time) time.Duration {
	if s == nil || s.Order == nil {
		return 0
	}
	return s.Order.Elapsed(now)
}

func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	c := &Snapshot{Order: s.Order.Clone()}
	for _, item := range s.Items {
		c.Items = append(c.Items, item.Clone())
	}
	for _, p := range s.Payments {
		c.Payments = append(c.Payments, p.Clone())
	}
	for _, v := range s.Voids {
		c.Voids = append(c.Voids, v.Clone())
	}
	return c
}
