package settlement

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/appetiteclub/pos/pkg/enums/tender"
	"github.com/appetiteclub/pos/services/pos/internal/order"
)

// Bill is the payable view of an order at settlement time.
type Bill struct {
	Subtotal    decimal.Decimal     `json:"subtotal"`
	Tax         decimal.Decimal     `json:"tax"`
	Tip         decimal.Decimal     `json:"tip"`
	Discount    decimal.Decimal     `json:"discount"`
	Payable     decimal.Decimal     `json:"payable"`
	Paid        decimal.Decimal     `json:"paid"`
	Remaining   decimal.Decimal     `json:"remaining"`
	Split       Split               `json:"split"`
	Shares      []order.ShareAmount `json:"shares,omitempty"`
	Seats       []SeatShare         `json:"seats,omitempty"`
	PaidShares  []int               `json:"paid_shares,omitempty"`
	Outstanding []int               `json:"outstanding,omitempty"`
}

// Tender is a payment attempt as entered by the operator. Amount is what
// should be applied to the bill, zero meaning "whatever is due"; Tendered is
// the cash handed over.
type Tender struct {
	Type     string            `json:"type"`
	Amount   decimal.Decimal   `json:"amount"`
	Tendered decimal.Decimal   `json:"tendered"`
	Share    int               `json:"share,omitempty"`
	Seat     int               `json:"seat,omitempty"`
	Room     *order.RoomCharge `json:"room,omitempty"`
}

// Charge is a validated tender ready to be recorded.
type Charge struct {
	Tender    string            `json:"tender"`
	Due       decimal.Decimal   `json:"due"`
	Applied   decimal.Decimal   `json:"applied"`
	Tendered  decimal.Decimal   `json:"tendered"`
	Change    decimal.Decimal   `json:"change"`
	Tip       decimal.Decimal   `json:"tip"`
	Discount  decimal.Decimal   `json:"discount"`
	Remaining decimal.Decimal   `json:"remaining"`
	Closes    bool              `json:"closes"`
	Split     *order.SplitInfo  `json:"split,omitempty"`
	Room      *order.RoomCharge `json:"room,omitempty"`
}

// Payment builds the record the backend stores for this charge.
func (c *Charge) Payment(orderID uuid.UUID, actor string) *order.Payment {
	p := &order.Payment{
		OrderID:  orderID,
		Tender:   c.Tender,
		Amount:   c.Applied,
		Tip:      c.Tip,
		Discount: c.Discount,
		Tendered: c.Tendered,
		Change:   c.Change,
		Split:    c.Split,
		Room:     c.Room,
		Actor:    actor,
	}
	p.BeforeCreate()
	return p
}

// Ledger evaluates tenders against one order snapshot.
type Ledger struct {
	bill     Bill
	payments []*order.Payment
}

// Compute builds the ledger for an order snapshot.
func Compute(snap *order.Snapshot, adj Adjustments, split Split, taxRate decimal.Decimal) (*Ledger, error) {
	if snap == nil || snap.Order == nil {
		return nil, order.ErrNoOrder
	}
	if err := split.Validate(); err != nil {
		return nil, err
	}

	totals := snap.Totals(taxRate)
	tip := adj.Tip(totals.Subtotal)
	payable := totals.GrandTotal.Add(tip).Sub(adj.Discount)
	if payable.IsNegative() {
		payable = decimal.Zero
	}

	paid := snap.Paid()
	remaining := payable.Sub(paid)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}

	bill := Bill{
		Subtotal:  totals.Subtotal,
		Tax:       totals.Tax,
		Tip:       tip,
		Discount:  adj.Discount,
		Payable:   payable,
		Paid:      paid,
		Remaining: remaining,
		Split:     split,
	}

	paidByKey := make(map[int]decimal.Decimal)
	for _, p := range snap.Payments {
		if p.Split == nil || p.Split.Strategy != split.Strategy {
			continue
		}
		key := p.Split.Share
		if split.Strategy == order.SplitBySeat {
			key = p.Split.Seat
		}
		if key == 0 {
			continue
		}
		if _, seen := paidByKey[key]; !seen {
			bill.PaidShares = append(bill.PaidShares, key)
		}
		paidByKey[key] = paidByKey[key].Add(p.Amount)
	}

	switch split.Strategy {
	case order.SplitEqual:
		keys := make([]int, split.Count)
		weights := make([]decimal.Decimal, split.Count)
		for i := range keys {
			keys[i] = i + 1
			weights[i] = decimal.NewFromInt(1)
		}
		bill.Shares = openShares(keys, weights, paidByKey, remaining)
	case order.SplitBySeat:
		index := order.Project(snap.Items)
		if len(index) == 0 {
			return nil, fmt.Errorf("%w: no seat has active items", order.ErrInvalidSplit)
		}
		bill.Seats = SeatShares(payable, index)
		keys := make([]int, len(bill.Seats))
		weights := make([]decimal.Decimal, len(bill.Seats))
		for i, seat := range bill.Seats {
			keys[i] = seat.Seat
			weights[i] = seat.Subtotal
		}
		bill.Shares = openShares(keys, weights, paidByKey, remaining)
		for i := range bill.Seats {
			bill.Seats[i].Amount = bill.Shares[i].Amount
		}
	}

	l := &Ledger{bill: bill, payments: snap.Payments}
	l.bill.Outstanding = l.Outstanding()
	return l, nil
}

// openShares spreads the remaining balance over the keys nobody paid yet, in
// proportion to weights. Paid keys keep what was recorded against them, so
// the open shares always add up to the remaining balance even after the
// order was reopened and edited.
func openShares(keys []int, weights []decimal.Decimal, paid map[int]decimal.Decimal, remaining decimal.Decimal) []order.ShareAmount {
	shares := make([]order.ShareAmount, len(keys))
	var open []int
	var openWeights []decimal.Decimal
	for i, k := range keys {
		shares[i].Key = k
		if amount, ok := paid[k]; ok {
			shares[i].Amount = amount
			continue
		}
		open = append(open, i)
		openWeights = append(openWeights, weights[i])
	}

	for j, amount := range Allocate(remaining, openWeights) {
		shares[open[j]].Amount = amount
	}
	return shares
}

func (l *Ledger) Bill() Bill {
	return l.bill
}

// Complete reports whether nothing is left to pay.
func (l *Ledger) Complete() bool {
	return !l.bill.Remaining.IsPositive()
}

// Outstanding lists the share keys (guests or seats) still unpaid.
func (l *Ledger) Outstanding() []int {
	var keys []int
	for _, s := range l.bill.Shares {
		if !l.sharePaid(s.Key) {
			keys = append(keys, s.Key)
		}
	}
	return keys
}

func (l *Ledger) sharePaid(key int) bool {
	for _, k := range l.bill.PaidShares {
		if k == key {
			return true
		}
	}
	return false
}

// Charge validates a tender against the active split and computes what it settles.
func (l *Ledger) Charge(t Tender) (*Charge, error) {
	tt := tender.ByName(t.Type)
	if tt == nil {
		return nil, fmt.Errorf("%w: %q", order.ErrUnknownTender, t.Type)
	}
	if t.Amount.IsNegative() || t.Tendered.IsNegative() {
		return nil, fmt.Errorf("%w: negative amount", order.ErrInvalidAmount)
	}
	if !l.bill.Remaining.IsPositive() && len(l.payments) > 0 {
		return nil, fmt.Errorf("%w: nothing left to pay", order.ErrInvalidAmount)
	}
	if *tt == tender.Types.Split && l.bill.Split.Strategy == order.SplitNone {
		return nil, fmt.Errorf("%w: choose a split strategy first", order.ErrSplitIncomplete)
	}
	if *tt == tender.Types.RoomCharge {
		if t.Room == nil || t.Room.RoomNumber == "" || t.Room.GuestName == "" {
			return nil, fmt.Errorf("%w: room charge needs room number and guest", order.ErrInvalidTender)
		}
	}

	due, info, err := l.due(t)
	if err != nil {
		return nil, err
	}

	c := &Charge{Tender: tt.Code(), Due: due, Split: info, Room: t.Room}
	custom := l.bill.Split.Strategy == order.SplitCustom

	switch *tt {
	case tender.Types.Cash:
		amount := due
		if custom && t.Amount.IsPositive() {
			if t.Amount.GreaterThan(due) {
				return nil, fmt.Errorf("%w: %s exceeds remaining %s", order.ErrInvalidAmount, t.Amount.StringFixed(2), due.StringFixed(2))
			}
			amount = t.Amount
		}
		tendered := t.Tendered
		if tendered.IsZero() {
			tendered = t.Amount
		}
		if tendered.IsZero() {
			tendered = amount
		}
		change, err := Change(amount, tendered)
		if err != nil {
			return nil, err
		}
		c.Applied = amount
		c.Tendered = tendered
		c.Change = change

	case tender.Types.Partial:
		if l.bill.Split.Shared() {
			return nil, fmt.Errorf("%w: shares are paid whole", order.ErrInvalidTender)
		}
		if !t.Amount.IsPositive() {
			return nil, fmt.Errorf("%w: partial tender needs an amount", order.ErrInvalidAmount)
		}
		if t.Amount.GreaterThan(due) {
			return nil, fmt.Errorf("%w: %s exceeds remaining %s", order.ErrInvalidAmount, t.Amount.StringFixed(2), due.StringFixed(2))
		}
		c.Applied = t.Amount
		c.Tendered = t.Amount

	default:
		amount := t.Amount
		if amount.IsZero() {
			amount = due
		}
		if amount.GreaterThan(due) {
			return nil, fmt.Errorf("%w: %s exceeds due %s", order.ErrInvalidAmount, amount.StringFixed(2), due.StringFixed(2))
		}
		if !custom && amount.LessThan(due) {
			return nil, fmt.Errorf("%w: %s tender of %s, due %s", order.ErrInsufficientAmount, tt.Code(), amount.StringFixed(2), due.StringFixed(2))
		}
		c.Applied = amount
		c.Tendered = amount
	}

	c.Remaining = l.bill.Remaining.Sub(c.Applied)
	c.Closes = !c.Remaining.IsPositive()
	c.Tip = l.portion(l.bill.Tip, c.Applied, c.Closes, func(p *order.Payment) decimal.Decimal { return p.Tip })
	c.Discount = l.portion(l.bill.Discount, c.Applied, c.Closes, func(p *order.Payment) decimal.Decimal { return p.Discount })
	return c, nil
}

func (l *Ledger) due(t Tender) (decimal.Decimal, *order.SplitInfo, error) {
	split := l.bill.Split
	switch split.Strategy {
	case order.SplitEqual, order.SplitBySeat:
		key := t.Share
		if split.Strategy == order.SplitBySeat {
			key = t.Seat
		}
		if len(l.Outstanding()) == 0 {
			// Every share is paid but items were added after reopening; the
			// balance is settled as a whole.
			return l.bill.Remaining, &order.SplitInfo{Strategy: split.Strategy, Count: len(l.bill.Shares)}, nil
		}
		if key == 0 {
			return decimal.Zero, nil, fmt.Errorf("%w: select which %s pays", order.ErrSplitIncomplete, shareNoun(split))
		}
		for _, s := range l.bill.Shares {
			if s.Key != key {
				continue
			}
			if l.sharePaid(key) {
				return decimal.Zero, nil, fmt.Errorf("%w: %s %d", order.ErrShareSettled, shareNoun(split), key)
			}
			due := s.Amount
			info := &order.SplitInfo{
				Strategy:  split.Strategy,
				Count:     len(l.bill.Shares),
				Breakdown: append([]order.ShareAmount(nil), l.bill.Shares...),
			}
			if split.Strategy == order.SplitEqual {
				info.Share = key
			} else {
				info.Seat = key
			}
			return due, info, nil
		}
		return decimal.Zero, nil, fmt.Errorf("%w: no %s %d", order.ErrInvalidTender, shareNoun(split), key)

	case order.SplitCustom:
		return l.bill.Remaining, &order.SplitInfo{Strategy: order.SplitCustom}, nil

	default:
		return l.bill.Remaining, nil, nil
	}
}

// portion is the part of an adjustment carried by a payment. The payment that
// closes the order takes whatever earlier payments did not.
func (l *Ledger) portion(total, applied decimal.Decimal, closes bool, field func(*order.Payment) decimal.Decimal) decimal.Decimal {
	if total.IsZero() || !l.bill.Payable.IsPositive() {
		return decimal.Zero
	}
	taken := decimal.Zero
	for _, p := range l.payments {
		taken = taken.Add(field(p))
	}
	left := total.Sub(taken)
	if closes {
		return left
	}
	share := total.Mul(applied).Div(l.bill.Payable).Round(2)
	return decimal.Min(share, left)
}

func shareNoun(s Split) string {
	if s.Strategy == order.SplitBySeat {
		return "seat"
	}
	return "guest"
}
