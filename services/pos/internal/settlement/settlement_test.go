package settlement

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/appetiteclub/pos/services/pos/internal/order"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

var testOrderID = uuid.MustParse("550e8400-e29b-41d4-a716-446655440100")

func item(seq, seat int, qty int, price string) *order.OrderItem {
	return &order.OrderItem{
		ID:            uuid.New(),
		OrderID:       testOrderID,
		Name:          "Item",
		Quantity:      qty,
		UnitPrice:     dec(price),
		Seat:          seat,
		Course:        1,
		KitchenStatus: "new",
		Sequence:      seq,
	}
}

func snapshotOf(items ...*order.OrderItem) *order.Snapshot {
	o := order.NewOrder(order.TypeCounter, nil)
	o.ID = testOrderID
	o.Status = order.StatusFinalized
	return &order.Snapshot{Order: o, Items: items}
}

func record(t *testing.T, snap *order.Snapshot, c *Charge) {
	t.Helper()
	snap.Payments = append(snap.Payments, c.Payment(snap.Order.ID, "tester"))
}

func TestAllocate(t *testing.T) {
	tests := []struct {
		name    string
		total   string
		weights []string
		want    []string
	}{
		{name: "evenSplit", total: "50.00", weights: []string{"1", "1"}, want: []string{"25.00", "25.00"}},
		{name: "remainderToFirst", total: "10.00", weights: []string{"1", "1", "1"}, want: []string{"3.34", "3.33", "3.33"}},
		{name: "twoCentsRemainder", total: "0.05", weights: []string{"1", "1", "1"}, want: []string{"0.02", "0.02", "0.01"}},
		{name: "proportional", total: "30.00", weights: []string{"10", "20"}, want: []string{"10.00", "20.00"}},
		{name: "zeroWeights", total: "1.00", weights: []string{"0", "0"}, want: []string{"0.50", "0.50"}},
		{name: "noWeights", total: "1.00", weights: nil, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var weights []decimal.Decimal
			for _, w := range tt.weights {
				weights = append(weights, dec(w))
			}
			got := Allocate(dec(tt.total), weights)
			if len(got) != len(tt.want) {
				t.Fatalf("Allocate() = %v, want %v", got, tt.want)
			}
			sum := decimal.Zero
			for i := range got {
				if !got[i].Equal(dec(tt.want[i])) {
					t.Errorf("Allocate()[%d] = %s, want %s", i, got[i], tt.want[i])
				}
				sum = sum.Add(got[i])
			}
			if len(got) > 0 && !sum.Equal(dec(tt.total)) {
				t.Errorf("Allocate() sums to %s, want %s", sum, tt.total)
			}
		})
	}
}

func TestEqualShares(t *testing.T) {
	tests := []struct {
		name    string
		total   string
		count   int
		wantErr bool
	}{
		{name: "twoGuests", total: "50.00", count: 2},
		{name: "threeGuests", total: "10.00", count: 3},
		{name: "sevenGuests", total: "123.45", count: 7},
		{name: "oneGuest", total: "10.00", count: 1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shares, err := EqualShares(dec(tt.total), tt.count)
			if (err != nil) != tt.wantErr {
				t.Fatalf("EqualShares() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, order.ErrInvalidSplit) {
					t.Errorf("EqualShares() error = %v, want ErrInvalidSplit", err)
				}
				return
			}
			sum := decimal.Zero
			for _, s := range shares {
				sum = sum.Add(s)
			}
			if !sum.Equal(dec(tt.total)) {
				t.Errorf("EqualShares() sum = %s, want %s", sum, tt.total)
			}
			again, _ := EqualShares(dec(tt.total), tt.count)
			for i := range shares {
				if !shares[i].Equal(again[i]) {
					t.Errorf("EqualShares() not deterministic at %d", i)
				}
			}
		})
	}
}

func TestChange(t *testing.T) {
	tests := []struct {
		name     string
		due      string
		tendered string
		want     string
		wantErr  error
	}{
		{name: "overTender", due: "18.40", tendered: "20.00", want: "1.60"},
		{name: "exactTender", due: "18.40", tendered: "18.40", want: "0.00"},
		{name: "underTender", due: "18.40", tendered: "18.00", wantErr: order.ErrInsufficientAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Change(dec(tt.due), dec(tt.tendered))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Change() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Change() error = %v", err)
			}
			if !got.Equal(dec(tt.want)) {
				t.Errorf("Change() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestAdjustments(t *testing.T) {
	var adj Adjustments

	if err := adj.SetTipPercent(15); err != nil {
		t.Fatalf("SetTipPercent() error = %v", err)
	}
	if got := adj.Tip(dec("40.00")); !got.Equal(dec("6.00")) {
		t.Errorf("Tip() = %s, want 6.00", got)
	}

	if err := adj.SetTipAmount(dec("2.50")); err != nil {
		t.Fatalf("SetTipAmount() error = %v", err)
	}
	if adj.TipPercent != 0 {
		t.Error("SetTipAmount() should clear the percentage")
	}
	if got := adj.Tip(dec("40.00")); !got.Equal(dec("2.50")) {
		t.Errorf("Tip() = %s, want 2.50", got)
	}

	if err := adj.SetTipPercent(10); err != nil {
		t.Fatalf("SetTipPercent() error = %v", err)
	}
	if adj.CustomTip || !adj.TipAmount.IsZero() {
		t.Error("SetTipPercent() should clear the custom amount")
	}

	if err := adj.SetTipPercent(12); !errors.Is(err, order.ErrInvalidTip) {
		t.Errorf("SetTipPercent(12) error = %v, want ErrInvalidTip", err)
	}
	if err := adj.SetTipAmount(dec("-1")); !errors.Is(err, order.ErrInvalidTip) {
		t.Errorf("SetTipAmount(-1) error = %v, want ErrInvalidTip", err)
	}

	_ = adj.ApplyDiscount(dec("5.00"))
	_ = adj.ApplyDiscount(dec("3.00"))
	if !adj.Discount.Equal(dec("3.00")) {
		t.Errorf("second discount should replace the first, got %s", adj.Discount)
	}
	adj.ClearDiscount()
	if !adj.Discount.IsZero() {
		t.Error("ClearDiscount() should reset the discount")
	}
}

func TestComputeBill(t *testing.T) {
	snap := snapshotOf(item(1, 1, 1, "8.00"), item(2, 2, 2, "5.50"))
	_ = snap.Items[1].MarkVoided("wrong")
	snap.Items = append(snap.Items, item(3, 2, 1, "12.00"))

	var adj Adjustments
	_ = adj.SetTipPercent(10)
	_ = adj.ApplyDiscount(dec("1.00"))

	ledger, err := Compute(snap, adj, Split{}, decimal.Zero)
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	bill := ledger.Bill()

	if !bill.Subtotal.Equal(dec("20.00")) {
		t.Errorf("Subtotal = %s, want 20.00", bill.Subtotal)
	}
	if !bill.Tip.Equal(dec("2.00")) {
		t.Errorf("Tip = %s, want 2.00", bill.Tip)
	}
	if !bill.Payable.Equal(dec("21.00")) {
		t.Errorf("Payable = %s, want 21.00", bill.Payable)
	}
	if !bill.Remaining.Equal(bill.Payable) {
		t.Errorf("Remaining = %s, want %s", bill.Remaining, bill.Payable)
	}
}

func TestComputeDiscountNeverNegative(t *testing.T) {
	snap := snapshotOf(item(1, 1, 1, "4.00"))
	var adj Adjustments
	_ = adj.ApplyDiscount(dec("10.00"))

	ledger, err := Compute(snap, adj, Split{}, decimal.Zero)
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	if !ledger.Bill().Payable.IsZero() {
		t.Errorf("Payable = %s, want 0", ledger.Bill().Payable)
	}
}

func TestChargeSinglePayment(t *testing.T) {
	tests := []struct {
		name       string
		tender     Tender
		wantErr    error
		wantChange string
	}{
		{name: "cashWithChange", tender: Tender{Type: "cash", Tendered: dec("20.00")}, wantChange: "1.60"},
		{name: "cashExact", tender: Tender{Type: "cash", Tendered: dec("18.40")}, wantChange: "0.00"},
		{name: "cashShort", tender: Tender{Type: "cash", Tendered: dec("18.00")}, wantErr: order.ErrInsufficientAmount},
		{name: "cashNoAmountIsExact", tender: Tender{Type: "cash"}, wantChange: "0"},
		{name: "cardDefaultsToDue", tender: Tender{Type: "card"}, wantChange: "0"},
		{name: "cardShort", tender: Tender{Type: "card", Amount: dec("10.00")}, wantErr: order.ErrInsufficientAmount},
		{name: "cardOver", tender: Tender{Type: "card", Amount: dec("30.00")}, wantErr: order.ErrInvalidAmount},
		{name: "unknownTender", tender: Tender{Type: "crypto"}, wantErr: order.ErrUnknownTender},
		{name: "splitWithoutStrategy", tender: Tender{Type: "split"}, wantErr: order.ErrSplitIncomplete},
		{name: "roomChargeWithoutRoom", tender: Tender{Type: "room-charge"}, wantErr: order.ErrInvalidTender},
		{name: "roomCharge", tender: Tender{Type: "room-charge", Room: &order.RoomCharge{RoomNumber: "204", GuestName: "Ada"}}, wantChange: "0"},
		{name: "negativeAmount", tender: Tender{Type: "card", Amount: dec("-1")}, wantErr: order.ErrInvalidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := snapshotOf(item(1, 1, 2, "9.20"))
			ledger, err := Compute(snap, Adjustments{}, Split{}, decimal.Zero)
			if err != nil {
				t.Fatalf("Compute() error = %v", err)
			}

			c, err := ledger.Charge(tt.tender)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Charge() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Charge() error = %v", err)
			}
			if !c.Applied.Equal(dec("18.40")) {
				t.Errorf("Applied = %s, want 18.40", c.Applied)
			}
			if !c.Change.Equal(dec(tt.wantChange)) {
				t.Errorf("Change = %s, want %s", c.Change, tt.wantChange)
			}
			if !c.Closes {
				t.Error("full payment should close the order")
			}
		})
	}
}

func TestChargePartialThenCard(t *testing.T) {
	snap := snapshotOf(item(1, 1, 1, "30.00"))

	ledger, _ := Compute(snap, Adjustments{}, Split{}, decimal.Zero)
	c, err := ledger.Charge(Tender{Type: "partial", Amount: dec("10.00")})
	if err != nil {
		t.Fatalf("Charge(partial) error = %v", err)
	}
	if c.Closes {
		t.Error("partial payment should leave the order open")
	}
	if !c.Remaining.Equal(dec("20.00")) {
		t.Errorf("Remaining = %s, want 20.00", c.Remaining)
	}
	record(t, snap, c)

	ledger, _ = Compute(snap, Adjustments{}, Split{}, decimal.Zero)
	if _, err := ledger.Charge(Tender{Type: "partial", Amount: dec("25.00")}); !errors.Is(err, order.ErrInvalidAmount) {
		t.Errorf("Charge(partial over remaining) error = %v, want ErrInvalidAmount", err)
	}
	if _, err := ledger.Charge(Tender{Type: "partial"}); !errors.Is(err, order.ErrInvalidAmount) {
		t.Errorf("Charge(partial without amount) error = %v, want ErrInvalidAmount", err)
	}

	c, err = ledger.Charge(Tender{Type: "card"})
	if err != nil {
		t.Fatalf("Charge(card) error = %v", err)
	}
	if !c.Applied.Equal(dec("20.00")) || !c.Closes {
		t.Errorf("Charge(card) applied %s closes %v, want 20.00 true", c.Applied, c.Closes)
	}
	record(t, snap, c)

	ledger, _ = Compute(snap, Adjustments{}, Split{}, decimal.Zero)
	if !ledger.Complete() {
		t.Error("Complete() should be true once paid")
	}
	if _, err := ledger.Charge(Tender{Type: "card"}); !errors.Is(err, order.ErrInvalidAmount) {
		t.Errorf("Charge() on settled order error = %v, want ErrInvalidAmount", err)
	}
}

func TestChargeEqualSplit(t *testing.T) {
	snap := snapshotOf(item(1, 1, 1, "10.00"))
	split := Split{Strategy: order.SplitEqual, Count: 3}

	ledger, err := Compute(snap, Adjustments{}, split, decimal.Zero)
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}

	if _, err := ledger.Charge(Tender{Type: "card"}); !errors.Is(err, order.ErrSplitIncomplete) {
		t.Fatalf("Charge() without share error = %v, want ErrSplitIncomplete", err)
	}
	if _, err := ledger.Charge(Tender{Type: "partial", Share: 1, Amount: dec("1")}); !errors.Is(err, order.ErrInvalidTender) {
		t.Fatalf("Charge(partial) under equal split error = %v, want ErrInvalidTender", err)
	}
	if _, err := ledger.Charge(Tender{Type: "card", Share: 4}); !errors.Is(err, order.ErrInvalidTender) {
		t.Fatalf("Charge() unknown share error = %v, want ErrInvalidTender", err)
	}

	want := []string{"3.34", "3.33", "3.33"}
	sum := decimal.Zero
	for share := 1; share <= 3; share++ {
		ledger, _ = Compute(snap, Adjustments{}, split, decimal.Zero)
		c, err := ledger.Charge(Tender{Type: "split", Share: share})
		if err != nil {
			t.Fatalf("Charge(share %d) error = %v", share, err)
		}
		if !c.Applied.Equal(dec(want[share-1])) {
			t.Errorf("share %d = %s, want %s", share, c.Applied, want[share-1])
		}
		if c.Closes != (share == 3) {
			t.Errorf("share %d closes = %v", share, c.Closes)
		}
		sum = sum.Add(c.Applied)
		record(t, snap, c)

		ledger, _ = Compute(snap, Adjustments{}, split, decimal.Zero)
		if share < 3 {
			if _, err := ledger.Charge(Tender{Type: "card", Share: share}); !errors.Is(err, order.ErrShareSettled) {
				t.Errorf("paying share %d twice error = %v, want ErrShareSettled", share, err)
			}
		}
	}

	if !sum.Equal(dec("10.00")) {
		t.Errorf("equal shares sum = %s, want 10.00", sum)
	}
}

func TestChargeBySeat(t *testing.T) {
	snap := snapshotOf(item(1, 1, 1, "8.00"), item(2, 2, 2, "5.50"), item(3, 3, 1, "6.00"))
	split := Split{Strategy: order.SplitBySeat}

	var adj Adjustments
	_ = adj.SetTipPercent(10)

	ledger, err := Compute(snap, adj, split, decimal.Zero)
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	bill := ledger.Bill()
	if len(bill.Seats) != 3 {
		t.Fatalf("Seats = %d, want 3", len(bill.Seats))
	}

	sum := decimal.Zero
	for _, s := range bill.Seats {
		sum = sum.Add(s.Amount)
	}
	if !sum.Equal(bill.Payable) {
		t.Errorf("seat amounts sum = %s, payable = %s", sum, bill.Payable)
	}

	for _, seat := range []int{2, 3} {
		ledger, _ = Compute(snap, adj, split, decimal.Zero)
		c, err := ledger.Charge(Tender{Type: "card", Seat: seat})
		if err != nil {
			t.Fatalf("Charge(seat %d) error = %v", seat, err)
		}
		record(t, snap, c)
	}

	ledger, _ = Compute(snap, adj, split, decimal.Zero)
	if got := ledger.Outstanding(); len(got) != 1 || got[0] != 1 {
		t.Errorf("Outstanding() = %v, want [1]", got)
	}
	if ledger.Complete() {
		t.Error("Complete() should be false while seat 1 is unpaid")
	}

	c, err := ledger.Charge(Tender{Type: "cash", Seat: 1, Tendered: dec("20.00")})
	if err != nil {
		t.Fatalf("Charge(seat 1) error = %v", err)
	}
	if !c.Closes {
		t.Error("last seat should close the order")
	}
	record(t, snap, c)

	tips := decimal.Zero
	for _, p := range snap.Payments {
		tips = tips.Add(p.Tip)
	}
	if !tips.Equal(bill.Tip) {
		t.Errorf("tip portions sum = %s, want %s", tips, bill.Tip)
	}
}

func TestChargeCustomSplit(t *testing.T) {
	snap := snapshotOf(item(1, 1, 1, "25.00"))
	split := Split{Strategy: order.SplitCustom}

	amounts := []string{"10.00", "7.50"}
	for _, a := range amounts {
		ledger, _ := Compute(snap, Adjustments{}, split, decimal.Zero)
		c, err := ledger.Charge(Tender{Type: "card", Amount: dec(a)})
		if err != nil {
			t.Fatalf("Charge(%s) error = %v", a, err)
		}
		if c.Closes {
			t.Errorf("Charge(%s) should not close", a)
		}
		record(t, snap, c)
	}

	ledger, _ := Compute(snap, Adjustments{}, split, decimal.Zero)
	if !ledger.Bill().Remaining.Equal(dec("7.50")) {
		t.Fatalf("Remaining = %s, want 7.50", ledger.Bill().Remaining)
	}
	if _, err := ledger.Charge(Tender{Type: "card", Amount: dec("8.00")}); !errors.Is(err, order.ErrInvalidAmount) {
		t.Errorf("Charge() over remaining error = %v, want ErrInvalidAmount", err)
	}

	c, err := ledger.Charge(Tender{Type: "cash", Amount: dec("7.50"), Tendered: dec("10.00")})
	if err != nil {
		t.Fatalf("Charge(cash) error = %v", err)
	}
	if !c.Change.Equal(dec("2.50")) || !c.Closes {
		t.Errorf("Charge(cash) change %s closes %v, want 2.50 true", c.Change, c.Closes)
	}
}

func TestChargeBySeatWithoutItems(t *testing.T) {
	snap := snapshotOf()
	if _, err := Compute(snap, Adjustments{}, Split{Strategy: order.SplitBySeat}, decimal.Zero); !errors.Is(err, order.ErrInvalidSplit) {
		t.Errorf("Compute() error = %v, want ErrInvalidSplit", err)
	}
}

func TestChargeBuildsPayment(t *testing.T) {
	snap := snapshotOf(item(1, 1, 1, "10.00"))
	var adj Adjustments
	_ = adj.SetTipAmount(dec("2.00"))

	ledger, _ := Compute(snap, adj, Split{}, decimal.Zero)
	c, err := ledger.Charge(Tender{Type: "card"})
	if err != nil {
		t.Fatalf("Charge() error = %v", err)
	}

	p := c.Payment(snap.Order.ID, "ana")
	if p.ID == uuid.Nil || p.OrderID != snap.Order.ID {
		t.Error("Payment() should carry an id and the order id")
	}
	if !p.Amount.Equal(dec("12.00")) || !p.Tip.Equal(dec("2.00")) {
		t.Errorf("Payment() amount %s tip %s, want 12.00 2.00", p.Amount, p.Tip)
	}
	if !p.Net().Equal(dec("10.00")) {
		t.Errorf("Net() = %s, want 10.00", p.Net())
	}
}
