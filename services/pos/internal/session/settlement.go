package session

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/appetiteclub/pos/pkg/enums/kitchenstatus"
	"github.com/appetiteclub/pos/services/pos/internal/display"
	"github.com/appetiteclub/pos/services/pos/internal/order"
	"github.com/appetiteclub/pos/services/pos/internal/settlement"
)

type PaymentResult struct {
	Payment   *order.Payment  `json:"payment"`
	Change    decimal.Decimal `json:"change"`
	Remaining decimal.Decimal `json:"remaining"`
	Closed    bool            `json:"closed"`
	Bill      settlement.Bill `json:"bill"`
	Snapshot  *order.Snapshot `json:"snapshot,omitempty"`
	Notice    string          `json:"notice,omitempty"`
}

func (s *Session) SetTipPercent(ctx context.Context, percent int) (*settlement.Bill, error) {
	return s.adjust(ctx, func(adj *settlement.Adjustments, _ *settlement.Split) error {
		return adj.SetTipPercent(percent)
	})
}

func (s *Session) SetTipAmount(ctx context.Context, amount decimal.Decimal) (*settlement.Bill, error) {
	return s.adjust(ctx, func(adj *settlement.Adjustments, _ *settlement.Split) error {
		return adj.SetTipAmount(amount)
	})
}

// ApplyDiscount replaces any previous discount.
func (s *Session) ApplyDiscount(ctx context.Context, amount decimal.Decimal) (*settlement.Bill, error) {
	return s.adjust(ctx, func(adj *settlement.Adjustments, _ *settlement.Split) error {
		return adj.ApplyDiscount(amount)
	})
}

func (s *Session) ClearDiscount(ctx context.Context) (*settlement.Bill, error) {
	return s.adjust(ctx, func(adj *settlement.Adjustments, _ *settlement.Split) error {
		adj.ClearDiscount()
		return nil
	})
}

func (s *Session) SetSplit(ctx context.Context, split settlement.Split) (*settlement.Bill, error) {
	return s.adjust(ctx, func(_ *settlement.Adjustments, current *settlement.Split) error {
		if err := split.Validate(); err != nil {
			return err
		}
		*current = split
		return nil
	})
}

// adjust changes tip, discount or split. The payable total is frozen once
// the first payment is recorded.
func (s *Session) adjust(ctx context.Context, fn func(*settlement.Adjustments, *settlement.Split) error) (*settlement.Bill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.snap == nil {
		return nil, order.ErrNoOrder
	}
	if s.snap.Order.IsDone() {
		return nil, fmt.Errorf("%w: order is %s", order.ErrOrderLocked, s.snap.Order.Status)
	}
	if len(s.snap.Payments) > 0 {
		return nil, fmt.Errorf("%w: payments already recorded", order.ErrOrderLocked)
	}

	adj, split := s.adj, s.split
	if err := fn(&adj, &split); err != nil {
		return nil, err
	}
	ledger, err := settlement.Compute(s.snap, adj, split, s.cfg.TaxRate)
	if err != nil {
		return nil, err
	}

	s.adj, s.split = adj, split
	if s.snap.Order.Status == order.StatusFinalized {
		s.pushUpdate(ctx)
	}
	bill := ledger.Bill()
	return &bill, nil
}

// Bill computes the current settlement state of the held order.
func (s *Session) Bill() (*settlement.Bill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap == nil {
		return nil, order.ErrNoOrder
	}
	ledger, err := settlement.Compute(s.snap, s.adj, s.split, s.cfg.TaxRate)
	if err != nil {
		return nil, err
	}
	bill := ledger.Bill()
	return &bill, nil
}

// Finalize locks the order for settlement. Finalizing twice is harmless.
func (s *Session) Finalize(ctx context.Context, actor string) (*settlement.Bill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.finalize(ctx, actor); err != nil {
		return nil, err
	}
	ledger, err := settlement.Compute(s.snap, s.adj, s.split, s.cfg.TaxRate)
	if err != nil {
		return nil, err
	}
	bill := ledger.Bill()
	return &bill, nil
}

func (s *Session) finalize(ctx context.Context, actor string) error {
	if s.snap == nil {
		return order.ErrNoOrder
	}
	switch s.snap.Order.Status {
	case order.StatusFinalized:
		return nil
	case order.StatusClosed, order.StatusVoided:
		return fmt.Errorf("%w: order is %s", order.ErrOrderLocked, s.snap.Order.Status)
	}
	if len(s.snap.ActiveItems()) == 0 {
		return fmt.Errorf("%w: order has no items", order.ErrEmptyOrder)
	}

	o := s.snap.Order.Clone()
	if err := o.Transition(order.StatusFinalized); err != nil {
		return err
	}
	o.UpdatedBy = actor
	snap, err := s.backend.UpdateOrder(ctx, o)
	if err != nil {
		return wrapBackend("finalize order", err)
	}
	s.snap = snap
	s.logger.Info("order finalized", "order_id", o.ID.String())
	s.pushUpdate(ctx)
	return nil
}

// Pay applies one tender. A payment is appended only once the backend
// confirmed it, and the order closes when nothing remains to pay.
func (s *Session) Pay(ctx context.Context, t settlement.Tender, actor string) (*PaymentResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.finalize(ctx, actor); err != nil {
		return nil, err
	}

	ledger, err := settlement.Compute(s.snap, s.adj, s.split, s.cfg.TaxRate)
	if err != nil {
		return nil, err
	}
	charge, err := ledger.Charge(t)
	if err != nil {
		return nil, err
	}

	payment := charge.Payment(s.snap.Order.ID, actor)
	snap, err := s.backend.RecordPayment(ctx, payment)
	if err != nil {
		return nil, wrapBackend("record payment", err)
	}
	s.snap = snap
	s.logger.Info("payment recorded", "order_id", payment.OrderID.String(), "tender", payment.Tender, "amount", payment.Amount.StringFixed(2))

	result := &PaymentResult{
		Payment:   payment,
		Change:    charge.Change,
		Remaining: charge.Remaining,
	}
	if after, err := settlement.Compute(s.snap, s.adj, s.split, s.cfg.TaxRate); err == nil {
		result.Bill = after.Bill()
	}

	if !charge.Closes {
		result.Snapshot = s.snap.Clone()
		s.pushUpdate(ctx)
		return result, nil
	}

	closed, err := s.close(ctx, actor)
	if err != nil {
		s.logger.Error("payment complete but order not closed", "order_id", payment.OrderID.String(), "error", err)
		result.Snapshot = s.snap.Clone()
		result.Notice = fmt.Sprintf("payment recorded, close pending: %v", err)
		s.pushUpdate(ctx)
		return result, nil
	}
	result.Closed = true
	result.Snapshot = closed
	return result, nil
}

// Close closes a fully paid order.
func (s *Session) Close(ctx context.Context, actor string) (*order.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.finalize(ctx, actor); err != nil {
		return nil, err
	}
	ledger, err := settlement.Compute(s.snap, s.adj, s.split, s.cfg.TaxRate)
	if err != nil {
		return nil, err
	}
	if !ledger.Complete() {
		return nil, fmt.Errorf("%w: %s remaining", order.ErrInsufficientAmount, ledger.Bill().Remaining.StringFixed(2))
	}
	return s.close(ctx, actor)
}

func (s *Session) close(ctx context.Context, actor string) (*order.Snapshot, error) {
	o := s.snap.Order.Clone()
	if err := o.Transition(order.StatusClosed); err != nil {
		return nil, err
	}
	o.UpdatedBy = actor
	snap, err := s.backend.UpdateOrder(ctx, o)
	if err != nil {
		return nil, wrapBackend("close order", err)
	}

	s.logger.Info("order closed", "order_id", o.ID.String())
	s.broadcast(ctx, display.OrderComplete(s.terminal, s.cfg.VenueName, snap))
	s.snap = nil
	s.reset()
	return snap, nil
}

// Unfinalize reopens a finalized order for editing. Recorded payments stay;
// closed and voided orders never reopen.
func (s *Session) Unfinalize(ctx context.Context, actor string) (*View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.snap == nil {
		return nil, order.ErrNoOrder
	}
	switch s.snap.Order.Status {
	case order.StatusOpen, order.StatusSent:
		return s.view(), nil
	case order.StatusClosed, order.StatusVoided:
		return nil, fmt.Errorf("%w: order is %s", order.ErrOrderLocked, s.snap.Order.Status)
	}

	target := order.StatusOpen
	for _, item := range s.snap.ActiveItems() {
		if item.KitchenStatus != kitchenstatus.Statuses.New.Code() {
			target = order.StatusSent
			break
		}
	}

	o := s.snap.Order.Clone()
	if err := o.Transition(target); err != nil {
		return nil, err
	}
	o.UpdatedBy = actor
	snap, err := s.backend.UpdateOrder(ctx, o)
	if err != nil {
		return nil, wrapBackend("unfinalize order", err)
	}
	s.snap = snap
	s.logger.Info("order reopened", "order_id", o.ID.String(), "status", target)
	s.pushUpdate(ctx)
	return s.view(), nil
}
