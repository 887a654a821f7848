package mongo

import (
	"context"
	"errors"
	"fmt"

	"github.com/aquamarinepk/aqm"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/appetiteclub/pos/services/pos/internal/backend"
	"github.com/appetiteclub/pos/services/pos/internal/order"
)

// Store is the MongoDB backend of record. Each call assembles a fresh
// snapshot from the orders, order_items, payments and voids collections.
type Store struct {
	client   *mongo.Client
	orders   *OrderRepo
	items    *OrderItemRepo
	payments *PaymentRepo
	voids    *VoidRepo
	logger   aqm.Logger
}

func NewStore(db *mongo.Database, logger aqm.Logger) *Store {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &Store{
		client:   db.Client(),
		orders:   NewOrderRepo(db),
		items:    NewOrderItemRepo(db),
		payments: NewPaymentRepo(db),
		voids:    NewVoidRepo(db),
		logger:   logger,
	}
}

func (s *Store) CreateOrder(ctx context.Context, o *order.Order) (*order.Snapshot, error) {
	if err := s.orders.Create(ctx, o); err != nil {
		return nil, err
	}
	return s.snapshot(ctx, o.ID)
}

func (s *Store) GetOrder(ctx context.Context, id uuid.UUID) (*order.Snapshot, error) {
	return s.snapshot(ctx, id)
}

func (s *Store) ListActive(ctx context.Context) ([]*order.Order, error) {
	return s.orders.ListActive(ctx)
}

func (s *Store) FindOpenByTable(ctx context.Context, tableID uuid.UUID) (*order.Snapshot, error) {
	o, err := s.orders.FindActiveByTable(ctx, tableID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, nil
	}
	return s.snapshot(ctx, o.ID)
}

func (s *Store) UpdateOrder(ctx context.Context, o *order.Order) (*order.Snapshot, error) {
	if o == nil {
		return nil, fmt.Errorf("order is nil")
	}
	if err := s.orders.Save(ctx, o); err != nil {
		return nil, err
	}
	return s.snapshot(ctx, o.ID)
}

func (s *Store) AddItems(ctx context.Context, orderID uuid.UUID, items []*order.OrderItem) (*order.Snapshot, error) {
	o, err := s.mustOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		if item.OrderID != orderID {
			return nil, fmt.Errorf("item %s belongs to order %s", item.ID, item.OrderID)
		}
		o.EnsureSeat(item.Seat)
	}

	o.BeforeUpdate()
	err = s.atomically(ctx, func(ctx context.Context) error {
		if err := s.items.CreateMany(ctx, items); err != nil {
			return err
		}
		return s.orders.Save(ctx, o)
	})
	if err != nil {
		return nil, err
	}
	return s.snapshot(ctx, orderID)
}

func (s *Store) UpdateItems(ctx context.Context, orderID uuid.UUID, items []*order.OrderItem) (*order.Snapshot, error) {
	if err := s.saveItems(ctx, orderID, items); err != nil {
		return nil, err
	}
	return s.snapshot(ctx, orderID)
}

func (s *Store) Void(ctx context.Context, o *order.Order, items []*order.OrderItem, records []*order.VoidRecord) (*order.Snapshot, error) {
	if o == nil {
		return nil, fmt.Errorf("order is nil")
	}
	err := s.atomically(ctx, func(ctx context.Context) error {
		if err := s.saveItems(ctx, o.ID, items); err != nil {
			return err
		}
		for _, r := range records {
			if err := s.voids.Create(ctx, r); err != nil {
				return err
			}
		}
		return s.orders.Save(ctx, o)
	})
	if err != nil {
		return nil, err
	}
	return s.snapshot(ctx, o.ID)
}

func (s *Store) MergeOrders(ctx context.Context, m backend.Merge) (*order.Snapshot, error) {
	if m.Target == nil {
		return nil, fmt.Errorf("order is nil")
	}
	targetID := m.Target.ID
	target := m.Target.Clone()

	moved := make([]*order.OrderItem, len(m.Items))
	for i, item := range m.Items {
		moved[i] = item.Clone()
		moved[i].OrderID = targetID
		moved[i].BeforeUpdate()
		target.EnsureSeat(moved[i].Seat)
	}
	target.BeforeUpdate()

	err := s.atomically(ctx, func(ctx context.Context) error {
		if err := s.items.SaveMany(ctx, moved); err != nil {
			return fmt.Errorf("cannot move items to order %s: %w", targetID, err)
		}
		if err := s.orders.Save(ctx, target); err != nil {
			return err
		}
		for _, o := range m.Retired {
			if err := s.orders.Save(ctx, o); err != nil {
				return fmt.Errorf("cannot retire order %s: %w", o.ID, err)
			}
		}
		for _, r := range m.Records {
			if err := s.voids.Create(ctx, r); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.snapshot(ctx, targetID)
}

func (s *Store) RecordPayment(ctx context.Context, p *order.Payment) (*order.Snapshot, error) {
	if p == nil {
		return nil, fmt.Errorf("payment is nil")
	}
	if _, err := s.mustOrder(ctx, p.OrderID); err != nil {
		return nil, err
	}
	if err := s.payments.Create(ctx, p); err != nil {
		return nil, err
	}
	s.logger.Info("payment recorded", "order_id", p.OrderID.String(), "tender", p.Tender, "amount", p.Amount.StringFixed(2))
	return s.snapshot(ctx, p.OrderID)
}

// atomically runs fn inside a multi-document transaction. Standalone
// servers have no transactions; there fn runs as plain sequential writes.
func (s *Store) atomically(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.client == nil {
		return fn(ctx)
	}
	sess, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("cannot start session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	if transactionsUnsupported(err) {
		s.logger.Info("transactions unavailable, writing without one")
		return fn(ctx)
	}
	return err
}

// transactionsUnsupported matches IllegalOperation, which standalone
// servers return for transaction numbers.
func transactionsUnsupported(err error) bool {
	var se mongo.ServerError
	return errors.As(err, &se) && se.HasErrorCode(20)
}

func (s *Store) saveItems(ctx context.Context, orderID uuid.UUID, items []*order.OrderItem) error {
	for _, item := range items {
		if item.OrderID != orderID {
			return fmt.Errorf("%w: %s", order.ErrItemNotFound, item.ID)
		}
	}
	return s.items.SaveMany(ctx, items)
}

func (s *Store) mustOrder(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	o, err := s.orders.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, backend.ErrNotFound
	}
	return o, nil
}

func (s *Store) snapshot(ctx context.Context, id uuid.UUID) (*order.Snapshot, error) {
	o, err := s.mustOrder(ctx, id)
	if err != nil {
		return nil, err
	}

	items, err := s.items.ListByOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	payments, err := s.payments.ListByOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	voids, err := s.voids.ListByOrder(ctx, id)
	if err != nil {
		return nil, err
	}

	return &order.Snapshot{Order: o, Items: items, Payments: payments, Voids: voids}, nil
}

var _ backend.Backend = (*Store)(nil)
