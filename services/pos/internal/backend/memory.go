package backend

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aquamarinepk/aqm"
	"github.com/google/uuid"

	"github.com/appetiteclub/pos/services/pos/internal/order"
)

// Memory is an in-process Backend. Values are cloned on the way in and out
// so callers never share state with the store.
type Memory struct {
	mu       sync.RWMutex
	orders   map[uuid.UUID]*order.Order
	items    map[uuid.UUID][]*order.OrderItem
	payments map[uuid.UUID][]*order.Payment
	voids    map[uuid.UUID][]*order.VoidRecord
	logger   aqm.Logger
}

func NewMemory(logger aqm.Logger) *Memory {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &Memory{
		orders:   make(map[uuid.UUID]*order.Order),
		items:    make(map[uuid.UUID][]*order.OrderItem),
		payments: make(map[uuid.UUID][]*order.Payment),
		voids:    make(map[uuid.UUID][]*order.VoidRecord),
		logger:   logger,
	}
}

func (m *Memory) CreateOrder(ctx context.Context, o *order.Order) (*order.Snapshot, error) {
	if o == nil {
		return nil, fmt.Errorf("order is nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.orders[o.ID]; exists {
		return nil, fmt.Errorf("%w: order %s already exists", ErrConflict, o.ID)
	}
	m.orders[o.ID] = o.Clone()
	m.logger.Debug("order created", "order_id", o.ID.String())
	return m.snapshot(o.ID), nil
}

func (m *Memory) GetOrder(ctx context.Context, id uuid.UUID) (*order.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.orders[id]; !ok {
		return nil, ErrNotFound
	}
	return m.snapshot(id), nil
}

func (m *Memory) ListActive(ctx context.Context) ([]*order.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*order.Order
	for _, o := range m.orders {
		if !o.IsDone() {
			result = append(result, o.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (m *Memory) FindOpenByTable(ctx context.Context, tableID uuid.UUID) (*order.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var found *order.Order
	for _, o := range m.orders {
		if o.IsDone() || o.TableID == nil || *o.TableID != tableID {
			continue
		}
		if found == nil || o.CreatedAt.Before(found.CreatedAt) {
			found = o
		}
	}
	if found == nil {
		return nil, nil
	}
	return m.snapshot(found.ID), nil
}

func (m *Memory) UpdateOrder(ctx context.Context, o *order.Order) (*order.Snapshot, error) {
	if o == nil {
		return nil, fmt.Errorf("order is nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.orders[o.ID]; !ok {
		return nil, ErrNotFound
	}
	m.orders[o.ID] = o.Clone()
	return m.snapshot(o.ID), nil
}

func (m *Memory) AddItems(ctx context.Context, orderID uuid.UUID, items []*order.OrderItem) (*order.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[orderID]
	if !ok {
		return nil, ErrNotFound
	}
	for _, item := range items {
		if item.OrderID != orderID {
			return nil, fmt.Errorf("item %s belongs to order %s", item.ID, item.OrderID)
		}
		if m.indexOf(orderID, item.ID) >= 0 {
			return nil, fmt.Errorf("%w: item %s already exists", ErrConflict, item.ID)
		}
	}
	for _, item := range items {
		m.items[orderID] = append(m.items[orderID], item.Clone())
		o.EnsureSeat(item.Seat)
	}
	o.BeforeUpdate()
	return m.snapshot(orderID), nil
}

func (m *Memory) UpdateItems(ctx context.Context, orderID uuid.UUID, items []*order.OrderItem) (*order.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.replaceItems(orderID, items); err != nil {
		return nil, err
	}
	return m.snapshot(orderID), nil
}

func (m *Memory) Void(ctx context.Context, o *order.Order, items []*order.OrderItem, records []*order.VoidRecord) (*order.Snapshot, error) {
	if o == nil {
		return nil, fmt.Errorf("order is nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.replaceItems(o.ID, items); err != nil {
		return nil, err
	}
	m.orders[o.ID] = o.Clone()
	for _, r := range records {
		m.voids[o.ID] = append(m.voids[o.ID], r.Clone())
	}
	return m.snapshot(o.ID), nil
}

func (m *Memory) MergeOrders(ctx context.Context, mg Merge) (*order.Snapshot, error) {
	if mg.Target == nil {
		return nil, fmt.Errorf("order is nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	targetID := mg.Target.ID
	if _, ok := m.orders[targetID]; !ok {
		return nil, ErrNotFound
	}
	for _, item := range mg.Items {
		if _, ok := m.orders[item.OrderID]; !ok {
			return nil, fmt.Errorf("%w: source order %s", ErrNotFound, item.OrderID)
		}
		if m.indexOf(item.OrderID, item.ID) < 0 {
			return nil, fmt.Errorf("%w: item %s", order.ErrItemNotFound, item.ID)
		}
	}
	for _, o := range mg.Retired {
		if _, ok := m.orders[o.ID]; !ok {
			return nil, fmt.Errorf("%w: retired order %s", ErrNotFound, o.ID)
		}
		if o.ID == targetID {
			return nil, fmt.Errorf("%w: order %s cannot retire into itself", ErrConflict, o.ID)
		}
	}
	for _, r := range mg.Records {
		if _, ok := m.orders[r.OrderID]; !ok {
			return nil, fmt.Errorf("%w: void record for order %s", ErrNotFound, r.OrderID)
		}
	}

	target := mg.Target.Clone()
	for _, item := range mg.Items {
		source := item.OrderID
		idx := m.indexOf(source, item.ID)
		m.items[source] = append(m.items[source][:idx], m.items[source][idx+1:]...)

		moved := item.Clone()
		moved.OrderID = targetID
		moved.BeforeUpdate()
		m.items[targetID] = append(m.items[targetID], moved)
		target.EnsureSeat(moved.Seat)
	}
	target.BeforeUpdate()
	m.orders[targetID] = target

	for _, o := range mg.Retired {
		m.orders[o.ID] = o.Clone()
	}
	for _, r := range mg.Records {
		m.voids[r.OrderID] = append(m.voids[r.OrderID], r.Clone())
	}
	m.logger.Debug("orders merged", "order_id", targetID.String(), "items", len(mg.Items), "retired", len(mg.Retired))
	return m.snapshot(targetID), nil
}

func (m *Memory) RecordPayment(ctx context.Context, p *order.Payment) (*order.Snapshot, error) {
	if p == nil {
		return nil, fmt.Errorf("payment is nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.orders[p.OrderID]; !ok {
		return nil, ErrNotFound
	}
	for _, existing := range m.payments[p.OrderID] {
		if existing.ID == p.ID {
			return nil, fmt.Errorf("%w: payment %s already recorded", ErrConflict, p.ID)
		}
	}
	m.payments[p.OrderID] = append(m.payments[p.OrderID], p.Clone())
	return m.snapshot(p.OrderID), nil
}

func (m *Memory) replaceItems(orderID uuid.UUID, items []*order.OrderItem) error {
	if _, ok := m.orders[orderID]; !ok {
		return ErrNotFound
	}
	for _, item := range items {
		if m.indexOf(orderID, item.ID) < 0 {
			return fmt.Errorf("%w: %s", order.ErrItemNotFound, item.ID)
		}
	}
	o := m.orders[orderID]
	for _, item := range items {
		m.items[orderID][m.indexOf(orderID, item.ID)] = item.Clone()
		if !item.IsVoided() {
			o.EnsureSeat(item.Seat)
		}
	}
	return nil
}

func (m *Memory) indexOf(orderID, itemID uuid.UUID) int {
	for i, item := range m.items[orderID] {
		if item.ID == itemID {
			return i
		}
	}
	return -1
}

// snapshot must be called with the lock held.
func (m *Memory) snapshot(id uuid.UUID) *order.Snapshot {
	snap := &order.Snapshot{
		Order: m.orders[id].Clone(),
		Items: cloneItems(m.items[id]),
	}
	sort.SliceStable(snap.Items, func(i, j int) bool { return snap.Items[i].Sequence < snap.Items[j].Sequence })
	for _, p := range m.payments[id] {
		snap.Payments = append(snap.Payments, p.Clone())
	}
	for _, v := range m.voids[id] {
		snap.Voids = append(snap.Voids, v.Clone())
	}
	return snap
}
