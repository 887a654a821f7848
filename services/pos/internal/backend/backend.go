package backend

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/appetiteclub/pos/services/pos/internal/order"
)

var (
	ErrNotFound = errors.New("order not found")
	ErrConflict = errors.New("order changed concurrently")
)

// Backend is the order service of record. Every mutating call returns the
// authoritative snapshot of the order after the change; on error the stored
// order is unchanged.
type Backend interface {
	CreateOrder(ctx context.Context, o *order.Order) (*order.Snapshot, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*order.Snapshot, error)
	// ListActive returns orders that are neither closed nor voided.
	ListActive(ctx context.Context) ([]*order.Order, error)
	// FindOpenByTable returns nil and no error when the table has no active order.
	FindOpenByTable(ctx context.Context, tableID uuid.UUID) (*order.Snapshot, error)
	UpdateOrder(ctx context.Context, o *order.Order) (*order.Snapshot, error)

	AddItems(ctx context.Context, orderID uuid.UUID, items []*order.OrderItem) (*order.Snapshot, error)
	UpdateItems(ctx context.Context, orderID uuid.UUID, items []*order.OrderItem) (*order.Snapshot, error)
	// Void stores voided items, their audit records and, when the whole
	// order is voided, the order itself.
	Void(ctx context.Context, o *order.Order, items []*order.OrderItem, records []*order.VoidRecord) (*order.Snapshot, error)
	// MergeOrders applies a table merge as one write: either every part of
	// it is stored or none is.
	MergeOrders(ctx context.Context, m Merge) (*order.Snapshot, error)

	RecordPayment(ctx context.Context, p *order.Payment) (*order.Snapshot, error)
}

// Merge moves Items onto Target and retires the emptied source orders.
// Target carries the merged header (guest and seat counts); each Retired
// order is stored voided along with its matching entry in Records.
type Merge struct {
	Target  *order.Order        `json:"target"`
	Items   []*order.OrderItem  `json:"items"`
	Retired []*order.Order      `json:"retired"`
	Records []*order.VoidRecord `json:"records"`
}

func cloneItems(items []*order.OrderItem) []*order.OrderItem {
	out := make([]*order.OrderItem, 0, len(items))
	for _, item := range items {
		out = append(out, item.Clone())
	}
	return out
}
