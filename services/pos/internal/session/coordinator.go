package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/appetiteclub/pos/pkg"
	"github.com/appetiteclub/pos/pkg/event"
	"github.com/appetiteclub/pos/services/pos/internal/backend"
	"github.com/appetiteclub/pos/services/pos/internal/order"
)

// MergeReason is recorded on source orders emptied by a table merge.
const MergeReason = "merged"

// VoidOrder voids every active item and the order itself. Orders with
// recorded payments cannot be voided.
func (r *Registry) VoidOrder(ctx context.Context, orderID uuid.UUID, reason, actor string) (*order.Snapshot, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, order.ErrReasonRequired
	}

	snap, err := r.deps.Backend.GetOrder(ctx, orderID)
	if err != nil {
		return nil, wrapBackend("load order", err)
	}
	switch {
	case snap.Order.Status == order.StatusVoided:
		return nil, fmt.Errorf("%w: order %s", order.ErrAlreadyVoided, orderID)
	case snap.Order.Status == order.StatusClosed:
		return nil, fmt.Errorf("%w: order is closed", order.ErrOrderLocked)
	case len(snap.Payments) > 0:
		return nil, fmt.Errorf("%w: order has payments", order.ErrOrderLocked)
	}

	var items []*order.OrderItem
	var records []*order.VoidRecord
	previous := make(map[uuid.UUID]string)
	for _, item := range snap.ActiveItems() {
		c := item.Clone()
		previous[c.ID] = c.KitchenStatus
		if err := c.MarkVoided(reason); err != nil {
			return nil, err
		}
		items = append(items, c)
		records = append(records, order.NewItemVoid(c, reason, actor))
	}

	o := snap.Order.Clone()
	if err := o.Transition(order.StatusVoided); err != nil {
		return nil, err
	}
	o.UpdatedBy = actor
	records = append(records, order.NewOrderVoid(o, reason, actor))

	voided, err := r.deps.Backend.Void(ctx, o, items, records)
	if err != nil {
		return nil, wrapBackend("void order", err)
	}

	for _, item := range items {
		if isDispatched(previous[item.ID]) {
			publishItemEvent(ctx, r.deps.Publisher, r.logger, o.Terminal, o.TableID, item, event.EventOrderItemVoided, previous[item.ID], reason)
		}
	}
	r.forget(ctx, orderID)
	r.logger.Info("order voided", "order_id", orderID.String(), "items", len(items), "reason", reason)
	return voided, nil
}

// TransferReceipt moves a dine-in order to another table. Only the table
// reference changes.
func (r *Registry) TransferReceipt(ctx context.Context, orderID, targetTable uuid.UUID, actor string) (*order.Snapshot, error) {
	snap, err := r.deps.Backend.GetOrder(ctx, orderID)
	if err != nil {
		return nil, wrapBackend("load order", err)
	}
	if snap.Order.Type != order.TypeDineIn {
		return nil, fmt.Errorf("%w: only dine-in orders sit at a table", order.ErrInvalidOrderType)
	}
	if snap.Order.IsDone() {
		return nil, fmt.Errorf("%w: order is %s", order.ErrOrderLocked, snap.Order.Status)
	}
	if snap.Order.TableID != nil && *snap.Order.TableID == targetTable {
		return snap, nil
	}

	if err := checkTable(ctx, r.deps.Backend, r.deps.Tables, r.deps.Publisher, r.logger, targetTable, &orderID, "transfer_order"); err != nil {
		return nil, err
	}

	o := snap.Order.Clone()
	var previous string
	if o.TableID != nil {
		previous = o.TableID.String()
	}
	target := targetTable
	o.TableID = &target
	o.UpdatedBy = actor
	o.BeforeUpdate()

	moved, err := r.deps.Backend.UpdateOrder(ctx, o)
	if err != nil {
		return nil, wrapBackend("transfer order", err)
	}

	r.publishMove(ctx, pkg.OrderTableMoveEvent{
		EventType:     pkg.EventOrderTableTransferred,
		OrderID:       orderID.String(),
		TableID:       targetTable.String(),
		PreviousTable: previous,
		GuestCount:    moved.Order.GuestCount,
	})
	r.refresh(ctx, moved)
	r.logger.Info("order transferred", "order_id", orderID.String(), "from", previous, "to", targetTable.String())
	return moved, nil
}

// MergeTables moves the active items of the source tables' orders into the
// primary table's order. Source seats take the next free seats of the
// primary order, in ascending order, and the guest counts add up. The
// emptied source orders are voided in the same backend write, so a failed
// merge leaves every order as it was.
func (r *Registry) MergeTables(ctx context.Context, primaryTable uuid.UUID, sourceTables []uuid.UUID, actor string) (*order.Snapshot, error) {
	if len(sourceTables) == 0 {
		return nil, fmt.Errorf("%w: no source tables", order.ErrTableRequired)
	}
	seen := map[uuid.UUID]bool{primaryTable: true}
	for _, t := range sourceTables {
		if seen[t] {
			return nil, fmt.Errorf("%w: table %s listed twice", order.ErrMergeSeatCollision, t)
		}
		seen[t] = true
	}

	primary, err := r.openOrderAt(ctx, primaryTable)
	if err != nil {
		return nil, err
	}
	sources := make([]*order.Snapshot, 0, len(sourceTables))
	for _, t := range sourceTables {
		src, err := r.openOrderAt(ctx, t)
		if err != nil {
			return nil, err
		}
		if src.Order.ID == primary.Order.ID {
			return nil, fmt.Errorf("%w: table %s shares the primary order", order.ErrMergeSeatCollision, t)
		}
		sources = append(sources, src)
	}

	nextSeat := order.Project(primary.ActiveItems()).MaxSeat()
	sequence := primary.NextSequence()
	guests := primary.Order.GuestCount

	var moving []*order.OrderItem
	for _, src := range sources {
		seats := make(map[int]int)
		for _, seat := range order.Project(src.ActiveItems()).Seats() {
			nextSeat++
			seats[seat] = nextSeat
		}

		active := src.ActiveItems()
		sort.SliceStable(active, func(i, j int) bool { return active[i].Sequence < active[j].Sequence })
		for _, item := range active {
			c := item.Clone()
			c.Seat = seats[item.Seat]
			c.Sequence = sequence
			sequence++
			moving = append(moving, c)
		}
		guests += src.Order.GuestCount
	}

	target := primary.Order.Clone()
	target.GuestCount = guests
	target.EnsureSeat(nextSeat)
	target.UpdatedBy = actor
	target.BeforeUpdate()

	mg := backend.Merge{Target: target, Items: moving}
	for _, src := range sources {
		so := src.Order.Clone()
		if err := so.Transition(order.StatusVoided); err != nil {
			return nil, fmt.Errorf("cannot retire order %s: %w", so.ID, err)
		}
		so.UpdatedBy = actor
		mg.Retired = append(mg.Retired, so)
		mg.Records = append(mg.Records, order.NewOrderVoid(so, MergeReason, actor))
	}

	merged, err := r.deps.Backend.MergeOrders(ctx, mg)
	if err != nil {
		return nil, wrapBackend("merge orders", err)
	}

	sourceIDs := make([]string, 0, len(sources))
	for i, so := range mg.Retired {
		r.forget(ctx, so.ID)
		sourceIDs = append(sourceIDs, sourceTables[i].String())
	}

	r.publishMove(ctx, pkg.OrderTableMoveEvent{
		EventType:    pkg.EventOrderTablesMerged,
		OrderID:      merged.Order.ID.String(),
		TableID:      primaryTable.String(),
		SourceTables: sourceIDs,
		GuestCount:   merged.Order.GuestCount,
	})
	r.refresh(ctx, merged)
	r.logger.Info("tables merged", "order_id", merged.Order.ID.String(), "table_id", primaryTable.String(), "items", len(moving))
	return merged, nil
}

// openOrderAt returns the mergeable order at a table.
func (r *Registry) openOrderAt(ctx context.Context, tableID uuid.UUID) (*order.Snapshot, error) {
	snap, err := r.deps.Backend.FindOpenByTable(ctx, tableID)
	if err != nil {
		return nil, wrapBackend("find table order", err)
	}
	if snap == nil {
		return nil, fmt.Errorf("%w: table %s", order.ErrNoOrder, tableID)
	}
	if snap.Order.IsLocked() || len(snap.Payments) > 0 {
		return nil, fmt.Errorf("%w: order at table %s is in settlement", order.ErrOrderLocked, tableID)
	}
	return snap, nil
}

func (r *Registry) forget(ctx context.Context, orderID uuid.UUID) {
	for _, s := range r.all() {
		s.forget(ctx, orderID)
	}
}

func (r *Registry) refresh(ctx context.Context, snap *order.Snapshot) {
	for _, s := range r.all() {
		s.refresh(ctx, snap)
	}
}

func (r *Registry) publishMove(ctx context.Context, evt pkg.OrderTableMoveEvent) {
	if r.deps.Publisher == nil {
		return
	}
	evt.OccurredAt = time.Now().UTC()
	payload, err := json.Marshal(evt)
	if err != nil {
		r.logger.Error("cannot marshal order table move", "error", err, "order_id", evt.OrderID)
		return
	}
	if err := r.deps.Publisher.Publish(ctx, pkg.OrderTableTopic, payload); err != nil {
		r.logger.Error("cannot publish order table move", "error", err, "order_id", evt.OrderID)
	}
}
