package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/appetiteclub/pos/pkg/enums/kitchenstatus"
	"github.com/appetiteclub/pos/pkg/enums/station"
	"github.com/appetiteclub/pos/pkg/event"
	"github.com/appetiteclub/pos/services/pos/internal/order"
)

// DispatchResult reports what a dispatch command changed. Committed is false
// when the backend could not confirm the change and it was applied locally
// only; Notice then says so.
type DispatchResult struct {
	Items     []*order.OrderItem `json:"items"`
	Committed bool               `json:"committed"`
	Notice    string             `json:"notice,omitempty"`
}

// Send dispatches every new item of a destination. Items already sent are never sent twice.
func (s *Session) Send(ctx context.Context, destination, actor string) (*DispatchResult, error) {
	st := station.ByName(destination)
	if st == nil {
		return nil, fmt.Errorf("%w: %q", order.ErrUnknownDestination, destination)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireEditable(); err != nil {
		return nil, err
	}

	newStatus := kitchenstatus.Statuses.New.Code()
	var pending []*order.OrderItem
	for _, item := range s.snap.ActiveItems() {
		if item.Station == st.Code() && item.KitchenStatus == newStatus && item.SentAt == nil {
			pending = append(pending, item.Clone())
		}
	}
	if len(pending) == 0 {
		return nil, fmt.Errorf("%w: no new items for %s", order.ErrEmptyOrder, st.Label())
	}

	for _, item := range pending {
		if err := item.SetKitchenStatus(kitchenstatus.Statuses.Sent.Code()); err != nil {
			return nil, err
		}
	}

	snap, err := s.backend.UpdateItems(ctx, s.snap.Order.ID, pending)
	if err != nil {
		return nil, wrapBackend("send items", err)
	}
	s.snap = snap
	s.markSent(ctx, actor)

	for _, item := range pending {
		s.publishItemEvent(ctx, item, event.EventOrderItemSent, newStatus, "")
	}
	s.logger.Info("items sent", "order_id", s.snap.Order.ID.String(), "station", st.Code(), "count", len(pending))
	s.pushUpdate(ctx)
	return &DispatchResult{Items: pending, Committed: true}, nil
}

// FireCourse fires every active item of a course that is not fired yet. An
// empty course is a no-op.
func (s *Session) FireCourse(ctx context.Context, course int, actor string) (*DispatchResult, error) {
	if course < 1 {
		return nil, order.ErrInvalidCourse
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireEditable(); err != nil {
		return nil, err
	}

	fired := kitchenstatus.Statuses.Fired.Code()
	var pending []*order.OrderItem
	for _, item := range order.Project(s.snap.ActiveItems()).Course(course) {
		if item.KitchenStatus != fired {
			pending = append(pending, item.Clone())
		}
	}
	if len(pending) == 0 {
		return &DispatchResult{Committed: true}, nil
	}

	result, err := s.applyKitchenStatus(ctx, pending, fired, event.EventOrderItemFired)
	if err != nil {
		return nil, err
	}
	if result.Committed {
		s.markSent(ctx, actor)
	}
	s.logger.Info("course fired", "order_id", s.snap.Order.ID.String(), "course", course, "count", len(pending))
	return result, nil
}

func (s *Session) Hold(ctx context.Context, itemIDs []uuid.UUID, actor string) (*DispatchResult, error) {
	return s.setStatus(ctx, itemIDs, kitchenstatus.Statuses.Held.Code(), event.EventOrderItemHeld)
}

func (s *Session) Rush(ctx context.Context, itemIDs []uuid.UUID, actor string) (*DispatchResult, error) {
	return s.setStatus(ctx, itemIDs, kitchenstatus.Statuses.Rush.Code(), event.EventOrderItemRushed)
}

func (s *Session) setStatus(ctx context.Context, itemIDs []uuid.UUID, status, eventType string) (*DispatchResult, error) {
	if len(itemIDs) == 0 {
		return nil, fmt.Errorf("%w: no items selected", order.ErrItemNotFound)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireEditable(); err != nil {
		return nil, err
	}

	var pending []*order.OrderItem
	for _, id := range itemIDs {
		item := s.snap.Item(id)
		if item == nil {
			return nil, fmt.Errorf("%w: %s", order.ErrItemNotFound, id)
		}
		if item.IsVoided() {
			return nil, order.ErrAlreadyVoided
		}
		pending = append(pending, item.Clone())
	}

	return s.applyKitchenStatus(ctx, pending, status, eventType)
}

// applyKitchenStatus moves items to status. When the backend is unreachable the
// change is kept locally and reported through the result notice.
func (s *Session) applyKitchenStatus(ctx context.Context, items []*order.OrderItem, status, eventType string) (*DispatchResult, error) {
	previous := make(map[uuid.UUID]string, len(items))
	for _, item := range items {
		previous[item.ID] = item.KitchenStatus
		if err := item.SetKitchenStatus(status); err != nil {
			return nil, err
		}
	}

	result := &DispatchResult{Items: items, Committed: true}
	snap, err := s.backend.UpdateItems(ctx, s.snap.Order.ID, items)
	switch {
	case err == nil:
		s.snap = snap
	default:
		wrapped := wrapBackend("update kitchen status", err)
		if !errors.Is(wrapped, ErrBackend) {
			return nil, wrapped
		}
		s.logger.Error("kitchen status applied locally only", "order_id", s.snap.Order.ID.String(), "status", status, "error", err)
		s.snap = withItems(s.snap, items)
		result.Committed = false
		result.Notice = fmt.Sprintf("%s not confirmed by the order service: %v", kitchenstatus.ByName(status).Label(), err)
	}

	for _, item := range items {
		s.publishItemEvent(ctx, item, eventType, previous[item.ID], "")
	}
	s.pushUpdate(ctx)
	return result, nil
}

// markSent moves an open order to sent once something reached a station.
func (s *Session) markSent(ctx context.Context, actor string) {
	if s.snap.Order.Status != order.StatusOpen {
		return
	}
	o := s.snap.Order.Clone()
	if err := o.Transition(order.StatusSent); err != nil {
		return
	}
	o.UpdatedBy = actor
	snap, err := s.backend.UpdateOrder(ctx, o)
	if err != nil {
		s.logger.Error("cannot mark order sent", "order_id", o.ID.String(), "error", err)
		return
	}
	s.snap = snap
}

func (s *Session) requireEditable() error {
	if s.snap == nil {
		return order.ErrNoOrder
	}
	if s.snap.Order.IsLocked() {
		return fmt.Errorf("%w: order is %s", order.ErrOrderLocked, s.snap.Order.Status)
	}
	return nil
}

// withItems returns a copy of snap with items replaced by id.
func withItems(snap *order.Snapshot, items []*order.OrderItem) *order.Snapshot {
	c := snap.Clone()
	for _, changed := range items {
		for i, item := range c.Items {
			if item.ID == changed.ID {
				c.Items[i] = changed.Clone()
			}
		}
	}
	return c
}

func statusEvent(status string) string {
	switch status {
	case kitchenstatus.Statuses.Sent.Code():
		return event.EventOrderItemSent
	case kitchenstatus.Statuses.Fired.Code():
		return event.EventOrderItemFired
	case kitchenstatus.Statuses.Held.Code():
		return event.EventOrderItemHeld
	case kitchenstatus.Statuses.Rush.Code():
		return event.EventOrderItemRushed
	default:
		return event.EventOrderItemUpdated
	}
}

// isDispatched reports whether a station already knows about the item.
func isDispatched(status string) bool {
	return status != "" && status != kitchenstatus.Statuses.New.Code()
}
