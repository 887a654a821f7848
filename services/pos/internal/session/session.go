package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aquamarinepk/aqm"
	"github.com/aquamarinepk/aqm/events"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/appetiteclub/pos/pkg"
	"github.com/appetiteclub/pos/pkg/enums/station"
	"github.com/appetiteclub/pos/pkg/event"
	"github.com/appetiteclub/pos/services/pos/internal/backend"
	"github.com/appetiteclub/pos/services/pos/internal/catalog"
	"github.com/appetiteclub/pos/services/pos/internal/display"
	"github.com/appetiteclub/pos/services/pos/internal/order"
	"github.com/appetiteclub/pos/services/pos/internal/settlement"
)

// ErrBackend marks failures of the order service of record. They are safe to retry.
var ErrBackend = errors.New("order backend unavailable")

type Display interface {
	Broadcast(ctx context.Context, evt event.DisplayEvent)
}

type TableGate interface {
	Ensure(ctx context.Context, id uuid.UUID) (string, error)
}

type Menu interface {
	Item(id uuid.UUID) (catalog.Item, bool)
}

// Deps are shared by every session of a registry.
type Deps struct {
	Backend   backend.Backend
	Menu      Menu
	Tables    TableGate
	Publisher events.Publisher
	Display   Display
	Config    Config
	Logger    aqm.Logger
}

// Session is the open order of one terminal. Every mutation goes to the
// backend first and the session then replaces its snapshot with the one the
// backend returned.
type Session struct {
	terminal  string
	cfg       Config
	backend   backend.Backend
	menu      Menu
	tables    TableGate
	publisher events.Publisher
	display   Display
	logger    aqm.Logger

	mu    sync.Mutex
	snap  *order.Snapshot
	last  *AddItemRequest
	adj   settlement.Adjustments
	split settlement.Split
}

func New(terminal string, deps Deps) *Session {
	logger := deps.Logger
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &Session{
		terminal:  terminal,
		cfg:       deps.Config,
		backend:   deps.Backend,
		menu:      deps.Menu,
		tables:    deps.Tables,
		publisher: deps.Publisher,
		display:   deps.Display,
		logger:    logger.With("terminal", terminal),
	}
}

type AddItemRequest struct {
	MenuItemID   *uuid.UUID        `json:"menu_item_id,omitempty"`
	Name         string            `json:"name,omitempty"`
	Price        *decimal.Decimal  `json:"price,omitempty"`
	Quantity     int               `json:"quantity"`
	Selections   []order.Selection `json:"modifiers,omitempty"`
	Instructions string            `json:"instructions,omitempty"`
	Seat         int               `json:"seat"`
	Course       int               `json:"course"`
	Station      string            `json:"station,omitempty"`
}

// ItemPatch carries the fields to change. Nil fields are left alone.
type ItemPatch struct {
	Quantity      *int             `json:"quantity,omitempty"`
	UnitPrice     *decimal.Decimal `json:"unit_price,omitempty"`
	Seat          *int             `json:"seat,omitempty"`
	Course        *int             `json:"course,omitempty"`
	Instructions  *string          `json:"instructions,omitempty"`
	KitchenStatus *string          `json:"kitchen_status,omitempty"`
}

func (p ItemPatch) IsEmpty() bool {
	return p.Quantity == nil && p.UnitPrice == nil && p.Seat == nil &&
		p.Course == nil && p.Instructions == nil && p.KitchenStatus == nil
}

type View struct {
	Terminal    string                 `json:"terminal"`
	Order       *order.Order           `json:"order"`
	Items       []*order.OrderItem     `json:"items"`
	Totals      order.Totals           `json:"totals"`
	Seats       order.SeatCourseIndex  `json:"seats"`
	Elapsed     int64                  `json:"elapsed_seconds"`
	Adjustments settlement.Adjustments `json:"adjustments"`
	Bill        *settlement.Bill       `json:"bill,omitempty"`
	Payments    []*order.Payment       `json:"payments,omitempty"`
	Voids       []*order.VoidRecord    `json:"voids,omitempty"`
}

func (s *Session) Terminal() string {
	return s.terminal
}

// OrderID returns the id of the held order, if any.
func (s *Session) OrderID() (uuid.UUID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap == nil {
		return uuid.Nil, false
	}
	return s.snap.Order.ID, true
}

// View projects the held order. Totals and seat groups are recomputed on every call.
func (s *Session) View() (*View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap == nil {
		return nil, order.ErrNoOrder
	}
	return s.view(), nil
}

func (s *Session) view() *View {
	snap := s.snap
	v := &View{
		Terminal:    s.terminal,
		Order:       snap.Order.Clone(),
		Items:       snap.Clone().Items,
		Totals:      snap.Totals(s.cfg.TaxRate),
		Seats:       order.Project(snap.ActiveItems()),
		Elapsed:     int64(snap.Elapsed(time.Now()) / time.Second),
		Adjustments: s.adj,
		Payments:    snap.Clone().Payments,
		Voids:       snap.Clone().Voids,
	}
	if snap.Order.Status == order.StatusFinalized || len(snap.Payments) > 0 {
		if ledger, err := settlement.Compute(snap, s.adj, s.split, s.cfg.TaxRate); err == nil {
			bill := ledger.Bill()
			v.Bill = &bill
		}
	}
	return v
}

// CreateOrder opens an order explicitly. Dine-in orders need a table that can take orders.
func (s *Session) CreateOrder(ctx context.Context, orderType string, tableID *uuid.UUID, actor string) (*View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.snap != nil {
		return nil, fmt.Errorf("%w: order %s", order.ErrSessionBusy, s.snap.Order.ID)
	}
	if orderType == "" {
		orderType = s.cfg.DefaultOrderType
	}
	if orderType != order.TypeDineIn {
		tableID = nil
	}
	if err := order.ValidateType(orderType, tableID); err != nil {
		return nil, err
	}

	if orderType == order.TypeDineIn {
		if err := s.checkTable(ctx, *tableID, nil, "create_order"); err != nil {
			return nil, err
		}
	}

	if err := s.openOrder(ctx, orderType, tableID, actor); err != nil {
		return nil, err
	}
	s.logger.Info("order created", "order_id", s.snap.Order.ID.String(), "type", orderType)
	s.pushUpdate(ctx)
	return s.view(), nil
}

// Load takes over an active order from the backend.
func (s *Session) Load(ctx context.Context, orderID uuid.UUID) (*View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.snap != nil && s.snap.Order.ID != orderID {
		return nil, fmt.Errorf("%w: order %s", order.ErrSessionBusy, s.snap.Order.ID)
	}
	snap, err := s.backend.GetOrder(ctx, orderID)
	if err != nil {
		return nil, wrapBackend("load order", err)
	}
	if snap.Order.IsDone() {
		return nil, fmt.Errorf("%w: order is %s", order.ErrOrderLocked, snap.Order.Status)
	}

	if s.snap == nil {
		s.reset()
	}
	s.snap = snap
	s.pushUpdate(ctx)
	return s.view(), nil
}

// Release parks the held order so the terminal can start another one.
func (s *Session) Release(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap == nil {
		return order.ErrNoOrder
	}
	s.logger.Info("order released", "order_id", s.snap.Order.ID.String())
	s.clear(ctx)
	return nil
}

// AddItem adds one line to the held order, creating the order first when the
// session holds none.
func (s *Session) AddItem(ctx context.Context, req AddItemRequest, actor string) (*order.OrderItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addItem(ctx, req, actor)
}

// RepeatLastItem adds the last item again with the same modifiers and placement.
func (s *Session) RepeatLastItem(ctx context.Context, actor string) (*order.OrderItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return nil, order.ErrNothingToRepeat
	}
	return s.addItem(ctx, *s.last, actor)
}

func (s *Session) addItem(ctx context.Context, req AddItemRequest, actor string) (*order.OrderItem, error) {
	if s.snap != nil && s.snap.Order.IsLocked() {
		return nil, fmt.Errorf("%w: order is %s", order.ErrOrderLocked, s.snap.Order.Status)
	}

	item, err := s.buildItem(req)
	if err != nil {
		return nil, err
	}

	if s.snap == nil {
		if err := s.openOrder(ctx, s.cfg.DefaultOrderType, nil, actor); err != nil {
			return nil, err
		}
		s.logger.Info("order created on first item", "order_id", s.snap.Order.ID.String())
	}

	item.OrderID = s.snap.Order.ID
	item.Sequence = s.snap.NextSequence()
	item.BeforeCreate()

	snap, err := s.backend.AddItems(ctx, item.OrderID, []*order.OrderItem{item})
	if err != nil {
		return nil, wrapBackend("add item", err)
	}
	s.snap = snap

	repeat := req
	repeat.Selections = append([]order.Selection(nil), req.Selections...)
	s.last = &repeat

	s.pushUpdate(ctx)
	return s.snap.Item(item.ID).Clone(), nil
}

func (s *Session) buildItem(req AddItemRequest) (*order.OrderItem, error) {
	item := &order.OrderItem{
		Quantity:     req.Quantity,
		Seat:         req.Seat,
		Course:       req.Course,
		Instructions: strings.TrimSpace(req.Instructions),
	}
	if item.Quantity == 0 {
		item.Quantity = 1
	}
	if item.Seat == 0 {
		item.Seat = 1
	}
	if item.Course == 0 {
		item.Course = 1
	}

	stationCode := req.Station
	if req.MenuItemID != nil {
		if s.menu == nil {
			return nil, fmt.Errorf("%w: catalog not loaded", order.ErrUnknownMenuItem)
		}
		menuItem, ok := s.menu.Item(*req.MenuItemID)
		if !ok {
			return nil, fmt.Errorf("%w: %s", order.ErrUnknownMenuItem, req.MenuItemID)
		}
		mods, err := order.Resolve(menuItem, req.Selections)
		if err != nil {
			return nil, err
		}
		id := menuItem.ID
		item.MenuItemID = &id
		item.Name = menuItem.Name
		item.Category = menuItem.CategoryID
		item.CatalogPrice = menuItem.Price
		item.UnitPrice = menuItem.Price
		item.Modifiers = mods
		if req.Price != nil {
			item.UnitPrice = *req.Price
		}
		if stationCode == "" {
			stationCode = menuItem.Station
		}
	} else {
		item.Name = strings.TrimSpace(req.Name)
		if item.Name == "" {
			return nil, fmt.Errorf("%w: open items need a name", order.ErrUnknownMenuItem)
		}
		if req.Price == nil {
			return nil, fmt.Errorf("%w: open items need a price", order.ErrInvalidAmount)
		}
		if len(req.Selections) > 0 {
			return nil, fmt.Errorf("%w: open items take no modifiers", order.ErrInvalidModifier)
		}
		item.UnitPrice = *req.Price
		item.CatalogPrice = *req.Price
	}

	if stationCode == "" {
		stationCode = station.Stations.Kitchen.Code()
	}
	st := station.ByName(stationCode)
	if st == nil {
		return nil, fmt.Errorf("%w: %q", order.ErrUnknownDestination, stationCode)
	}
	item.Station = st.Code()

	if err := item.Validate(); err != nil {
		return nil, err
	}
	return item, nil
}

// UpdateItem applies a partial change to one item. An empty patch changes nothing.
func (s *Session) UpdateItem(ctx context.Context, itemID uuid.UUID, patch ItemPatch, actor string) (*order.OrderItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.editableItem(itemID)
	if err != nil {
		return nil, err
	}
	if patch.IsEmpty() {
		return current.Clone(), nil
	}

	item := current.Clone()
	if patch.Quantity != nil {
		item.Quantity = *patch.Quantity
	}
	if patch.UnitPrice != nil {
		item.UnitPrice = *patch.UnitPrice
	}
	if patch.Seat != nil {
		item.Seat = *patch.Seat
	}
	if patch.Course != nil {
		item.Course = *patch.Course
	}
	if patch.Instructions != nil {
		item.Instructions = strings.TrimSpace(*patch.Instructions)
	}
	if err := item.Validate(); err != nil {
		return nil, err
	}

	previous := item.KitchenStatus
	if patch.KitchenStatus != nil {
		if err := item.SetKitchenStatus(*patch.KitchenStatus); err != nil {
			return nil, err
		}
	}
	item.BeforeUpdate()

	snap, err := s.backend.UpdateItems(ctx, item.OrderID, []*order.OrderItem{item})
	if err != nil {
		return nil, wrapBackend("update item", err)
	}
	s.snap = snap

	updated := s.snap.Item(itemID)
	if updated.KitchenStatus != previous {
		s.publishItemEvent(ctx, updated, statusEvent(updated.KitchenStatus), previous, "")
	}
	s.pushUpdate(ctx)
	return updated.Clone(), nil
}

// VoidItem voids one item with a reason. The item stays in history.
func (s *Session) VoidItem(ctx context.Context, itemID uuid.UUID, reason, actor string) (*order.VoidRecord, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, order.ErrReasonRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.editableItem(itemID)
	if err != nil {
		return nil, err
	}

	item := current.Clone()
	previous := item.KitchenStatus
	if err := item.MarkVoided(reason); err != nil {
		return nil, err
	}
	record := order.NewItemVoid(item, reason, actor)

	o := s.snap.Order.Clone()
	o.UpdatedBy = actor
	o.BeforeUpdate()

	snap, err := s.backend.Void(ctx, o, []*order.OrderItem{item}, []*order.VoidRecord{record})
	if err != nil {
		return nil, wrapBackend("void item", err)
	}
	s.snap = snap

	if isDispatched(previous) {
		s.publishItemEvent(ctx, item, event.EventOrderItemVoided, previous, reason)
	}
	s.logger.Info("item voided", "order_id", o.ID.String(), "item_id", itemID.String(), "reason", reason)
	s.pushUpdate(ctx)
	return record, nil
}

func (s *Session) editableItem(itemID uuid.UUID) (*order.OrderItem, error) {
	if s.snap == nil {
		return nil, order.ErrNoOrder
	}
	item := s.snap.Item(itemID)
	if item == nil {
		return nil, fmt.Errorf("%w: %s", order.ErrItemNotFound, itemID)
	}
	if item.IsVoided() {
		return nil, order.ErrAlreadyVoided
	}
	if s.snap.Order.IsLocked() {
		return nil, fmt.Errorf("%w: order is %s", order.ErrOrderLocked, s.snap.Order.Status)
	}
	return item, nil
}

func (s *Session) openOrder(ctx context.Context, orderType string, tableID *uuid.UUID, actor string) error {
	o := order.NewOrder(orderType, tableID)
	o.Terminal = s.terminal
	o.CreatedBy = actor
	o.UpdatedBy = actor

	snap, err := s.backend.CreateOrder(ctx, o)
	if err != nil {
		return wrapBackend("create order", err)
	}
	s.reset()
	s.snap = snap
	return nil
}

func (s *Session) checkTable(ctx context.Context, tableID uuid.UUID, orderID *uuid.UUID, action string) error {
	return checkTable(ctx, s.backend, s.tables, s.publisher, s.logger, tableID, orderID, action)
}

// checkTable rejects tables that cannot take orders or already hold another one.
func checkTable(ctx context.Context, b backend.Backend, tables TableGate, publisher events.Publisher, logger aqm.Logger, tableID uuid.UUID, orderID *uuid.UUID, action string) error {
	if status, err := ensureTableAllowsOrdering(ctx, tables, tableID); err != nil {
		publishOrderTableRejection(ctx, publisher, logger, tableID, orderID, action, err.Error(), status)
		return fmt.Errorf("%w: %v", order.ErrTableUnavailable, err)
	}

	existing, err := b.FindOpenByTable(ctx, tableID)
	if err != nil {
		return wrapBackend("check table", err)
	}
	if existing != nil && (orderID == nil || existing.Order.ID != *orderID) {
		reason := fmt.Sprintf("table already has order %s", existing.Order.ID)
		publishOrderTableRejection(ctx, publisher, logger, tableID, orderID, action, reason, TableOccupied)
		return fmt.Errorf("%w: %s", order.ErrTableUnavailable, reason)
	}
	return nil
}

func (s *Session) reset() {
	s.last = nil
	s.adj = settlement.Adjustments{}
	s.split = settlement.Split{}
}

func (s *Session) clear(ctx context.Context) {
	s.snap = nil
	s.reset()
	s.broadcast(ctx, display.Clear(s.terminal, s.cfg.VenueName))
}

// forget drops the held order if it is orderID.
func (s *Session) forget(ctx context.Context, orderID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap != nil && s.snap.Order.ID == orderID {
		s.clear(ctx)
	}
}

// refresh replaces the held snapshot when it belongs to the same order.
func (s *Session) refresh(ctx context.Context, snap *order.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap != nil && snap != nil && s.snap.Order.ID == snap.Order.ID {
		s.snap = snap.Clone()
		s.pushUpdate(ctx)
	}
}

// pushUpdate sends the current projection to the customer display.
func (s *Session) pushUpdate(ctx context.Context) {
	if s.snap == nil {
		s.broadcast(ctx, display.Clear(s.terminal, s.cfg.VenueName))
		return
	}
	if s.snap.Order.Status == order.StatusFinalized {
		total := s.snap.Totals(s.cfg.TaxRate).GrandTotal
		if ledger, err := settlement.Compute(s.snap, s.adj, s.split, s.cfg.TaxRate); err == nil {
			total = ledger.Bill().Payable
		}
		s.broadcast(ctx, display.PaymentStart(s.terminal, s.cfg.VenueName, s.snap, total))
		return
	}
	total := s.snap.Totals(s.cfg.TaxRate).GrandTotal
	s.broadcast(ctx, display.OrderUpdate(s.terminal, s.cfg.VenueName, s.snap, total))
}

func (s *Session) broadcast(ctx context.Context, evt event.DisplayEvent) {
	if s.display == nil {
		return
	}
	s.display.Broadcast(ctx, evt)
}

func (s *Session) publishItemEvent(ctx context.Context, item *order.OrderItem, eventType, previous, reason string) {
	var tableID *uuid.UUID
	if s.snap != nil {
		tableID = s.snap.Order.TableID
	}
	publishItemEvent(ctx, s.publisher, s.logger, s.terminal, tableID, item, eventType, previous, reason)
}

// publishItemEvent tells production stations about an item. Delivery is best effort.
func publishItemEvent(ctx context.Context, publisher events.Publisher, logger aqm.Logger, terminal string, tableID *uuid.UUID, item *order.OrderItem, eventType, previous, reason string) {
	if publisher == nil || eventType == "" {
		return
	}

	evt := event.OrderItemEvent{
		EventType:      eventType,
		OccurredAt:     time.Now().UTC(),
		OrderID:        item.OrderID.String(),
		OrderItemID:    item.ID.String(),
		Quantity:       item.Quantity,
		Seat:           item.Seat,
		Course:         item.Course,
		Instructions:   item.Instructions,
		Station:        item.Station,
		Status:         item.KitchenStatus,
		PreviousStatus: previous,
		Reason:         reason,
		MenuItemName:   item.Name,
		Terminal:       terminal,
	}
	if item.MenuItemID != nil {
		evt.MenuItemID = item.MenuItemID.String()
	}
	for _, m := range item.Modifiers {
		evt.Modifiers = append(evt.Modifiers, m.Label())
	}
	if tableID != nil {
		evt.TableID = tableID.String()
	}

	payload, err := json.Marshal(evt)
	if err != nil {
		logger.Error("cannot marshal order item event", "error", err, "item_id", item.ID.String())
		return
	}
	if err := publisher.Publish(ctx, event.OrderItemsTopic, payload); err != nil {
		logger.Error("cannot publish order item event", "error", err, "item_id", item.ID.String())
	}
}

// wrapBackend marks transport and storage failures with ErrBackend. Domain
// errors reported by the backend pass through unchanged.
func wrapBackend(op string, err error) error {
	switch {
	case errors.Is(err, backend.ErrNotFound),
		errors.Is(err, backend.ErrConflict),
		errors.Is(err, order.ErrItemNotFound):
		return fmt.Errorf("cannot %s: %w", op, err)
	}
	return fmt.Errorf("cannot %s: %w: %w", op, ErrBackend, err)
}

func ensureTableAllowsOrdering(ctx context.Context, tables TableGate, tableID uuid.UUID) (string, error) {
	if tableID == uuid.Nil {
		return "", fmt.Errorf("table_id is required")
	}
	if tables == nil {
		return "", nil
	}
	status, err := tables.Ensure(ctx, tableID)
	if err != nil {
		return status, err
	}
	if status == "" {
		return status, fmt.Errorf("table status unavailable")
	}
	if !Orderable(status) {
		return status, fmt.Errorf("table is %s", status)
	}
	return status, nil
}

func publishOrderTableRejection(ctx context.Context, publisher events.Publisher, logger aqm.Logger, tableID uuid.UUID, orderID *uuid.UUID, action, reason, status string) {
	if publisher == nil {
		return
	}
	evt := pkg.OrderTableRejectionEvent{
		EventType:  pkg.EventOrderTableRejected,
		TableID:    tableID.String(),
		Action:     action,
		Reason:     reason,
		Status:     status,
		OccurredAt: time.Now().UTC(),
	}
	if orderID != nil {
		evt.OrderID = orderID.String()
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		logger.Error("cannot marshal order table rejection", "error", err, "table_id", tableID.String())
		return
	}
	if err := publisher.Publish(ctx, pkg.OrderTableTopic, payload); err != nil {
		logger.Error("cannot publish order table rejection", "error", err, "table_id", tableID.String())
	}
}
