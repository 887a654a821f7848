package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/aquamarinepk/aqm/events"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/appetiteclub/pos/pkg/event"
	"github.com/appetiteclub/pos/services/pos/internal/backend"
	"github.com/appetiteclub/pos/services/pos/internal/catalog"
	"github.com/appetiteclub/pos/services/pos/internal/order"
)

var errUnreachable = errors.New("connection refused")

var (
	burgerID = uuid.MustParse("550e8400-e29b-41d4-a716-446655440001")
	sodaID   = uuid.MustParse("550e8400-e29b-41d4-a716-446655440002")
	tacoID   = uuid.MustParse("550e8400-e29b-41d4-a716-446655440003")
	table1   = uuid.MustParse("550e8400-e29b-41d4-a716-446655440011")
	table2   = uuid.MustParse("550e8400-e29b-41d4-a716-446655440012")
	table3   = uuid.MustParse("550e8400-e29b-41d4-a716-446655440013")
)

// MockPublisher records published messages per topic.
type MockPublisher struct {
	mu          sync.Mutex
	messages    map[string][][]byte
	PublishFunc func(ctx context.Context, topic string, msg []byte) error
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{messages: make(map[string][][]byte)}
}

func (m *MockPublisher) Publish(ctx context.Context, topic string, msg []byte) error {
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, topic, msg)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[topic] = append(m.messages[topic], msg)
	return nil
}

func (m *MockPublisher) ItemEvents() []event.OrderItemEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []event.OrderItemEvent
	for _, msg := range m.messages[event.OrderItemsTopic] {
		var evt event.OrderItemEvent
		if err := json.Unmarshal(msg, &evt); err == nil {
			out = append(out, evt)
		}
	}
	return out
}

func (m *MockPublisher) Count(topic string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages[topic])
}

// MockSubscriber is a mock implementation of events.Subscriber for testing
type MockSubscriber struct {
	SubscribeFunc func(ctx context.Context, topic string, handler events.HandlerFunc) error
}

func (m *MockSubscriber) Subscribe(ctx context.Context, topic string, handler events.HandlerFunc) error {
	if m.SubscribeFunc != nil {
		return m.SubscribeFunc(ctx, topic, handler)
	}
	return nil
}

// MockDisplay records broadcast display events.
type MockDisplay struct {
	mu     sync.Mutex
	events []event.DisplayEvent
}

func (m *MockDisplay) Broadcast(ctx context.Context, evt event.DisplayEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evt)
}

func (m *MockDisplay) Last() (event.DisplayEvent, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.events) == 0 {
		return event.DisplayEvent{}, false
	}
	return m.events[len(m.events)-1], true
}

func (m *MockDisplay) Types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var types []string
	for _, e := range m.events {
		types = append(types, e.Type)
	}
	return types
}

// MockTables is a TableGate backed by a map.
type MockTables struct {
	mu     sync.Mutex
	status map[uuid.UUID]string
}

func NewMockTables() *MockTables {
	return &MockTables{status: map[uuid.UUID]string{
		table1: "available",
		table2: "available",
		table3: "available",
	}}
}

func (m *MockTables) Ensure(ctx context.Context, id uuid.UUID) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	status, ok := m.status[id]
	if !ok {
		return "", errors.New("table not found")
	}
	return status, nil
}

func (m *MockTables) Set(id uuid.UUID, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status[id] = status
}

// MockBackend wraps the in-memory backend. Func fields override single calls.
type MockBackend struct {
	*backend.Memory
	UpdateItemsFunc   func(ctx context.Context, orderID uuid.UUID, items []*order.OrderItem) (*order.Snapshot, error)
	UpdateOrderFunc   func(ctx context.Context, o *order.Order) (*order.Snapshot, error)
	RecordPaymentFunc func(ctx context.Context, p *order.Payment) (*order.Snapshot, error)
	AddItemsFunc      func(ctx context.Context, orderID uuid.UUID, items []*order.OrderItem) (*order.Snapshot, error)
	MergeOrdersFunc   func(ctx context.Context, m backend.Merge) (*order.Snapshot, error)
}

func NewMockBackend() *MockBackend {
	return &MockBackend{Memory: backend.NewMemory(nil)}
}

func (m *MockBackend) UpdateItems(ctx context.Context, orderID uuid.UUID, items []*order.OrderItem) (*order.Snapshot, error) {
	if m.UpdateItemsFunc != nil {
		return m.UpdateItemsFunc(ctx, orderID, items)
	}
	return m.Memory.UpdateItems(ctx, orderID, items)
}

func (m *MockBackend) UpdateOrder(ctx context.Context, o *order.Order) (*order.Snapshot, error) {
	if m.UpdateOrderFunc != nil {
		return m.UpdateOrderFunc(ctx, o)
	}
	return m.Memory.UpdateOrder(ctx, o)
}

func (m *MockBackend) RecordPayment(ctx context.Context, p *order.Payment) (*order.Snapshot, error) {
	if m.RecordPaymentFunc != nil {
		return m.RecordPaymentFunc(ctx, p)
	}
	return m.Memory.RecordPayment(ctx, p)
}

func (m *MockBackend) AddItems(ctx context.Context, orderID uuid.UUID, items []*order.OrderItem) (*order.Snapshot, error) {
	if m.AddItemsFunc != nil {
		return m.AddItemsFunc(ctx, orderID, items)
	}
	return m.Memory.AddItems(ctx, orderID, items)
}

func (m *MockBackend) MergeOrders(ctx context.Context, mg backend.Merge) (*order.Snapshot, error) {
	if m.MergeOrdersFunc != nil {
		return m.MergeOrdersFunc(ctx, mg)
	}
	return m.Memory.MergeOrders(ctx, mg)
}

// MockMenu serves a fixed set of catalog items.
type MockMenu map[uuid.UUID]catalog.Item

func (m MockMenu) Item(id uuid.UUID) (catalog.Item, bool) {
	item, ok := m[id]
	return item, ok
}

func testMenu() MockMenu {
	return MockMenu{
		burgerID: {
			ID:      burgerID,
			Name:    "Burger",
			Price:   decimal.RequireFromString("8.00"),
			Station: "kitchen",
			Active:  true,
			ModifierGroups: []catalog.ModifierGroup{
				{
					ID:            "doneness",
					Name:          "Doneness",
					Required:      true,
					MaxSelections: 1,
					Options: []catalog.ModifierOption{
						{ID: "rare", Name: "Rare"},
						{ID: "well", Name: "Well done"},
					},
				},
			},
		},
		tacoID: {
			ID:      tacoID,
			Name:    "Taco",
			Price:   decimal.RequireFromString("4.50"),
			Station: "kitchen",
			Active:  true,
			ModifierGroups: []catalog.ModifierGroup{
				{
					ID:   "extras",
					Name: "Extras",
					Options: []catalog.ModifierOption{
						{ID: "cheese", Name: "Cheese", PriceDelta: decimal.RequireFromString("1.00")},
					},
				},
			},
		},
		sodaID: {
			ID:      sodaID,
			Name:    "Soda",
			Price:   decimal.RequireFromString("2.50"),
			Station: "bar",
			Active:  true,
		},
	}
}

type testEnv struct {
	backend   *MockBackend
	publisher *MockPublisher
	display   *MockDisplay
	tables    *MockTables
	registry  *Registry
}

func newTestEnv() *testEnv {
	env := &testEnv{
		backend:   NewMockBackend(),
		publisher: NewMockPublisher(),
		display:   &MockDisplay{},
		tables:    NewMockTables(),
	}
	env.registry = NewRegistry(Deps{
		Backend:   env.backend,
		Menu:      testMenu(),
		Tables:    env.tables,
		Publisher: env.publisher,
		Display:   env.display,
		Config:    DefaultConfig(),
	})
	return env
}

func (e *testEnv) session(terminal string) *Session {
	return e.registry.Get(terminal)
}
