package session

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/aquamarinepk/aqm/events"

	"github.com/appetiteclub/pos/pkg"
	"github.com/appetiteclub/pos/services/pos/internal/order"
)

func TestNewTableStatusSubscriber(t *testing.T) {
	cache := NewTableStateCache(nil, 0, nil)

	tests := []struct {
		name  string
		cache *TableStateCache
	}{
		{name: "withCache", cache: cache},
		{name: "withNilCache", cache: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := NewTableStatusSubscriber(nil, tt.cache, nil)
			if sub == nil {
				t.Fatal("NewTableStatusSubscriber() returned nil")
			}
			if sub.logger == nil {
				t.Error("NewTableStatusSubscriber() should set noop logger when nil")
			}
			if sub.cache != tt.cache {
				t.Error("NewTableStatusSubscriber() should keep the cache")
			}
		})
	}
}

func TestTableStatusSubscriberStart(t *testing.T) {
	t.Run("nilSubscriber", func(t *testing.T) {
		err := NewTableStatusSubscriber(nil, nil, nil).Start(context.Background())
		if err == nil || err.Error() != "table status subscriber not configured" {
			t.Errorf("Start() error = %v, want not configured", err)
		}
	})

	t.Run("subscribesToTableStatus", func(t *testing.T) {
		var topic string
		mock := &MockSubscriber{SubscribeFunc: func(ctx context.Context, tp string, handler events.HandlerFunc) error {
			topic = tp
			return nil
		}}
		if err := NewTableStatusSubscriber(mock, NewTableStateCache(nil, 0, nil), nil).Start(context.Background()); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		if topic != pkg.TableStatusTopic {
			t.Errorf("topic = %q, want %q", topic, pkg.TableStatusTopic)
		}
	})

	t.Run("subscribeError", func(t *testing.T) {
		mock := &MockSubscriber{SubscribeFunc: func(ctx context.Context, tp string, handler events.HandlerFunc) error {
			return fmt.Errorf("subscription error")
		}}
		if err := NewTableStatusSubscriber(mock, nil, nil).Start(context.Background()); err == nil {
			t.Error("Start() with subscribe error should return error")
		}
	})
}

func TestTableStatusSubscriberHandleEvent(t *testing.T) {
	at := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		event      interface{}
		wantStatus string
		wantCached bool
	}{
		{
			name: "statusChanged",
			event: pkg.TableStatusEvent{
				EventType:  pkg.EventTableStatusChanged,
				TableID:    table1.String(),
				Status:     TableOccupied,
				OccurredAt: at,
			},
			wantStatus: TableOccupied,
			wantCached: true,
		},
		{
			name: "untypedEvent",
			event: pkg.TableStatusEvent{
				TableID:    table1.String(),
				Status:     TableReserved,
				OccurredAt: at,
			},
			wantStatus: TableReserved,
			wantCached: true,
		},
		{
			name: "otherEventType",
			event: pkg.TableStatusEvent{
				EventType: "table.deleted",
				TableID:   table1.String(),
				Status:    "closed",
			},
		},
		{
			name: "invalidTableID",
			event: pkg.TableStatusEvent{
				TableID: "not-a-uuid",
				Status:  TableAvailable,
			},
		},
		{
			name:  "invalidJSON",
			event: "not json",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache := NewTableStateCache(nil, 0, nil)
			sub := NewTableStatusSubscriber(nil, cache, nil)

			var msg []byte
			if s, ok := tt.event.(string); ok {
				msg = []byte(s)
			} else {
				msg, _ = json.Marshal(tt.event)
			}

			if err := sub.handleEvent(context.Background(), msg); err != nil {
				t.Errorf("handleEvent() unexpected error: %v", err)
			}

			status, ok := cache.Get(table1)
			if ok != tt.wantCached || status != tt.wantStatus {
				t.Errorf("cached = %q, %v, want %q, %v", status, ok, tt.wantStatus, tt.wantCached)
			}
		})
	}
}

func TestTableStatusSubscriberIgnoresLateEvents(t *testing.T) {
	cache := NewTableStateCache(nil, 0, nil)
	sub := NewTableStatusSubscriber(nil, cache, nil)
	at := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)

	for _, evt := range []pkg.TableStatusEvent{
		{TableID: table1.String(), Status: TableOccupied, OccurredAt: at},
		{TableID: table1.String(), Status: TableAvailable, OccurredAt: at.Add(-time.Second)},
	} {
		msg, _ := json.Marshal(evt)
		if err := sub.handleEvent(context.Background(), msg); err != nil {
			t.Fatalf("handleEvent() error = %v", err)
		}
	}

	if status, _ := cache.Get(table1); status != TableOccupied {
		t.Errorf("status = %q, want %q", status, TableOccupied)
	}
}

func TestTableStatusSubscriberGatesOrders(t *testing.T) {
	cache := NewTableStateCache(nil, 0, nil)
	cache.Set(table1, TableAvailable)
	sub := NewTableStatusSubscriber(nil, cache, nil)

	env := newTestEnv()
	env.registry = NewRegistry(Deps{Backend: env.backend, Menu: testMenu(), Tables: cache, Publisher: env.publisher, Config: DefaultConfig()})

	msg, _ := json.Marshal(pkg.TableStatusEvent{EventType: pkg.EventTableStatusChanged, TableID: table1.String(), Status: "closed", OccurredAt: time.Now()})
	if err := sub.handleEvent(context.Background(), msg); err != nil {
		t.Fatalf("handleEvent() error = %v", err)
	}

	tbl := table1
	if _, err := env.session("t1").CreateOrder(context.Background(), order.TypeDineIn, &tbl, "alice"); err == nil {
		t.Error("CreateOrder() on a closed table should fail")
	}
}
