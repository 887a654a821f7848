package event

import "time"

const (
	OrderItemsTopic       = "orders.items"
	EventOrderItemSent    = "order.item.sent"
	EventOrderItemFired   = "order.item.fired"
	EventOrderItemHeld    = "order.item.held"
	EventOrderItemRushed  = "order.item.rushed"
	EventOrderItemVoided  = "order.item.voided"
	EventOrderItemUpdated = "order.item.updated"
)

// OrderItemEvent represents a dispatch event published to NATS.
// Production stations consume it to create and update tickets.
type OrderItemEvent struct {
	EventType      string    `json:"event_type"`
	OccurredAt     time.Time `json:"occurred_at"`
	OrderID        string    `json:"order_id"`
	OrderItemID    string    `json:"order_item_id"`
	MenuItemID     string    `json:"menu_item_id,omitempty"`
	Quantity       int       `json:"quantity"`
	Seat           int       `json:"seat"`
	Course         int       `json:"course"`
	Instructions   string    `json:"instructions,omitempty"`
	Modifiers      []string  `json:"modifiers,omitempty"`
	Station        string    `json:"station"`
	Status         string    `json:"status,omitempty"`
	PreviousStatus string    `json:"previous_status,omitempty"`
	Reason         string    `json:"reason,omitempty"`

	// Denormalized data for station displays
	MenuItemName string `json:"menu_item_name,omitempty"`
	TableID      string `json:"table_id,omitempty"`
	Terminal     string `json:"terminal,omitempty"`
}
