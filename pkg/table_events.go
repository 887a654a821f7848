package pkg

import "time"

const (
	// TableStatusTopic delivers authoritative status changes for tables.
	TableStatusTopic = "tables.status"
	// OrderTableTopic groups events emitted by the POS that relate to table operations.
	OrderTableTopic = "orders.tables"

	// EventTableStatusChanged identifies a table status change event payload.
	EventTableStatusChanged = "table.status.changed"
	// EventOrderTableRejected identifies a rejection emitted by the POS.
	EventOrderTableRejected = "order.table.rejected"
	// EventOrderTableTransferred identifies a receipt moved to another table.
	EventOrderTableTransferred = "order.table.transferred"
	// EventOrderTablesMerged identifies orders from several tables merged into one.
	EventOrderTablesMerged = "order.tables.merged"
)

// TableStatusEvent captures the minimal information the POS needs to
// reason about a table's availability.
type TableStatusEvent struct {
	EventType      string    `json:"event_type"`
	TableID        string    `json:"table_id"`
	Status         string    `json:"status"`
	PreviousStatus string    `json:"previous_status,omitempty"`
	Reason         string    `json:"reason,omitempty"`
	Source         string    `json:"source,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// OrderTableRejectionEvent captures rejections performed by the POS
// whenever a table state blocks an operation.
type OrderTableRejectionEvent struct {
	EventType  string    `json:"event_type"`
	TableID    string    `json:"table_id"`
	OrderID    string    `json:"order_id,omitempty"`
	Action     string    `json:"action"`
	Reason     string    `json:"reason"`
	Status     string    `json:"status"`
	OccurredAt time.Time `json:"occurred_at"`
}

// OrderTableMoveEvent tells the table service that orders changed tables,
// either by a receipt transfer or by merging several tables into one.
type OrderTableMoveEvent struct {
	EventType     string    `json:"event_type"`
	OrderID       string    `json:"order_id"`
	TableID       string    `json:"table_id"`
	SourceTables  []string  `json:"source_tables,omitempty"`
	PreviousTable string    `json:"previous_table,omitempty"`
	GuestCount    int       `json:"guest_count"`
	OccurredAt    time.Time `json:"occurred_at"`
}
