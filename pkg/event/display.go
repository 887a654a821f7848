package event

import "time"

const (
	DisplayTopic = "pos.display"

	DisplayOrderUpdate   = "ORDER_UPDATE"
	DisplayPaymentStart  = "PAYMENT_START"
	DisplayOrderComplete = "ORDER_COMPLETE"
	DisplayClear         = "CLEAR"
)

// DisplayEvent is a read-only projection pushed to customer facing screens.
// It is never a source of truth for order state.
type DisplayEvent struct {
	Type       string        `json:"type"`
	Terminal   string        `json:"terminal"`
	OrderID    string        `json:"order_id,omitempty"`
	VenueName  string        `json:"venue_name,omitempty"`
	Items      []DisplayItem `json:"items,omitempty"`
	Total      string        `json:"total,omitempty"`
	OccurredAt time.Time     `json:"occurred_at"`
}

type DisplayItem struct {
	Name      string   `json:"name"`
	Quantity  int      `json:"quantity"`
	Seat      int      `json:"seat"`
	LineTotal string   `json:"line_total"`
	Modifiers []string `json:"modifiers,omitempty"`
}
