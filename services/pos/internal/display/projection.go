package display

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/appetiteclub/pos/pkg/event"
	"github.com/appetiteclub/pos/services/pos/internal/order"
)

// OrderUpdate projects the active items and grand total of an order.
func OrderUpdate(terminal, venue string, snap *order.Snapshot, total decimal.Decimal) event.DisplayEvent {
	evt := newEvent(event.DisplayOrderUpdate, terminal, venue, snap)
	evt.Items = items(snap)
	evt.Total = total.StringFixed(2)
	return evt
}

// PaymentStart tells the display the guest is about to pay total.
func PaymentStart(terminal, venue string, snap *order.Snapshot, total decimal.Decimal) event.DisplayEvent {
	evt := newEvent(event.DisplayPaymentStart, terminal, venue, snap)
	evt.Items = items(snap)
	evt.Total = total.StringFixed(2)
	return evt
}

func OrderComplete(terminal, venue string, snap *order.Snapshot) event.DisplayEvent {
	return newEvent(event.DisplayOrderComplete, terminal, venue, snap)
}

func Clear(terminal, venue string) event.DisplayEvent {
	return newEvent(event.DisplayClear, terminal, venue, nil)
}

func newEvent(kind, terminal, venue string, snap *order.Snapshot) event.DisplayEvent {
	evt := event.DisplayEvent{
		Type:       kind,
		Terminal:   terminal,
		VenueName:  venue,
		OccurredAt: time.Now(),
	}
	if snap != nil && snap.Order != nil {
		evt.OrderID = snap.Order.ID.String()
	}
	return evt
}

func items(snap *order.Snapshot) []event.DisplayItem {
	active := snap.ActiveItems()
	out := make([]event.DisplayItem, 0, len(active))
	for _, item := range active {
		di := event.DisplayItem{
			Name:      item.Name,
			Quantity:  item.Quantity,
			Seat:      item.Seat,
			LineTotal: item.LineTotal().StringFixed(2),
		}
		for _, m := range item.Modifiers {
			di.Modifiers = append(di.Modifiers, m.Label())
		}
		out = append(out, di)
	}
	return out
}
