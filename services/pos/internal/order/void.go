package order

import (
	"time"

	"github.com/aquamarinepk/aqm"
	"github.com/google/uuid"
)

// VoidRecord is an append-only audit entry. ItemID is nil when the whole order was voided.
type VoidRecord struct {
	ID        uuid.UUID  `json:"id" bson:"_id"`
	OrderID   uuid.UUID  `json:"order_id" bson:"order_id"`
	ItemID    *uuid.UUID `json:"item_id,omitempty" bson:"item_id,omitempty"`
	Reason    string     `json:"reason" bson:"reason"`
	Actor     string     `json:"actor,omitempty" bson:"actor,omitempty"`
	CreatedAt time.Time  `json:"created_at" bson:"created_at"`
}

func NewItemVoid(item *OrderItem, reason, actor string) *VoidRecord {
	id := item.ID
	return &VoidRecord{
		ID:        aqm.GenerateNewID(),
		OrderID:   item.OrderID,
		ItemID:    &id,
		Reason:    reason,
		Actor:     actor,
		CreatedAt: time.Now(),
	}
}

func NewOrderVoid(o *Order, reason, actor string) *VoidRecord {
	return &VoidRecord{
		ID:        aqm.GenerateNewID(),
		OrderID:   o.ID,
		Reason:    reason,
		Actor:     actor,
		CreatedAt: time.Now(),
	}
}

func (v *VoidRecord) GetID() uuid.UUID {
	return v.ID
}

func (v *VoidRecord) ResourceType() string {
	return "void"
}

func (v *VoidRecord) Clone() *VoidRecord {
	if v == nil {
		return nil
	}
	c := *v
	if v.ItemID != nil {
		id := *v.ItemID
		c.ItemID = &id
	}
	return &c
}
