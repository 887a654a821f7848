package order

import (
	"fmt"
	"time"

	"github.com/aquamarinepk/aqm"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/appetiteclub/pos/pkg/enums/kitchenstatus"
)

type OrderItem struct {
	ID            uuid.UUID       `json:"id" bson:"_id"`
	OrderID       uuid.UUID       `json:"order_id" bson:"order_id"`
	MenuItemID    *uuid.UUID      `json:"menu_item_id,omitempty" bson:"menu_item_id,omitempty"`
	Name          string          `json:"name" bson:"name"`
	Category      string          `json:"category,omitempty" bson:"category,omitempty"`
	Quantity      int             `json:"quantity" bson:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price" bson:"unit_price"`
	CatalogPrice  decimal.Decimal `json:"catalog_price" bson:"catalog_price"`
	Seat          int             `json:"seat" bson:"seat"`
	Course        int             `json:"course" bson:"course"`
	Modifiers     []Modifier      `json:"modifiers,omitempty" bson:"modifiers,omitempty"`
	Instructions  string          `json:"instructions,omitempty" bson:"instructions,omitempty"`
	Station       string          `json:"station" bson:"station"`
	KitchenStatus string          `json:"kitchen_status" bson:"kitchen_status"`
	VoidReason    string          `json:"void_reason,omitempty" bson:"void_reason,omitempty"`
	Sequence      int             `json:"sequence" bson:"sequence"`
	SentAt        *time.Time      `json:"sent_at,omitempty" bson:"sent_at,omitempty"`
	FiredAt       *time.Time      `json:"fired_at,omitempty" bson:"fired_at,omitempty"`
	VoidedAt      *time.Time      `json:"voided_at,omitempty" bson:"voided_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at" bson:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" bson:"updated_at"`
}

func (i *OrderItem) GetID() uuid.UUID {
	return i.ID
}

func (i *OrderItem) ResourceType() string {
	return "order-item"
}

func (i *OrderItem) EnsureID() {
	if i.ID == uuid.Nil {
		i.ID = aqm.GenerateNewID()
	}
}

func (i *OrderItem) BeforeCreate() {
	i.EnsureID()
	if i.KitchenStatus == "" {
		i.KitchenStatus = kitchenstatus.Statuses.New.Code()
	}
	i.CreatedAt = time.Now()
	i.UpdatedAt = i.CreatedAt
}

func (i *OrderItem) BeforeUpdate() {
	i.UpdatedAt = time.Now()
}

// Validate checks the placement and quantity of the item.
func (i *OrderItem) Validate() error {
	if i.Quantity < 1 {
		return ErrInvalidQuantity
	}
	if i.Seat < 1 {
		return ErrInvalidSeat
	}
	if i.Course < 1 {
		return ErrInvalidCourse
	}
	if i.UnitPrice.IsNegative() {
		return fmt.Errorf("%w: negative unit price", ErrInvalidAmount)
	}
	return nil
}

// LineTotal is quantity × (unit price + modifier deltas).
func (i *OrderItem) LineTotal() decimal.Decimal {
	unit := i.UnitPrice
	for _, m := range i.Modifiers {
		unit = unit.Add(m.Total())
	}
	return unit.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

func (i *OrderItem) IsVoided() bool {
	return i.KitchenStatus == kitchenstatus.Statuses.Voided.Code()
}

// IsOpenItem reports whether the item was keyed in manually instead of picked from the catalog.
func (i *OrderItem) IsOpenItem() bool {
	return i.MenuItemID == nil
}

// PriceOverridden reports whether the operator replaced the catalog price.
func (i *OrderItem) PriceOverridden() bool {
	return !i.IsOpenItem() && !i.UnitPrice.Equal(i.CatalogPrice)
}

// SetKitchenStatus applies a kitchen status change following the item state machine.
func (i *OrderItem) SetKitchenStatus(status string) error {
	if i.IsVoided() {
		return ErrAlreadyVoided
	}
	if !kitchenstatus.CanTransition(i.KitchenStatus, status) {
		return fmt.Errorf("%w: %s to %s", ErrInvalidStatus, i.KitchenStatus, status)
	}
	if i.KitchenStatus == status {
		return nil
	}
	if from := kitchenstatus.ByName(i.KitchenStatus); from != nil && !from.OnMainTrack() {
		if to := kitchenstatus.ByName(status); to.OnMainTrack() && !kitchenstatus.CanResume(status, i.Reached()) {
			return fmt.Errorf("%w: item already %s, cannot return to %s", ErrInvalidStatus, i.Reached(), status)
		}
	}
	now := time.Now()
	switch status {
	case kitchenstatus.Statuses.Sent.Code():
		i.SentAt = &now
	case kitchenstatus.Statuses.Fired.Code():
		if i.SentAt == nil {
			i.SentAt = &now
		}
		i.FiredAt = &now
	}
	i.KitchenStatus = status
	i.BeforeUpdate()
	return nil
}

// Reached is the furthest main track status the item got to, whatever side
// branch it sits on now.
func (i *OrderItem) Reached() string {
	switch {
	case i.FiredAt != nil:
		return kitchenstatus.Statuses.Fired.Code()
	case i.SentAt != nil:
		return kitchenstatus.Statuses.Sent.Code()
	}
	return kitchenstatus.Statuses.New.Code()
}

// MarkVoided is the only way into the voided status.
func (i *OrderItem) MarkVoided(reason string) error {
	if i.IsVoided() {
		return ErrAlreadyVoided
	}
	now := time.Now()
	i.KitchenStatus = kitchenstatus.Statuses.Voided.Code()
	i.VoidReason = reason
	i.VoidedAt = &now
	i.BeforeUpdate()
	return nil
}

func (i *OrderItem) Clone() *OrderItem {
	if i == nil {
		return nil
	}
	c := *i
	if i.MenuItemID != nil {
		id := *i.MenuItemID
		c.MenuItemID = &id
	}
	if i.Modifiers != nil {
		c.Modifiers = append([]Modifier(nil), i.Modifiers...)
	}
	c.SentAt = cloneTime(i.SentAt)
	c.FiredAt = cloneTime(i.FiredAt)
	c.VoidedAt = cloneTime(i.VoidedAt)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
