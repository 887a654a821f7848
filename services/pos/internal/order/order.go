package order

import (
	"fmt"
	"time"

	"github.com/aquamarinepk/aqm"
	"github.com/google/uuid"
)

const (
	TypeDineIn  = "dine-in"
	TypeTakeout = "takeout"
	TypeCounter = "counter"
)

const (
	StatusOpen      = "open"
	StatusSent      = "sent"
	StatusFinalized = "finalized"
	StatusVoided    = "voided"
	StatusClosed    = "closed"
)

var allowedTransitions = map[string][]string{
	StatusOpen:      {StatusSent, StatusFinalized, StatusVoided},
	StatusSent:      {StatusFinalized, StatusVoided},
	StatusFinalized: {StatusOpen, StatusSent, StatusClosed, StatusVoided},
	StatusClosed:    {},
	StatusVoided:    {},
}

type Order struct {
	ID         uuid.UUID  `json:"id" bson:"_id"`
	Type       string     `json:"type" bson:"type"`
	TableID    *uuid.UUID `json:"table_id,omitempty" bson:"table_id,omitempty"`
	Status     string     `json:"status" bson:"status"`
	SeatCount  int        `json:"seat_count" bson:"seat_count"`
	GuestCount int        `json:"guest_count" bson:"guest_count"`
	Terminal   string     `json:"terminal,omitempty" bson:"terminal,omitempty"`
	CreatedAt  time.Time  `json:"created_at" bson:"created_at"`
	CreatedBy  string     `json:"created_by" bson:"created_by"`
	UpdatedAt  time.Time  `json:"updated_at" bson:"updated_at"`
	UpdatedBy  string     `json:"updated_by" bson:"updated_by"`
	ClosedAt   *time.Time `json:"closed_at,omitempty" bson:"closed_at,omitempty"`
}

func NewOrder(orderType string, tableID *uuid.UUID) *Order {
	o := &Order{
		ID:         aqm.GenerateNewID(),
		Type:       orderType,
		TableID:    tableID,
		Status:     StatusOpen,
		SeatCount:  1,
		GuestCount: 1,
	}
	o.BeforeCreate()
	return o
}

func (o *Order) GetID() uuid.UUID {
	return o.ID
}

func (o *Order) ResourceType() string {
	return "order"
}

func (o *Order) EnsureID() {
	if o.ID == uuid.Nil {
		o.ID = aqm.GenerateNewID()
	}
}

func (o *Order) BeforeCreate() {
	o.EnsureID()
	o.CreatedAt = time.Now()
	o.UpdatedAt = o.CreatedAt
}

func (o *Order) BeforeUpdate() {
	o.UpdatedAt = time.Now()
}

// ValidateType checks the order type and its table requirement.
func ValidateType(orderType string, tableID *uuid.UUID) error {
	switch orderType {
	case TypeDineIn:
		if tableID == nil || *tableID == uuid.Nil {
			return ErrTableRequired
		}
	case TypeTakeout, TypeCounter:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidOrderType, orderType)
	}
	return nil
}

// IsLocked reports whether items of the order can no longer be changed.
func (o *Order) IsLocked() bool {
	switch o.Status {
	case StatusFinalized, StatusClosed, StatusVoided:
		return true
	}
	return false
}

// IsDone reports whether the order left the session for good.
func (o *Order) IsDone() bool {
	return o.Status == StatusClosed || o.Status == StatusVoided
}

func (o *Order) CanTransition(to string) bool {
	for _, s := range allowedTransitions[o.Status] {
		if s == to {
			return true
		}
	}
	return false
}

// Transition moves the order to another status.
func (o *Order) Transition(to string) error {
	if o.Status == to {
		return nil
	}
	if !o.CanTransition(to) {
		return fmt.Errorf("%w: %s to %s", ErrInvalidStatus, o.Status, to)
	}
	o.Status = to
	if to == StatusClosed {
		now := time.Now()
		o.ClosedAt = &now
	}
	o.BeforeUpdate()
	return nil
}

// EnsureSeat grows the seat count so seat fits.
func (o *Order) EnsureSeat(seat int) {
	if seat > o.SeatCount {
		o.SeatCount = seat
	}
	if o.GuestCount < 1 {
		o.GuestCount = 1
	}
}

// Elapsed is the time since the order was opened, or its lifetime once closed.
func (o *Order) Elapsed(now time.Time) time.Duration {
	if o.ClosedAt != nil {
		return o.ClosedAt.Sub(o.CreatedAt)
	}
	return now.Sub(o.CreatedAt)
}

func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	if o.TableID != nil {
		id := *o.TableID
		c.TableID = &id
	}
	if o.ClosedAt != nil {
		t := *o.ClosedAt
		c.ClosedAt = &t
	}
	return &c
}
