package order

import (
	"time"

	"github.com/aquamarinepk/aqm"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	SplitNone   = ""
	SplitEqual  = "equal"
	SplitBySeat = "by-seat"
	SplitCustom = "custom"
)

// Payment is a confirmed tender against an order. Amount is what the payment
// settled, tip included; Tip and Discount are the shares of the settlement
// adjustments this payment carried.
type Payment struct {
	ID        uuid.UUID       `json:"id" bson:"_id"`
	OrderID   uuid.UUID       `json:"order_id" bson:"order_id"`
	Tender    string          `json:"tender" bson:"tender"`
	Amount    decimal.Decimal `json:"amount" bson:"amount"`
	Tip       decimal.Decimal `json:"tip" bson:"tip"`
	Discount  decimal.Decimal `json:"discount" bson:"discount"`
	Tendered  decimal.Decimal `json:"tendered" bson:"tendered"`
	Change    decimal.Decimal `json:"change" bson:"change"`
	Split     *SplitInfo      `json:"split,omitempty" bson:"split,omitempty"`
	Room      *RoomCharge     `json:"room,omitempty" bson:"room,omitempty"`
	Actor     string          `json:"actor,omitempty" bson:"actor,omitempty"`
	CreatedAt time.Time       `json:"created_at" bson:"created_at"`
}

type SplitInfo struct {
	Strategy  string        `json:"strategy" bson:"strategy"`
	Count     int           `json:"count,omitempty" bson:"count,omitempty"`
	Share     int           `json:"share,omitempty" bson:"share,omitempty"`
	Seat      int           `json:"seat,omitempty" bson:"seat,omitempty"`
	Breakdown []ShareAmount `json:"breakdown,omitempty" bson:"breakdown,omitempty"`
}

// ShareAmount is one line of a split: a guest share or a seat.
type ShareAmount struct {
	Key    int             `json:"key" bson:"key"`
	Amount decimal.Decimal `json:"amount" bson:"amount"`
}

type RoomCharge struct {
	RoomNumber     string `json:"room_number" bson:"room_number"`
	GuestName      string `json:"guest_name" bson:"guest_name"`
	ReservationRef string `json:"reservation_ref,omitempty" bson:"reservation_ref,omitempty"`
}

func (p *Payment) GetID() uuid.UUID {
	return p.ID
}

func (p *Payment) ResourceType() string {
	return "payment"
}

func (p *Payment) BeforeCreate() {
	if p.ID == uuid.Nil {
		p.ID = aqm.GenerateNewID()
	}
	p.CreatedAt = time.Now()
}

// Net is the amount the payment settled excluding tip.
func (p *Payment) Net() decimal.Decimal {
	return p.Amount.Sub(p.Tip)
}

func (p *Payment) Clone() *Payment {
	if p == nil {
		return nil
	}
	c := *p
	if p.Split != nil {
		s := *p.Split
		s.Breakdown = append([]ShareAmount(nil), p.Split.Breakdown...)
		c.Split = &s
	}
	if p.Room != nil {
		r := *p.Room
		c.Room = &r
	}
	return &c
}
