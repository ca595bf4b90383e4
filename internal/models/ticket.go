// internal/models/ticket.go
package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidState is returned when a ticket is asked to move to an unknown state.
var ErrInvalidState = errors.New("invalid state")

type Ticket struct {
	BaseModel
	RaffleID    uuid.UUID   `json:"raffle_id" gorm:"type:uuid;not null;uniqueIndex:idx_tickets_raffle_number,priority:1;index:idx_tickets_raffle_state,priority:1"`
	Number      int         `json:"number" gorm:"not null;uniqueIndex:idx_tickets_raffle_number,priority:2"`
	State       TicketState `json:"state" gorm:"type:varchar(20);not null;default:'available';index:idx_tickets_raffle_state,priority:2"`
	ReservedAt  *time.Time  `json:"reserved_at,omitempty"`
	PurchasedAt *time.Time  `json:"purchased_at,omitempty"`
	BuyerName   string      `json:"buyer_name" gorm:"size:100"`
	BuyerPhone  string      `json:"buyer_phone" gorm:"size:20"`

	// Relationships
	Raffle *Raffle `json:"raffle,omitempty" gorm:"foreignKey:RaffleID"`
}

// ApplyState moves the ticket to state. Unknown states leave the ticket
// untouched and return ErrInvalidState.
//
// available clears buyer data and both timestamps, reserved stamps the
// reservation time, and sold stamps the purchase time and stores the buyer
// fields as given. A nil buyer field on reserved keeps the current value.
func (t *Ticket) ApplyState(state TicketState, buyerName, buyerPhone *string, now time.Time) error {
	if !state.Valid() {
		return ErrInvalidState
	}

	switch state {
	case TicketStateAvailable:
		t.BuyerName = ""
		t.BuyerPhone = ""
		t.ReservedAt = nil
		t.PurchasedAt = nil
	case TicketStateReserved:
		t.ReservedAt = &now
		if buyerName != nil {
			t.BuyerName = *buyerName
		}
		if buyerPhone != nil {
			t.BuyerPhone = *buyerPhone
		}
	case TicketStateSold:
		t.PurchasedAt = &now
		t.BuyerName = deref(buyerName)
		t.BuyerPhone = deref(buyerPhone)
	}

	t.State = state
	return nil
}

// HasBuyer reports whether the ticket carries a buyer phone.
func (t *Ticket) HasBuyer() bool {
	return t.BuyerPhone != ""
}

// ReservedFor reports whether the ticket is reserved under the given buyer.
func (t *Ticket) ReservedFor(name, phone string) bool {
	return t.State == TicketStateReserved && t.BuyerName == name && t.BuyerPhone == phone
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
