// internal/models/transaction.go
package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Transaction struct {
	BaseModel
	Code          string            `json:"code" gorm:"size:50;uniqueIndex;not null"`
	RaffleID      uuid.UUID         `json:"raffle_id" gorm:"type:uuid;not null;index"`
	CustomerName  string            `json:"customer_name" gorm:"size:100;not null"`
	CustomerPhone string            `json:"customer_phone" gorm:"size:20"`
	TicketCount   int               `json:"ticket_count" gorm:"not null;default:0"`
	TotalAmount   decimal.Decimal   `json:"total_amount" gorm:"type:decimal(10,2);not null"`
	Status        TransactionStatus `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`
	PaymentMethod string            `json:"payment_method" gorm:"size:50"`
	Notes         string            `json:"notes" gorm:"type:text"`

	// Relationships
	Raffle  *Raffle  `json:"raffle,omitempty" gorm:"foreignKey:RaffleID"`
	Tickets []Ticket `json:"tickets,omitempty" gorm:"many2many:transaction_tickets;constraint:OnDelete:CASCADE"`
}

// TransactionTicket is the join row between a transaction and the tickets it
// selected.
type TransactionTicket struct {
	TransactionID uuid.UUID `gorm:"type:uuid;primaryKey"`
	TicketID      uuid.UUID `gorm:"type:uuid;primaryKey;index"`
}

// ComputeTotal returns ticket_count x raffle price, or zero when no raffle is
// attached.
func (t *Transaction) ComputeTotal() decimal.Decimal {
	if t.Raffle == nil {
		return decimal.Zero
	}
	return t.Raffle.PricePerTicket.Mul(decimal.NewFromInt(int64(t.TicketCount)))
}

// BuyerName exposes the customer name in the shape ticket transitions expect.
func (t *Transaction) BuyerName() *string {
	return &t.CustomerName
}

// BuyerPhone exposes the customer phone in the shape ticket transitions expect.
func (t *Transaction) BuyerPhone() *string {
	return &t.CustomerPhone
}
