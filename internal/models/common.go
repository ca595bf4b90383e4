// internal/models/common.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate assigns the primary key client side so every dialect gets one.
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// Enums
type RaffleStatus string

const (
	RaffleStatusActive    RaffleStatus = "active"
	RaffleStatusCompleted RaffleStatus = "completed"
	RaffleStatusCancelled RaffleStatus = "cancelled"
	RaffleStatusDrawn     RaffleStatus = "drawn"
)

func (s RaffleStatus) Valid() bool {
	switch s {
	case RaffleStatusActive, RaffleStatusCompleted, RaffleStatusCancelled, RaffleStatusDrawn:
		return true
	}
	return false
}

type TicketState string

const (
	TicketStateAvailable TicketState = "available"
	TicketStateReserved  TicketState = "reserved"
	TicketStateSold      TicketState = "sold"
)

func (s TicketState) Valid() bool {
	switch s {
	case TicketStateAvailable, TicketStateReserved, TicketStateSold:
		return true
	}
	return false
}

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusCancelled TransactionStatus = "cancelled"
	TransactionStatusRejected  TransactionStatus = "rejected"
)

func (s TransactionStatus) Valid() bool {
	switch s {
	case TransactionStatusPending, TransactionStatusCompleted, TransactionStatusCancelled, TransactionStatusRejected:
		return true
	}
	return false
}

// CanTransitionTo reports whether a transaction may move from s to next.
// Re-applying the current status is always allowed.
func (s TransactionStatus) CanTransitionTo(next TransactionStatus) bool {
	if s == next {
		return true
	}
	if s != TransactionStatusPending {
		return false
	}
	return next == TransactionStatusCompleted ||
		next == TransactionStatusCancelled ||
		next == TransactionStatusRejected
}
