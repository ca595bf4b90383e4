// internal/models/winner.go
package models

import (
	"time"

	"github.com/google/uuid"
)

type Winner struct {
	BaseModel
	RaffleID    uuid.UUID  `json:"raffle_id" gorm:"type:uuid;not null;uniqueIndex"`
	TicketID    uuid.UUID  `json:"ticket_id" gorm:"type:uuid;not null;index"`
	WinnerName  string     `json:"winner_name" gorm:"size:100"`
	WinnerPhone string     `json:"winner_phone" gorm:"size:20"`
	AnnouncedAt time.Time  `json:"announced_at" gorm:"not null"`
	Delivered   bool       `json:"delivered" gorm:"not null;default:false"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`

	// Relationships
	Ticket *Ticket `json:"ticket,omitempty" gorm:"foreignKey:TicketID;constraint:OnDelete:CASCADE"`
}

// MarkDelivered flags the prize as handed over. It reports false when the
// record was already delivered, in which case nothing changes.
func (w *Winner) MarkDelivered(now time.Time) bool {
	if w.Delivered {
		return false
	}
	w.Delivered = true
	w.DeliveredAt = &now
	return true
}
