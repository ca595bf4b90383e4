// internal/models/raffle.go
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	DefaultTotalTickets       = 100
	MaxTotalTickets           = 100000
	DefaultMaxTicketsPerBuyer = 10
)

// MinTicketPrice is the smallest price a raffle may charge per ticket.
var MinTicketPrice = decimal.New(1, -2)

type Raffle struct {
	BaseModel
	Name               string          `json:"name" gorm:"size:100;not null"`
	Slug               string          `json:"slug" gorm:"size:100;uniqueIndex;not null"`
	Description        string          `json:"description" gorm:"type:text"`
	PricePerTicket     decimal.Decimal `json:"price_per_ticket" gorm:"type:decimal(10,2);not null"`
	TotalTickets       int             `json:"total_tickets" gorm:"not null;default:100"`
	MaxTicketsPerBuyer int             `json:"max_tickets_per_buyer" gorm:"not null;default:10"`
	Prize              string          `json:"prize" gorm:"type:text"`
	DrawAt             time.Time       `json:"draw_at" gorm:"not null"`
	Status             RaffleStatus    `json:"status" gorm:"type:varchar(20);not null;default:'active'"`
	TicketsGenerated   bool            `json:"tickets_generated" gorm:"not null;default:false"`

	// Relationships
	Tickets      []Ticket      `json:"-" gorm:"foreignKey:RaffleID;constraint:OnDelete:CASCADE"`
	Transactions []Transaction `json:"-" gorm:"foreignKey:RaffleID;constraint:OnDelete:CASCADE"`
	Winner       *Winner       `json:"winner,omitempty" gorm:"foreignKey:RaffleID;constraint:OnDelete:CASCADE"`
}

// IsOpen reports whether tickets can still be sold at the given instant.
func (r *Raffle) IsOpen(now time.Time) bool {
	return r.Status == RaffleStatusActive && r.DrawAt.After(now)
}

// RaffleStats are derived from the live ticket inventory, never stored.
type RaffleStats struct {
	TotalTickets int     `json:"total_tickets"`
	Sold         int64   `json:"sold"`
	Reserved     int64   `json:"reserved"`
	Available    int64   `json:"available"`
	PercentSold  float64 `json:"percent_sold"`
	IsOpen       bool    `json:"is_open"`
}

// NewRaffleStats builds the aggregates from sold and reserved counts.
// Available counts everything not sold, reserved tickets included.
func NewRaffleStats(r *Raffle, sold, reserved int64, now time.Time) RaffleStats {
	return RaffleStats{
		TotalTickets: r.TotalTickets,
		Sold:         sold,
		Reserved:     reserved,
		Available:    int64(r.TotalTickets) - sold,
		PercentSold:  PercentSold(sold, r.TotalTickets),
		IsOpen:       r.IsOpen(now),
	}
}

// PercentSold returns sold/total on a 0-100 scale rounded to two places.
func PercentSold(sold int64, total int) float64 {
	if total <= 0 {
		return 0
	}
	pct := decimal.NewFromInt(sold).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(total))).
		Round(2)
	f, _ := pct.Float64()
	return f
}
