// internal/services/winner_service.go
package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/javajoker/raffle-backend/internal/common/clock"
	"github.com/javajoker/raffle-backend/internal/database"
	"github.com/javajoker/raffle-backend/internal/models"
)

type WinnerService struct {
	db    *gorm.DB
	clock clock.Clock
}

// AnnounceWinnerRequest names the winning ticket by id or by number within
// the raffle. The id takes precedence when both are set.
type AnnounceWinnerRequest struct {
	TicketID     *uuid.UUID `json:"ticket_id,omitempty"`
	TicketNumber *int       `json:"ticket_number,omitempty"`
}

func NewWinnerService(db *gorm.DB, clk clock.Clock) *WinnerService {
	return &WinnerService{db: db, clock: clk}
}

// Announce records the winning ticket of a raffle. The ticket must belong to
// the raffle and be sold, and a raffle has at most one winner.
func (s *WinnerService) Announce(ctx context.Context, raffleID uuid.UUID, req *AnnounceWinnerRequest) (*models.Winner, error) {
	if req.TicketID == nil && req.TicketNumber == nil {
		return nil, validationError("ticket_id or ticket_number is required")
	}

	var winner models.Winner
	err := database.WithTransaction(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		if _, err := lockRaffle(tx, raffleID); err != nil {
			return err
		}

		var ticket models.Ticket
		if req.TicketID != nil {
			if err := tx.Where("id = ?", *req.TicketID).First(&ticket).Error; err != nil {
				return notFound(err, ErrTicketNotFound)
			}
			if ticket.RaffleID != raffleID {
				return ErrCrossRaffleTicket
			}
		} else {
			if err := tx.Where("raffle_id = ? AND number = ?", raffleID, *req.TicketNumber).First(&ticket).Error; err != nil {
				return notFound(err, ErrTicketNotFound)
			}
		}

		var existing int64
		if err := tx.Model(&models.Winner{}).Where("raffle_id = ?", raffleID).Count(&existing).Error; err != nil {
			return fmt.Errorf("failed to check winner: %w", err)
		}
		if existing > 0 {
			return ErrWinnerExists
		}
		if ticket.State != models.TicketStateSold {
			return fmt.Errorf("%w: number %d is %s", ErrTicketNotSold, ticket.Number, ticket.State)
		}

		winner = models.Winner{
			RaffleID:    raffleID,
			TicketID:    ticket.ID,
			AnnouncedAt: s.clock.Now(),
		}
		if ticket.HasBuyer() {
			winner.WinnerName = ticket.BuyerName
			winner.WinnerPhone = ticket.BuyerPhone
		}
		if err := tx.Omit("Ticket").Create(&winner).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrWinnerExists
			}
			return fmt.Errorf("failed to create winner: %w", err)
		}
		winner.Ticket = &ticket
		return nil
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"raffle_id": raffleID,
		"winner_id": winner.ID,
		"number":    winner.Ticket.Number,
	}).Info("Winner announced")
	return &winner, nil
}

// MarkDelivered flags the prize as delivered. Repeating the call keeps the
// first delivery time.
func (s *WinnerService) MarkDelivered(ctx context.Context, raffleID uuid.UUID) (*models.Winner, error) {
	var winner models.Winner
	err := database.WithTransaction(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		if err := tx.Clauses(lockForUpdate).Where("raffle_id = ?", raffleID).First(&winner).Error; err != nil {
			return notFound(err, ErrWinnerNotFound)
		}
		if !winner.MarkDelivered(s.clock.Now()) {
			return nil
		}
		if err := tx.Model(&models.Winner{}).Where("id = ?", winner.ID).Updates(map[string]interface{}{
			"delivered":    winner.Delivered,
			"delivered_at": winner.DeliveredAt,
		}).Error; err != nil {
			return fmt.Errorf("failed to mark prize delivered: %w", err)
		}
		logrus.WithField("raffle_id", raffleID).Info("Prize delivered")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetWinner(ctx, raffleID)
}

func (s *WinnerService) GetWinner(ctx context.Context, raffleID uuid.UUID) (*models.Winner, error) {
	var winner models.Winner
	if err := s.db.WithContext(ctx).Preload("Ticket").Where("raffle_id = ?", raffleID).First(&winner).Error; err != nil {
		return nil, notFound(err, ErrWinnerNotFound)
	}
	return &winner, nil
}
