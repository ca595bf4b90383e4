// internal/services/inventory_service.go
package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/javajoker/raffle-backend/internal/common/clock"
	"github.com/javajoker/raffle-backend/internal/database"
	"github.com/javajoker/raffle-backend/internal/models"
	"github.com/javajoker/raffle-backend/internal/utils"
)

const maxPageSize = 100

var lockForUpdate = clause.Locking{Strength: "UPDATE"}

// InventoryService owns the numbered tickets of every raffle.
type InventoryService struct {
	db        *gorm.DB
	clock     clock.Clock
	batchSize int
}

type SetTicketStateRequest struct {
	State      string  `json:"state"`
	BuyerName  *string `json:"buyer_name,omitempty" validate:"omitempty,max=100"`
	BuyerPhone *string `json:"buyer_phone,omitempty" validate:"omitempty,max=20"`
	// ExpectedState turns the update into a compare-and-set against a state
	// the caller observed earlier.
	ExpectedState string `json:"expected_state,omitempty"`
}

type TicketFilter struct {
	utils.PaginationParams
	RaffleID uuid.UUID
	State    models.TicketState
	Number   *int
}

func NewInventoryService(db *gorm.DB, clk clock.Clock, batchSize int) *InventoryService {
	if batchSize < 1 {
		batchSize = 1000
	}
	return &InventoryService{
		db:        db,
		clock:     clk,
		batchSize: batchSize,
	}
}

// GenerateInventory creates tickets 1..total for a raffle that has none yet.
// It returns how many tickets were created, zero when the inventory already
// exists.
func (s *InventoryService) GenerateInventory(ctx context.Context, raffleID uuid.UUID) (int, error) {
	var created int
	err := database.WithTransaction(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		raffle, err := lockRaffle(tx, raffleID)
		if err != nil {
			return err
		}
		created, err = s.generate(tx, raffle)
		return err
	})
	return created, err
}

// ResetInventory throws away an untouched inventory and generates it again.
// Inventories with reserved or sold tickets, or with a winner, are refused.
func (s *InventoryService) ResetInventory(ctx context.Context, raffleID uuid.UUID) (int, error) {
	var created int
	err := database.WithTransaction(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		raffle, err := lockRaffle(tx, raffleID)
		if err != nil {
			return err
		}

		var inUse int64
		if err := tx.Model(&models.Ticket{}).
			Where("raffle_id = ? AND state <> ?", raffleID, models.TicketStateAvailable).
			Count(&inUse).Error; err != nil {
			return fmt.Errorf("failed to inspect inventory: %w", err)
		}
		var winners int64
		if err := tx.Model(&models.Winner{}).Where("raffle_id = ?", raffleID).Count(&winners).Error; err != nil {
			return fmt.Errorf("failed to inspect winner: %w", err)
		}
		if inUse > 0 || winners > 0 {
			return ErrInventoryInUse
		}

		ticketIDs := tx.Model(&models.Ticket{}).Select("id").Where("raffle_id = ?", raffleID)
		if err := tx.Where("ticket_id IN (?)", ticketIDs).Delete(&models.TransactionTicket{}).Error; err != nil {
			return fmt.Errorf("failed to unlink tickets: %w", err)
		}
		if err := tx.Where("raffle_id = ?", raffleID).Delete(&models.Ticket{}).Error; err != nil {
			return fmt.Errorf("failed to delete tickets: %w", err)
		}
		if err := tx.Model(&models.Raffle{}).Where("id = ?", raffleID).Update("tickets_generated", false).Error; err != nil {
			return fmt.Errorf("failed to clear inventory flag: %w", err)
		}
		raffle.TicketsGenerated = false

		created, err = s.generate(tx, raffle)
		return err
	})
	if err == nil {
		logrus.WithFields(logrus.Fields{"raffle_id": raffleID, "tickets": created}).Info("Inventory reset")
	}
	return created, err
}

// generate must run inside the caller's transaction so that the tickets and
// the generated flag commit together.
func (s *InventoryService) generate(tx *gorm.DB, raffle *models.Raffle) (int, error) {
	if raffle.TicketsGenerated {
		return 0, nil
	}

	tickets := make([]models.Ticket, raffle.TotalTickets)
	for i := range tickets {
		tickets[i] = models.Ticket{
			RaffleID: raffle.ID,
			Number:   i + 1,
			State:    models.TicketStateAvailable,
		}
	}

	if len(tickets) > 0 {
		if err := tx.Omit(clause.Associations).CreateInBatches(&tickets, s.batchSize).Error; err != nil {
			if isUniqueViolation(err) {
				return 0, fmt.Errorf("%w: inventory already exists for raffle %s", ErrConflict, raffle.ID)
			}
			return 0, fmt.Errorf("failed to create tickets: %w", err)
		}
	}

	result := tx.Model(&models.Raffle{}).
		Where("id = ? AND tickets_generated = ?", raffle.ID, false).
		Update("tickets_generated", true)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to flag inventory: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return 0, fmt.Errorf("%w: inventory generated concurrently for raffle %s", ErrConflict, raffle.ID)
	}
	raffle.TicketsGenerated = true

	logrus.WithFields(logrus.Fields{
		"raffle_id": raffle.ID,
		"tickets":   len(tickets),
	}).Info("Inventory generated")
	return len(tickets), nil
}

// SetState moves a ticket to a new state. The write only lands if the ticket
// still holds the state it was read with.
func (s *InventoryService) SetState(ctx context.Context, ticketID uuid.UUID, req *SetTicketStateRequest) (*models.Ticket, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	var ticket models.Ticket
	err := database.WithTransaction(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		if err := tx.Clauses(lockForUpdate).Where("id = ?", ticketID).First(&ticket).Error; err != nil {
			return notFound(err, ErrTicketNotFound)
		}

		if !models.TicketState(req.State).Valid() {
			return ErrInvalidState
		}
		if req.ExpectedState != "" {
			expected := models.TicketState(req.ExpectedState)
			if !expected.Valid() {
				return ErrInvalidState
			}
			if ticket.State != expected {
				return ErrStateConflict
			}
		}

		return s.transition(tx, &ticket, models.TicketState(req.State), req.BuyerName, req.BuyerPhone)
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"ticket_id": ticket.ID,
		"raffle_id": ticket.RaffleID,
		"number":    ticket.Number,
		"state":     ticket.State,
	}).Info("Ticket state updated")
	return &ticket, nil
}

// transition applies a state change to ticket and persists it with a
// compare-and-set on the state it held when loaded.
func (s *InventoryService) transition(tx *gorm.DB, ticket *models.Ticket, state models.TicketState, buyerName, buyerPhone *string) error {
	prior := ticket.State
	now := s.clock.Now()
	if err := ticket.ApplyState(state, buyerName, buyerPhone, now); err != nil {
		return err
	}

	result := tx.Model(&models.Ticket{}).
		Where("id = ? AND state = ?", ticket.ID, prior).
		Updates(map[string]interface{}{
			"state":        ticket.State,
			"buyer_name":   ticket.BuyerName,
			"buyer_phone":  ticket.BuyerPhone,
			"reserved_at":  ticket.ReservedAt,
			"purchased_at": ticket.PurchasedAt,
			"updated_at":   now,
		})
	if result.Error != nil {
		logrus.WithError(result.Error).WithField("ticket_id", ticket.ID).Error("Failed to persist ticket state")
		return fmt.Errorf("failed to update ticket %d: %w", ticket.Number, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: number %d", ErrStateConflict, ticket.Number)
	}
	ticket.UpdatedAt = now
	return nil
}

func (s *InventoryService) GetTicket(ctx context.Context, ticketID uuid.UUID) (*models.Ticket, error) {
	var ticket models.Ticket
	if err := s.db.WithContext(ctx).Where("id = ?", ticketID).First(&ticket).Error; err != nil {
		return nil, notFound(err, ErrTicketNotFound)
	}
	return &ticket, nil
}

func (s *InventoryService) GetTicketByNumber(ctx context.Context, raffleID uuid.UUID, number int) (*models.Ticket, error) {
	var ticket models.Ticket
	if err := s.db.WithContext(ctx).
		Where("raffle_id = ? AND number = ?", raffleID, number).
		First(&ticket).Error; err != nil {
		return nil, notFound(err, ErrTicketNotFound)
	}
	return &ticket, nil
}

// ListTickets returns a raffle's tickets ordered by number.
func (s *InventoryService) ListTickets(ctx context.Context, filter TicketFilter) ([]models.Ticket, int64, error) {
	db := s.db.WithContext(ctx)
	if err := db.Where("id = ?", filter.RaffleID).First(&models.Raffle{}).Error; err != nil {
		return nil, 0, notFound(err, ErrRaffleNotFound)
	}

	query := func() *gorm.DB {
		q := db.Model(&models.Ticket{}).Where("raffle_id = ?", filter.RaffleID)
		if filter.State != "" {
			q = q.Where("state = ?", filter.State)
		}
		if filter.Number != nil {
			q = q.Where("number = ?", *filter.Number)
		}
		return q
	}

	var total int64
	if err := query().Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count tickets: %w", err)
	}

	params := filter.PaginationParams
	params.Normalize(maxPageSize)

	var tickets []models.Ticket
	if err := utils.ApplyPagination(query(), params).
		Order("number ASC").
		Find(&tickets).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list tickets: %w", err)
	}

	return tickets, total, nil
}

func lockRaffle(tx *gorm.DB, raffleID uuid.UUID) (*models.Raffle, error) {
	var raffle models.Raffle
	if err := tx.Clauses(lockForUpdate).Where("id = ?", raffleID).First(&raffle).Error; err != nil {
		return nil, notFound(err, ErrRaffleNotFound)
	}
	return &raffle, nil
}
