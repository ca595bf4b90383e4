// internal/services/raffle_service.go
package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/javajoker/raffle-backend/internal/common/clock"
	"github.com/javajoker/raffle-backend/internal/database"
	"github.com/javajoker/raffle-backend/internal/models"
	"github.com/javajoker/raffle-backend/internal/utils"
)

const (
	maxSlugLength     = 100
	defaultRaffleSort = "-created_at"
	soldCountExpr     = "(SELECT COUNT(*) FROM tickets WHERE tickets.raffle_id = raffles.id AND tickets.state = 'sold')"
)

var raffleSortOptions = utils.SortOption{
	"-created_at": "raffles.created_at DESC",
	"created_at":  "raffles.created_at ASC",
	"name":        "raffles.name ASC",
	"-name":       "raffles.name DESC",
	"draw_at":     "raffles.draw_at ASC",
	"-draw_at":    "raffles.draw_at DESC",
	"-sold":       soldCountExpr + " DESC, raffles.created_at DESC",
	"sold":        soldCountExpr + " ASC, raffles.created_at DESC",
}

type RaffleService struct {
	db        *gorm.DB
	clock     clock.Clock
	inventory *InventoryService
	pageSize  int
}

type CreateRaffleRequest struct {
	Name               string              `json:"name" validate:"required,max=100"`
	Slug               string              `json:"slug,omitempty" validate:"omitempty,max=100,slug"`
	Description        string              `json:"description,omitempty"`
	PricePerTicket     decimal.Decimal     `json:"price_per_ticket"`
	TotalTickets       int                 `json:"total_tickets,omitempty" validate:"omitempty,min=1,max=100000"`
	MaxTicketsPerBuyer int                 `json:"max_tickets_per_buyer,omitempty" validate:"omitempty,min=1"`
	Prize              string              `json:"prize,omitempty"`
	DrawAt             time.Time           `json:"draw_at" validate:"required"`
	Status             models.RaffleStatus `json:"status,omitempty" validate:"omitempty,oneof=active completed cancelled drawn"`
}

// UpdateRaffleRequest never touches the ticket count or the slug.
type UpdateRaffleRequest struct {
	Name               *string              `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	Description        *string              `json:"description,omitempty"`
	PricePerTicket     *decimal.Decimal     `json:"price_per_ticket,omitempty"`
	MaxTicketsPerBuyer *int                 `json:"max_tickets_per_buyer,omitempty" validate:"omitempty,min=1"`
	Prize              *string              `json:"prize,omitempty"`
	DrawAt             *time.Time           `json:"draw_at,omitempty"`
	Status             *models.RaffleStatus `json:"status,omitempty" validate:"omitempty,oneof=active completed cancelled drawn"`
}

type RaffleFilter struct {
	utils.PaginationParams
	// Status is a raffle status, or "" / "all" for every status.
	Status string
}

type RaffleSummary struct {
	models.Raffle
	Stats models.RaffleStats `json:"stats"`
}

type RaffleListResult struct {
	Raffles          []RaffleSummary
	Params           utils.PaginationParams
	Total            int64
	TotalRaffles     int64
	ActiveRaffles    int64
	CompletedRaffles int64
}

func NewRaffleService(db *gorm.DB, clk clock.Clock, inventory *InventoryService, pageSize int) *RaffleService {
	if pageSize < 1 {
		pageSize = 12
	}
	return &RaffleService{
		db:        db,
		clock:     clk,
		inventory: inventory,
		pageSize:  pageSize,
	}
}

func (s *RaffleService) PageSize() int {
	return s.pageSize
}

// CreateRaffle persists a raffle and its full ticket inventory atomically.
func (s *RaffleService) CreateRaffle(ctx context.Context, req *CreateRaffleRequest) (*models.Raffle, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if err := validatePrice(req.PricePerTicket); err != nil {
		return nil, err
	}

	raffleSlug, err := assignSlug(req.Slug, req.Name)
	if err != nil {
		return nil, err
	}

	raffle := &models.Raffle{
		Name:               strings.TrimSpace(req.Name),
		Slug:               raffleSlug,
		Description:        req.Description,
		PricePerTicket:     req.PricePerTicket,
		TotalTickets:       req.TotalTickets,
		MaxTicketsPerBuyer: req.MaxTicketsPerBuyer,
		Prize:              req.Prize,
		DrawAt:             req.DrawAt.UTC(),
		Status:             req.Status,
	}
	if raffle.TotalTickets == 0 {
		raffle.TotalTickets = models.DefaultTotalTickets
	}
	if raffle.MaxTicketsPerBuyer == 0 {
		raffle.MaxTicketsPerBuyer = models.DefaultMaxTicketsPerBuyer
	}
	if raffle.Status == "" {
		raffle.Status = models.RaffleStatusActive
	}

	err = database.WithTransaction(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		var taken int64
		if err := tx.Model(&models.Raffle{}).Where("slug = ?", raffle.Slug).Count(&taken).Error; err != nil {
			return fmt.Errorf("failed to check slug: %w", err)
		}
		if taken > 0 {
			return ErrDuplicateSlug
		}

		if err := tx.Create(raffle).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicateSlug
			}
			return fmt.Errorf("failed to create raffle: %w", err)
		}

		_, err := s.inventory.generate(tx, raffle)
		return err
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"raffle_id": raffle.ID,
		"slug":      raffle.Slug,
		"tickets":   raffle.TotalTickets,
	}).Info("Raffle created")
	return raffle, nil
}

// assignSlug keeps an explicit slug, otherwise derives one from the name.
// Collisions are reported by the caller, never disambiguated.
func assignSlug(explicit, name string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	s := slug.Make(name)
	if len(s) > maxSlugLength {
		s = strings.Trim(s[:maxSlugLength], "-")
	}
	if s == "" {
		return "", ErrInvalidSlug
	}
	return s, nil
}

func validatePrice(price decimal.Decimal) error {
	if price.LessThan(models.MinTicketPrice) {
		return validationError("price_per_ticket must be at least %s", models.MinTicketPrice.StringFixed(2))
	}
	if !price.Equal(price.Round(2)) {
		return validationError("price_per_ticket allows at most two decimal places")
	}
	if price.GreaterThanOrEqual(decimal.New(1, 8)) {
		return validationError("price_per_ticket is too large")
	}
	return nil
}

func (s *RaffleService) UpdateRaffle(ctx context.Context, id uuid.UUID, req *UpdateRaffleRequest) (*models.Raffle, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.PricePerTicket != nil {
		if err := validatePrice(*req.PricePerTicket); err != nil {
			return nil, err
		}
		updates["price_per_ticket"] = *req.PricePerTicket
	}
	if req.MaxTicketsPerBuyer != nil {
		updates["max_tickets_per_buyer"] = *req.MaxTicketsPerBuyer
	}
	if req.Prize != nil {
		updates["prize"] = *req.Prize
	}
	if req.DrawAt != nil {
		updates["draw_at"] = req.DrawAt.UTC()
	}
	if req.Status != nil {
		updates["status"] = *req.Status
	}

	err := database.WithTransaction(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		raffle, err := lockRaffle(tx, id)
		if err != nil {
			return err
		}
		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(raffle).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to update raffle: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logrus.WithField("raffle_id", id).Info("Raffle updated")
	return s.GetRaffle(ctx, id)
}

// DeleteRaffle removes a raffle with its winner, transactions and tickets.
func (s *RaffleService) DeleteRaffle(ctx context.Context, id uuid.UUID) error {
	err := database.WithTransaction(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		if _, err := lockRaffle(tx, id); err != nil {
			return err
		}

		transactionIDs := tx.Model(&models.Transaction{}).Select("id").Where("raffle_id = ?", id)
		steps := []struct {
			what string
			run  func() error
		}{
			{"transaction links", func() error {
				return tx.Where("transaction_id IN (?)", transactionIDs).Delete(&models.TransactionTicket{}).Error
			}},
			{"winner", func() error { return tx.Where("raffle_id = ?", id).Delete(&models.Winner{}).Error }},
			{"transactions", func() error { return tx.Where("raffle_id = ?", id).Delete(&models.Transaction{}).Error }},
			{"tickets", func() error { return tx.Where("raffle_id = ?", id).Delete(&models.Ticket{}).Error }},
			{"raffle", func() error { return tx.Where("id = ?", id).Delete(&models.Raffle{}).Error }},
		}
		for _, step := range steps {
			if err := step.run(); err != nil {
				return fmt.Errorf("failed to delete %s: %w", step.what, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	logrus.WithField("raffle_id", id).Info("Raffle deleted")
	return nil
}

func (s *RaffleService) GetRaffle(ctx context.Context, id uuid.UUID) (*models.Raffle, error) {
	var raffle models.Raffle
	if err := s.db.WithContext(ctx).Preload("Winner").Where("id = ?", id).First(&raffle).Error; err != nil {
		return nil, notFound(err, ErrRaffleNotFound)
	}
	return &raffle, nil
}

func (s *RaffleService) GetRaffleBySlug(ctx context.Context, raffleSlug string) (*models.Raffle, error) {
	var raffle models.Raffle
	if err := s.db.WithContext(ctx).Preload("Winner").Where("slug = ?", raffleSlug).First(&raffle).Error; err != nil {
		return nil, notFound(err, ErrRaffleNotFound)
	}
	return &raffle, nil
}

// GetStats computes sold, available and percent sold from the live inventory.
func (s *RaffleService) GetStats(ctx context.Context, id uuid.UUID) (*models.RaffleStats, error) {
	raffle, err := s.GetRaffle(ctx, id)
	if err != nil {
		return nil, err
	}

	counts, err := s.countByState(s.db.WithContext(ctx), []uuid.UUID{raffle.ID})
	if err != nil {
		return nil, err
	}

	c := counts[raffle.ID]
	stats := models.NewRaffleStats(raffle, c.sold, c.reserved, s.clock.Now())
	return &stats, nil
}

// ListRaffles filters, sorts and paginates raffles and attaches live stats.
// Unknown sort keys fall back to newest first and pages past the end land on
// the last page.
func (s *RaffleService) ListRaffles(ctx context.Context, filter RaffleFilter) (*RaffleListResult, error) {
	db := s.db.WithContext(ctx)
	params := filter.PaginationParams
	if params.Limit < 1 {
		params.Limit = s.pageSize
	}

	query := func() *gorm.DB {
		q := db.Model(&models.Raffle{})
		if search := strings.TrimSpace(params.Search); search != "" {
			like := "%" + strings.ToLower(search) + "%"
			q = q.Where("LOWER(raffles.name) LIKE ? OR LOWER(raffles.description) LIKE ?", like, like)
		}
		if filter.Status != "" && filter.Status != "all" {
			q = q.Where("raffles.status = ?", filter.Status)
		}
		return q
	}

	result := &RaffleListResult{}
	if err := query().Count(&result.Total).Error; err != nil {
		return nil, fmt.Errorf("failed to count raffles: %w", err)
	}
	params.ClampPage(result.Total)

	var raffles []models.Raffle
	if err := utils.ApplySort(utils.ApplyPagination(query(), params), params, raffleSortOptions, defaultRaffleSort).
		Find(&raffles).Error; err != nil {
		return nil, fmt.Errorf("failed to list raffles: %w", err)
	}

	ids := make([]uuid.UUID, len(raffles))
	for i := range raffles {
		ids[i] = raffles[i].ID
	}
	counts, err := s.countByState(db, ids)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	result.Raffles = make([]RaffleSummary, len(raffles))
	for i := range raffles {
		c := counts[raffles[i].ID]
		result.Raffles[i] = RaffleSummary{
			Raffle: raffles[i],
			Stats:  models.NewRaffleStats(&raffles[i], c.sold, c.reserved, now),
		}
	}
	result.Params = params

	if err := s.countRaffles(db, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *RaffleService) countRaffles(db *gorm.DB, result *RaffleListResult) error {
	type statusCount struct {
		Status models.RaffleStatus
		Total  int64
	}
	var rows []statusCount
	if err := db.Model(&models.Raffle{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error; err != nil {
		return fmt.Errorf("failed to count raffles by status: %w", err)
	}

	for _, row := range rows {
		result.TotalRaffles += row.Total
		switch row.Status {
		case models.RaffleStatusActive:
			result.ActiveRaffles = row.Total
		case models.RaffleStatusCompleted:
			result.CompletedRaffles = row.Total
		}
	}
	return nil
}

type ticketCounts struct {
	sold     int64
	reserved int64
}

func (s *RaffleService) countByState(db *gorm.DB, raffleIDs []uuid.UUID) (map[uuid.UUID]ticketCounts, error) {
	counts := make(map[uuid.UUID]ticketCounts, len(raffleIDs))
	if len(raffleIDs) == 0 {
		return counts, nil
	}

	type stateCount struct {
		RaffleID uuid.UUID
		State    models.TicketState
		Total    int64
	}
	var rows []stateCount
	if err := db.Model(&models.Ticket{}).
		Select("raffle_id, state, COUNT(*) AS total").
		Where("raffle_id IN ? AND state IN ?", raffleIDs,
			[]models.TicketState{models.TicketStateSold, models.TicketStateReserved}).
		Group("raffle_id, state").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to count tickets: %w", err)
	}

	for _, row := range rows {
		c := counts[row.RaffleID]
		switch row.State {
		case models.TicketStateSold:
			c.sold = row.Total
		case models.TicketStateReserved:
			c.reserved = row.Total
		}
		counts[row.RaffleID] = c
	}
	return counts, nil
}
