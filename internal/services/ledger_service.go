// internal/services/ledger_service.go
package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/javajoker/raffle-backend/internal/common/clock"
	"github.com/javajoker/raffle-backend/internal/config"
	"github.com/javajoker/raffle-backend/internal/database"
	"github.com/javajoker/raffle-backend/internal/models"
	"github.com/javajoker/raffle-backend/internal/utils"
)

// LedgerService records purchases of tickets and drives them from reserved
// to sold.
type LedgerService struct {
	db          *gorm.DB
	clock       clock.Clock
	inventory   *InventoryService
	codePrefix  string
	codeLength  int
	maxAttempts int
	newCode     func() (string, error)
}

type CreateTransactionRequest struct {
	RaffleID      uuid.UUID                `json:"raffle_id" validate:"required"`
	CustomerName  string                   `json:"customer_name" validate:"required,max=100"`
	CustomerPhone string                   `json:"customer_phone,omitempty" validate:"omitempty,phone"`
	TicketNumbers []int                    `json:"ticket_numbers" validate:"required,min=1,dive,min=1"`
	Status        models.TransactionStatus `json:"status,omitempty" validate:"omitempty,oneof=pending completed"`
	PaymentMethod string                   `json:"payment_method,omitempty" validate:"omitempty,max=50"`
	Notes         string                   `json:"notes,omitempty"`
}

type UpdateTransactionRequest struct {
	CustomerName  *string                   `json:"customer_name,omitempty" validate:"omitempty,min=1,max=100"`
	CustomerPhone *string                   `json:"customer_phone,omitempty" validate:"omitempty,phone"`
	PaymentMethod *string                   `json:"payment_method,omitempty" validate:"omitempty,max=50"`
	Notes         *string                   `json:"notes,omitempty"`
	Status        *models.TransactionStatus `json:"status,omitempty" validate:"omitempty,oneof=pending completed cancelled rejected"`
	// TicketNumbers replaces the selection; only pending transactions accept it.
	TicketNumbers []int `json:"ticket_numbers,omitempty" validate:"omitempty,min=1,dive,min=1"`
}

type TransactionFilter struct {
	utils.PaginationParams
	RaffleID *uuid.UUID
	Status   models.TransactionStatus
}

func NewLedgerService(db *gorm.DB, clk clock.Clock, inventory *InventoryService, cfg config.RaffleConfig) *LedgerService {
	s := &LedgerService{
		db:          db,
		clock:       clk,
		inventory:   inventory,
		codePrefix:  cfg.CodePrefix,
		codeLength:  cfg.CodeLength,
		maxAttempts: cfg.CodeMaxAttempts,
	}
	if s.codeLength < 1 {
		s.codeLength = 8
	}
	if s.maxAttempts < 1 {
		s.maxAttempts = 5
	}
	s.newCode = s.GenerateCode
	return s
}

// GenerateCode returns the prefix followed by random uppercase letters and
// digits. Uniqueness is enforced by the database on insert.
func (s *LedgerService) GenerateCode() (string, error) {
	suffix, err := utils.GenerateRandomStringFrom(utils.UpperAlphanumericCharset, s.codeLength)
	if err != nil {
		return "", fmt.Errorf("failed to generate transaction code: %w", err)
	}
	return s.codePrefix + suffix, nil
}

// ComputeTotal is ticket_count x the raffle's price per ticket.
func (s *LedgerService) ComputeTotal(txn *models.Transaction) decimal.Decimal {
	return txn.ComputeTotal()
}

// CreateTransaction selects available tickets for a customer. A pending
// transaction reserves them; one created as completed sells them at once.
func (s *LedgerService) CreateTransaction(ctx context.Context, req *CreateTransactionRequest) (*models.Transaction, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	status := req.Status
	if status == "" {
		status = models.TransactionStatusPending
	}
	numbers := uniqueNumbers(req.TicketNumbers)

	txn := &models.Transaction{
		RaffleID:      req.RaffleID,
		CustomerName:  strings.TrimSpace(req.CustomerName),
		CustomerPhone: strings.TrimSpace(req.CustomerPhone),
		Status:        status,
		PaymentMethod: req.PaymentMethod,
		Notes:         req.Notes,
	}

	err := database.WithTransaction(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		raffle, err := findRaffle(tx, req.RaffleID)
		if err != nil {
			return err
		}
		if len(numbers) > raffle.MaxTicketsPerBuyer {
			return fmt.Errorf("%w: %d selected, limit is %d", ErrTicketLimitExceeded, len(numbers), raffle.MaxTicketsPerBuyer)
		}

		tickets, err := lockTicketsByNumber(tx, raffle.ID, numbers)
		if err != nil {
			return err
		}
		if err := requireAvailable(tickets); err != nil {
			return err
		}

		txn.Raffle = raffle
		txn.TicketCount = len(tickets)
		txn.TotalAmount = txn.ComputeTotal()
		if err := s.insertWithCode(tx, txn); err != nil {
			return err
		}
		if err := linkTickets(tx, txn.ID, tickets); err != nil {
			return err
		}
		if err := s.save(tx, txn); err != nil {
			return err
		}

		if status == models.TransactionStatusCompleted {
			return s.completeTickets(tx, txn)
		}
		return s.reserveTickets(tx, txn, tickets)
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"transaction_id": txn.ID,
		"code":           txn.Code,
		"raffle_id":      txn.RaffleID,
		"tickets":        txn.TicketCount,
		"status":         txn.Status,
	}).Info("Transaction created")
	return s.GetTransaction(ctx, txn.ID)
}

// insertWithCode inserts txn, drawing a fresh code whenever the previous one
// collides. Each attempt runs under a savepoint so a collision does not abort
// the surrounding transaction.
func (s *LedgerService) insertWithCode(tx *gorm.DB, txn *models.Transaction) error {
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		if txn.Code == "" || attempt > 1 {
			code, err := s.newCode()
			if err != nil {
				return err
			}
			txn.Code = code
		}

		err := tx.Transaction(func(sp *gorm.DB) error {
			return sp.Omit(clause.Associations).Create(txn).Error
		})
		if err == nil {
			return nil
		}
		if !isUniqueViolation(err) {
			logrus.WithError(err).Error("Failed to insert transaction")
			return fmt.Errorf("failed to create transaction: %w", err)
		}

		logrus.WithFields(logrus.Fields{
			"code":    txn.Code,
			"attempt": attempt,
		}).Warn("Transaction code collision")
	}
	return ErrCodeExhausted
}

// save recounts the linked tickets and recomputes the total from the live
// selection, writing only when either value moved.
func (s *LedgerService) save(tx *gorm.DB, txn *models.Transaction) error {
	var count int64
	if err := tx.Model(&models.TransactionTicket{}).Where("transaction_id = ?", txn.ID).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to count transaction tickets: %w", err)
	}

	previousCount, previousTotal := txn.TicketCount, txn.TotalAmount
	txn.TicketCount = int(count)
	txn.TotalAmount = txn.ComputeTotal()
	if txn.TicketCount == previousCount && txn.TotalAmount.Equal(previousTotal) {
		return nil
	}

	if err := tx.Model(&models.Transaction{}).Where("id = ?", txn.ID).Updates(map[string]interface{}{
		"ticket_count": txn.TicketCount,
		"total_amount": txn.TotalAmount,
	}).Error; err != nil {
		return fmt.Errorf("failed to update transaction totals: %w", err)
	}
	return nil
}

// CompleteTransaction marks every selected ticket sold to the customer.
// Completing an already completed transaction changes nothing.
func (s *LedgerService) CompleteTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	status := models.TransactionStatusCompleted
	return s.UpdateTransaction(ctx, id, &UpdateTransactionRequest{Status: &status})
}

// UpdateTransaction edits a transaction and applies status side effects:
// completing sells the tickets, cancelling or rejecting releases the ones
// still reserved.
func (s *LedgerService) UpdateTransaction(ctx context.Context, id uuid.UUID, req *UpdateTransactionRequest) (*models.Transaction, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	var txn models.Transaction
	err := database.WithTransaction(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		if err := tx.Clauses(lockForUpdate).Where("id = ?", id).First(&txn).Error; err != nil {
			return notFound(err, ErrTransactionNotFound)
		}
		raffle, err := findRaffle(tx, txn.RaffleID)
		if err != nil {
			return err
		}
		txn.Raffle = raffle

		pending := txn.Status == models.TransactionStatusPending
		customerChanged := req.CustomerName != nil || req.CustomerPhone != nil
		if (customerChanged || req.TicketNumbers != nil) && !pending {
			return fmt.Errorf("%w: only pending transactions can change customer or tickets", ErrInvalidTransition)
		}
		if req.Status != nil && !txn.Status.CanTransitionTo(*req.Status) {
			return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, txn.Status, *req.Status)
		}

		prevName, prevPhone := txn.CustomerName, txn.CustomerPhone
		updates := map[string]interface{}{}
		if req.CustomerName != nil {
			txn.CustomerName = strings.TrimSpace(*req.CustomerName)
			updates["customer_name"] = txn.CustomerName
		}
		if req.CustomerPhone != nil {
			txn.CustomerPhone = strings.TrimSpace(*req.CustomerPhone)
			updates["customer_phone"] = txn.CustomerPhone
		}
		if req.PaymentMethod != nil {
			updates["payment_method"] = *req.PaymentMethod
		}
		if req.Notes != nil {
			updates["notes"] = *req.Notes
		}
		if len(updates) > 0 {
			if err := tx.Model(&models.Transaction{}).Where("id = ?", txn.ID).Updates(updates).Error; err != nil {
				return fmt.Errorf("failed to update transaction: %w", err)
			}
		}

		if customerChanged {
			if err := s.syncReservedBuyer(tx, &txn, prevName, prevPhone); err != nil {
				return err
			}
		}
		if req.TicketNumbers != nil {
			if err := s.replaceSelection(tx, &txn, uniqueNumbers(req.TicketNumbers)); err != nil {
				return err
			}
		}
		if err := s.save(tx, &txn); err != nil {
			return err
		}

		if req.Status == nil {
			return nil
		}
		switch *req.Status {
		case models.TransactionStatusCompleted:
			if err := s.completeTickets(tx, &txn); err != nil {
				return err
			}
		case models.TransactionStatusCancelled, models.TransactionStatusRejected:
			if err := s.releaseTickets(tx, &txn); err != nil {
				return err
			}
		}
		if *req.Status != txn.Status {
			if err := tx.Model(&models.Transaction{}).Where("id = ?", txn.ID).Update("status", *req.Status).Error; err != nil {
				return fmt.Errorf("failed to update transaction status: %w", err)
			}
			txn.Status = *req.Status
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"transaction_id": txn.ID,
		"code":           txn.Code,
		"status":         txn.Status,
	}).Info("Transaction updated")
	return s.GetTransaction(ctx, id)
}

// completeTickets sells every ticket linked to txn. Tickets already sold to
// the same customer are left alone. Tickets sold to, or reserved by, anyone
// else abort the whole batch.
func (s *LedgerService) completeTickets(tx *gorm.DB, txn *models.Transaction) error {
	tickets, err := lockLinkedTickets(tx, txn.ID)
	if err != nil {
		return err
	}

	for i := range tickets {
		t := &tickets[i]
		if t.State == models.TicketStateSold {
			if t.BuyerName == txn.CustomerName && t.BuyerPhone == txn.CustomerPhone {
				continue
			}
			return fmt.Errorf("%w: number %d is sold to another buyer", ErrTicketUnavailable, t.Number)
		}
		if t.State == models.TicketStateReserved && !t.ReservedFor(txn.CustomerName, txn.CustomerPhone) {
			return fmt.Errorf("%w: number %d is reserved by another buyer", ErrTicketUnavailable, t.Number)
		}
		if err := s.inventory.transition(tx, t, models.TicketStateSold, txn.BuyerName(), txn.BuyerPhone()); err != nil {
			return err
		}
	}
	return nil
}

func (s *LedgerService) reserveTickets(tx *gorm.DB, txn *models.Transaction, tickets []models.Ticket) error {
	for i := range tickets {
		if err := s.inventory.transition(tx, &tickets[i], models.TicketStateReserved, txn.BuyerName(), txn.BuyerPhone()); err != nil {
			return err
		}
	}
	return nil
}

// releaseTickets returns the tickets still reserved under txn's customer to
// the pool. A linked ticket that was freed and reserved again by another
// buyer is left alone.
func (s *LedgerService) releaseTickets(tx *gorm.DB, txn *models.Transaction) error {
	tickets, err := lockLinkedTickets(tx, txn.ID)
	if err != nil {
		return err
	}
	for i := range tickets {
		if !tickets[i].ReservedFor(txn.CustomerName, txn.CustomerPhone) {
			continue
		}
		if err := s.inventory.transition(tx, &tickets[i], models.TicketStateAvailable, nil, nil); err != nil {
			return err
		}
	}
	return nil
}

// syncReservedBuyer moves the tickets reserved under the previous customer
// details onto the current ones.
func (s *LedgerService) syncReservedBuyer(tx *gorm.DB, txn *models.Transaction, prevName, prevPhone string) error {
	linked := tx.Model(&models.TransactionTicket{}).Select("ticket_id").Where("transaction_id = ?", txn.ID)
	if err := tx.Model(&models.Ticket{}).
		Where("id IN (?) AND state = ?", linked, models.TicketStateReserved).
		Where("buyer_name = ? AND buyer_phone = ?", prevName, prevPhone).
		Updates(map[string]interface{}{
			"buyer_name":  txn.CustomerName,
			"buyer_phone": txn.CustomerPhone,
		}).Error; err != nil {
		return fmt.Errorf("failed to update reserved tickets: %w", err)
	}
	return nil
}

// replaceSelection swaps a pending transaction's tickets. Dropped tickets
// still reserved under the customer go back to available. Every wanted ticket
// the transaction does not hold must be available and becomes reserved.
func (s *LedgerService) replaceSelection(tx *gorm.DB, txn *models.Transaction, numbers []int) error {
	if len(numbers) > txn.Raffle.MaxTicketsPerBuyer {
		return fmt.Errorf("%w: %d selected, limit is %d", ErrTicketLimitExceeded, len(numbers), txn.Raffle.MaxTicketsPerBuyer)
	}

	current, err := lockLinkedTickets(tx, txn.ID)
	if err != nil {
		return err
	}
	wanted, err := lockTicketsByNumber(tx, txn.RaffleID, numbers)
	if err != nil {
		return err
	}

	keep := make(map[uuid.UUID]bool, len(wanted))
	for _, t := range wanted {
		keep[t.ID] = true
	}
	held := make(map[uuid.UUID]bool, len(current))
	for i := range current {
		if !current[i].ReservedFor(txn.CustomerName, txn.CustomerPhone) {
			continue
		}
		held[current[i].ID] = true
		if keep[current[i].ID] {
			continue
		}
		if err := s.inventory.transition(tx, &current[i], models.TicketStateAvailable, nil, nil); err != nil {
			return err
		}
	}

	var added []models.Ticket
	for _, t := range wanted {
		if !held[t.ID] {
			added = append(added, t)
		}
	}
	if err := requireAvailable(added); err != nil {
		return err
	}
	if err := s.reserveTickets(tx, txn, added); err != nil {
		return err
	}

	if err := tx.Where("transaction_id = ?", txn.ID).Delete(&models.TransactionTicket{}).Error; err != nil {
		return fmt.Errorf("failed to unlink tickets: %w", err)
	}
	return linkTickets(tx, txn.ID, wanted)
}

func (s *LedgerService) GetTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	var txn models.Transaction
	if err := s.preloaded(s.db.WithContext(ctx)).Where("id = ?", id).First(&txn).Error; err != nil {
		return nil, notFound(err, ErrTransactionNotFound)
	}
	return &txn, nil
}

func (s *LedgerService) GetTransactionByCode(ctx context.Context, code string) (*models.Transaction, error) {
	var txn models.Transaction
	if err := s.preloaded(s.db.WithContext(ctx)).Where("code = ?", strings.ToUpper(code)).First(&txn).Error; err != nil {
		return nil, notFound(err, ErrTransactionNotFound)
	}
	return &txn, nil
}

// ListTransactions returns transactions newest first. Search matches the
// code or the customer name.
func (s *LedgerService) ListTransactions(ctx context.Context, filter TransactionFilter) ([]models.Transaction, int64, error) {
	db := s.db.WithContext(ctx)
	query := func() *gorm.DB {
		q := db.Model(&models.Transaction{})
		if filter.RaffleID != nil {
			q = q.Where("raffle_id = ?", *filter.RaffleID)
		}
		if filter.Status != "" {
			q = q.Where("status = ?", filter.Status)
		}
		if search := strings.TrimSpace(filter.Search); search != "" {
			like := "%" + strings.ToLower(search) + "%"
			q = q.Where("LOWER(code) LIKE ? OR LOWER(customer_name) LIKE ?", like, like)
		}
		return q
	}

	var total int64
	if err := query().Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	params := filter.PaginationParams
	params.Normalize(maxPageSize)

	var transactions []models.Transaction
	if err := utils.ApplyPagination(query(), params).
		Preload("Raffle").
		Order("created_at DESC").
		Find(&transactions).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list transactions: %w", err)
	}
	return transactions, total, nil
}

func (s *LedgerService) preloaded(db *gorm.DB) *gorm.DB {
	return db.Preload("Raffle").Preload("Tickets", func(db *gorm.DB) *gorm.DB {
		return db.Order("tickets.number ASC")
	})
}

func findRaffle(tx *gorm.DB, raffleID uuid.UUID) (*models.Raffle, error) {
	var raffle models.Raffle
	if err := tx.Where("id = ?", raffleID).First(&raffle).Error; err != nil {
		return nil, notFound(err, ErrRaffleNotFound)
	}
	return &raffle, nil
}

// lockTicketsByNumber loads and row-locks the requested numbers of a raffle.
// Any number without a ticket fails the lookup.
func lockTicketsByNumber(tx *gorm.DB, raffleID uuid.UUID, numbers []int) ([]models.Ticket, error) {
	if len(numbers) == 0 {
		return nil, ErrEmptySelection
	}

	var tickets []models.Ticket
	if err := tx.Clauses(lockForUpdate).
		Where("raffle_id = ? AND number IN ?", raffleID, numbers).
		Order("number ASC").
		Find(&tickets).Error; err != nil {
		return nil, fmt.Errorf("failed to load tickets: %w", err)
	}

	if len(tickets) != len(numbers) {
		found := make(map[int]bool, len(tickets))
		for _, t := range tickets {
			found[t.Number] = true
		}
		var missing []string
		for _, n := range numbers {
			if !found[n] {
				missing = append(missing, fmt.Sprint(n))
			}
		}
		return nil, fmt.Errorf("%w: numbers %s", ErrTicketNotFound, strings.Join(missing, ", "))
	}
	return tickets, nil
}

func lockLinkedTickets(tx *gorm.DB, transactionID uuid.UUID) ([]models.Ticket, error) {
	linked := tx.Model(&models.TransactionTicket{}).Select("ticket_id").Where("transaction_id = ?", transactionID)

	var tickets []models.Ticket
	if err := tx.Clauses(lockForUpdate).
		Where("id IN (?)", linked).
		Order("number ASC").
		Find(&tickets).Error; err != nil {
		return nil, fmt.Errorf("failed to load transaction tickets: %w", err)
	}
	return tickets, nil
}

func requireAvailable(tickets []models.Ticket) error {
	for _, t := range tickets {
		if t.State != models.TicketStateAvailable {
			return fmt.Errorf("%w: number %d is %s", ErrTicketUnavailable, t.Number, t.State)
		}
	}
	return nil
}

func linkTickets(tx *gorm.DB, transactionID uuid.UUID, tickets []models.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}
	links := make([]models.TransactionTicket, len(tickets))
	for i, t := range tickets {
		links[i] = models.TransactionTicket{TransactionID: transactionID, TicketID: t.ID}
	}
	if err := tx.Create(&links).Error; err != nil {
		return fmt.Errorf("failed to link tickets: %w", err)
	}
	return nil
}

func uniqueNumbers(numbers []int) []int {
	seen := make(map[int]bool, len(numbers))
	out := make([]int, 0, len(numbers))
	for _, n := range numbers {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	sort.Ints(out)
	return out
}
