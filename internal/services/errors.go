// internal/services/errors.go
package services

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/javajoker/raffle-backend/internal/models"
)

// Error classes. Every error returned by this package wraps exactly one of
// them so callers can branch with errors.Is.
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = models.ErrInvalidState
	ErrConflict     = errors.New("conflict")
	ErrMismatch     = errors.New("mismatch")
	ErrValidation   = errors.New("validation failed")
)

var (
	ErrRaffleNotFound      = fmt.Errorf("raffle %w", ErrNotFound)
	ErrTicketNotFound      = fmt.Errorf("ticket %w", ErrNotFound)
	ErrTransactionNotFound = fmt.Errorf("transaction %w", ErrNotFound)
	ErrWinnerNotFound      = fmt.Errorf("winner %w", ErrNotFound)

	ErrDuplicateSlug     = fmt.Errorf("%w: slug already in use", ErrConflict)
	ErrTicketUnavailable = fmt.Errorf("%w: ticket is not available", ErrConflict)
	ErrStateConflict     = fmt.Errorf("%w: ticket state changed concurrently", ErrConflict)
	ErrCodeExhausted     = fmt.Errorf("%w: could not allocate a unique transaction code", ErrConflict)
	ErrWinnerExists      = fmt.Errorf("%w: raffle already has a winner", ErrConflict)
	ErrInventoryInUse    = fmt.Errorf("%w: inventory has reserved or sold tickets", ErrConflict)
	ErrInvalidTransition = fmt.Errorf("%w: transaction status change not allowed", ErrConflict)
	ErrTicketNotSold     = fmt.Errorf("%w: ticket is not sold", ErrConflict)

	ErrCrossRaffleTicket = fmt.Errorf("%w: ticket belongs to another raffle", ErrMismatch)

	ErrTicketLimitExceeded = fmt.Errorf("%w: too many tickets for one buyer", ErrValidation)
	ErrEmptySelection      = fmt.Errorf("%w: at least one ticket is required", ErrValidation)
	ErrInvalidSlug         = fmt.Errorf("%w: name does not produce a usable slug", ErrValidation)
)

func validationError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// notFound maps gorm.ErrRecordNotFound onto the given class error and wraps
// anything else as a database failure.
func notFound(err error, target error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return target
	}
	return fmt.Errorf("database error: %w", err)
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "sqlstate 23505")
}
