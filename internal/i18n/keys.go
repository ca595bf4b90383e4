// internal/i18n/keys.go
package i18n

// Translation keys constants
const (
	// Common
	KeySuccess       = "success"
	KeyError         = "error"
	KeyInternalError = "internal_error"

	// Authentication
	KeyAuthRequired     = "auth.required"
	KeyAuthInvalidToken = "auth.invalid_token"
	KeyAuthTokenExpired = "auth.token_expired"
	KeyAuthForbidden    = "auth.forbidden"

	// Validation
	KeyValidationInvalid  = "validation.invalid"
	KeyValidationRequired = "validation.required"
	KeyInvalidID          = "validation.invalid_id"

	// Raffles
	KeyRaffleCreated   = "raffle.created"
	KeyRaffleUpdated   = "raffle.updated"
	KeyRaffleDeleted   = "raffle.deleted"
	KeyRaffleNotFound  = "raffle.not_found"
	KeyRaffleSlugTaken = "raffle.slug_taken"

	// Inventory
	KeyInventoryGenerated = "inventory.generated"
	KeyInventoryReset     = "inventory.reset"
	KeyInventoryInUse     = "inventory.in_use"

	// Tickets
	KeyTicketNotFound      = "ticket.not_found"
	KeyTicketInvalidState  = "ticket.invalid_state"
	KeyTicketUnavailable   = "ticket.unavailable"
	KeyTicketStateConflict = "ticket.state_conflict"
	KeyTicketLimitExceeded = "ticket.limit_exceeded"

	// Transactions
	KeyTransactionCreated           = "transaction.created"
	KeyTransactionUpdated           = "transaction.updated"
	KeyTransactionCompleted         = "transaction.completed"
	KeyTransactionNotFound          = "transaction.not_found"
	KeyTransactionInvalidTransition = "transaction.invalid_transition"
	KeyTransactionCodeExhausted     = "transaction.code_exhausted"

	// Winners
	KeyWinnerAnnounced     = "winner.announced"
	KeyWinnerDelivered     = "winner.delivered"
	KeyWinnerNotFound      = "winner.not_found"
	KeyWinnerExists        = "winner.exists"
	KeyWinnerCrossRaffle   = "winner.cross_raffle"
	KeyWinnerTicketNotSold = "winner.ticket_not_sold"

	// Rate limiting
	KeyRateLimitExceeded = "rate_limit.exceeded"
)

// Label key prefixes; the enum value is appended.
const (
	PrefixTicketState       = "ticket.state."
	PrefixRaffleStatus      = "raffle.status."
	PrefixTransactionStatus = "transaction.status."
)

// Label resolves a display label such as ticket.state.sold.
func Label(lang, prefix, value string) string {
	return T(lang, prefix+value)
}
