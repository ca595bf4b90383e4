// internal/handlers/errors.go
package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/raffle-backend/internal/i18n"
	"github.com/javajoker/raffle-backend/internal/services"
	"github.com/javajoker/raffle-backend/internal/utils"
)

// messageKeys maps concrete service errors to catalogue entries. Errors not
// listed fall back to their class.
var messageKeys = []struct {
	err error
	key string
}{
	{services.ErrDuplicateSlug, i18n.KeyRaffleSlugTaken},
	{services.ErrTicketUnavailable, i18n.KeyTicketUnavailable},
	{services.ErrStateConflict, i18n.KeyTicketStateConflict},
	{services.ErrCodeExhausted, i18n.KeyTransactionCodeExhausted},
	{services.ErrWinnerExists, i18n.KeyWinnerExists},
	{services.ErrInventoryInUse, i18n.KeyInventoryInUse},
	{services.ErrInvalidTransition, i18n.KeyTransactionInvalidTransition},
	{services.ErrTicketNotSold, i18n.KeyWinnerTicketNotSold},
	{services.ErrCrossRaffleTicket, i18n.KeyWinnerCrossRaffle},
	{services.ErrTicketLimitExceeded, i18n.KeyTicketLimitExceeded},
}

// respondError writes the HTTP response for an error returned by a service.
func respondError(c *gin.Context, err error) {
	lang := utils.GetLangFromContext(c)

	message := err.Error()
	for _, m := range messageKeys {
		if errors.Is(err, m.err) {
			message = i18n.T(lang, m.key)
			break
		}
	}

	switch {
	case errors.Is(err, services.ErrRaffleNotFound):
		utils.NotFoundResponse(c, "raffle")
	case errors.Is(err, services.ErrTicketNotFound):
		utils.NotFoundResponse(c, "ticket")
	case errors.Is(err, services.ErrTransactionNotFound):
		utils.NotFoundResponse(c, "transaction")
	case errors.Is(err, services.ErrWinnerNotFound):
		utils.NotFoundResponse(c, "winner")
	case errors.Is(err, services.ErrInvalidState):
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyTicketInvalidState), nil)
	case errors.Is(err, services.ErrValidation):
		if details := utils.GetValidationErrors(err); len(details) > 0 {
			utils.ValidationErrorResponse(c, details)
			return
		}
		utils.BadRequestResponse(c, message, nil)
	case errors.Is(err, services.ErrConflict):
		utils.ConflictResponse(c, message)
	case errors.Is(err, services.ErrMismatch):
		utils.UnprocessableResponse(c, message)
	default:
		logrus.WithError(err).WithField("path", c.Request.URL.Path).Error("Unhandled service error")
		utils.InternalErrorResponse(c, "")
	}
}

// parseID reads a uuid path parameter, answering 400 when it is malformed.
func parseID(c *gin.Context, param, resource string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		utils.BadRequestResponse(c, i18n.T(utils.GetLangFromContext(c), i18n.KeyInvalidID, resource), nil)
		return uuid.Nil, false
	}
	return id, true
}

// bindJSON decodes the request body, answering 400 on malformed input.
func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		utils.BadRequestResponse(c, i18n.T(utils.GetLangFromContext(c), i18n.KeyValidationInvalid, "input"), err.Error())
		return false
	}
	return true
}
