// internal/handlers/ticket.go
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/javajoker/raffle-backend/internal/i18n"
	"github.com/javajoker/raffle-backend/internal/models"
	"github.com/javajoker/raffle-backend/internal/services"
	"github.com/javajoker/raffle-backend/internal/utils"
)

// TicketHandler serves single-ticket lookups and edits. Its payloads are flat
// objects rather than the API envelope.
type TicketHandler struct {
	inventoryService *services.InventoryService
}

func NewTicketHandler(inventoryService *services.InventoryService) *TicketHandler {
	return &TicketHandler{inventoryService: inventoryService}
}

type ticketView struct {
	ID          uuid.UUID          `json:"id"`
	Number      int                `json:"number"`
	State       models.TicketState `json:"state"`
	StateLabel  string             `json:"state_label"`
	BuyerName   string             `json:"buyer_name"`
	BuyerPhone  string             `json:"buyer_phone"`
	ReservedAt  string             `json:"reserved_at"`
	PurchasedAt string             `json:"purchased_at"`
}

func newTicketView(lang string, t *models.Ticket) ticketView {
	return ticketView{
		ID:          t.ID,
		Number:      t.Number,
		State:       t.State,
		StateLabel:  i18n.Label(lang, i18n.PrefixTicketState, string(t.State)),
		BuyerName:   t.BuyerName,
		BuyerPhone:  t.BuyerPhone,
		ReservedAt:  isoTime(t.ReservedAt),
		PurchasedAt: isoTime(t.PurchasedAt),
	}
}

// isoTime renders an optional timestamp as RFC 3339, or "" when unset.
func isoTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// GET /tickets/:id
func (h *TicketHandler) GetTicket(c *gin.Context) {
	id, ok := parseID(c, "id", "ticket")
	if !ok {
		return
	}

	ticket, err := h.inventoryService.GetTicket(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"number":       ticket.Number,
		"state":        ticket.State,
		"buyer_phone":  ticket.BuyerPhone,
		"buyer_name":   ticket.BuyerName,
		"reserved_at":  isoTime(ticket.ReservedAt),
		"purchased_at": isoTime(ticket.PurchasedAt),
	})
}

// PUT /tickets/:id/state
func (h *TicketHandler) UpdateState(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	id, ok := parseID(c, "id", "ticket")
	if !ok {
		return
	}

	var req services.SetTicketStateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   i18n.T(lang, i18n.KeyValidationInvalid, "input"),
		})
		return
	}

	ticket, err := h.inventoryService.SetState(c.Request.Context(), id, &req)
	if err != nil {
		status := http.StatusInternalServerError
		message := i18n.T(lang, i18n.KeyInternalError)
		switch {
		case errors.Is(err, services.ErrInvalidState):
			status, message = http.StatusBadRequest, i18n.T(lang, i18n.KeyTicketInvalidState)
		case errors.Is(err, services.ErrTicketNotFound):
			status, message = http.StatusNotFound, i18n.T(lang, i18n.KeyTicketNotFound)
		case errors.Is(err, services.ErrStateConflict):
			status, message = http.StatusConflict, i18n.T(lang, i18n.KeyTicketStateConflict)
		case errors.Is(err, services.ErrValidation):
			status, message = http.StatusBadRequest, i18n.T(lang, i18n.KeyValidationInvalid, "input")
		default:
			respondError(c, err)
			return
		}
		c.JSON(status, gin.H{
			"success": false,
			"error":   message,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"number":      ticket.Number,
		"state":       ticket.State,
		"state_label": i18n.Label(lang, i18n.PrefixTicketState, string(ticket.State)),
	})
}
