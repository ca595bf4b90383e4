// internal/handlers/raffle.go
package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/javajoker/raffle-backend/internal/i18n"
	"github.com/javajoker/raffle-backend/internal/models"
	"github.com/javajoker/raffle-backend/internal/services"
	"github.com/javajoker/raffle-backend/internal/utils"
)

type RaffleHandler struct {
	raffleService    *services.RaffleService
	inventoryService *services.InventoryService
}

func NewRaffleHandler(raffleService *services.RaffleService, inventoryService *services.InventoryService) *RaffleHandler {
	return &RaffleHandler{
		raffleService:    raffleService,
		inventoryService: inventoryService,
	}
}

// raffleView is a raffle with its live statistics and localized status.
type raffleView struct {
	*models.Raffle
	StatusLabel string              `json:"status_label"`
	Stats       *models.RaffleStats `json:"stats,omitempty"`
}

// GET /raffles
func (h *RaffleHandler) ListRaffles(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	params := utils.GetPaginationParams(c, h.raffleService.PageSize())

	result, err := h.raffleService.ListRaffles(c.Request.Context(), services.RaffleFilter{
		PaginationParams: params,
		Status:           c.Query("status"),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	views := make([]raffleView, len(result.Raffles))
	for i := range result.Raffles {
		summary := &result.Raffles[i]
		views[i] = raffleView{
			Raffle:      &summary.Raffle,
			StatusLabel: i18n.Label(lang, i18n.PrefixRaffleStatus, string(summary.Status)),
			Stats:       &summary.Stats,
		}
	}

	page := utils.CreatePaginationResult(views, result.Total, result.Params)
	utils.PaginatedResponseWithMeta(c, page, gin.H{
		"counts": gin.H{
			"total":     result.TotalRaffles,
			"active":    result.ActiveRaffles,
			"completed": result.CompletedRaffles,
		},
	})
}

// GET /raffles/:id
func (h *RaffleHandler) GetRaffle(c *gin.Context) {
	id, ok := parseID(c, "id", "raffle")
	if !ok {
		return
	}

	raffle, err := h.raffleService.GetRaffle(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	h.respondWithStats(c, raffle)
}

// GET /raffles/slug/:slug
func (h *RaffleHandler) GetRaffleBySlug(c *gin.Context) {
	raffle, err := h.raffleService.GetRaffleBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		respondError(c, err)
		return
	}
	h.respondWithStats(c, raffle)
}

func (h *RaffleHandler) respondWithStats(c *gin.Context, raffle *models.Raffle) {
	stats, err := h.raffleService.GetStats(c.Request.Context(), raffle.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessResponse(c, gin.H{
		"raffle": raffleView{
			Raffle:      raffle,
			StatusLabel: i18n.Label(utils.GetLangFromContext(c), i18n.PrefixRaffleStatus, string(raffle.Status)),
			Stats:       stats,
		},
	})
}

// GET /raffles/:id/stats
func (h *RaffleHandler) GetStats(c *gin.Context) {
	id, ok := parseID(c, "id", "raffle")
	if !ok {
		return
	}

	stats, err := h.raffleService.GetStats(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessResponse(c, gin.H{"stats": stats})
}

// POST /raffles
func (h *RaffleHandler) CreateRaffle(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	var req services.CreateRaffleRequest
	if !bindJSON(c, &req) {
		return
	}

	raffle, err := h.raffleService.CreateRaffle(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyRaffleCreated),
		"raffle":  raffle,
	})
}

// PUT /raffles/:id
func (h *RaffleHandler) UpdateRaffle(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	id, ok := parseID(c, "id", "raffle")
	if !ok {
		return
	}

	var req services.UpdateRaffleRequest
	if !bindJSON(c, &req) {
		return
	}

	raffle, err := h.raffleService.UpdateRaffle(c.Request.Context(), id, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyRaffleUpdated),
		"raffle":  raffle,
	})
}

// DELETE /raffles/:id
func (h *RaffleHandler) DeleteRaffle(c *gin.Context) {
	id, ok := parseID(c, "id", "raffle")
	if !ok {
		return
	}

	if err := h.raffleService.DeleteRaffle(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(utils.GetLangFromContext(c), i18n.KeyRaffleDeleted),
	})
}

// POST /raffles/:id/inventory
func (h *RaffleHandler) GenerateInventory(c *gin.Context) {
	id, ok := parseID(c, "id", "raffle")
	if !ok {
		return
	}

	created, err := h.inventoryService.GenerateInventory(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(utils.GetLangFromContext(c), i18n.KeyInventoryGenerated),
		"created": created,
	})
}

// POST /raffles/:id/inventory/reset
func (h *RaffleHandler) ResetInventory(c *gin.Context) {
	id, ok := parseID(c, "id", "raffle")
	if !ok {
		return
	}

	created, err := h.inventoryService.ResetInventory(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(utils.GetLangFromContext(c), i18n.KeyInventoryReset),
		"created": created,
	})
}

// GET /raffles/:id/tickets
func (h *RaffleHandler) ListTickets(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	id, ok := parseID(c, "id", "raffle")
	if !ok {
		return
	}

	filter := services.TicketFilter{
		PaginationParams: utils.GetPaginationParams(c, 100),
		RaffleID:         id,
	}
	if state := c.Query("state"); state != "" {
		if !models.TicketState(state).Valid() {
			utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyTicketInvalidState), nil)
			return
		}
		filter.State = models.TicketState(state)
	}
	if numberStr := c.Query("number"); numberStr != "" {
		number, err := strconv.Atoi(numberStr)
		if err != nil {
			utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "number"), nil)
			return
		}
		filter.Number = &number
	}

	tickets, total, err := h.inventoryService.ListTickets(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	views := make([]ticketView, len(tickets))
	for i := range tickets {
		views[i] = newTicketView(lang, &tickets[i])
	}
	utils.PaginatedResponse(c, utils.CreatePaginationResult(views, total, filter.PaginationParams))
}
