// internal/handlers/winner.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/javajoker/raffle-backend/internal/i18n"
	"github.com/javajoker/raffle-backend/internal/services"
	"github.com/javajoker/raffle-backend/internal/utils"
)

type WinnerHandler struct {
	winnerService *services.WinnerService
}

func NewWinnerHandler(winnerService *services.WinnerService) *WinnerHandler {
	return &WinnerHandler{winnerService: winnerService}
}

// GET /raffles/:id/winner
func (h *WinnerHandler) GetWinner(c *gin.Context) {
	raffleID, ok := parseID(c, "id", "raffle")
	if !ok {
		return
	}

	winner, err := h.winnerService.GetWinner(c.Request.Context(), raffleID)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessResponse(c, gin.H{"winner": winner})
}

// POST /raffles/:id/winner
func (h *WinnerHandler) AnnounceWinner(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	raffleID, ok := parseID(c, "id", "raffle")
	if !ok {
		return
	}

	var req services.AnnounceWinnerRequest
	if !bindJSON(c, &req) {
		return
	}

	winner, err := h.winnerService.Announce(c.Request.Context(), raffleID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyWinnerAnnounced),
		"winner":  winner,
	})
}

// PUT /raffles/:id/winner/delivered
func (h *WinnerHandler) MarkDelivered(c *gin.Context) {
	raffleID, ok := parseID(c, "id", "raffle")
	if !ok {
		return
	}

	winner, err := h.winnerService.MarkDelivered(c.Request.Context(), raffleID)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(utils.GetLangFromContext(c), i18n.KeyWinnerDelivered),
		"winner":  winner,
	})
}
