// internal/handlers/transaction.go
package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/javajoker/raffle-backend/internal/i18n"
	"github.com/javajoker/raffle-backend/internal/models"
	"github.com/javajoker/raffle-backend/internal/services"
	"github.com/javajoker/raffle-backend/internal/utils"
)

type TransactionHandler struct {
	ledgerService *services.LedgerService
}

func NewTransactionHandler(ledgerService *services.LedgerService) *TransactionHandler {
	return &TransactionHandler{ledgerService: ledgerService}
}

type transactionView struct {
	*models.Transaction
	StatusLabel string `json:"status_label"`
}

func newTransactionView(lang string, txn *models.Transaction) transactionView {
	return transactionView{
		Transaction: txn,
		StatusLabel: i18n.Label(lang, i18n.PrefixTransactionStatus, string(txn.Status)),
	}
}

// GET /transactions
func (h *TransactionHandler) ListTransactions(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	params := utils.GetPaginationParams(c, 20)

	filter := services.TransactionFilter{PaginationParams: params}
	if raffleIDStr := c.Query("raffle_id"); raffleIDStr != "" {
		raffleID, err := uuid.Parse(raffleIDStr)
		if err != nil {
			utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyInvalidID, "raffle"), nil)
			return
		}
		filter.RaffleID = &raffleID
	}
	if status := c.Query("status"); status != "" && status != "all" {
		if !models.TransactionStatus(status).Valid() {
			utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "status"), nil)
			return
		}
		filter.Status = models.TransactionStatus(status)
	}

	transactions, total, err := h.ledgerService.ListTransactions(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	views := make([]transactionView, len(transactions))
	for i := range transactions {
		views[i] = newTransactionView(lang, &transactions[i])
	}
	utils.PaginatedResponse(c, utils.CreatePaginationResult(views, total, params))
}

// POST /transactions
func (h *TransactionHandler) CreateTransaction(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	var req services.CreateTransactionRequest
	if !bindJSON(c, &req) {
		return
	}

	txn, err := h.ledgerService.CreateTransaction(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{
		"message":     i18n.T(lang, i18n.KeyTransactionCreated),
		"transaction": newTransactionView(lang, txn),
	})
}

// GET /transactions/:id
func (h *TransactionHandler) GetTransaction(c *gin.Context) {
	id, ok := parseID(c, "id", "transaction")
	if !ok {
		return
	}

	txn, err := h.ledgerService.GetTransaction(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessResponse(c, gin.H{
		"transaction": newTransactionView(utils.GetLangFromContext(c), txn),
	})
}

// GET /transactions/code/:code
func (h *TransactionHandler) GetTransactionByCode(c *gin.Context) {
	txn, err := h.ledgerService.GetTransactionByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessResponse(c, gin.H{
		"transaction": newTransactionView(utils.GetLangFromContext(c), txn),
	})
}

// PUT /transactions/:id
func (h *TransactionHandler) UpdateTransaction(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	id, ok := parseID(c, "id", "transaction")
	if !ok {
		return
	}

	var req services.UpdateTransactionRequest
	if !bindJSON(c, &req) {
		return
	}

	txn, err := h.ledgerService.UpdateTransaction(c.Request.Context(), id, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message":     i18n.T(lang, i18n.KeyTransactionUpdated),
		"transaction": newTransactionView(lang, txn),
	})
}

// POST /transactions/:id/complete
func (h *TransactionHandler) CompleteTransaction(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	id, ok := parseID(c, "id", "transaction")
	if !ok {
		return
	}

	txn, err := h.ledgerService.CompleteTransaction(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message":     i18n.T(lang, i18n.KeyTransactionCompleted),
		"transaction": newTransactionView(lang, txn),
	})
}
