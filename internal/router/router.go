// internal/router/router.go
package router

import (
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"github.com/javajoker/raffle-backend/internal/common/clock"
	"github.com/javajoker/raffle-backend/internal/config"
	"github.com/javajoker/raffle-backend/internal/handlers"
	"github.com/javajoker/raffle-backend/internal/middleware"
	"github.com/javajoker/raffle-backend/internal/services"
	"github.com/javajoker/raffle-backend/internal/utils"
)

const Version = "1.0.0"

// Initialize builds the engine. The returned stop function ends the engine's
// background work and must be called once the engine is no longer served.
func Initialize(db *gorm.DB, cfg *config.Config) (*gin.Engine, func()) {
	return InitializeWithClock(db, cfg, &clock.DefaultClock{})
}

// InitializeWithClock builds the engine with an injected clock.
func InitializeWithClock(db *gorm.DB, cfg *config.Config, clk clock.Clock) (*gin.Engine, func()) {
	// Initialize services
	inventoryService := services.NewInventoryService(db, clk, cfg.Raffle.InventoryBatchSize)
	raffleService := services.NewRaffleService(db, clk, inventoryService, cfg.Raffle.PageSize)
	ledgerService := services.NewLedgerService(db, clk, inventoryService, cfg.Raffle)
	winnerService := services.NewWinnerService(db, clk)

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(db, Version)
	raffleHandler := handlers.NewRaffleHandler(raffleService, inventoryService)
	ticketHandler := handlers.NewTicketHandler(inventoryService)
	transactionHandler := handlers.NewTransactionHandler(ledgerService)
	winnerHandler := handlers.NewWinnerHandler(winnerService)

	utils.SetJWTSecret(cfg.JWT.SecretKey)
	utils.SetJWTIssuer(cfg.JWT.Issuer)

	limiter := middleware.NewRateLimiter(rate.Limit(cfg.RateLimit.RequestsPerSecond), cfg.RateLimit.Burst)

	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.I18nMiddleware())
	r.Use(limiter.Middleware())

	r.GET("/health", healthHandler.Health)

	gate := []gin.HandlerFunc{
		middleware.AuthRequired(),
		middleware.OperatorRequired(cfg.JWT.OperatorRole),
	}

	v1 := r.Group("/v1")
	{
		raffles := v1.Group("/raffles")
		{
			raffles.GET("", raffleHandler.ListRaffles)
			raffles.GET("/slug/:slug", raffleHandler.GetRaffleBySlug)
			raffles.GET("/:id", raffleHandler.GetRaffle)
			raffles.GET("/:id/stats", raffleHandler.GetStats)
			raffles.GET("/:id/winner", winnerHandler.GetWinner)

			// Operator routes
			protected := raffles.Group("")
			protected.Use(gate...)
			{
				protected.POST("", raffleHandler.CreateRaffle)
				protected.PUT("/:id", raffleHandler.UpdateRaffle)
				protected.DELETE("/:id", raffleHandler.DeleteRaffle)
				protected.POST("/:id/inventory", raffleHandler.GenerateInventory)
				protected.POST("/:id/inventory/reset", raffleHandler.ResetInventory)
				protected.GET("/:id/tickets", raffleHandler.ListTickets)
				protected.POST("/:id/winner", winnerHandler.AnnounceWinner)
				protected.PUT("/:id/winner/delivered", winnerHandler.MarkDelivered)
			}
		}

		tickets := v1.Group("/tickets")
		tickets.Use(gate...)
		{
			tickets.GET("/:id", ticketHandler.GetTicket)
			tickets.PUT("/:id/state", ticketHandler.UpdateState)
		}

		transactions := v1.Group("/transactions")
		transactions.Use(gate...)
		{
			transactions.GET("", transactionHandler.ListTransactions)
			transactions.POST("", transactionHandler.CreateTransaction)
			transactions.GET("/code/:code", transactionHandler.GetTransactionByCode)
			transactions.GET("/:id", transactionHandler.GetTransaction)
			transactions.PUT("/:id", transactionHandler.UpdateTransaction)
			transactions.POST("/:id/complete", transactionHandler.CompleteTransaction)
		}
	}

	return r, limiter.Stop
}
