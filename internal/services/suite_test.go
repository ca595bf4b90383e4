package services

import (
	"context"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
	"gorm.io/gorm"

	"github.com/javajoker/raffle-backend/internal/common/clock/mocks"
	"github.com/javajoker/raffle-backend/internal/config"
	"github.com/javajoker/raffle-backend/internal/database"
	"github.com/javajoker/raffle-backend/internal/models"
)

// serviceSuite wires every service against a throwaway SQLite database and a
// frozen clock.
type serviceSuite struct {
	suite.Suite
	mockCtrl  *gomock.Controller
	mockClock *mocks.MockClock
	db        *gorm.DB
	ctx       context.Context
	testTime  time.Time

	inventory *InventoryService
	raffles   *RaffleService
	ledger    *LedgerService
	winners   *WinnerService
}

func (s *serviceSuite) SetupTest() {
	s.mockCtrl = gomock.NewController(s.T())
	s.mockClock = mocks.NewMockClock(s.mockCtrl)
	s.ctx = context.Background()
	s.testTime = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	s.mockClock.EXPECT().Now().Return(s.testTime).AnyTimes()

	dsn := filepath.Join(s.T().TempDir(), "test.db") + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := database.Open(sqlite.Open(dsn), "silent")
	s.Require().NoError(err)
	s.Require().NoError(database.RunMigrations(db))
	s.db = db

	s.inventory = NewInventoryService(db, s.mockClock, 10)
	s.raffles = NewRaffleService(db, s.mockClock, s.inventory, 12)
	s.ledger = NewLedgerService(db, s.mockClock, s.inventory, config.RaffleConfig{
		CodePrefix:      "TRX-",
		CodeLength:      8,
		CodeMaxAttempts: 5,
	})
	s.winners = NewWinnerService(db, s.mockClock)
}

func (s *serviceSuite) TearDownTest() {
	database.Close(s.db)
}

func (s *serviceSuite) createRaffle(name string, total int, price string) *models.Raffle {
	raffle, err := s.raffles.CreateRaffle(s.ctx, &CreateRaffleRequest{
		Name:           name,
		PricePerTicket: decimal.RequireFromString(price),
		TotalTickets:   total,
		DrawAt:         s.testTime.Add(30 * 24 * time.Hour),
	})
	s.Require().NoError(err)
	return raffle
}

func (s *serviceSuite) buy(raffleID uuid.UUID, status models.TransactionStatus, numbers ...int) *models.Transaction {
	txn, err := s.ledger.CreateTransaction(s.ctx, &CreateTransactionRequest{
		RaffleID:      raffleID,
		CustomerName:  "Ana Torres",
		CustomerPhone: "555-0101",
		TicketNumbers: numbers,
		Status:        status,
	})
	s.Require().NoError(err)
	return txn
}

func (s *serviceSuite) ticket(raffleID uuid.UUID, number int) *models.Ticket {
	t, err := s.inventory.GetTicketByNumber(s.ctx, raffleID, number)
	s.Require().NoError(err)
	return t
}

func (s *serviceSuite) count(model interface{}, query string, args ...interface{}) int64 {
	var n int64
	s.Require().NoError(s.db.Model(model).Where(query, args...).Count(&n).Error)
	return n
}

func strPtr(v string) *string { return &v }
