package services

import (
	"errors"
	"regexp"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/javajoker/raffle-backend/internal/config"
	"github.com/javajoker/raffle-backend/internal/models"
	"github.com/javajoker/raffle-backend/internal/utils"
)

type LedgerServiceTestSuite struct {
	serviceSuite
}

func TestLedgerServiceSuite(t *testing.T) {
	suite.Run(t, new(LedgerServiceTestSuite))
}

func TestComputeTotal(t *testing.T) {
	ledger := NewLedgerService(nil, nil, nil, config.RaffleConfig{CodePrefix: "TRX-"})
	txn := &models.Transaction{
		TicketCount: 3,
		Raffle:      &models.Raffle{PricePerTicket: decimal.RequireFromString("5.00")},
	}

	assert.True(t, ledger.ComputeTotal(txn).Equal(decimal.RequireFromString("15.00")))
	assert.Equal(t, "15.00", ledger.ComputeTotal(txn).StringFixed(2))

	txn.Raffle.PricePerTicket = decimal.RequireFromString("0.10")
	assert.Equal(t, "0.30", ledger.ComputeTotal(txn).StringFixed(2))
}

func TestGenerateCodeIsUnique(t *testing.T) {
	ledger := NewLedgerService(nil, nil, nil, config.RaffleConfig{CodePrefix: "TRX-", CodeLength: 8})
	format := regexp.MustCompile(`^TRX-[A-Z0-9]{8}$`)

	seen := make(map[string]struct{}, 10000)
	for i := 0; i < 10000; i++ {
		code, err := ledger.GenerateCode()
		require.NoError(t, err)
		require.Regexp(t, format, code)
		seen[code] = struct{}{}
	}
	assert.Len(t, seen, 10000)
}

func (s *LedgerServiceTestSuite) TestCompletedPurchaseSellsTickets() {
	raffle := s.createRaffle("Spring Draw", 100, "5.00")

	txn := s.buy(raffle.ID, models.TransactionStatusCompleted, 3, 7, 12)

	s.Equal(models.TransactionStatusCompleted, txn.Status)
	s.Equal(3, txn.TicketCount)
	s.Equal("15.00", txn.TotalAmount.StringFixed(2))
	s.Regexp(`^TRX-[A-Z0-9]{8}$`, txn.Code)
	s.Require().Len(txn.Tickets, 3)
	s.Equal([]int{3, 7, 12}, []int{txn.Tickets[0].Number, txn.Tickets[1].Number, txn.Tickets[2].Number})

	for _, n := range []int{3, 7, 12} {
		t := s.ticket(raffle.ID, n)
		s.Equal(models.TicketStateSold, t.State, n)
		s.Equal("Ana Torres", t.BuyerName)
		s.Equal("555-0101", t.BuyerPhone)
		s.Require().NotNil(t.PurchasedAt)
		s.True(t.PurchasedAt.Equal(s.testTime))
	}

	stats, err := s.raffles.GetStats(s.ctx, raffle.ID)
	s.Require().NoError(err)
	s.EqualValues(3, stats.Sold)
	s.Equal(3.0, stats.PercentSold)
}

func (s *LedgerServiceTestSuite) TestPendingPurchaseReservesTickets() {
	raffle := s.createRaffle("Pending", 10, "2.00")

	txn := s.buy(raffle.ID, "", 4, 4, 5)

	s.Equal(models.TransactionStatusPending, txn.Status)
	s.Equal(2, txn.TicketCount)
	s.Equal("4.00", txn.TotalAmount.StringFixed(2))
	for _, n := range []int{4, 5} {
		t := s.ticket(raffle.ID, n)
		s.Equal(models.TicketStateReserved, t.State)
		s.Equal("Ana Torres", t.BuyerName)
		s.NotNil(t.ReservedAt)
		s.Nil(t.PurchasedAt)
	}
}

func (s *LedgerServiceTestSuite) TestCompleteTwiceIsIdempotent() {
	raffle := s.createRaffle("Twice", 10, "5.00")
	txn := s.buy(raffle.ID, models.TransactionStatusPending, 1, 2, 3)

	first, err := s.ledger.CompleteTransaction(s.ctx, txn.ID)
	s.Require().NoError(err)
	second, err := s.ledger.CompleteTransaction(s.ctx, txn.ID)
	s.Require().NoError(err)

	s.Equal(models.TransactionStatusCompleted, second.Status)
	s.Equal(first.TicketCount, second.TicketCount)
	s.True(first.TotalAmount.Equal(second.TotalAmount))
	s.Equal("15.00", second.TotalAmount.StringFixed(2))
	s.EqualValues(3, s.count(&models.Ticket{}, "raffle_id = ? AND state = ?", raffle.ID, models.TicketStateSold))
	s.EqualValues(3, s.count(&models.TransactionTicket{}, "transaction_id = ?", txn.ID))
}

func (s *LedgerServiceTestSuite) TestCompleteFailsWhenTicketSoldElsewhere() {
	raffle := s.createRaffle("Oversold", 10, "1.00")
	txn := s.buy(raffle.ID, models.TransactionStatusPending, 5, 6)

	_, err := s.inventory.SetState(s.ctx, s.ticket(raffle.ID, 6).ID, &SetTicketStateRequest{
		State:      "sold",
		BuyerName:  strPtr("Someone Else"),
		BuyerPhone: strPtr("555-0999"),
	})
	s.Require().NoError(err)

	_, err = s.ledger.CompleteTransaction(s.ctx, txn.ID)
	s.ErrorIs(err, ErrTicketUnavailable)

	stored, err := s.ledger.GetTransaction(s.ctx, txn.ID)
	s.Require().NoError(err)
	s.Equal(models.TransactionStatusPending, stored.Status)
	s.Equal(models.TicketStateReserved, s.ticket(raffle.ID, 5).State)
}

func (s *LedgerServiceTestSuite) TestCreateRejectsUnavailableTickets() {
	raffle := s.createRaffle("Taken", 10, "1.00")
	s.buy(raffle.ID, models.TransactionStatusPending, 7)

	_, err := s.ledger.CreateTransaction(s.ctx, &CreateTransactionRequest{
		RaffleID:      raffle.ID,
		CustomerName:  "Late Buyer",
		TicketNumbers: []int{6, 7},
	})
	s.ErrorIs(err, ErrTicketUnavailable)
	s.EqualValues(1, s.count(&models.Transaction{}, "raffle_id = ?", raffle.ID))
	s.Equal(models.TicketStateAvailable, s.ticket(raffle.ID, 6).State)
}

func (s *LedgerServiceTestSuite) TestCreateValidation() {
	raffle := s.createRaffle("Limits", 20, "1.00")

	_, err := s.ledger.CreateTransaction(s.ctx, &CreateTransactionRequest{
		RaffleID:      raffle.ID,
		CustomerName:  "Greedy",
		TicketNumbers: []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11},
	})
	s.ErrorIs(err, ErrTicketLimitExceeded)

	_, err = s.ledger.CreateTransaction(s.ctx, &CreateTransactionRequest{
		RaffleID:      raffle.ID,
		CustomerName:  "Lost",
		TicketNumbers: []int{21},
	})
	s.ErrorIs(err, ErrTicketNotFound)

	_, err = s.ledger.CreateTransaction(s.ctx, &CreateTransactionRequest{
		RaffleID:      uuid.New(),
		CustomerName:  "Nobody",
		TicketNumbers: []int{1},
	})
	s.ErrorIs(err, ErrRaffleNotFound)

	_, err = s.ledger.CreateTransaction(s.ctx, &CreateTransactionRequest{
		RaffleID:      raffle.ID,
		TicketNumbers: []int{1},
	})
	s.ErrorIs(err, ErrValidation)

	s.EqualValues(0, s.count(&models.Transaction{}, "1 = 1"))
	s.EqualValues(20, s.count(&models.Ticket{}, "raffle_id = ? AND state = ?", raffle.ID, models.TicketStateAvailable))
}

func (s *LedgerServiceTestSuite) TestCodeCollisionRetries() {
	raffle := s.createRaffle("Collide", 10, "1.00")

	codes := []string{"TRX-AAAAAAAA", "TRX-AAAAAAAA", "TRX-BBBBBBBB"}
	s.ledger.newCode = func() (string, error) {
		code := codes[0]
		codes = codes[1:]
		return code, nil
	}

	first := s.buy(raffle.ID, models.TransactionStatusPending, 1)
	second := s.buy(raffle.ID, models.TransactionStatusPending, 2)

	s.Equal("TRX-AAAAAAAA", first.Code)
	s.Equal("TRX-BBBBBBBB", second.Code)
	s.Empty(codes)
	s.Equal(models.TicketStateReserved, s.ticket(raffle.ID, 2).State)
}

func (s *LedgerServiceTestSuite) TestCodeCollisionExhausts() {
	raffle := s.createRaffle("Exhaust", 10, "1.00")
	calls := 0
	s.ledger.newCode = func() (string, error) {
		calls++
		return "TRX-SAMECODE", nil
	}
	s.buy(raffle.ID, models.TransactionStatusPending, 1)
	calls = 0

	_, err := s.ledger.CreateTransaction(s.ctx, &CreateTransactionRequest{
		RaffleID:      raffle.ID,
		CustomerName:  "Unlucky",
		TicketNumbers: []int{2},
	})
	s.ErrorIs(err, ErrCodeExhausted)
	s.Equal(5, calls)
	s.EqualValues(1, s.count(&models.Transaction{}, "raffle_id = ?", raffle.ID))
	s.Equal(models.TicketStateAvailable, s.ticket(raffle.ID, 2).State)
}

func (s *LedgerServiceTestSuite) TestCodeGeneratorFailure() {
	raffle := s.createRaffle("Entropy", 10, "1.00")
	boom := errors.New("entropy exhausted")
	s.ledger.newCode = func() (string, error) { return "", boom }

	_, err := s.ledger.CreateTransaction(s.ctx, &CreateTransactionRequest{
		RaffleID:      raffle.ID,
		CustomerName:  "Anyone",
		TicketNumbers: []int{1},
	})
	s.ErrorIs(err, boom)
	s.Equal(models.TicketStateAvailable, s.ticket(raffle.ID, 1).State)
}

func (s *LedgerServiceTestSuite) TestCancelReleasesReservedTickets() {
	raffle := s.createRaffle("Cancel", 10, "1.00")
	txn := s.buy(raffle.ID, models.TransactionStatusPending, 2, 3)

	cancelled := models.TransactionStatusCancelled
	updated, err := s.ledger.UpdateTransaction(s.ctx, txn.ID, &UpdateTransactionRequest{Status: &cancelled})
	s.Require().NoError(err)
	s.Equal(models.TransactionStatusCancelled, updated.Status)

	for _, n := range []int{2, 3} {
		t := s.ticket(raffle.ID, n)
		s.Equal(models.TicketStateAvailable, t.State)
		s.Empty(t.BuyerName)
		s.Nil(t.ReservedAt)
	}

	_, err = s.ledger.CompleteTransaction(s.ctx, txn.ID)
	s.ErrorIs(err, ErrInvalidTransition)
}

// reassign frees ticket n behind txn's back and lets another buyer reserve it.
func (s *LedgerServiceTestSuite) reassign(raffleID uuid.UUID, n int) *models.Transaction {
	_, err := s.inventory.SetState(s.ctx, s.ticket(raffleID, n).ID, &SetTicketStateRequest{State: "available"})
	s.Require().NoError(err)

	other, err := s.ledger.CreateTransaction(s.ctx, &CreateTransactionRequest{
		RaffleID:      raffleID,
		CustomerName:  "Luis Vega",
		CustomerPhone: "555-0202",
		TicketNumbers: []int{n},
	})
	s.Require().NoError(err)
	return other
}

func (s *LedgerServiceTestSuite) TestCancelKeepsAnotherBuyersReservation() {
	raffle := s.createRaffle("Handover", 10, "1.00")
	first := s.buy(raffle.ID, models.TransactionStatusPending, 5, 6)
	s.reassign(raffle.ID, 5)

	cancelled := models.TransactionStatusCancelled
	_, err := s.ledger.UpdateTransaction(s.ctx, first.ID, &UpdateTransactionRequest{Status: &cancelled})
	s.Require().NoError(err)

	taken := s.ticket(raffle.ID, 5)
	s.Equal(models.TicketStateReserved, taken.State)
	s.Equal("Luis Vega", taken.BuyerName)
	s.Equal("555-0202", taken.BuyerPhone)
	s.Equal(models.TicketStateAvailable, s.ticket(raffle.ID, 6).State)
}

func (s *LedgerServiceTestSuite) TestCompleteRefusesAnotherBuyersReservation() {
	raffle := s.createRaffle("Overlap", 10, "1.00")
	first := s.buy(raffle.ID, models.TransactionStatusPending, 5, 6)
	s.reassign(raffle.ID, 5)

	_, err := s.ledger.CompleteTransaction(s.ctx, first.ID)
	s.ErrorIs(err, ErrTicketUnavailable)

	taken := s.ticket(raffle.ID, 5)
	s.Equal(models.TicketStateReserved, taken.State)
	s.Equal("Luis Vega", taken.BuyerName)
	s.Equal(models.TicketStateReserved, s.ticket(raffle.ID, 6).State)

	stored, err := s.ledger.GetTransaction(s.ctx, first.ID)
	s.Require().NoError(err)
	s.Equal(models.TransactionStatusPending, stored.Status)
}

func (s *LedgerServiceTestSuite) TestReplaceSelectionKeepsAnotherBuyersReservation() {
	raffle := s.createRaffle("Swap", 10, "1.00")
	first := s.buy(raffle.ID, models.TransactionStatusPending, 5, 6)
	s.reassign(raffle.ID, 5)

	_, err := s.ledger.UpdateTransaction(s.ctx, first.ID, &UpdateTransactionRequest{TicketNumbers: []int{6, 7}})
	s.Require().NoError(err)
	s.Equal("Luis Vega", s.ticket(raffle.ID, 5).BuyerName)
	s.Equal(models.TicketStateReserved, s.ticket(raffle.ID, 5).State)

	_, err = s.ledger.UpdateTransaction(s.ctx, first.ID, &UpdateTransactionRequest{TicketNumbers: []int{5, 6}})
	s.ErrorIs(err, ErrTicketUnavailable)
	s.Equal("Luis Vega", s.ticket(raffle.ID, 5).BuyerName)
}

func (s *LedgerServiceTestSuite) TestCustomerEditLeavesAnotherBuyersReservation() {
	raffle := s.createRaffle("Rename", 10, "1.00")
	first := s.buy(raffle.ID, models.TransactionStatusPending, 5, 6)
	s.reassign(raffle.ID, 5)

	_, err := s.ledger.UpdateTransaction(s.ctx, first.ID, &UpdateTransactionRequest{CustomerName: strPtr("Ana T.")})
	s.Require().NoError(err)
	s.Equal("Luis Vega", s.ticket(raffle.ID, 5).BuyerName)
	s.Equal("Ana T.", s.ticket(raffle.ID, 6).BuyerName)
}

func (s *LedgerServiceTestSuite) TestCompletedTransactionIsFrozen() {
	raffle := s.createRaffle("Frozen", 10, "1.00")
	txn := s.buy(raffle.ID, models.TransactionStatusCompleted, 1)

	rejected := models.TransactionStatusRejected
	_, err := s.ledger.UpdateTransaction(s.ctx, txn.ID, &UpdateTransactionRequest{Status: &rejected})
	s.ErrorIs(err, ErrInvalidTransition)

	_, err = s.ledger.UpdateTransaction(s.ctx, txn.ID, &UpdateTransactionRequest{CustomerName: strPtr("Renamed")})
	s.ErrorIs(err, ErrInvalidTransition)

	updated, err := s.ledger.UpdateTransaction(s.ctx, txn.ID, &UpdateTransactionRequest{Notes: strPtr("paid in cash")})
	s.Require().NoError(err)
	s.Equal("paid in cash", updated.Notes)
	s.Equal(models.TicketStateSold, s.ticket(raffle.ID, 1).State)
}

func (s *LedgerServiceTestSuite) TestReplaceSelection() {
	raffle := s.createRaffle("Swap", 10, "2.50")
	txn := s.buy(raffle.ID, models.TransactionStatusPending, 1, 2)

	updated, err := s.ledger.UpdateTransaction(s.ctx, txn.ID, &UpdateTransactionRequest{
		CustomerName:  strPtr("Ana T."),
		TicketNumbers: []int{2, 3, 4},
	})
	s.Require().NoError(err)
	s.Equal(3, updated.TicketCount)
	s.Equal("7.50", updated.TotalAmount.StringFixed(2))
	s.Equal("Ana T.", updated.CustomerName)

	s.Equal(models.TicketStateAvailable, s.ticket(raffle.ID, 1).State)
	for _, n := range []int{2, 3, 4} {
		t := s.ticket(raffle.ID, n)
		s.Equal(models.TicketStateReserved, t.State, n)
	}
	s.Equal("Ana T.", s.ticket(raffle.ID, 2).BuyerName)
	s.Equal("Ana T.", s.ticket(raffle.ID, 4).BuyerName)
}

func (s *LedgerServiceTestSuite) TestCustomerEditSyncsReservedTickets() {
	raffle := s.createRaffle("Rename", 10, "1.00")
	txn := s.buy(raffle.ID, models.TransactionStatusPending, 8)

	_, err := s.ledger.UpdateTransaction(s.ctx, txn.ID, &UpdateTransactionRequest{
		CustomerPhone: strPtr("555-0200"),
	})
	s.Require().NoError(err)
	s.Equal("555-0200", s.ticket(raffle.ID, 8).BuyerPhone)

	completed, err := s.ledger.CompleteTransaction(s.ctx, txn.ID)
	s.Require().NoError(err)
	s.Equal("555-0200", completed.CustomerPhone)
	s.Equal("555-0200", s.ticket(raffle.ID, 8).BuyerPhone)
}

func (s *LedgerServiceTestSuite) TestSaveRecomputesFromLinks() {
	raffle := s.createRaffle("Recount", 10, "5.00")
	txn := s.buy(raffle.ID, models.TransactionStatusPending, 1, 2, 3)

	s.Require().NoError(s.db.Where("transaction_id = ? AND ticket_id = ?", txn.ID, txn.Tickets[0].ID).
		Delete(&models.TransactionTicket{}).Error)

	stale, err := s.ledger.GetTransaction(s.ctx, txn.ID)
	s.Require().NoError(err)
	s.Require().NoError(s.ledger.save(s.db, stale))

	stored, err := s.ledger.GetTransaction(s.ctx, txn.ID)
	s.Require().NoError(err)
	s.Equal(2, stored.TicketCount)
	s.Equal("10.00", stored.TotalAmount.StringFixed(2))
}

func (s *LedgerServiceTestSuite) TestLookupAndList() {
	raffle := s.createRaffle("Lookup", 10, "1.00")
	other := s.createRaffle("Other", 10, "1.00")
	first := s.buy(raffle.ID, models.TransactionStatusPending, 1)
	s.buy(raffle.ID, models.TransactionStatusCompleted, 2)
	s.buy(other.ID, models.TransactionStatusCompleted, 1)

	found, err := s.ledger.GetTransactionByCode(s.ctx, first.Code)
	s.Require().NoError(err)
	s.Equal(first.ID, found.ID)
	s.Require().NotNil(found.Raffle)
	s.Equal(raffle.ID, found.Raffle.ID)

	_, err = s.ledger.GetTransactionByCode(s.ctx, "TRX-NOPE0000")
	s.ErrorIs(err, ErrTransactionNotFound)
	_, err = s.ledger.GetTransaction(s.ctx, uuid.New())
	s.ErrorIs(err, ErrTransactionNotFound)

	all, total, err := s.ledger.ListTransactions(s.ctx, TransactionFilter{})
	s.Require().NoError(err)
	s.EqualValues(3, total)
	s.Len(all, 3)

	filter := TransactionFilter{RaffleID: &raffle.ID, Status: models.TransactionStatusCompleted}
	scoped, total, err := s.ledger.ListTransactions(s.ctx, filter)
	s.Require().NoError(err)
	s.EqualValues(1, total)
	s.Equal(1, scoped[0].TicketCount)

	byCode, total, err := s.ledger.ListTransactions(s.ctx, TransactionFilter{
		PaginationParams: utils.PaginationParams{Search: first.Code[4:]},
	})
	s.Require().NoError(err)
	s.EqualValues(1, total)
	s.Equal(first.ID, byCode[0].ID)
}
