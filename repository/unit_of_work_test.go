package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/idkrafsan/BetTracker/events"
	"github.com/idkrafsan/BetTracker/models"
	"github.com/idkrafsan/BetTracker/repository/testutil"
	"github.com/idkrafsan/BetTracker/service"
	"github.com/shopspring/decimal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// eventCollector records events delivered by the bus
type eventCollector struct {
	mu     sync.Mutex
	events []events.Event
}

func (c *eventCollector) handle(_ context.Context, e events.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func (c *eventCollector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func TestUnitOfWork_CommitFlushesEvents(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	bus := events.NewBus()
	collector := &eventCollector{}
	bus.SubscribeAll(collector.handle)

	factory := NewUnitOfWorkFactory(testDB.DB, bus)
	ctx := context.Background()

	uow := factory.Create()
	require.NoError(t, uow.Begin(ctx))
	defer uow.Rollback()

	bet := testutil.CreateTestBet("Ajax vs PSV", models.BetStatusPending)
	require.NoError(t, uow.BetRepository().Create(ctx, bet))
	uow.EventBus().Publish(events.BetCreatedEvent{BetID: bet.ID})

	assert.Equal(t, 0, collector.count(), "events wait for commit")
	require.NoError(t, uow.Commit())

	assert.Eventually(t, func() bool { return collector.count() == 1 }, time.Second, 10*time.Millisecond)

	stored, err := NewBetRepository(testDB.DB).GetByID(ctx, bet.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored)
}

func TestUnitOfWork_RollbackDiscardsWritesAndEvents(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	bus := events.NewBus()
	collector := &eventCollector{}
	bus.SubscribeAll(collector.handle)

	factory := NewUnitOfWorkFactory(testDB.DB, bus)
	ctx := context.Background()

	uow := factory.Create()
	require.NoError(t, uow.Begin(ctx))

	balance := decimal.RequireFromString("75")
	_, err := uow.AccountRepository().Merge(ctx, models.DefaultAccountID, models.AccountPatch{Balance: &balance})
	require.NoError(t, err)
	uow.EventBus().Publish(events.BalanceChangeEvent{AccountID: models.DefaultAccountID})

	require.NoError(t, uow.Rollback())
	require.NoError(t, uow.Rollback(), "second rollback is a no-op")

	account, err := NewAccountRepository(testDB.DB).Get(ctx, models.DefaultAccountID)
	require.NoError(t, err)
	assert.Nil(t, account)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, collector.count())
}

func TestUnitOfWork_RepositoriesRequireBegin(t *testing.T) {
	factory := NewUnitOfWorkFactory(nil, events.NewBus())
	uow := factory.Create()

	assert.Panics(t, func() { uow.BetRepository() })
	assert.Panics(t, func() { uow.AccountRepository() })
	assert.Panics(t, func() { uow.BalanceHistoryRepository() })
	assert.Error(t, uow.Commit())
	assert.NoError(t, uow.Rollback())
}

// TestLedger_EndToEnd drives the services against a real store
func TestLedger_EndToEnd(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	bus := events.NewBus()
	factory := NewUnitOfWorkFactory(testDB.DB, bus)
	bets := service.NewBetService(factory, bus, models.DefaultAccountID)
	accounts := service.NewAccountService(factory, models.DefaultAccountID)
	ctx := context.Background()

	balance := func() decimal.Decimal {
		account, err := accounts.GetAccount(ctx)
		require.NoError(t, err)
		return account.Balance
	}

	_, err := accounts.Deposit(ctx, models.AmountInput{Amount: decimal.RequireFromString("100")})
	require.NoError(t, err)

	bet, err := bets.CreateBet(ctx, models.BetInput{
		Match:  "Celtic vs Rangers",
		Stake:  decimal.RequireFromString("10"),
		Odds:   decimal.RequireFromString("3"),
		Status: models.BetStatusPending,
	})
	require.NoError(t, err)
	assert.Equal(t, "100", balance().String())

	_, err = bets.EditBet(ctx, bet.ID, models.BetInput{
		Match:  bet.Match,
		Stake:  bet.Stake,
		Odds:   bet.Odds,
		Status: models.BetStatusWon,
	})
	require.NoError(t, err)
	assert.Equal(t, "120", balance().String())

	_, err = bets.EditBet(ctx, bet.ID, models.BetInput{
		Match:  bet.Match,
		Stake:  bet.Stake,
		Odds:   bet.Odds,
		Status: models.BetStatusLost,
	})
	require.NoError(t, err)
	assert.Equal(t, "90", balance().String())

	_, err = bets.SoftDeleteBet(ctx, bet.ID)
	require.NoError(t, err)
	assert.Equal(t, "90", balance().String(), "deleting does not reverse the settlement")

	_, err = bets.EditBet(ctx, bet.ID, models.BetInput{
		Match:  bet.Match,
		Stake:  bet.Stake,
		Odds:   bet.Odds,
		Status: models.BetStatusWon,
	})
	assert.True(t, errors.Is(err, service.ErrNotFound))

	_, err = accounts.Withdraw(ctx, models.AmountInput{Amount: decimal.RequireFromString("91")})
	assert.ErrorIs(t, err, service.ErrInsufficientBalance)

	history, err := accounts.BalanceHistory(ctx, 0)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, models.TransactionTypeBetSettlement, history[0].TransactionType)
	assert.Equal(t, "-30", history[0].ChangeAmount.String())
	assert.Equal(t, models.TransactionTypeDeposit, history[2].TransactionType)
}

func TestLedger_ConcurrentFirstDepositsSerialize(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	factory := NewUnitOfWorkFactory(testDB.DB, events.NewBus())
	accounts := service.NewAccountService(factory, models.DefaultAccountID)
	ctx := context.Background()

	amounts := []string{"10", "20", "30", "40"}
	start := make(chan struct{})
	errs := make(chan error, len(amounts))
	var wg sync.WaitGroup
	for _, amount := range amounts {
		wg.Add(1)
		go func(amount string) {
			defer wg.Done()
			<-start
			_, err := accounts.Deposit(ctx, models.AmountInput{Amount: decimal.RequireFromString(amount)})
			errs <- err
		}(amount)
	}
	close(start)
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	account, err := accounts.GetAccount(ctx)
	require.NoError(t, err)
	assert.Equal(t, "100", account.Balance.String())
	assert.Equal(t, "100", account.TotalDeposits.String())

	history, err := accounts.BalanceHistory(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, history, len(amounts))
}

func TestAccountRepository_GetForUpdateCreatesMissingRow(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	factory := NewUnitOfWorkFactory(testDB.DB, events.NewBus())
	ctx := context.Background()

	uow := factory.Create()
	require.NoError(t, uow.Begin(ctx))
	account, err := uow.AccountRepository().GetForUpdate(ctx, models.DefaultAccountID)
	require.NoError(t, err)
	require.NotNil(t, account)
	assert.True(t, account.Balance.IsZero())
	assert.Nil(t, account.LastTransaction)
	require.NoError(t, uow.Commit())

	stored, err := NewAccountRepository(testDB.DB).Get(ctx, models.DefaultAccountID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, stored.TotalDeposits.IsZero())
}
