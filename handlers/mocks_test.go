package handlers

import (
	"context"

	"github.com/idkrafsan/BetTracker/models"
	"github.com/stretchr/testify/mock"
)

type mockBetService struct {
	mock.Mock
}

func (m *mockBetService) CreateBet(ctx context.Context, input models.BetInput) (*models.Bet, error) {
	args := m.Called(ctx, input)
	bet, _ := args.Get(0).(*models.Bet)
	return bet, args.Error(1)
}

func (m *mockBetService) EditBet(ctx context.Context, id string, input models.BetInput) (*models.Bet, error) {
	args := m.Called(ctx, id, input)
	bet, _ := args.Get(0).(*models.Bet)
	return bet, args.Error(1)
}

func (m *mockBetService) DeleteBet(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockBetService) SoftDeleteBet(ctx context.Context, id string) (*models.Bet, error) {
	args := m.Called(ctx, id)
	bet, _ := args.Get(0).(*models.Bet)
	return bet, args.Error(1)
}

func (m *mockBetService) GetBet(ctx context.Context, id string) (*models.Bet, error) {
	args := m.Called(ctx, id)
	bet, _ := args.Get(0).(*models.Bet)
	return bet, args.Error(1)
}

func (m *mockBetService) ListBets(ctx context.Context) ([]*models.Bet, error) {
	args := m.Called(ctx)
	bets, _ := args.Get(0).([]*models.Bet)
	return bets, args.Error(1)
}

type mockAccountService struct {
	mock.Mock
}

func (m *mockAccountService) GetAccount(ctx context.Context) (*models.Account, error) {
	args := m.Called(ctx)
	account, _ := args.Get(0).(*models.Account)
	return account, args.Error(1)
}

func (m *mockAccountService) Deposit(ctx context.Context, amount models.AmountInput) (*models.Account, error) {
	args := m.Called(ctx, amount)
	account, _ := args.Get(0).(*models.Account)
	return account, args.Error(1)
}

func (m *mockAccountService) Withdraw(ctx context.Context, amount models.AmountInput) (*models.Account, error) {
	args := m.Called(ctx, amount)
	account, _ := args.Get(0).(*models.Account)
	return account, args.Error(1)
}

func (m *mockAccountService) SetUsername(ctx context.Context, username string) (*models.Account, error) {
	args := m.Called(ctx, username)
	account, _ := args.Get(0).(*models.Account)
	return account, args.Error(1)
}

func (m *mockAccountService) BalanceHistory(ctx context.Context, limit int) ([]*models.BalanceHistory, error) {
	args := m.Called(ctx, limit)
	history, _ := args.Get(0).([]*models.BalanceHistory)
	return history, args.Error(1)
}

type mockDashboardProvider struct {
	mock.Mock
}

func (m *mockDashboardProvider) Current(ctx context.Context, period models.Period) (*models.Dashboard, error) {
	args := m.Called(ctx, period)
	dashboard, _ := args.Get(0).(*models.Dashboard)
	return dashboard, args.Error(1)
}

type stubHealth struct {
	err error
}

func (s stubHealth) Healthy(context.Context) error {
	return s.err
}
