package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/idkrafsan/BetTracker/models"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// accountService implements AccountService for the singleton account
type accountService struct {
	uowFactory UnitOfWorkFactory
	accountID  string
	now        func() time.Time
}

// NewAccountService creates a new account service
func NewAccountService(uowFactory UnitOfWorkFactory, accountID string) AccountService {
	return &accountService{
		uowFactory: uowFactory,
		accountID:  accountID,
		now:        time.Now,
	}
}

// GetAccount returns the account, or a zeroed account if it has never been written
func (s *accountService) GetAccount(ctx context.Context) (*models.Account, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, storeUnavailable("begin account read", err)
	}
	defer uow.Rollback()

	account, err := uow.AccountRepository().Get(ctx, s.accountID)
	if err != nil {
		return nil, storeUnavailable("read account", err)
	}
	if account == nil {
		return models.NewEmptyAccount(s.accountID), nil
	}
	return account, nil
}

// Deposit adds to both the balance and the deposit total
func (s *accountService) Deposit(ctx context.Context, input models.AmountInput) (*models.Account, error) {
	return s.move(ctx, models.TransactionTypeDeposit, input)
}

// Withdraw removes from the balance, failing if the balance does not cover the amount
func (s *accountService) Withdraw(ctx context.Context, input models.AmountInput) (*models.Account, error) {
	return s.move(ctx, models.TransactionTypeWithdrawal, input)
}

func (s *accountService) move(ctx context.Context, txType models.TransactionType, input models.AmountInput) (*models.Account, error) {
	if err := Validate(input); err != nil {
		return nil, err
	}
	amount := input.Amount

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, storeUnavailable("begin "+string(txType), err)
	}
	defer uow.Rollback()

	account, err := loadAccountForUpdate(ctx, uow, s.accountID)
	if err != nil {
		return nil, storeUnavailable("read account", err)
	}

	var (
		newBalance decimal.Decimal
		change     decimal.Decimal
		patch      models.AccountPatch
	)

	switch txType {
	case models.TransactionTypeDeposit:
		newBalance = account.Balance.Add(amount)
		change = amount
		totalDeposits := account.TotalDeposits.Add(amount)
		patch.TotalDeposits = &totalDeposits
	case models.TransactionTypeWithdrawal:
		if amount.GreaterThan(account.Balance) {
			return nil, fmt.Errorf("withdraw %s with balance %s: %w", amount.String(), account.Balance.String(), ErrInsufficientBalance)
		}
		newBalance = account.Balance.Sub(amount)
		change = amount.Neg()
		totalWithdrawals := account.TotalWithdrawals.Add(amount)
		patch.TotalWithdrawals = &totalWithdrawals
	default:
		return nil, fmt.Errorf("unsupported manual transaction type %q", txType)
	}

	patch.Balance = &newBalance
	patch.LastTransaction = &models.LastTransaction{
		Type:   txType,
		Amount: amount,
		Date:   s.now(),
	}

	updated, err := uow.AccountRepository().Merge(ctx, s.accountID, patch)
	if err != nil {
		return nil, storeUnavailable("merge account", err)
	}

	if err := RecordBalanceChange(ctx, uow, &models.BalanceHistory{
		AccountID:       s.accountID,
		BalanceBefore:   account.Balance,
		BalanceAfter:    newBalance,
		ChangeAmount:    change,
		TransactionType: txType,
	}); err != nil {
		return nil, storeUnavailable("record "+string(txType), err)
	}

	if err := uow.Commit(); err != nil {
		return nil, storeUnavailable("commit "+string(txType), err)
	}

	log.WithFields(log.Fields{
		"type":       txType,
		"amount":     amount.String(),
		"newBalance": newBalance.String(),
	}).Info("Manual balance transaction applied")

	return updated, nil
}

// SetUsername stores the display name on the account
func (s *accountService) SetUsername(ctx context.Context, username string) (*models.Account, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, newValidationError("username", "required")
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, storeUnavailable("begin username update", err)
	}
	defer uow.Rollback()

	updated, err := uow.AccountRepository().Merge(ctx, s.accountID, models.AccountPatch{Username: &username})
	if err != nil {
		return nil, storeUnavailable("merge account", err)
	}

	if err := uow.Commit(); err != nil {
		return nil, storeUnavailable("commit username update", err)
	}
	return updated, nil
}

// BalanceHistory returns the latest balance movements, newest first
func (s *accountService) BalanceHistory(ctx context.Context, limit int) ([]*models.BalanceHistory, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, storeUnavailable("begin history read", err)
	}
	defer uow.Rollback()

	history, err := uow.BalanceHistoryRepository().GetByAccount(ctx, s.accountID, limit)
	if err != nil {
		return nil, storeUnavailable("read balance history", err)
	}
	return history, nil
}
