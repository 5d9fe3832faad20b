package service

import (
	"context"
	"fmt"

	"github.com/idkrafsan/BetTracker/events"
	"github.com/idkrafsan/BetTracker/models"
	log "github.com/sirupsen/logrus"
)

// RecordBalanceChange records a balance history entry and queues the matching
// event. Every balance mutation goes through here so the audit trail and the
// event stream never diverge.
func RecordBalanceChange(ctx context.Context, uow UnitOfWork, history *models.BalanceHistory) error {
	if err := uow.BalanceHistoryRepository().Record(ctx, history); err != nil {
		return fmt.Errorf("failed to record balance history: %w", err)
	}

	uow.EventBus().Publish(events.BalanceChangeEvent{
		AccountID:       history.AccountID,
		OldBalance:      history.BalanceBefore,
		NewBalance:      history.BalanceAfter,
		ChangeAmount:    history.ChangeAmount,
		TransactionType: history.TransactionType,
		BetID:           history.BetID,
	})

	log.WithFields(log.Fields{
		"accountID":       history.AccountID,
		"transactionType": history.TransactionType,
		"balanceBefore":   history.BalanceBefore.String(),
		"balanceAfter":    history.BalanceAfter.String(),
		"changeAmount":    history.ChangeAmount.String(),
	}).Debug("Recorded balance change")

	return nil
}

// loadAccountForUpdate reads and locks the account, treating a missing document as zeros
func loadAccountForUpdate(ctx context.Context, uow UnitOfWork, accountID string) (*models.Account, error) {
	account, err := uow.AccountRepository().GetForUpdate(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		account = models.NewEmptyAccount(accountID)
	}
	return account, nil
}
