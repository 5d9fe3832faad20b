package testutil

import (
	"time"

	"github.com/idkrafsan/BetTracker/models"
	"github.com/shopspring/decimal"
)

// CreateTestBet creates a bet with default values, ready for BetRepository.Create
func CreateTestBet(match string, status models.BetStatus) *models.Bet {
	return &models.Bet{
		Match:  match,
		Stake:  decimal.RequireFromString("10"),
		Odds:   decimal.RequireFromString("2.5"),
		Status: status,
		Date:   time.Now().UTC().Truncate(time.Microsecond),
	}
}

// CreateTestBetWithAmounts creates a bet with a specific stake and odds
func CreateTestBetWithAmounts(match string, status models.BetStatus, stake, odds string) *models.Bet {
	bet := CreateTestBet(match, status)
	bet.Stake = decimal.RequireFromString(stake)
	bet.Odds = decimal.RequireFromString(odds)
	return bet
}

// CreateTestBalanceHistory creates a balance history entry for an account
func CreateTestBalanceHistory(accountID string, transactionType models.TransactionType) *models.BalanceHistory {
	return &models.BalanceHistory{
		AccountID:       accountID,
		BalanceBefore:   decimal.RequireFromString("100"),
		BalanceAfter:    decimal.RequireFromString("90"),
		ChangeAmount:    decimal.RequireFromString("-10"),
		TransactionType: transactionType,
		TransactionMetadata: map[string]any{
			"test": true,
		},
	}
}
