package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType represents the type of balance change
type TransactionType string

const (
	TransactionTypeDeposit       TransactionType = "deposit"
	TransactionTypeWithdrawal    TransactionType = "withdrawal"
	TransactionTypeBetSettlement TransactionType = "bet_settlement"
)

// BalanceHistory represents a historical balance change
type BalanceHistory struct {
	ID                  int64           `db:"id" json:"id"`
	AccountID           string          `db:"account_id" json:"accountId"`
	BalanceBefore       decimal.Decimal `db:"balance_before" json:"balanceBefore"`
	BalanceAfter        decimal.Decimal `db:"balance_after" json:"balanceAfter"`
	ChangeAmount        decimal.Decimal `db:"change_amount" json:"changeAmount"`
	TransactionType     TransactionType `db:"transaction_type" json:"transactionType"`
	TransactionMetadata map[string]any  `db:"transaction_metadata" json:"metadata,omitempty"`
	BetID               *string         `db:"bet_id" json:"betId,omitempty"`
	CreatedAt           time.Time       `db:"created_at" json:"createdAt"`
}
