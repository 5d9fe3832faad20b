package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultAccountID is the identifier of the singleton account
const DefaultAccountID = "main"

// LastTransaction describes the most recent manual balance movement
type LastTransaction struct {
	Type   TransactionType `json:"type"`
	Amount decimal.Decimal `json:"amount"`
	Date   time.Time       `json:"date"`
}

// Account holds the user's running balance and manual movement totals.
// A missing account reads as all zeros.
type Account struct {
	ID               string           `db:"id" json:"id"`
	Username         string           `db:"username" json:"username"`
	Balance          decimal.Decimal  `db:"balance" json:"balance"`
	TotalDeposits    decimal.Decimal  `db:"total_deposits" json:"totalDeposits"`
	TotalWithdrawals decimal.Decimal  `db:"total_withdrawals" json:"totalWithdrawals"`
	LastTransaction  *LastTransaction `db:"-" json:"lastTransaction,omitempty"`
	UpdatedAt        time.Time        `db:"updated_at" json:"updatedAt"`
}

// NewEmptyAccount returns the zero-valued view of an account that has never been written
func NewEmptyAccount(id string) *Account {
	return &Account{
		ID:               id,
		Balance:          decimal.Zero,
		TotalDeposits:    decimal.Zero,
		TotalWithdrawals: decimal.Zero,
	}
}

// AccountPatch is a merge write: nil fields are left untouched
type AccountPatch struct {
	Username         *string
	Balance          *decimal.Decimal
	TotalDeposits    *decimal.Decimal
	TotalWithdrawals *decimal.Decimal
	LastTransaction  *LastTransaction
}

// IsEmpty returns true if the patch would not change anything
func (p AccountPatch) IsEmpty() bool {
	return p.Username == nil && p.Balance == nil && p.TotalDeposits == nil &&
		p.TotalWithdrawals == nil && p.LastTransaction == nil
}

// Apply returns a copy of the account with the patch merged in
func (p AccountPatch) Apply(a *Account) *Account {
	merged := *a
	if p.Username != nil {
		merged.Username = *p.Username
	}
	if p.Balance != nil {
		merged.Balance = *p.Balance
	}
	if p.TotalDeposits != nil {
		merged.TotalDeposits = *p.TotalDeposits
	}
	if p.TotalWithdrawals != nil {
		merged.TotalWithdrawals = *p.TotalWithdrawals
	}
	if p.LastTransaction != nil {
		lt := *p.LastTransaction
		merged.LastTransaction = &lt
	}
	return &merged
}

// AmountInput carries a manual deposit or withdrawal amount
type AmountInput struct {
	Amount decimal.Decimal `json:"amount" validate:"dgt=0"`
}
