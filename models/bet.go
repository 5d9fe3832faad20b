package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// BetStatus represents the lifecycle state of a bet
type BetStatus string

const (
	BetStatusPending BetStatus = "pending"
	BetStatusWon     BetStatus = "won"
	BetStatusLost    BetStatus = "lost"
	BetStatusDeleted BetStatus = "deleted"
)

// ParseBetStatus converts a stored or user supplied string into a BetStatus.
// Unknown values are rejected so they never reach settlement or statistics.
func ParseBetStatus(s string) (BetStatus, error) {
	switch BetStatus(s) {
	case BetStatusPending, BetStatusWon, BetStatusLost, BetStatusDeleted:
		return BetStatus(s), nil
	default:
		return "", fmt.Errorf("unknown bet status %q", s)
	}
}

// UnmarshalText rejects unknown statuses when decoding JSON input
func (s *BetStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseBetStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Scan rejects unknown statuses when reading rows from the store
func (s *BetStatus) Scan(src any) error {
	var raw string
	switch v := src.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("cannot scan %T into BetStatus", src)
	}
	parsed, err := ParseBetStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// IsKnown reports whether s is one of the defined statuses
func (s BetStatus) IsKnown() bool {
	_, err := ParseBetStatus(string(s))
	return err == nil
}

// IsActive returns true for pending, won and lost bets. Deleted bets and
// records carrying an unrecognized status are not active.
func (s BetStatus) IsActive() bool {
	return s.IsKnown() && s != BetStatusDeleted
}

// IsSettled returns true once the outcome of the bet is known
func (s BetStatus) IsSettled() bool {
	return s == BetStatusWon || s == BetStatusLost
}

// Settlement is the part of a bet that determines its balance effect
type Settlement struct {
	Status BetStatus
	Stake  decimal.Decimal
	Odds   decimal.Decimal
}

// ProfitLoss returns the signed amount this settlement contributes to the balance
func (s Settlement) ProfitLoss() decimal.Decimal {
	switch s.Status {
	case BetStatusWon:
		return s.Stake.Mul(s.Odds.Sub(decimal.NewFromInt(1)))
	case BetStatusLost:
		return s.Stake.Neg()
	case BetStatusPending, BetStatusDeleted:
		return decimal.Zero
	default:
		panic(fmt.Sprintf("unhandled bet status %q", s.Status))
	}
}

// Bet represents a single wager recorded by the user
type Bet struct {
	ID        string          `db:"id" json:"id"`
	Match     string          `db:"match_name" json:"match"`
	Stake     decimal.Decimal `db:"stake" json:"stake"`
	Odds      decimal.Decimal `db:"odds" json:"odds"`
	Status    BetStatus       `db:"status" json:"status"`
	Date      time.Time       `db:"date" json:"date"`
	CreatedAt time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time       `db:"updated_at" json:"updatedAt"`
}

// Settlement extracts the settlement inputs of the bet
func (b *Bet) Settlement() Settlement {
	return Settlement{Status: b.Status, Stake: b.Stake, Odds: b.Odds}
}

// ProfitLoss returns the bet's contribution to the balance.
// Records with a missing stake or odds contribute nothing.
func (b *Bet) ProfitLoss() decimal.Decimal {
	if !b.IsWellFormed() || !b.Status.IsKnown() {
		return decimal.Zero
	}
	return b.Settlement().ProfitLoss()
}

// IsWellFormed reports whether stake and odds are present and in range
func (b *Bet) IsWellFormed() bool {
	return b.Stake.IsPositive() && b.Odds.GreaterThan(decimal.NewFromInt(1))
}

// BetInput carries the user supplied fields for creating or editing a bet
type BetInput struct {
	Match  string          `json:"match" validate:"required"`
	Stake  decimal.Decimal `json:"stake" validate:"dgt=0"`
	Odds   decimal.Decimal `json:"odds" validate:"dgt=1"`
	Status BetStatus       `json:"status" validate:"required,oneof=pending won lost"`
	Date   time.Time       `json:"date"`
}

// Settlement returns the settlement the input would produce
func (in BetInput) Settlement() Settlement {
	return Settlement{Status: in.Status, Stake: in.Stake, Odds: in.Odds}
}
