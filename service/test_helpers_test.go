package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/idkrafsan/BetTracker/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

const testAccountID = "main"

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDecimal(t *testing.T, expected string, actual decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	if !dec(expected).Equal(actual) {
		assert.Fail(t, fmt.Sprintf("expected %s, got %s", expected, actual.String()), msgAndArgs...)
	}
}

func decimalEquals(expected string) func(decimal.Decimal) bool {
	return func(actual decimal.Decimal) bool {
		return dec(expected).Equal(actual)
	}
}

func testBet(id string, status models.BetStatus, stake, odds string, date time.Time) *models.Bet {
	return &models.Bet{
		ID:        id,
		Match:     "Arsenal vs Chelsea",
		Stake:     dec(stake),
		Odds:      dec(odds),
		Status:    status,
		Date:      date,
		CreatedAt: date,
		UpdatedAt: date,
	}
}
