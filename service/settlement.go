package service

import (
	"github.com/idkrafsan/BetTracker/models"
	"github.com/shopspring/decimal"
)

// CreationDelta is the balance change caused by recording a new bet
func CreationDelta(s models.Settlement) decimal.Decimal {
	return s.ProfitLoss()
}

// EditDelta is the balance change caused by replacing one settlement with another.
// Both sides go through the same profit function so every status transition and
// stake or odds correction is covered.
func EditDelta(old, updated models.Settlement) decimal.Decimal {
	return updated.ProfitLoss().Sub(old.ProfitLoss())
}
