package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrValidation is matched by every input validation failure
	ErrValidation = errors.New("validation failed")
	// ErrNotFound is returned when a referenced bet does not exist
	ErrNotFound = errors.New("not found")
	// ErrInsufficientBalance is returned when a withdrawal exceeds the balance
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrStoreUnavailable wraps failures of the underlying stores
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrSettlementNotApplied means the bet was written but its balance effect was not
	ErrSettlementNotApplied = errors.New("settlement not applied")
)

// ValidationError names the field and rule an input violated
type ValidationError struct {
	Field string
	Rule  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: failed %s", e.Field, e.Rule)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// ValidationErrors collects every violated rule of one input
type ValidationErrors []*ValidationError

func (e ValidationErrors) Error() string {
	parts := make([]string, len(e))
	for i, v := range e {
		parts[i] = v.Error()
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e ValidationErrors) Is(target error) bool {
	return target == ErrValidation
}

// SettlementNotAppliedError reports a committed bet write whose balance update failed.
// Delta is the amount that still has to be applied to reconcile the account.
type SettlementNotAppliedError struct {
	BetID string
	Delta decimal.Decimal
	Err   error
}

func (e *SettlementNotAppliedError) Error() string {
	return fmt.Sprintf("bet %s saved but balance change of %s was not applied: %v", e.BetID, e.Delta.String(), e.Err)
}

func (e *SettlementNotAppliedError) Is(target error) bool {
	return target == ErrSettlementNotApplied
}

func (e *SettlementNotAppliedError) Unwrap() error {
	return e.Err
}

// storeUnavailable wraps a store failure so callers can match ErrStoreUnavailable
// while keeping the original cause in the chain.
func storeUnavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}

func newValidationError(field, rule string) error {
	return ValidationErrors{{Field: field, Rule: rule}}
}
