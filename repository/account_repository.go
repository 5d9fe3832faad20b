package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/idkrafsan/BetTracker/database"
	"github.com/idkrafsan/BetTracker/models"
	"github.com/idkrafsan/BetTracker/service"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const accountColumns = `id, username, balance, total_deposits, total_withdrawals,
	last_transaction_type, last_transaction_amount, last_transaction_date, updated_at`

// AccountRepository implements the AccountRepository interface
type AccountRepository struct {
	q queryable
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *database.DB) *AccountRepository {
	return &AccountRepository{q: db.Pool}
}

// newAccountRepositoryWithTx creates a new account repository with a transaction
func newAccountRepositoryWithTx(tx queryable) service.AccountRepository {
	return &AccountRepository{q: tx}
}

// Get returns the account, or nil if no row exists yet
func (r *AccountRepository) Get(ctx context.Context, id string) (*models.Account, error) {
	return r.getOne(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
}

// GetForUpdate returns the account and holds its row lock until the
// transaction ends. A missing row is created with zero defaults first so
// there is always a row to lock; concurrent first writers wait on the
// conflicting insert and then queue on the lock.
func (r *AccountRepository) GetForUpdate(ctx context.Context, id string) (*models.Account, error) {
	if _, err := r.q.Exec(ctx, `INSERT INTO accounts (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`, id); err != nil {
		return nil, fmt.Errorf("failed to ensure account %s: %w", id, err)
	}
	return r.getOne(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, id)
}

func (r *AccountRepository) getOne(ctx context.Context, query, id string) (*models.Account, error) {
	account, err := scanAccount(r.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account %s: %w", id, err)
	}
	return account, nil
}

// Merge creates the account when missing and otherwise overwrites only the
// fields set in the patch. Unset fields of a new row start at zero.
func (r *AccountRepository) Merge(ctx context.Context, id string, patch models.AccountPatch) (*models.Account, error) {
	var (
		lastType   *string
		lastAmount *decimal.Decimal
		lastDate   *time.Time
	)
	if lt := patch.LastTransaction; lt != nil {
		t := string(lt.Type)
		lastType = &t
		lastAmount = &lt.Amount
		lastDate = &lt.Date
	}

	query := `
		INSERT INTO accounts (id, username, balance, total_deposits, total_withdrawals,
			last_transaction_type, last_transaction_amount, last_transaction_date, updated_at)
		VALUES ($1, COALESCE($2::text, ''), COALESCE($3::numeric, 0), COALESCE($4::numeric, 0), COALESCE($5::numeric, 0),
			$6::text, $7::numeric, $8::timestamptz, NOW())
		ON CONFLICT (id) DO UPDATE SET
			username = COALESCE($2::text, accounts.username),
			balance = COALESCE($3::numeric, accounts.balance),
			total_deposits = COALESCE($4::numeric, accounts.total_deposits),
			total_withdrawals = COALESCE($5::numeric, accounts.total_withdrawals),
			last_transaction_type = COALESCE($6::text, accounts.last_transaction_type),
			last_transaction_amount = COALESCE($7::numeric, accounts.last_transaction_amount),
			last_transaction_date = COALESCE($8::timestamptz, accounts.last_transaction_date),
			updated_at = NOW()
		RETURNING ` + accountColumns

	account, err := scanAccount(r.q.QueryRow(ctx, query,
		id,
		patch.Username,
		patch.Balance,
		patch.TotalDeposits,
		patch.TotalWithdrawals,
		lastType,
		lastAmount,
		lastDate,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to merge account %s: %w", id, err)
	}

	return account, nil
}

func scanAccount(row pgx.Row) (*models.Account, error) {
	var (
		account    models.Account
		lastType   *string
		lastAmount decimal.NullDecimal
		lastDate   *time.Time
	)
	err := row.Scan(
		&account.ID,
		&account.Username,
		&account.Balance,
		&account.TotalDeposits,
		&account.TotalWithdrawals,
		&lastType,
		&lastAmount,
		&lastDate,
		&account.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if lastType != nil && lastAmount.Valid && lastDate != nil {
		account.LastTransaction = &models.LastTransaction{
			Type:   models.TransactionType(*lastType),
			Amount: lastAmount.Decimal,
			Date:   *lastDate,
		}
	}

	return &account, nil
}
