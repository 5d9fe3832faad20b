package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/idkrafsan/BetTracker/database"
	"github.com/idkrafsan/BetTracker/models"
	"github.com/idkrafsan/BetTracker/service"
	"github.com/jackc/pgx/v5"
)

const betColumns = `id, match_name, stake, odds, status, date, created_at, updated_at`

type betRepository struct {
	q queryable
}

// NewBetRepository creates a new bet repository
func NewBetRepository(db *database.DB) service.BetRepository {
	return &betRepository{q: db.Pool}
}

// newBetRepositoryWithTx creates a new bet repository with a transaction
func newBetRepositoryWithTx(tx queryable) service.BetRepository {
	return &betRepository{q: tx}
}

func (r *betRepository) Create(ctx context.Context, bet *models.Bet) error {
	if bet.ID == "" {
		bet.ID = uuid.NewString()
	}

	query := `
		INSERT INTO bets (id, match_name, stake, odds, status, date)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`

	err := r.q.QueryRow(ctx, query,
		bet.ID,
		bet.Match,
		bet.Stake,
		bet.Odds,
		bet.Status,
		bet.Date,
	).Scan(&bet.CreatedAt, &bet.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create bet: %w", err)
	}

	return nil
}

func (r *betRepository) GetByID(ctx context.Context, id string) (*models.Bet, error) {
	return r.getOne(ctx, `SELECT `+betColumns+` FROM bets WHERE id = $1`, id)
}

func (r *betRepository) GetByIDForUpdate(ctx context.Context, id string) (*models.Bet, error) {
	return r.getOne(ctx, `SELECT `+betColumns+` FROM bets WHERE id = $1 FOR UPDATE`, id)
}

func (r *betRepository) getOne(ctx context.Context, query, id string) (*models.Bet, error) {
	bet, err := scanBet(r.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bet %s: %w", id, err)
	}
	return bet, nil
}

func (r *betRepository) Update(ctx context.Context, bet *models.Bet) error {
	query := `
		UPDATE bets
		SET match_name = $2, stake = $3, odds = $4, status = $5, date = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	err := r.q.QueryRow(ctx, query,
		bet.ID,
		bet.Match,
		bet.Stake,
		bet.Odds,
		bet.Status,
		bet.Date,
	).Scan(&bet.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("bet %s not found", bet.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to update bet %s: %w", bet.ID, err)
	}

	return nil
}

func (r *betRepository) Delete(ctx context.Context, id string) (bool, error) {
	tag, err := r.q.Exec(ctx, `DELETE FROM bets WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete bet %s: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *betRepository) List(ctx context.Context) ([]*models.Bet, error) {
	rows, err := r.q.Query(ctx, `SELECT `+betColumns+` FROM bets ORDER BY date DESC, created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query bets: %w", err)
	}
	defer rows.Close()

	bets := make([]*models.Bet, 0)
	for rows.Next() {
		bet, err := scanBet(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bet: %w", err)
		}
		bets = append(bets, bet)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bets: %w", err)
	}

	return bets, nil
}

func scanBet(row pgx.Row) (*models.Bet, error) {
	var bet models.Bet
	err := row.Scan(
		&bet.ID,
		&bet.Match,
		&bet.Stake,
		&bet.Odds,
		&bet.Status,
		&bet.Date,
		&bet.CreatedAt,
		&bet.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &bet, nil
}
