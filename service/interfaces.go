package service

import (
	"context"

	"github.com/idkrafsan/BetTracker/events"
	"github.com/idkrafsan/BetTracker/models"
)

// BetRepository defines the interface for bet data access
type BetRepository interface {
	// Create stores a new bet, assigning its id and server timestamps
	Create(ctx context.Context, bet *models.Bet) error

	// GetByID retrieves a bet by its ID, returning nil if it does not exist
	GetByID(ctx context.Context, id string) (*models.Bet, error)

	// GetByIDForUpdate retrieves a bet and locks it for the rest of the transaction
	GetByIDForUpdate(ctx context.Context, id string) (*models.Bet, error)

	// Update overwrites the mutable fields of an existing bet
	Update(ctx context.Context, bet *models.Bet) error

	// Delete removes a bet, reporting whether a row existed
	Delete(ctx context.Context, id string) (bool, error)

	// List returns every stored bet ordered by date, newest first
	List(ctx context.Context) ([]*models.Bet, error)
}

// AccountRepository defines the interface for the singleton account document
type AccountRepository interface {
	// Get returns the account, or nil if it has never been written
	Get(ctx context.Context, id string) (*models.Account, error)

	// GetForUpdate returns the account and locks its row for the rest of the transaction
	GetForUpdate(ctx context.Context, id string) (*models.Account, error)

	// Merge upserts the account, touching only the fields set in the patch
	Merge(ctx context.Context, id string, patch models.AccountPatch) (*models.Account, error)
}

// BalanceHistoryRepository defines the interface for balance history tracking
type BalanceHistoryRepository interface {
	// Record creates a new balance history entry
	Record(ctx context.Context, history *models.BalanceHistory) error

	// GetByAccount returns the most recent entries for an account
	GetByAccount(ctx context.Context, accountID string, limit int) ([]*models.BalanceHistory, error)

	// GetByBet returns every settlement entry recorded for a bet
	GetByBet(ctx context.Context, betID string) ([]*models.BalanceHistory, error)
}

// EventPublisher defines the interface for publishing events inside a unit of work
type EventPublisher interface {
	Publish(event events.Event)
}

// EventEmitter publishes events immediately, outside of any unit of work
type EventEmitter interface {
	Emit(ctx context.Context, event events.Event)
}

// UnitOfWork groups repository calls into one transaction
type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	BetRepository() BetRepository
	AccountRepository() AccountRepository
	BalanceHistoryRepository() BalanceHistoryRepository
	EventBus() EventPublisher
}

// UnitOfWorkFactory creates units of work
type UnitOfWorkFactory interface {
	Create() UnitOfWork
}

// Subscription is a live change subscription that must be released by its owner
type Subscription interface {
	Unsubscribe()
}

// ChangeFeed delivers store change notifications. Each feed delivers its own
// notifications in order; there is no ordering between the two feeds.
type ChangeFeed interface {
	// SubscribeBets calls fn with the full bet collection now and after every change
	SubscribeBets(ctx context.Context, fn func([]*models.Bet)) (Subscription, error)

	// SubscribeAccount calls fn with the account now and after every change
	SubscribeAccount(ctx context.Context, accountID string, fn func(*models.Account)) (Subscription, error)
}

// BetService defines the bet operations and their balance reconciliation
type BetService interface {
	// CreateBet stores a bet and applies its settlement to the balance
	CreateBet(ctx context.Context, input models.BetInput) (*models.Bet, error)

	// EditBet replaces a bet's fields and applies the difference in settlement to the balance
	EditBet(ctx context.Context, id string, input models.BetInput) (*models.Bet, error)

	// DeleteBet removes a bet without reversing its balance effect
	DeleteBet(ctx context.Context, id string) error

	// SoftDeleteBet marks a bet deleted without reversing its balance effect
	SoftDeleteBet(ctx context.Context, id string) (*models.Bet, error)

	// GetBet returns a single bet
	GetBet(ctx context.Context, id string) (*models.Bet, error)

	// ListBets returns every bet, deleted ones included, newest first
	ListBets(ctx context.Context) ([]*models.Bet, error)
}

// AccountService defines manual balance operations on the account
type AccountService interface {
	GetAccount(ctx context.Context) (*models.Account, error)
	Deposit(ctx context.Context, amount models.AmountInput) (*models.Account, error)
	Withdraw(ctx context.Context, amount models.AmountInput) (*models.Account, error)
	SetUsername(ctx context.Context, username string) (*models.Account, error)
	BalanceHistory(ctx context.Context, limit int) ([]*models.BalanceHistory, error)
}

// DashboardProvider returns dashboards computed from the latest store snapshots
type DashboardProvider interface {
	Current(ctx context.Context, period models.Period) (*models.Dashboard, error)
}
