package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/idkrafsan/BetTracker/events"
	"github.com/idkrafsan/BetTracker/models"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// betService implements BetService. Every create or edit is two units of work:
// the bet write, then the balance settlement. A failure in the second surfaces
// as SettlementNotAppliedError with the bet already stored.
type betService struct {
	uowFactory UnitOfWorkFactory
	emitter    EventEmitter
	accountID  string
	now        func() time.Time
}

// NewBetService creates a new bet service
func NewBetService(uowFactory UnitOfWorkFactory, emitter EventEmitter, accountID string) BetService {
	return &betService{
		uowFactory: uowFactory,
		emitter:    emitter,
		accountID:  accountID,
		now:        time.Now,
	}
}

// CreateBet stores a bet and applies its settlement to the balance
func (s *betService) CreateBet(ctx context.Context, input models.BetInput) (*models.Bet, error) {
	input.Match = strings.TrimSpace(input.Match)
	if err := Validate(input); err != nil {
		return nil, err
	}

	bet := &models.Bet{
		Match:  input.Match,
		Stake:  input.Stake,
		Odds:   input.Odds,
		Status: input.Status,
		Date:   input.Date,
	}
	if bet.Date.IsZero() {
		bet.Date = s.now()
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, storeUnavailable("begin bet create", err)
	}
	defer uow.Rollback()

	if err := uow.BetRepository().Create(ctx, bet); err != nil {
		return nil, storeUnavailable("create bet", err)
	}

	uow.EventBus().Publish(events.BetCreatedEvent{
		BetID:  bet.ID,
		Match:  bet.Match,
		Stake:  bet.Stake,
		Odds:   bet.Odds,
		Status: bet.Status,
	})

	if err := uow.Commit(); err != nil {
		return nil, storeUnavailable("commit bet create", err)
	}

	log.WithFields(log.Fields{
		"betID":  bet.ID,
		"status": bet.Status,
		"stake":  bet.Stake.String(),
		"odds":   bet.Odds.String(),
	}).Info("Bet created")

	delta := CreationDelta(bet.Settlement())
	if delta.IsZero() {
		return bet, nil
	}

	if err := s.settle(ctx, bet.ID, delta, map[string]any{
		"operation": "create",
		"status":    string(bet.Status),
	}); err != nil {
		return bet, err
	}
	return bet, nil
}

// EditBet replaces a bet's fields and applies newProfit - oldProfit to the balance
func (s *betService) EditBet(ctx context.Context, id string, input models.BetInput) (*models.Bet, error) {
	if err := checkBetID(id); err != nil {
		return nil, err
	}
	input.Match = strings.TrimSpace(input.Match)
	if err := Validate(input); err != nil {
		return nil, err
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, storeUnavailable("begin bet edit", err)
	}
	defer uow.Rollback()

	existing, err := uow.BetRepository().GetByIDForUpdate(ctx, id)
	if err != nil {
		return nil, storeUnavailable("read bet", err)
	}
	if existing == nil || existing.Status == models.BetStatusDeleted {
		return nil, fmt.Errorf("bet %s: %w", id, ErrNotFound)
	}

	previous := existing.Settlement()

	updated := *existing
	updated.Match = input.Match
	updated.Stake = input.Stake
	updated.Odds = input.Odds
	updated.Status = input.Status
	if !input.Date.IsZero() {
		updated.Date = input.Date
	}

	if err := uow.BetRepository().Update(ctx, &updated); err != nil {
		return nil, storeUnavailable("update bet", err)
	}

	uow.EventBus().Publish(events.BetUpdatedEvent{
		BetID:     id,
		OldStatus: previous.Status,
		NewStatus: updated.Status,
	})

	if err := uow.Commit(); err != nil {
		return nil, storeUnavailable("commit bet edit", err)
	}

	delta := EditDelta(previous, updated.Settlement())

	log.WithFields(log.Fields{
		"betID":     id,
		"oldStatus": previous.Status,
		"newStatus": updated.Status,
		"delta":     delta.String(),
	}).Info("Bet edited")

	if delta.IsZero() {
		return &updated, nil
	}

	if err := s.settle(ctx, id, delta, map[string]any{
		"operation": "edit",
		"oldStatus": string(previous.Status),
		"newStatus": string(updated.Status),
	}); err != nil {
		return &updated, err
	}
	return &updated, nil
}

// DeleteBet removes a bet. The balance keeps whatever effect the bet had.
func (s *betService) DeleteBet(ctx context.Context, id string) error {
	if err := checkBetID(id); err != nil {
		return err
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return storeUnavailable("begin bet delete", err)
	}
	defer uow.Rollback()

	existing, err := uow.BetRepository().GetByIDForUpdate(ctx, id)
	if err != nil {
		return storeUnavailable("read bet", err)
	}
	if existing == nil {
		return fmt.Errorf("bet %s: %w", id, ErrNotFound)
	}

	deleted, err := uow.BetRepository().Delete(ctx, id)
	if err != nil {
		return storeUnavailable("delete bet", err)
	}
	if !deleted {
		return fmt.Errorf("bet %s: %w", id, ErrNotFound)
	}

	uow.EventBus().Publish(events.BetDeletedEvent{BetID: id, Status: existing.Status})

	if err := uow.Commit(); err != nil {
		return storeUnavailable("commit bet delete", err)
	}

	s.logUnreversed(existing, "Bet deleted")
	return nil
}

// SoftDeleteBet marks a bet deleted. Like DeleteBet it leaves the balance alone.
func (s *betService) SoftDeleteBet(ctx context.Context, id string) (*models.Bet, error) {
	if err := checkBetID(id); err != nil {
		return nil, err
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, storeUnavailable("begin bet soft delete", err)
	}
	defer uow.Rollback()

	existing, err := uow.BetRepository().GetByIDForUpdate(ctx, id)
	if err != nil {
		return nil, storeUnavailable("read bet", err)
	}
	if existing == nil || existing.Status == models.BetStatusDeleted {
		return nil, fmt.Errorf("bet %s: %w", id, ErrNotFound)
	}

	updated := *existing
	updated.Status = models.BetStatusDeleted
	if err := uow.BetRepository().Update(ctx, &updated); err != nil {
		return nil, storeUnavailable("update bet", err)
	}

	uow.EventBus().Publish(events.BetUpdatedEvent{
		BetID:     id,
		OldStatus: existing.Status,
		NewStatus: models.BetStatusDeleted,
	})

	if err := uow.Commit(); err != nil {
		return nil, storeUnavailable("commit bet soft delete", err)
	}

	s.logUnreversed(existing, "Bet marked deleted")
	return &updated, nil
}

// GetBet returns a single bet, including one marked deleted
func (s *betService) GetBet(ctx context.Context, id string) (*models.Bet, error) {
	if err := checkBetID(id); err != nil {
		return nil, err
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, storeUnavailable("begin bet read", err)
	}
	defer uow.Rollback()

	bet, err := uow.BetRepository().GetByID(ctx, id)
	if err != nil {
		return nil, storeUnavailable("read bet", err)
	}
	if bet == nil {
		return nil, fmt.Errorf("bet %s: %w", id, ErrNotFound)
	}
	return bet, nil
}

// ListBets returns every stored bet, newest first
func (s *betService) ListBets(ctx context.Context) ([]*models.Bet, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, storeUnavailable("begin bet list", err)
	}
	defer uow.Rollback()

	bets, err := uow.BetRepository().List(ctx)
	if err != nil {
		return nil, storeUnavailable("list bets", err)
	}
	return bets, nil
}

// settle applies delta to the account balance in its own unit of work
func (s *betService) settle(ctx context.Context, betID string, delta decimal.Decimal, metadata map[string]any) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return s.settlementFailed(ctx, betID, delta, err)
	}
	defer uow.Rollback()

	account, err := loadAccountForUpdate(ctx, uow, s.accountID)
	if err != nil {
		return s.settlementFailed(ctx, betID, delta, err)
	}

	newBalance := account.Balance.Add(delta)
	if _, err := uow.AccountRepository().Merge(ctx, s.accountID, models.AccountPatch{Balance: &newBalance}); err != nil {
		return s.settlementFailed(ctx, betID, delta, err)
	}

	settledBetID := betID
	if err := RecordBalanceChange(ctx, uow, &models.BalanceHistory{
		AccountID:           s.accountID,
		BalanceBefore:       account.Balance,
		BalanceAfter:        newBalance,
		ChangeAmount:        delta,
		TransactionType:     models.TransactionTypeBetSettlement,
		TransactionMetadata: metadata,
		BetID:               &settledBetID,
	}); err != nil {
		return s.settlementFailed(ctx, betID, delta, err)
	}

	if err := uow.Commit(); err != nil {
		return s.settlementFailed(ctx, betID, delta, err)
	}

	log.WithFields(log.Fields{
		"betID":      betID,
		"delta":      delta.String(),
		"newBalance": newBalance.String(),
	}).Info("Bet settlement applied")
	return nil
}

func (s *betService) settlementFailed(ctx context.Context, betID string, delta decimal.Decimal, cause error) error {
	err := &SettlementNotAppliedError{
		BetID: betID,
		Delta: delta,
		Err:   storeUnavailable("apply settlement", cause),
	}

	log.WithError(cause).WithFields(log.Fields{
		"betID": betID,
		"delta": delta.String(),
	}).Error("Bet saved but balance was not updated, manual reconciliation required")

	if s.emitter != nil {
		s.emitter.Emit(ctx, events.SettlementFailedEvent{
			BetID:  betID,
			Delta:  delta,
			Reason: cause.Error(),
		})
	}
	return err
}

func (s *betService) logUnreversed(bet *models.Bet, msg string) {
	entry := log.WithFields(log.Fields{
		"betID":  bet.ID,
		"status": bet.Status,
	})
	if bet.Status.IsSettled() {
		entry.WithField("profitLoss", bet.ProfitLoss().String()).Warn(msg + ", settled balance effect was not reversed")
		return
	}
	entry.Info(msg)
}

// checkBetID rejects ids that cannot exist in the store
func checkBetID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("bet %s: %w", id, ErrNotFound)
	}
	return nil
}
