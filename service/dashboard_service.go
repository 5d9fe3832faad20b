package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/idkrafsan/BetTracker/models"
	log "github.com/sirupsen/logrus"
)

// ChangeSource tells listeners which store produced a notification
type ChangeSource string

const (
	ChangeSourceBets    ChangeSource = "bets"
	ChangeSourceAccount ChangeSource = "account"
)

// DashboardService keeps the latest bet and account snapshots delivered by the
// change feed and computes dashboards from them on demand. Statistics always come
// from the bet snapshot alone; the account is attached as last seen.
type DashboardService struct {
	uowFactory  UnitOfWorkFactory
	feed        ChangeFeed
	accountID   string
	recentLimit int
	now         func() time.Time

	mu        sync.RWMutex
	bets      []*models.Bet
	account   *models.Account
	haveBets  bool
	listeners map[int]func(ChangeSource)
	nextID    int
	subs      []Subscription
}

// NewDashboardService creates a dashboard service. Calendar days are evaluated in loc.
func NewDashboardService(uowFactory UnitOfWorkFactory, feed ChangeFeed, accountID string, recentLimit int, loc *time.Location) *DashboardService {
	if loc == nil {
		loc = time.UTC
	}
	return &DashboardService{
		uowFactory:  uowFactory,
		feed:        feed,
		accountID:   accountID,
		recentLimit: recentLimit,
		now:         func() time.Time { return time.Now().In(loc) },
		listeners:   make(map[int]func(ChangeSource)),
	}
}

// Start subscribes to both feeds. Each feed delivers an initial snapshot right away.
func (s *DashboardService) Start(ctx context.Context) error {
	betSub, err := s.feed.SubscribeBets(ctx, s.onBets)
	if err != nil {
		return fmt.Errorf("failed to subscribe to bets: %w", err)
	}

	accountSub, err := s.feed.SubscribeAccount(ctx, s.accountID, s.onAccount)
	if err != nil {
		betSub.Unsubscribe()
		return fmt.Errorf("failed to subscribe to account: %w", err)
	}

	s.mu.Lock()
	s.subs = append(s.subs, betSub, accountSub)
	s.mu.Unlock()

	log.WithField("accountID", s.accountID).Info("Dashboard subscriptions started")
	return nil
}

// Stop releases the feed subscriptions. Listeners receive nothing afterwards.
func (s *DashboardService) Stop() {
	s.mu.Lock()
	subs := s.subs
	s.subs = nil
	s.listeners = make(map[int]func(ChangeSource))
	s.mu.Unlock()

	for _, sub := range subs {
		sub.Unsubscribe()
	}
	log.Info("Dashboard subscriptions stopped")
}

// OnChange registers a listener called after every snapshot update, in feed order.
// The returned func removes the listener.
func (s *DashboardService) OnChange(fn func(ChangeSource)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// Current returns the dashboard for a period. Before the first bet snapshot
// arrives it reads the stores directly.
func (s *DashboardService) Current(ctx context.Context, period models.Period) (*models.Dashboard, error) {
	s.mu.RLock()
	if s.haveBets {
		bets, account := s.bets, s.account
		s.mu.RUnlock()
		if account == nil {
			account = models.NewEmptyAccount(s.accountID)
		}
		return BuildDashboard(bets, account, period, s.now(), s.recentLimit), nil
	}
	s.mu.RUnlock()

	return s.compute(ctx, period)
}

func (s *DashboardService) compute(ctx context.Context, period models.Period) (*models.Dashboard, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, storeUnavailable("begin dashboard read", err)
	}
	defer uow.Rollback()

	bets, err := uow.BetRepository().List(ctx)
	if err != nil {
		return nil, storeUnavailable("list bets", err)
	}

	account, err := uow.AccountRepository().Get(ctx, s.accountID)
	if err != nil {
		return nil, storeUnavailable("read account", err)
	}
	if account == nil {
		account = models.NewEmptyAccount(s.accountID)
	}

	return BuildDashboard(bets, account, period, s.now(), s.recentLimit), nil
}

func (s *DashboardService) onBets(snapshot []*models.Bet) {
	s.mu.Lock()
	s.bets = snapshot
	s.haveBets = true
	s.mu.Unlock()

	log.WithField("betCount", len(snapshot)).Debug("Bet snapshot received")
	s.notify(ChangeSourceBets)
}

func (s *DashboardService) onAccount(account *models.Account) {
	s.mu.Lock()
	s.account = account
	s.mu.Unlock()

	s.notify(ChangeSourceAccount)
}

func (s *DashboardService) notify(source ChangeSource) {
	s.mu.RLock()
	listeners := make([]func(ChangeSource), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.RUnlock()

	for _, fn := range listeners {
		fn(source)
	}
}
