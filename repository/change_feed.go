package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/idkrafsan/BetTracker/database"
	"github.com/idkrafsan/BetTracker/models"
	"github.com/idkrafsan/BetTracker/service"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

// Channels notified by the triggers installed in the migrations
const (
	BetsChangedChannel    = "bets_changed"
	AccountChangedChannel = "account_changed"
)

const defaultReconnectDelay = 2 * time.Second

// ChangeFeed turns Postgres LISTEN/NOTIFY into snapshot callbacks. Each
// subscription holds one pooled connection for as long as it is active.
type ChangeFeed struct {
	db             *database.DB
	bets           service.BetRepository
	accounts       *AccountRepository
	reconnectDelay time.Duration
}

// NewChangeFeed creates a change feed reading snapshots through the pool
func NewChangeFeed(db *database.DB) *ChangeFeed {
	return &ChangeFeed{
		db:             db,
		bets:           NewBetRepository(db),
		accounts:       NewAccountRepository(db),
		reconnectDelay: defaultReconnectDelay,
	}
}

// SubscribeBets calls fn with the full bet list now and after every committed change
func (f *ChangeFeed) SubscribeBets(ctx context.Context, fn func([]*models.Bet)) (service.Subscription, error) {
	load := func(ctx context.Context) error {
		bets, err := f.bets.List(ctx)
		if err != nil {
			return err
		}
		fn(bets)
		return nil
	}
	return f.listen(ctx, BetsChangedChannel, nil, load)
}

// SubscribeAccount calls fn with the account now and after every committed change.
// fn receives nil while the account row does not exist.
func (f *ChangeFeed) SubscribeAccount(ctx context.Context, accountID string, fn func(*models.Account)) (service.Subscription, error) {
	load := func(ctx context.Context) error {
		account, err := f.accounts.Get(ctx, accountID)
		if err != nil {
			return err
		}
		fn(account)
		return nil
	}
	match := func(payload string) bool { return payload == accountID }
	return f.listen(ctx, AccountChangedChannel, match, load)
}

type listenSubscription struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Unsubscribe stops delivery and waits for the in-flight callback to return
func (s *listenSubscription) Unsubscribe() {
	s.once.Do(func() {
		s.cancel()
		<-s.done
	})
}

func (f *ChangeFeed) listen(ctx context.Context, channel string, match func(string) bool, load func(context.Context) error) (service.Subscription, error) {
	conn, err := f.acquireListener(ctx, channel)
	if err != nil {
		return nil, err
	}

	// Snapshot after LISTEN so no change can fall between the two
	if err := load(ctx); err != nil {
		discardListener(conn)
		return nil, fmt.Errorf("failed to load initial %s snapshot: %w", channel, err)
	}

	subCtx, cancel := context.WithCancel(context.Background())
	sub := &listenSubscription{cancel: cancel, done: make(chan struct{})}

	// A buffer of one coalesces bursts of notifications into a single reload
	changed := make(chan struct{}, 1)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		defer close(changed)
		f.waitLoop(subCtx, conn, channel, match, changed)
	}()
	go func() {
		defer wg.Done()
		for range changed {
			if err := load(subCtx); err != nil {
				if subCtx.Err() != nil {
					return
				}
				log.WithError(err).WithField("channel", channel).Error("Failed to reload snapshot after change")
			}
		}
	}()
	go func() {
		wg.Wait()
		close(sub.done)
	}()

	log.WithField("channel", channel).Info("Listening for store changes")
	return sub, nil
}

func (f *ChangeFeed) acquireListener(ctx context.Context, channel string) (*pgxpool.Conn, error) {
	conn, err := f.db.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire listener connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{channel}.Sanitize()); err != nil {
		conn.Release()
		return nil, fmt.Errorf("failed to listen on %s: %w", channel, err)
	}
	return conn, nil
}

func (f *ChangeFeed) waitLoop(ctx context.Context, conn *pgxpool.Conn, channel string, match func(string) bool, changed chan<- struct{}) {
	defer func() {
		if conn != nil {
			discardListener(conn)
		}
	}()

	for {
		notification, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}

			log.WithError(err).WithField("channel", channel).Warn("Listener connection lost, reconnecting")
			discardListener(conn)
			conn = f.reconnect(ctx, channel)
			if conn == nil {
				return
			}
			// Changes may have been missed while disconnected
			signal(changed)
			continue
		}

		if match != nil && !match(notification.Payload) {
			continue
		}
		signal(changed)
	}
}

func (f *ChangeFeed) reconnect(ctx context.Context, channel string) *pgxpool.Conn {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(f.reconnectDelay):
		}

		conn, err := f.acquireListener(ctx, channel)
		if err == nil {
			log.WithField("channel", channel).Info("Listener reconnected")
			return conn
		}
		log.WithError(err).WithField("channel", channel).Warn("Listener reconnect failed")
	}
}

// discardListener closes the connection so its LISTEN state never returns to the pool
func discardListener(conn *pgxpool.Conn) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := conn.Conn().Close(ctx); err != nil {
		log.WithError(err).Debug("Failed to close listener connection")
	}
	conn.Release()
}

func signal(ch chan<- struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
