package events

import (
	"context"
	"sync"

	"github.com/idkrafsan/BetTracker/models"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeBetCreated       EventType = "bet_created"
	EventTypeBetUpdated       EventType = "bet_updated"
	EventTypeBetDeleted       EventType = "bet_deleted"
	EventTypeBalanceChange    EventType = "balance_change"
	EventTypeSettlementFailed EventType = "settlement_failed"
)

// AllEventTypes lists every event type emitted by the ledger
var AllEventTypes = []EventType{
	EventTypeBetCreated,
	EventTypeBetUpdated,
	EventTypeBetDeleted,
	EventTypeBalanceChange,
	EventTypeSettlementFailed,
}

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// BetCreatedEvent is emitted after a new bet is stored
type BetCreatedEvent struct {
	BetID  string           `json:"betId"`
	Match  string           `json:"match"`
	Stake  decimal.Decimal  `json:"stake"`
	Odds   decimal.Decimal  `json:"odds"`
	Status models.BetStatus `json:"status"`
}

func (e BetCreatedEvent) Type() EventType {
	return EventTypeBetCreated
}

// BetUpdatedEvent is emitted after a bet is edited or soft deleted
type BetUpdatedEvent struct {
	BetID     string           `json:"betId"`
	OldStatus models.BetStatus `json:"oldStatus"`
	NewStatus models.BetStatus `json:"newStatus"`
}

func (e BetUpdatedEvent) Type() EventType {
	return EventTypeBetUpdated
}

// BetDeletedEvent is emitted after a bet row is removed
type BetDeletedEvent struct {
	BetID  string           `json:"betId"`
	Status models.BetStatus `json:"status"`
}

func (e BetDeletedEvent) Type() EventType {
	return EventTypeBetDeleted
}

// BalanceChangeEvent represents a balance change that occurred
type BalanceChangeEvent struct {
	AccountID       string                 `json:"accountId"`
	OldBalance      decimal.Decimal        `json:"oldBalance"`
	NewBalance      decimal.Decimal        `json:"newBalance"`
	ChangeAmount    decimal.Decimal        `json:"changeAmount"`
	TransactionType models.TransactionType `json:"transactionType"`
	BetID           *string                `json:"betId,omitempty"`
}

func (e BalanceChangeEvent) Type() EventType {
	return EventTypeBalanceChange
}

// SettlementFailedEvent signals that a bet was stored but its balance effect was not
type SettlementFailedEvent struct {
	BetID  string          `json:"betId"`
	Delta  decimal.Decimal `json:"delta"`
	Reason string          `json:"reason"`
}

func (e SettlementFailedEvent) Type() EventType {
	return EventTypeSettlementFailed
}

// Handler is a function that handles events
type Handler func(ctx context.Context, event Event)

// Bus manages event subscriptions and dispatching
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe adds a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)

	log.WithFields(log.Fields{
		"eventType":    eventType,
		"handlerCount": len(b.handlers[eventType]),
	}).Debug("Subscribed handler to event type")
}

// SubscribeAll adds the handler for every known event type
func (b *Bus) SubscribeAll(handler Handler) {
	for _, eventType := range AllEventTypes {
		b.Subscribe(eventType, handler)
	}
}

// Emit publishes an event to all registered handlers.
// Handlers run on their own goroutines and a panicking handler is logged, not propagated.
func (b *Bus) Emit(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[event.Type()]))
	copy(handlers, b.handlers[event.Type()])
	b.mu.RUnlock()

	log.WithFields(log.Fields{
		"eventType":    event.Type(),
		"handlerCount": len(handlers),
	}).Debug("Emitting event")

	for i, handler := range handlers {
		go func(h Handler, handlerIndex int) {
			defer func() {
				if r := recover(); r != nil {
					log.WithFields(log.Fields{
						"eventType":    event.Type(),
						"handlerIndex": handlerIndex,
						"panic":        r,
					}).Error("Event handler panicked")
				}
			}()
			h(ctx, event)
		}(handler, i)
	}
}

// TransactionalBus holds events raised inside a unit of work until it commits
type TransactionalBus struct {
	real    *Bus
	mu      sync.Mutex
	pending []Event
}

func NewTransactionalBus(real *Bus) *TransactionalBus {
	return &TransactionalBus{real: real}
}

func (b *TransactionalBus) Publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = append(b.pending, e)
}

// Pending returns the number of events waiting for a commit
func (b *TransactionalBus) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Flush is called after a successful commit.
// Emission uses a background context so handlers outlive the request.
func (b *TransactionalBus) Flush(ctx context.Context) {
	b.mu.Lock()
	pending := b.pending
	b.pending = nil
	b.mu.Unlock()

	log.WithField("pendingEventCount", len(pending)).Debug("Flushing transactional events")

	eventCtx := context.Background()
	for _, ev := range pending {
		b.real.Emit(eventCtx, ev)
	}
}

// Discard is called after a rollback
func (b *TransactionalBus) Discard() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = nil
}
