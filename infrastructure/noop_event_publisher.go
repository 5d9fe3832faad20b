package infrastructure

import (
	"context"

	"github.com/idkrafsan/BetTracker/events"
)

// NoopEventPublisher drops every event. Used when NATS is not configured.
type NoopEventPublisher struct{}

// NewNoopEventPublisher creates a new no-op event publisher
func NewNoopEventPublisher() *NoopEventPublisher {
	return &NoopEventPublisher{}
}

// Forward does nothing with the event
func (n *NoopEventPublisher) Forward(ctx context.Context, event events.Event) {}
