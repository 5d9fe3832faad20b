package infrastructure

import (
	"fmt"

	"github.com/idkrafsan/BetTracker/events"
)

// SubjectPrefix namespaces every subject this service publishes to
const SubjectPrefix = "bettracker"

// DomainEventStream is the JetStream stream holding the ledger's events
const DomainEventStream = "bettracker_events"

// EventSubjectMapper maps domain events to NATS subjects
type EventSubjectMapper struct{}

// NewEventSubjectMapper creates a new event subject mapper
func NewEventSubjectMapper() *EventSubjectMapper {
	return &EventSubjectMapper{}
}

// MapEventToSubject converts a domain event type to its NATS subject
func (m *EventSubjectMapper) MapEventToSubject(eventType events.EventType) string {
	switch eventType {
	case events.EventTypeBetCreated:
		return SubjectPrefix + ".bets.created"
	case events.EventTypeBetUpdated:
		return SubjectPrefix + ".bets.updated"
	case events.EventTypeBetDeleted:
		return SubjectPrefix + ".bets.deleted"
	case events.EventTypeBalanceChange:
		return SubjectPrefix + ".account.balance_changed"
	case events.EventTypeSettlementFailed:
		return SubjectPrefix + ".settlements.failed"
	default:
		return fmt.Sprintf("%s.unknown.%s", SubjectPrefix, eventType)
	}
}

// GetAllSubjects returns all subjects that this service publishes to
func (m *EventSubjectMapper) GetAllSubjects() []string {
	subjects := make([]string, len(events.AllEventTypes))
	for i, eventType := range events.AllEventTypes {
		subjects[i] = m.MapEventToSubject(eventType)
	}
	return subjects
}
