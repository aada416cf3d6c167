package infrastructure

import (
	"fmt"

	"chesspot/domain/events"
)

// EventSubjectMapper handles mapping between domain events and NATS subjects
type EventSubjectMapper struct{}

// NewEventSubjectMapper creates a new event subject mapper
func NewEventSubjectMapper() *EventSubjectMapper {
	return &EventSubjectMapper{}
}

// MapEventToSubject converts a domain event to its corresponding NATS subject
func (m *EventSubjectMapper) MapEventToSubject(event events.Event) string {
	switch event.Type() {
	case events.EventTypeMatchCreated:
		return "matches.created"
	case events.EventTypeMatchCompleted:
		return "matches.completed"
	case events.EventTypeMatchSettled:
		return "matches.settled"
	case events.EventTypeBalanceChange:
		return "users.balance_changed"
	default:
		return fmt.Sprintf("unknown.%s", event.Type())
	}
}

// GetAllSubjects returns all subjects that this service publishes to
func (m *EventSubjectMapper) GetAllSubjects() []string {
	return []string{
		"matches.created",
		"matches.completed",
		"matches.settled",
		"users.balance_changed",
	}
}
