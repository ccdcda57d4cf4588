package eventsourcing

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Event represents a domain event that has occurred in the system.
// Events are immutable facts about state changes.
type Event struct {
	// ID is the unique identifier for this event (deterministic when a
	// command ID is set on the aggregate).
	ID string `json:"id"`

	// AggregateID is the identifier of the aggregate this event belongs to.
	AggregateID string `json:"aggregateId"`

	// AggregateType is the type name of the aggregate (e.g. "QuoteAggregate").
	AggregateType string `json:"aggregateType"`

	// EventType is the registered type name of the event payload
	// (e.g. "quote.PolicyIssued"). It doubles as the polymorphic type tag
	// used to reconstruct the concrete payload on replay.
	EventType string `json:"eventType"`

	// Version is the version number of the aggregate after applying this event.
	Version int64 `json:"version"`

	// Timestamp is when the event was created.
	Timestamp time.Time `json:"timestamp"`

	// Data is the JSON-serialized payload of the event.
	Data []byte `json:"data"`

	// Metadata contains additional contextual information.
	Metadata EventMetadata `json:"metadata"`
}

// EventMetadata contains contextual information about an event.
type EventMetadata struct {
	// CausationID is the ID of the command that caused this event.
	CausationID string `json:"causationId,omitempty"`

	// CorrelationID is used to trace related events across aggregates.
	CorrelationID string `json:"correlationId,omitempty"`

	// PrincipalID identifies the principal (user, service, system) who
	// triggered this event.
	PrincipalID string `json:"principalId,omitempty"`

	// Custom allows for application-specific metadata.
	Custom map[string]string `json:"custom,omitempty"`
}

// EventEnvelope wraps an event with its decoded payload.
type EventEnvelope struct {
	Event
	Payload any
}

// EventStore defines the interface for persisting and retrieving events.
type EventStore interface {
	// AppendEvents appends events to an aggregate's stream atomically.
	// Returns ErrConcurrencyConflict if expectedVersion doesn't match the
	// stream's current version.
	AppendEvents(aggregateID string, expectedVersion int64, events []*Event) error

	// LoadEvents loads all events for an aggregate starting after afterVersion.
	LoadEvents(aggregateID string, afterVersion int64) ([]*Event, error)

	// LoadAllEvents loads events from all aggregates in append order,
	// for projection building.
	LoadAllEvents(fromPosition int64, limit int) ([]*Event, error)

	// GetAggregateVersion returns the current version of an aggregate.
	// Returns 0 if the aggregate doesn't exist.
	GetAggregateVersion(aggregateID string) (int64, error)

	// Close closes the event store and releases resources.
	Close() error
}

// EventBus defines the interface for publishing and subscribing to events.
type EventBus interface {
	// Publish publishes events to all subscribers.
	Publish(events []*Event) error

	// Subscribe subscribes to events matching the filter.
	Subscribe(filter EventFilter, handler EventHandler) (Subscription, error)

	// Close closes the event bus and releases resources.
	Close() error
}

// EventFilter defines criteria for filtering events.
type EventFilter struct {
	// AggregateTypes filters by aggregate type (empty = all types).
	AggregateTypes []string

	// EventTypes filters by event type (empty = all types).
	EventTypes []string
}

// EventHandler processes an event. Return an error to nack the event
// (it will be retried based on bus configuration).
type EventHandler func(event *EventEnvelope) error

// Subscription represents an active event subscription.
type Subscription interface {
	// Unsubscribe stops receiving events and cleans up resources.
	Unsubscribe() error
}

// GenerateDeterministicEventID generates a deterministic event ID from
// command context. The same command always produces the same event IDs.
func GenerateDeterministicEventID(commandID, aggregateID string, sequence int) string {
	h := sha256.New()
	h.Write([]byte(fmt.Sprintf("%s:%s:%d", commandID, aggregateID, sequence)))
	return hex.EncodeToString(h.Sum(nil))[:32]
}
