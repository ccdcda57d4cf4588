package eventsourcing

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// Aggregate defines the interface that all aggregates must implement.
type Aggregate interface {
	// ID returns the unique identifier of the aggregate.
	ID() string

	// Type returns the type name of the aggregate.
	Type() string

	// Version returns the current version of the aggregate.
	Version() int64

	// ApplyEvent applies a persisted event to the aggregate's state.
	// This is called when loading events from the event store; the
	// aggregate decodes the payload and dispatches on its concrete type.
	ApplyEvent(event *Event) error

	// UncommittedEvents returns events that have been applied but not yet persisted.
	UncommittedEvents() []*Event

	// ClearUncommittedEvents clears the uncommitted events after they've been persisted.
	ClearUncommittedEvents()
}

// Snapshotter is implemented by aggregates that can be snapshotted.
type Snapshotter interface {
	// MarshalSnapshot serializes the aggregate state to bytes.
	MarshalSnapshot() ([]byte, error)

	// UnmarshalSnapshot restores the aggregate state from bytes.
	UnmarshalSnapshot(data []byte) error
}

// AggregateRoot provides base functionality for all aggregates.
// Use this as an embedded type in your aggregate implementations.
type AggregateRoot struct {
	id                string
	aggregateType     string
	version           int64
	uncommittedEvents []*Event
	commandID         string // Current command being processed (for deterministic event IDs)
}

// NewAggregateRoot creates a new aggregate root with the given ID and type.
func NewAggregateRoot(id, aggregateType string) AggregateRoot {
	return AggregateRoot{
		id:                id,
		aggregateType:     aggregateType,
		version:           0,
		uncommittedEvents: make([]*Event, 0),
	}
}

// ID returns the aggregate's unique identifier.
func (a *AggregateRoot) ID() string {
	return a.id
}

// Type returns the aggregate's type name.
func (a *AggregateRoot) Type() string {
	return a.aggregateType
}

// Version returns the aggregate's current version.
func (a *AggregateRoot) Version() int64 {
	return a.version
}

// UncommittedEvents returns events that haven't been persisted yet.
func (a *AggregateRoot) UncommittedEvents() []*Event {
	return a.uncommittedEvents
}

// ClearUncommittedEvents clears the uncommitted events list.
func (a *AggregateRoot) ClearUncommittedEvents() {
	a.uncommittedEvents = make([]*Event, 0)
}

// SetCommandID sets the command ID for deterministic event ID generation.
// This should be called before processing a command.
func (a *AggregateRoot) SetCommandID(commandID string) {
	a.commandID = commandID
}

// Restore resets the root's identity and version, used when restoring an
// aggregate from a snapshot.
func (a *AggregateRoot) Restore(id, aggregateType string, version int64) {
	a.id = id
	a.aggregateType = aggregateType
	a.version = version
	a.uncommittedEvents = make([]*Event, 0)
}

// ApplyChange wraps a new payload in an event envelope and appends it to
// the uncommitted list. This is called when the aggregate produces a new
// event; the caller is responsible for having already mutated state via
// its own apply dispatch.
func (a *AggregateRoot) ApplyChange(payload any, eventType string, metadata EventMetadata) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}

	var eventID string
	if a.commandID != "" {
		// Deterministic ID for idempotency
		eventID = GenerateDeterministicEventID(a.commandID, a.id, len(a.uncommittedEvents))
	} else {
		eventID = generateRandomID()
	}

	evt := &Event{
		ID:            eventID,
		AggregateID:   a.id,
		AggregateType: a.aggregateType,
		EventType:     eventType,
		Version:       a.version + 1,
		Timestamp:     Now(),
		Data:          data,
		Metadata:      metadata,
	}

	a.uncommittedEvents = append(a.uncommittedEvents, evt)
	a.version++

	return evt, nil
}

// LoadFromHistory advances the root's version past the given events.
// The aggregate's own ApplyEvent is responsible for the state itself.
func (a *AggregateRoot) LoadFromHistory(events []*Event) error {
	for _, evt := range events {
		if evt.Version <= a.version {
			continue
		}
		a.version = evt.Version
	}
	return nil
}

// TimeFunc is a function that returns the current time.
// This can be overridden for testing.
var TimeFunc = time.Now

// Now returns the current time using the configured TimeFunc.
func Now() time.Time {
	return TimeFunc()
}

// generateRandomID generates a random unique ID.
func generateRandomID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		panic(err) // Should never happen
	}
	return hex.EncodeToString(b)
}

// GenerateID generates a unique identifier.
func GenerateID() string {
	return generateRandomID()
}
