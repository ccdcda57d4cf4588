package eventsourcing

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Registry maps event type tags to payload factories. It is the polymorphic
// half of the serialization contract: envelopes carry an EventType string,
// and the registry reconstructs the concrete payload struct on replay.
//
// The event catalog of an aggregate is a closed set. Each payload type is
// registered exactly once, from an init function next to its definition;
// registering the same tag twice panics so a duplicated handler is caught
// at process start rather than at replay time.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]func() any
}

// NewRegistry creates an empty event type registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]func() any)}
}

// DefaultRegistry is the process-wide registry used by Decode and the
// package-level Register. Domain packages register their event catalogs
// here from init.
var DefaultRegistry = NewRegistry()

// Register registers an event payload factory under its type tag.
// Panics if the tag is already registered.
func (r *Registry) Register(eventType string, factory func() any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[eventType]; exists {
		panic(fmt.Sprintf("eventsourcing: event type %q registered twice", eventType))
	}
	r.factories[eventType] = factory
}

// New creates a zero-valued payload for the given type tag.
func (r *Registry) New(eventType string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	factory, ok := r.factories[eventType]
	if !ok {
		return nil, false
	}
	return factory(), true
}

// Types returns all registered event type tags.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}
	return types
}

// Decode reconstructs the concrete payload of an event envelope.
// Returns ErrUnknownEventType if the tag was never registered.
func (r *Registry) Decode(event *Event) (any, error) {
	payload, ok := r.New(event.EventType)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEventType, event.EventType)
	}
	if len(event.Data) > 0 {
		if err := json.Unmarshal(event.Data, payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s payload: %w", event.EventType, err)
		}
	}
	return payload, nil
}

// Register registers an event payload factory in the default registry.
func Register(eventType string, factory func() any) {
	DefaultRegistry.Register(eventType, factory)
}

// Decode reconstructs the concrete payload of an event envelope using the
// default registry.
func Decode(event *Event) (any, error) {
	return DefaultRegistry.Decode(event)
}
