// Package nats distributes committed events over NATS JetStream so
// projections and integrations can consume them with at-least-once
// delivery.
package nats

import (
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/plaenen/policyadmin/pkg/eventsourcing"
)

// EventBus is a NATS-based implementation of eventsourcing.EventBus.
// Uses JetStream for durable event streaming with at-least-once delivery.
type EventBus struct {
	nc         *nats.Conn
	js         nats.JetStreamContext
	streamName string
	mu         sync.RWMutex
	subs       map[string]*nats.Subscription
}

// Config holds configuration for the NATS event bus.
type Config struct {
	// URL is the NATS server URL.
	URL string

	// StreamName is the JetStream stream name for events.
	StreamName string

	// StreamSubjects are the subjects the stream captures.
	StreamSubjects []string

	// MaxAge is how long to retain events in the stream.
	MaxAge time.Duration

	// MaxBytes is the maximum bytes the stream can store.
	MaxBytes int64
}

// DefaultConfig returns sensible defaults for the event bus.
func DefaultConfig() Config {
	return Config{
		URL:            nats.DefaultURL,
		StreamName:     "POLICYADMIN_EVENTS",
		StreamSubjects: []string{"policyadmin.events.>"},
		MaxAge:         7 * 24 * time.Hour,
		MaxBytes:       1024 * 1024 * 1024, // 1 GB
	}
}

// NewEventBus connects to NATS and ensures the event stream exists.
func NewEventBus(config Config) (*EventBus, error) {
	nc, err := nats.Connect(config.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	bus := &EventBus{
		nc:         nc,
		js:         js,
		streamName: config.StreamName,
		subs:       make(map[string]*nats.Subscription),
	}

	if err := bus.ensureStream(config); err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to ensure stream: %w", err)
	}

	return bus, nil
}

// ensureStream creates or updates the JetStream stream.
func (b *EventBus) ensureStream(config Config) error {
	streamConfig := &nats.StreamConfig{
		Name:      config.StreamName,
		Subjects:  config.StreamSubjects,
		Retention: nats.InterestPolicy,
		MaxAge:    config.MaxAge,
		MaxBytes:  config.MaxBytes,
		Storage:   nats.FileStorage,
		Replicas:  1,
	}

	stream, err := b.js.StreamInfo(config.StreamName)
	if err != nil {
		if _, err := b.js.AddStream(streamConfig); err != nil {
			return fmt.Errorf("failed to create stream: %w", err)
		}
		return nil
	}

	if stream.Config.MaxAge != config.MaxAge || stream.Config.MaxBytes != config.MaxBytes {
		if _, err := b.js.UpdateStream(streamConfig); err != nil {
			return fmt.Errorf("failed to update stream: %w", err)
		}
	}

	return nil
}

// Publish publishes committed events to JetStream. The event ID doubles as
// the JetStream message ID, so redeliveries of the same commit deduplicate.
func (b *EventBus) Publish(events []*eventsourcing.Event) error {
	if len(events) == 0 {
		return nil
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, event := range events {
		eventJSON, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("failed to serialize event %s: %w", event.ID, err)
		}

		subject := fmt.Sprintf("policyadmin.events.%s.%s", event.AggregateType, event.EventType)

		if _, err := b.js.Publish(subject, eventJSON, nats.MsgId(event.ID)); err != nil {
			return fmt.Errorf("failed to publish event %s: %w", event.ID, err)
		}
	}

	return nil
}

// Subscribe creates a durable queue subscription matching the filter. The
// handler receives the envelope with the payload already decoded when its
// event type is registered; unregistered types pass through with a nil
// payload so generic relays can still forward them.
func (b *EventBus) Subscribe(filter eventsourcing.EventFilter, handler eventsourcing.EventHandler) (eventsourcing.Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subject := b.buildSubject(filter)
	consumerName := fmt.Sprintf("consumer_%s", eventsourcing.GenerateID()[:8])

	sub, err := b.js.QueueSubscribe(
		subject,
		consumerName,
		func(msg *nats.Msg) {
			var event eventsourcing.Event
			if err := json.Unmarshal(msg.Data, &event); err != nil {
				msg.Nak()
				return
			}

			if !matchesFilter(filter, &event) {
				msg.Ack() // Not for this consumer; don't redeliver.
				return
			}

			envelope := &eventsourcing.EventEnvelope{Event: event}
			if payload, err := eventsourcing.Decode(&event); err == nil {
				envelope.Payload = payload
			}

			if err := handler(envelope); err != nil {
				msg.Nak()
				return
			}
			msg.Ack()
		},
		nats.Durable(consumerName),
		nats.ManualAck(),
		nats.AckExplicit(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	b.subs[consumerName] = sub

	return &subscription{
		bus:          b,
		sub:          sub,
		consumerName: consumerName,
	}, nil
}

// buildSubject builds a NATS subject from an event filter.
func (b *EventBus) buildSubject(filter eventsourcing.EventFilter) string {
	if len(filter.AggregateTypes) == 0 && len(filter.EventTypes) == 0 {
		return "policyadmin.events.>"
	}

	if len(filter.AggregateTypes) == 1 && len(filter.EventTypes) == 0 {
		return fmt.Sprintf("policyadmin.events.%s.>", filter.AggregateTypes[0])
	}

	if len(filter.AggregateTypes) == 1 && len(filter.EventTypes) == 1 {
		return fmt.Sprintf("policyadmin.events.%s.%s", filter.AggregateTypes[0], filter.EventTypes[0])
	}

	// Complex filters subscribe to everything and filter in the handler.
	return "policyadmin.events.>"
}

// matchesFilter reports whether an event passes the subscription's filter.
// Single-type filters are already narrowed by subject; this covers the
// multi-type case where the subscription listens on the whole namespace.
func matchesFilter(filter eventsourcing.EventFilter, event *eventsourcing.Event) bool {
	if len(filter.AggregateTypes) > 0 && !slices.Contains(filter.AggregateTypes, event.AggregateType) {
		return false
	}
	if len(filter.EventTypes) > 0 && !slices.Contains(filter.EventTypes, event.EventType) {
		return false
	}
	return true
}

// Close closes the event bus and all subscriptions.
func (b *EventBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subs {
		sub.Unsubscribe()
	}

	b.nc.Close()
	return nil
}

type subscription struct {
	bus          *EventBus
	sub          *nats.Subscription
	consumerName string
}

func (s *subscription) Unsubscribe() error {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()

	delete(s.bus.subs, s.consumerName)
	return s.sub.Unsubscribe()
}
