// Package sqlite persists event streams and snapshots in SQLite. The
// driver is pure Go, so the store runs anywhere without CGo.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/plaenen/policyadmin/pkg/eventsourcing"
)

var tracer = otel.Tracer("github.com/plaenen/policyadmin/pkg/sqlite")

// EventStore is a SQLite-based implementation of eventsourcing.EventStore.
// It provides ACID guarantees for event persistence.
type EventStore struct {
	db *sql.DB
	mu sync.Mutex // Serializes writers; SQLite allows one at a time anyway
}

type eventStoreConfig struct {
	dsn          string
	maxOpenConns int
	maxIdleConns int
	walMode      bool
}

func defaultEventStoreConfig() eventStoreConfig {
	return eventStoreConfig{
		dsn:          "policyadmin.db",
		maxOpenConns: 25,
		maxIdleConns: 5,
		walMode:      true,
	}
}

// EventStoreOption configures an EventStore.
type EventStoreOption func(*eventStoreConfig)

// WithDSN sets the data source name (file path or ":memory:").
func WithDSN(dsn string) EventStoreOption {
	return func(c *eventStoreConfig) {
		c.dsn = dsn
	}
}

// WithMemoryDatabase uses an in-memory database. Intended for tests.
func WithMemoryDatabase() EventStoreOption {
	return func(c *eventStoreConfig) {
		c.dsn = ":memory:"
	}
}

// WithMaxOpenConns sets the maximum number of open connections.
func WithMaxOpenConns(n int) EventStoreOption {
	return func(c *eventStoreConfig) {
		c.maxOpenConns = n
	}
}

// WithMaxIdleConns sets the maximum number of idle connections in the pool.
func WithMaxIdleConns(n int) EventStoreOption {
	return func(c *eventStoreConfig) {
		c.maxIdleConns = n
	}
}

// WithWALMode enables write-ahead logging for better concurrency. Not
// meaningful for :memory: databases.
func WithWALMode(enabled bool) EventStoreOption {
	return func(c *eventStoreConfig) {
		c.walMode = enabled
	}
}

const schema = `
CREATE TABLE IF NOT EXISTS events (
	position       INTEGER PRIMARY KEY AUTOINCREMENT,
	event_id       TEXT NOT NULL UNIQUE,
	aggregate_id   TEXT NOT NULL,
	aggregate_type TEXT NOT NULL,
	event_type     TEXT NOT NULL,
	version        INTEGER NOT NULL,
	timestamp      INTEGER NOT NULL,
	data           BLOB NOT NULL,
	metadata       TEXT NOT NULL,
	UNIQUE (aggregate_id, version)
);
CREATE INDEX IF NOT EXISTS idx_events_aggregate ON events (aggregate_id, version);
CREATE INDEX IF NOT EXISTS idx_events_type ON events (aggregate_type, event_type);

CREATE TABLE IF NOT EXISTS snapshots (
	aggregate_id   TEXT NOT NULL,
	aggregate_type TEXT NOT NULL,
	version        INTEGER NOT NULL,
	data           BLOB NOT NULL,
	timestamp      INTEGER NOT NULL,
	PRIMARY KEY (aggregate_id, version)
);
`

// NewEventStore opens (and if necessary creates) a SQLite event store.
//
// Example usage:
//
//	// Defaults: policyadmin.db, WAL mode
//	store, err := sqlite.NewEventStore()
//
//	// In-memory database for testing
//	store, err := sqlite.NewEventStore(sqlite.WithMemoryDatabase())
func NewEventStore(opts ...EventStoreOption) (*EventStore, error) {
	config := defaultEventStoreConfig()
	for _, opt := range opts {
		opt(&config)
	}

	db, err := sql.Open("sqlite", config.dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A :memory: database exists per connection, so the pool must be a
	// single connection or each query may see a different empty database.
	if config.dsn == ":memory:" {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else {
		db.SetMaxOpenConns(config.maxOpenConns)
		db.SetMaxIdleConns(config.maxIdleConns)
	}
	db.SetConnMaxLifetime(time.Hour)

	store := &EventStore{db: db}

	if config.walMode {
		if _, err := db.Exec(`
			PRAGMA journal_mode = WAL;
			PRAGMA synchronous = NORMAL;
			PRAGMA foreign_keys = ON;
		`); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set WAL mode: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return store, nil
}

// AppendEvents appends events to an aggregate's stream atomically.
func (s *EventStore) AppendEvents(aggregateID string, expectedVersion int64, events []*eventsourcing.Event) error {
	if len(events) == 0 {
		return nil
	}

	_, span := tracer.Start(context.Background(), "sqlite.AppendEvents",
		trace.WithAttributes(
			attribute.String("aggregate.id", aggregateID),
			attribute.Int("events.count", len(events)),
		))
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	currentVersion, err := aggregateVersionTx(tx, aggregateID)
	if err != nil {
		return fmt.Errorf("failed to check current version: %w", err)
	}
	if currentVersion != expectedVersion {
		return eventsourcing.ErrConcurrencyConflict
	}

	stmt, err := tx.Prepare(`
		INSERT INTO events (event_id, aggregate_id, aggregate_type, event_type, version, timestamp, data, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, event := range events {
		metadataJSON, err := json.Marshal(event.Metadata)
		if err != nil {
			return fmt.Errorf("failed to serialize event metadata: %w", err)
		}
		if _, err := stmt.Exec(
			event.ID,
			event.AggregateID,
			event.AggregateType,
			event.EventType,
			event.Version,
			event.Timestamp.UnixNano(),
			event.Data,
			string(metadataJSON),
		); err != nil {
			return fmt.Errorf("failed to insert event: %w", err)
		}
	}

	return tx.Commit()
}

// LoadEvents loads an aggregate's events after the given version, in order.
func (s *EventStore) LoadEvents(aggregateID string, afterVersion int64) ([]*eventsourcing.Event, error) {
	_, span := tracer.Start(context.Background(), "sqlite.LoadEvents",
		trace.WithAttributes(attribute.String("aggregate.id", aggregateID)))
	defer span.End()

	rows, err := s.db.Query(`
		SELECT event_id, aggregate_id, aggregate_type, event_type, version, timestamp, data, metadata
		FROM events
		WHERE aggregate_id = ? AND version > ?
		ORDER BY version ASC
	`, aggregateID, afterVersion)
	if err != nil {
		return nil, fmt.Errorf("failed to load events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// LoadAllEvents loads events across all aggregates in append order,
// starting after fromPosition. limit <= 0 means no limit.
func (s *EventStore) LoadAllEvents(fromPosition int64, limit int) ([]*eventsourcing.Event, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := s.db.Query(`
		SELECT event_id, aggregate_id, aggregate_type, event_type, version, timestamp, data, metadata
		FROM events
		WHERE position > ?
		ORDER BY position ASC
		LIMIT ?
	`, fromPosition, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// GetAggregateVersion returns the stream's current version, 0 if the
// aggregate has no events.
func (s *EventStore) GetAggregateVersion(aggregateID string) (int64, error) {
	var version int64
	err := s.db.QueryRow(`
		SELECT COALESCE(MAX(version), 0) FROM events WHERE aggregate_id = ?
	`, aggregateID).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to get aggregate version: %w", err)
	}
	return version, nil
}

// Close closes the underlying database.
func (s *EventStore) Close() error {
	return s.db.Close()
}

func aggregateVersionTx(tx *sql.Tx, aggregateID string) (int64, error) {
	var version int64
	err := tx.QueryRow(`
		SELECT COALESCE(MAX(version), 0) FROM events WHERE aggregate_id = ?
	`, aggregateID).Scan(&version)
	return version, err
}

func scanEvents(rows *sql.Rows) ([]*eventsourcing.Event, error) {
	var events []*eventsourcing.Event
	for rows.Next() {
		var (
			event        eventsourcing.Event
			tsNanos      int64
			metadataJSON string
		)
		if err := rows.Scan(
			&event.ID,
			&event.AggregateID,
			&event.AggregateType,
			&event.EventType,
			&event.Version,
			&tsNanos,
			&event.Data,
			&metadataJSON,
		); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		event.Timestamp = time.Unix(0, tsNanos).UTC()
		if err := json.Unmarshal([]byte(metadataJSON), &event.Metadata); err != nil {
			return nil, fmt.Errorf("failed to parse event metadata: %w", err)
		}
		events = append(events, &event)
	}
	return events, rows.Err()
}
