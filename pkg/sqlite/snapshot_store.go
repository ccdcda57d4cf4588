package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/plaenen/policyadmin/pkg/eventsourcing"
)

// SnapshotStore is a SQLite-based implementation of
// eventsourcing.SnapshotStore. It shares the event store's database, so a
// snapshot and the events it summarizes live in the same file.
type SnapshotStore struct {
	db *sql.DB
}

// NewSnapshotStore creates a snapshot store on the event store's database.
func NewSnapshotStore(es *EventStore) *SnapshotStore {
	return &SnapshotStore{db: es.db}
}

// SaveSnapshot persists a snapshot, replacing any existing snapshot at the
// same version.
func (s *SnapshotStore) SaveSnapshot(snapshot *eventsourcing.Snapshot) error {
	if snapshot == nil {
		return errors.New("snapshot must not be nil")
	}
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO snapshots (aggregate_id, aggregate_type, version, data, timestamp)
		VALUES (?, ?, ?, ?, ?)
	`, snapshot.AggregateID, snapshot.AggregateType, snapshot.Version, snapshot.Data, snapshot.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// GetLatestSnapshot retrieves the most recent snapshot for an aggregate.
func (s *SnapshotStore) GetLatestSnapshot(aggregateID string) (*eventsourcing.Snapshot, error) {
	row := s.db.QueryRow(`
		SELECT aggregate_id, aggregate_type, version, data, timestamp
		FROM snapshots
		WHERE aggregate_id = ?
		ORDER BY version DESC
		LIMIT 1
	`, aggregateID)
	return scanSnapshot(row)
}

// GetSnapshotBeforeVersion retrieves the latest snapshot at or before the
// given version.
func (s *SnapshotStore) GetSnapshotBeforeVersion(aggregateID string, version int64) (*eventsourcing.Snapshot, error) {
	row := s.db.QueryRow(`
		SELECT aggregate_id, aggregate_type, version, data, timestamp
		FROM snapshots
		WHERE aggregate_id = ? AND version <= ?
		ORDER BY version DESC
		LIMIT 1
	`, aggregateID, version)
	return scanSnapshot(row)
}

// DeleteOldSnapshots removes snapshots older than the given version.
func (s *SnapshotStore) DeleteOldSnapshots(aggregateID string, olderThanVersion int64) error {
	_, err := s.db.Exec(`
		DELETE FROM snapshots WHERE aggregate_id = ? AND version < ?
	`, aggregateID, olderThanVersion)
	if err != nil {
		return fmt.Errorf("failed to delete old snapshots: %w", err)
	}
	return nil
}

func scanSnapshot(row *sql.Row) (*eventsourcing.Snapshot, error) {
	var (
		snap    eventsourcing.Snapshot
		tsNanos int64
	)
	err := row.Scan(&snap.AggregateID, &snap.AggregateType, &snap.Version, &snap.Data, &tsNanos)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eventsourcing.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	snap.CreatedAt = time.Unix(0, tsNanos).UTC()
	return &snap, nil
}
