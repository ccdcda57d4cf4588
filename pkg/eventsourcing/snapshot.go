package eventsourcing

import "time"

// Snapshot represents a serialized aggregate state at a specific version.
// Snapshots are an optimization only: any aggregate state is always fully
// derivable by replaying its event stream from empty.
type Snapshot struct {
	AggregateID   string
	AggregateType string
	Version       int64
	Data          []byte
	CreatedAt     time.Time
}

// SnapshotStore defines the interface for snapshot persistence.
type SnapshotStore interface {
	// SaveSnapshot persists a snapshot for an aggregate.
	SaveSnapshot(snapshot *Snapshot) error

	// GetLatestSnapshot retrieves the most recent snapshot for an aggregate.
	GetLatestSnapshot(aggregateID string) (*Snapshot, error)

	// GetSnapshotBeforeVersion retrieves the latest snapshot at or before a
	// specific version.
	GetSnapshotBeforeVersion(aggregateID string, version int64) (*Snapshot, error)

	// DeleteOldSnapshots removes snapshots older than the specified version
	// for an aggregate.
	DeleteOldSnapshots(aggregateID string, olderThanVersion int64) error
}

// SnapshotStrategy defines when snapshots should be created.
type SnapshotStrategy interface {
	// ShouldCreateSnapshot determines if a snapshot should be created based
	// on the aggregate's current state.
	ShouldCreateSnapshot(currentVersion int64, eventsSinceLastSnapshot int64) bool
}

// IntervalSnapshotStrategy creates snapshots every N events.
type IntervalSnapshotStrategy struct {
	Interval int64
}

// NewIntervalSnapshotStrategy creates a strategy that snapshots every N events.
func NewIntervalSnapshotStrategy(interval int64) *IntervalSnapshotStrategy {
	return &IntervalSnapshotStrategy{Interval: interval}
}

// ShouldCreateSnapshot checks if we've passed the interval threshold.
func (s *IntervalSnapshotStrategy) ShouldCreateSnapshot(currentVersion int64, eventsSinceLastSnapshot int64) bool {
	if s.Interval <= 0 {
		return false
	}
	return eventsSinceLastSnapshot >= s.Interval
}
