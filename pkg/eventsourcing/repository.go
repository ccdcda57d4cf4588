package eventsourcing

import (
	"errors"
	"fmt"
	"time"
)

// Repository provides persistence operations for aggregates.
type Repository[T Aggregate] interface {
	// Load loads an aggregate by ID, restoring from the latest snapshot
	// when one is available and replaying the remaining events.
	Load(id string) (T, error)

	// Save persists an aggregate's uncommitted events to the event store.
	Save(aggregate T) error

	// Exists checks if an aggregate exists.
	Exists(id string) (bool, error)
}

// BaseRepository provides a snapshot-aware implementation of Repository.
type BaseRepository[T Aggregate] struct {
	eventStore    EventStore
	aggregateType string
	factory       func(id string) T
	snapshots     SnapshotStore
	strategy      SnapshotStrategy
	bus           EventBus
}

// RepositoryOption configures a BaseRepository.
type RepositoryOption[T Aggregate] func(*BaseRepository[T])

// WithSnapshots enables snapshot restore and creation. The strategy decides
// when a new snapshot is written after a save.
func WithSnapshots[T Aggregate](store SnapshotStore, strategy SnapshotStrategy) RepositoryOption[T] {
	return func(r *BaseRepository[T]) {
		r.snapshots = store
		r.strategy = strategy
	}
}

// WithEventBus publishes committed events to the bus after a successful save.
func WithEventBus[T Aggregate](bus EventBus) RepositoryOption[T] {
	return func(r *BaseRepository[T]) {
		r.bus = bus
	}
}

// NewRepository creates a new repository for the given aggregate type.
// factory creates an empty aggregate instance ready for replay.
func NewRepository[T Aggregate](
	eventStore EventStore,
	aggregateType string,
	factory func(id string) T,
	opts ...RepositoryOption[T],
) *BaseRepository[T] {
	r := &BaseRepository[T]{
		eventStore:    eventStore,
		aggregateType: aggregateType,
		factory:       factory,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Load loads an aggregate by ID from the event store.
func (r *BaseRepository[T]) Load(id string) (T, error) {
	var zero T

	aggregate := r.factory(id)
	afterVersion := int64(0)

	if r.snapshots != nil {
		snapshot, err := r.snapshots.GetLatestSnapshot(id)
		if err == nil {
			if err := r.restoreFromSnapshot(aggregate, snapshot); err != nil {
				return zero, err
			}
			afterVersion = snapshot.Version
		} else if !errors.Is(err, ErrSnapshotNotFound) {
			return zero, fmt.Errorf("failed to load snapshot: %w", err)
		}
	}

	events, err := r.eventStore.LoadEvents(id, afterVersion)
	if err != nil {
		return zero, fmt.Errorf("failed to load events: %w", err)
	}

	if afterVersion == 0 && len(events) == 0 {
		return zero, ErrAggregateNotFound
	}

	if err := r.ApplyEventsAfterSnapshot(aggregate, events); err != nil {
		return zero, err
	}

	return aggregate, nil
}

// ApplyEventsAfterSnapshot replays events onto an aggregate that has already
// been restored to an earlier version (or is empty). Events at or below the
// aggregate's current version are skipped.
func (r *BaseRepository[T]) ApplyEventsAfterSnapshot(aggregate T, events []*Event) error {
	for _, event := range events {
		if event.Version <= aggregate.Version() {
			continue
		}
		if err := aggregate.ApplyEvent(event); err != nil {
			return fmt.Errorf("failed to apply event %s at version %d: %w",
				event.EventType, event.Version, err)
		}
	}
	return nil
}

func (r *BaseRepository[T]) restoreFromSnapshot(aggregate T, snapshot *Snapshot) error {
	snapshotter, ok := any(aggregate).(Snapshotter)
	if !ok {
		return fmt.Errorf("aggregate type %s does not support snapshots", r.aggregateType)
	}
	if err := snapshotter.UnmarshalSnapshot(snapshot.Data); err != nil {
		return fmt.Errorf("failed to restore snapshot at version %d: %w", snapshot.Version, err)
	}
	return nil
}

// Save persists an aggregate's uncommitted events.
func (r *BaseRepository[T]) Save(aggregate T) error {
	uncommittedEvents := aggregate.UncommittedEvents()
	if len(uncommittedEvents) == 0 {
		return nil // Nothing to save
	}

	// Expected version is the version before the new events.
	expectedVersion := aggregate.Version() - int64(len(uncommittedEvents))

	if err := r.eventStore.AppendEvents(aggregate.ID(), expectedVersion, uncommittedEvents); err != nil {
		return fmt.Errorf("failed to append events: %w", err)
	}

	aggregate.ClearUncommittedEvents()

	if r.bus != nil {
		if err := r.bus.Publish(uncommittedEvents); err != nil {
			// Events are already durable in the store; distribution is
			// at-least-once and can be caught up from the store.
			return fmt.Errorf("events persisted but publish failed: %w", err)
		}
	}

	r.maybeSnapshot(aggregate, expectedVersion)

	return nil
}

func (r *BaseRepository[T]) maybeSnapshot(aggregate T, previousVersion int64) {
	if r.snapshots == nil || r.strategy == nil {
		return
	}

	snapshotter, ok := any(aggregate).(Snapshotter)
	if !ok {
		return
	}

	eventsSince := aggregate.Version()
	if latest, err := r.snapshots.GetLatestSnapshot(aggregate.ID()); err == nil {
		eventsSince = aggregate.Version() - latest.Version
	}

	if !r.strategy.ShouldCreateSnapshot(aggregate.Version(), eventsSince) {
		return
	}

	data, err := snapshotter.MarshalSnapshot()
	if err != nil {
		return // Snapshots are an optimization; failure must not fail the save.
	}

	_ = r.snapshots.SaveSnapshot(&Snapshot{
		AggregateID:   aggregate.ID(),
		AggregateType: r.aggregateType,
		Version:       aggregate.Version(),
		Data:          data,
		CreatedAt:     Now(),
	})
}

// Exists checks if an aggregate exists in the event store.
func (r *BaseRepository[T]) Exists(id string) (bool, error) {
	version, err := r.eventStore.GetAggregateVersion(id)
	if err != nil {
		return false, fmt.Errorf("failed to check aggregate existence: %w", err)
	}
	return version > 0, nil
}

// RetryOnConflict executes a function with retry logic for optimistic
// concurrency conflicts. The function receives a freshly loaded aggregate on
// each attempt.
func (r *BaseRepository[T]) RetryOnConflict(id string, maxRetries int, fn func(T) error) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		agg, err := r.Load(id)
		if err != nil {
			return err
		}

		if err := fn(agg); err != nil {
			return err
		}

		lastErr = r.Save(agg)
		if lastErr == nil {
			return nil
		}
		if !errors.Is(lastErr, ErrConcurrencyConflict) {
			return lastErr
		}

		// Brief backoff before retry (10ms, 20ms, 40ms)
		time.Sleep(time.Duration(10*(1<<uint(attempt))) * time.Millisecond)
	}
	return lastErr
}
