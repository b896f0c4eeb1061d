package memoryengine

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/AntonStoeckl/deterministic-statemachine-go/statemachine"
)

// Journal is an in-memory record of dispatched StateChanges.
//
// Unlike a StateManager, a Journal may be shared between goroutines; all
// operations are guarded by a mutex. The optimistic concurrency semantics of
// Append mirror the PostgreSQL journal engine.
type Journal struct {
	mu        sync.Mutex
	changes   statemachine.StorableChanges
	snapshots map[statemachine.StateTypeString]statemachine.Snapshot
}

// NewJournal creates an empty in-memory Journal.
func NewJournal() *Journal {
	return &Journal{
		changes:   make(statemachine.StorableChanges, 0),
		snapshots: make(map[statemachine.StateTypeString]statemachine.Snapshot),
	}
}

// ReadChanges returns all recorded changes with a sequence number higher than
// afterSequence, in sequence order, together with the highest sequence number
// seen. The returned sequence number is never lower than afterSequence, the
// same guarantee the PostgreSQL journal engine gives, so callers can Append
// against it even when the tail is empty.
//
// Sequence numbers start at 1 for the first recorded change.
func (j *Journal) ReadChanges(_ context.Context, afterSequence statemachine.MaxSequenceNumberUint) (
	statemachine.StorableChanges,
	statemachine.MaxSequenceNumberUint,
	error,
) {

	j.mu.Lock()
	defer j.mu.Unlock()

	maxSequenceNumber := statemachine.MaxSequenceNumberUint(len(j.changes))

	if afterSequence >= maxSequenceNumber {
		return make(statemachine.StorableChanges, 0), max(afterSequence, maxSequenceNumber), nil
	}

	return slices.Clone(j.changes[afterSequence:]), maxSequenceNumber, nil
}

// Append records one or multiple changes if no other writer has appended
// since the caller observed expectedMaxSequenceNumber; otherwise it returns
// statemachine.ErrConcurrencyConflict and records nothing.
func (j *Journal) Append(
	_ context.Context,
	expectedMaxSequenceNumber statemachine.MaxSequenceNumberUint,
	change statemachine.StorableChange,
	additionalChanges ...statemachine.StorableChange,
) error {

	j.mu.Lock()
	defer j.mu.Unlock()

	if statemachine.MaxSequenceNumberUint(len(j.changes)) != expectedMaxSequenceNumber {
		return statemachine.ErrConcurrencyConflict
	}

	j.changes = append(j.changes, change)
	j.changes = append(j.changes, additionalChanges...)

	return nil
}

// SaveSnapshot stores a state snapshot, replacing any existing snapshot for
// the same state type. The snapshot is validated before anything is stored.
func (j *Journal) SaveSnapshot(_ context.Context, snapshot statemachine.Snapshot) error {
	if err := snapshot.Validate(); err != nil {
		return errors.Join(statemachine.ErrSavingSnapshotFailed, err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	j.snapshots[snapshot.StateType] = snapshot

	return nil
}

// LoadSnapshot retrieves the stored snapshot for the given state type.
// It returns nil without error when no snapshot exists.
func (j *Journal) LoadSnapshot(_ context.Context, stateType statemachine.StateTypeString) (*statemachine.Snapshot, error) {
	if stateType == "" {
		return nil, errors.Join(statemachine.ErrLoadingSnapshotFailed, statemachine.ErrEmptyStateType)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	snapshot, found := j.snapshots[stateType]
	if !found {
		return nil, nil
	}

	return &snapshot, nil
}

// DeleteSnapshot removes the stored snapshot for the given state type.
// Deleting a snapshot that does not exist is not an error.
func (j *Journal) DeleteSnapshot(_ context.Context, stateType statemachine.StateTypeString) error {
	if stateType == "" {
		return errors.Join(statemachine.ErrDeletingSnapshotFailed, statemachine.ErrEmptyStateType)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	delete(j.snapshots, stateType)

	return nil
}
