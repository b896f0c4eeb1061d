package statemachine

import (
	"encoding/json"
	"errors"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var (
	// ErrInvalidSnapshotJSON is returned when snapshot JSON data is malformed or invalid.
	ErrInvalidSnapshotJSON = errors.New("snapshot json is not valid")

	// ErrEmptyStateType is returned when an empty state type is provided.
	ErrEmptyStateType = errors.New("state type must not be empty")

	// ErrSavingSnapshotFailed is returned when the snapshot save operation fails.
	ErrSavingSnapshotFailed = errors.New("saving snapshot failed")

	// ErrLoadingSnapshotFailed is returned when the snapshot load operation fails.
	ErrLoadingSnapshotFailed = errors.New("loading snapshot failed")

	// ErrDeletingSnapshotFailed is returned when the snapshot delete operation fails.
	ErrDeletingSnapshotFailed = errors.New("deleting snapshot failed")
)

// Snapshot represents a stored state with metadata for incremental replay.
// It contains the serialized state along with the sequence number of the last
// applied change, so a rebuild can resume from that point instead of
// replaying the full change history.
type Snapshot struct {
	StateType      StateTypeString       // Type of the stored state (e.g. "ChannelState")
	SequenceNumber MaxSequenceNumberUint // Last applied change sequence number
	Data           json.RawMessage       // Serialized state as JSON
	CreatedAt      time.Time             // When this snapshot was created/updated
}

// Validate ensures the snapshot has valid data for storage operations.
func (s Snapshot) Validate() error {
	if s.StateType == "" {
		return ErrEmptyStateType
	}

	if !jsoniter.ConfigFastest.Valid(s.Data) {
		return ErrInvalidSnapshotJSON
	}

	return nil
}

// BuildSnapshot creates a new Snapshot with validation.
func BuildSnapshot(
	stateType StateTypeString,
	sequenceNumber MaxSequenceNumberUint,
	data json.RawMessage,
) (Snapshot, error) {

	snapshot := Snapshot{
		StateType:      stateType,
		SequenceNumber: sequenceNumber,
		Data:           data,
		CreatedAt:      time.Now(),
	}

	if err := snapshot.Validate(); err != nil {
		return Snapshot{}, err
	}

	return snapshot, nil
}
