package statemachine

import (
	"encoding/json"
	"errors"
	"time"
)

var ErrInvalidPayloadJSON = errors.New("payload json is not valid")
var ErrInvalidMetadataJSON = errors.New("metadata json is not valid")

// StorableChanges is an alias type for a slice of StorableChange.
type StorableChanges = []StorableChange

// StorableChange is a DTO (data transfer object) used by journal engines to
// record StateChanges and read them back for replay.
//
// It is built on scalars to be completely agnostic of the implementation of
// StateChanges in the client code.
//
// While its properties are exported, it should only be constructed with the
// supplied factory methods:
//   - BuildStorableChange
//   - BuildStorableChangeWithEmptyMetadata
type StorableChange struct {
	ChangeType   string
	OccurredAt   time.Time
	PayloadJSON  []byte
	MetadataJSON []byte
}

// BuildStorableChange is a factory method for StorableChange.
//
// It populates the StorableChange with the given scalar input.
// Returns an error if payloadJSON or metadataJSON are not valid JSON.
func BuildStorableChange(changeType string, occurredAt time.Time, payloadJSON []byte, metadataJSON []byte) (StorableChange, error) {
	if !json.Valid(payloadJSON) {
		return StorableChange{}, ErrInvalidPayloadJSON
	}

	if !json.Valid(metadataJSON) {
		return StorableChange{}, ErrInvalidMetadataJSON
	}

	return StorableChange{
		ChangeType:   changeType,
		OccurredAt:   occurredAt,
		PayloadJSON:  payloadJSON,
		MetadataJSON: metadataJSON,
	}, nil
}

// BuildStorableChangeWithEmptyMetadata is a factory method for StorableChange.
//
// It populates the StorableChange with the given scalar input and creates valid empty JSON for MetadataJSON.
// Returns an error if payloadJSON is not valid JSON.
func BuildStorableChangeWithEmptyMetadata(changeType string, occurredAt time.Time, payloadJSON []byte) (StorableChange, error) {
	return BuildStorableChange(changeType, occurredAt, payloadJSON, []byte("{}"))
}
