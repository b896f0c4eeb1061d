package shell

import (
	"errors"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"github.com/AntonStoeckl/deterministic-statemachine-go/statemachine"
)

var ErrMappingToChangeMetadataFailed = errors.New("mapping to change metadata failed")

type MessageID = string
type CausationID = string
type CorrelationID = string

type ChangeMetadata struct {
	MessageID     MessageID
	CausationID   CausationID
	CorrelationID CorrelationID
}

func BuildChangeMetadata(messageID uuid.UUID, causationID uuid.UUID, correlationID uuid.UUID) ChangeMetadata {
	return ChangeMetadata{
		MessageID:     messageID.String(),
		CausationID:   causationID.String(),
		CorrelationID: correlationID.String(),
	}
}

func ChangeMetadataFrom(storableChange statemachine.StorableChange) (ChangeMetadata, error) {
	metadata := new(ChangeMetadata)
	err := jsoniter.ConfigFastest.Unmarshal(storableChange.MetadataJSON, metadata)
	if err != nil {
		return ChangeMetadata{}, errors.Join(ErrMappingToChangeMetadataFailed, err)
	}

	return *metadata, nil
}
