package shell

import (
	"encoding/json"
	"errors"

	"github.com/AntonStoeckl/deterministic-statemachine-go/statemachine"
	"github.com/AntonStoeckl/deterministic-statemachine-go/test/userland/core"
)

var ErrMappingStorableChangeFromStateChange = errors.New("mapping storable change from state change failed")

func StorableChangeFrom(change core.ChannelStateChange) (statemachine.StorableChange, error) {
	payloadJSON, err := json.Marshal(change)
	if err != nil {
		return statemachine.StorableChange{}, errors.Join(ErrMappingStorableChangeFromStateChange, err)
	}

	storableChange, buildErr := statemachine.BuildStorableChangeWithEmptyMetadata(change.ChangeType(), change.HasOccurredAt(), payloadJSON)
	if buildErr != nil {
		return statemachine.StorableChange{}, errors.Join(ErrMappingStorableChangeFromStateChange, buildErr)
	}

	return storableChange, nil
}

func StorableChangeWithMetadataFrom(change core.ChannelStateChange, metadata ChangeMetadata) (statemachine.StorableChange, error) {
	payloadJSON, err := json.Marshal(change)
	if err != nil {
		return statemachine.StorableChange{}, errors.Join(ErrMappingStorableChangeFromStateChange, err)
	}

	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return statemachine.StorableChange{}, errors.Join(ErrMappingStorableChangeFromStateChange, err)
	}

	storableChange, buildErr := statemachine.BuildStorableChange(change.ChangeType(), change.HasOccurredAt(), payloadJSON, metadataJSON)
	if buildErr != nil {
		return statemachine.StorableChange{}, errors.Join(ErrMappingStorableChangeFromStateChange, buildErr)
	}

	return storableChange, nil
}
