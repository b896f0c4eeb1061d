package shell

import (
	"errors"

	jsoniter "github.com/json-iterator/go"

	"github.com/AntonStoeckl/deterministic-statemachine-go/statemachine"
	"github.com/AntonStoeckl/deterministic-statemachine-go/test/userland/core"
)

var ErrUnknownChangeType = errors.New("unknown change type")

// StateChangeFrom maps a recorded StorableChange back to the domain
// StateChange it was built from. It satisfies statemachine.ChangeDecoder and
// is the one place where the channel domain makes runtime type decisions.
func StateChangeFrom(storableChange statemachine.StorableChange) (statemachine.StateChange, error) {
	switch storableChange.ChangeType {
	case core.ChannelOpenedChangeType:
		payload := new(core.ChannelOpened)

		if err := jsoniter.ConfigFastest.Unmarshal(storableChange.PayloadJSON, payload); err != nil {
			return nil, err
		}

		return *payload, nil

	case core.DepositObservedChangeType:
		payload := new(core.DepositObserved)

		if err := jsoniter.ConfigFastest.Unmarshal(storableChange.PayloadJSON, payload); err != nil {
			return nil, err
		}

		return *payload, nil

	case core.TransferReceivedChangeType:
		payload := new(core.TransferReceived)

		if err := jsoniter.ConfigFastest.Unmarshal(storableChange.PayloadJSON, payload); err != nil {
			return nil, err
		}

		return *payload, nil

	case core.ChannelClosedChangeType:
		payload := new(core.ChannelClosed)

		if err := jsoniter.ConfigFastest.Unmarshal(storableChange.PayloadJSON, payload); err != nil {
			return nil, err
		}

		return *payload, nil

	default:
		return nil, errors.Join(ErrUnknownChangeType, errors.New(storableChange.ChangeType))
	}
}
