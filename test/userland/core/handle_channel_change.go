package core

import (
	"github.com/AntonStoeckl/deterministic-statemachine-go/statemachine"
)

// HandleChannelChange is the transition function of the channel domain.
//
// It is pure: the next state and events depend on nothing but the given state
// and change. Unrecognized changes and changes that do not apply to the
// current state are no-ops; domain-level rejections (a transfer exceeding the
// partner balance, a duplicate transfer id) are communicated as events.
//
// An absent (nil) state represents a channel that does not exist yet or has
// been settled; ChannelOpened is the only change that seeds it.
func HandleChannelChange(current statemachine.State, change statemachine.StateChange) statemachine.Iteration {
	switch typedChange := change.(type) {
	case ChannelOpened:
		return handleChannelOpened(current, typedChange)

	case DepositObserved:
		return handleDepositObserved(current, typedChange)

	case TransferReceived:
		return handleTransferReceived(current, typedChange)

	case ChannelClosed:
		return handleChannelClosed(current, typedChange)

	default:
		return statemachine.NoOpIteration(current)
	}
}

func handleChannelOpened(current statemachine.State, change ChannelOpened) statemachine.Iteration {
	if current != nil {
		// a channel is already tracked, a second opening is a no-op
		return statemachine.NoOpIteration(current)
	}

	nextState := ChannelState{
		ChannelID:        change.ChannelID,
		OurBalance:       change.OurDeposit,
		PartnerBalance:   change.PartnerDeposit,
		Status:           ChannelStatusOpened,
		PendingTransfers: make(map[TransferIDString]uint64),
	}

	return statemachine.BuildIteration(nextState, statemachine.Events{
		BalanceUpdated{
			ChannelID:      nextState.ChannelID,
			OurBalance:     nextState.OurBalance,
			PartnerBalance: nextState.PartnerBalance,
		},
	})
}

func handleDepositObserved(current statemachine.State, change DepositObserved) statemachine.Iteration {
	state, isOpen := openChannel(current, change.ChannelID)
	if !isOpen {
		return statemachine.NoOpIteration(current)
	}

	state.OurBalance += change.Amount

	return statemachine.BuildIteration(state, statemachine.Events{
		BalanceUpdated{
			ChannelID:      state.ChannelID,
			OurBalance:     state.OurBalance,
			PartnerBalance: state.PartnerBalance,
		},
	})
}

func handleTransferReceived(current statemachine.State, change TransferReceived) statemachine.Iteration {
	state, isOpen := openChannel(current, change.ChannelID)
	if !isOpen {
		return statemachine.NoOpIteration(current)
	}

	if _, isDuplicate := state.PendingTransfers[change.TransferID]; isDuplicate {
		return statemachine.BuildIteration(current, statemachine.Events{
			TransferRejected{
				ChannelID:  change.ChannelID,
				TransferID: change.TransferID,
				Amount:     change.Amount,
				Reason:     RejectReasonDuplicateTransfer,
			},
		})
	}

	if change.Amount > state.PartnerBalance {
		return statemachine.BuildIteration(current, statemachine.Events{
			TransferRejected{
				ChannelID:  change.ChannelID,
				TransferID: change.TransferID,
				Amount:     change.Amount,
				Reason:     RejectReasonInsufficientBalance,
			},
		})
	}

	state.PartnerBalance -= change.Amount
	state.OurBalance += change.Amount
	state.PendingTransfers[change.TransferID] = change.Amount

	return statemachine.BuildIteration(state, statemachine.Events{
		TransferAccepted{
			ChannelID:  state.ChannelID,
			TransferID: change.TransferID,
			Amount:     change.Amount,
		},
		BalanceUpdated{
			ChannelID:      state.ChannelID,
			OurBalance:     state.OurBalance,
			PartnerBalance: state.PartnerBalance,
		},
	})
}

func handleChannelClosed(current statemachine.State, change ChannelClosed) statemachine.Iteration {
	state, isOpen := openChannel(current, change.ChannelID)
	if !isOpen {
		return statemachine.NoOpIteration(current)
	}

	return statemachine.BuildIteration(nil, statemachine.Events{
		ChannelSettled{
			ChannelID:           state.ChannelID,
			FinalOurBalance:     state.OurBalance,
			FinalPartnerBalance: state.PartnerBalance,
		},
	})
}

// openChannel returns an independent copy of the current state as an open
// ChannelState for the given channel id, or false if the change does not
// apply to the current state. The copy keeps the transition handlers from
// mutating the state argument through the shared pending transfer map.
func openChannel(current statemachine.State, channelID ChannelIDString) (ChannelState, bool) {
	state, isChannelState := current.(ChannelState)
	if !isChannelState {
		return ChannelState{}, false
	}

	if state.ChannelID != channelID || state.Status != ChannelStatusOpened {
		return ChannelState{}, false
	}

	return state.CloneState().(ChannelState), true
}
