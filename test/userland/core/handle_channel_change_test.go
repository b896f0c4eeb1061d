package core_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/deterministic-statemachine-go/statemachine"
	"github.com/AntonStoeckl/deterministic-statemachine-go/test/userland/core"
)

func Test_HandleChannelChange_ChannelOpened_SeedsAbsentState(t *testing.T) {
	// given
	change := core.BuildChannelOpened(uuid.New(), 100, 50, time.Now())

	// when
	iteration := core.HandleChannelChange(nil, change)

	// then
	state, isChannelState := iteration.NextState.(core.ChannelState)
	require.True(t, isChannelState)
	assert.Equal(t, change.ChannelID, state.ChannelID)
	assert.Equal(t, uint64(100), state.OurBalance)
	assert.Equal(t, uint64(50), state.PartnerBalance)
	assert.Equal(t, core.ChannelStatusOpened, state.Status)

	require.Len(t, iteration.Events, 1)
	assert.Equal(t, core.BalanceUpdatedEventType, iteration.Events[0].EventType())
}

func Test_HandleChannelChange_ChannelOpened_OnExistingState_IsANoOp(t *testing.T) {
	// given
	current := openChannelState(uuid.New(), 100, 50)

	// when: a second opening arrives
	iteration := core.HandleChannelChange(current, core.BuildChannelOpened(uuid.New(), 1, 2, time.Now()))

	// then
	assert.Equal(t, current, iteration.NextState)
	assert.Empty(t, iteration.Events)
}

func Test_HandleChannelChange_DepositObserved(t *testing.T) {
	// given
	channelID := uuid.New()
	current := openChannelState(channelID, 100, 50)

	// when
	iteration := core.HandleChannelChange(current, core.BuildDepositObserved(channelID, 25, time.Now()))

	// then
	state := iteration.NextState.(core.ChannelState)
	assert.Equal(t, uint64(125), state.OurBalance)
	assert.Equal(t, uint64(50), state.PartnerBalance)
}

func Test_HandleChannelChange_DepositObserved_ForDifferentChannel_IsANoOp(t *testing.T) {
	// given
	current := openChannelState(uuid.New(), 100, 50)

	// when: the deposit belongs to another channel
	iteration := core.HandleChannelChange(current, core.BuildDepositObserved(uuid.New(), 25, time.Now()))

	// then
	assert.Equal(t, current, iteration.NextState)
	assert.Empty(t, iteration.Events)
}

func Test_HandleChannelChange_TransferReceived_MovesBalances(t *testing.T) {
	// given
	channelID := uuid.New()
	transferID := uuid.New()
	current := openChannelState(channelID, 100, 50)

	// when
	iteration := core.HandleChannelChange(
		current, core.BuildTransferReceived(channelID, transferID, 30, time.Now()))

	// then
	state := iteration.NextState.(core.ChannelState)
	assert.Equal(t, uint64(130), state.OurBalance)
	assert.Equal(t, uint64(20), state.PartnerBalance)
	assert.Contains(t, state.PendingTransfers, transferID.String())

	require.Len(t, iteration.Events, 2)
	assert.Equal(t, core.TransferAcceptedEventType, iteration.Events[0].EventType())
	assert.Equal(t, core.BalanceUpdatedEventType, iteration.Events[1].EventType())
}

func Test_HandleChannelChange_TransferReceived_RejectionCases(t *testing.T) {
	channelID := uuid.New()
	transferID := uuid.New()

	current := openChannelState(channelID, 100, 50)
	current.PendingTransfers[transferID.String()] = 10

	tests := []struct {
		name           string
		change         core.TransferReceived
		expectedReason string
	}{
		{
			name:           "duplicate transfer id",
			change:         core.BuildTransferReceived(channelID, transferID, 10, time.Now()),
			expectedReason: core.RejectReasonDuplicateTransfer,
		},
		{
			name:           "amount exceeds partner balance",
			change:         core.BuildTransferReceived(channelID, uuid.New(), 999, time.Now()),
			expectedReason: core.RejectReasonInsufficientBalance,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			iteration := core.HandleChannelChange(current, tt.change)

			// the rejection is an event, the state does not move
			assert.Equal(t, current, iteration.NextState)
			require.Len(t, iteration.Events, 1)

			rejected, isRejected := iteration.Events[0].(core.TransferRejected)
			require.True(t, isRejected)
			assert.Equal(t, tt.expectedReason, rejected.Reason)
		})
	}
}

func Test_HandleChannelChange_ChannelClosed_ClearsTheState(t *testing.T) {
	// given
	channelID := uuid.New()
	current := openChannelState(channelID, 130, 20)

	// when
	iteration := core.HandleChannelChange(current, core.BuildChannelClosed(channelID, time.Now()))

	// then: the next state is absent
	assert.Nil(t, iteration.NextState)

	require.Len(t, iteration.Events, 1)
	settled, isSettled := iteration.Events[0].(core.ChannelSettled)
	require.True(t, isSettled)
	assert.Equal(t, uint64(130), settled.FinalOurBalance)
	assert.Equal(t, uint64(20), settled.FinalPartnerBalance)
}

func Test_HandleChannelChange_UnknownChange_IsANoOp(t *testing.T) {
	// given
	current := openChannelState(uuid.New(), 100, 50)

	// when
	iteration := core.HandleChannelChange(current, someOtherChange{})

	// then
	assert.Equal(t, current, iteration.NextState)
	assert.Empty(t, iteration.Events)
}

func Test_HandleChannelChange_DoesNotMutateTheGivenState(t *testing.T) {
	// given
	channelID := uuid.New()
	current := openChannelState(channelID, 100, 50)

	// when
	_ = core.HandleChannelChange(
		current, core.BuildTransferReceived(channelID, uuid.New(), 30, time.Now()))

	// then: the input state is untouched
	assert.Equal(t, uint64(100), current.OurBalance)
	assert.Equal(t, uint64(50), current.PartnerBalance)
	assert.Empty(t, current.PendingTransfers)
}

/***** test helpers *****/

type someOtherChange struct{}

func (c someOtherChange) ChangeType() statemachine.ChangeTypeString {
	return "SomeOtherChange"
}

func openChannelState(channelID uuid.UUID, ourBalance uint64, partnerBalance uint64) core.ChannelState {
	return core.ChannelState{
		ChannelID:        channelID.String(),
		OurBalance:       ourBalance,
		PartnerBalance:   partnerBalance,
		Status:           core.ChannelStatusOpened,
		PendingTransfers: make(map[core.TransferIDString]uint64),
	}
}
