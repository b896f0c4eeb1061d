package statemachine_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/deterministic-statemachine-go/statemachine"
	"github.com/AntonStoeckl/deterministic-statemachine-go/test/userland/core"
	"github.com/AntonStoeckl/deterministic-statemachine-go/testutil/observability/testdoubles"
)

func Test_NewStateManager_Construction(t *testing.T) {
	// given
	initialState := core.ChannelState{}

	// when
	manager, err := statemachine.NewStateManager(core.HandleChannelChange, initialState)

	// then
	require.NoError(t, err)
	assert.NotNil(t, manager)
}

func Test_NewStateManager_WithNilTransitionFunction_ShouldFail(t *testing.T) {
	// when
	manager, err := statemachine.NewStateManager(nil, nil)

	// then
	assert.ErrorIs(t, err, statemachine.ErrNoTransitionFunction)
	assert.Nil(t, manager)
}

func Test_NewStateManager_WithNilInitialState_RepresentsAbsentState(t *testing.T) {
	// given
	manager, err := statemachine.NewStateManager(core.HandleChannelChange, nil)
	require.NoError(t, err)

	// when / then
	assert.Nil(t, manager.CurrentState())
}

func Test_Dispatch_SeedsAbsentState(t *testing.T) {
	// given
	manager, channelID := givenManagerWithAbsentState(t)

	// when
	events, err := manager.Dispatch(
		context.Background(),
		core.BuildChannelOpened(channelID, 100, 50, time.Now()),
	)

	// then
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, core.BalanceUpdatedEventType, events[0].EventType())

	state, isChannelState := manager.CurrentState().(core.ChannelState)
	require.True(t, isChannelState)
	assert.Equal(t, channelID.String(), state.ChannelID)
	assert.Equal(t, uint64(100), state.OurBalance)
	assert.Equal(t, uint64(50), state.PartnerBalance)
	assert.Equal(t, core.ChannelStatusOpened, state.Status)
}

func Test_Dispatch_EventOrderIsPreserved(t *testing.T) {
	// given
	manager, channelID := givenOpenChannel(t, 100, 50)

	// when
	events, err := manager.Dispatch(
		context.Background(),
		core.BuildTransferReceived(channelID, uuid.New(), 30, time.Now()),
	)

	// then
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, core.TransferAcceptedEventType, events[0].EventType())
	assert.Equal(t, core.BalanceUpdatedEventType, events[1].EventType())
}

func Test_Dispatch_DomainRejectionIsAnEventNotAnError(t *testing.T) {
	// given
	manager, channelID := givenOpenChannel(t, 100, 50)

	// when: the transfer exceeds the partner balance
	events, err := manager.Dispatch(
		context.Background(),
		core.BuildTransferReceived(channelID, uuid.New(), 999, time.Now()),
	)

	// then
	require.NoError(t, err)
	require.Len(t, events, 1)

	rejected, isRejected := events[0].(core.TransferRejected)
	require.True(t, isRejected)
	assert.Equal(t, core.RejectReasonInsufficientBalance, rejected.Reason)

	// and the balances are untouched
	state := manager.CurrentState().(core.ChannelState)
	assert.Equal(t, uint64(100), state.OurBalance)
	assert.Equal(t, uint64(50), state.PartnerBalance)
}

func Test_Dispatch_UnknownChangeType_IsANoOp(t *testing.T) {
	// given
	manager, _ := givenOpenChannel(t, 100, 50)
	stateBefore := manager.CurrentState()

	// when
	events, err := manager.Dispatch(context.Background(), unknownChange{})

	// then
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.Equal(t, stateBefore, manager.CurrentState())
}

func Test_Dispatch_NilStateChange_IsAContractViolation(t *testing.T) {
	// given
	manager, _ := givenOpenChannel(t, 100, 50)
	stateBefore := manager.CurrentState()

	// when
	events, err := manager.Dispatch(context.Background(), nil)

	// then
	assert.ErrorIs(t, err, statemachine.ErrContractViolation)
	assert.ErrorIs(t, err, statemachine.ErrNilStateChange)
	assert.Nil(t, events)

	// and the state is unchanged
	assert.Equal(t, stateBefore, manager.CurrentState())
}

func Test_Dispatch_NilEventInIteration_IsAContractViolation(t *testing.T) {
	// given: a transition function that violates the iteration contract
	brokenTransition := func(current statemachine.State, _ statemachine.StateChange) statemachine.Iteration {
		return statemachine.BuildIteration(current, statemachine.Events{nil})
	}

	initialState := core.ChannelState{ChannelID: uuid.New().String(), Status: core.ChannelStatusOpened}
	manager, err := statemachine.NewStateManager(brokenTransition, initialState)
	require.NoError(t, err)

	// when
	events, dispatchErr := manager.Dispatch(
		context.Background(),
		core.BuildChannelClosed(uuid.New(), time.Now()),
	)

	// then: nothing is committed
	assert.ErrorIs(t, dispatchErr, statemachine.ErrContractViolation)
	assert.ErrorIs(t, dispatchErr, statemachine.ErrNilEventInIteration)
	assert.Nil(t, events)
	assert.Equal(t, initialState, manager.CurrentState())
}

func Test_Dispatch_TransitionReceivesACopyOfTheCurrentState(t *testing.T) {
	// given: a transition function that mutates the state it is given
	mutatingTransition := func(current statemachine.State, _ statemachine.StateChange) statemachine.Iteration {
		if state, isChannelState := current.(core.ChannelState); isChannelState {
			state.PendingTransfers["sneaky"] = 1
		}

		return statemachine.NoOpIteration(current)
	}

	initialState := core.ChannelState{
		ChannelID:        uuid.New().String(),
		Status:           core.ChannelStatusOpened,
		PendingTransfers: make(map[core.TransferIDString]uint64),
	}
	manager, err := statemachine.NewStateManager(mutatingTransition, initialState)
	require.NoError(t, err)

	// when
	_, dispatchErr := manager.Dispatch(
		context.Background(),
		core.BuildChannelClosed(uuid.New(), time.Now()),
	)
	require.NoError(t, dispatchErr)

	// then: the mutation did not reach the original state value
	assert.Empty(t, initialState.PendingTransfers)
}

func Test_CurrentState_ReturnsAnIndependentCopy(t *testing.T) {
	// given
	manager, channelID := givenOpenChannel(t, 100, 50)

	_, err := manager.Dispatch(
		context.Background(),
		core.BuildTransferReceived(channelID, uuid.New(), 10, time.Now()),
	)
	require.NoError(t, err)

	// when: mutating the returned state
	observed := manager.CurrentState().(core.ChannelState)
	observed.PendingTransfers["tampered"] = 999

	// then: the manager's state is unaffected
	fresh := manager.CurrentState().(core.ChannelState)
	assert.NotContains(t, fresh.PendingTransfers, "tampered")
	assert.Len(t, fresh.PendingTransfers, 1)
}

func Test_Dispatch_AbsenceAndReSeed(t *testing.T) {
	// given
	manager, channelID := givenOpenChannel(t, 100, 50)

	// when: closing the channel
	events, err := manager.Dispatch(
		context.Background(),
		core.BuildChannelClosed(channelID, time.Now()),
	)

	// then: the state is absent
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, core.ChannelSettledEventType, events[0].EventType())
	assert.Nil(t, manager.CurrentState())

	// and: a new channel can be seeded again
	_, err = manager.Dispatch(
		context.Background(),
		core.BuildChannelOpened(uuid.New(), 1, 2, time.Now()),
	)
	require.NoError(t, err)
	assert.NotNil(t, manager.CurrentState())
}

func Test_DispatchBatch_EqualsSequentialDispatches(t *testing.T) {
	// given: two managers with identical initial state
	channelID := uuid.New()
	transferID := uuid.New()
	now := time.Now()

	changes := []statemachine.StateChange{
		core.BuildChannelOpened(channelID, 100, 50, now),
		core.BuildDepositObserved(channelID, 25, now.Add(time.Second)),
		core.BuildTransferReceived(channelID, transferID, 30, now.Add(2*time.Second)),
	}

	batchManager, err := statemachine.NewStateManager(core.HandleChannelChange, nil)
	require.NoError(t, err)
	sequentialManager, err := statemachine.NewStateManager(core.HandleChannelChange, nil)
	require.NoError(t, err)

	// when
	batchEvents, batchErr := batchManager.DispatchBatch(context.Background(), changes...)
	require.NoError(t, batchErr)

	sequentialEvents := make(statemachine.Events, 0)
	for _, change := range changes {
		events, dispatchErr := sequentialManager.Dispatch(context.Background(), change)
		require.NoError(t, dispatchErr)
		sequentialEvents = append(sequentialEvents, events...)
	}

	// then
	assert.Equal(t, sequentialEvents, batchEvents)
	assert.Equal(t, sequentialManager.CurrentState(), batchManager.CurrentState())
}

func Test_DispatchBatch_StopsAtFirstContractViolation(t *testing.T) {
	// given
	manager, channelID := givenOpenChannel(t, 100, 50)

	// when: the second change is nil
	events, err := manager.DispatchBatch(
		context.Background(),
		core.BuildDepositObserved(channelID, 25, time.Now()),
		nil,
		core.BuildDepositObserved(channelID, 25, time.Now()),
	)

	// then: the batch stops, the first change stays committed
	assert.ErrorIs(t, err, statemachine.ErrContractViolation)
	assert.Nil(t, events)

	state := manager.CurrentState().(core.ChannelState)
	assert.Equal(t, uint64(125), state.OurBalance)
}

func Test_Dispatch_Determinism(t *testing.T) {
	// given: the same ordered changes for two independent managers
	channelID := uuid.New()
	now := time.Now()

	changes := []statemachine.StateChange{
		core.BuildChannelOpened(channelID, 100, 50, now),
		core.BuildTransferReceived(channelID, uuid.New(), 30, now.Add(time.Second)),
		core.BuildDepositObserved(channelID, 5, now.Add(2*time.Second)),
	}

	first, err := statemachine.NewStateManager(core.HandleChannelChange, nil)
	require.NoError(t, err)
	second, err := statemachine.NewStateManager(core.HandleChannelChange, nil)
	require.NoError(t, err)

	// when
	firstEvents, err := first.DispatchBatch(context.Background(), changes...)
	require.NoError(t, err)
	secondEvents, err := second.DispatchBatch(context.Background(), changes...)
	require.NoError(t, err)

	// then: both managers produced identical events and state
	assert.Equal(t, firstEvents, secondEvents)
	assert.Equal(t, first.CurrentState(), second.CurrentState())
}

func Test_Dispatch_WithObservability(t *testing.T) {
	// given
	loggerSpy := testdoubles.NewLoggerSpy(true)
	contextualLoggerSpy := testdoubles.NewContextualLoggerSpy(true)
	metricsSpy := testdoubles.NewMetricsCollectorSpy(true)
	tracingSpy := testdoubles.NewTracingCollectorSpy(true)

	manager, err := statemachine.NewStateManager(
		core.HandleChannelChange,
		nil,
		statemachine.WithLogger(loggerSpy),
		statemachine.WithContextualLogger(contextualLoggerSpy),
		statemachine.WithMetricsCollector(metricsSpy),
		statemachine.WithTracingCollector(tracingSpy),
	)
	require.NoError(t, err)

	// when
	_, dispatchErr := manager.Dispatch(
		context.Background(),
		core.BuildChannelOpened(uuid.New(), 100, 50, time.Now()),
	)
	require.NoError(t, dispatchErr)

	// then: the dispatch was logged, measured, and traced
	assert.Positive(t, contextualLoggerSpy.GetTotalRecordCount())
	assert.True(t, metricsSpy.HasDurationRecord("statemachine_dispatch_duration"))
	assert.True(t, tracingSpy.HasFinishedSpan("statemachine.dispatch", "success"))
}

func Test_Dispatch_ContractViolation_IsObserved(t *testing.T) {
	// given
	metricsSpy := testdoubles.NewMetricsCollectorSpy(true)
	tracingSpy := testdoubles.NewTracingCollectorSpy(true)

	brokenTransition := func(current statemachine.State, _ statemachine.StateChange) statemachine.Iteration {
		return statemachine.BuildIteration(current, statemachine.Events{nil})
	}

	manager, err := statemachine.NewStateManager(
		brokenTransition,
		nil,
		statemachine.WithMetricsCollector(metricsSpy),
		statemachine.WithTracingCollector(tracingSpy),
	)
	require.NoError(t, err)

	// when
	_, dispatchErr := manager.Dispatch(
		context.Background(),
		core.BuildChannelClosed(uuid.New(), time.Now()),
	)

	// then
	assert.ErrorIs(t, dispatchErr, statemachine.ErrContractViolation)
	assert.Equal(t, 1, metricsSpy.CounterIncrements("statemachine_contract_violations"))
	assert.True(t, tracingSpy.HasFinishedSpan("statemachine.dispatch", "error"))
}

/***** test helpers *****/

// unknownChange is a StateChange the channel transition function does not know.
type unknownChange struct{}

func (c unknownChange) ChangeType() statemachine.ChangeTypeString {
	return "SomethingUnknown"
}

func givenManagerWithAbsentState(t *testing.T) (*statemachine.StateManager, uuid.UUID) {
	t.Helper()

	manager, err := statemachine.NewStateManager(core.HandleChannelChange, nil)
	require.NoError(t, err)

	return manager, uuid.New()
}

func givenOpenChannel(t *testing.T, ourDeposit uint64, partnerDeposit uint64) (*statemachine.StateManager, uuid.UUID) {
	t.Helper()

	manager, channelID := givenManagerWithAbsentState(t)

	_, err := manager.Dispatch(
		context.Background(),
		core.BuildChannelOpened(channelID, ourDeposit, partnerDeposit, time.Now()),
	)
	require.NoError(t, err)

	return manager, channelID
}
