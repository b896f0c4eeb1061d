package statemachine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/deterministic-statemachine-go/statemachine"
	"github.com/AntonStoeckl/deterministic-statemachine-go/test/userland/core"
)

func Test_BuildIteration(t *testing.T) {
	nextState := core.ChannelState{ChannelID: "some-channel"}
	events := statemachine.Events{core.BalanceUpdated{ChannelID: "some-channel"}}

	iteration := statemachine.BuildIteration(nextState, events)

	assert.Equal(t, nextState, iteration.NextState)
	assert.Equal(t, events, iteration.Events)
	assert.NoError(t, iteration.Validate())
}

func Test_BuildIteration_WithNilNextState_RepresentsAbsence(t *testing.T) {
	iteration := statemachine.BuildIteration(nil, statemachine.Events{
		core.ChannelSettled{ChannelID: "some-channel"},
	})

	assert.Nil(t, iteration.NextState)
	assert.NoError(t, iteration.Validate())
}

func Test_NoOpIteration(t *testing.T) {
	current := core.ChannelState{ChannelID: "some-channel"}

	iteration := statemachine.NoOpIteration(current)

	assert.Equal(t, current, iteration.NextState)
	assert.Empty(t, iteration.Events)
	assert.NoError(t, iteration.Validate())
}

func Test_Iteration_Validate_ErrorCases(t *testing.T) {
	tests := []struct {
		name   string
		events statemachine.Events
	}{
		{
			name:   "single nil event",
			events: statemachine.Events{nil},
		},
		{
			name: "nil event between valid events",
			events: statemachine.Events{
				core.BalanceUpdated{},
				nil,
				core.BalanceUpdated{},
			},
		},
		{
			name: "nil event at the end",
			events: statemachine.Events{
				core.BalanceUpdated{},
				nil,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			iteration := statemachine.BuildIteration(nil, tt.events)

			err := iteration.Validate()

			require.Error(t, err)
			assert.ErrorIs(t, err, statemachine.ErrNilEventInIteration)
		})
	}
}
