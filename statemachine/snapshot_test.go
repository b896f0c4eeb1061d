package statemachine

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_BuildSnapshot(t *testing.T) {
	data := json.RawMessage(`{"channelId": "some-channel", "ourBalance": 100}`)

	snapshot, err := BuildSnapshot("ChannelState", 42, data)

	require.NoError(t, err)
	assert.Equal(t, StateTypeString("ChannelState"), snapshot.StateType)
	assert.Equal(t, MaxSequenceNumberUint(42), snapshot.SequenceNumber)
	assert.JSONEq(t, string(data), string(snapshot.Data))
	assert.False(t, snapshot.CreatedAt.IsZero())
}

func Test_BuildSnapshot_ErrorCases(t *testing.T) {
	tests := []struct {
		name        string
		stateType   StateTypeString
		data        json.RawMessage
		expectedErr error
	}{
		{
			name:        "empty state type",
			stateType:   "",
			data:        json.RawMessage(`{"key": "value"}`),
			expectedErr: ErrEmptyStateType,
		},
		{
			name:        "invalid JSON data",
			stateType:   "ChannelState",
			data:        json.RawMessage(`{"invalid": json}`),
			expectedErr: ErrInvalidSnapshotJSON,
		},
		{
			name:        "empty JSON data",
			stateType:   "ChannelState",
			data:        json.RawMessage(``),
			expectedErr: ErrInvalidSnapshotJSON,
		},
		{
			name:        "nil JSON data",
			stateType:   "ChannelState",
			data:        nil,
			expectedErr: ErrInvalidSnapshotJSON,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildSnapshot(tt.stateType, 1, tt.data)
			assert.ErrorIs(t, err, tt.expectedErr)
		})
	}
}

func Test_Snapshot_Validate(t *testing.T) {
	snapshot := Snapshot{
		StateType:      "ChannelState",
		SequenceNumber: 7,
		Data:           json.RawMessage(`{"key": "value"}`),
	}

	assert.NoError(t, snapshot.Validate())
}
