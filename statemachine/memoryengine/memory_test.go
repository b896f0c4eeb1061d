package memoryengine_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/deterministic-statemachine-go/statemachine"
	"github.com/AntonStoeckl/deterministic-statemachine-go/statemachine/memoryengine"
)

func Test_NewJournal_IsEmpty(t *testing.T) {
	journal := memoryengine.NewJournal()

	changes, maxSequenceNumber, err := journal.ReadChanges(context.Background(), 0)

	require.NoError(t, err)
	assert.Empty(t, changes)
	assert.Equal(t, statemachine.MaxSequenceNumberUint(0), maxSequenceNumber)
}

func Test_Append_And_ReadChanges(t *testing.T) {
	// given
	ctx := context.Background()
	journal := memoryengine.NewJournal()

	first := buildTestChange(t, "FirstChange")
	second := buildTestChange(t, "SecondChange")
	third := buildTestChange(t, "ThirdChange")

	// when
	require.NoError(t, journal.Append(ctx, 0, first))
	require.NoError(t, journal.Append(ctx, 1, second, third))

	// then
	changes, maxSequenceNumber, err := journal.ReadChanges(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, statemachine.MaxSequenceNumberUint(3), maxSequenceNumber)
	require.Len(t, changes, 3)
	assert.Equal(t, "FirstChange", changes[0].ChangeType)
	assert.Equal(t, "SecondChange", changes[1].ChangeType)
	assert.Equal(t, "ThirdChange", changes[2].ChangeType)
}

func Test_ReadChanges_AfterSequence(t *testing.T) {
	// given
	ctx := context.Background()
	journal := memoryengine.NewJournal()

	require.NoError(t, journal.Append(ctx, 0, buildTestChange(t, "FirstChange")))
	require.NoError(t, journal.Append(ctx, 1, buildTestChange(t, "SecondChange")))
	require.NoError(t, journal.Append(ctx, 2, buildTestChange(t, "ThirdChange")))

	// when
	changes, maxSequenceNumber, err := journal.ReadChanges(ctx, 1)

	// then: only the changes after sequence 1 are returned
	require.NoError(t, err)
	assert.Equal(t, statemachine.MaxSequenceNumberUint(3), maxSequenceNumber)
	require.Len(t, changes, 2)
	assert.Equal(t, "SecondChange", changes[0].ChangeType)
	assert.Equal(t, "ThirdChange", changes[1].ChangeType)
}

func Test_ReadChanges_AfterSequenceBeyondHistory(t *testing.T) {
	// given
	ctx := context.Background()
	journal := memoryengine.NewJournal()
	require.NoError(t, journal.Append(ctx, 0, buildTestChange(t, "FirstChange")))

	// when
	changes, maxSequenceNumber, err := journal.ReadChanges(ctx, 99)

	// then: the returned sequence is never lower than the one asked for
	require.NoError(t, err)
	assert.Empty(t, changes)
	assert.Equal(t, statemachine.MaxSequenceNumberUint(99), maxSequenceNumber)
}

func Test_ReadChanges_EmptyTail_ReturnsTheSequenceAskedFor(t *testing.T) {
	// given: a journal whose head matches the caller's snapshot position
	ctx := context.Background()
	journal := memoryengine.NewJournal()
	require.NoError(t, journal.Append(ctx, 0, buildTestChange(t, "FirstChange")))
	require.NoError(t, journal.Append(ctx, 1, buildTestChange(t, "SecondChange")))

	// when
	changes, maxSequenceNumber, err := journal.ReadChanges(ctx, 2)

	// then: the caller can append against the returned sequence right away
	require.NoError(t, err)
	assert.Empty(t, changes)
	assert.Equal(t, statemachine.MaxSequenceNumberUint(2), maxSequenceNumber)
	assert.NoError(t, journal.Append(ctx, maxSequenceNumber, buildTestChange(t, "ThirdChange")))
}

func Test_Append_WithStaleSequence_ReturnsConcurrencyConflict(t *testing.T) {
	// given
	ctx := context.Background()
	journal := memoryengine.NewJournal()
	require.NoError(t, journal.Append(ctx, 0, buildTestChange(t, "FirstChange")))

	// when: appending with the sequence observed before the first append
	err := journal.Append(ctx, 0, buildTestChange(t, "SecondChange"))

	// then
	assert.ErrorIs(t, err, statemachine.ErrConcurrencyConflict)

	// and nothing was recorded
	changes, _, readErr := journal.ReadChanges(ctx, 0)
	require.NoError(t, readErr)
	assert.Len(t, changes, 1)
}

func Test_SaveSnapshot_And_LoadSnapshot(t *testing.T) {
	// given
	ctx := context.Background()
	journal := memoryengine.NewJournal()

	snapshot, err := statemachine.BuildSnapshot("ChannelState", 7, json.RawMessage(`{"key": "value"}`))
	require.NoError(t, err)

	// when
	require.NoError(t, journal.SaveSnapshot(ctx, snapshot))

	// then
	loaded, loadErr := journal.LoadSnapshot(ctx, "ChannelState")
	require.NoError(t, loadErr)
	require.NotNil(t, loaded)
	assert.Equal(t, snapshot.SequenceNumber, loaded.SequenceNumber)
	assert.JSONEq(t, string(snapshot.Data), string(loaded.Data))
}

func Test_SaveSnapshot_ReplacesExistingSnapshot(t *testing.T) {
	// given
	ctx := context.Background()
	journal := memoryengine.NewJournal()

	older, err := statemachine.BuildSnapshot("ChannelState", 3, json.RawMessage(`{"version": 1}`))
	require.NoError(t, err)
	newer, err := statemachine.BuildSnapshot("ChannelState", 9, json.RawMessage(`{"version": 2}`))
	require.NoError(t, err)

	// when
	require.NoError(t, journal.SaveSnapshot(ctx, older))
	require.NoError(t, journal.SaveSnapshot(ctx, newer))

	// then
	loaded, loadErr := journal.LoadSnapshot(ctx, "ChannelState")
	require.NoError(t, loadErr)
	require.NotNil(t, loaded)
	assert.Equal(t, statemachine.MaxSequenceNumberUint(9), loaded.SequenceNumber)
}

func Test_SaveSnapshot_InvalidSnapshot_ShouldFail(t *testing.T) {
	journal := memoryengine.NewJournal()

	err := journal.SaveSnapshot(context.Background(), statemachine.Snapshot{
		StateType: "ChannelState",
		Data:      json.RawMessage(`{"invalid": json}`),
	})

	assert.ErrorIs(t, err, statemachine.ErrSavingSnapshotFailed)
	assert.ErrorIs(t, err, statemachine.ErrInvalidSnapshotJSON)
}

func Test_LoadSnapshot_NotFound_ReturnsNil(t *testing.T) {
	journal := memoryengine.NewJournal()

	loaded, err := journal.LoadSnapshot(context.Background(), "ChannelState")

	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func Test_LoadSnapshot_EmptyStateType_ShouldFail(t *testing.T) {
	journal := memoryengine.NewJournal()

	_, err := journal.LoadSnapshot(context.Background(), "")

	assert.ErrorIs(t, err, statemachine.ErrLoadingSnapshotFailed)
	assert.ErrorIs(t, err, statemachine.ErrEmptyStateType)
}

func Test_DeleteSnapshot(t *testing.T) {
	// given
	ctx := context.Background()
	journal := memoryengine.NewJournal()

	snapshot, err := statemachine.BuildSnapshot("ChannelState", 7, json.RawMessage(`{"key": "value"}`))
	require.NoError(t, err)
	require.NoError(t, journal.SaveSnapshot(ctx, snapshot))

	// when
	require.NoError(t, journal.DeleteSnapshot(ctx, "ChannelState"))

	// then
	loaded, loadErr := journal.LoadSnapshot(ctx, "ChannelState")
	require.NoError(t, loadErr)
	assert.Nil(t, loaded)
}

func Test_DeleteSnapshot_NotFound_IsNotAnError(t *testing.T) {
	journal := memoryengine.NewJournal()

	assert.NoError(t, journal.DeleteSnapshot(context.Background(), "ChannelState"))
}

func Test_DeleteSnapshot_EmptyStateType_ShouldFail(t *testing.T) {
	journal := memoryengine.NewJournal()

	err := journal.DeleteSnapshot(context.Background(), "")

	assert.ErrorIs(t, err, statemachine.ErrDeletingSnapshotFailed)
	assert.ErrorIs(t, err, statemachine.ErrEmptyStateType)
}

func buildTestChange(t *testing.T, changeType string) statemachine.StorableChange {
	t.Helper()

	change, err := statemachine.BuildStorableChangeWithEmptyMetadata(
		changeType, time.Now(), []byte(`{"key": "value"}`))
	require.NoError(t, err)

	return change
}
