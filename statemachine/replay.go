package statemachine

import (
	"context"
	"errors"
)

var (
	// ErrNoChangeDecoder is the configuration error returned when a Replayer
	// is built without a change decoder.
	ErrNoChangeDecoder = errors.New("change decoder must not be nil")

	// ErrReadingChangesFailed is returned when the change reader fails.
	ErrReadingChangesFailed = errors.New("reading recorded changes failed")

	// ErrDecodingChangeFailed is returned when a recorded change cannot be
	// decoded back into a StateChange.
	ErrDecodingChangeFailed = errors.New("decoding recorded change failed")

	// ErrReplayingChangeFailed is returned when dispatching a recorded change
	// fails during a rebuild. Since every recorded change was dispatched
	// successfully once, this indicates a non-deterministic transition
	// function or a corrupted change record.
	ErrReplayingChangeFailed = errors.New("replaying recorded change failed")
)

// ChangeDecoder maps a recorded StorableChange back to the StateChange it was
// built from. It is supplied by the domain layer, which knows the closed set
// of change types; decoding is the one boundary where runtime type decisions
// are legitimate.
type ChangeDecoder func(StorableChange) (StateChange, error)

// ChangeReader reads the recorded change history in sequence order.
// It returns all changes with a sequence number higher than afterSequence and
// the highest sequence number seen, which is never lower than afterSequence:
// a caller resuming from a snapshot at the journal head reads an empty tail
// and must still receive a sequence number it can Append against.
// Both journal engines satisfy it.
type ChangeReader interface {
	ReadChanges(ctx context.Context, afterSequence MaxSequenceNumberUint) (
		StorableChanges,
		MaxSequenceNumberUint,
		error,
	)
}

// Replayer rebuilds a StateManager from a recorded change history.
//
// Replay determinism is the engine's core guarantee: feeding the same ordered
// changes to the same initial state always reproduces the same final state,
// so a rebuilt manager is byte-for-byte equivalent to the one that recorded
// the history.
type Replayer struct {
	transition TransitionFunc
	decoder    ChangeDecoder
}

// BuildReplayer creates a Replayer for the given transition function and
// change decoder. Returns ErrNoTransitionFunction or ErrNoChangeDecoder if
// either is nil.
func BuildReplayer(transition TransitionFunc, decoder ChangeDecoder) (Replayer, error) {
	if transition == nil {
		return Replayer{}, ErrNoTransitionFunction
	}

	if decoder == nil {
		return Replayer{}, ErrNoChangeDecoder
	}

	return Replayer{
		transition: transition,
		decoder:    decoder,
	}, nil
}

// Rebuild constructs a fresh StateManager seeded with initialState and
// replays the full recorded change history through it, in order.
//
// The events produced during replay are discarded: they were already handed
// to the outer layers when the changes were first dispatched, and re-emitting
// them would duplicate their effects.
//
// It returns the rebuilt manager and the highest replayed sequence number,
// which callers use as the expected sequence for subsequent journal appends.
func (r Replayer) Rebuild(
	ctx context.Context,
	reader ChangeReader,
	initialState State,
	options ...Option,
) (*StateManager, MaxSequenceNumberUint, error) {

	return r.RebuildSince(ctx, reader, initialState, 0, options...)
}

// RebuildSince is like Rebuild but starts from a state already caught up to
// afterSequence, typically restored from a Snapshot. Only changes with a
// higher sequence number are replayed.
func (r Replayer) RebuildSince(
	ctx context.Context,
	reader ChangeReader,
	initialState State,
	afterSequence MaxSequenceNumberUint,
	options ...Option,
) (*StateManager, MaxSequenceNumberUint, error) {

	manager, buildErr := NewStateManager(r.transition, initialState, options...)
	if buildErr != nil {
		return nil, 0, buildErr
	}

	storableChanges, maxSequenceNumber, readErr := reader.ReadChanges(ctx, afterSequence)
	if readErr != nil {
		return nil, 0, errors.Join(ErrReadingChangesFailed, readErr)
	}

	for _, storableChange := range storableChanges {
		change, decodeErr := r.decoder(storableChange)
		if decodeErr != nil {
			return nil, 0, errors.Join(ErrDecodingChangeFailed, decodeErr)
		}

		if _, dispatchErr := manager.Dispatch(ctx, change); dispatchErr != nil {
			return nil, 0, errors.Join(ErrReplayingChangeFailed, dispatchErr)
		}
	}

	return manager, maxSequenceNumber, nil
}
