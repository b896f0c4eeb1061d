// Package statemachine provides a deterministic, replayable state-transition
// engine: a single authoritative holder of application state that mutates only
// in response to typed state changes, producing an ordered list of events as
// its sole side-channel.
//
// The engine is oblivious to the meaning of any State, StateChange, or Event.
// Domain behavior is supplied as a pure TransitionFunc; the engine guarantees
// only the mechanics of "apply one change, get one state and a list of events":
//   - the committed state is never handed to the transition function, only an
//     independent copy of it
//   - the returned Iteration is validated before anything is committed
//   - a dispatch either commits in full or not at all
//
// Key types:
//   - State, StateChange, Event: the contracts domain types implement
//   - Iteration: the (next-state-or-absent, ordered events) result of one transition
//   - StateManager: owns the current state and applies one change at a time
//   - StorableChange: scalar DTO for recording changes in a journal
//   - Replayer: rebuilds a StateManager from a recorded change history
//
// Common usage pattern:
//
//	manager, err := statemachine.NewStateManager(core.HandleChannelChange, initialState)
//	if err != nil {
//		// handle configuration error
//	}
//
//	events, err := manager.Dispatch(ctx, change)
//	if err != nil {
//		// a contract violation: the transition function or the caller is buggy
//	}
//	for _, event := range events {
//		// hand the event to the outer layers (network, persistence, logging)
//	}
package statemachine
