package statemachine

type StateTypeString = string
type ChangeTypeString = string
type EventTypeString = string

// Events is an alias type for a slice of Event.
type Events = []Event

// State is the contract for the application state held by a StateManager.
//
// Implementations must be value-semantic snapshots: nested sub-states are
// referenced by identifier or value, never aliased by mutable pointer, so that
// CloneState is equivalent to copying the entire logical content.
// A State is never mutated in place once it has been committed as current.
type State interface {
	StateType() StateTypeString

	// CloneState returns an independent deep copy sharing no mutable
	// references with the receiver.
	CloneState() State
}

// StateChange is the contract for a record of one external occurrence
// (an incoming message, an observed ledger event, a timeout firing) that may
// trigger a transition.
//
// Applying the same StateChange to the same State must always yield an equal
// Iteration: no hidden dependence on wall-clock time, randomness, or
// external state.
type StateChange interface {
	ChangeType() ChangeTypeString
}

// Event is the contract for a record of an externally observable consequence
// of a transition. The engine does not interpret events; it guarantees only
// their ordering and delivery in full.
type Event interface {
	EventType() EventTypeString
}

// TransitionFunc applies one StateChange to a State and returns the resulting
// Iteration. It is supplied by the domain layer and registered once at
// StateManager construction.
//
// It must be pure (no I/O, no timers, no randomness) and total over every
// reachable StateChange: an unrecognized or no-op change returns the unchanged
// state with no events (see NoOpIteration), never an error. Domain-level
// rejections are communicated as Events, not failures.
//
// The State argument is a disposable private copy; the function must not
// retain it past the call and must return a fresh or independent State as the
// next value. A nil State argument represents the absent state; whether a
// transition may re-seed it is a domain policy decision.
type TransitionFunc func(current State, change StateChange) Iteration
