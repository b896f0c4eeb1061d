package statemachine

import (
	"errors"
	"fmt"
)

var ErrNilEventInIteration = errors.New("iteration contains a nil event")

// Iteration is the result of applying one StateChange: the next state, which
// may be nil to represent a terminated/cleared state, and the ordered sequence
// of events produced by the transition.
//
// To clear the state, NextState must be an untyped nil State. A nil pointer
// of a concrete state type is not absence: it is committed as present, and
// the next dispatch will call CloneState on the nil receiver. Value-semantic
// state implementations avoid this entirely.
//
// The order of events within one Iteration is significant and is preserved
// through dispatch.
type Iteration struct {
	NextState State
	Events    Events
}

// BuildIteration is a factory method for Iteration.
func BuildIteration(nextState State, events Events) Iteration {
	return Iteration{
		NextState: nextState,
		Events:    events,
	}
}

// NoOpIteration builds the Iteration a TransitionFunc must return for an
// unrecognized or no-op StateChange: the unchanged state and no events.
func NoOpIteration(current State) Iteration {
	return Iteration{
		NextState: current,
		Events:    make(Events, 0),
	}
}

// Validate checks the Iteration contract: the next state may be absent (nil),
// but every element of the event sequence must be a non-nil Event.
func (it Iteration) Validate() error {
	for idx, event := range it.Events {
		if event == nil {
			return errors.Join(ErrNilEventInIteration, fmt.Errorf("at index %d", idx))
		}
	}

	return nil
}
