package statemachine

import (
	"context"
	"errors"
	"time"
)

const (
	logMsgDispatchCompleted         = "dispatch completed"
	logMsgBatchCompleted            = "batch dispatch completed"
	logMsgIterationContractViolated = "transition function violated the iteration contract"
	logMsgNilStateChangeDispatched  = "nil state change dispatched"
	logMsgOperation                 = "statemachine operation: "
	logAttrError                    = "error"
	logAttrChangeType               = "change_type"
	logAttrChangeCount              = "change_count"
	logAttrEventCount               = "event_count"
	logAttrDurationMS               = "duration_ms"
	metricDispatchDuration          = "statemachine_dispatch_duration"
	metricEventsProduced            = "statemachine_events_produced"
	metricContractViolations        = "statemachine_contract_violations"
	operationDispatch               = "dispatch"
	statusSuccess                   = "success"
	statusError                     = "error"
	spanNameDispatch                = "statemachine.dispatch"
	spanAttrOperation               = "operation"
	spanAttrChangeType              = "change_type"
	spanAttrEventCount              = "event_count"
	spanAttrErrorType               = "error_type"
	errorTypeNilStateChange         = "nil_state_change"
	errorTypeIterationContract      = "iteration_contract"
)

// StateManager is the single authoritative holder of application state.
// It applies StateChanges one at a time through the registered TransitionFunc
// and commits the resulting Iteration atomically: either the next state is
// committed and its events are returned, or nothing is.
//
// A StateManager assumes a single logical writer. Dispatch calls must be
// issued sequentially by one owning goroutine; the manager provides no
// internal locking or queuing. Serializing concurrent dispatch requests is
// the caller's responsibility, e.g. one manager instance per session or a
// single-consumer queue in front of it.
type StateManager struct {
	transition       TransitionFunc
	currentState     State
	logger           Logger
	contextualLogger ContextualLogger
	metricsCollector MetricsCollector
	tracingCollector TracingCollector
}

// NewStateManager creates a StateManager with the given transition function,
// initial state, and optional configuration.
//
// It returns ErrNoTransitionFunction if transition is nil; this is checked
// once, eagerly, never deferred to the first dispatch. A nil initialState is
// legal and represents the absent state.
func NewStateManager(transition TransitionFunc, initialState State, options ...Option) (*StateManager, error) {
	if transition == nil {
		return nil, ErrNoTransitionFunction
	}

	sm := &StateManager{
		transition:   transition,
		currentState: initialState,
	}

	for _, option := range options {
		if err := option(sm); err != nil {
			return nil, err
		}
	}

	return sm, nil
}

// Dispatch applies one StateChange to the current state and returns the
// events produced by the transition, in the order they were produced.
//
// The transition function is invoked with an independent copy of the current
// state, never with the committed value itself. Its returned Iteration is
// validated before anything is committed; a violation of the Iteration
// contract aborts the dispatch with an error joined with ErrContractViolation
// and leaves the current state untouched.
//
// The context is used for trace correlation and contextual logging only.
// A dispatch never suspends and cannot be cancelled: once it begins, it runs
// to completion and either commits or fails as a whole.
func (sm *StateManager) Dispatch(ctx context.Context, change StateChange) (Events, error) {
	if change == nil {
		violation := errors.Join(ErrContractViolation, ErrNilStateChange)
		sm.logError(ctx, logMsgNilStateChangeDispatched, violation)
		sm.recordContractViolation(ctx, errorTypeNilStateChange)

		return nil, violation
	}

	ctx, span := sm.startDispatchSpan(ctx, change)

	start := time.Now()
	workingCopy := sm.cloneOfCurrentState()
	iteration := sm.transition(workingCopy, change)
	duration := time.Since(start)

	if validateErr := iteration.Validate(); validateErr != nil {
		violation := errors.Join(ErrContractViolation, validateErr)
		sm.logError(ctx, logMsgIterationContractViolated, violation, logAttrChangeType, change.ChangeType())
		sm.recordContractViolation(ctx, errorTypeIterationContract)
		sm.recordDispatchDuration(ctx, duration, statusError)
		sm.finishDispatchSpan(span, statusError, map[string]string{spanAttrErrorType: errorTypeIterationContract})

		return nil, violation
	}

	sm.currentState = iteration.NextState

	sm.logOperation(ctx,
		logMsgDispatchCompleted,
		logAttrChangeType, change.ChangeType(),
		logAttrEventCount, len(iteration.Events),
		logAttrDurationMS, durationToMilliseconds(duration))
	sm.recordDispatchDuration(ctx, duration, statusSuccess)
	sm.recordEventsProduced(ctx, len(iteration.Events))
	sm.finishDispatchSpan(span, statusSuccess, map[string]string{
		spanAttrEventCount: intToString(len(iteration.Events)),
	})

	return iteration.Events, nil
}

// DispatchBatch applies the given StateChanges in order and returns the
// concatenated events of all transitions.
//
// Dispatching c1 then c2 through DispatchBatch is equivalent to two
// sequential Dispatch calls. Atomicity holds per change, not per batch: a
// contract violation stops the batch and leaves the state at the last
// successfully committed transition; events already produced by earlier
// changes in the batch are discarded.
func (sm *StateManager) DispatchBatch(ctx context.Context, changes ...StateChange) (Events, error) {
	allEvents := make(Events, 0)

	for _, change := range changes {
		events, err := sm.Dispatch(ctx, change)
		if err != nil {
			return nil, err
		}

		allEvents = append(allEvents, events...)
	}

	sm.logOperation(ctx,
		logMsgBatchCompleted,
		logAttrChangeCount, len(changes),
		logAttrEventCount, len(allEvents))

	return allEvents, nil
}

// CurrentState returns a read-only snapshot of the current state, or nil if
// the state is absent. The returned value is an independent copy; callers
// never observe a reference into the live internal value.
func (sm *StateManager) CurrentState() State {
	return sm.cloneOfCurrentState()
}

func (sm *StateManager) cloneOfCurrentState() State {
	if sm.currentState == nil {
		return nil
	}

	return sm.currentState.CloneState()
}
