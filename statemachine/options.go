package statemachine

// Option defines a functional option for configuring a StateManager.
type Option func(*StateManager) error

// WithLogger sets the logger for the StateManager.
//
// Debug level: not used by the manager itself
// Info level: dispatch completions with change type, event count, duration
// Error level: contract violations.
func WithLogger(logger Logger) Option {
	return func(sm *StateManager) error {
		sm.logger = logger
		return nil
	}
}

// WithContextualLogger sets a context-aware logger for the StateManager.
// When configured, it is preferred over the plain Logger for messages emitted
// during Dispatch, enabling automatic trace correlation.
func WithContextualLogger(logger ContextualLogger) Option {
	return func(sm *StateManager) error {
		sm.contextualLogger = logger
		return nil
	}
}

// WithMetricsCollector sets the metrics collector for the StateManager.
// If the collector also implements ContextualMetricsCollector, the
// context-aware methods are used.
func WithMetricsCollector(collector MetricsCollector) Option {
	return func(sm *StateManager) error {
		sm.metricsCollector = collector
		return nil
	}
}

// WithTracingCollector sets the tracing collector for the StateManager.
// Each Dispatch is recorded as one span.
func WithTracingCollector(collector TracingCollector) Option {
	return func(sm *StateManager) error {
		sm.tracingCollector = collector
		return nil
	}
}
