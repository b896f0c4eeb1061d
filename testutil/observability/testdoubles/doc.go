// Package testdoubles provides test doubles (spies) for observability interfaces.
//
// This package contains spy implementations for OpenTelemetry-compatible observability
// interfaces used by the StateManager and the journal engines:
//   - LoggerSpy: captures plain logging calls for verification
//   - ContextualLoggerSpy: captures structured logging with context
//   - MetricsCollectorSpy: captures metrics recording calls for verification
//   - TracingCollectorSpy: captures distributed tracing spans and events
//
// These test doubles enable comprehensive testing of observability instrumentation
// without requiring actual telemetry backends.
package testdoubles
