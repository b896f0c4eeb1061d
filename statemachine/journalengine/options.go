package journalengine

import (
	"context"
	"time"

	"github.com/AntonStoeckl/deterministic-statemachine-go/statemachine"
)

// Logger interface for SQL query logging, operational metrics, warnings, and error reporting.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// MetricsCollector interface for collecting Journal performance and operational metrics.
type MetricsCollector interface {
	RecordDuration(metric string, duration time.Duration, labels map[string]string)
	IncrementCounter(metric string, labels map[string]string)
	RecordValue(metric string, value float64, labels map[string]string)
}

// SpanContext represents an active tracing span that can be finished and updated with attributes.
type SpanContext interface {
	SetStatus(status string)
	AddAttribute(key, value string)
}

// TracingCollector interface for collecting distributed tracing information from Journal operations.
// This interface follows the same dependency-free pattern as MetricsCollector, allowing users to integrate
// with any tracing backend (OpenTelemetry, Jaeger, Zipkin, etc.) by implementing this interface.
type TracingCollector interface {
	StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, SpanContext)
	FinishSpan(spanCtx SpanContext, status string, attrs map[string]string)
}

// ContextualLogger interface for context-aware logging with automatic trace correlation.
// This interface follows the same dependency-free pattern as MetricsCollector and TracingCollector,
// allowing users to integrate with any logging backend (OpenTelemetry, structured loggers, etc.)
// that supports context-based correlation and automatic trace/span ID inclusion.
type ContextualLogger interface {
	DebugContext(ctx context.Context, msg string, args ...any)
	InfoContext(ctx context.Context, msg string, args ...any)
	WarnContext(ctx context.Context, msg string, args ...any)
	ErrorContext(ctx context.Context, msg string, args ...any)
}

// Option defines a functional option for configuring a Journal.
type Option func(*Journal) error

// WithTableName sets the change table name for the Journal.
func WithTableName(tableName string) Option {
	return func(j *Journal) error {
		if tableName == "" {
			return statemachine.ErrEmptyChangesTableName
		}

		j.changeTableName = tableName

		return nil
	}
}

// WithSnapshotTableName sets the snapshot table name for the Journal.
func WithSnapshotTableName(tableName string) Option {
	return func(j *Journal) error {
		if tableName == "" {
			return statemachine.ErrEmptySnapshotsTableName
		}

		j.snapshotTableName = tableName

		return nil
	}
}

// WithLogger sets the logger for the Journal.
// The logger will receive messages at different levels based on the logger's configured level:
//
// Debug level: SQL queries with execution timing (development use)
// Info level: Change counts, durations, concurrency conflicts (production-safe)
// Warn level: Non-critical issues like cleanup failures
// Error level: Critical failures that cause operation failures.
func WithLogger(logger Logger) Option {
	return func(j *Journal) error {
		j.logger = logger
		return nil
	}
}

// WithContextualLogger sets a context-aware logger for the Journal.
// When configured, it is preferred over the plain Logger, enabling automatic
// trace correlation on all journal log messages.
func WithContextualLogger(logger ContextualLogger) Option {
	return func(j *Journal) error {
		j.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the Journal.
// If the collector also implements statemachine.ContextualMetricsCollector,
// the context-aware methods are used.
func WithMetrics(collector MetricsCollector) Option {
	return func(j *Journal) error {
		j.metricsCollector = collector
		return nil
	}
}

// WithTracing sets the tracing collector for the Journal.
func WithTracing(collector TracingCollector) Option {
	return func(j *Journal) error {
		j.tracingCollector = collector
		return nil
	}
}
