package journalengine

import (
	"context"
	"math"
	"strconv"
	"time"

	"github.com/AntonStoeckl/deterministic-statemachine-go/statemachine"
)

const (
	metricReadDuration           = "journal_read_duration"
	metricAppendDuration         = "journal_append_duration"
	metricSnapshotDuration       = "journal_snapshot_duration"
	metricJournalErrors          = "journal_errors"
	metricConcurrencyConflicts   = "journal_concurrency_conflicts"
	operationRead                = "read"
	operationAppend              = "append"
	operationSnapshot            = "snapshot"
	statusSuccess                = "success"
	statusError                  = "error"
	spanAttrOperation            = "operation"
	spanAttrErrorType            = "error_type"
	spanNameRead                 = "journal.read"
	spanNameAppend               = "journal.append"
	errorTypeQueryFailed         = "query_failed"
	errorTypeExecFailed          = "exec_failed"
	errorTypeConcurrencyConflict = "concurrency_conflict"
)

// logQueryWithDuration logs SQL queries with execution time at debug level if a logger is configured.
func (j Journal) logQueryWithDuration(
	ctx context.Context,
	sqlQuery string,
	action string,
	duration time.Duration,
) {

	if j.contextualLogger != nil {
		j.contextualLogger.DebugContext(ctx, logMsgSQLExecuted+action, logAttrDurationMS, durationToMilliseconds(duration), logAttrQuery, sqlQuery)
		return
	}

	if j.logger != nil {
		j.logger.Debug(logMsgSQLExecuted+action, logAttrDurationMS, durationToMilliseconds(duration), logAttrQuery, sqlQuery)
	}
}

// logOperation logs operational information at info level if a logger is configured.
func (j Journal) logOperation(ctx context.Context, action string, args ...any) {
	if j.contextualLogger != nil {
		j.contextualLogger.InfoContext(ctx, logMsgOperation+action, args...)
		return
	}

	if j.logger != nil {
		j.logger.Info(logMsgOperation+action, args...)
	}
}

// logWarn logs non-critical issues at warn level if a logger is configured.
func (j Journal) logWarn(ctx context.Context, message string, args ...any) {
	if j.contextualLogger != nil {
		j.contextualLogger.WarnContext(ctx, message, args...)
		return
	}

	if j.logger != nil {
		j.logger.Warn(message, args...)
	}
}

// logError logs error information at the error level if a logger is configured.
func (j Journal) logError(ctx context.Context, message string, err error, args ...any) {
	allArgs := []any{logAttrError, err.Error()}
	allArgs = append(allArgs, args...)

	if j.contextualLogger != nil {
		j.contextualLogger.ErrorContext(ctx, message, allArgs...)
		return
	}

	if j.logger != nil {
		j.logger.Error(message, allArgs...)
	}
}

// recordDuration records a duration metric if a metrics collector is configured.
func (j Journal) recordDuration(
	ctx context.Context,
	metricName string,
	duration time.Duration,
	operation, status string,
) {

	if j.metricsCollector == nil {
		return
	}

	labels := map[string]string{
		spanAttrOperation: operation,
		"status":          status,
	}

	if contextualCollector, ok := j.metricsCollector.(statemachine.ContextualMetricsCollector); ok {
		contextualCollector.RecordDurationContext(ctx, metricName, duration, labels)
	} else {
		j.metricsCollector.RecordDuration(metricName, duration, labels)
	}
}

// recordError records an error counter if a metrics collector is configured.
func (j Journal) recordError(ctx context.Context, operation, errorType string) {
	if j.metricsCollector == nil {
		return
	}

	labels := map[string]string{
		spanAttrOperation: operation,
		"status":          statusError,
		spanAttrErrorType: errorType,
	}

	if contextualCollector, ok := j.metricsCollector.(statemachine.ContextualMetricsCollector); ok {
		contextualCollector.IncrementCounterContext(ctx, metricJournalErrors, labels)
	} else {
		j.metricsCollector.IncrementCounter(metricJournalErrors, labels)
	}
}

// recordConcurrencyConflict records a concurrency conflict counter if a metrics collector is configured.
func (j Journal) recordConcurrencyConflict(ctx context.Context) {
	if j.metricsCollector == nil {
		return
	}

	labels := map[string]string{
		spanAttrOperation: operationAppend,
		"conflict_type":   "concurrency",
	}

	if contextualCollector, ok := j.metricsCollector.(statemachine.ContextualMetricsCollector); ok {
		contextualCollector.IncrementCounterContext(ctx, metricConcurrencyConflicts, labels)
	} else {
		j.metricsCollector.IncrementCounter(metricConcurrencyConflicts, labels)
	}
}

// startSpan starts a tracing span if a tracing collector is configured.
func (j Journal) startSpan(ctx context.Context, name, operation string) (context.Context, SpanContext) {
	if j.tracingCollector == nil {
		return ctx, nil
	}

	return j.tracingCollector.StartSpan(ctx, name, map[string]string{spanAttrOperation: operation})
}

// finishSpan finishes a tracing span if one was started.
func (j Journal) finishSpan(span SpanContext, status string, attrs map[string]string) {
	if j.tracingCollector == nil || span == nil {
		return
	}

	span.SetStatus(status)
	for key, value := range attrs {
		span.AddAttribute(key, value)
	}

	j.tracingCollector.FinishSpan(span, status, attrs)
}

// durationToMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func durationToMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}

func intToString(value int) string {
	return strconv.Itoa(value)
}
