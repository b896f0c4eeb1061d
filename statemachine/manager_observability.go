package statemachine

import (
	"context"
	"math"
	"strconv"
	"time"
)

// logOperation logs operational information at info level if a logger is configured.
// The contextual logger is preferred when both are configured.
func (sm *StateManager) logOperation(ctx context.Context, action string, args ...any) {
	if sm.contextualLogger != nil {
		sm.contextualLogger.InfoContext(ctx, logMsgOperation+action, args...)
		return
	}

	if sm.logger != nil {
		sm.logger.Info(logMsgOperation+action, args...)
	}
}

// logError logs error information at the error level if a logger is configured.
func (sm *StateManager) logError(ctx context.Context, message string, err error, args ...any) {
	allArgs := []any{logAttrError, err.Error()}
	allArgs = append(allArgs, args...)

	if sm.contextualLogger != nil {
		sm.contextualLogger.ErrorContext(ctx, message, allArgs...)
		return
	}

	if sm.logger != nil {
		sm.logger.Error(message, allArgs...)
	}
}

// recordDispatchDuration records the dispatch duration metric if a metrics collector is configured.
func (sm *StateManager) recordDispatchDuration(ctx context.Context, duration time.Duration, status string) {
	if sm.metricsCollector == nil {
		return
	}

	labels := map[string]string{
		spanAttrOperation: operationDispatch,
		"status":          status,
	}

	if contextualCollector, ok := sm.metricsCollector.(ContextualMetricsCollector); ok {
		contextualCollector.RecordDurationContext(ctx, metricDispatchDuration, duration, labels)
	} else {
		sm.metricsCollector.RecordDuration(metricDispatchDuration, duration, labels)
	}
}

// recordEventsProduced records the produced event count if a metrics collector is configured.
func (sm *StateManager) recordEventsProduced(ctx context.Context, eventCount int) {
	if sm.metricsCollector == nil {
		return
	}

	labels := map[string]string{
		spanAttrOperation: operationDispatch,
		"status":          statusSuccess,
	}

	if contextualCollector, ok := sm.metricsCollector.(ContextualMetricsCollector); ok {
		contextualCollector.RecordValueContext(ctx, metricEventsProduced, float64(eventCount), labels)
	} else {
		sm.metricsCollector.RecordValue(metricEventsProduced, float64(eventCount), labels)
	}
}

// recordContractViolation records a contract violation counter if a metrics collector is configured.
func (sm *StateManager) recordContractViolation(ctx context.Context, errorType string) {
	if sm.metricsCollector == nil {
		return
	}

	labels := map[string]string{
		spanAttrOperation: operationDispatch,
		"status":          statusError,
		spanAttrErrorType: errorType,
	}

	if contextualCollector, ok := sm.metricsCollector.(ContextualMetricsCollector); ok {
		contextualCollector.IncrementCounterContext(ctx, metricContractViolations, labels)
	} else {
		sm.metricsCollector.IncrementCounter(metricContractViolations, labels)
	}
}

// startDispatchSpan starts a tracing span for a dispatch if a tracing collector is configured.
func (sm *StateManager) startDispatchSpan(ctx context.Context, change StateChange) (context.Context, SpanContext) {
	if sm.tracingCollector == nil {
		return ctx, nil
	}

	return sm.tracingCollector.StartSpan(ctx, spanNameDispatch, map[string]string{
		spanAttrOperation:  operationDispatch,
		spanAttrChangeType: change.ChangeType(),
	})
}

// finishDispatchSpan finishes a dispatch span if one was started.
func (sm *StateManager) finishDispatchSpan(span SpanContext, status string, attrs map[string]string) {
	if sm.tracingCollector == nil || span == nil {
		return
	}

	span.SetStatus(status)
	for key, value := range attrs {
		span.AddAttribute(key, value)
	}

	sm.tracingCollector.FinishSpan(span, status, attrs)
}

// durationToMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func durationToMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}

func intToString(value int) string {
	return strconv.Itoa(value)
}
