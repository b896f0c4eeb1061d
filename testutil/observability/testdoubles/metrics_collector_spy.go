package testdoubles

import (
	"context"
	"sync"
	"time"

	"github.com/AntonStoeckl/deterministic-statemachine-go/statemachine"
)

// MetricsCollectorSpy is a MetricsCollector implementation that captures metrics calls for testing.
// It records durations, counter increments, and gauge values so tests can verify
// that dispatch and journal operations emit the expected metrics.
type MetricsCollectorSpy struct {
	durationRecords []SpyDurationRecord
	counterRecords  []SpyCounterRecord
	valueRecords    []SpyValueRecord
	mu              sync.Mutex
	recordCalls     bool
}

// SpyDurationRecord represents a recorded duration metric call.
type SpyDurationRecord struct {
	Metric   string
	Duration time.Duration
	Labels   map[string]string
	Context  context.Context
}

// SpyCounterRecord represents a recorded counter increment call.
type SpyCounterRecord struct {
	Metric  string
	Labels  map[string]string
	Context context.Context
}

// SpyValueRecord represents a recorded gauge value call.
type SpyValueRecord struct {
	Metric  string
	Value   float64
	Labels  map[string]string
	Context context.Context
}

// NewMetricsCollectorSpy creates a new MetricsCollectorSpy instance.
func NewMetricsCollectorSpy(recordCalls bool) *MetricsCollectorSpy {
	return &MetricsCollectorSpy{
		recordCalls: recordCalls,
	}
}

// RecordDuration implements the MetricsCollector interface for testing.
func (s *MetricsCollectorSpy) RecordDuration(metric string, duration time.Duration, labels map[string]string) {
	if s.recordCalls {
		s.mu.Lock()
		defer s.mu.Unlock()

		s.durationRecords = append(s.durationRecords, SpyDurationRecord{
			Metric:   metric,
			Duration: duration,
			Labels:   copyLabels(labels),
		})
	}
}

// IncrementCounter implements the MetricsCollector interface for testing.
func (s *MetricsCollectorSpy) IncrementCounter(metric string, labels map[string]string) {
	if s.recordCalls {
		s.mu.Lock()
		defer s.mu.Unlock()

		s.counterRecords = append(s.counterRecords, SpyCounterRecord{
			Metric: metric,
			Labels: copyLabels(labels),
		})
	}
}

// RecordValue implements the MetricsCollector interface for testing.
func (s *MetricsCollectorSpy) RecordValue(metric string, value float64, labels map[string]string) {
	if s.recordCalls {
		s.mu.Lock()
		defer s.mu.Unlock()

		s.valueRecords = append(s.valueRecords, SpyValueRecord{
			Metric: metric,
			Value:  value,
			Labels: copyLabels(labels),
		})
	}
}

// RecordDurationContext implements the ContextualMetricsCollector interface for testing.
func (s *MetricsCollectorSpy) RecordDurationContext(ctx context.Context, metric string, duration time.Duration, labels map[string]string) {
	if s.recordCalls {
		s.mu.Lock()
		defer s.mu.Unlock()

		s.durationRecords = append(s.durationRecords, SpyDurationRecord{
			Metric:   metric,
			Duration: duration,
			Labels:   copyLabels(labels),
			Context:  ctx,
		})
	}
}

// IncrementCounterContext implements the ContextualMetricsCollector interface for testing.
func (s *MetricsCollectorSpy) IncrementCounterContext(ctx context.Context, metric string, labels map[string]string) {
	if s.recordCalls {
		s.mu.Lock()
		defer s.mu.Unlock()

		s.counterRecords = append(s.counterRecords, SpyCounterRecord{
			Metric:  metric,
			Labels:  copyLabels(labels),
			Context: ctx,
		})
	}
}

// RecordValueContext implements the ContextualMetricsCollector interface for testing.
func (s *MetricsCollectorSpy) RecordValueContext(ctx context.Context, metric string, value float64, labels map[string]string) {
	if s.recordCalls {
		s.mu.Lock()
		defer s.mu.Unlock()

		s.valueRecords = append(s.valueRecords, SpyValueRecord{
			Metric:  metric,
			Value:   value,
			Labels:  copyLabels(labels),
			Context: ctx,
		})
	}
}

// Reset clears all recorded metrics calls.
func (s *MetricsCollectorSpy) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.durationRecords = s.durationRecords[:0]
	s.counterRecords = s.counterRecords[:0]
	s.valueRecords = s.valueRecords[:0]
}

// GetDurationRecords returns a copy of all duration metric records.
func (s *MetricsCollectorSpy) GetDurationRecords() []SpyDurationRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]SpyDurationRecord(nil), s.durationRecords...)
}

// GetCounterRecords returns a copy of all counter increment records.
func (s *MetricsCollectorSpy) GetCounterRecords() []SpyCounterRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]SpyCounterRecord(nil), s.counterRecords...)
}

// GetValueRecords returns a copy of all gauge value records.
func (s *MetricsCollectorSpy) GetValueRecords() []SpyValueRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]SpyValueRecord(nil), s.valueRecords...)
}

// HasDurationRecord checks if a duration record for the specified metric exists.
func (s *MetricsCollectorSpy) HasDurationRecord(metric string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, record := range s.durationRecords {
		if record.Metric == metric {
			return true
		}
	}

	return false
}

// CounterIncrements returns how many times the specified counter was incremented.
func (s *MetricsCollectorSpy) CounterIncrements(metric string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, record := range s.counterRecords {
		if record.Metric == metric {
			count++
		}
	}

	return count
}

func copyLabels(labels map[string]string) map[string]string {
	if labels == nil {
		return nil
	}

	copied := make(map[string]string, len(labels))
	for key, value := range labels {
		copied[key] = value
	}

	return copied
}

// Compile-time check to ensure MetricsCollectorSpy implements both metrics interfaces.
var _ statemachine.MetricsCollector = (*MetricsCollectorSpy)(nil)
var _ statemachine.ContextualMetricsCollector = (*MetricsCollectorSpy)(nil)
