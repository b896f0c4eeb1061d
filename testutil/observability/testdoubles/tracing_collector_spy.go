package testdoubles

import (
	"context"
	"sync"

	"github.com/AntonStoeckl/deterministic-statemachine-go/statemachine"
)

// TracingCollectorSpy is a TracingCollector implementation that captures span lifecycles for testing.
// It records started and finished spans so tests can verify that dispatch and journal
// operations create spans with the expected names, attributes, and statuses.
type TracingCollectorSpy struct {
	startedSpans  []SpySpanRecord
	finishedSpans []SpySpanRecord
	mu            sync.Mutex
	recordCalls   bool
}

// SpySpanRecord represents a recorded span lifecycle call.
type SpySpanRecord struct {
	Name       string
	Status     string
	Attributes map[string]string
}

// SpySpanContext is the SpanContext handed out by the spy.
// It accumulates attributes and status updates for later inspection.
type SpySpanContext struct {
	name       string
	status     string
	attributes map[string]string
	mu         sync.Mutex
}

// SetStatus implements the SpanContext interface for testing.
func (c *SpySpanContext) SetStatus(status string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = status
}

// AddAttribute implements the SpanContext interface for testing.
func (c *SpySpanContext) AddAttribute(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attributes[key] = value
}

// NewTracingCollectorSpy creates a new TracingCollectorSpy instance.
func NewTracingCollectorSpy(recordCalls bool) *TracingCollectorSpy {
	return &TracingCollectorSpy{
		recordCalls: recordCalls,
	}
}

// StartSpan implements the TracingCollector interface for testing.
func (s *TracingCollectorSpy) StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, statemachine.SpanContext) {
	spanCtx := &SpySpanContext{
		name:       name,
		attributes: copyLabels(attrs),
	}
	if spanCtx.attributes == nil {
		spanCtx.attributes = make(map[string]string)
	}

	if s.recordCalls {
		s.mu.Lock()
		defer s.mu.Unlock()

		s.startedSpans = append(s.startedSpans, SpySpanRecord{
			Name:       name,
			Attributes: copyLabels(attrs),
		})
	}

	return ctx, spanCtx
}

// FinishSpan implements the TracingCollector interface for testing.
func (s *TracingCollectorSpy) FinishSpan(spanCtx statemachine.SpanContext, status string, attrs map[string]string) {
	spySpanCtx, ok := spanCtx.(*SpySpanContext)
	if !ok {
		return
	}

	spySpanCtx.mu.Lock()
	spySpanCtx.status = status
	for key, value := range attrs {
		spySpanCtx.attributes[key] = value
	}
	name := spySpanCtx.name
	attributes := copyLabels(spySpanCtx.attributes)
	spySpanCtx.mu.Unlock()

	if s.recordCalls {
		s.mu.Lock()
		defer s.mu.Unlock()

		s.finishedSpans = append(s.finishedSpans, SpySpanRecord{
			Name:       name,
			Status:     status,
			Attributes: attributes,
		})
	}
}

// Reset clears all recorded spans.
func (s *TracingCollectorSpy) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startedSpans = s.startedSpans[:0]
	s.finishedSpans = s.finishedSpans[:0]
}

// GetStartedSpans returns a copy of all started span records.
func (s *TracingCollectorSpy) GetStartedSpans() []SpySpanRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]SpySpanRecord(nil), s.startedSpans...)
}

// GetFinishedSpans returns a copy of all finished span records.
func (s *TracingCollectorSpy) GetFinishedSpans() []SpySpanRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]SpySpanRecord(nil), s.finishedSpans...)
}

// HasFinishedSpan checks if a finished span with the specified name and status exists.
func (s *TracingCollectorSpy) HasFinishedSpan(name string, status string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, record := range s.finishedSpans {
		if record.Name == name && record.Status == status {
			return true
		}
	}

	return false
}

// Compile-time check to ensure TracingCollectorSpy implements TracingCollector interface.
var _ statemachine.TracingCollector = (*TracingCollectorSpy)(nil)
