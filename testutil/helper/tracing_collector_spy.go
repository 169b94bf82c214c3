package helper

import (
	"context"
	"sync"

	"github.com/AntonStoeckl/library-catalog-go/catalog"
)

// SpySpanRecord represents a finished span.
type SpySpanRecord struct {
	Name   string
	Status string
	Attrs  map[string]string
}

// TracingCollectorSpy is a TracingCollector implementation that captures spans for testing.
type TracingCollectorSpy struct {
	spans []SpySpanRecord
	mu    sync.Mutex
}

type spySpan struct {
	name   string
	status string
	attrs  map[string]string
}

func (s *spySpan) SetStatus(status string) {
	s.status = status
}

func (s *spySpan) AddAttribute(key, value string) {
	s.attrs[key] = value
}

// NewTracingCollectorSpy creates a new TracingCollectorSpy.
func NewTracingCollectorSpy() *TracingCollectorSpy {
	return &TracingCollectorSpy{}
}

// StartSpan implements catalog.TracingCollector.
func (s *TracingCollectorSpy) StartSpan(
	ctx context.Context,
	name string,
	attrs map[string]string,
) (context.Context, catalog.SpanContext) {

	span := &spySpan{name: name, attrs: make(map[string]string)}
	for k, v := range attrs {
		span.attrs[k] = v
	}

	return ctx, span
}

// FinishSpan implements catalog.TracingCollector.
func (s *TracingCollectorSpy) FinishSpan(spanCtx catalog.SpanContext, status string, attrs map[string]string) {
	span, ok := spanCtx.(*spySpan)
	if !ok {
		return
	}

	for k, v := range attrs {
		span.attrs[k] = v
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.spans = append(s.spans, SpySpanRecord{Name: span.name, Status: status, Attrs: span.attrs})
}

// GetSpans returns a copy of all finished spans.
func (s *TracingCollectorSpy) GetSpans() []SpySpanRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]SpySpanRecord(nil), s.spans...)
}

// HasSpan checks if a span with name finished with status.
func (s *TracingCollectorSpy) HasSpan(name string, status string) bool {
	for _, span := range s.GetSpans() {
		if span.Name == name && span.Status == status {
			return true
		}
	}

	return false
}
