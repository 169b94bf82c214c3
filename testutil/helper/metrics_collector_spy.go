package helper

import (
	"maps"
	"sync"
	"time"
)

// Metric kinds recorded by MetricsCollectorSpy.
const (
	MetricKindDuration = "duration"
	MetricKindCounter  = "counter"
	MetricKindValue    = "value"
)

// MetricRecord is one call captured by MetricsCollectorSpy.
type MetricRecord struct {
	Kind     string
	Metric   string
	Duration time.Duration
	Value    float64
	Labels   map[string]string
}

// MetricsCollectorSpy records every metrics call of the components under test.
// It satisfies the MetricsCollector interface of every package.
type MetricsCollectorSpy struct {
	mu      sync.Mutex
	records []MetricRecord
}

// NewMetricsCollectorSpy creates an empty MetricsCollectorSpy.
func NewMetricsCollectorSpy() *MetricsCollectorSpy {
	return &MetricsCollectorSpy{}
}

func (s *MetricsCollectorSpy) record(record MetricRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record.Labels = maps.Clone(record.Labels)
	s.records = append(s.records, record)
}

func (s *MetricsCollectorSpy) RecordDuration(metric string, duration time.Duration, labels map[string]string) {
	s.record(MetricRecord{Kind: MetricKindDuration, Metric: metric, Duration: duration, Labels: labels})
}

func (s *MetricsCollectorSpy) IncrementCounter(metric string, labels map[string]string) {
	s.record(MetricRecord{Kind: MetricKindCounter, Metric: metric, Labels: labels})
}

func (s *MetricsCollectorSpy) RecordValue(metric string, value float64, labels map[string]string) {
	s.record(MetricRecord{Kind: MetricKindValue, Metric: metric, Value: value, Labels: labels})
}

// Records returns the captured calls of kind for metric, oldest first.
func (s *MetricsCollectorSpy) Records(kind string, metric string) []MetricRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matching []MetricRecord
	for _, record := range s.records {
		if record.Kind == kind && record.Metric == metric {
			matching = append(matching, record)
		}
	}

	return matching
}

// CounterTotal returns how often the counter metric was incremented.
func (s *MetricsCollectorSpy) CounterTotal(metric string) int {
	return len(s.Records(MetricKindCounter, metric))
}

// HasDurationRecord reports whether a duration was recorded for metric.
func (s *MetricsCollectorSpy) HasDurationRecord(metric string) bool {
	return len(s.Records(MetricKindDuration, metric)) > 0
}

// LastValue returns the most recent value recorded for the gauge metric.
func (s *MetricsCollectorSpy) LastValue(metric string) (float64, bool) {
	values := s.Records(MetricKindValue, metric)
	if len(values) == 0 {
		return 0, false
	}

	return values[len(values)-1].Value, true
}
