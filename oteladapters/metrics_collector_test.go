package oteladapters_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/AntonStoeckl/library-catalog-go/oteladapters"
)

func newCollector() (*oteladapters.MetricsCollector, *sdkmetric.ManualReader) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	return oteladapters.NewMetricsCollector(provider.Meter("test")), reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader, name string) metricdata.Aggregation {
	t.Helper()

	var resourceMetrics metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &resourceMetrics), "Failed to collect metrics")

	for _, scopeMetrics := range resourceMetrics.ScopeMetrics {
		for _, m := range scopeMetrics.Metrics {
			if m.Name == name {
				return m.Data
			}
		}
	}

	t.Fatalf("metric %s not found", name)

	return nil
}

func Test_MetricsCollector_RecordDuration_RecordsSecondsWithLabels(t *testing.T) {
	collector, reader := newCollector()

	collector.RecordDuration("outbox_dispatch_duration_seconds", 150*time.Millisecond, map[string]string{
		"cycle":  "pending",
		"status": "success",
	})

	histogram, ok := collect(t, reader, "outbox_dispatch_duration_seconds").(metricdata.Histogram[float64])
	require.True(t, ok, "expected a float64 histogram")
	require.Len(t, histogram.DataPoints, 1)

	dataPoint := histogram.DataPoints[0]
	assert.Equal(t, uint64(1), dataPoint.Count)
	assert.InDelta(t, 0.15, dataPoint.Sum, 0.001)

	expectedAttrs := attribute.NewSet(attribute.String("cycle", "pending"), attribute.String("status", "success"))
	assert.True(t, dataPoint.Attributes.Equals(&expectedAttrs))
}

func Test_MetricsCollector_IncrementCounter_Accumulates(t *testing.T) {
	collector, reader := newCollector()
	labels := map[string]string{"operation": "create"}

	collector.IncrementCounter("saga_requests_total", labels)
	collector.IncrementCounterContext(context.Background(), "saga_requests_total", labels)
	collector.IncrementCounter("saga_requests_total", labels)

	sum, ok := collect(t, reader, "saga_requests_total").(metricdata.Sum[int64])
	require.True(t, ok, "expected an int64 sum")
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(3), sum.DataPoints[0].Value)
	assert.True(t, sum.IsMonotonic)
}

func Test_MetricsCollector_RecordValue_KeepsTheLastValue(t *testing.T) {
	collector, reader := newCollector()

	collector.RecordValue("outbox_exhausted_records", 4, nil)
	collector.RecordValue("outbox_exhausted_records", 2, nil)

	gauge, ok := collect(t, reader, "outbox_exhausted_records").(metricdata.Gauge[float64])
	require.True(t, ok, "expected a float64 gauge")
	require.Len(t, gauge.DataPoints, 1)
	assert.InDelta(t, 2.0, gauge.DataPoints[0].Value, 0.0001)
}

func Test_MetricsCollector_IsSafeForConcurrentUse(t *testing.T) {
	collector, reader := newCollector()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			collector.IncrementCounter("projection_events_applied_total", map[string]string{"operation": "created"})
			collector.RecordDuration("postgres_statement_duration_seconds", time.Millisecond, nil)
		}()
	}
	wg.Wait()

	sum, ok := collect(t, reader, "projection_events_applied_total").(metricdata.Sum[int64])
	require.True(t, ok)
	assert.Equal(t, int64(20), sum.DataPoints[0].Value)
}
