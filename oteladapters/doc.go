// Package oteladapters implements the library catalog's observability interfaces on OpenTelemetry.
//
// SlogBridgeLogger is a ContextualLogger over the otelslog bridge, MetricsCollector maps durations,
// counters and values to histograms, counters and gauges, and TracingCollector creates spans.
// Providers handles the process-wide MeterProvider and TracerProvider setup.
package oteladapters
