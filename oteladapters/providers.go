package oteladapters

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/AntonStoeckl/library-catalog-go/catalog"
)

// Providers holds the OpenTelemetry providers of one process.
type Providers struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Resource       *resource.Resource
}

type providersConfig struct {
	metricReaders []sdkmetric.Reader
	spanExporters []sdktrace.SpanExporter
	setGlobal     bool
}

// ProvidersOption configures NewProviders.
type ProvidersOption func(*providersConfig)

// WithMetricReader attaches reader to the MeterProvider, e.g. a periodic OTLP exporter.
func WithMetricReader(reader sdkmetric.Reader) ProvidersOption {
	return func(c *providersConfig) {
		c.metricReaders = append(c.metricReaders, reader)
	}
}

// WithSpanExporter exports finished spans through a batching processor.
func WithSpanExporter(exporter sdktrace.SpanExporter) ProvidersOption {
	return func(c *providersConfig) {
		c.spanExporters = append(c.spanExporters, exporter)
	}
}

// WithGlobalRegistration makes the providers and the W3C trace-context propagator the global ones.
func WithGlobalRegistration() ProvidersOption {
	return func(c *providersConfig) {
		c.setGlobal = true
	}
}

// NewProviders creates a TracerProvider and a MeterProvider for serviceName.
// Without readers and exporters they record nothing.
func NewProviders(ctx context.Context, serviceName string, serviceVersion string, options ...ProvidersOption) (*Providers, error) {
	config := &providersConfig{}
	for _, option := range options {
		option(config)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(serviceVersion),
		),
	)
	if err != nil {
		return nil, err
	}

	meterOptions := []sdkmetric.Option{sdkmetric.WithResource(res)}
	for _, reader := range config.metricReaders {
		meterOptions = append(meterOptions, sdkmetric.WithReader(reader))
	}

	tracerOptions := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	for _, exporter := range config.spanExporters {
		tracerOptions = append(tracerOptions, sdktrace.WithBatcher(exporter))
	}

	p := &Providers{
		TracerProvider: sdktrace.NewTracerProvider(tracerOptions...),
		MeterProvider:  sdkmetric.NewMeterProvider(meterOptions...),
		Resource:       res,
	}

	if config.setGlobal {
		otel.SetTracerProvider(p.TracerProvider)
		otel.SetMeterProvider(p.MeterProvider)
		otel.SetTextMapPropagator(propagation.TraceContext{})
	}

	return p, nil
}

// Observability bundles a bridge logger, a metrics collector and a tracing collector scoped by name.
// extra options are applied last, e.g. catalog.WithLogger for a local log sink.
func (p *Providers) Observability(scope string, extra ...catalog.ObservabilityOption) catalog.Observability {
	options := []catalog.ObservabilityOption{
		catalog.WithContextualLogger(NewSlogBridgeLogger(scope)),
		catalog.WithMetrics(NewMetricsCollector(p.MeterProvider.Meter(scope))),
		catalog.WithTracing(NewTracingCollector(p.TracerProvider.Tracer(scope))),
	}

	return catalog.NewObservability(append(options, extra...)...)
}

// Shutdown flushes and stops both providers.
func (p *Providers) Shutdown(ctx context.Context) error {
	return errors.Join(p.TracerProvider.Shutdown(ctx), p.MeterProvider.Shutdown(ctx))
}
