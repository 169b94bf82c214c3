package catalog

import (
	"context"
	"math"
	"time"
)

const (
	logAttrError = "error"

	statusSuccess = "success"
	statusError   = "error"

	labelOperation = "operation"
	labelStatus    = "status"
)

// Logger interface for operational messages, warnings, and error reporting.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// ContextualLogger interface for context-aware logging with automatic trace correlation.
type ContextualLogger interface {
	DebugContext(ctx context.Context, msg string, args ...any)
	InfoContext(ctx context.Context, msg string, args ...any)
	WarnContext(ctx context.Context, msg string, args ...any)
	ErrorContext(ctx context.Context, msg string, args ...any)
}

// MetricsCollector interface for collecting performance and operational metrics.
type MetricsCollector interface {
	RecordDuration(metric string, duration time.Duration, labels map[string]string)
	IncrementCounter(metric string, labels map[string]string)
	RecordValue(metric string, value float64, labels map[string]string)
}

// ContextualMetricsCollector extends MetricsCollector with context-aware methods.
// Components use the context-aware methods when available and fall back to MetricsCollector otherwise.
type ContextualMetricsCollector interface {
	MetricsCollector
	RecordDurationContext(ctx context.Context, metric string, duration time.Duration, labels map[string]string)
	IncrementCounterContext(ctx context.Context, metric string, labels map[string]string)
	RecordValueContext(ctx context.Context, metric string, value float64, labels map[string]string)
}

// SpanContext represents an active tracing span that can be finished and updated with attributes.
type SpanContext interface {
	SetStatus(status string)
	AddAttribute(key, value string)
}

// TracingCollector interface for collecting distributed tracing information.
type TracingCollector interface {
	StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, SpanContext)
	FinishSpan(spanCtx SpanContext, status string, attrs map[string]string)
}

// Observability bundles the optional logging, metrics and tracing collectors of a component.
// Every part may be nil; the zero value is silent.
type Observability struct {
	logger           Logger
	contextualLogger ContextualLogger
	metrics          MetricsCollector
	tracing          TracingCollector
}

// ObservabilityOption configures an Observability bundle.
type ObservabilityOption func(*Observability)

// WithLogger sets the plain logger.
func WithLogger(logger Logger) ObservabilityOption {
	return func(o *Observability) {
		o.logger = logger
	}
}

// WithContextualLogger sets the context-aware logger, which receives trace correlation when tracing is enabled.
func WithContextualLogger(logger ContextualLogger) ObservabilityOption {
	return func(o *Observability) {
		o.contextualLogger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(collector MetricsCollector) ObservabilityOption {
	return func(o *Observability) {
		o.metrics = collector
	}
}

// WithTracing sets the tracing collector.
func WithTracing(collector TracingCollector) ObservabilityOption {
	return func(o *Observability) {
		o.tracing = collector
	}
}

// NewObservability builds an Observability bundle from options.
func NewObservability(options ...ObservabilityOption) Observability {
	var o Observability

	for _, option := range options {
		option(&o)
	}

	return o
}

// Debug logs to every configured logger at debug level.
func (o Observability) Debug(ctx context.Context, msg string, args ...any) {
	if o.logger != nil {
		o.logger.Debug(msg, args...)
	}

	if o.contextualLogger != nil {
		o.contextualLogger.DebugContext(ctx, msg, args...)
	}
}

// Info logs to every configured logger at info level.
func (o Observability) Info(ctx context.Context, msg string, args ...any) {
	if o.logger != nil {
		o.logger.Info(msg, args...)
	}

	if o.contextualLogger != nil {
		o.contextualLogger.InfoContext(ctx, msg, args...)
	}
}

// Warn logs to every configured logger at warn level.
func (o Observability) Warn(ctx context.Context, msg string, args ...any) {
	if o.logger != nil {
		o.logger.Warn(msg, args...)
	}

	if o.contextualLogger != nil {
		o.contextualLogger.WarnContext(ctx, msg, args...)
	}
}

// Error logs err with its message under the "error" attribute at error level.
func (o Observability) Error(ctx context.Context, msg string, err error, args ...any) {
	allArgs := []any{logAttrError, err.Error()}
	allArgs = append(allArgs, args...)

	if o.logger != nil {
		o.logger.Error(msg, allArgs...)
	}

	if o.contextualLogger != nil {
		o.contextualLogger.ErrorContext(ctx, msg, allArgs...)
	}
}

// IncrementCounter increments metric labeled with the operation name, if metrics are configured.
func (o Observability) IncrementCounter(ctx context.Context, metric string, operation string) {
	if o.metrics == nil {
		return
	}

	labels := map[string]string{labelOperation: operation}

	if contextual, ok := o.metrics.(ContextualMetricsCollector); ok {
		contextual.IncrementCounterContext(ctx, metric, labels)
		return
	}

	o.metrics.IncrementCounter(metric, labels)
}

// RecordDuration records how long operation took and whether it failed, if metrics are configured.
func (o Observability) RecordDuration(ctx context.Context, metric string, operation string, duration time.Duration, err error) {
	if o.metrics == nil {
		return
	}

	labels := map[string]string{labelOperation: operation, labelStatus: statusOf(err)}

	if contextual, ok := o.metrics.(ContextualMetricsCollector); ok {
		contextual.RecordDurationContext(ctx, metric, duration, labels)
		return
	}

	o.metrics.RecordDuration(metric, duration, labels)
}

// StartSpan starts a tracing span if tracing is configured. The returned finish func is never nil.
func (o Observability) StartSpan(
	ctx context.Context,
	name string,
	attrs map[string]string,
) (context.Context, func(err error)) {

	if o.tracing == nil {
		return ctx, func(error) {}
	}

	spanCtx, span := o.tracing.StartSpan(ctx, name, attrs)

	return spanCtx, func(err error) {
		if span == nil {
			return
		}

		status := statusOf(err)
		finishAttrs := map[string]string{}

		if err != nil {
			finishAttrs[logAttrError] = err.Error()
		}

		span.SetStatus(status)
		o.tracing.FinishSpan(span, status, finishAttrs)
	}
}

// ToMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func ToMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}

func statusOf(err error) string {
	if err != nil {
		return statusError
	}

	return statusSuccess
}
