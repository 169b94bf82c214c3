package rabbitmq

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrEmptyURL is returned by NewBroker without an AMQP URL.
	ErrEmptyURL = errors.New("amqp url must not be empty")

	// ErrInvalidPrefetch is returned when the prefetch count is not positive.
	ErrInvalidPrefetch = errors.New("prefetch count must be positive")
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

// MetricsCollector interface for collecting broker metrics.
type MetricsCollector interface {
	RecordDuration(metric string, duration time.Duration, labels map[string]string)
	IncrementCounter(metric string, labels map[string]string)
	RecordValue(metric string, value float64, labels map[string]string)
}

// Option defines a functional option for configuring Broker.
type Option func(*Broker) error

// WithPrefetch sets how many unacknowledged deliveries each consumer may hold.
func WithPrefetch(count int) Option {
	return func(b *Broker) error {
		if count <= 0 {
			return ErrInvalidPrefetch
		}

		b.prefetch = count

		return nil
	}
}

// WithConnectionName sets the connection name shown in the RabbitMQ management UI.
func WithConnectionName(name string) Option {
	return func(b *Broker) error {
		b.connectionName = name
		return nil
	}
}

// WithReconnect configures the backoff used to (re)connect and to resubscribe consumers.
func WithReconnect(options ...RetryOption) Option {
	return func(b *Broker) error {
		probe := &retryConfig{}
		for _, option := range options {
			if err := option(probe); err != nil {
				return err
			}
		}

		b.reconnect = append(b.reconnect, options...)

		return nil
	}
}

// WithLogger sets the logger for the Broker.
func WithLogger(logger Logger) Option {
	return func(b *Broker) error {
		b.logger = logger
		return nil
	}
}

// WithContextualLogger sets the contextual logger for the Broker.
func WithContextualLogger(logger ContextualLogger) Option {
	return func(b *Broker) error {
		b.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the Broker.
func WithMetrics(collector MetricsCollector) Option {
	return func(b *Broker) error {
		b.metrics = collector
		return nil
	}
}

func (b *Broker) logInfo(ctx context.Context, msg string, args ...any) {
	if b.logger != nil {
		b.logger.Info(msg, args...)
	}

	if b.contextualLogger != nil {
		b.contextualLogger.InfoContext(ctx, msg, args...)
	}
}

func (b *Broker) logWarn(ctx context.Context, msg string, args ...any) {
	if b.logger != nil {
		b.logger.Warn(msg, args...)
	}

	if b.contextualLogger != nil {
		b.contextualLogger.WarnContext(ctx, msg, args...)
	}
}

func (b *Broker) logError(ctx context.Context, msg string, args ...any) {
	if b.logger != nil {
		b.logger.Error(msg, args...)
	}

	if b.contextualLogger != nil {
		b.contextualLogger.ErrorContext(ctx, msg, args...)
	}
}

func (b *Broker) incrementCounter(metric string, labels map[string]string) {
	if b.metrics != nil {
		b.metrics.IncrementCounter(metric, labels)
	}
}

func (b *Broker) recordDuration(metric string, duration time.Duration, labels map[string]string) {
	if b.metrics != nil {
		b.metrics.RecordDuration(metric, duration, labels)
	}
}
