package outbox

import (
	"context"
	"time"
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

// MetricsCollector interface for collecting dispatcher metrics.
type MetricsCollector interface {
	RecordDuration(metric string, duration time.Duration, labels map[string]string)
	IncrementCounter(metric string, labels map[string]string)
	RecordValue(metric string, value float64, labels map[string]string)
}

func (d *Dispatcher) logInfo(ctx context.Context, msg string, args ...any) {
	if d.logger != nil {
		d.logger.Info(msg, args...)
	}

	if d.contextualLogger != nil {
		d.contextualLogger.InfoContext(ctx, msg, args...)
	}
}

func (d *Dispatcher) logDebug(ctx context.Context, msg string, args ...any) {
	if d.logger != nil {
		d.logger.Debug(msg, args...)
	}

	if d.contextualLogger != nil {
		d.contextualLogger.DebugContext(ctx, msg, args...)
	}
}

func (d *Dispatcher) logWarn(ctx context.Context, msg string, args ...any) {
	if d.logger != nil {
		d.logger.Warn(msg, args...)
	}

	if d.contextualLogger != nil {
		d.contextualLogger.WarnContext(ctx, msg, args...)
	}
}

func (d *Dispatcher) logError(ctx context.Context, msg string, err error, args ...any) {
	allArgs := []any{logAttrError, err.Error()}
	allArgs = append(allArgs, args...)

	if d.logger != nil {
		d.logger.Error(msg, allArgs...)
	}

	if d.contextualLogger != nil {
		d.contextualLogger.ErrorContext(ctx, msg, allArgs...)
	}
}

func (d *Dispatcher) incrementCounter(metric string, cycle string, eventType string) {
	if d.metrics != nil {
		d.metrics.IncrementCounter(metric, map[string]string{labelCycle: cycle, labelEventType: eventType})
	}
}

func (d *Dispatcher) recordCycleDuration(cycle string, duration time.Duration, err error) {
	if d.metrics == nil {
		return
	}

	status := statusSuccess
	if err != nil {
		status = statusError
	}

	d.metrics.RecordDuration(metricDispatchDuration, duration, map[string]string{labelCycle: cycle, labelStatus: status})
}

func (d *Dispatcher) recordExhausted(ctx context.Context, cycle string) {
	if d.metrics == nil {
		return
	}

	exhausted, err := d.store.CountExhausted(ctx, d.maxRetries)
	if err != nil {
		d.logError(ctx, logMsgCountExhaustedFailed, err)
		return
	}

	d.metrics.RecordValue(metricExhaustedRecords, float64(exhausted), map[string]string{labelCycle: cycle})
}
