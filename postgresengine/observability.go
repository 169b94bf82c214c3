package postgresengine

import (
	"context"
	"math"
	"time"
)

const (
	logMsgSQLExecuted       = "executed sql for: "
	logMsgStatementFailed   = "database statement failed"
	logMsgRollbackFailed    = "transaction rollback failed"
	logMsgCloseRowsFailed   = "failed to close database rows"
	logAttrError            = "error"
	logAttrQuery            = "query"
	logAttrDurationMS       = "duration_ms"
	metricStatementDuration = "postgres_statement_duration_seconds"
	metricTransactionsTotal = "postgres_transactions_total"
	metricStatementErrors   = "postgres_statement_errors_total"
	labelOperation          = "operation"
	labelStatus             = "status"
	statusCommitted         = "committed"
	statusRolledBack        = "rolled_back"
	statusConflict          = "conflict"
	statusError             = "error"
	statusSuccess           = "success"
)

func (e *Engine) logDebug(ctx context.Context, msg string, args ...any) {
	if e.logger != nil {
		e.logger.Debug(msg, args...)
	}

	if e.contextualLogger != nil {
		e.contextualLogger.DebugContext(ctx, msg, args...)
	}
}

func (e *Engine) logWarn(ctx context.Context, msg string, args ...any) {
	if e.logger != nil {
		e.logger.Warn(msg, args...)
	}

	if e.contextualLogger != nil {
		e.contextualLogger.WarnContext(ctx, msg, args...)
	}
}

func (e *Engine) logError(ctx context.Context, msg string, args ...any) {
	if e.logger != nil {
		e.logger.Error(msg, args...)
	}

	if e.contextualLogger != nil {
		e.contextualLogger.ErrorContext(ctx, msg, args...)
	}
}

// observeStatement logs a statement at debug level and records its duration.
func (e *Engine) observeStatement(ctx context.Context, operation string, query string, duration time.Duration, err error) {
	e.logDebug(ctx, logMsgSQLExecuted+operation, logAttrDurationMS, durationToMilliseconds(duration), logAttrQuery, query)

	if err != nil {
		e.logError(ctx, logMsgStatementFailed, logAttrError, err.Error(), logAttrQuery, query)
	}

	if e.metricsCollector == nil {
		return
	}

	status := statusSuccess
	if err != nil {
		status = statusError
		e.metricsCollector.IncrementCounter(metricStatementErrors, map[string]string{labelOperation: operation})
	}

	e.metricsCollector.RecordDuration(metricStatementDuration, duration, map[string]string{
		labelOperation: operation,
		labelStatus:    status,
	})
}

func (e *Engine) countTransaction(status string) {
	if e.metricsCollector != nil {
		e.metricsCollector.IncrementCounter(metricTransactionsTotal, map[string]string{labelStatus: status})
	}
}

// durationToMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func durationToMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}
