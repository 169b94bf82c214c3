package rabbitmq

import (
	"context"
	"errors"
	"math/rand"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	defaultMaxAttempts  = 8
	defaultBaseDelay    = 100 * time.Millisecond
	defaultMaxDelay     = 10 * time.Second
	defaultJitterFactor = 0.3

	errorTypeNone        = "none"
	errorTypeCanceled    = "context_canceled"
	errorTypeDeadline    = "context_deadline_exceeded"
	errorTypeCredentials = "credentials"
	errorTypeConnection  = "connection"
)

var (
	// ErrInvalidMaxAttempts is returned when max attempts are not positive.
	ErrInvalidMaxAttempts = errors.New("max attempts must be positive")

	// ErrNegativeBaseDelay is returned when the base delay is negative.
	ErrNegativeBaseDelay = errors.New("base delay must not be negative")

	// ErrInvalidMaxDelay is returned when the max delay is below the base delay.
	ErrInvalidMaxDelay = errors.New("max delay must not be below the base delay")

	// ErrInvalidJitterFactor is returned when the jitter factor is not between 0.0 and 1.0.
	ErrInvalidJitterFactor = errors.New("jitter factor must be between 0.0 and 1.0")
)

// RetryableFunc represents a function that can be retried.
type RetryableFunc func(ctx context.Context) error

// RetryResult describes how a retried call went.
type RetryResult struct {
	Attempts      int
	TotalDelay    time.Duration
	LastErrorType string
}

type retryConfig struct {
	maxAttempts  int
	baseDelay    time.Duration
	maxDelay     time.Duration
	jitterFactor float64
	onRetry      func(attempt int, delay time.Duration, err error)
}

// RetryOption configures retry behavior using the functional options pattern.
type RetryOption func(*retryConfig) error

// WithMaxAttempts sets the maximum number of attempts, the first one included.
func WithMaxAttempts(attempts int) RetryOption {
	return func(config *retryConfig) error {
		if attempts <= 0 {
			return ErrInvalidMaxAttempts
		}

		config.maxAttempts = attempts

		return nil
	}
}

// WithBaseDelay sets the base delay for exponential backoff.
// Actual delays: baseDelay, baseDelay*2, baseDelay*4, ... capped at the max delay.
func WithBaseDelay(delay time.Duration) RetryOption {
	return func(config *retryConfig) error {
		if delay < 0 {
			return ErrNegativeBaseDelay
		}

		config.baseDelay = delay

		return nil
	}
}

// WithMaxDelay caps the delay between two attempts, jitter excluded.
func WithMaxDelay(delay time.Duration) RetryOption {
	return func(config *retryConfig) error {
		if delay < 0 {
			return ErrInvalidMaxDelay
		}

		config.maxDelay = delay

		return nil
	}
}

// WithJitterFactor sets the jitter added on top of each delay as a fraction of it.
// Valid range: 0.0 (no jitter) to 1.0 (100% jitter).
func WithJitterFactor(factor float64) RetryOption {
	return func(config *retryConfig) error {
		if factor < 0.0 || factor > 1.0 {
			return ErrInvalidJitterFactor
		}

		config.jitterFactor = factor

		return nil
	}
}

func withOnRetry(onRetry func(attempt int, delay time.Duration, err error)) RetryOption {
	return func(config *retryConfig) error {
		config.onRetry = onRetry
		return nil
	}
}

// RetryWithExponentialBackoff calls fn until it succeeds, fails permanently, ctx is done
// or the attempts are used up. It returns the last error.
//
// Retry schedule (default): 0, 100ms, 200ms, 400ms, ... up to 10s, each with up to 30% jitter.
//
// Rejected credentials or vhost access are permanent; every other error is retried.
func RetryWithExponentialBackoff(ctx context.Context, fn RetryableFunc, options ...RetryOption) (RetryResult, error) {
	config := &retryConfig{
		maxAttempts:  defaultMaxAttempts,
		baseDelay:    defaultBaseDelay,
		maxDelay:     defaultMaxDelay,
		jitterFactor: defaultJitterFactor,
	}

	for _, option := range options {
		if err := option(config); err != nil {
			return RetryResult{}, err
		}
	}

	if config.maxDelay < config.baseDelay {
		return RetryResult{}, ErrInvalidMaxDelay
	}

	var (
		result  RetryResult
		lastErr error
	)

	for attempt := 0; attempt < config.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(config, attempt)

			if config.onRetry != nil {
				config.onRetry(attempt, delay, lastErr)
			}

			select {
			case <-time.After(delay):
				result.TotalDelay += delay
			case <-ctx.Done():
				result.LastErrorType = errorType(ctx.Err())
				return result, ctx.Err()
			}
		}

		result.Attempts++

		lastErr = fn(ctx)
		result.LastErrorType = errorType(lastErr)

		if lastErr == nil || !isRetryableError(lastErr) {
			return result, lastErr
		}
	}

	return result, lastErr
}

func backoffDelay(config *retryConfig, attempt int) time.Duration {
	delay := config.baseDelay << (attempt - 1)
	if delay > config.maxDelay || delay <= 0 {
		delay = config.maxDelay
	}

	jitter := rand.Float64() * float64(delay) * config.jitterFactor //nolint:gosec //math/rand is sufficient for jitter

	return delay + time.Duration(jitter)
}

func isRetryableError(err error) bool {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	case isCredentialsError(err):
		return false
	default:
		return true
	}
}

func isCredentialsError(err error) bool {
	var amqpErr *amqp.Error
	if errors.As(err, &amqpErr) {
		return amqpErr.Code == amqp.AccessRefused
	}

	return false
}

func errorType(err error) string {
	switch {
	case err == nil:
		return errorTypeNone
	case errors.Is(err, context.Canceled):
		return errorTypeCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return errorTypeDeadline
	case isCredentialsError(err):
		return errorTypeCredentials
	default:
		return errorTypeConnection
	}
}
