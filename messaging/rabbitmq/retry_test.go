package rabbitmq

import (
	"context"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
)

var errConnectionRefused = errors.New("dial tcp: connection refused")

func Test_RetryWithExponentialBackoff_Success_NoRetries(t *testing.T) {
	ctx := context.Background()
	callCount := 0

	fn := func(_ context.Context) error {
		callCount++
		return nil
	}

	result, err := RetryWithExponentialBackoff(ctx, fn)

	assert.NoError(t, err)
	assert.Equal(t, 1, callCount)
	assert.Equal(t, 1, result.Attempts)
	assert.Equal(t, time.Duration(0), result.TotalDelay)
	assert.Equal(t, errorTypeNone, result.LastErrorType)
}

func Test_RetryWithExponentialBackoff_RetriesConnectionErrors(t *testing.T) {
	ctx := context.Background()
	callCount := 0

	fn := func(_ context.Context) error {
		callCount++
		if callCount < 3 {
			return errConnectionRefused
		}
		return nil
	}

	result, err := RetryWithExponentialBackoff(ctx, fn, WithBaseDelay(time.Millisecond), WithMaxDelay(5*time.Millisecond))

	assert.NoError(t, err)
	assert.Equal(t, 3, callCount)
	assert.Equal(t, 3, result.Attempts)
	assert.GreaterOrEqual(t, result.TotalDelay, 3*time.Millisecond)
	assert.Equal(t, errorTypeNone, result.LastErrorType)
}

func Test_RetryWithExponentialBackoff_GivesUpAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	callCount := 0

	fn := func(_ context.Context) error {
		callCount++
		return errConnectionRefused
	}

	result, err := RetryWithExponentialBackoff(ctx, fn, WithMaxAttempts(3), WithBaseDelay(0), WithJitterFactor(0))

	assert.ErrorIs(t, err, errConnectionRefused)
	assert.Equal(t, 3, callCount)
	assert.Equal(t, 3, result.Attempts)
	assert.Equal(t, errorTypeConnection, result.LastErrorType)
}

func Test_RetryWithExponentialBackoff_DoesNotRetryRejectedCredentials(t *testing.T) {
	ctx := context.Background()
	callCount := 0

	fn := func(_ context.Context) error {
		callCount++
		return amqp.ErrCredentials
	}

	result, err := RetryWithExponentialBackoff(ctx, fn, WithBaseDelay(0))

	assert.ErrorIs(t, err, amqp.ErrCredentials)
	assert.Equal(t, 1, callCount)
	assert.Equal(t, errorTypeCredentials, result.LastErrorType)
}

func Test_RetryWithExponentialBackoff_StopsWhenContextIsDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	callCount := 0

	fn := func(_ context.Context) error {
		callCount++
		cancel()
		return errConnectionRefused
	}

	result, err := RetryWithExponentialBackoff(ctx, fn, WithBaseDelay(time.Hour), WithMaxDelay(time.Hour))

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, callCount)
	assert.Equal(t, errorTypeCanceled, result.LastErrorType)
}

func Test_RetryWithExponentialBackoff_ReportsEachRetry(t *testing.T) {
	ctx := context.Background()
	var delays []time.Duration

	fn := func(_ context.Context) error {
		return errConnectionRefused
	}

	_, err := RetryWithExponentialBackoff(ctx, fn,
		WithMaxAttempts(5),
		WithBaseDelay(time.Millisecond),
		WithMaxDelay(4*time.Millisecond),
		WithJitterFactor(0),
		withOnRetry(func(_ int, delay time.Duration, _ error) { delays = append(delays, delay) }),
	)

	assert.ErrorIs(t, err, errConnectionRefused)
	assert.Equal(t, []time.Duration{time.Millisecond, 2 * time.Millisecond, 4 * time.Millisecond, 4 * time.Millisecond}, delays)
}

func Test_RetryWithExponentialBackoff_InvalidOptions(t *testing.T) {
	ctx := context.Background()
	fn := func(_ context.Context) error { return nil }

	_, err := RetryWithExponentialBackoff(ctx, fn, WithMaxAttempts(0))
	assert.ErrorIs(t, err, ErrInvalidMaxAttempts)

	_, err = RetryWithExponentialBackoff(ctx, fn, WithBaseDelay(-1*time.Second))
	assert.ErrorIs(t, err, ErrNegativeBaseDelay)

	_, err = RetryWithExponentialBackoff(ctx, fn, WithBaseDelay(time.Second), WithMaxDelay(time.Millisecond))
	assert.ErrorIs(t, err, ErrInvalidMaxDelay)

	_, err = RetryWithExponentialBackoff(ctx, fn, WithJitterFactor(1.5))
	assert.ErrorIs(t, err, ErrInvalidJitterFactor)
}
