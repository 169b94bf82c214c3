package outbox_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-catalog-go/catalog"
	"github.com/AntonStoeckl/library-catalog-go/memstore"
	"github.com/AntonStoeckl/library-catalog-go/messaging"
	"github.com/AntonStoeckl/library-catalog-go/outbox"
	"github.com/AntonStoeckl/library-catalog-go/testutil/helper"
)

func givenRecords(t *testing.T, store *memstore.Store, naturalKeys ...string) []outbox.Record {
	t.Helper()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	records := make([]outbox.Record, 0, len(naturalKeys))

	err := store.Transact(context.Background(), func(ctx context.Context, tx catalog.Tx) error {
		for i, key := range naturalKeys {
			record, err := outbox.NewRecordAt(
				messaging.AggregateBook,
				key,
				messaging.EventTypeBookRequested,
				messaging.BookRequested{NaturalKey: key, AuthorName: "Ada Lovelace", GenreName: "Non-fiction"},
				base.Add(time.Duration(i)*time.Millisecond),
			)
			if err != nil {
				return err
			}

			if err = tx.Outbox().Append(ctx, record); err != nil {
				return err
			}

			records = append(records, record)
		}

		return nil
	})
	require.NoError(t, err, "error in arranging test data")

	return records
}

func Test_Dispatcher_DispatchPending_PublishesInCreationOrderAndMarksProcessed(t *testing.T) {
	// setup
	ctx := context.Background()
	store := memstore.New()
	publisher := helper.NewPublisherSpy()
	metrics := helper.NewMetricsCollectorSpy()
	processedAt := time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC)
	givenRecords(t, store, "k-1", "k-2", "k-3")

	dispatcher, err := outbox.NewDispatcher(store, publisher,
		outbox.WithMetrics(metrics),
		outbox.WithClock(func() time.Time { return processedAt }),
	)
	require.NoError(t, err)

	// act
	result, err := dispatcher.DispatchPending(ctx)

	// assert
	require.NoError(t, err)
	assert.Equal(t, outbox.CycleResult{Selected: 3, Published: 3}, result)

	published := publisher.PublishedTo(messaging.RoutingKeyBookRequested)
	require.Len(t, published, 3)
	assert.Equal(t, messaging.ExchangeBooks, published[0].Exchange)
	assert.Contains(t, string(published[0].Payload), `"naturalKey":"k-1"`)
	assert.Contains(t, string(published[2].Payload), `"naturalKey":"k-3"`)

	for _, record := range store.OutboxRecords() {
		assert.True(t, record.Processed)
		assert.Equal(t, processedAt, record.ProcessedAt)
	}

	assert.Equal(t, 3, metrics.CounterTotal("outbox_published_total"))
	assert.True(t, metrics.HasDurationRecord("outbox_dispatch_duration_seconds"))
}

func Test_Dispatcher_DispatchPending_IsIdempotentOnceProcessed(t *testing.T) {
	// setup
	ctx := context.Background()
	store := memstore.New()
	publisher := helper.NewPublisherSpy()
	givenRecords(t, store, "k-1")
	dispatcher, err := outbox.NewDispatcher(store, publisher)
	require.NoError(t, err)

	// act
	_, err = dispatcher.DispatchPending(ctx)
	require.NoError(t, err)
	second, err := dispatcher.DispatchPending(ctx)

	// assert
	require.NoError(t, err)
	assert.Zero(t, second.Selected)
	assert.Equal(t, 1, publisher.Calls())
}

func Test_Dispatcher_StopsAtTheRetryCeiling(t *testing.T) {
	// setup
	ctx := context.Background()
	store := memstore.New()
	publisher := helper.NewFailingPublisherSpy()
	metrics := helper.NewMetricsCollectorSpy()
	logger, logSpy := helper.NewSpyLogger()
	givenRecords(t, store, "k-1")

	const maxRetries = 5
	dispatcher, err := outbox.NewDispatcher(store, publisher,
		outbox.WithMaxRetries(maxRetries),
		outbox.WithMetrics(metrics),
		outbox.WithLogger(logger),
	)
	require.NoError(t, err)

	// act
	for range maxRetries + 1 {
		_, err = dispatcher.DispatchPending(ctx)
		require.NoError(t, err)
	}

	// assert
	records := store.OutboxRecords()
	require.Len(t, records, 1)
	assert.False(t, records[0].Processed)
	assert.Equal(t, maxRetries, records[0].RetryCount)
	assert.Contains(t, records[0].LastError, helper.ErrPublisherSpyFailure.Error())
	assert.Equal(t, maxRetries, publisher.Calls())
	assert.Equal(t, maxRetries, metrics.CounterTotal("outbox_publish_failed_total"))
	assert.Equal(t, 4, logSpy.CountLogs(slog.LevelWarn, "outbox: publishing record failed, retry count incremented"))
	assert.True(t, logSpy.HasWarnLog("outbox: record reached the retry ceiling, left for manual inspection"))

	exhausted, recorded := metrics.LastValue("outbox_exhausted_records")
	assert.True(t, recorded)
	assert.Equal(t, float64(1), exhausted)
}

func Test_Dispatcher_RetryFailed_OnlyPicksPreviouslyFailedRecords(t *testing.T) {
	// setup
	ctx := context.Background()
	store := memstore.New()
	publisher := helper.NewPublisherSpy()
	records := givenRecords(t, store, "k-1", "k-2")
	require.NoError(t, store.MarkFailed(ctx, records[1].ID, "connection reset"))
	dispatcher, err := outbox.NewDispatcher(store, publisher)
	require.NoError(t, err)

	// act
	result, err := dispatcher.RetryFailed(ctx)

	// assert
	require.NoError(t, err)
	assert.Equal(t, outbox.CycleResult{Selected: 1, Published: 1}, result)
	require.Len(t, publisher.Published(), 1)
	assert.Contains(t, string(publisher.Published()[0].Payload), `"naturalKey":"k-2"`)
}

func Test_Dispatcher_RecoversWhenTheBrokerComesBack(t *testing.T) {
	// setup
	ctx := context.Background()
	store := memstore.New()
	publisher := helper.NewFailingPublisherSpy()
	givenRecords(t, store, "k-1")
	dispatcher, err := outbox.NewDispatcher(store, publisher, outbox.WithMaxRetries(3))
	require.NoError(t, err)

	// act
	_, err = dispatcher.DispatchPending(ctx)
	require.NoError(t, err)
	publisher.SetFailing(false)
	result, err := dispatcher.RetryFailed(ctx)

	// assert
	require.NoError(t, err)
	assert.Equal(t, 1, result.Published)
	records := store.OutboxRecords()
	assert.True(t, records[0].Processed)
	assert.Equal(t, 1, records[0].RetryCount, "the failure stays on record")
}

func Test_Dispatcher_UnknownDestinationCountsAsFailure(t *testing.T) {
	// setup
	ctx := context.Background()
	store := memstore.New()
	publisher := helper.NewPublisherSpy()
	givenRecords(t, store, "k-1")
	dispatcher, err := outbox.NewDispatcher(store, publisher,
		outbox.WithResolver(func(string, string) (messaging.Route, error) {
			return messaging.Route{}, messaging.ErrUnknownRoute
		}),
	)
	require.NoError(t, err)

	// act
	result, err := dispatcher.DispatchPending(ctx)

	// assert
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	assert.Zero(t, publisher.Calls())
	assert.Contains(t, store.OutboxRecords()[0].LastError, outbox.ErrUnknownDestination.Error())
}

func Test_Dispatcher_BatchSizeLimitsOneCycle(t *testing.T) {
	// setup
	ctx := context.Background()
	store := memstore.New()
	publisher := helper.NewPublisherSpy()
	givenRecords(t, store, "k-1", "k-2", "k-3")
	dispatcher, err := outbox.NewDispatcher(store, publisher, outbox.WithBatchSize(2))
	require.NoError(t, err)

	// act
	first, err := dispatcher.DispatchPending(ctx)
	require.NoError(t, err)
	second, err := dispatcher.DispatchPending(ctx)
	require.NoError(t, err)

	// assert
	assert.Equal(t, 2, first.Published)
	assert.Equal(t, 1, second.Published)
}

type lockerStub struct {
	mu       sync.Mutex
	acquired bool
	err      error
	released int
}

func (l *lockerStub) TryLock(context.Context) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.err != nil || !l.acquired {
		return nil, false, l.err
	}

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.released++
	}, true, nil
}

func Test_Dispatcher_CycleLockerGuardsEveryCycle(t *testing.T) {
	// setup
	ctx := context.Background()
	store := memstore.New()
	publisher := helper.NewPublisherSpy()
	givenRecords(t, store, "k-1")
	locker := &lockerStub{}
	dispatcher, err := outbox.NewDispatcher(store, publisher, outbox.WithCycleLocker(locker))
	require.NoError(t, err)

	// act
	skipped, err := dispatcher.DispatchPending(ctx)
	require.NoError(t, err)

	locker.acquired = true
	ran, err := dispatcher.DispatchPending(ctx)
	require.NoError(t, err)

	locker.err = errors.New("connection refused")
	_, lockErr := dispatcher.DispatchPending(ctx)

	// assert
	assert.True(t, skipped.Skipped)
	assert.Equal(t, 1, ran.Published)
	assert.Equal(t, 1, locker.released)
	assert.Error(t, lockErr)
}

func Test_Dispatcher_Run_PublishesOnTheIntervalUntilCancelled(t *testing.T) {
	// setup
	store := memstore.New()
	publisher := helper.NewPublisherSpy()
	givenRecords(t, store, "k-1", "k-2")
	dispatcher, err := outbox.NewDispatcher(store, publisher,
		outbox.WithInterval(5*time.Millisecond),
		outbox.WithRetryInterval(10*time.Millisecond),
	)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	// act
	go func() { done <- dispatcher.Run(ctx) }()

	// assert
	assert.Eventually(t, func() bool { return len(publisher.Published()) == 2 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.NoError(t, <-done)
}

func Test_NewDispatcher_ValidatesInput(t *testing.T) {
	store := memstore.New()
	publisher := helper.NewPublisherSpy()

	_, err := outbox.NewDispatcher(nil, publisher)
	assert.ErrorIs(t, err, outbox.ErrNilStore)

	_, err = outbox.NewDispatcher(store, nil)
	assert.ErrorIs(t, err, outbox.ErrNilPublisher)

	_, err = outbox.NewDispatcher(store, publisher, outbox.WithMaxRetries(0))
	assert.ErrorIs(t, err, outbox.ErrInvalidOption)

	_, err = outbox.NewDispatcher(store, publisher, outbox.WithInterval(0))
	assert.ErrorIs(t, err, outbox.ErrInvalidOption)

	_, err = outbox.NewDispatcher(store, publisher, outbox.WithBatchSize(-1))
	assert.ErrorIs(t, err, outbox.ErrInvalidOption)

	dispatcher, err := outbox.NewDispatcher(store, publisher)
	require.NoError(t, err)
	assert.Equal(t, 5, dispatcher.MaxRetries())
}
