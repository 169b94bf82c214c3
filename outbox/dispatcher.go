package outbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/AntonStoeckl/library-catalog-go/messaging"
)

const (
	defaultMaxRetries    = 5
	defaultInterval      = 5 * time.Second
	defaultRetryInterval = 60 * time.Second
	defaultBatchSize     = 100

	cyclePending = "pending"
	cycleRetry   = "retry"

	metricPublished        = "outbox_published_total"
	metricPublishFailed    = "outbox_publish_failed_total"
	metricExhaustedRecords = "outbox_exhausted_records"
	metricDispatchDuration = "outbox_dispatch_duration_seconds"

	labelCycle     = "cycle"
	labelEventType = "event_type"
	labelStatus    = "status"
	statusSuccess  = "success"
	statusError    = "error"

	logMsgSelectFailed         = "outbox: selecting unprocessed records failed"
	logMsgPublishFailed        = "outbox: publishing record failed, retry count incremented"
	logMsgMarkProcessedFailed  = "outbox: record was published but could not be marked processed, it will be published again"
	logMsgMarkFailedFailed     = "outbox: recording publish failure failed"
	logMsgRecordExhausted      = "outbox: record reached the retry ceiling, left for manual inspection"
	logMsgCycleCompleted       = "outbox: dispatch cycle completed"
	logMsgRecordPublished      = "outbox: record published"
	logMsgCycleSkippedLocked   = "outbox: dispatch cycle skipped, another dispatcher holds the lock"
	logMsgCycleFailed          = "outbox: dispatch cycle failed"
	logMsgCountExhaustedFailed = "outbox: counting exhausted records failed"
	logAttrError               = "error"
	logAttrRecordID            = "record_id"
	logAttrEventType           = "event_type"
	logAttrAggregateID         = "aggregate_id"
	logAttrRetryCount          = "retry_count"
	logAttrCycle               = "cycle"
	logAttrSelected            = "selected"
	logAttrPublished           = "published"
	logAttrFailed              = "failed"
	logAttrDurationMS          = "duration_ms"
)

// CycleResult summarizes one dispatch cycle.
type CycleResult struct {
	Selected  int
	Published int
	Failed    int
	Skipped   bool
}

// Dispatcher publishes outbox Records to the Broker Port.
type Dispatcher struct {
	store            Store
	publisher        messaging.Publisher
	resolver         Resolver
	locker           CycleLocker
	clock            func() time.Time
	maxRetries       int
	interval         time.Duration
	retryInterval    time.Duration
	batchSize        int
	logger           Logger
	contextualLogger ContextualLogger
	metrics          MetricsCollector
	cycleMu          sync.Mutex
}

// Option defines a functional option for configuring Dispatcher.
type Option func(*Dispatcher) error

// WithMaxRetries sets the retry ceiling. A Record that failed maxRetries times is no longer published.
func WithMaxRetries(maxRetries int) Option {
	return func(d *Dispatcher) error {
		if maxRetries < 1 {
			return errors.Join(ErrInvalidOption, fmt.Errorf("max retries must be at least 1, got %d", maxRetries))
		}

		d.maxRetries = maxRetries

		return nil
	}
}

// WithInterval sets the period of the main dispatch cycle.
func WithInterval(interval time.Duration) Option {
	return func(d *Dispatcher) error {
		if interval <= 0 {
			return errors.Join(ErrInvalidOption, fmt.Errorf("interval must be positive, got %s", interval))
		}

		d.interval = interval

		return nil
	}
}

// WithRetryInterval sets the period of the retry cycle for previously failed Records.
func WithRetryInterval(interval time.Duration) Option {
	return func(d *Dispatcher) error {
		if interval <= 0 {
			return errors.Join(ErrInvalidOption, fmt.Errorf("retry interval must be positive, got %s", interval))
		}

		d.retryInterval = interval

		return nil
	}
}

// WithBatchSize limits how many Records one cycle selects.
func WithBatchSize(batchSize int) Option {
	return func(d *Dispatcher) error {
		if batchSize < 1 {
			return errors.Join(ErrInvalidOption, fmt.Errorf("batch size must be at least 1, got %d", batchSize))
		}

		d.batchSize = batchSize

		return nil
	}
}

// WithResolver replaces the destination lookup, which defaults to messaging.RouteFor.
func WithResolver(resolver Resolver) Option {
	return func(d *Dispatcher) error {
		if resolver == nil {
			return errors.Join(ErrInvalidOption, errors.New("resolver must not be nil"))
		}

		d.resolver = resolver

		return nil
	}
}

// WithCycleLocker makes every cycle run only while holding locker,
// so several replicas can share one outbox without publishing in parallel.
func WithCycleLocker(locker CycleLocker) Option {
	return func(d *Dispatcher) error {
		d.locker = locker
		return nil
	}
}

// WithClock sets the time source used for processed timestamps.
func WithClock(clock func() time.Time) Option {
	return func(d *Dispatcher) error {
		if clock == nil {
			return errors.Join(ErrInvalidOption, errors.New("clock must not be nil"))
		}

		d.clock = clock

		return nil
	}
}

// WithLogger sets the logger for the Dispatcher.
//
// Debug level: per-record publish results
// Info level: cycle summaries
// Warn level: failed publish attempts, exhausted records
// Error level: store failures.
func WithLogger(logger Logger) Option {
	return func(d *Dispatcher) error {
		d.logger = logger
		return nil
	}
}

// WithContextualLogger sets the contextual logger for the Dispatcher.
func WithContextualLogger(logger ContextualLogger) Option {
	return func(d *Dispatcher) error {
		d.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the Dispatcher.
func WithMetrics(collector MetricsCollector) Option {
	return func(d *Dispatcher) error {
		d.metrics = collector
		return nil
	}
}

// NewDispatcher creates a Dispatcher with optional configuration.
func NewDispatcher(store Store, publisher messaging.Publisher, options ...Option) (*Dispatcher, error) {
	if store == nil {
		return nil, ErrNilStore
	}

	if publisher == nil {
		return nil, ErrNilPublisher
	}

	d := &Dispatcher{
		store:         store,
		publisher:     publisher,
		resolver:      messaging.RouteFor,
		clock:         time.Now,
		maxRetries:    defaultMaxRetries,
		interval:      defaultInterval,
		retryInterval: defaultRetryInterval,
		batchSize:     defaultBatchSize,
	}

	for _, option := range options {
		if err := option(d); err != nil {
			return nil, err
		}
	}

	return d, nil
}

// MaxRetries returns the configured retry ceiling.
func (d *Dispatcher) MaxRetries() int {
	return d.maxRetries
}

// DispatchPending publishes unprocessed Records in creation order.
// Records that reached the retry ceiling are skipped.
func (d *Dispatcher) DispatchPending(ctx context.Context) (CycleResult, error) {
	return d.runCycle(ctx, cyclePending, Selection{
		MinRetryCount:   0,
		BelowRetryCount: d.maxRetries,
		Limit:           d.batchSize,
	})
}

// RetryFailed publishes Records that failed before but are below the retry ceiling.
func (d *Dispatcher) RetryFailed(ctx context.Context) (CycleResult, error) {
	return d.runCycle(ctx, cycleRetry, Selection{
		MinRetryCount:   1,
		BelowRetryCount: d.maxRetries,
		Limit:           d.batchSize,
	})
}

// Run drives the pending cycle and the retry cycle on their intervals until ctx is done.
// Cycle errors are logged; Run returns nil on cancellation.
func (d *Dispatcher) Run(ctx context.Context) error {
	pendingTicker := time.NewTicker(d.interval)
	defer pendingTicker.Stop()

	retryTicker := time.NewTicker(d.retryInterval)
	defer retryTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-pendingTicker.C:
			if _, err := d.DispatchPending(ctx); err != nil && ctx.Err() == nil {
				d.logError(ctx, logMsgCycleFailed, err, logAttrCycle, cyclePending)
			}

		case <-retryTicker.C:
			if _, err := d.RetryFailed(ctx); err != nil && ctx.Err() == nil {
				d.logError(ctx, logMsgCycleFailed, err, logAttrCycle, cycleRetry)
			}
		}
	}
}

func (d *Dispatcher) runCycle(ctx context.Context, cycle string, selection Selection) (result CycleResult, err error) {
	d.cycleMu.Lock()
	defer d.cycleMu.Unlock()

	start := time.Now()
	defer func() {
		d.recordCycleDuration(cycle, time.Since(start), err)
	}()

	if d.locker != nil {
		release, acquired, lockErr := d.locker.TryLock(ctx)
		if lockErr != nil {
			return CycleResult{}, lockErr
		}

		if !acquired {
			d.logDebug(ctx, logMsgCycleSkippedLocked, logAttrCycle, cycle)
			return CycleResult{Skipped: true}, nil
		}

		defer release()
	}

	records, err := d.store.SelectUnprocessed(ctx, selection)
	if err != nil {
		d.logError(ctx, logMsgSelectFailed, err, logAttrCycle, cycle)
		return CycleResult{}, err
	}

	result.Selected = len(records)

	for _, record := range records {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}

		if d.publish(ctx, cycle, record) {
			result.Published++
		} else {
			result.Failed++
		}
	}

	if result.Failed > 0 {
		d.recordExhausted(ctx, cycle)
	}

	if result.Selected > 0 {
		d.logInfo(ctx, logMsgCycleCompleted,
			logAttrCycle, cycle,
			logAttrSelected, result.Selected,
			logAttrPublished, result.Published,
			logAttrFailed, result.Failed,
			logAttrDurationMS, time.Since(start).Milliseconds(),
		)
	}

	return result, nil
}

// publish sends one Record and records the outcome. It returns true on success.
func (d *Dispatcher) publish(ctx context.Context, cycle string, record Record) bool {
	publishErr := d.send(ctx, record)
	if publishErr == nil {
		if err := d.store.MarkProcessed(ctx, record.ID, d.clock().UTC()); err != nil {
			d.logError(ctx, logMsgMarkProcessedFailed, err, logAttrRecordID, record.ID.String())
		}

		d.incrementCounter(metricPublished, cycle, record.EventType)
		d.logDebug(ctx, logMsgRecordPublished, logAttrRecordID, record.ID.String(), logAttrEventType, record.EventType)

		return true
	}

	d.incrementCounter(metricPublishFailed, cycle, record.EventType)

	if err := d.store.MarkFailed(ctx, record.ID, publishErr.Error()); err != nil {
		d.logError(ctx, logMsgMarkFailedFailed, err, logAttrRecordID, record.ID.String())
		return false
	}

	retryCount := record.RetryCount + 1
	args := []any{
		logAttrRecordID, record.ID.String(),
		logAttrEventType, record.EventType,
		logAttrAggregateID, record.AggregateID,
		logAttrRetryCount, retryCount,
		logAttrError, publishErr.Error(),
	}

	if retryCount >= d.maxRetries {
		d.logWarn(ctx, logMsgRecordExhausted, args...)
	} else {
		d.logWarn(ctx, logMsgPublishFailed, args...)
	}

	return false
}

func (d *Dispatcher) send(ctx context.Context, record Record) error {
	route, err := d.resolver(record.AggregateType, record.EventType)
	if err != nil {
		return errors.Join(ErrUnknownDestination, err)
	}

	if err = d.publisher.Publish(ctx, route.Exchange, route.RoutingKey, record.Payload); err != nil {
		return errors.Join(ErrPublishFailed, err)
	}

	return nil
}
