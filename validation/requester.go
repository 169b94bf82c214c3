package validation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-catalog-go/catalog"
	"github.com/AntonStoeckl/library-catalog-go/messaging"
)

const (
	defaultTimeout       = 30 * time.Second
	defaultSweepInterval = time.Second
	defaultSweepBatch    = 100

	logMsgRequestSent      = "validation: request published"
	logMsgRequestFailed    = "validation: request could not be published"
	logMsgResponseUnknown  = "validation: response for unknown or expired request dropped"
	logMsgResponseLate     = "validation: response arrived after the deadline"
	logMsgRequestTimedOut  = "validation: request timed out"
	logMsgResponseReceived = "validation: response received"
	logMsgSweepFailed      = "validation: expiring overdue requests failed"
	logAttrRequestID       = "request_id"
	logAttrNaturalKey      = "natural_key"
	logAttrCorrelationKey  = "correlation_key"
	logAttrExists          = "exists"
	metricRequests         = "validation_requests_total"
	metricResponses        = "validation_responses_total"
	metricTimeouts         = "validation_timeouts_total"
	metricDroppedResponses = "validation_responses_dropped_total"
	metricRoundTrip        = "validation_round_trip_duration_seconds"
	metricAnswers          = "validation_answers_total"
	operationRequest       = "request"
	operationResponse      = "response"
)

// Requester issues validation requests and completes them from responses or deadlines.
type Requester struct {
	store         PendingStore
	publisher     messaging.Publisher
	onResult      ResultHandler
	timeout       time.Duration
	sweepInterval time.Duration
	sweepBatch    int
	clock         func() time.Time
	obs           catalog.Observability
	ephemeral     bool
}

// RequesterOption defines a functional option for configuring Requester.
type RequesterOption func(*Requester) error

// WithTimeout sets how long a request waits for its response.
func WithTimeout(timeout time.Duration) RequesterOption {
	return func(r *Requester) error {
		if timeout <= 0 {
			return errors.New("timeout must be positive")
		}

		r.timeout = timeout

		return nil
	}
}

// WithSweepInterval sets how often Run expires overdue requests.
func WithSweepInterval(interval time.Duration) RequesterOption {
	return func(r *Requester) error {
		if interval <= 0 {
			return errors.New("sweep interval must be positive")
		}

		r.sweepInterval = interval

		return nil
	}
}

// WithClock sets the time source for deadlines.
func WithClock(clock func() time.Time) RequesterOption {
	return func(r *Requester) error {
		if clock == nil {
			return errors.New("clock must not be nil")
		}

		r.clock = clock

		return nil
	}
}

// WithRequesterObservability sets logging, metrics and tracing for the Requester.
func WithRequesterObservability(obs catalog.Observability) RequesterOption {
	return func(r *Requester) error {
		r.obs = obs
		return nil
	}
}

// WithEphemeralResponses makes Register consume responses on a per-instance queue instead of
// the lending service's durable one. Responses for requests of other instances are dropped.
func WithEphemeralResponses() RequesterOption {
	return func(r *Requester) error {
		r.ephemeral = true
		return nil
	}
}

// NewRequester creates a Requester. onResult receives one Result per request.
func NewRequester(
	store PendingStore,
	publisher messaging.Publisher,
	onResult ResultHandler,
	options ...RequesterOption,
) (*Requester, error) {

	switch {
	case store == nil:
		return nil, ErrNilPendingStore
	case publisher == nil:
		return nil, ErrNilPublisher
	case onResult == nil:
		return nil, ErrNilResultHandler
	}

	r := &Requester{
		store:         store,
		publisher:     publisher,
		onResult:      onResult,
		timeout:       defaultTimeout,
		sweepInterval: defaultSweepInterval,
		sweepBatch:    defaultSweepBatch,
		clock:         time.Now,
	}

	for _, option := range options {
		if err := option(r); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// Request asks whether the book naturalKey exists and returns the request id.
// correlationKey is echoed back in the Result.
// The request is published directly, so a lost message surfaces as a timeout.
func (r *Requester) Request(ctx context.Context, naturalKey string, correlationKey string) (string, error) {
	if naturalKey == "" {
		return "", ErrInvalidRequest
	}

	requestID := uuid.NewString()

	pending := Pending{
		RequestID:      requestID,
		NaturalKey:     naturalKey,
		CorrelationKey: correlationKey,
		Deadline:       r.clock().Add(r.timeout).UTC(),
	}

	if err := r.store.Put(ctx, pending); err != nil {
		return "", err
	}

	err := messaging.PublishMessage(ctx, r.publisher, messaging.RouteValidationRequest, messaging.ValidationRequest{
		RequestID:      requestID,
		NaturalKey:     naturalKey,
		CorrelationKey: correlationKey,
	})

	if err != nil {
		r.obs.Error(ctx, logMsgRequestFailed, err, logAttrRequestID, requestID, logAttrNaturalKey, naturalKey)

		if _, _, takeErr := r.store.Take(ctx, requestID); takeErr != nil {
			return "", errors.Join(ErrRequestNotSent, err, takeErr)
		}

		return "", errors.Join(ErrRequestNotSent, err)
	}

	r.obs.Debug(ctx, logMsgRequestSent, logAttrRequestID, requestID, logAttrNaturalKey, naturalKey)
	r.obs.IncrementCounter(ctx, metricRequests, operationRequest)

	return requestID, nil
}

// OnValidationResponse completes the request the response belongs to.
// Responses for unknown or already expired requests are logged and dropped.
func (r *Requester) OnValidationResponse(ctx context.Context, msg messaging.ValidationResponse) error {
	pending, found, err := r.store.Take(ctx, msg.RequestID)
	if err != nil {
		return err
	}

	if !found {
		r.obs.Warn(ctx, logMsgResponseUnknown, logAttrRequestID, msg.RequestID, logAttrNaturalKey, msg.NaturalKey)
		r.obs.IncrementCounter(ctx, metricDroppedResponses, operationResponse)

		return nil
	}

	if r.clock().After(pending.Deadline) {
		r.obs.Warn(ctx, logMsgResponseLate, logAttrRequestID, msg.RequestID, logAttrNaturalKey, msg.NaturalKey)
		r.expire(ctx, pending)

		return nil
	}

	r.obs.Debug(ctx, logMsgResponseReceived,
		logAttrRequestID, msg.RequestID, logAttrNaturalKey, pending.NaturalKey, logAttrExists, msg.Exists)
	r.obs.IncrementCounter(ctx, metricResponses, operationResponse)
	r.obs.RecordDuration(ctx, metricRoundTrip, operationResponse, r.timeout-pending.Deadline.Sub(r.clock()), nil)

	r.onResult(ctx, Result{
		RequestID:      pending.RequestID,
		NaturalKey:     pending.NaturalKey,
		CorrelationKey: pending.CorrelationKey,
		Exists:         msg.Exists,
		Message:        msg.Message,
	})

	return nil
}

// ExpireOverdue completes every request past its deadline with ErrValidationTimedOut.
func (r *Requester) ExpireOverdue(ctx context.Context) (int, error) {
	expired := 0

	for {
		overdue, err := r.store.TakeOverdue(ctx, r.clock(), r.sweepBatch)
		for _, pending := range overdue {
			r.expire(ctx, pending)
		}

		expired += len(overdue)

		if err != nil {
			return expired, err
		}

		if len(overdue) < r.sweepBatch {
			return expired, nil
		}
	}
}

// Run expires overdue requests periodically until ctx is done.
func (r *Requester) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := r.ExpireOverdue(ctx); err != nil && ctx.Err() == nil {
				r.obs.Error(ctx, logMsgSweepFailed, err)
			}
		}
	}
}

func (r *Requester) expire(ctx context.Context, pending Pending) {
	r.obs.Warn(ctx, logMsgRequestTimedOut,
		logAttrRequestID, pending.RequestID, logAttrNaturalKey, pending.NaturalKey, logAttrCorrelationKey, pending.CorrelationKey)
	r.obs.IncrementCounter(ctx, metricTimeouts, operationRequest)

	r.onResult(ctx, Result{
		RequestID:      pending.RequestID,
		NaturalKey:     pending.NaturalKey,
		CorrelationKey: pending.CorrelationKey,
		TimedOut:       true,
		Err:            ErrValidationTimedOut,
	})
}

// Register binds the response handler to the lending service's durable queue.
func (r *Requester) Register(router *messaging.Router, logger messaging.ContextualLogger) error {
	binding := messaging.DurableBinding(messaging.QueueLendingValidationResponses, messaging.RouteValidationResponse)
	if r.ephemeral {
		binding = messaging.EphemeralBinding(messaging.RouteValidationResponse)
	}

	return router.Register(binding, messaging.Handle(logger, "lending.on-book-validated", r.OnValidationResponse))
}
