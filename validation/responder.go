package validation

import (
	"context"
	"errors"

	"github.com/AntonStoeckl/library-catalog-go/catalog"
	"github.com/AntonStoeckl/library-catalog-go/messaging"
	"github.com/AntonStoeckl/library-catalog-go/outbox"
)

const (
	messageBookExists  = "book exists"
	messageBookMissing = "book does not exist"

	logMsgAnswered = "validation: request answered"
)

// Responder answers validation requests on the book service.
type Responder struct {
	uow catalog.UnitOfWork
	obs catalog.Observability
}

// ResponderOption defines a functional option for configuring Responder.
type ResponderOption func(*Responder) error

// WithResponderObservability sets logging, metrics and tracing for the Responder.
func WithResponderObservability(obs catalog.Observability) ResponderOption {
	return func(r *Responder) error {
		r.obs = obs
		return nil
	}
}

// NewResponder creates a Responder on the book service's UnitOfWork.
func NewResponder(uow catalog.UnitOfWork, options ...ResponderOption) (*Responder, error) {
	if uow == nil {
		return nil, catalog.ErrNilUnitOfWork
	}

	r := &Responder{uow: uow}

	for _, option := range options {
		if err := option(r); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// OnValidationRequest looks the book up and records the ValidationResponse in the outbox.
func (r *Responder) OnValidationRequest(ctx context.Context, msg messaging.ValidationRequest) error {
	response := messaging.ValidationResponse{
		RequestID:      msg.RequestID,
		CorrelationKey: msg.CorrelationKey,
		NaturalKey:     msg.NaturalKey,
	}

	err := r.uow.Transact(ctx, func(ctx context.Context, tx catalog.Tx) error {
		_, err := tx.Books().FindByNaturalKey(ctx, msg.NaturalKey)
		switch {
		case err == nil:
			response.Exists = true
			response.Message = messageBookExists
		case errors.Is(err, catalog.ErrNotFound):
			response.Exists = false
			response.Message = messageBookMissing
		default:
			return err
		}

		record, err := outbox.NewRecord(messaging.AggregateValidation, msg.RequestID, messaging.EventTypeValidationResponse, response)
		if err != nil {
			return err
		}

		return tx.Outbox().Append(ctx, record)
	})

	if err != nil {
		return err
	}

	r.obs.Info(ctx, logMsgAnswered, logAttrRequestID, msg.RequestID, logAttrNaturalKey, msg.NaturalKey, logAttrExists, response.Exists)
	r.obs.IncrementCounter(ctx, metricAnswers, operationResponse)

	return nil
}

// Register binds the request handler to the book service's durable queue.
func (r *Responder) Register(router *messaging.Router, logger messaging.ContextualLogger) error {
	return router.Register(
		messaging.DurableBinding(messaging.QueueBookValidate, messaging.RouteValidationRequest),
		messaging.Handle(logger, "book.on-validate", r.OnValidationRequest),
	)
}
