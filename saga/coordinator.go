package saga

import (
	"context"
	"errors"
	"time"

	"github.com/AntonStoeckl/library-catalog-go/catalog"
	"github.com/AntonStoeckl/library-catalog-go/messaging"
	"github.com/AntonStoeckl/library-catalog-go/outbox"
)

const (
	logMsgRequestAccepted     = "saga: book creation requested"
	logMsgBookExists          = "saga: book already exists, nothing to do"
	logMsgRequestPending      = "saga: book creation already in progress"
	logMsgRaceLost            = "saga: concurrent request for the same book won, returning its state"
	logMsgBookCreated         = "saga: book created"
	logMsgWaitingForAuthor    = "saga: response recorded, author reference not yet resolvable"
	logMsgUnknownRequest      = "saga: no pending request for event"
	logMsgCompleted           = "saga: book creation completed"
	logMsgConfirmationMissing = "saga: finalization confirmed for unknown request"
	logMsgParticipantFailed   = "saga: participant reported creation failure"
	logAttrNaturalKey         = "natural_key"
	logAttrAuthorID           = "author_id"
	logAttrGenreName          = "genre_name"
	logAttrStatus             = "status"
	logAttrReason             = "reason"
	logAttrTrigger            = "trigger"

	triggerAuthor = "author"
	triggerGenre  = "genre"

	spanNameCreate = "saga.create"

	metricRequests       = "saga_requests_total"
	metricBooksCreated   = "saga_books_created_total"
	metricCompleted      = "saga_completed_total"
	metricFailures       = "saga_participant_failures_total"
	metricCreateDuration = "saga_create_duration_seconds"

	operationCreate = "create"
)

// Coordinator drives the Book-creation saga on the book service side.
type Coordinator struct {
	uow   catalog.UnitOfWork
	clock func() time.Time
	obs   catalog.Observability
}

// Option defines a functional option for configuring Coordinator.
type Option func(*Coordinator) error

// WithObservability sets logging, metrics and tracing for the Coordinator.
func WithObservability(obs catalog.Observability) Option {
	return func(c *Coordinator) error {
		c.obs = obs
		return nil
	}
}

// WithClock sets the time source for PendingRequest creation times.
func WithClock(clock func() time.Time) Option {
	return func(c *Coordinator) error {
		if clock == nil {
			return errors.New("clock must not be nil")
		}

		c.clock = clock

		return nil
	}
}

// NewCoordinator creates a Coordinator on top of the book service's UnitOfWork.
func NewCoordinator(uow catalog.UnitOfWork, options ...Option) (*Coordinator, error) {
	if uow == nil {
		return nil, catalog.ErrNilUnitOfWork
	}

	c := &Coordinator{uow: uow, clock: time.Now}

	for _, option := range options {
		if err := option(c); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// Create starts the saga for intent, or reports the state of the existing Book or saga.
// It never waits for participant responses.
func (c *Coordinator) Create(ctx context.Context, intent Intent) (outcome Outcome, err error) {
	start := time.Now()
	ctx, finishSpan := c.obs.StartSpan(ctx, spanNameCreate, map[string]string{logAttrNaturalKey: intent.NaturalKey})
	defer func() {
		finishSpan(err)
		c.obs.RecordDuration(ctx, metricCreateDuration, operationCreate, time.Since(start), err)
	}()

	if err = intent.Validate(); err != nil {
		return Outcome{}, err
	}

	outcome, err = c.createOrReport(ctx, intent)
	if errors.Is(err, catalog.ErrDuplicateKey) {
		c.obs.Info(ctx, logMsgRaceLost, logAttrNaturalKey, intent.NaturalKey)

		outcome, err = c.report(ctx, intent.NaturalKey)
	}

	if err != nil {
		return Outcome{}, err
	}

	return outcome, nil
}

func (c *Coordinator) createOrReport(ctx context.Context, intent Intent) (Outcome, error) {
	var outcome Outcome

	err := c.uow.Transact(ctx, func(ctx context.Context, tx catalog.Tx) error {
		existing, found, err := findExisting(ctx, tx, intent.NaturalKey)
		if err != nil {
			return err
		}

		if found {
			outcome = existing
			return nil
		}

		request := catalog.NewPendingRequest(
			intent.NaturalKey,
			intent.Title,
			intent.Description,
			intent.AuthorName,
			intent.GenreName,
			c.clock(),
		)

		if request, err = tx.PendingRequests().Save(ctx, request); err != nil {
			return err
		}

		if err = recordEvent(ctx, tx, messaging.AggregateBook, request.NaturalKey, messaging.EventTypeBookRequested, messaging.BookRequested{
			NaturalKey:  request.NaturalKey,
			AuthorName:  request.AuthorName,
			GenreName:   request.GenreName,
			Title:       request.Title,
			Description: request.Description,
		}); err != nil {
			return err
		}

		outcome = Outcome{Status: request.Status}

		return nil
	})

	if err != nil {
		return Outcome{}, err
	}

	switch {
	case outcome.AlreadyExisted:
		c.obs.Debug(ctx, logMsgBookExists, logAttrNaturalKey, intent.NaturalKey)
	case outcome.AlreadyPending:
		c.obs.Debug(ctx, logMsgRequestPending, logAttrNaturalKey, intent.NaturalKey, logAttrStatus, string(outcome.Status))
	default:
		c.obs.Info(ctx, logMsgRequestAccepted, logAttrNaturalKey, intent.NaturalKey)
		c.obs.IncrementCounter(ctx, metricRequests, operationCreate)
	}

	return outcome, nil
}

// report re-reads the state after a lost uniqueness race.
func (c *Coordinator) report(ctx context.Context, naturalKey catalog.NaturalKeyString) (Outcome, error) {
	var outcome Outcome

	err := c.uow.Transact(ctx, func(ctx context.Context, tx catalog.Tx) error {
		existing, found, err := findExisting(ctx, tx, naturalKey)
		if err != nil {
			return err
		}

		if !found {
			return errors.Join(catalog.ErrNotFound, errors.New("state vanished after duplicate key"))
		}

		outcome = existing

		return nil
	})

	return outcome, err
}

func findExisting(ctx context.Context, tx catalog.Tx, naturalKey catalog.NaturalKeyString) (Outcome, bool, error) {
	book, err := tx.Books().FindByNaturalKey(ctx, naturalKey)
	if err == nil {
		return Outcome{Status: catalog.StatusCreated, Book: &book, AlreadyExisted: true}, true, nil
	}

	if !errors.Is(err, catalog.ErrNotFound) {
		return Outcome{}, false, err
	}

	request, err := tx.PendingRequests().FindByNaturalKey(ctx, naturalKey)
	if err == nil {
		return Outcome{Status: request.Status, AlreadyPending: true}, true, nil
	}

	if !errors.Is(err, catalog.ErrNotFound) {
		return Outcome{}, false, err
	}

	return Outcome{}, false, nil
}

func recordEvent(
	ctx context.Context,
	tx catalog.Tx,
	aggregateType string,
	aggregateID string,
	eventType string,
	msg any,
) error {

	record, err := outbox.NewRecord(aggregateType, aggregateID, eventType, msg)
	if err != nil {
		return err
	}

	return tx.Outbox().Append(ctx, record)
}
