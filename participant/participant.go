package participant

import (
	"context"
	"errors"

	"github.com/AntonStoeckl/library-catalog-go/catalog"
	"github.com/AntonStoeckl/library-catalog-go/messaging"
	"github.com/AntonStoeckl/library-catalog-go/outbox"
)

const (
	logMsgPlaceholderCreated  = "participant: placeholder created"
	logMsgPlaceholderReused   = "participant: existing entity reused"
	logMsgPlaceholderFailed   = "participant: placeholder could not be written, compensating"
	logMsgCompensationFailed  = "participant: compensation notice could not be published"
	logMsgCompensationSent    = "participant: compensation notice published"
	logMsgAlreadyFinalized    = "participant: entity already finalized, no event emitted"
	logMsgFinalized           = "participant: entity finalized"
	logAttrNaturalKey         = "natural_key"
	logAttrName               = "name"
	logAttrID                 = "id"
	logAttrParticipant        = "participant"
	metricPlaceholdersCreated = "participant_placeholders_created_total"
	metricCompensations       = "participant_compensations_total"
	metricFinalized           = "participant_finalized_total"
)

// ErrNilPublisher is returned when a participant is created without a compensation publisher.
var ErrNilPublisher = errors.New("compensation publisher must not be nil")

// Option defines a functional option for configuring a participant.
type Option func(*base) error

// WithObservability sets logging, metrics and tracing for a participant.
func WithObservability(obs catalog.Observability) Option {
	return func(b *base) error {
		b.obs = obs
		return nil
	}
}

type base struct {
	name      string
	uow       catalog.UnitOfWork
	publisher messaging.Publisher
	obs       catalog.Observability
}

func newBase(name string, uow catalog.UnitOfWork, publisher messaging.Publisher, options []Option) (base, error) {
	if uow == nil {
		return base{}, catalog.ErrNilUnitOfWork
	}

	if publisher == nil {
		return base{}, ErrNilPublisher
	}

	b := base{name: name, uow: uow, publisher: publisher}

	for _, option := range options {
		if err := option(&b); err != nil {
			return base{}, err
		}
	}

	return b, nil
}

// transactRetryingDuplicate runs fn and runs it once more if it lost a uniqueness race,
// so that the second attempt finds the winner's row.
func (b base) transactRetryingDuplicate(ctx context.Context, fn catalog.TxFunc) error {
	err := b.uow.Transact(ctx, fn)
	if errors.Is(err, catalog.ErrDuplicateKey) {
		err = b.uow.Transact(ctx, fn)
	}

	return err
}

// compensate publishes a CreationFailed notice directly. A publish failure is logged and swallowed.
func (b base) compensate(ctx context.Context, route messaging.Route, naturalKey string, msg any) {
	b.obs.IncrementCounter(ctx, metricCompensations, b.name)

	if err := messaging.PublishMessage(ctx, b.publisher, route, msg); err != nil {
		b.obs.Error(ctx, logMsgCompensationFailed, err, logAttrParticipant, b.name, logAttrNaturalKey, naturalKey)
		return
	}

	b.obs.Info(ctx, logMsgCompensationSent, logAttrParticipant, b.name, logAttrNaturalKey, naturalKey)
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
