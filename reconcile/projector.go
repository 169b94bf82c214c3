package reconcile

import (
	"context"
	"errors"
	"time"

	"github.com/AntonStoeckl/library-catalog-go/catalog"
	"github.com/AntonStoeckl/library-catalog-go/messaging"
)

const (
	logMsgFactDeferred      = "reconcile: genre unknown, fact deferred"
	logMsgFactAlreadyBuffer = "reconcile: fact already deferred"
	logMsgReplicaCreated    = "reconcile: book replica created"
	logMsgReplicaExists     = "reconcile: book replica already exists"
	logMsgGenreReplicated   = "reconcile: genre replica stored"
	logMsgFactReplayed      = "reconcile: deferred fact replayed"
	logMsgReplayRaceLost    = "reconcile: deferred fact replayed concurrently"
	logAttrNaturalKey       = "natural_key"
	logAttrGenreName        = "genre_name"
	logAttrPending          = "pending"

	metricDeferred = "reconcile_facts_deferred_total"
	metricReplayed = "reconcile_facts_replayed_total"
	metricReplicas = "reconcile_book_replicas_total"

	operationFinalized = "book_finalized"
	operationGenre     = "genre_created"
)

// BookCatalogProjector maintains the Book and Genre replicas of a downstream service.
type BookCatalogProjector struct {
	uow   catalog.UnitOfWork
	clock func() time.Time
	obs   catalog.Observability
}

// Option defines a functional option for configuring BookCatalogProjector.
type Option func(*BookCatalogProjector) error

// WithObservability sets logging, metrics and tracing for the projector.
func WithObservability(obs catalog.Observability) Option {
	return func(p *BookCatalogProjector) error {
		p.obs = obs
		return nil
	}
}

// WithClock sets the time source for DeferredFact creation times.
func WithClock(clock func() time.Time) Option {
	return func(p *BookCatalogProjector) error {
		if clock == nil {
			return errors.New("clock must not be nil")
		}

		p.clock = clock

		return nil
	}
}

// NewBookCatalogProjector creates a BookCatalogProjector on the downstream service's UnitOfWork.
func NewBookCatalogProjector(uow catalog.UnitOfWork, options ...Option) (*BookCatalogProjector, error) {
	if uow == nil {
		return nil, catalog.ErrNilUnitOfWork
	}

	p := &BookCatalogProjector{uow: uow, clock: time.Now}

	for _, option := range options {
		if err := option(p); err != nil {
			return nil, err
		}
	}

	return p, nil
}

// OnBookFinalized creates the Book replica, or defers the fact while its genre is unknown.
func (p *BookCatalogProjector) OnBookFinalized(ctx context.Context, msg messaging.BookFinalized) error {
	fact := catalog.DeferredFact{
		NaturalKey:  msg.NaturalKey,
		GenreName:   msg.GenreName,
		AuthorID:    msg.AuthorID,
		AuthorName:  msg.AuthorName,
		Title:       msg.Title,
		Description: msg.Description,
		CreatedAt:   p.clock().UTC().Truncate(time.Microsecond),
	}

	deferred := false

	err := p.uow.Transact(ctx, func(ctx context.Context, tx catalog.Tx) error {
		deferred = false

		created, err := createReplica(ctx, tx, fact)
		switch {
		case errors.Is(err, catalog.ErrNotFound):
			deferred = true
			return tx.DeferredFacts().Save(ctx, fact)
		case err != nil:
			return err
		case created:
			p.obs.Info(ctx, logMsgReplicaCreated, logAttrNaturalKey, fact.NaturalKey)
			p.obs.IncrementCounter(ctx, metricReplicas, operationFinalized)
		default:
			p.obs.Debug(ctx, logMsgReplicaExists, logAttrNaturalKey, fact.NaturalKey)
		}

		return nil
	})

	if deferred && errors.Is(err, catalog.ErrDuplicateKey) {
		p.obs.Debug(ctx, logMsgFactAlreadyBuffer, logAttrNaturalKey, fact.NaturalKey)
		return nil
	}

	if err != nil {
		return err
	}

	if !deferred {
		return nil
	}

	p.obs.Info(ctx, logMsgFactDeferred, logAttrNaturalKey, fact.NaturalKey, logAttrGenreName, fact.GenreName)
	p.obs.IncrementCounter(ctx, metricDeferred, operationFinalized)

	// The genre may have been stored between our read and our commit, after its replay scan ran.
	return p.replay(ctx, fact.GenreName)
}

// OnGenreCreated stores the Genre replica and replays every fact deferred for it.
func (p *BookCatalogProjector) OnGenreCreated(ctx context.Context, msg messaging.GenreCreated) error {
	err := p.uow.Transact(ctx, func(ctx context.Context, tx catalog.Tx) error {
		_, err := tx.Genres().FindByName(ctx, msg.Genre)
		if !errors.Is(err, catalog.ErrNotFound) {
			return err
		}

		genre := catalog.Genre{Name: msg.Genre, Finalized: true}
		_, err = tx.Genres().Save(ctx, genre)

		return err
	})

	if err != nil && !errors.Is(err, catalog.ErrDuplicateKey) {
		return err
	}

	p.obs.Debug(ctx, logMsgGenreReplicated, logAttrGenreName, msg.Genre)

	return p.replay(ctx, msg.Genre)
}

// replay applies the facts deferred for genreName, one local write per fact.
// It does nothing while the genre replica is still missing.
func (p *BookCatalogProjector) replay(ctx context.Context, genreName string) error {
	var facts []catalog.DeferredFact

	err := p.uow.Transact(ctx, func(ctx context.Context, tx catalog.Tx) error {
		if _, err := tx.Genres().FindByName(ctx, genreName); err != nil {
			return err
		}

		var err error
		facts, err = tx.DeferredFacts().FindByGenreName(ctx, genreName)

		return err
	})

	if errors.Is(err, catalog.ErrNotFound) {
		return nil
	}

	if err != nil {
		return err
	}

	for i, fact := range facts {
		created := false

		err = p.uow.Transact(ctx, func(ctx context.Context, tx catalog.Tx) error {
			var err error
			if created, err = createReplica(ctx, tx, fact); err != nil {
				return err
			}

			return tx.DeferredFacts().Delete(ctx, fact.NaturalKey)
		})

		if catalog.IsConflict(err) || errors.Is(err, catalog.ErrNotFound) {
			p.obs.Debug(ctx, logMsgReplayRaceLost, logAttrNaturalKey, fact.NaturalKey)
			continue
		}

		if err != nil {
			return err
		}

		if created {
			p.obs.IncrementCounter(ctx, metricReplicas, operationGenre)
		}

		p.obs.Info(ctx, logMsgFactReplayed, logAttrNaturalKey, fact.NaturalKey, logAttrGenreName, genreName, logAttrPending, len(facts)-i-1)
		p.obs.IncrementCounter(ctx, metricReplayed, operationGenre)
	}

	return nil
}

// createReplica creates the Book replica for fact unless it exists.
// It returns catalog.ErrNotFound if the genre replica is missing.
func createReplica(ctx context.Context, tx catalog.Tx, fact catalog.DeferredFact) (bool, error) {
	_, err := tx.Books().FindByNaturalKey(ctx, fact.NaturalKey)
	switch {
	case err == nil:
		return false, nil
	case !errors.Is(err, catalog.ErrNotFound):
		return false, err
	}

	genre, err := tx.Genres().FindByName(ctx, fact.GenreName)
	if err != nil {
		return false, err
	}

	book := catalog.NewBook(fact.NaturalKey, fact.Title, fact.Description, genre.ID, fact.AuthorID)
	if _, err = tx.Books().Save(ctx, book); err != nil {
		return false, err
	}

	return true, nil
}
