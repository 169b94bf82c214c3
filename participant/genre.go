package participant

import (
	"context"
	"errors"

	"github.com/AntonStoeckl/library-catalog-go/catalog"
	"github.com/AntonStoeckl/library-catalog-go/messaging"
)

const participantGenre = "genre"

// GenreParticipant is the genre service's saga participant. Genres are identified by name.
type GenreParticipant struct {
	base
}

// NewGenreParticipant creates a GenreParticipant on the genre service's UnitOfWork.
// publisher carries compensation notices only.
func NewGenreParticipant(uow catalog.UnitOfWork, publisher messaging.Publisher, options ...Option) (*GenreParticipant, error) {
	b, err := newBase(participantGenre, uow, publisher, options)
	if err != nil {
		return nil, err
	}

	return &GenreParticipant{base: b}, nil
}

// OnBookRequested resolves or creates the genre placeholder and answers with GenrePendingCreated.
func (p *GenreParticipant) OnBookRequested(ctx context.Context, msg messaging.BookRequested) error {
	var (
		genre   catalog.Genre
		created bool
	)

	err := p.transactRetryingDuplicate(ctx, func(ctx context.Context, tx catalog.Tx) error {
		var err error

		genre, err = tx.Genres().FindByName(ctx, msg.GenreName)
		switch {
		case errors.Is(err, catalog.ErrNotFound):
			if genre, err = tx.Genres().Save(ctx, catalog.NewGenrePlaceholder(msg.GenreName)); err != nil {
				return err
			}

			created = true
		case err != nil:
			return err
		default:
			created = false
		}

		return recordEvent(ctx, tx, messaging.AggregateGenre, genre.Name, messaging.EventTypeGenrePendingCreated, messaging.GenrePendingCreated{
			GenreName:  genre.Name,
			NaturalKey: msg.NaturalKey,
		})
	})

	if err != nil {
		p.obs.Error(ctx, logMsgPlaceholderFailed, err, logAttrParticipant, p.name, logAttrNaturalKey, msg.NaturalKey, logAttrName, msg.GenreName)
		p.compensate(ctx, messaging.RouteGenreCreationFailed, msg.NaturalKey, messaging.GenreCreationFailed{
			NaturalKey:   msg.NaturalKey,
			GenreName:    msg.GenreName,
			ErrorMessage: err.Error(),
		})

		return err
	}

	if created {
		p.obs.Info(ctx, logMsgPlaceholderCreated, logAttrParticipant, p.name, logAttrName, genre.Name, logAttrID, genre.ID)
		p.obs.IncrementCounter(ctx, metricPlaceholdersCreated, p.name)
	} else {
		p.obs.Debug(ctx, logMsgPlaceholderReused, logAttrParticipant, p.name, logAttrName, genre.Name, logAttrID, genre.ID)
	}

	return nil
}

// OnBookFinalized finalizes the genre placeholder once and announces GenreCreated.
func (p *GenreParticipant) OnBookFinalized(ctx context.Context, msg messaging.BookFinalized) error {
	err := p.uow.Transact(ctx, func(ctx context.Context, tx catalog.Tx) error {
		genre, err := tx.Genres().FindByName(ctx, msg.GenreName)
		if err != nil {
			return err
		}

		if err = genre.Finalize(); err != nil {
			return err
		}

		if genre, err = tx.Genres().Save(ctx, genre); err != nil {
			return err
		}

		return recordEvent(ctx, tx, messaging.AggregateGenre, genre.Name, messaging.EventTypeGenreCreated, messaging.GenreCreated{
			Genre:      genre.Name,
			Version:    genre.Version,
			NaturalKey: msg.NaturalKey,
		})
	})

	if errors.Is(err, catalog.ErrAlreadyFinalized) {
		p.obs.Info(ctx, logMsgAlreadyFinalized, logAttrParticipant, p.name, logAttrName, msg.GenreName, logAttrNaturalKey, msg.NaturalKey)
		return nil
	}

	if err != nil {
		return err
	}

	p.obs.Info(ctx, logMsgFinalized, logAttrParticipant, p.name, logAttrName, msg.GenreName, logAttrNaturalKey, msg.NaturalKey)
	p.obs.IncrementCounter(ctx, metricFinalized, p.name)

	return nil
}

// Register binds the participant's handlers to the genre service's durable queues.
func (p *GenreParticipant) Register(router *messaging.Router, logger messaging.ContextualLogger) error {
	if err := router.Register(
		messaging.DurableBinding(messaging.QueueGenreBookRequested, messaging.RouteBookRequested),
		messaging.Handle(logger, "genre.on-book-requested", p.OnBookRequested),
	); err != nil {
		return err
	}

	return router.Register(
		messaging.DurableBinding(messaging.QueueGenreBookFinalized, messaging.RouteBookFinalized),
		messaging.Handle(logger, "genre.on-book-finalized", p.OnBookFinalized),
	)
}
