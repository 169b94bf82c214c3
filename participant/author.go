package participant

import (
	"context"
	"errors"
	"strconv"

	"github.com/AntonStoeckl/library-catalog-go/catalog"
	"github.com/AntonStoeckl/library-catalog-go/messaging"
)

const participantAuthor = "author"

// AuthorParticipant is the author service's saga participant.
type AuthorParticipant struct {
	base
}

// NewAuthorParticipant creates an AuthorParticipant on the author service's UnitOfWork.
// publisher carries compensation notices only.
func NewAuthorParticipant(uow catalog.UnitOfWork, publisher messaging.Publisher, options ...Option) (*AuthorParticipant, error) {
	b, err := newBase(participantAuthor, uow, publisher, options)
	if err != nil {
		return nil, err
	}

	return &AuthorParticipant{base: b}, nil
}

// OnBookRequested resolves or creates the author placeholder and answers with AuthorPendingCreated.
func (p *AuthorParticipant) OnBookRequested(ctx context.Context, msg messaging.BookRequested) error {
	var (
		author  catalog.Author
		created bool
	)

	err := p.transactRetryingDuplicate(ctx, func(ctx context.Context, tx catalog.Tx) error {
		var err error

		author, err = tx.Authors().FindByName(ctx, msg.AuthorName)
		switch {
		case errors.Is(err, catalog.ErrNotFound):
			if author, err = tx.Authors().Save(ctx, catalog.NewAuthorPlaceholder(msg.AuthorName)); err != nil {
				return err
			}

			created = true
		case err != nil:
			return err
		default:
			created = false
		}

		return recordEvent(ctx, tx, messaging.AggregateAuthor, strconv.FormatInt(author.ID, 10), messaging.EventTypeAuthorPendingCreated, messaging.AuthorPendingCreated{
			AuthorID:   author.ID,
			NaturalKey: msg.NaturalKey,
			AuthorName: author.Name,
			GenreName:  msg.GenreName,
		})
	})

	if err != nil {
		p.obs.Error(ctx, logMsgPlaceholderFailed, err, logAttrParticipant, p.name, logAttrNaturalKey, msg.NaturalKey, logAttrName, msg.AuthorName)
		p.compensate(ctx, messaging.RouteAuthorCreationFailed, msg.NaturalKey, messaging.AuthorCreationFailed{
			NaturalKey:   msg.NaturalKey,
			AuthorName:   msg.AuthorName,
			GenreName:    msg.GenreName,
			ErrorMessage: err.Error(),
		})

		return err
	}

	if created {
		p.obs.Info(ctx, logMsgPlaceholderCreated, logAttrParticipant, p.name, logAttrName, author.Name, logAttrID, author.ID)
		p.obs.IncrementCounter(ctx, metricPlaceholdersCreated, p.name)
	} else {
		p.obs.Debug(ctx, logMsgPlaceholderReused, logAttrParticipant, p.name, logAttrName, author.Name, logAttrID, author.ID)
	}

	return nil
}

// OnBookFinalized finalizes the author placeholder once and announces AuthorCreated.
func (p *AuthorParticipant) OnBookFinalized(ctx context.Context, msg messaging.BookFinalized) error {
	err := p.uow.Transact(ctx, func(ctx context.Context, tx catalog.Tx) error {
		author, err := tx.Authors().FindByID(ctx, msg.AuthorID)
		if err != nil {
			return err
		}

		if err = author.Finalize(); err != nil {
			return err
		}

		if author, err = tx.Authors().Save(ctx, author); err != nil {
			return err
		}

		return recordEvent(ctx, tx, messaging.AggregateAuthor, strconv.FormatInt(author.ID, 10), messaging.EventTypeAuthorCreated, messaging.AuthorCreated{
			AuthorID:   author.ID,
			Name:       author.Name,
			Bio:        author.Bio,
			PhotoURI:   author.PhotoURI,
			Version:    author.Version,
			NaturalKey: msg.NaturalKey,
		})
	})

	if errors.Is(err, catalog.ErrAlreadyFinalized) {
		p.obs.Info(ctx, logMsgAlreadyFinalized, logAttrParticipant, p.name, logAttrID, msg.AuthorID, logAttrNaturalKey, msg.NaturalKey)
		return nil
	}

	if err != nil {
		return err
	}

	p.obs.Info(ctx, logMsgFinalized, logAttrParticipant, p.name, logAttrID, msg.AuthorID, logAttrNaturalKey, msg.NaturalKey)
	p.obs.IncrementCounter(ctx, metricFinalized, p.name)

	return nil
}

// Register binds the participant's handlers to the author service's durable queues.
func (p *AuthorParticipant) Register(router *messaging.Router, logger messaging.ContextualLogger) error {
	if err := router.Register(
		messaging.DurableBinding(messaging.QueueAuthorBookRequested, messaging.RouteBookRequested),
		messaging.Handle(logger, "author.on-book-requested", p.OnBookRequested),
	); err != nil {
		return err
	}

	return router.Register(
		messaging.DurableBinding(messaging.QueueAuthorBookFinalized, messaging.RouteBookFinalized),
		messaging.Handle(logger, "author.on-book-finalized", p.OnBookFinalized),
	)
}
