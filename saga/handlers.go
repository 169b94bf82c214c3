package saga

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/AntonStoeckl/library-catalog-go/catalog"
	"github.com/AntonStoeckl/library-catalog-go/messaging"
)

// OnAuthorPendingCreated records the author participant's answer and creates the Book
// if the genre reference can be resolved as well.
func (c *Coordinator) OnAuthorPendingCreated(ctx context.Context, msg messaging.AuthorPendingCreated) error {
	var created *catalog.Book
	completed := false

	err := c.uow.Transact(ctx, func(ctx context.Context, tx catalog.Tx) error {
		if exists, err := bookExists(ctx, tx, msg.NaturalKey); err != nil || exists {
			return err
		}

		request, err := tx.PendingRequests().FindByNaturalKey(ctx, msg.NaturalKey)
		switch {
		case errors.Is(err, catalog.ErrNotFound):
			// The event carries both names, so the saga can be picked up without the original intent.
			request = catalog.NewPendingRequest(msg.NaturalKey, "", "", msg.AuthorName, msg.GenreName, c.clock())
		case err != nil:
			return err
		}

		request.RecordAuthorResponse(msg.AuthorID)

		if err = ensureAuthorReference(ctx, tx, msg.AuthorID, msg.AuthorName); err != nil {
			return err
		}

		created, completed, err = c.createBook(ctx, tx, request, msg.AuthorID)

		return err
	})

	return c.afterResponse(ctx, triggerAuthor, msg.NaturalKey, created, completed, err)
}

// OnGenrePendingCreated records the genre participant's answer and creates the Book
// if an author reference is already known for the request.
func (c *Coordinator) OnGenrePendingCreated(ctx context.Context, msg messaging.GenrePendingCreated) error {
	var created *catalog.Book
	completed := false

	err := c.uow.Transact(ctx, func(ctx context.Context, tx catalog.Tx) error {
		if exists, err := bookExists(ctx, tx, msg.NaturalKey); err != nil || exists {
			return err
		}

		request, err := tx.PendingRequests().FindByNaturalKey(ctx, msg.NaturalKey)
		if err != nil {
			return err
		}

		request.RecordGenreResponse()

		authorID := request.AuthorID
		if !request.HasAuthorID() {
			author, findErr := tx.Authors().FindByName(ctx, request.AuthorName)
			switch {
			case errors.Is(findErr, catalog.ErrNotFound):
				c.obs.Debug(ctx, logMsgWaitingForAuthor, logAttrNaturalKey, msg.NaturalKey)
				_, err = tx.PendingRequests().Save(ctx, request)

				return err
			case findErr != nil:
				return findErr
			}

			authorID = author.ID
		}

		created, completed, err = c.createBook(ctx, tx, request, authorID)

		return err
	})

	return c.afterResponse(ctx, triggerGenre, msg.NaturalKey, created, completed, err)
}

// createBook resolves the genre by name, persists the Book and the PendingRequest and
// records BookFinalized and BookCreated in the same write.
// References that are finalized already count as confirmed, since their participant
// sends a Created event only once per entity. completed reports whether that completed the saga.
func (c *Coordinator) createBook(
	ctx context.Context,
	tx catalog.Tx,
	request catalog.PendingRequest,
	authorID catalog.AuthorIDInt64,
) (created *catalog.Book, completed bool, err error) {

	genre, err := resolveOrCreateGenre(ctx, tx, request.GenreName)
	if err != nil {
		return nil, false, err
	}

	author, err := tx.Authors().FindByID(ctx, authorID)
	switch {
	case err == nil:
		if author.Finalized {
			completed = request.RecordAuthorFinalized()
		}
	case !errors.Is(err, catalog.ErrNotFound):
		return nil, false, err
	}

	if genre.Finalized && request.RecordGenreFinalized() {
		completed = true
	}

	book, err := tx.Books().Save(ctx, catalog.NewBook(request.NaturalKey, request.Title, request.Description, genre.ID, authorID))
	if err != nil {
		return nil, false, err
	}

	if _, err = tx.PendingRequests().Save(ctx, request); err != nil {
		return nil, false, err
	}

	if err = recordEvent(ctx, tx, messaging.AggregateBook, book.NaturalKey, messaging.EventTypeBookFinalized, messaging.BookFinalized{
		AuthorID:    authorID,
		AuthorName:  request.AuthorName,
		NaturalKey:  book.NaturalKey,
		GenreName:   genre.Name,
		Title:       book.Title,
		Description: book.Description,
	}); err != nil {
		return nil, false, err
	}

	if err = recordEvent(ctx, tx, messaging.AggregateBook, book.NaturalKey, messaging.EventTypeBookCreated, messaging.BookCreated{
		NaturalKey:  book.NaturalKey,
		Title:       book.Title,
		Description: book.Description,
		Genre:       genre.Name,
		AuthorIDs:   book.AuthorRefs,
		Version:     book.Version,
	}); err != nil {
		return nil, false, err
	}

	return &book, completed, nil
}

func (c *Coordinator) afterResponse(
	ctx context.Context,
	trigger string,
	naturalKey catalog.NaturalKeyString,
	created *catalog.Book,
	completed bool,
	err error,
) error {

	switch {
	case errors.Is(err, catalog.ErrDuplicateKey):
		// Another response created the Book concurrently.
		c.obs.Info(ctx, logMsgRaceLost, logAttrNaturalKey, naturalKey, logAttrTrigger, trigger)
		return nil

	case errors.Is(err, catalog.ErrNotFound):
		c.obs.Warn(ctx, logMsgUnknownRequest, logAttrNaturalKey, naturalKey, logAttrTrigger, trigger)
		return nil

	case err != nil:
		return err
	}

	if created != nil {
		c.obs.Info(ctx, logMsgBookCreated, logAttrNaturalKey, naturalKey, logAttrTrigger, trigger)
		c.obs.IncrementCounter(ctx, metricBooksCreated, trigger)
	}

	if completed {
		c.obs.Info(ctx, logMsgCompleted, logAttrNaturalKey, naturalKey)
		c.obs.IncrementCounter(ctx, metricCompleted, trigger)
	}

	return nil
}

// OnAuthorCreated records the author's finalization and completes the saga if the genre's is in too.
func (c *Coordinator) OnAuthorCreated(ctx context.Context, msg messaging.AuthorCreated) error {
	return c.recordFinalized(ctx, triggerAuthor, msg.NaturalKey, func(ctx context.Context, tx catalog.Tx, request *catalog.PendingRequest) error {
		request.RecordAuthorFinalized()

		author, err := tx.Authors().FindByID(ctx, msg.AuthorID)
		if errors.Is(err, catalog.ErrNotFound) {
			return nil
		}

		if err != nil {
			return err
		}

		if author.Finalized {
			return nil
		}

		author.Finalized = true
		author.Bio = msg.Bio
		author.PhotoURI = msg.PhotoURI
		_, err = tx.Authors().Save(ctx, author)

		return err
	})
}

// OnGenreCreated records the genre's finalization and completes the saga if the author's is in too.
func (c *Coordinator) OnGenreCreated(ctx context.Context, msg messaging.GenreCreated) error {
	return c.recordFinalized(ctx, triggerGenre, msg.NaturalKey, func(ctx context.Context, tx catalog.Tx, request *catalog.PendingRequest) error {
		request.RecordGenreFinalized()

		genre, err := tx.Genres().FindByName(ctx, msg.Genre)
		if errors.Is(err, catalog.ErrNotFound) {
			return nil
		}

		if err != nil {
			return err
		}

		if genre.Finalized {
			return nil
		}

		genre.Finalized = true
		_, err = tx.Genres().Save(ctx, genre)

		return err
	})
}

func (c *Coordinator) recordFinalized(
	ctx context.Context,
	trigger string,
	naturalKey catalog.NaturalKeyString,
	apply func(ctx context.Context, tx catalog.Tx, request *catalog.PendingRequest) error,
) error {

	completed := false

	err := c.uow.Transact(ctx, func(ctx context.Context, tx catalog.Tx) error {
		request, err := tx.PendingRequests().FindByNaturalKey(ctx, naturalKey)
		if err != nil {
			return err
		}

		before := request.Status
		if err = apply(ctx, tx, &request); err != nil {
			return err
		}

		completed = before != catalog.StatusCreated && request.Status == catalog.StatusCreated

		_, err = tx.PendingRequests().Save(ctx, request)

		return err
	})

	if errors.Is(err, catalog.ErrNotFound) {
		c.obs.Debug(ctx, logMsgConfirmationMissing, logAttrNaturalKey, naturalKey, logAttrTrigger, trigger)
		return nil
	}

	if err != nil {
		return err
	}

	if completed {
		c.obs.Info(ctx, logMsgCompleted, logAttrNaturalKey, naturalKey)
		c.obs.IncrementCounter(ctx, metricCompleted, trigger)
	}

	return nil
}

// OnAuthorCreationFailed records the author participant's compensation notice. Nothing is rolled back.
func (c *Coordinator) OnAuthorCreationFailed(ctx context.Context, msg messaging.AuthorCreationFailed) error {
	return c.recordFailure(ctx, triggerAuthor, msg.NaturalKey, fmt.Sprintf("author %q: %s", msg.AuthorName, msg.ErrorMessage))
}

// OnGenreCreationFailed records the genre participant's compensation notice. Nothing is rolled back.
func (c *Coordinator) OnGenreCreationFailed(ctx context.Context, msg messaging.GenreCreationFailed) error {
	return c.recordFailure(ctx, triggerGenre, msg.NaturalKey, fmt.Sprintf("genre %q: %s", msg.GenreName, msg.ErrorMessage))
}

func (c *Coordinator) recordFailure(ctx context.Context, trigger string, naturalKey catalog.NaturalKeyString, reason string) error {
	c.obs.Warn(ctx, logMsgParticipantFailed, logAttrNaturalKey, naturalKey, logAttrTrigger, trigger, logAttrReason, reason)
	c.obs.IncrementCounter(ctx, metricFailures, trigger)

	err := c.uow.Transact(ctx, func(ctx context.Context, tx catalog.Tx) error {
		request, err := tx.PendingRequests().FindByNaturalKey(ctx, naturalKey)
		if err != nil {
			return err
		}

		request.RecordFailure(reason)
		_, err = tx.PendingRequests().Save(ctx, request)

		return err
	})

	if errors.Is(err, catalog.ErrNotFound) {
		return nil
	}

	return err
}

// PendingRequest returns the saga record for naturalKey.
func (c *Coordinator) PendingRequest(ctx context.Context, naturalKey catalog.NaturalKeyString) (catalog.PendingRequest, error) {
	var request catalog.PendingRequest

	err := c.uow.Transact(ctx, func(ctx context.Context, tx catalog.Tx) error {
		var err error
		request, err = tx.PendingRequests().FindByNaturalKey(ctx, naturalKey)

		return err
	})

	return request, err
}

func bookExists(ctx context.Context, tx catalog.Tx, naturalKey catalog.NaturalKeyString) (bool, error) {
	_, err := tx.Books().FindByNaturalKey(ctx, naturalKey)

	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, catalog.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// ensureAuthorReference makes sure the book service knows the author the participant reported.
func ensureAuthorReference(ctx context.Context, tx catalog.Tx, authorID catalog.AuthorIDInt64, name string) error {
	_, err := tx.Authors().FindByID(ctx, authorID)
	if !errors.Is(err, catalog.ErrNotFound) {
		return err
	}

	reference := catalog.NewAuthorPlaceholder(name)
	reference.ID = authorID

	if _, err = tx.Authors().Save(ctx, reference); err != nil {
		return fmt.Errorf("saving reference to author %s: %w", strconv.FormatInt(authorID, 10), err)
	}

	return nil
}

func resolveOrCreateGenre(ctx context.Context, tx catalog.Tx, name string) (catalog.Genre, error) {
	genre, err := tx.Genres().FindByName(ctx, name)
	if err == nil {
		return genre, nil
	}

	if !errors.Is(err, catalog.ErrNotFound) {
		return catalog.Genre{}, err
	}

	return tx.Genres().Save(ctx, catalog.NewGenrePlaceholder(name))
}
