package participant_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-catalog-go/catalog"
	"github.com/AntonStoeckl/library-catalog-go/memstore"
	"github.com/AntonStoeckl/library-catalog-go/messaging"
	"github.com/AntonStoeckl/library-catalog-go/outbox"
	"github.com/AntonStoeckl/library-catalog-go/participant"
	"github.com/AntonStoeckl/library-catalog-go/testutil/helper"
)

const (
	isbn       = "9780134685991"
	authorName = "Ada Lovelace"
	genreName  = "Non-fiction"
)

var errStorageDown = errors.New("storage unavailable")

// failingSaves wraps a UnitOfWork so that saving authors and genres fails.
type failingSaves struct {
	inner catalog.UnitOfWork
	err   error
}

func (f failingSaves) Transact(ctx context.Context, fn catalog.TxFunc) error {
	return f.inner.Transact(ctx, func(ctx context.Context, tx catalog.Tx) error {
		return fn(ctx, failingTx{Tx: tx, err: f.err})
	})
}

type failingTx struct {
	catalog.Tx
	err error
}

func (t failingTx) Authors() catalog.AuthorRepository {
	return failingAuthors{AuthorRepository: t.Tx.Authors(), err: t.err}
}

func (t failingTx) Genres() catalog.GenreRepository {
	return failingGenres{GenreRepository: t.Tx.Genres(), err: t.err}
}

type failingAuthors struct {
	catalog.AuthorRepository
	err error
}

func (r failingAuthors) Save(context.Context, catalog.Author) (catalog.Author, error) {
	return catalog.Author{}, r.err
}

type failingGenres struct {
	catalog.GenreRepository
	err error
}

func (r failingGenres) Save(context.Context, catalog.Genre) (catalog.Genre, error) {
	return catalog.Genre{}, r.err
}

func givenBookRequested() messaging.BookRequested {
	return messaging.BookRequested{NaturalKey: isbn, AuthorName: authorName, GenreName: genreName, Title: "Effective Java"}
}

func recordsOfType(store *memstore.Store, eventType string) []outbox.Record {
	var matching []outbox.Record

	for _, record := range store.OutboxRecords() {
		if record.EventType == eventType {
			matching = append(matching, record)
		}
	}

	return matching
}

func Test_AuthorParticipant_OnBookRequested_CreatesPlaceholderAndAnswers(t *testing.T) {
	// setup
	ctx := context.Background()
	store := memstore.New()
	publisher := helper.NewPublisherSpy()
	metrics := helper.NewMetricsCollectorSpy()
	author, err := participant.NewAuthorParticipant(store, publisher,
		participant.WithObservability(catalog.NewObservability(catalog.WithMetrics(metrics))))
	require.NoError(t, err)

	// act
	err = author.OnBookRequested(ctx, givenBookRequested())

	// assert
	require.NoError(t, err)

	answers := recordsOfType(store, messaging.EventTypeAuthorPendingCreated)
	require.Len(t, answers, 1)
	assert.Equal(t, messaging.AggregateAuthor, answers[0].AggregateType)
	assert.JSONEq(t,
		`{"authorId":1,"naturalKey":"9780134685991","authorName":"Ada Lovelace","genreName":"Non-fiction"}`,
		string(answers[0].Payload))

	require.NoError(t, store.Transact(ctx, func(ctx context.Context, tx catalog.Tx) error {
		placeholder, err := tx.Authors().FindByName(ctx, authorName)
		require.NoError(t, err)
		assert.False(t, placeholder.Finalized)

		return nil
	}))

	assert.Zero(t, publisher.Calls(), "answers go through the outbox")
	assert.Equal(t, 1, metrics.CounterTotal("participant_placeholders_created_total"))
}

func Test_AuthorParticipant_OnBookRequested_ReusesExistingAuthor(t *testing.T) {
	// setup
	ctx := context.Background()
	store := memstore.New()
	author, err := participant.NewAuthorParticipant(store, helper.NewPublisherSpy())
	require.NoError(t, err)
	require.NoError(t, author.OnBookRequested(ctx, givenBookRequested()))

	second := givenBookRequested()
	second.NaturalKey = "9780262033848"

	// act
	err = author.OnBookRequested(ctx, second)

	// assert
	require.NoError(t, err)
	answers := recordsOfType(store, messaging.EventTypeAuthorPendingCreated)
	require.Len(t, answers, 2)
	assert.Contains(t, string(answers[1].Payload), `"authorId":1`)
	assert.Contains(t, string(answers[1].Payload), `"naturalKey":"9780262033848"`)
}

func Test_AuthorParticipant_OnBookRequested_CompensatesWhenPlaceholderWriteFails(t *testing.T) {
	// setup
	ctx := context.Background()
	store := memstore.New()
	publisher := helper.NewPublisherSpy()
	author, err := participant.NewAuthorParticipant(failingSaves{inner: store, err: errStorageDown}, publisher)
	require.NoError(t, err)

	// act
	err = author.OnBookRequested(ctx, givenBookRequested())

	// assert
	assert.ErrorIs(t, err, errStorageDown)
	assert.Empty(t, store.OutboxRecords(), "nothing is recorded by the failed write")

	notices := publisher.PublishedTo(messaging.RoutingKeyAuthorCreationFailed)
	require.Len(t, notices, 1)
	assert.Equal(t, messaging.ExchangeAuthors, notices[0].Exchange)

	notice, err := messaging.Unmarshal[messaging.AuthorCreationFailed](notices[0].Payload)
	require.NoError(t, err)
	assert.Equal(t, isbn, notice.NaturalKey)
	assert.Equal(t, authorName, notice.AuthorName)
	assert.Equal(t, genreName, notice.GenreName)
	assert.Contains(t, notice.ErrorMessage, errStorageDown.Error())
}

func Test_GenreParticipant_OnBookRequested_CompensationFailureIsIsolated(t *testing.T) {
	// setup
	ctx := context.Background()
	logger, logSpy := helper.NewSpyLogger()
	publisher := helper.NewFailingPublisherSpy()
	genre, err := participant.NewGenreParticipant(failingSaves{inner: memstore.New(), err: errStorageDown}, publisher,
		participant.WithObservability(catalog.NewObservability(catalog.WithLogger(logger))))
	require.NoError(t, err)

	// act
	var handlerErr error
	assert.NotPanics(t, func() {
		handlerErr = genre.OnBookRequested(ctx, givenBookRequested())
	})

	// assert
	assert.ErrorIs(t, handlerErr, errStorageDown)
	assert.NotErrorIs(t, handlerErr, helper.ErrPublisherSpyFailure)
	assert.Equal(t, 1, publisher.Calls())
	assert.True(t, logSpy.HasErrorLog("participant: compensation notice could not be published"))
}

func Test_AuthorParticipant_OnBookFinalized_FinalizesOnce(t *testing.T) {
	// setup
	ctx := context.Background()
	store := memstore.New()
	logger, logSpy := helper.NewSpyLogger()
	author, err := participant.NewAuthorParticipant(store, helper.NewPublisherSpy(),
		participant.WithObservability(catalog.NewObservability(catalog.WithContextualLogger(logger))))
	require.NoError(t, err)
	require.NoError(t, author.OnBookRequested(ctx, givenBookRequested()))
	finalized := messaging.BookFinalized{AuthorID: 1, AuthorName: authorName, NaturalKey: isbn, GenreName: genreName}

	// act
	firstErr := author.OnBookFinalized(ctx, finalized)
	secondErr := author.OnBookFinalized(ctx, finalized)

	// assert
	require.NoError(t, firstErr)
	require.NoError(t, secondErr)

	created := recordsOfType(store, messaging.EventTypeAuthorCreated)
	require.Len(t, created, 1, "no duplicate Created event")
	assert.JSONEq(t,
		`{"authorId":1,"name":"Ada Lovelace","bio":"","photoURI":"","version":2,"naturalKey":"9780134685991"}`,
		string(created[0].Payload))
	assert.True(t, logSpy.HasLogWithAttr(slog.LevelInfo, "participant: entity already finalized, no event emitted", "natural_key", isbn))
}

func Test_AuthorParticipant_OnBookFinalized_UnknownAuthorIsNotFound(t *testing.T) {
	// setup
	author, err := participant.NewAuthorParticipant(memstore.New(), helper.NewPublisherSpy())
	require.NoError(t, err)

	// act
	err = author.OnBookFinalized(context.Background(), messaging.BookFinalized{AuthorID: 404, NaturalKey: isbn})

	// assert
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func Test_GenreParticipant_RequestedThenFinalized(t *testing.T) {
	// setup
	ctx := context.Background()
	store := memstore.New()
	genre, err := participant.NewGenreParticipant(store, helper.NewPublisherSpy())
	require.NoError(t, err)

	// act
	require.NoError(t, genre.OnBookRequested(ctx, givenBookRequested()))
	require.NoError(t, genre.OnBookRequested(ctx, givenBookRequested()))
	require.NoError(t, genre.OnBookFinalized(ctx, messaging.BookFinalized{AuthorID: 1, NaturalKey: isbn, GenreName: genreName}))
	require.NoError(t, genre.OnBookFinalized(ctx, messaging.BookFinalized{AuthorID: 1, NaturalKey: isbn, GenreName: genreName}))

	// assert
	answers := recordsOfType(store, messaging.EventTypeGenrePendingCreated)
	require.Len(t, answers, 2, "every request is answered")
	assert.JSONEq(t, `{"genreName":"Non-fiction","naturalKey":"9780134685991"}`, string(answers[0].Payload))

	created := recordsOfType(store, messaging.EventTypeGenreCreated)
	require.Len(t, created, 1)
	assert.JSONEq(t, `{"genre":"Non-fiction","version":2,"naturalKey":"9780134685991"}`, string(created[0].Payload))
}

func Test_Participant_HandlersSwallowErrorsAtTheBoundary(t *testing.T) {
	// setup
	ctx := context.Background()
	router := messaging.NewRouter()
	logger, logSpy := helper.NewSpyLogger()
	author, err := participant.NewAuthorParticipant(failingSaves{inner: memstore.New(), err: errStorageDown}, helper.NewPublisherSpy())
	require.NoError(t, err)
	require.NoError(t, author.Register(router, logger))
	payload, err := messaging.Marshal(givenBookRequested())
	require.NoError(t, err)

	// act
	err = router.Dispatch(ctx, messaging.Delivery{
		Exchange:   messaging.ExchangeBooks,
		RoutingKey: messaging.RoutingKeyBookRequested,
		Payload:    payload,
	})

	// assert
	assert.NoError(t, err)
	assert.True(t, logSpy.HasErrorLog("message handler failed, message is acknowledged"))
}

func Test_NewParticipants_ValidateDependencies(t *testing.T) {
	_, err := participant.NewAuthorParticipant(nil, helper.NewPublisherSpy())
	assert.ErrorIs(t, err, catalog.ErrNilUnitOfWork)

	_, err = participant.NewGenreParticipant(memstore.New(), nil)
	assert.ErrorIs(t, err, participant.ErrNilPublisher)
}
