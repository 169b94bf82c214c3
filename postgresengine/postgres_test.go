package postgresengine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-catalog-go/catalog"
	"github.com/AntonStoeckl/library-catalog-go/messaging"
	"github.com/AntonStoeckl/library-catalog-go/outbox"
	"github.com/AntonStoeckl/library-catalog-go/postgresengine"
	"github.com/AntonStoeckl/library-catalog-go/projection"
	"github.com/AntonStoeckl/library-catalog-go/reconcile"
	"github.com/AntonStoeckl/library-catalog-go/testutil/helper"
	"github.com/AntonStoeckl/library-catalog-go/testutil/helper/postgreswrapper"
)

const schemaPath = "testdata/schema.sql"

var errAbort = errors.New("abort")

func givenCleanEngine(t *testing.T, options ...postgresengine.Option) *postgresengine.Engine {
	t.Helper()

	wrapper := postgreswrapper.CreateWrapperWithTestConfig(t, schemaPath, options...)
	t.Cleanup(wrapper.Close)
	postgreswrapper.CleanUp(t, wrapper)

	return wrapper.Engine()
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	return ctx
}

func Test_Book_Save_Then_Find_RoundTripsWithVersion(t *testing.T) {
	// setup
	ctx := testContext(t)
	engine := givenCleanEngine(t)
	var saved, found catalog.Book

	// act
	err := engine.Transact(ctx, func(ctx context.Context, tx catalog.Tx) error {
		var err error
		saved, err = tx.Books().Save(ctx, catalog.NewBook("978-3-16", "Dune", "Desert planet", 7, 3, 4))
		return err
	})
	require.NoError(t, err)

	err = engine.Transact(ctx, func(ctx context.Context, tx catalog.Tx) error {
		var err error
		found, err = tx.Books().FindByNaturalKey(ctx, "978-3-16")
		return err
	})

	// assert
	require.NoError(t, err)
	assert.Equal(t, uint(1), saved.Version)
	assert.Equal(t, saved, found)
	assert.Equal(t, []catalog.AuthorIDInt64{3, 4}, found.AuthorRefs)
}

func Test_Book_Save_WithStaleVersion_IsAVersionConflict(t *testing.T) {
	// setup
	ctx := testContext(t)
	engine := givenCleanEngine(t)
	var first catalog.Book

	require.NoError(t, engine.Transact(ctx, func(ctx context.Context, tx catalog.Tx) error {
		var err error
		first, err = tx.Books().Save(ctx, catalog.NewBook("978-3-16", "Dune", "", 7, 3))
		return err
	}))

	require.NoError(t, engine.Transact(ctx, func(ctx context.Context, tx catalog.Tx) error {
		updated := first
		updated.Title = "Dune Messiah"
		_, err := tx.Books().Save(ctx, updated)
		return err
	}))

	// act
	err := engine.Transact(ctx, func(ctx context.Context, tx catalog.Tx) error {
		stale := first
		stale.Title = "Children of Dune"
		_, err := tx.Books().Save(ctx, stale)
		return err
	})

	// assert
	assert.ErrorIs(t, err, catalog.ErrVersionConflict)
	assert.True(t, catalog.IsConflict(err))
}

func Test_Book_Insert_OfExistingNaturalKey_IsADuplicateKey(t *testing.T) {
	// setup
	ctx := testContext(t)
	metrics := helper.NewMetricsCollectorSpy()
	engine := givenCleanEngine(t, postgresengine.WithMetrics(metrics))

	save := func(ctx context.Context, tx catalog.Tx) error {
		_, err := tx.Books().Save(ctx, catalog.NewBook("978-3-16", "Dune", "", 7, 3))
		return err
	}
	require.NoError(t, engine.Transact(ctx, save))

	// act
	err := engine.Transact(ctx, save)

	// assert
	assert.ErrorIs(t, err, catalog.ErrDuplicateKey)
	assert.Equal(t, 1, metrics.CounterTotal("postgres_statement_errors_total"))
}

func Test_Transact_WhenFnFails_RollsBackEveryWrite(t *testing.T) {
	// setup
	ctx := testContext(t)
	engine := givenCleanEngine(t)

	// act
	err := engine.Transact(ctx, func(ctx context.Context, tx catalog.Tx) error {
		if _, err := tx.Genres().Save(ctx, catalog.NewGenrePlaceholder("Fantasy")); err != nil {
			return err
		}

		record, err := outbox.NewRecord(messaging.AggregateGenre, "Fantasy", messaging.EventTypeGenreCreated, messaging.GenreCreated{Genre: "Fantasy"})
		if err != nil {
			return err
		}

		if err = tx.Outbox().Append(ctx, record); err != nil {
			return err
		}

		return errAbort
	})

	// assert
	assert.ErrorIs(t, err, errAbort)

	err = engine.Transact(ctx, func(ctx context.Context, tx catalog.Tx) error {
		_, err := tx.Genres().FindByName(ctx, "Fantasy")
		return err
	})
	assert.ErrorIs(t, err, catalog.ErrNotFound)

	pending, err := engine.SelectUnprocessed(ctx, outbox.Selection{BelowRetryCount: 5, Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func Test_Author_Save_AssignsIDs_AndNameIsUnique(t *testing.T) {
	// setup
	ctx := testContext(t)
	engine := givenCleanEngine(t)
	var first, byName catalog.Author

	// act
	require.NoError(t, engine.Transact(ctx, func(ctx context.Context, tx catalog.Tx) error {
		var err error
		if first, err = tx.Authors().Save(ctx, catalog.NewAuthorPlaceholder(" Ursula K. Le Guin ")); err != nil {
			return err
		}

		byName, err = tx.Authors().FindByName(ctx, "Ursula K. Le Guin")
		return err
	}))

	duplicateErr := engine.Transact(ctx, func(ctx context.Context, tx catalog.Tx) error {
		_, err := tx.Authors().Save(ctx, catalog.NewAuthorPlaceholder("Ursula K. Le Guin"))
		return err
	})

	// assert
	assert.NotZero(t, first.ID)
	assert.Equal(t, "Ursula K. Le Guin", first.Name)
	assert.Equal(t, first, byName)
	assert.ErrorIs(t, duplicateErr, catalog.ErrDuplicateKey)
}

func Test_Author_Save_WithExplicitID_KeepsIt_AndFinalizeBumpsVersion(t *testing.T) {
	// setup
	ctx := testContext(t)
	engine := givenCleanEngine(t)
	var finalized catalog.Author

	// act
	require.NoError(t, engine.Transact(ctx, func(ctx context.Context, tx catalog.Tx) error {
		author := catalog.NewAuthorPlaceholder("Frank Herbert")
		author.ID = 42

		saved, err := tx.Authors().Save(ctx, author)
		if err != nil {
			return err
		}

		if err = saved.Finalize(); err != nil {
			return err
		}

		if _, err = tx.Authors().Save(ctx, saved); err != nil {
			return err
		}

		finalized, err = tx.Authors().FindByID(ctx, 42)
		return err
	}))

	// assert
	assert.Equal(t, catalog.AuthorIDInt64(42), finalized.ID)
	assert.True(t, finalized.Finalized)
	assert.Equal(t, uint(2), finalized.Version)
}

func Test_PendingRequest_Save_Then_Find_RoundTrips(t *testing.T) {
	// setup
	ctx := testContext(t)
	engine := givenCleanEngine(t)
	createdAt := time.Date(2026, 10, 1, 12, 0, 0, 123000, time.UTC)
	var found catalog.PendingRequest

	// act
	require.NoError(t, engine.Transact(ctx, func(ctx context.Context, tx catalog.Tx) error {
		request := catalog.NewPendingRequest("978-3-16", "Dune", "", "Frank Herbert", "Science Fiction", createdAt)

		saved, err := tx.PendingRequests().Save(ctx, request)
		if err != nil {
			return err
		}

		saved.AuthorID = 42
		saved.AuthorResponded = true
		saved.Status = catalog.StatusAuthorPending

		if _, err = tx.PendingRequests().Save(ctx, saved); err != nil {
			return err
		}

		found, err = tx.PendingRequests().FindByNaturalKey(ctx, "978-3-16")
		return err
	}))

	// assert
	assert.Equal(t, catalog.StatusAuthorPending, found.Status)
	assert.Equal(t, catalog.AuthorIDInt64(42), found.AuthorID)
	assert.True(t, found.AuthorResponded)
	assert.False(t, found.GenreResponded)
	assert.Equal(t, createdAt, found.CreatedAt)
	assert.Equal(t, uint(2), found.Version)
}

func Test_DeferredFacts_AreReturnedOldestFirst_PerGenre(t *testing.T) {
	// setup
	ctx := testContext(t)
	engine := givenCleanEngine(t)
	base := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	var facts []catalog.DeferredFact

	fact := func(key string, genre string, offset time.Duration) catalog.DeferredFact {
		return catalog.DeferredFact{NaturalKey: key, GenreName: genre, AuthorID: 1, CreatedAt: base.Add(offset)}
	}

	// act
	require.NoError(t, engine.Transact(ctx, func(ctx context.Context, tx catalog.Tx) error {
		for _, f := range []catalog.DeferredFact{
			fact("c", "Fantasy", 2*time.Second),
			fact("a", "Fantasy", time.Second),
			fact("b", "Fantasy", time.Second),
			fact("z", "Horror", 0),
		} {
			if err := tx.DeferredFacts().Save(ctx, f); err != nil {
				return err
			}
		}

		if err := tx.DeferredFacts().Delete(ctx, "b"); err != nil {
			return err
		}

		var err error
		facts, err = tx.DeferredFacts().FindByGenreName(ctx, "Fantasy")
		return err
	}))

	duplicateErr := engine.Transact(ctx, func(ctx context.Context, tx catalog.Tx) error {
		return tx.DeferredFacts().Save(ctx, fact("a", "Fantasy", 0))
	})

	// assert
	require.Len(t, facts, 2)
	assert.Equal(t, "a", facts[0].NaturalKey)
	assert.Equal(t, "c", facts[1].NaturalKey)
	assert.Equal(t, base.Add(time.Second), facts[0].CreatedAt)
	assert.ErrorIs(t, duplicateErr, catalog.ErrDuplicateKey)
}

func Test_OutboxStore_SelectsMarksAndCounts(t *testing.T) {
	// setup
	ctx := testContext(t)
	engine := givenCleanEngine(t)
	base := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	records := make([]outbox.Record, 3)

	for i := range records {
		record, err := outbox.NewRecordAt(messaging.AggregateBook, "978-3-16", messaging.EventTypeBookRequested,
			messaging.BookRequested{NaturalKey: "978-3-16"}, base.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
		records[i] = record
	}

	require.NoError(t, engine.Transact(ctx, func(ctx context.Context, tx catalog.Tx) error {
		for _, record := range records {
			if err := tx.Outbox().Append(ctx, record); err != nil {
				return err
			}
		}

		return nil
	}))

	// act
	require.NoError(t, engine.MarkProcessed(ctx, records[0].ID, base.Add(time.Minute)))
	require.NoError(t, engine.MarkFailed(ctx, records[1].ID, "broker down"))
	require.NoError(t, engine.MarkFailed(ctx, records[1].ID, "broker down"))

	fresh, err := engine.SelectUnprocessed(ctx, outbox.Selection{MinRetryCount: 0, BelowRetryCount: 1, Limit: 10})
	require.NoError(t, err)

	retried, err := engine.SelectUnprocessed(ctx, outbox.Selection{MinRetryCount: 1, BelowRetryCount: 5, Limit: 10})
	require.NoError(t, err)

	exhausted, err := engine.CountExhausted(ctx, 2)
	require.NoError(t, err)

	unknownErr := engine.MarkProcessed(ctx, uuid.New(), base)

	// assert
	require.Len(t, fresh, 1)
	assert.Equal(t, records[2].ID, fresh[0].ID)
	assert.Equal(t, records[2].CreatedAt, fresh[0].CreatedAt)
	assert.JSONEq(t, string(records[2].Payload), string(fresh[0].Payload))

	require.Len(t, retried, 1)
	assert.Equal(t, records[1].ID, retried[0].ID)
	assert.Equal(t, 2, retried[0].RetryCount)
	assert.Equal(t, "broker down", retried[0].LastError)

	assert.Equal(t, 1, exhausted)
	assert.ErrorIs(t, unknownErr, catalog.ErrNotFound)
}

func Test_OutboxDispatcher_PublishesRecordsAppendedInATransaction(t *testing.T) {
	// setup
	ctx := testContext(t)
	engine := givenCleanEngine(t)
	publisher := helper.NewPublisherSpy()

	dispatcher, err := outbox.NewDispatcher(engine, publisher)
	require.NoError(t, err)

	require.NoError(t, engine.Transact(ctx, func(ctx context.Context, tx catalog.Tx) error {
		record, err := outbox.NewRecord(messaging.AggregateBook, "978-3-16", messaging.EventTypeBookRequested,
			messaging.BookRequested{NaturalKey: "978-3-16", AuthorName: "Frank Herbert", GenreName: "Science Fiction"})
		if err != nil {
			return err
		}

		return tx.Outbox().Append(ctx, record)
	}))

	// act
	first, err := dispatcher.DispatchPending(ctx)
	require.NoError(t, err)

	second, err := dispatcher.DispatchPending(ctx)
	require.NoError(t, err)

	// assert
	assert.Equal(t, 1, first.Published)
	assert.Equal(t, 0, second.Selected)
	require.Len(t, publisher.PublishedTo(messaging.RoutingKeyBookRequested), 1)
}

func Test_ReadModelStore_BacksTheBookProjection(t *testing.T) {
	// setup
	ctx := testContext(t)
	engine := givenCleanEngine(t)

	store, err := postgresengine.NewReadModelStore[projection.BookView](engine, "books")
	require.NoError(t, err)

	projector := projection.NewBookProjector(store, catalog.NewObservability())
	created := messaging.BookCreated{NaturalKey: "978-3-16", Title: "Dune", Genre: "Science Fiction", AuthorIDs: []int64{42}, Version: 1}

	// act
	require.NoError(t, projector.OnBookCreated(ctx, created))
	require.NoError(t, projector.OnBookCreated(ctx, created))
	require.NoError(t, projector.OnBookUpdated(ctx, messaging.BookUpdated{NaturalKey: "978-3-16", Title: "Dune (2nd ed.)", Genre: "Science Fiction", AuthorIDs: []int64{42}, Version: 2}))

	row, found, err := store.Find(ctx, "978-3-16")
	require.NoError(t, err)

	duplicateErr := store.Insert(ctx, "978-3-16", row)
	unknownUpdateErr := store.Update(ctx, "unknown", row)

	require.NoError(t, projector.OnBookDeleted(ctx, messaging.BookDeleted{NaturalKey: "978-3-16"}))
	exists, err := store.Exists(ctx, "978-3-16")
	require.NoError(t, err)

	// assert
	assert.True(t, found)
	assert.Equal(t, "Dune (2nd ed.)", row.Title)
	assert.Equal(t, []int64{42}, row.AuthorIDs)
	assert.Equal(t, uint(2), row.Version)
	assert.ErrorIs(t, duplicateErr, catalog.ErrDuplicateKey)
	assert.ErrorIs(t, unknownUpdateErr, catalog.ErrNotFound)
	assert.False(t, exists)
}

func Test_ReadModelStore_SeparatesModels(t *testing.T) {
	// setup
	ctx := testContext(t)
	engine := givenCleanEngine(t)

	genres, err := postgresengine.NewReadModelStore[projection.GenreView](engine, "genres")
	require.NoError(t, err)

	authors, err := postgresengine.NewReadModelStore[projection.AuthorView](engine, "authors")
	require.NoError(t, err)

	// act
	require.NoError(t, genres.Insert(ctx, "1", projection.GenreView{Name: "Fantasy", Version: 1}))
	require.NoError(t, authors.Insert(ctx, "1", projection.AuthorView{AuthorID: 1, Name: "Ursula K. Le Guin", Version: 1}))

	genre, genreFound, err := genres.Find(ctx, "1")
	require.NoError(t, err)

	author, authorFound, err := authors.Find(ctx, "1")
	require.NoError(t, err)

	// assert
	assert.True(t, genreFound)
	assert.True(t, authorFound)
	assert.Equal(t, "Fantasy", genre.Name)
	assert.Equal(t, "Ursula K. Le Guin", author.Name)
}

func Test_AdvisoryLocker_AdmitsOneHolderAtATime(t *testing.T) {
	// setup
	ctx := testContext(t)
	engine := givenCleanEngine(t)

	first, err := postgresengine.NewAdvisoryLocker(engine, "test.outbox")
	require.NoError(t, err)

	second, err := postgresengine.NewAdvisoryLocker(engine, "test.outbox")
	require.NoError(t, err)

	// act
	release, acquired, err := first.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, acquired)

	_, acquiredWhileHeld, err := second.TryLock(ctx)
	require.NoError(t, err)

	release()

	releaseAgain, acquiredAfterRelease, err := second.TryLock(ctx)
	require.NoError(t, err)
	defer releaseAgain()

	// assert
	assert.False(t, acquiredWhileHeld)
	assert.True(t, acquiredAfterRelease)
}

func Test_Reconcile_OnPostgres_ReplaysDeferredFactOnceGenreArrives(t *testing.T) {
	// setup
	ctx := testContext(t)
	engine := givenCleanEngine(t)

	projector, err := reconcile.NewBookCatalogProjector(engine)
	require.NoError(t, err)

	finalized := messaging.BookFinalized{AuthorID: 42, AuthorName: "Frank Herbert", NaturalKey: "978-3-16", GenreName: "Science Fiction", Title: "Dune"}

	// act
	require.NoError(t, projector.OnBookFinalized(ctx, finalized))
	require.NoError(t, projector.OnBookFinalized(ctx, finalized))
	require.NoError(t, projector.OnGenreCreated(ctx, messaging.GenreCreated{Genre: "Science Fiction", Version: 2, NaturalKey: "978-3-16"}))

	// assert
	require.NoError(t, engine.Transact(ctx, func(ctx context.Context, tx catalog.Tx) error {
		book, err := tx.Books().FindByNaturalKey(ctx, "978-3-16")
		if err != nil {
			return err
		}

		assert.Equal(t, "Dune", book.Title)
		assert.Equal(t, []catalog.AuthorIDInt64{42}, book.AuthorRefs)

		facts, err := tx.DeferredFacts().FindByGenreName(ctx, "Science Fiction")
		if err != nil {
			return err
		}

		assert.Empty(t, facts)

		return nil
	}))
}
