package cli

import (
	"context"
	"errors"

	"github.com/AntonStoeckl/library-catalog-go/catalog"
	"github.com/AntonStoeckl/library-catalog-go/config"
	"github.com/AntonStoeckl/library-catalog-go/memstore"
	"github.com/AntonStoeckl/library-catalog-go/outbox"
	"github.com/AntonStoeckl/library-catalog-go/postgresengine"
	"github.com/AntonStoeckl/library-catalog-go/projection"
)

const (
	readModelBooks   = "books"
	readModelAuthors = "authors"
	readModelGenres  = "genres"

	lockNamePrefix = "library.outbox."
)

// ErrPersistentStorageRequired is returned by commands that make no sense on an in-memory store.
var ErrPersistentStorageRequired = errors.New("command needs storage " + config.StoragePostgres)

// serviceStore is the database of one service: its UnitOfWork, its outbox and,
// with Postgres and advisory locking enabled, the lock that guards dispatch cycles.
type serviceStore struct {
	uow    catalog.UnitOfWork
	outbox outbox.Store
	locker outbox.CycleLocker
	engine *postgresengine.Engine
}

func (rt *runtime) openServiceStore(ctx context.Context, service string) (*serviceStore, error) {
	if rt.cfg.Storage != config.StoragePostgres {
		store := memstore.New()
		return &serviceStore{uow: store, outbox: store}, nil
	}

	engine, err := rt.openEngine(ctx, service)
	if err != nil {
		return nil, err
	}

	store := &serviceStore{uow: engine, outbox: engine, engine: engine}

	if rt.cfg.Outbox.AdvisoryLock {
		if store.locker, err = postgresengine.NewAdvisoryLocker(engine, lockNamePrefix+service); err != nil {
			return nil, err
		}
	}

	return store, nil
}

func (rt *runtime) openEngine(ctx context.Context, service string) (*postgresengine.Engine, error) {
	options := []postgresengine.Option{
		postgresengine.WithContextualLogger(rt.componentLogger("postgres").With(logAttrService, service)),
		postgresengine.WithMetrics(rt.metrics("postgres")),
	}

	p := rt.cfg.Postgres

	switch p.Adapter {
	case config.AdapterSQLDB:
		db, err := config.OpenSQLDB(ctx, p)
		if err != nil {
			return nil, err
		}

		rt.storeClosers = append(rt.storeClosers, func() { _ = db.Close() })

		return postgresengine.NewEngineFromSQLDB(db, options...)

	case config.AdapterSQLX:
		db, err := config.OpenSQLX(ctx, p)
		if err != nil {
			return nil, err
		}

		rt.storeClosers = append(rt.storeClosers, func() { _ = db.Close() })

		return postgresengine.NewEngineFromSQLX(db, options...)

	default:
		pool, err := config.NewPGXPool(ctx, p)
		if err != nil {
			return nil, err
		}

		rt.storeClosers = append(rt.storeClosers, pool.Close)

		return postgresengine.NewEngineFromPGXPool(pool, options...)
	}
}

type readStores struct {
	books   projection.ReadStore[projection.BookView]
	authors projection.ReadStore[projection.AuthorView]
	genres  projection.ReadStore[projection.GenreView]
}

func openReadStores(store *serviceStore) (readStores, error) {
	if store.engine == nil {
		return readStores{
			books:   memstore.NewReadModel[projection.BookView](),
			authors: memstore.NewReadModel[projection.AuthorView](),
			genres:  memstore.NewReadModel[projection.GenreView](),
		}, nil
	}

	books, err := postgresengine.NewReadModelStore[projection.BookView](store.engine, readModelBooks)
	if err != nil {
		return readStores{}, err
	}

	authors, err := postgresengine.NewReadModelStore[projection.AuthorView](store.engine, readModelAuthors)
	if err != nil {
		return readStores{}, err
	}

	genres, err := postgresengine.NewReadModelStore[projection.GenreView](store.engine, readModelGenres)
	if err != nil {
		return readStores{}, err
	}

	return readStores{books: books, authors: authors, genres: genres}, nil
}
