package cli

import (
	"context"
	"fmt"

	"github.com/AntonStoeckl/library-catalog-go/messaging"
	"github.com/AntonStoeckl/library-catalog-go/outbox"
	"github.com/AntonStoeckl/library-catalog-go/participant"
	"github.com/AntonStoeckl/library-catalog-go/projection"
	"github.com/AntonStoeckl/library-catalog-go/reconcile"
	"github.com/AntonStoeckl/library-catalog-go/saga"
	"github.com/AntonStoeckl/library-catalog-go/validation"
)

// Service roles. Each one owns its own database.
const (
	roleCoordinator      = "coordinator"
	roleAuthor           = "author"
	roleGenre            = "genre"
	roleCatalogProjector = "catalog-projector"
	roleReadModels       = "read-models"
)

var roles = []string{roleCoordinator, roleAuthor, roleGenre, roleCatalogProjector, roleReadModels}

// service is one role wired to its store: the handlers it registers on the router and the
// loops that run next to its consumers.
type service struct {
	role        string
	register    func(router *messaging.Router) error
	loops       []func(ctx context.Context) error
	coordinator *saga.Coordinator
}

func (rt *runtime) newService(ctx context.Context, role string, publisher messaging.Publisher) (service, error) {
	store, err := rt.openServiceStore(ctx, role)
	if err != nil {
		return service{}, fmt.Errorf("opening the %s store: %w", role, err)
	}

	switch role {
	case roleCoordinator:
		return rt.newCoordinatorService(store, publisher)
	case roleAuthor:
		return rt.newAuthorService(store, publisher)
	case roleGenre:
		return rt.newGenreService(store, publisher)
	case roleCatalogProjector:
		return rt.newCatalogProjectorService(store)
	case roleReadModels:
		return rt.newReadModelsService(store)
	default:
		return service{}, fmt.Errorf("unknown role %q", role)
	}
}

func (rt *runtime) newCoordinatorService(store *serviceStore, publisher messaging.Publisher) (service, error) {
	coordinator, err := saga.NewCoordinator(store.uow, saga.WithObservability(rt.observability("saga")))
	if err != nil {
		return service{}, err
	}

	responder, err := validation.NewResponder(store.uow, validation.WithResponderObservability(rt.observability("validation")))
	if err != nil {
		return service{}, err
	}

	dispatcher, err := rt.newDispatcher(store, publisher, roleCoordinator)
	if err != nil {
		return service{}, err
	}

	logger := rt.componentLogger(roleCoordinator)

	return service{
		role: roleCoordinator,
		register: func(router *messaging.Router) error {
			if err := coordinator.Register(router, logger); err != nil {
				return err
			}

			return responder.Register(router, logger)
		},
		loops:       []func(ctx context.Context) error{dispatcher.Run},
		coordinator: coordinator,
	}, nil
}

func (rt *runtime) newAuthorService(store *serviceStore, publisher messaging.Publisher) (service, error) {
	author, err := participant.NewAuthorParticipant(store.uow, publisher, participant.WithObservability(rt.observability("participant.author")))
	if err != nil {
		return service{}, err
	}

	dispatcher, err := rt.newDispatcher(store, publisher, roleAuthor)
	if err != nil {
		return service{}, err
	}

	logger := rt.componentLogger(roleAuthor)

	return service{
		role:     roleAuthor,
		register: func(router *messaging.Router) error { return author.Register(router, logger) },
		loops:    []func(ctx context.Context) error{dispatcher.Run},
	}, nil
}

func (rt *runtime) newGenreService(store *serviceStore, publisher messaging.Publisher) (service, error) {
	genre, err := participant.NewGenreParticipant(store.uow, publisher, participant.WithObservability(rt.observability("participant.genre")))
	if err != nil {
		return service{}, err
	}

	dispatcher, err := rt.newDispatcher(store, publisher, roleGenre)
	if err != nil {
		return service{}, err
	}

	logger := rt.componentLogger(roleGenre)

	return service{
		role:     roleGenre,
		register: func(router *messaging.Router) error { return genre.Register(router, logger) },
		loops:    []func(ctx context.Context) error{dispatcher.Run},
	}, nil
}

func (rt *runtime) newCatalogProjectorService(store *serviceStore) (service, error) {
	projector, err := reconcile.NewBookCatalogProjector(store.uow, reconcile.WithObservability(rt.observability("reconcile")))
	if err != nil {
		return service{}, err
	}

	logger := rt.componentLogger(roleCatalogProjector)

	return service{
		role:     roleCatalogProjector,
		register: func(router *messaging.Router) error { return projector.Register(router, logger) },
	}, nil
}

func (rt *runtime) newReadModelsService(store *serviceStore) (service, error) {
	stores, err := openReadStores(store)
	if err != nil {
		return service{}, err
	}

	obs := rt.observability("projection")
	books := projection.NewBookProjector(stores.books, obs)
	authors := projection.NewAuthorProjector(stores.authors, obs)
	genres := projection.NewGenreProjector(stores.genres, obs)
	logger := rt.componentLogger(roleReadModels)

	return service{
		role: roleReadModels,
		register: func(router *messaging.Router) error {
			if err := books.Register(router, logger); err != nil {
				return err
			}

			if err := authors.Register(router, logger); err != nil {
				return err
			}

			return genres.Register(router, logger)
		},
	}, nil
}

func (rt *runtime) newDispatcher(store *serviceStore, publisher messaging.Publisher, role string) (*outbox.Dispatcher, error) {
	cfg := rt.cfg.Outbox

	options := []outbox.Option{
		outbox.WithInterval(cfg.Interval),
		outbox.WithRetryInterval(cfg.RetryInterval),
		outbox.WithBatchSize(cfg.BatchSize),
		outbox.WithMaxRetries(cfg.MaxRetries),
		outbox.WithContextualLogger(rt.componentLogger("outbox").With(logAttrService, role)),
		outbox.WithMetrics(rt.metrics("outbox")),
	}

	if store.locker != nil {
		options = append(options, outbox.WithCycleLocker(store.locker))
	}

	return outbox.NewDispatcher(store.outbox, publisher, options...)
}
