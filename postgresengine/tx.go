package postgresengine

import (
	"fmt"

	"github.com/AntonStoeckl/library-catalog-go/catalog"
	"github.com/AntonStoeckl/library-catalog-go/outbox"
	"github.com/AntonStoeckl/library-catalog-go/postgresengine/internal/adapters"
)

// tx implements catalog.Tx on one open database transaction.
type tx struct {
	engine *Engine
	q      adapters.Querier
}

func (t *tx) Books() catalog.BookRepository {
	return bookRepository{t}
}

func (t *tx) Authors() catalog.AuthorRepository {
	return authorRepository{t}
}

func (t *tx) Genres() catalog.GenreRepository {
	return genreRepository{t}
}

func (t *tx) PendingRequests() catalog.PendingRequestRepository {
	return pendingRequestRepository{t}
}

func (t *tx) DeferredFacts() catalog.DeferredFactRepository {
	return deferredFactRepository{t}
}

func (t *tx) Outbox() outbox.Writer {
	return outboxWriter{t}
}

func notFound(entity string, key any) error {
	return fmt.Errorf("%w: %s %v", catalog.ErrNotFound, entity, key)
}

func conflict(entity string, key any, version uint) error {
	return fmt.Errorf("%w: %s %v at version %d", catalog.ErrVersionConflict, entity, key, version)
}
