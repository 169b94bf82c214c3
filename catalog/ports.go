package catalog

import (
	"context"

	"github.com/AntonStoeckl/library-catalog-go/outbox"
)

// BookRepository persists Book aggregates.
type BookRepository interface {
	FindByNaturalKey(ctx context.Context, naturalKey NaturalKeyString) (Book, error)
	Save(ctx context.Context, book Book) (Book, error)
	Delete(ctx context.Context, naturalKey NaturalKeyString) error
}

// AuthorRepository persists authors. Name is unique.
type AuthorRepository interface {
	FindByID(ctx context.Context, id AuthorIDInt64) (Author, error)
	FindByName(ctx context.Context, name string) (Author, error)
	Save(ctx context.Context, author Author) (Author, error)
	Delete(ctx context.Context, id AuthorIDInt64) error
}

// GenreRepository persists genres. Name is unique.
type GenreRepository interface {
	FindByName(ctx context.Context, name string) (Genre, error)
	Save(ctx context.Context, genre Genre) (Genre, error)
	Delete(ctx context.Context, name string) error
}

// PendingRequestRepository persists the saga's PendingRequest records.
type PendingRequestRepository interface {
	FindByNaturalKey(ctx context.Context, naturalKey NaturalKeyString) (PendingRequest, error)
	Save(ctx context.Context, request PendingRequest) (PendingRequest, error)
}

// DeferredFactRepository persists the out-of-order reconciliation buffer.
type DeferredFactRepository interface {
	Save(ctx context.Context, fact DeferredFact) error
	FindByGenreName(ctx context.Context, genreName string) ([]DeferredFact, error)
	Delete(ctx context.Context, naturalKey NaturalKeyString) error
}

// Tx gives access to all repositories bound to one local write.
type Tx interface {
	Books() BookRepository
	Authors() AuthorRepository
	Genres() GenreRepository
	PendingRequests() PendingRequestRepository
	DeferredFacts() DeferredFactRepository
	Outbox() outbox.Writer
}

// TxFunc is the body of a local write.
type TxFunc func(ctx context.Context, tx Tx) error

// UnitOfWork scopes a local write: all changes made through tx, outbox records included,
// are committed if fn returns nil and rolled back otherwise.
type UnitOfWork interface {
	Transact(ctx context.Context, fn TxFunc) error
}
