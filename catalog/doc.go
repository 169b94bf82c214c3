// Package catalog provides the domain types and persistence ports shared by the
// services of the library catalog: books, authors, genres and the bookkeeping
// records of the book-creation saga.
//
// Authors and genres start their life as placeholders (finalized=false) that are
// created when a book first references them. They are finalized exactly once,
// when the book that referenced them has been created.
//
// Key types:
//   - Book: the aggregate, unique by its natural key (ISBN)
//   - Author, Genre: placeholder entities, unique by name
//   - PendingRequest: the saga's audit record with a monotone Status
//   - DeferredFact: a buffered fact waiting for a missing genre
//
// Persistence is reached only through the repository interfaces and UnitOfWork.
// Every Save is an insert when Version is zero and an optimistic update otherwise:
//
//	err := uow.Transact(ctx, func(ctx context.Context, tx catalog.Tx) error {
//		book, err := tx.Books().Save(ctx, catalog.NewBook(key, title, description, genreID, authorID))
//		if err != nil {
//			return err // ErrDuplicateKey when another writer won the race
//		}
//
//		return tx.Outbox().Append(ctx, record)
//	})
package catalog
