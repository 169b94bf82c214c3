package memstore

import (
	"context"
	"slices"

	"github.com/AntonStoeckl/library-catalog-go/catalog"
)

type bookRepository struct{ state *state }

func (r bookRepository) FindByNaturalKey(_ context.Context, naturalKey catalog.NaturalKeyString) (catalog.Book, error) {
	book, ok := r.state.books[naturalKey]
	if !ok {
		return catalog.Book{}, notFound("book", naturalKey)
	}

	book.AuthorRefs = slices.Clone(book.AuthorRefs)

	return book, nil
}

func (r bookRepository) Save(_ context.Context, book catalog.Book) (catalog.Book, error) {
	stored, exists := r.state.books[book.NaturalKey]

	switch {
	case book.Version == 0 && exists:
		return catalog.Book{}, duplicate("book", book.NaturalKey)
	case book.Version > 0 && !exists:
		return catalog.Book{}, conflict("book", book.NaturalKey, book.Version, 0)
	case book.Version > 0 && stored.Version != book.Version:
		return catalog.Book{}, conflict("book", book.NaturalKey, book.Version, stored.Version)
	}

	book.Version++
	book.AuthorRefs = slices.Clone(book.AuthorRefs)
	r.state.books[book.NaturalKey] = book

	return book, nil
}

func (r bookRepository) Delete(_ context.Context, naturalKey catalog.NaturalKeyString) error {
	if _, ok := r.state.books[naturalKey]; !ok {
		return notFound("book", naturalKey)
	}

	delete(r.state.books, naturalKey)

	return nil
}

type authorRepository struct{ state *state }

func (r authorRepository) FindByID(_ context.Context, id catalog.AuthorIDInt64) (catalog.Author, error) {
	author, ok := r.state.authors[id]
	if !ok {
		return catalog.Author{}, notFound("author", id)
	}

	return author, nil
}

func (r authorRepository) FindByName(_ context.Context, name string) (catalog.Author, error) {
	for _, author := range r.state.authors {
		if author.Name == normalizeName(name) {
			return author, nil
		}
	}

	return catalog.Author{}, notFound("author", name)
}

func (r authorRepository) Save(ctx context.Context, author catalog.Author) (catalog.Author, error) {
	author.Name = normalizeName(author.Name)

	if existing, err := r.FindByName(ctx, author.Name); err == nil && existing.ID != author.ID {
		return catalog.Author{}, duplicate("author", author.Name)
	}

	if author.Version == 0 {
		if author.ID == 0 {
			r.state.authorSeq++
			author.ID = r.state.authorSeq
		} else if _, exists := r.state.authors[author.ID]; exists {
			return catalog.Author{}, duplicate("author", author.ID)
		}

		if author.ID > r.state.authorSeq {
			r.state.authorSeq = author.ID
		}
	} else {
		stored, exists := r.state.authors[author.ID]
		if !exists || stored.Version != author.Version {
			return catalog.Author{}, conflict("author", author.ID, author.Version, stored.Version)
		}
	}

	author.Version++
	r.state.authors[author.ID] = author

	return author, nil
}

func (r authorRepository) Delete(_ context.Context, id catalog.AuthorIDInt64) error {
	if _, ok := r.state.authors[id]; !ok {
		return notFound("author", id)
	}

	delete(r.state.authors, id)

	return nil
}

type genreRepository struct{ state *state }

func (r genreRepository) FindByName(_ context.Context, name string) (catalog.Genre, error) {
	genre, ok := r.state.genres[normalizeName(name)]
	if !ok {
		return catalog.Genre{}, notFound("genre", name)
	}

	return genre, nil
}

func (r genreRepository) Save(_ context.Context, genre catalog.Genre) (catalog.Genre, error) {
	genre.Name = normalizeName(genre.Name)
	stored, exists := r.state.genres[genre.Name]

	switch {
	case genre.Version == 0 && exists:
		return catalog.Genre{}, duplicate("genre", genre.Name)
	case genre.Version > 0 && (!exists || stored.Version != genre.Version):
		return catalog.Genre{}, conflict("genre", genre.Name, genre.Version, stored.Version)
	}

	if genre.Version == 0 {
		if genre.ID == 0 {
			r.state.genreSeq++
			genre.ID = r.state.genreSeq
		} else if genre.ID > r.state.genreSeq {
			r.state.genreSeq = genre.ID
		}
	}

	genre.Version++
	r.state.genres[genre.Name] = genre

	return genre, nil
}

func (r genreRepository) Delete(_ context.Context, name string) error {
	name = normalizeName(name)
	if _, ok := r.state.genres[name]; !ok {
		return notFound("genre", name)
	}

	delete(r.state.genres, name)

	return nil
}

type pendingRequestRepository struct{ state *state }

func (r pendingRequestRepository) FindByNaturalKey(
	_ context.Context,
	naturalKey catalog.NaturalKeyString,
) (catalog.PendingRequest, error) {

	request, ok := r.state.pending[naturalKey]
	if !ok {
		return catalog.PendingRequest{}, notFound("pending request", naturalKey)
	}

	return request, nil
}

func (r pendingRequestRepository) Save(_ context.Context, request catalog.PendingRequest) (catalog.PendingRequest, error) {
	stored, exists := r.state.pending[request.NaturalKey]

	switch {
	case request.Version == 0 && exists:
		return catalog.PendingRequest{}, duplicate("pending request", request.NaturalKey)
	case request.Version > 0 && (!exists || stored.Version != request.Version):
		return catalog.PendingRequest{}, conflict("pending request", request.NaturalKey, request.Version, stored.Version)
	}

	request.Version++
	r.state.pending[request.NaturalKey] = request

	return request, nil
}

type deferredFactRepository struct{ state *state }

func (r deferredFactRepository) Save(_ context.Context, fact catalog.DeferredFact) error {
	if _, exists := r.state.deferred[fact.NaturalKey]; exists {
		return duplicate("deferred fact", fact.NaturalKey)
	}

	r.state.deferred[fact.NaturalKey] = fact

	return nil
}

func (r deferredFactRepository) FindByGenreName(_ context.Context, genreName string) ([]catalog.DeferredFact, error) {
	var facts []catalog.DeferredFact

	for _, fact := range r.state.deferred {
		if fact.GenreName == normalizeName(genreName) {
			facts = append(facts, fact)
		}
	}

	slices.SortFunc(facts, func(a, b catalog.DeferredFact) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	return facts, nil
}

func (r deferredFactRepository) Delete(_ context.Context, naturalKey catalog.NaturalKeyString) error {
	if _, ok := r.state.deferred[naturalKey]; !ok {
		return notFound("deferred fact", naturalKey)
	}

	delete(r.state.deferred, naturalKey)

	return nil
}
