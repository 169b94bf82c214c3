package memstore

import (
	"maps"
	"slices"

	"github.com/AntonStoeckl/library-catalog-go/catalog"
	"github.com/AntonStoeckl/library-catalog-go/outbox"
)

type state struct {
	books     map[catalog.NaturalKeyString]catalog.Book
	authors   map[catalog.AuthorIDInt64]catalog.Author
	genres    map[string]catalog.Genre
	pending   map[catalog.NaturalKeyString]catalog.PendingRequest
	deferred  map[catalog.NaturalKeyString]catalog.DeferredFact
	outbox    []outbox.Record
	authorSeq catalog.AuthorIDInt64
	genreSeq  catalog.GenreIDInt64
}

func newState() *state {
	return &state{
		books:    make(map[catalog.NaturalKeyString]catalog.Book),
		authors:  make(map[catalog.AuthorIDInt64]catalog.Author),
		genres:   make(map[string]catalog.Genre),
		pending:  make(map[catalog.NaturalKeyString]catalog.PendingRequest),
		deferred: make(map[catalog.NaturalKeyString]catalog.DeferredFact),
	}
}

func (s *state) clone() *state {
	books := make(map[catalog.NaturalKeyString]catalog.Book, len(s.books))
	for key, book := range s.books {
		book.AuthorRefs = slices.Clone(book.AuthorRefs)
		books[key] = book
	}

	records := make([]outbox.Record, len(s.outbox))
	for i, record := range s.outbox {
		record.Payload = slices.Clone(record.Payload)
		records[i] = record
	}

	return &state{
		books:     books,
		authors:   maps.Clone(s.authors),
		genres:    maps.Clone(s.genres),
		pending:   maps.Clone(s.pending),
		deferred:  maps.Clone(s.deferred),
		outbox:    records,
		authorSeq: s.authorSeq,
		genreSeq:  s.genreSeq,
	}
}
