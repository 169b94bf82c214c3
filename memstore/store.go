package memstore

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-catalog-go/catalog"
	"github.com/AntonStoeckl/library-catalog-go/outbox"
)

// Store holds the state of one service.
type Store struct {
	mu    sync.Mutex
	state *state
}

// New creates an empty Store.
func New() *Store {
	return &Store{state: newState()}
}

// Transact implements catalog.UnitOfWork.
func (s *Store) Transact(ctx context.Context, fn catalog.TxFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	working := s.state.clone()

	if err := fn(ctx, &tx{state: working}); err != nil {
		return err
	}

	s.state = working

	return nil
}

// OutboxRecords returns a copy of all outbox Records in insertion order.
func (s *Store) OutboxRecords() []outbox.Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state.clone().outbox
}

// SelectUnprocessed implements outbox.Store.
func (s *Store) SelectUnprocessed(_ context.Context, selection outbox.Selection) ([]outbox.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var selected []outbox.Record

	for _, record := range s.state.outbox {
		if record.Processed || record.RetryCount < selection.MinRetryCount || record.RetryCount >= selection.BelowRetryCount {
			continue
		}

		record.Payload = slices.Clone(record.Payload)
		selected = append(selected, record)
	}

	slices.SortStableFunc(selected, func(a, b outbox.Record) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	if selection.Limit > 0 && len(selected) > selection.Limit {
		selected = selected[:selection.Limit]
	}

	return selected, nil
}

// MarkProcessed implements outbox.Store.
func (s *Store) MarkProcessed(_ context.Context, id uuid.UUID, processedAt time.Time) error {
	return s.updateRecord(id, func(record *outbox.Record) {
		record.Processed = true
		record.ProcessedAt = processedAt
	})
}

// MarkFailed implements outbox.Store.
func (s *Store) MarkFailed(_ context.Context, id uuid.UUID, lastError string) error {
	return s.updateRecord(id, func(record *outbox.Record) {
		record.RetryCount++
		record.LastError = lastError
	})
}

// CountExhausted implements outbox.Store.
func (s *Store) CountExhausted(_ context.Context, maxRetries int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, record := range s.state.outbox {
		if record.IsExhausted(maxRetries) {
			count++
		}
	}

	return count, nil
}

func (s *Store) updateRecord(id uuid.UUID, update func(record *outbox.Record)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.state.outbox {
		if s.state.outbox[i].ID == id {
			update(&s.state.outbox[i])
			return nil
		}
	}

	return errors.Join(catalog.ErrNotFound, fmt.Errorf("outbox record %s", id))
}

type tx struct {
	state *state
}

func (t *tx) Books() catalog.BookRepository                     { return bookRepository{t.state} }
func (t *tx) Authors() catalog.AuthorRepository                 { return authorRepository{t.state} }
func (t *tx) Genres() catalog.GenreRepository                   { return genreRepository{t.state} }
func (t *tx) PendingRequests() catalog.PendingRequestRepository { return pendingRequestRepository{t.state} }
func (t *tx) DeferredFacts() catalog.DeferredFactRepository     { return deferredFactRepository{t.state} }
func (t *tx) Outbox() outbox.Writer                             { return outboxWriter{t.state} }

type outboxWriter struct{ state *state }

func (w outboxWriter) Append(_ context.Context, record outbox.Record) error {
	for _, existing := range w.state.outbox {
		if existing.ID == record.ID {
			return errors.Join(catalog.ErrDuplicateKey, fmt.Errorf("outbox record %s", record.ID))
		}
	}

	record.Payload = slices.Clone(record.Payload)
	w.state.outbox = append(w.state.outbox, record)

	return nil
}

func notFound(kind string, key any) error {
	return errors.Join(catalog.ErrNotFound, fmt.Errorf("%s %v", kind, key))
}

func duplicate(kind string, key any) error {
	return errors.Join(catalog.ErrDuplicateKey, fmt.Errorf("%s %v", kind, key))
}

func conflict(kind string, key any, expected uint, actual uint) error {
	return errors.Join(
		catalog.ErrVersionConflict,
		fmt.Errorf("%s %v: expected version %d, stored version %d", kind, key, expected, actual),
	)
}

func normalizeName(name string) string {
	return strings.TrimSpace(name)
}
