package memstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/AntonStoeckl/library-catalog-go/catalog"
)

// ReadModel is an in-memory read-model table of rows of type T keyed by string.
type ReadModel[T any] struct {
	mu   sync.RWMutex
	rows map[string]T
}

// NewReadModel creates an empty ReadModel.
func NewReadModel[T any]() *ReadModel[T] {
	return &ReadModel[T]{rows: make(map[string]T)}
}

// Exists reports whether a row with key is stored.
func (m *ReadModel[T]) Exists(_ context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.rows[key]

	return ok, nil
}

// Find returns the row with key; found is false if there is none.
func (m *ReadModel[T]) Find(_ context.Context, key string) (row T, found bool, err error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	row, found = m.rows[key]

	return row, found, nil
}

// Insert stores a new row. It fails with catalog.ErrDuplicateKey if key is taken.
func (m *ReadModel[T]) Insert(_ context.Context, key string, row T) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rows[key]; ok {
		return errors.Join(catalog.ErrDuplicateKey, fmt.Errorf("read model row %q", key))
	}

	m.rows[key] = row

	return nil
}

// Update replaces an existing row. It fails with catalog.ErrNotFound if there is none.
func (m *ReadModel[T]) Update(_ context.Context, key string, row T) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rows[key]; !ok {
		return errors.Join(catalog.ErrNotFound, fmt.Errorf("read model row %q", key))
	}

	m.rows[key] = row

	return nil
}

// Delete removes a row. It fails with catalog.ErrNotFound if there is none.
func (m *ReadModel[T]) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rows[key]; !ok {
		return errors.Join(catalog.ErrNotFound, fmt.Errorf("read model row %q", key))
	}

	delete(m.rows, key)

	return nil
}

// Keys returns all stored keys in sorted order.
func (m *ReadModel[T]) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.rows))
	for key := range m.rows {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	return keys
}
