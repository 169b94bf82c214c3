package postgresengine

import (
	"context"

	"github.com/doug-martin/goqu/v9"

	"github.com/AntonStoeckl/library-catalog-go/postgresengine/internal/adapters"
)

const (
	colModel    = "model"
	colKey      = "key"
	colDocument = "document"
)

// ReadModelStore keeps the rows of one read model as JSONB documents in a shared table.
// Rows of type T are encoded with jsoniter.
type ReadModelStore[T any] struct {
	engine *Engine
	model  string
}

// NewReadModelStore creates a ReadModelStore for the read model named model.
func NewReadModelStore[T any](engine *Engine, model string) (*ReadModelStore[T], error) {
	if engine == nil {
		return nil, ErrNilDatabaseConnection
	}

	if model == "" {
		return nil, ErrEmptyModelName
	}

	return &ReadModelStore[T]{engine: engine, model: model}, nil
}

func (s *ReadModelStore[T]) where(key string) goqu.Ex {
	return goqu.Ex{colModel: s.model, colKey: key}
}

// Exists reports whether a row with key is stored.
func (s *ReadModelStore[T]) Exists(ctx context.Context, key string) (bool, error) {
	exists := false

	stmt := builder().From(tableReadModels).Select(goqu.L("1")).Where(s.where(key))

	err := s.engine.queryRows(ctx, s.engine.db, "read model exists", stmt, func(rows adapters.DBRows) error {
		exists = true
		return nil
	})

	return exists, err
}

// Find returns the row with key; found is false if there is none.
func (s *ReadModelStore[T]) Find(ctx context.Context, key string) (T, bool, error) {
	var (
		row   T
		found bool
	)

	stmt := builder().From(tableReadModels).Select(colDocument).Where(s.where(key))

	err := s.engine.queryRows(ctx, s.engine.db, "read model find", stmt, func(rows adapters.DBRows) error {
		var document []byte
		if err := rows.Scan(&document); err != nil {
			return err
		}

		found = true

		return jsonAPI.Unmarshal(document, &row)
	})

	return row, found, err
}

// Insert stores a new row. It fails with catalog.ErrDuplicateKey if key is taken.
func (s *ReadModelStore[T]) Insert(ctx context.Context, key string, row T) error {
	document, err := jsonAPI.Marshal(row)
	if err != nil {
		return err
	}

	stmt := builder().Insert(tableReadModels).Rows(goqu.Record{
		colModel:    s.model,
		colKey:      key,
		colDocument: goqu.L(castJsonb, string(document)),
	})

	_, err = s.engine.exec(ctx, s.engine.db, "read model insert", stmt)

	return err
}

// Update replaces an existing row. It fails with catalog.ErrNotFound if there is none.
func (s *ReadModelStore[T]) Update(ctx context.Context, key string, row T) error {
	document, err := jsonAPI.Marshal(row)
	if err != nil {
		return err
	}

	stmt := builder().Update(tableReadModels).
		Set(goqu.Record{colDocument: goqu.L(castJsonb, string(document))}).
		Where(s.where(key))

	affected, err := s.engine.exec(ctx, s.engine.db, "read model update", stmt)
	if err != nil {
		return err
	}

	if affected == 0 {
		return notFound(s.model, key)
	}

	return nil
}

// Delete removes a row. It fails with catalog.ErrNotFound if there is none.
func (s *ReadModelStore[T]) Delete(ctx context.Context, key string) error {
	stmt := builder().Delete(tableReadModels).Where(s.where(key))

	affected, err := s.engine.exec(ctx, s.engine.db, "read model delete", stmt)
	if err != nil {
		return err
	}

	if affected == 0 {
		return notFound(s.model, key)
	}

	return nil
}
