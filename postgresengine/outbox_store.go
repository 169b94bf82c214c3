package postgresengine

import (
	"context"
	"database/sql"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-catalog-go/outbox"
	"github.com/AntonStoeckl/library-catalog-go/postgresengine/internal/adapters"
)

const (
	colAggregateType = "aggregate_type"
	colAggregateID   = "aggregate_id"
	colEventType     = "event_type"
	colPayload       = "payload"
	colProcessed     = "processed"
	colProcessedAt   = "processed_at"
	colRetryCount    = "retry_count"
	colLastError     = "last_error"

	incrementRetryCount = "retry_count + 1"
)

type outboxWriter struct{ t *tx }

// Append inserts record as part of the surrounding transaction.
func (w outboxWriter) Append(ctx context.Context, record outbox.Record) error {
	stmt := builder().Insert(tableOutbox).Rows(goqu.Record{
		colID:            record.ID.String(),
		colAggregateType: record.AggregateType,
		colAggregateID:   record.AggregateID,
		colEventType:     record.EventType,
		colPayload:       goqu.L(castJsonb, string(record.Payload)),
		colProcessed:     false,
		colRetryCount:    0,
		colLastError:     "",
		colCreatedAt:     record.CreatedAt.UTC(),
	})

	_, err := w.t.engine.exec(ctx, w.t.q, "insert outbox record", stmt)

	return err
}

// SelectUnprocessed implements outbox.Store.
func (e *Engine) SelectUnprocessed(ctx context.Context, selection outbox.Selection) ([]outbox.Record, error) {
	var records []outbox.Record

	stmt := builder().From(tableOutbox).
		Select(colID, colAggregateType, colAggregateID, colEventType, colPayload,
			colProcessed, colProcessedAt, colRetryCount, colLastError, colCreatedAt).
		Where(
			goqu.C(colProcessed).IsFalse(),
			goqu.C(colRetryCount).Gte(selection.MinRetryCount),
			goqu.C(colRetryCount).Lt(selection.BelowRetryCount),
		).
		Order(goqu.I(colCreatedAt).Asc(), goqu.I(colID).Asc())

	if selection.Limit > 0 {
		stmt = stmt.Limit(uint(selection.Limit))
	}

	err := e.queryRows(ctx, e.db, "select outbox records", stmt, func(rows adapters.DBRows) error {
		var (
			record      outbox.Record
			id          string
			payload     []byte
			processedAt sql.NullTime
		)

		err := rows.Scan(&id, &record.AggregateType, &record.AggregateID, &record.EventType, &payload,
			&record.Processed, &processedAt, &record.RetryCount, &record.LastError, &record.CreatedAt)

		if err != nil {
			return err
		}

		if record.ID, err = uuid.Parse(id); err != nil {
			return err
		}

		record.Payload = append([]byte(nil), payload...)
		record.CreatedAt = record.CreatedAt.UTC()

		if processedAt.Valid {
			record.ProcessedAt = processedAt.Time.UTC()
		}

		records = append(records, record)

		return nil
	})

	return records, err
}

// MarkProcessed implements outbox.Store.
func (e *Engine) MarkProcessed(ctx context.Context, id uuid.UUID, processedAt time.Time) error {
	stmt := builder().Update(tableOutbox).
		Set(goqu.Record{colProcessed: true, colProcessedAt: processedAt.UTC()}).
		Where(goqu.Ex{colID: id.String()})

	affected, err := e.exec(ctx, e.db, "mark outbox record processed", stmt)
	if err != nil {
		return err
	}

	if affected == 0 {
		return notFound("outbox record", id)
	}

	return nil
}

// MarkFailed implements outbox.Store.
func (e *Engine) MarkFailed(ctx context.Context, id uuid.UUID, lastError string) error {
	stmt := builder().Update(tableOutbox).
		Set(goqu.Record{colRetryCount: goqu.L(incrementRetryCount), colLastError: lastError}).
		Where(goqu.Ex{colID: id.String()})

	affected, err := e.exec(ctx, e.db, "mark outbox record failed", stmt)
	if err != nil {
		return err
	}

	if affected == 0 {
		return notFound("outbox record", id)
	}

	return nil
}

// CountExhausted implements outbox.Store.
func (e *Engine) CountExhausted(ctx context.Context, maxRetries int) (int, error) {
	var count int64

	stmt := builder().From(tableOutbox).
		Select(goqu.COUNT(goqu.Star())).
		Where(goqu.C(colProcessed).IsFalse(), goqu.C(colRetryCount).Gte(maxRetries))

	err := e.queryRows(ctx, e.db, "count exhausted outbox records", stmt, func(rows adapters.DBRows) error {
		return rows.Scan(&count)
	})

	return int(count), err
}
