package postgresengine

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/AntonStoeckl/library-catalog-go/catalog"
	"github.com/AntonStoeckl/library-catalog-go/postgresengine/internal/adapters"
)

const (
	dialectPostgres = "postgres"

	tableBooks           = "books"
	tableAuthors         = "authors"
	tableGenres          = "genres"
	tablePendingRequests = "pending_requests"
	tableDeferredFacts   = "deferred_facts"
	tableOutbox          = "outbox"
	tableReadModels      = "read_models"

	castJsonb = "?::jsonb"
)

// Engine is the PostgreSQL persistence of one service.
type Engine struct {
	db               adapters.DBAdapter
	logger           Logger
	contextualLogger ContextualLogger
	metricsCollector MetricsCollector
}

// NewEngineFromPGXPool creates a new Engine using a pgx Pool with optional configuration.
func NewEngineFromPGXPool(db *pgxpool.Pool, options ...Option) (*Engine, error) {
	if db == nil {
		return nil, ErrNilDatabaseConnection
	}

	return newEngine(adapters.NewPGXAdapter(db), options)
}

// NewEngineFromSQLDB creates a new Engine using a sql.DB with optional configuration.
func NewEngineFromSQLDB(db *sql.DB, options ...Option) (*Engine, error) {
	if db == nil {
		return nil, ErrNilDatabaseConnection
	}

	return newEngine(adapters.NewSQLAdapter(db), options)
}

// NewEngineFromSQLX creates a new Engine using a sqlx.DB with optional configuration.
func NewEngineFromSQLX(db *sqlx.DB, options ...Option) (*Engine, error) {
	if db == nil {
		return nil, ErrNilDatabaseConnection
	}

	return newEngine(adapters.NewSQLXAdapter(db), options)
}

func newEngine(db adapters.DBAdapter, options []Option) (*Engine, error) {
	e := &Engine{db: db}

	for _, option := range options {
		if err := option(e); err != nil {
			return nil, err
		}
	}

	return e, nil
}

// Transact implements catalog.UnitOfWork on a database transaction.
func (e *Engine) Transact(ctx context.Context, fn catalog.TxFunc) error {
	dbTx, err := e.db.BeginTx(ctx)
	if err != nil {
		return errors.Join(ErrTransactionFailed, err)
	}

	if err = fn(ctx, &tx{engine: e, q: dbTx}); err != nil {
		if rollbackErr := dbTx.Rollback(ctx); rollbackErr != nil {
			e.logWarn(ctx, logMsgRollbackFailed, logAttrError, rollbackErr.Error())
		}

		if catalog.IsConflict(err) {
			e.countTransaction(statusConflict)
		} else {
			e.countTransaction(statusRolledBack)
		}

		return err
	}

	if err = dbTx.Commit(ctx); err != nil {
		e.countTransaction(statusRolledBack)

		if isUniqueViolation(err) {
			return errors.Join(catalog.ErrDuplicateKey, err)
		}

		return errors.Join(ErrTransactionFailed, err)
	}

	e.countTransaction(statusCommitted)

	return nil
}

func builder() goqu.DialectWrapper {
	return goqu.Dialect(dialectPostgres)
}

type sqlBuilder interface {
	ToSQL() (string, []any, error)
}

func toSQL(b sqlBuilder) (string, error) {
	query, _, err := b.ToSQL()
	if err != nil {
		return "", errors.Join(ErrBuildingQueryFailed, err)
	}

	return query, nil
}

// queryRows runs a SELECT (or a statement with RETURNING) and scans every row with scan.
func (e *Engine) queryRows(
	ctx context.Context,
	q adapters.Querier,
	operation string,
	b sqlBuilder,
	scan func(rows adapters.DBRows) error,
) error {

	query, err := toSQL(b)
	if err != nil {
		return err
	}

	start := time.Now()
	rows, err := q.Query(ctx, query)
	e.observeStatement(ctx, operation, query, time.Since(start), err)

	if err != nil {
		return classify(err)
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			e.logWarn(ctx, logMsgCloseRowsFailed, logAttrError, closeErr.Error())
		}
	}()

	for rows.Next() {
		if err = scan(rows); err != nil {
			return errors.Join(ErrScanningDBRowFailed, err)
		}
	}

	if err = rows.Err(); err != nil {
		return classify(err)
	}

	return nil
}

// exec runs a statement and returns the number of affected rows.
func (e *Engine) exec(ctx context.Context, q adapters.Querier, operation string, b sqlBuilder) (int64, error) {
	query, err := toSQL(b)
	if err != nil {
		return 0, err
	}

	start := time.Now()
	result, err := q.Exec(ctx, query)
	e.observeStatement(ctx, operation, query, time.Since(start), err)

	if err != nil {
		return 0, classify(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Join(ErrQueryFailed, err)
	}

	return affected, nil
}
