package adapters

import "context"

// Querier runs interpolated SQL statements.
type Querier interface {
	Query(ctx context.Context, query string) (DBRows, error)
	Exec(ctx context.Context, query string) (DBResult, error)
}

// DBAdapter is a connection pool that can start transactions.
type DBAdapter interface {
	Querier
	BeginTx(ctx context.Context) (TxAdapter, error)
}

// TxAdapter is an open transaction.
type TxAdapter interface {
	Querier
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// DBRows defines the interface for query result rows.
type DBRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// DBResult defines the interface for execution results.
type DBResult interface {
	RowsAffected() (int64, error)
}
