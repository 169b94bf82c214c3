package postgresengine

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"github.com/AntonStoeckl/library-catalog-go/catalog"
)

const sqlStateUniqueViolation = "23505"

var (
	// ErrNilDatabaseConnection is returned by the constructors when no connection was given.
	ErrNilDatabaseConnection = errors.New("database connection must not be nil")

	// ErrBuildingQueryFailed is returned when goqu cannot render a statement.
	ErrBuildingQueryFailed = errors.New("building the query failed")

	// ErrQueryFailed is returned when executing a statement failed.
	ErrQueryFailed = errors.New("executing the query failed")

	// ErrScanningDBRowFailed is returned when a result row could not be scanned.
	ErrScanningDBRowFailed = errors.New("scanning a database row failed")

	// ErrTransactionFailed is returned when a transaction could not be started or committed.
	ErrTransactionFailed = errors.New("database transaction failed")

	// ErrEmptyModelName is returned by NewReadModelStore for an empty model name.
	ErrEmptyModelName = errors.New("read model name must not be empty")
)

// isUniqueViolation reports whether err is a unique violation from pgx or lib/pq.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == sqlStateUniqueViolation
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == sqlStateUniqueViolation
	}

	return false
}

// classify wraps a driver error with the matching sentinel.
func classify(err error) error {
	if isUniqueViolation(err) {
		return errors.Join(catalog.ErrDuplicateKey, err)
	}

	return errors.Join(ErrQueryFailed, err)
}
