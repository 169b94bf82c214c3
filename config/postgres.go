package config

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver
)

const driverName = "postgres"

// ErrOpeningDatabaseFailed is returned when a connection pool cannot be created or reached.
var ErrOpeningDatabaseFailed = errors.New("opening database failed")

// PGXPoolConfig creates a pgxpool.Config from the DSN and pool settings.
func (p PostgresConfig) PGXPoolConfig() (*pgxpool.Config, error) {
	dbConfig, err := pgxpool.ParseConfig(p.DSN)
	if err != nil {
		return nil, errors.Join(ErrOpeningDatabaseFailed, err)
	}

	dbConfig.MaxConns = p.MaxConns
	dbConfig.MinConns = p.MinConns
	dbConfig.MaxConnLifetime = p.MaxConnLifetime
	dbConfig.MaxConnIdleTime = p.MaxConnIdleTime
	dbConfig.ConnConfig.ConnectTimeout = p.ConnectTimeout

	return dbConfig, nil
}

// NewPGXPool creates a pgxpool.Pool and pings it.
func NewPGXPool(ctx context.Context, p PostgresConfig) (*pgxpool.Pool, error) {
	dbConfig, err := p.PGXPoolConfig()
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, dbConfig)
	if err != nil {
		return nil, errors.Join(ErrOpeningDatabaseFailed, err)
	}

	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Join(ErrOpeningDatabaseFailed, err)
	}

	return pool, nil
}

// OpenSQLDB opens a database/sql DB over lib/pq and pings it.
func OpenSQLDB(ctx context.Context, p PostgresConfig) (*sql.DB, error) {
	db, err := sql.Open(driverName, p.DSN)
	if err != nil {
		return nil, errors.Join(ErrOpeningDatabaseFailed, err)
	}

	p.configurePool(db)

	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Join(ErrOpeningDatabaseFailed, err)
	}

	return db, nil
}

// OpenSQLX opens an sqlx.DB over lib/pq and pings it.
func OpenSQLX(ctx context.Context, p PostgresConfig) (*sqlx.DB, error) {
	db, err := sqlx.Open(driverName, p.DSN)
	if err != nil {
		return nil, errors.Join(ErrOpeningDatabaseFailed, err)
	}

	p.configurePool(db.DB)

	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Join(ErrOpeningDatabaseFailed, err)
	}

	return db, nil
}

func (p PostgresConfig) configurePool(db *sql.DB) {
	db.SetMaxOpenConns(int(p.MaxConns))
	db.SetMaxIdleConns(int(p.MinConns))
	db.SetConnMaxLifetime(p.MaxConnLifetime)
	db.SetConnMaxIdleTime(p.MaxConnIdleTime)
}
