// Package config provides the typed service configuration of the library catalog
// and the PostgreSQL connection factories built from it.
//
// A Config starts from Default, is overlaid by an optional YAML file and finally by
// LIBRARY_* environment variables. Load validates the result.
//
// The factories open a pgxpool.Pool, a database/sql DB (lib/pq) or an sqlx.DB, matching
// the three adapters of the postgresengine package.
package config
