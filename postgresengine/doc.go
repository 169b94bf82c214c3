// Package postgresengine implements the persistence ports on PostgreSQL.
//
// An Engine is a catalog.UnitOfWork and the outbox.Store of one service database. It runs on
// a pgx pool, a database/sql DB opened with the lib/pq driver, or a sqlx DB. SQL is built with
// goqu. Unique violations (SQLSTATE 23505) map to catalog.ErrDuplicateKey and optimistic
// updates that affect no row map to catalog.ErrVersionConflict.
//
// AdvisoryLocker serializes outbox dispatch cycles across replicas, and ReadModelStore keeps
// projection rows as JSONB documents.
//
// The expected schema is in testdata/schema.sql. Creating it is left to the deployment.
package postgresengine
