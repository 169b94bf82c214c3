// Package adapters hides the differences between pgx, database/sql and sqlx behind one
// small interface, so the engine builds its SQL once and runs it on any of them.
//
// Statements are fully interpolated by the query builder, so adapters never bind arguments.
package adapters
