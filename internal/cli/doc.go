// Package cli implements the librarycatalog command line.
//
// Every service role runs as its own subcommand against its own database:
// coordinator (book service), author, genre, catalog-projector and read-models.
// all-in-one runs every role in one process on in-memory stores, which is meant for
// demos and local experiments. request-book and validate-book are one-shot commands.
//
// Configuration is loaded with config.Load from the file named by --config and
// LIBRARY_* environment variables.
package cli
