// Package postgreswrapper creates a postgresengine.Engine for integration tests on the adapter
// selected by ADAPTER_TYPE and connected to LIBRARY_TEST_POSTGRES_DSN.
package postgreswrapper

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-catalog-go/config"
	"github.com/AntonStoeckl/library-catalog-go/postgresengine"
)

const (
	envDSN         = "LIBRARY_TEST_POSTGRES_DSN"
	envAdapterType = "ADAPTER_TYPE"
)

// Tables lists every table of the test schema, truncated by CleanUp.
var Tables = []string{"books", "authors", "genres", "pending_requests", "deferred_facts", "outbox", "read_models"}

// Wrapper holds an Engine and the raw connection it runs on.
type Wrapper struct {
	engine *postgresengine.Engine
	exec   func(ctx context.Context, query string) error
	close  func()
}

// Engine returns the wrapped Engine.
func (w *Wrapper) Engine() *postgresengine.Engine {
	return w.engine
}

// Exec runs a raw statement on the wrapped connection.
func (w *Wrapper) Exec(t testing.TB, query string) {
	t.Helper()
	require.NoError(t, w.exec(context.Background(), query), "error executing %q in test setup", query)
}

// Close closes the wrapped connection.
func (w *Wrapper) Close() {
	w.close()
}

// CreateWrapperWithTestConfig connects to the test database and applies the schema file at schemaPath.
// The test is skipped when LIBRARY_TEST_POSTGRES_DSN is not set.
// It panics on an unknown ADAPTER_TYPE.
func CreateWrapperWithTestConfig(t testing.TB, schemaPath string, options ...postgresengine.Option) *Wrapper {
	t.Helper()

	dsn := os.Getenv(envDSN)
	if dsn == "" {
		t.Skipf("%s is not set, skipping postgres integration test", envDSN)
	}

	pg := config.Default().Postgres
	pg.DSN = dsn

	ctx := context.Background()
	wrapper := &Wrapper{}

	var err error

	switch adapterType := strings.ToLower(os.Getenv(envAdapterType)); adapterType {
	case config.AdapterPGXPool, "":
		pool, openErr := config.NewPGXPool(ctx, pg)
		require.NoError(t, openErr, "error connecting to DB pool in test setup")

		wrapper.engine, err = postgresengine.NewEngineFromPGXPool(pool, options...)
		wrapper.exec = func(ctx context.Context, query string) error {
			_, execErr := pool.Exec(ctx, query)
			return execErr
		}
		wrapper.close = pool.Close

	case config.AdapterSQLDB:
		db, openErr := config.OpenSQLDB(ctx, pg)
		require.NoError(t, openErr, "error connecting to DB in test setup")

		wrapper.engine, err = postgresengine.NewEngineFromSQLDB(db, options...)
		wrapper.exec = func(ctx context.Context, query string) error {
			_, execErr := db.ExecContext(ctx, query)
			return execErr
		}
		wrapper.close = func() { _ = db.Close() }

	case config.AdapterSQLX:
		db, openErr := config.OpenSQLX(ctx, pg)
		require.NoError(t, openErr, "error connecting to DB in test setup")

		wrapper.engine, err = postgresengine.NewEngineFromSQLX(db, options...)
		wrapper.exec = func(ctx context.Context, query string) error {
			_, execErr := db.ExecContext(ctx, query)
			return execErr
		}
		wrapper.close = func() { _ = db.Close() }

	default:
		panic(fmt.Sprintf("unsupported adapter type from env: %s", adapterType))
	}

	require.NoError(t, err, "error creating the engine in test setup")

	schema, err := os.ReadFile(schemaPath)
	require.NoError(t, err, "error reading the schema in test setup")
	wrapper.Exec(t, string(schema))

	return wrapper
}

// CleanUp truncates every table of the test schema.
func CleanUp(t testing.TB, wrapper *Wrapper) {
	t.Helper()
	wrapper.Exec(t, "TRUNCATE TABLE "+strings.Join(Tables, ", ")+" RESTART IDENTITY")
}
