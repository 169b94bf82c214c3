package postgresengine_test

import (
	"database/sql"
	"testing"

	_ "github.com/lib/pq" // postgres driver
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-catalog-go/postgresengine"
	"github.com/AntonStoeckl/library-catalog-go/projection"
)

func Test_FactoryFunctions_ShouldFail_WithNilDatabaseConnection(t *testing.T) {
	testCases := []struct {
		name        string
		factoryFunc func() (*postgresengine.Engine, error)
	}{
		{
			name: "NewEngineFromPGXPool with nil",
			factoryFunc: func() (*postgresengine.Engine, error) {
				return postgresengine.NewEngineFromPGXPool(nil)
			},
		},
		{
			name: "NewEngineFromSQLDB with nil",
			factoryFunc: func() (*postgresengine.Engine, error) {
				return postgresengine.NewEngineFromSQLDB(nil)
			},
		},
		{
			name: "NewEngineFromSQLX with nil",
			factoryFunc: func() (*postgresengine.Engine, error) {
				return postgresengine.NewEngineFromSQLX(nil)
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			engine, err := tc.factoryFunc()

			assert.ErrorIs(t, err, postgresengine.ErrNilDatabaseConnection)
			assert.Nil(t, engine)
		})
	}
}

func Test_NewReadModelStore_ShouldFail_WithoutEngineOrModelName(t *testing.T) {
	// sql.Open does not connect
	db, err := sql.Open("postgres", "postgres://localhost:1/none?sslmode=disable")
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	engine, err := postgresengine.NewEngineFromSQLDB(db)
	require.NoError(t, err)

	_, err = postgresengine.NewReadModelStore[projection.BookView](nil, "books")
	assert.ErrorIs(t, err, postgresengine.ErrNilDatabaseConnection)

	_, err = postgresengine.NewReadModelStore[projection.BookView](engine, "")
	assert.ErrorIs(t, err, postgresengine.ErrEmptyModelName)
}

func Test_NewAdvisoryLocker_ShouldFail_WithoutEngine(t *testing.T) {
	_, err := postgresengine.NewAdvisoryLocker(nil, "")
	assert.ErrorIs(t, err, postgresengine.ErrNilDatabaseConnection)
}
