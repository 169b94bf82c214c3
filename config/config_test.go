package config_test

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-catalog-go/config"
)

func Test_Load_WithoutFileAndEnvironment_ReturnsDefaults(t *testing.T) {
	// act
	cfg, err := config.Load("")

	// assert
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
	assert.Equal(t, config.StorageMemory, cfg.Storage)
	assert.Equal(t, config.BrokerMemory, cfg.Broker)
	assert.Equal(t, 5, cfg.Outbox.MaxRetries)
	assert.Equal(t, 30*time.Second, cfg.Validation.Timeout)
}

func Test_Load_File_OverlaysDefaults(t *testing.T) {
	// act
	cfg, err := config.Load("testdata/postgres-rabbitmq.yaml")

	// assert
	require.NoError(t, err)
	assert.Equal(t, config.StoragePostgres, cfg.Storage)
	assert.Equal(t, config.BrokerRabbitMQ, cfg.Broker)
	assert.Equal(t, config.AdapterSQLX, cfg.Postgres.Adapter)
	assert.Equal(t, int32(20), cfg.Postgres.MaxConns)
	assert.Equal(t, 32, cfg.RabbitMQ.Prefetch)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, 2*time.Second, cfg.Outbox.Interval)
	assert.Equal(t, 7, cfg.Outbox.MaxRetries)
	assert.True(t, cfg.Outbox.AdvisoryLock)
	assert.Equal(t, 10*time.Second, cfg.Validation.Timeout)
	assert.Equal(t, config.LogFormatText, cfg.Log.Format)
	assert.Equal(t, slog.LevelDebug, cfg.Log.SlogLevel())
	assert.Equal(t, config.TraceExporterStdout, cfg.Telemetry.TraceExporter)

	// untouched by the file
	assert.Equal(t, 60*time.Second, cfg.Outbox.RetryInterval)
	assert.Equal(t, 100, cfg.Outbox.BatchSize)
	assert.Equal(t, "library:validation:", cfg.Redis.KeyPrefix)
}

func Test_Load_Environment_OverridesFile(t *testing.T) {
	// setup
	t.Setenv("LIBRARY_OUTBOX_MAX_RETRIES", "3")
	t.Setenv("LIBRARY_POSTGRES_ADAPTER", config.AdapterPGXPool)
	t.Setenv("LIBRARY_VALIDATION_TIMEOUT", "1m")
	t.Setenv("LIBRARY_OUTBOX_ADVISORY_LOCK", "false")

	// act
	cfg, err := config.Load("testdata/postgres-rabbitmq.yaml")

	// assert
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Outbox.MaxRetries)
	assert.Equal(t, config.AdapterPGXPool, cfg.Postgres.Adapter)
	assert.Equal(t, time.Minute, cfg.Validation.Timeout)
	assert.False(t, cfg.Outbox.AdvisoryLock)
}

func Test_Load_MalformedEnvironmentValue_Fails(t *testing.T) {
	// setup
	t.Setenv("LIBRARY_OUTBOX_INTERVAL", "soon")

	// act
	_, err := config.Load("")

	// assert
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
	assert.ErrorContains(t, err, "LIBRARY_OUTBOX_INTERVAL")
}

func Test_Load_UnknownFileField_Fails(t *testing.T) {
	// act
	_, err := config.Load("testdata/unknown-field.yaml")

	// assert
	assert.ErrorIs(t, err, config.ErrReadingConfigFileFailed)
}

func Test_Load_MissingFile_Fails(t *testing.T) {
	// act
	_, err := config.Load("testdata/does-not-exist.yaml")

	// assert
	assert.ErrorIs(t, err, config.ErrReadingConfigFileFailed)
}

func Test_Validate_RejectsUnusableValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(cfg *config.Config)
	}{
		{"unknown storage", func(cfg *config.Config) { cfg.Storage = "sqlite" }},
		{"unknown broker", func(cfg *config.Config) { cfg.Broker = "kafka" }},
		{"postgres without dsn", func(cfg *config.Config) {
			cfg.Storage = config.StoragePostgres
			cfg.Postgres.DSN = ""
		}},
		{"postgres with unknown adapter", func(cfg *config.Config) {
			cfg.Storage = config.StoragePostgres
			cfg.Postgres.Adapter = "odbc"
		}},
		{"postgres min above max", func(cfg *config.Config) {
			cfg.Storage = config.StoragePostgres
			cfg.Postgres.MinConns = cfg.Postgres.MaxConns + 1
		}},
		{"rabbitmq without url", func(cfg *config.Config) {
			cfg.Broker = config.BrokerRabbitMQ
			cfg.RabbitMQ.URL = ""
		}},
		{"zero outbox interval", func(cfg *config.Config) { cfg.Outbox.Interval = 0 }},
		{"zero max retries", func(cfg *config.Config) { cfg.Outbox.MaxRetries = 0 }},
		{"negative validation timeout", func(cfg *config.Config) { cfg.Validation.Timeout = -time.Second }},
		{"unknown log format", func(cfg *config.Config) { cfg.Log.Format = "xml" }},
		{"unknown log level", func(cfg *config.Config) { cfg.Log.Level = "verbose" }},
		{"unknown trace exporter", func(cfg *config.Config) { cfg.Telemetry.TraceExporter = "jaeger" }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			// setup
			cfg := config.Default()
			tc.mutate(&cfg)

			// act
			err := cfg.Validate()

			// assert
			assert.ErrorIs(t, err, config.ErrInvalidConfig)
		})
	}
}

func Test_PGXPoolConfig_AppliesPoolSettings(t *testing.T) {
	// setup
	pg := config.Default().Postgres

	// act
	poolConfig, err := pg.PGXPoolConfig()

	// assert
	require.NoError(t, err)
	assert.Equal(t, pg.MaxConns, poolConfig.MaxConns)
	assert.Equal(t, pg.MinConns, poolConfig.MinConns)
	assert.Equal(t, pg.ConnectTimeout, poolConfig.ConnConfig.ConnectTimeout)
	assert.Equal(t, "library", poolConfig.ConnConfig.Database)
}

func Test_PGXPoolConfig_MalformedDSN_Fails(t *testing.T) {
	// setup
	pg := config.Default().Postgres
	pg.DSN = "postgres://%zz"

	// act
	_, err := pg.PGXPoolConfig()

	// assert
	assert.ErrorIs(t, err, config.ErrOpeningDatabaseFailed)
}

func Test_LogConfig_SlogLevel_FallsBackToInfo(t *testing.T) {
	assert.Equal(t, slog.LevelWarn, config.LogConfig{Level: "warn"}.SlogLevel())
	assert.Equal(t, slog.LevelInfo, config.LogConfig{Level: "chatty"}.SlogLevel())
}
