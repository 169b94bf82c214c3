package config

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// EnvPrefix prefixes every environment variable Load reads.
const EnvPrefix = "LIBRARY_"

type envBinding struct {
	name  string
	apply func(value string) error
}

func (c *Config) envBindings() []envBinding {
	return []envBinding{
		{"STORAGE", setString(&c.Storage)},
		{"BROKER", setString(&c.Broker)},
		{"POSTGRES_DSN", setString(&c.Postgres.DSN)},
		{"POSTGRES_ADAPTER", setString(&c.Postgres.Adapter)},
		{"POSTGRES_MAX_CONNS", setInt32(&c.Postgres.MaxConns)},
		{"POSTGRES_MIN_CONNS", setInt32(&c.Postgres.MinConns)},
		{"RABBITMQ_URL", setString(&c.RabbitMQ.URL)},
		{"RABBITMQ_PREFETCH", setInt(&c.RabbitMQ.Prefetch)},
		{"REDIS_ADDR", setString(&c.Redis.Addr)},
		{"REDIS_PASSWORD", setString(&c.Redis.Password)},
		{"REDIS_DB", setInt(&c.Redis.DB)},
		{"REDIS_KEY_PREFIX", setString(&c.Redis.KeyPrefix)},
		{"OUTBOX_INTERVAL", setDuration(&c.Outbox.Interval)},
		{"OUTBOX_RETRY_INTERVAL", setDuration(&c.Outbox.RetryInterval)},
		{"OUTBOX_BATCH_SIZE", setInt(&c.Outbox.BatchSize)},
		{"OUTBOX_MAX_RETRIES", setInt(&c.Outbox.MaxRetries)},
		{"OUTBOX_ADVISORY_LOCK", setBool(&c.Outbox.AdvisoryLock)},
		{"VALIDATION_TIMEOUT", setDuration(&c.Validation.Timeout)},
		{"VALIDATION_SWEEP_INTERVAL", setDuration(&c.Validation.SweepInterval)},
		{"LOG_LEVEL", setString(&c.Log.Level)},
		{"LOG_FORMAT", setString(&c.Log.Format)},
		{"TELEMETRY_SERVICE_NAME", setString(&c.Telemetry.ServiceName)},
		{"TELEMETRY_TRACE_EXPORTER", setString(&c.Telemetry.TraceExporter)},
	}
}

func (c *Config) applyEnv(lookupEnv func(string) (string, bool)) error {
	var errs []error

	for _, binding := range c.envBindings() {
		value, ok := lookupEnv(EnvPrefix + binding.name)
		if !ok {
			continue
		}

		if err := binding.apply(value); err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, binding.name, err))
		}
	}

	if len(errs) > 0 {
		return errors.Join(append([]error{ErrInvalidConfig}, errs...)...)
	}

	return nil
}

func setString(target *string) func(string) error {
	return func(value string) error {
		*target = value
		return nil
	}
}

func setInt(target *int) func(string) error {
	return func(value string) error {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return err
		}

		*target = parsed

		return nil
	}
}

func setInt32(target *int32) func(string) error {
	return func(value string) error {
		parsed, err := strconv.ParseInt(value, 10, 32)
		if err != nil {
			return err
		}

		*target = int32(parsed)

		return nil
	}
}

func setBool(target *bool) func(string) error {
	return func(value string) error {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}

		*target = parsed

		return nil
	}
}

func setDuration(target *time.Duration) func(string) error {
	return func(value string) error {
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return err
		}

		*target = parsed

		return nil
	}
}
