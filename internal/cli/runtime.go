package cli

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"

	"github.com/AntonStoeckl/library-catalog-go/catalog"
	"github.com/AntonStoeckl/library-catalog-go/config"
	"github.com/AntonStoeckl/library-catalog-go/messaging"
	"github.com/AntonStoeckl/library-catalog-go/messaging/memorybroker"
	"github.com/AntonStoeckl/library-catalog-go/messaging/rabbitmq"
	"github.com/AntonStoeckl/library-catalog-go/oteladapters"
)

const (
	shutdownTimeout = 5 * time.Second

	logAttrComponent = "component"
	logAttrService   = "service"
	logAttrRole      = "role"
	logAttrBroker    = "broker"
	logAttrStorage   = "storage"
)

// runtime holds what every command shares: configuration, logger, telemetry providers,
// the broker connection and the database handles.
type runtime struct {
	cfg          config.Config
	logger       *slog.Logger
	providers    *oteladapters.Providers
	broker       messaging.Broker
	closeBroker  func() error
	storeClosers []func()
}

func newRuntime(ctx context.Context, cfg config.Config, logOutput io.Writer) (*runtime, error) {
	logger := newLogger(cfg.Log, logOutput)

	var options []oteladapters.ProvidersOption

	if cfg.Telemetry.TraceExporter == config.TraceExporterStdout {
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(logOutput))
		if err != nil {
			return nil, err
		}

		options = append(options, oteladapters.WithSpanExporter(exporter))
	}

	providers, err := oteladapters.NewProviders(ctx, cfg.Telemetry.ServiceName, Version, options...)
	if err != nil {
		return nil, err
	}

	return &runtime{cfg: cfg, logger: logger, providers: providers}, nil
}

func newLogger(cfg config.LogConfig, output io.Writer) *slog.Logger {
	handlerOptions := &slog.HandlerOptions{Level: cfg.SlogLevel()}

	if cfg.Format == config.LogFormatText {
		return slog.New(slog.NewTextHandler(output, handlerOptions))
	}

	return slog.New(slog.NewJSONHandler(output, handlerOptions))
}

// observability bundles the process logger and the telemetry providers for one component.
func (rt *runtime) observability(component string) catalog.Observability {
	return rt.providers.Observability(component, catalog.WithContextualLogger(rt.componentLogger(component)))
}

func (rt *runtime) componentLogger(component string) *slog.Logger {
	return rt.logger.With(logAttrComponent, component)
}

func (rt *runtime) metrics(scope string) *oteladapters.MetricsCollector {
	return oteladapters.NewMetricsCollector(rt.providers.MeterProvider.Meter(scope))
}

// openBroker connects the configured broker. It is closed by close, before the stores.
func (rt *runtime) openBroker(ctx context.Context) (messaging.Broker, error) {
	switch rt.cfg.Broker {
	case config.BrokerRabbitMQ:
		broker, err := rabbitmq.NewBroker(
			rt.cfg.RabbitMQ.URL,
			rabbitmq.WithPrefetch(rt.cfg.RabbitMQ.Prefetch),
			rabbitmq.WithConnectionName(rt.cfg.Telemetry.ServiceName),
			rabbitmq.WithReconnect(
				rabbitmq.WithMaxAttempts(rt.cfg.RabbitMQ.ReconnectMaxAttempts),
				rabbitmq.WithBaseDelay(rt.cfg.RabbitMQ.ReconnectBaseDelay),
			),
			rabbitmq.WithContextualLogger(rt.componentLogger("rabbitmq")),
			rabbitmq.WithMetrics(rt.metrics("rabbitmq")),
		)
		if err != nil {
			return nil, err
		}

		if err = broker.Connect(ctx); err != nil {
			return nil, errors.Join(err, broker.Close())
		}

		rt.broker, rt.closeBroker = broker, broker.Close

	default:
		broker, err := memorybroker.New(memorybroker.WithLogger(rt.componentLogger("memorybroker")))
		if err != nil {
			return nil, err
		}

		rt.broker = broker
		rt.closeBroker = func() error {
			broker.Close()
			return nil
		}
	}

	return rt.broker, nil
}

// close stops the broker, then releases the databases and flushes telemetry.
// Consumers must have been stopped by cancelling their context before.
func (rt *runtime) close() error {
	var errs []error

	if rt.closeBroker != nil {
		errs = append(errs, rt.closeBroker())
	}

	for _, closeStore := range rt.storeClosers {
		closeStore()
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	errs = append(errs, rt.providers.Shutdown(ctx))

	return errors.Join(errs...)
}
