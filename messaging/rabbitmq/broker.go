package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/AntonStoeckl/library-catalog-go/messaging"
)

const (
	defaultPrefetch       = 16
	defaultHeartbeat      = 10 * time.Second
	defaultConnectionName = "library-catalog"
	contentTypeJSON       = "application/json"

	logMsgConnected            = "rabbitmq: connected"
	logMsgReconnecting         = "rabbitmq: connecting failed, retrying"
	logMsgSubscribed           = "rabbitmq: consumer started"
	logMsgConsumerLost         = "rabbitmq: consumer lost its channel, resubscribing"
	logMsgResubscribeFailed    = "rabbitmq: resubscribing failed, consumer stopped"
	logMsgHandlerRejected      = "rabbitmq: handler rejected delivery, message dropped"
	logMsgAcknowledgeFailed    = "rabbitmq: acknowledging delivery failed, it will be redelivered"
	logMsgPublishChannelFailed = "rabbitmq: publish channel failed, it will be reopened"
	logAttrQueue               = "queue"
	logAttrExchange            = "exchange"
	logAttrRoutingKey          = "routing_key"
	logAttrAttempt             = "attempt"
	logAttrDelayMS             = "delay_ms"
	logAttrError               = "error"
	logAttrDeliveryTag         = "delivery_tag"

	metricReconnectAttempts = "rabbitmq_reconnect_attempts_total"
	metricConnections       = "rabbitmq_connections_total"
	metricPublished         = "rabbitmq_published_total"
	metricPublishDuration   = "rabbitmq_publish_duration_seconds"
	metricDeliveries        = "rabbitmq_deliveries_total"
	labelExchange           = "exchange"
	labelQueue              = "queue"
	labelStatus             = "status"
	labelErrorType          = "error_type"
	statusSuccess           = "success"
	statusError             = "error"
	statusAcked             = "acked"
	statusRejected          = "rejected"
)

var (
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("rabbitmq broker is closed")

	// ErrPublishFailed is returned when a message could not be handed to the broker.
	ErrPublishFailed = errors.New("publishing to rabbitmq failed")

	// ErrPublishNotConfirmed is returned when the broker nacked a publishing.
	ErrPublishNotConfirmed = errors.New("rabbitmq did not confirm the publishing")
)

// Broker is the Broker Port on one AMQP connection.
// Publishing shares one confirm-mode channel; every consumer gets its own channel.
type Broker struct {
	url            string
	connectionName string
	prefetch       int
	reconnect      []RetryOption

	logger           Logger
	contextualLogger ContextualLogger
	metrics          MetricsCollector

	stopCtx context.Context
	stop    context.CancelFunc

	mu        sync.Mutex
	conn      *amqp.Connection
	publishCh *amqp.Channel
	exchanges map[string]struct{}
	closed    bool
	wg        sync.WaitGroup
}

// NewBroker creates a Broker for url. It connects lazily on first use.
func NewBroker(url string, options ...Option) (*Broker, error) {
	if url == "" {
		return nil, ErrEmptyURL
	}

	b := &Broker{
		url:            url,
		connectionName: defaultConnectionName,
		prefetch:       defaultPrefetch,
		exchanges:      make(map[string]struct{}),
	}

	for _, option := range options {
		if err := option(b); err != nil {
			return nil, err
		}
	}

	b.stopCtx, b.stop = context.WithCancel(context.Background())

	return b, nil
}

// Connect establishes the connection up front, retrying with backoff.
func (b *Broker) Connect(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	_, err := b.connectionLocked(ctx)

	return err
}

func (b *Broker) connectionLocked(ctx context.Context) (*amqp.Connection, error) {
	if b.closed {
		return nil, ErrClosed
	}

	if b.conn != nil && !b.conn.IsClosed() {
		return b.conn, nil
	}

	// Close aborts a reconnect in progress.
	retryCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stopAfter := context.AfterFunc(b.stopCtx, cancel)
	defer stopAfter()

	var conn *amqp.Connection

	dial := func(context.Context) error {
		var err error
		conn, err = amqp.DialConfig(b.url, amqp.Config{
			Heartbeat:  defaultHeartbeat,
			Locale:     "en_US",
			Properties: amqp.Table{"connection_name": b.connectionName},
		})

		return err
	}

	onRetry := withOnRetry(func(attempt int, delay time.Duration, err error) {
		b.logWarn(ctx, logMsgReconnecting, logAttrAttempt, attempt, logAttrDelayMS, delay.Milliseconds(), logAttrError, err.Error())
		b.incrementCounter(metricReconnectAttempts, map[string]string{labelErrorType: errorType(err)})
	})

	if _, err := RetryWithExponentialBackoff(retryCtx, dial, append(b.reconnect, onRetry)...); err != nil {
		if b.stopCtx.Err() != nil {
			return nil, ErrClosed
		}

		return nil, err
	}

	b.conn = conn
	b.publishCh = nil
	b.exchanges = make(map[string]struct{})

	b.logInfo(ctx, logMsgConnected)
	b.incrementCounter(metricConnections, nil)

	return conn, nil
}

func (b *Broker) publishChannelLocked(ctx context.Context) (*amqp.Channel, error) {
	conn, err := b.connectionLocked(ctx)
	if err != nil {
		return nil, err
	}

	if b.publishCh != nil && !b.publishCh.IsClosed() {
		return b.publishCh, nil
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}

	if err = ch.Confirm(false); err != nil {
		_ = ch.Close()
		return nil, err
	}

	b.publishCh = ch
	b.exchanges = make(map[string]struct{})

	return ch, nil
}

func (b *Broker) resetPublishChannelLocked(ctx context.Context, cause error) {
	b.logWarn(ctx, logMsgPublishChannelFailed, logAttrError, cause.Error())

	if b.publishCh != nil {
		_ = b.publishCh.Close()
		b.publishCh = nil
	}
}

func declareExchange(ch *amqp.Channel, exchange string) error {
	return ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil)
}

// Publish implements messaging.Publisher. It returns once the broker confirmed the message.
func (b *Broker) Publish(ctx context.Context, exchange string, routingKey string, payload []byte) (err error) {
	start := time.Now()
	defer func() {
		status := statusSuccess
		if err != nil {
			status = statusError
		}

		labels := map[string]string{labelExchange: exchange, labelStatus: status}
		b.incrementCounter(metricPublished, labels)
		b.recordDuration(metricPublishDuration, time.Since(start), labels)
	}()

	b.mu.Lock()
	defer b.mu.Unlock()

	ch, err := b.publishChannelLocked(ctx)
	if err != nil {
		return errors.Join(ErrPublishFailed, err)
	}

	if _, declared := b.exchanges[exchange]; !declared {
		if err = declareExchange(ch, exchange); err != nil {
			b.resetPublishChannelLocked(ctx, err)
			return errors.Join(ErrPublishFailed, err)
		}

		b.exchanges[exchange] = struct{}{}
	}

	confirmation, err := ch.PublishWithDeferredConfirmWithContext(ctx, exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  contentTypeJSON,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         payload,
	})

	if err != nil {
		b.resetPublishChannelLocked(ctx, err)
		return errors.Join(ErrPublishFailed, err)
	}

	acked, err := confirmation.WaitContext(ctx)
	if err != nil {
		b.resetPublishChannelLocked(ctx, err)
		return errors.Join(ErrPublishFailed, err)
	}

	if !acked {
		return errors.Join(ErrPublishFailed, ErrPublishNotConfirmed, fmt.Errorf("%s/%s", exchange, routingKey))
	}

	return nil
}

// Declare creates a durable queue and its binding without attaching a consumer.
// Messages published afterwards are kept until a consumer subscribes.
func (b *Broker) Declare(ctx context.Context, binding messaging.Binding) error {
	if !binding.Durable || binding.Queue == "" {
		return fmt.Errorf("declare needs a durable named queue, got %+v", binding)
	}

	b.mu.Lock()
	conn, err := b.connectionLocked(ctx)
	b.mu.Unlock()

	if err != nil {
		return err
	}

	ch, err := conn.Channel()
	if err != nil {
		return err
	}

	defer func() { _ = ch.Close() }()

	if err = declareExchange(ch, binding.Route.Exchange); err != nil {
		return err
	}

	if _, err = ch.QueueDeclare(binding.Queue, true, false, false, false, nil); err != nil {
		return err
	}

	return ch.QueueBind(binding.Queue, binding.Route.RoutingKey, binding.Route.Exchange, false, nil)
}

type consumer struct {
	ch         *amqp.Channel
	queue      string
	deliveries <-chan amqp.Delivery
}

// Subscribe implements messaging.Subscriber. The queue is declared and bound before it returns.
func (b *Broker) Subscribe(ctx context.Context, binding messaging.Binding, handler messaging.DeliveryHandler) error {
	c, err := b.startConsumer(ctx, binding)
	if err != nil {
		return err
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		_ = c.ch.Close()

		return ErrClosed
	}

	b.wg.Add(1)
	b.mu.Unlock()

	go b.consume(ctx, binding, handler, c)

	return nil
}

func (b *Broker) startConsumer(ctx context.Context, binding messaging.Binding) (consumer, error) {
	b.mu.Lock()
	conn, err := b.connectionLocked(ctx)
	b.mu.Unlock()

	if err != nil {
		return consumer{}, err
	}

	ch, err := conn.Channel()
	if err != nil {
		return consumer{}, err
	}

	c, err := declareAndConsume(ctx, ch, binding, b.prefetch)
	if err != nil {
		_ = ch.Close()
		return consumer{}, err
	}

	b.logInfo(ctx, logMsgSubscribed, logAttrQueue, c.queue, logAttrExchange, binding.Route.Exchange, logAttrRoutingKey, binding.Route.RoutingKey)

	return c, nil
}

func declareAndConsume(ctx context.Context, ch *amqp.Channel, binding messaging.Binding, prefetch int) (consumer, error) {
	if err := ch.Qos(prefetch, 0, false); err != nil {
		return consumer{}, err
	}

	if err := declareExchange(ch, binding.Route.Exchange); err != nil {
		return consumer{}, err
	}

	// ephemeral queues are server-named, exclusive and deleted with their consumer
	ephemeral := !binding.Durable
	name := binding.Queue
	if ephemeral {
		name = ""
	}

	queue, err := ch.QueueDeclare(name, !ephemeral, ephemeral, ephemeral, false, nil)
	if err != nil {
		return consumer{}, err
	}

	if err = ch.QueueBind(queue.Name, binding.Route.RoutingKey, binding.Route.Exchange, false, nil); err != nil {
		return consumer{}, err
	}

	deliveries, err := ch.ConsumeWithContext(ctx, queue.Name, "", false, ephemeral, false, false, nil)
	if err != nil {
		return consumer{}, err
	}

	return consumer{ch: ch, queue: queue.Name, deliveries: deliveries}, nil
}

func (b *Broker) consume(ctx context.Context, binding messaging.Binding, handler messaging.DeliveryHandler, c consumer) {
	defer b.wg.Done()

	for {
		for delivery := range c.deliveries {
			b.deliver(ctx, c.queue, delivery, handler)
		}

		_ = c.ch.Close()

		if ctx.Err() != nil || b.isClosed() {
			return
		}

		b.logWarn(ctx, logMsgConsumerLost, logAttrQueue, c.queue)

		next, err := b.resubscribe(ctx, binding)
		if err != nil {
			if ctx.Err() == nil && !b.isClosed() {
				b.logError(ctx, logMsgResubscribeFailed, logAttrQueue, binding.Queue, logAttrError, err.Error())
			}

			return
		}

		c = next
	}
}

func (b *Broker) resubscribe(ctx context.Context, binding messaging.Binding) (consumer, error) {
	var c consumer

	_, err := RetryWithExponentialBackoff(ctx, func(ctx context.Context) error {
		next, err := b.startConsumer(ctx, binding)
		if errors.Is(err, ErrClosed) {
			return context.Canceled
		}

		c = next

		return err
	}, b.reconnect...)

	return c, err
}

func (b *Broker) deliver(ctx context.Context, queue string, delivery amqp.Delivery, handler messaging.DeliveryHandler) {
	err := handler(ctx, messaging.Delivery{
		Queue:      queue,
		Exchange:   delivery.Exchange,
		RoutingKey: delivery.RoutingKey,
		Payload:    delivery.Body,
	})

	status := statusAcked

	var ackErr error

	if err != nil {
		status = statusRejected
		b.logWarn(ctx, logMsgHandlerRejected, logAttrQueue, queue, logAttrRoutingKey, delivery.RoutingKey, logAttrError, err.Error())
		ackErr = delivery.Nack(false, false)
	} else {
		ackErr = delivery.Ack(false)
	}

	if ackErr != nil {
		b.logWarn(ctx, logMsgAcknowledgeFailed, logAttrQueue, queue, logAttrDeliveryTag, strconv.FormatUint(delivery.DeliveryTag, 10), logAttrError, ackErr.Error())
	}

	b.incrementCounter(metricDeliveries, map[string]string{labelQueue: queue, labelStatus: status})
}

func (b *Broker) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.closed
}

// Close closes the connection and waits until every consumer goroutine has stopped.
func (b *Broker) Close() error {
	b.stop()

	b.mu.Lock()
	b.closed = true
	conn := b.conn
	b.conn = nil
	b.publishCh = nil
	b.mu.Unlock()

	var err error
	if conn != nil && !conn.IsClosed() {
		err = conn.Close()
	}

	b.wg.Wait()

	return err
}
