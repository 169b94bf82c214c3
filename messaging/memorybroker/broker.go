package memorybroker

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/AntonStoeckl/library-catalog-go/messaging"
)

const (
	logMsgHandlerRejected = "memory broker: handler rejected delivery, message dropped"
	logMsgQueueDeleted    = "memory broker: ephemeral queue deleted"
	logAttrQueue          = "queue"
	logAttrRoutingKey     = "routing_key"
	logAttrError          = "error"
)

var (
	// ErrQueueHasConsumer is returned when a second consumer subscribes to the same durable queue.
	ErrQueueHasConsumer = errors.New("queue already has a consumer")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("memory broker is closed")
)

// Logger interface for operational messages, warnings, and error reporting.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type queue struct {
	name     string
	durable  bool
	bindings []messaging.Route
	backlog  []messaging.Delivery
	handler  messaging.DeliveryHandler
	notify   chan struct{}
}

func (q *queue) matches(exchange string, routingKey string) bool {
	for _, route := range q.bindings {
		if route.Exchange == exchange && topicMatches(route.RoutingKey, routingKey) {
			return true
		}
	}

	return false
}

// Broker is an in-process Broker Port.
type Broker struct {
	mu             sync.Mutex
	queues         map[string]*queue
	ephemeralSeq   int
	manualDelivery bool
	concurrency    int
	rejected       int
	closed         bool
	wg             sync.WaitGroup
	logger         Logger
}

// Option defines a functional option for configuring Broker.
type Option func(*Broker) error

// WithManualDelivery disables consumer goroutines; deliveries happen only inside Drain.
func WithManualDelivery() Option {
	return func(b *Broker) error {
		b.manualDelivery = true
		return nil
	}
}

// WithConsumerConcurrency sets how many deliveries of one queue are handled at the same time.
// The default of 1 handles each queue's messages one after another, in publish order.
func WithConsumerConcurrency(consumers int) Option {
	return func(b *Broker) error {
		if consumers < 1 {
			return fmt.Errorf("consumer concurrency must be at least 1, got %d", consumers)
		}

		b.concurrency = consumers

		return nil
	}
}

// WithLogger sets the logger for the Broker.
func WithLogger(logger Logger) Option {
	return func(b *Broker) error {
		b.logger = logger
		return nil
	}
}

// New creates an empty Broker.
func New(options ...Option) (*Broker, error) {
	b := &Broker{queues: make(map[string]*queue), concurrency: 1}

	for _, option := range options {
		if err := option(b); err != nil {
			return nil, err
		}
	}

	return b, nil
}

// Publish routes payload to every queue bound to exchange with a matching routing key.
// A message that matches no queue is discarded, as a broker would do.
func (b *Broker) Publish(_ context.Context, exchange string, routingKey string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}

	for _, q := range b.queues {
		if !q.matches(exchange, routingKey) {
			continue
		}

		q.backlog = append(q.backlog, messaging.Delivery{
			Queue:      q.name,
			Exchange:   exchange,
			RoutingKey: routingKey,
			Payload:    append([]byte(nil), payload...),
		})

		select {
		case q.notify <- struct{}{}:
		default:
		}
	}

	return nil
}

// Declare creates a durable queue and its binding without attaching a consumer.
// Messages published afterwards are kept until a consumer subscribes.
func (b *Broker) Declare(binding messaging.Binding) error {
	if !binding.Durable || binding.Queue == "" {
		return fmt.Errorf("declare needs a durable named queue, got %+v", binding)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.declareLocked(binding)

	return nil
}

func (b *Broker) declareLocked(binding messaging.Binding) *queue {
	name := binding.Queue
	if !binding.Durable || name == "" {
		b.ephemeralSeq++
		name = fmt.Sprintf("amq.gen-%d", b.ephemeralSeq)
	}

	q, ok := b.queues[name]
	if !ok {
		q = &queue{name: name, durable: binding.Durable, notify: make(chan struct{}, 1)}
		b.queues[name] = q
	}

	for _, route := range q.bindings {
		if route == binding.Route {
			return q
		}
	}

	q.bindings = append(q.bindings, binding.Route)

	return q
}

// Subscribe declares the binding and attaches handler as the queue's only consumer.
// When ctx is done the consumer detaches; ephemeral queues are deleted with it.
func (b *Broker) Subscribe(ctx context.Context, binding messaging.Binding, handler messaging.DeliveryHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}

	q := b.declareLocked(binding)
	if q.handler != nil {
		return errors.Join(ErrQueueHasConsumer, fmt.Errorf("queue %q", q.name))
	}

	q.handler = handler

	if len(q.backlog) > 0 {
		select {
		case q.notify <- struct{}{}:
		default:
		}
	}

	var consumers sync.WaitGroup

	for range b.concurrency {
		consumers.Add(1)

		go func() {
			defer consumers.Done()
			b.consume(ctx, q)
		}()
	}

	b.wg.Add(1)

	go func() {
		defer b.wg.Done()
		consumers.Wait()
		b.detach(q)
	}()

	return nil
}

func (b *Broker) consume(ctx context.Context, q *queue) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-q.notify:
		}

		if b.manualDelivery {
			continue
		}

		for {
			delivery, handler, ok := b.pop(q)
			if !ok {
				break
			}

			b.deliver(ctx, delivery, handler)

			if ctx.Err() != nil {
				return
			}
		}
	}
}

func (b *Broker) detach(q *queue) {
	b.mu.Lock()
	defer b.mu.Unlock()

	q.handler = nil

	if !q.durable {
		delete(b.queues, q.name)

		if b.logger != nil {
			b.logger.Debug(logMsgQueueDeleted, logAttrQueue, q.name)
		}
	}
}

func (b *Broker) pop(q *queue) (messaging.Delivery, messaging.DeliveryHandler, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(q.backlog) == 0 || q.handler == nil {
		return messaging.Delivery{}, nil, false
	}

	delivery := q.backlog[0]
	q.backlog = q.backlog[1:]

	// wake an idle consumer of the same queue
	if len(q.backlog) > 0 {
		select {
		case q.notify <- struct{}{}:
		default:
		}
	}

	return delivery, q.handler, true
}

func (b *Broker) deliver(ctx context.Context, delivery messaging.Delivery, handler messaging.DeliveryHandler) {
	if err := handler(ctx, delivery); err != nil {
		b.mu.Lock()
		b.rejected++
		b.mu.Unlock()

		if b.logger != nil {
			b.logger.Warn(logMsgHandlerRejected, logAttrQueue, delivery.Queue, logAttrRoutingKey, delivery.RoutingKey, logAttrError, err.Error())
		}
	}
}

// Drain delivers backlog messages to attached consumers on the calling goroutine until no
// consumer has anything left, including messages published by the handlers themselves.
// It returns the number of deliveries.
func (b *Broker) Drain(ctx context.Context) (int, error) {
	delivered := 0

	for {
		if err := ctx.Err(); err != nil {
			return delivered, err
		}

		delivery, handler, ok := b.nextDeliverable()
		if !ok {
			return delivered, nil
		}

		b.deliver(ctx, delivery, handler)
		delivered++
	}
}

func (b *Broker) nextDeliverable() (messaging.Delivery, messaging.DeliveryHandler, bool) {
	b.mu.Lock()
	queues := make([]*queue, 0, len(b.queues))
	for _, q := range b.queues {
		queues = append(queues, q)
	}
	b.mu.Unlock()

	slices.SortFunc(queues, func(a, b *queue) int { return strings.Compare(a.name, b.name) })

	for _, q := range queues {
		if delivery, handler, ok := b.pop(q); ok {
			return delivery, handler, true
		}
	}

	return messaging.Delivery{}, nil, false
}

// Backlog returns the number of undelivered messages in the named queue.
func (b *Broker) Backlog(queueName string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	q, ok := b.queues[queueName]
	if !ok {
		return 0
	}

	return len(q.backlog)
}

// Rejected returns how many deliveries a handler answered with an error.
func (b *Broker) Rejected() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.rejected
}

// Close rejects further publishing and waits until every consumer goroutine has stopped.
// Consumers stop when the context they subscribed with is done.
func (b *Broker) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()

	b.wg.Wait()
}
