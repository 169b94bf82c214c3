package messaging

import "context"

// Delivery is one message received from a queue.
type Delivery struct {
	Queue      string
	Exchange   string
	RoutingKey string
	Payload    []byte
}

// Route returns the {exchange, routing key} the delivery was published to.
func (d Delivery) Route() Route {
	return Route{Exchange: d.Exchange, RoutingKey: d.RoutingKey}
}

// DeliveryHandler processes one delivery. Returning nil acknowledges it.
type DeliveryHandler func(ctx context.Context, delivery Delivery) error

// Binding binds a queue to a route.
// Durable bindings use a named queue that survives restarts and keeps messages while no consumer runs.
// Ephemeral bindings use a broker-named per-instance queue that disappears with the consumer.
type Binding struct {
	Queue   string
	Route   Route
	Durable bool
}

// DurableBinding binds the named durable queue to route.
func DurableBinding(queue string, route Route) Binding {
	return Binding{Queue: queue, Route: route, Durable: true}
}

// EphemeralBinding binds a fresh per-instance queue to route.
func EphemeralBinding(route Route) Binding {
	return Binding{Route: route}
}

// Publisher is the publishing half of the Broker Port.
type Publisher interface {
	Publish(ctx context.Context, exchange string, routingKey string, payload []byte) error
}

// Subscriber is the consuming half of the Broker Port.
// Subscribe declares the binding and starts consuming; consumption stops when ctx is done.
type Subscriber interface {
	Subscribe(ctx context.Context, binding Binding, handler DeliveryHandler) error
}

// Broker is a full Broker Port.
type Broker interface {
	Publisher
	Subscriber
}

// PublishMessage encodes msg and publishes it to route.
func PublishMessage(ctx context.Context, publisher Publisher, route Route, msg any) error {
	payload, err := Marshal(msg)
	if err != nil {
		return err
	}

	return publisher.Publish(ctx, route.Exchange, route.RoutingKey, payload)
}
