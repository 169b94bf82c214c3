package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrNoRoute is returned by Router.Dispatch when no handler is registered for a delivery's route.
	ErrNoRoute = errors.New("no handler registered for route")

	// ErrDuplicateBinding is returned when the same durable queue is bound to the same route twice.
	ErrDuplicateBinding = errors.New("binding is already registered")

	// ErrNilHandler is returned when a binding is registered without a handler.
	ErrNilHandler = errors.New("handler must not be nil")
)

type routeEntry struct {
	binding Binding
	handler DeliveryHandler
}

// Router is the explicit dispatch table mapping {exchange, routing key} to registered handlers.
// It is built at startup and can dispatch deliveries without a broker.
type Router struct {
	mu      sync.RWMutex
	entries []routeEntry
	byRoute map[Route][]int
}

// NewRouter creates an empty Router.
func NewRouter() *Router {
	return &Router{byRoute: make(map[Route][]int)}
}

// Register adds a handler for binding.
func (r *Router) Register(binding Binding, handler DeliveryHandler) error {
	if handler == nil {
		return ErrNilHandler
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, idx := range r.byRoute[binding.Route] {
		existing := r.entries[idx].binding
		if binding.Durable && existing.Durable && existing.Queue == binding.Queue {
			return errors.Join(ErrDuplicateBinding, fmt.Errorf("queue %q, route %s", binding.Queue, binding.Route))
		}
	}

	r.entries = append(r.entries, routeEntry{binding: binding, handler: handler})
	r.byRoute[binding.Route] = append(r.byRoute[binding.Route], len(r.entries)-1)

	return nil
}

// MustRegister is like Register but panics on error. Meant for static tables built at startup.
func (r *Router) MustRegister(binding Binding, handler DeliveryHandler) {
	if err := r.Register(binding, handler); err != nil {
		panic(err)
	}
}

// Bindings returns all registered bindings in registration order.
func (r *Router) Bindings() []Binding {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bindings := make([]Binding, 0, len(r.entries))
	for _, entry := range r.entries {
		bindings = append(bindings, entry.binding)
	}

	return bindings
}

// Dispatch hands a delivery to every handler registered for its route, as if each bound queue had received a copy.
func (r *Router) Dispatch(ctx context.Context, delivery Delivery) error {
	r.mu.RLock()
	indexes := r.byRoute[delivery.Route()]
	entries := make([]routeEntry, 0, len(indexes))
	for _, idx := range indexes {
		entries = append(entries, r.entries[idx])
	}
	r.mu.RUnlock()

	if len(entries) == 0 {
		return errors.Join(ErrNoRoute, fmt.Errorf("route %s", delivery.Route()))
	}

	var errs []error
	for _, entry := range entries {
		d := delivery
		d.Queue = entry.binding.Queue

		if err := entry.handler(ctx, d); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// SubscribeAll subscribes every registered binding with its handler.
func (r *Router) SubscribeAll(ctx context.Context, subscriber Subscriber) error {
	r.mu.RLock()
	entries := make([]routeEntry, len(r.entries))
	copy(entries, r.entries)
	r.mu.RUnlock()

	for _, entry := range entries {
		if err := subscriber.Subscribe(ctx, entry.binding, entry.handler); err != nil {
			return fmt.Errorf("subscribing %q to %s: %w", entry.binding.Queue, entry.binding.Route, err)
		}
	}

	return nil
}
