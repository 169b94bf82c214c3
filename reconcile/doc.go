// Package reconcile keeps the lending side's Book and Genre replicas consistent when
// BookFinalized facts arrive before the GenreCreated event they depend on.
//
// Such facts are parked in a DeferredFact buffer and replayed once the genre shows up,
// so the resulting replicas do not depend on the delivery order.
package reconcile
