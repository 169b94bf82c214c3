package saga

import (
	"github.com/AntonStoeckl/library-catalog-go/messaging"
)

// Register binds the Coordinator's handlers to their durable queues.
func (c *Coordinator) Register(router *messaging.Router, logger messaging.ContextualLogger) error {
	bindings := []struct {
		binding messaging.Binding
		handler messaging.DeliveryHandler
	}{
		{
			messaging.DurableBinding(messaging.QueueBookAuthorPendingCreated, messaging.RouteAuthorPendingCreated),
			messaging.Handle(logger, "book.on-author-pending-created", c.OnAuthorPendingCreated),
		},
		{
			messaging.DurableBinding(messaging.QueueBookGenrePendingCreated, messaging.RouteGenrePendingCreated),
			messaging.Handle(logger, "book.on-genre-pending-created", c.OnGenrePendingCreated),
		},
		{
			messaging.DurableBinding(messaging.QueueBookAuthorCreated, messaging.RouteAuthorCreated),
			messaging.Handle(logger, "book.on-author-created", c.OnAuthorCreated),
		},
		{
			messaging.DurableBinding(messaging.QueueBookGenreCreated, messaging.RouteGenreCreated),
			messaging.Handle(logger, "book.on-genre-created", c.OnGenreCreated),
		},
		{
			messaging.DurableBinding(messaging.QueueBookAuthorCreationFailed, messaging.RouteAuthorCreationFailed),
			messaging.Handle(logger, "book.on-author-creation-failed", c.OnAuthorCreationFailed),
		},
		{
			messaging.DurableBinding(messaging.QueueBookGenreCreationFailed, messaging.RouteGenreCreationFailed),
			messaging.Handle(logger, "book.on-genre-creation-failed", c.OnGenreCreationFailed),
		},
	}

	for _, b := range bindings {
		if err := router.Register(b.binding, b.handler); err != nil {
			return err
		}
	}

	return nil
}
