package reconcile

import (
	"github.com/AntonStoeckl/library-catalog-go/messaging"
)

// Register binds the projector's handlers to the lending service's durable queues.
func (p *BookCatalogProjector) Register(router *messaging.Router, logger messaging.ContextualLogger) error {
	if err := router.Register(
		messaging.DurableBinding(messaging.QueueLendingBookFinalized, messaging.RouteBookFinalized),
		messaging.Handle(logger, "lending.on-book-finalized", p.OnBookFinalized),
	); err != nil {
		return err
	}

	return router.Register(
		messaging.DurableBinding(messaging.QueueLendingGenreCreated, messaging.RouteGenreCreated),
		messaging.Handle(logger, "lending.on-genre-created", p.OnGenreCreated),
	)
}
