// Package messaging defines the wire contract between the library catalog services
// and the Broker Port they communicate through.
//
// All messages are UTF-8 JSON bodies published to a named topic exchange under a fixed
// routing key. Which handler consumes which {exchange, routing key} is declared in an
// explicit Router table built at startup, so dispatch can be tested without a live broker:
//
//	router := messaging.NewRouter()
//	router.Register(
//		messaging.DurableBinding(messaging.QueueAuthorBookRequested, messaging.RouteBookRequested),
//		messaging.Handle(logger, "author.on-book-requested", participant.OnBookRequested),
//	)
//
//	err := router.SubscribeAll(ctx, broker)
//
// Handlers wrapped with Handle never return an error: malformed payloads and failing
// business logic are logged and the delivery counts as handled. Reliability of outgoing
// events is the job of the outbox, not of broker redelivery.
package messaging
