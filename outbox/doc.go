// Package outbox implements the transactional outbox: integration events are recorded as
// Records inside the same local write as the business change that caused them, and a
// Dispatcher publishes unprocessed Records to the Broker Port afterwards.
//
// Delivery is at-least-once. A Record that fails to publish keeps its position, counts the
// failure and is retried until it reaches the retry ceiling; exhausted Records stay unprocessed
// for manual inspection. Records are never deleted.
//
//	dispatcher, err := outbox.NewDispatcher(store, broker,
//		outbox.WithMaxRetries(5),
//		outbox.WithInterval(5*time.Second),
//		outbox.WithRetryInterval(time.Minute),
//	)
//
//	go dispatcher.Run(ctx)
package outbox
