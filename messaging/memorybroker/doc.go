// Package memorybroker is an in-process implementation of the messaging Broker Port.
//
// It models topic exchanges, durable named queues that keep their backlog while no consumer
// is attached, and ephemeral per-subscription queues that vanish with their consumer.
// By default every subscription runs one consumer goroutine, so a queue's messages are handled
// one after another; WithConsumerConcurrency runs several consumers per queue. With WithManualDelivery
// nothing is delivered until Drain is called, which makes multi-service flows deterministic in tests.
package memorybroker
