// Package rabbitmq implements the messaging Broker Port on RabbitMQ (AMQP 0-9-1).
//
// Every exchange is a durable topic exchange. Durable bindings declare a named durable queue,
// ephemeral bindings a server-named exclusive queue that is deleted with its consumer.
// Publishing waits for the broker's publisher confirm, so a nil error from Publish means the
// broker took responsibility for the message.
//
// Lost connections are re-established with exponential backoff and jitter. Consumers
// re-declare their queue and resume after a reconnect.
package rabbitmq
