package messaging

import (
	"context"
	"errors"
)

const (
	logMsgMalformedDropped = "dropping malformed message"
	logMsgHandlerFailed    = "message handler failed, message is acknowledged"
	logAttrHandler         = "handler"
	logAttrExchange        = "exchange"
	logAttrRoutingKey      = "routing_key"
	logAttrQueue           = "queue"
	logAttrError           = "error"
)

// ContextualLogger interface for context-aware logging with automatic trace correlation.
type ContextualLogger interface {
	DebugContext(ctx context.Context, msg string, args ...any)
	InfoContext(ctx context.Context, msg string, args ...any)
	WarnContext(ctx context.Context, msg string, args ...any)
	ErrorContext(ctx context.Context, msg string, args ...any)
}

// Handle adapts a typed message handler to a DeliveryHandler and forms the error boundary of a consumer.
//
// A payload that does not decode into T is logged at warn level and dropped.
// An error returned by fn is logged at error level.
// In both cases the returned DeliveryHandler reports success, so the delivery is acknowledged
// and never redelivered by the broker. logger may be nil.
func Handle[T any](logger ContextualLogger, name string, fn func(ctx context.Context, msg T) error) DeliveryHandler {
	return func(ctx context.Context, delivery Delivery) error {
		attrs := []any{
			logAttrHandler, name,
			logAttrQueue, delivery.Queue,
			logAttrExchange, delivery.Exchange,
			logAttrRoutingKey, delivery.RoutingKey,
		}

		msg, err := Unmarshal[T](delivery.Payload)
		if err != nil {
			if logger != nil {
				logger.WarnContext(ctx, logMsgMalformedDropped, append(attrs, logAttrError, err.Error())...)
			}

			return nil
		}

		if err = fn(ctx, msg); err != nil && logger != nil {
			logger.ErrorContext(ctx, logMsgHandlerFailed, append(attrs, logAttrError, err.Error())...)
		}

		return nil
	}
}

// IsMalformed reports whether err belongs to the Malformed class.
func IsMalformed(err error) bool {
	return errors.Is(err, ErrMalformedMessage)
}
