// Package validation implements an asynchronous existence check of books over the broker.
//
// A Requester publishes a ValidationRequest and registers the request in a PendingStore.
// The book service's Responder answers through its outbox. Responses are correlated by
// request id only. Requests that stay unanswered past their deadline are completed with
// ErrValidationTimedOut, so every request yields exactly one Result.
package validation
