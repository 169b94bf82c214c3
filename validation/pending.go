package validation

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrValidationTimedOut marks a Result whose response did not arrive before the deadline.
	ErrValidationTimedOut = errors.New("validation response did not arrive in time")

	// ErrRequestNotSent is returned by Request when the ValidationRequest could not be published.
	ErrRequestNotSent = errors.New("validation request could not be published")

	// ErrInvalidRequest is returned by Request for an empty natural key.
	ErrInvalidRequest = errors.New("validation request needs a natural key")

	// ErrNilPendingStore is returned by NewRequester without a PendingStore.
	ErrNilPendingStore = errors.New("pending store must not be nil")

	// ErrNilResultHandler is returned by NewRequester without a ResultHandler.
	ErrNilResultHandler = errors.New("result handler must not be nil")

	// ErrNilPublisher is returned by NewRequester without a Publisher.
	ErrNilPublisher = errors.New("publisher must not be nil")
)

// Pending is an outstanding validation request.
type Pending struct {
	RequestID      string
	NaturalKey     string
	CorrelationKey string
	Deadline       time.Time
}

// PendingStore holds outstanding requests. Take and TakeOverdue remove what they return,
// and an entry is returned by at most one call across all callers.
type PendingStore interface {
	Put(ctx context.Context, pending Pending) error
	Take(ctx context.Context, requestID string) (Pending, bool, error)
	TakeOverdue(ctx context.Context, now time.Time, limit int) ([]Pending, error)
}

// Result is the outcome of one validation request.
type Result struct {
	RequestID      string
	NaturalKey     string
	CorrelationKey string
	Exists         bool
	Message        string
	TimedOut       bool
	Err            error
}

// ResultHandler receives exactly one Result per request.
type ResultHandler func(ctx context.Context, result Result)
