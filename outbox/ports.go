package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-catalog-go/messaging"
)

// Writer records outbox Records inside a local write.
type Writer interface {
	Append(ctx context.Context, record Record) error
}

// Selection narrows the unprocessed Records a dispatch cycle works on.
// Only Records with MinRetryCount <= RetryCount < BelowRetryCount are selected,
// oldest first, at most Limit of them.
type Selection struct {
	MinRetryCount   int
	BelowRetryCount int
	Limit           int
}

// Store is the dispatcher's view of the outbox ledger.
type Store interface {
	SelectUnprocessed(ctx context.Context, selection Selection) ([]Record, error)
	MarkProcessed(ctx context.Context, id uuid.UUID, processedAt time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, lastError string) error
	CountExhausted(ctx context.Context, maxRetries int) (int, error)
}

// Resolver maps a Record's aggregate type and event type to its destination.
type Resolver func(aggregateType string, eventType string) (messaging.Route, error)

// CycleLocker serializes dispatch cycles across processes sharing one outbox.
// TryLock returns acquired=false without error if another process holds the lock.
type CycleLocker interface {
	TryLock(ctx context.Context) (release func(), acquired bool, err error)
}
