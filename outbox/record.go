package outbox

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-catalog-go/messaging"
)

// Record is one durable, not-yet-or-already published integration event.
type Record struct {
	ID            uuid.UUID
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	Processed     bool
	ProcessedAt   time.Time
	RetryCount    int
	LastError     string
	CreatedAt     time.Time
}

// NewRecord encodes msg and builds an unprocessed Record for it.
func NewRecord(aggregateType string, aggregateID string, eventType string, msg any) (Record, error) {
	return NewRecordAt(aggregateType, aggregateID, eventType, msg, time.Now())
}

// NewRecordAt is like NewRecord with an explicit creation time.
func NewRecordAt(aggregateType string, aggregateID string, eventType string, msg any, createdAt time.Time) (Record, error) {
	payload, err := messaging.Marshal(msg)
	if err != nil {
		return Record{}, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return Record{}, fmt.Errorf("generating outbox record id: %w", err)
	}

	return Record{
		ID:            id,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       payload,
		CreatedAt:     createdAt.UTC().Truncate(time.Microsecond),
	}, nil
}

// IsExhausted returns true if the Record reached the retry ceiling without being published.
func (r Record) IsExhausted(maxRetries int) bool {
	return !r.Processed && r.RetryCount >= maxRetries
}
