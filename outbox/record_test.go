package outbox_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-catalog-go/messaging"
	"github.com/AntonStoeckl/library-catalog-go/outbox"
)

func Test_NewRecordAt_EncodesPayloadAndAssignsIdentity(t *testing.T) {
	// setup
	createdAt := time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.FixedZone("CET", 3600))

	// act
	first, err := outbox.NewRecordAt(messaging.AggregateGenre, "Poetry", messaging.EventTypeGenreCreated,
		messaging.GenreCreated{Genre: "Poetry", Version: 2, NaturalKey: "k-1"}, createdAt)
	require.NoError(t, err)
	second, err := outbox.NewRecordAt(messaging.AggregateGenre, "Poetry", messaging.EventTypeGenreCreated,
		messaging.GenreCreated{Genre: "Poetry", Version: 2, NaturalKey: "k-1"}, createdAt)
	require.NoError(t, err)

	// assert
	assert.NotEqual(t, first.ID, second.ID)
	assert.JSONEq(t, `{"genre":"Poetry","version":2,"naturalKey":"k-1"}`, string(first.Payload))
	assert.Equal(t, time.UTC, first.CreatedAt.Location())
	assert.Equal(t, 123456000, first.CreatedAt.Nanosecond())
	assert.False(t, first.Processed)
	assert.Zero(t, first.RetryCount)
}

func Test_Record_IsExhausted(t *testing.T) {
	assert.False(t, outbox.Record{RetryCount: 4}.IsExhausted(5))
	assert.True(t, outbox.Record{RetryCount: 5}.IsExhausted(5))
	assert.False(t, outbox.Record{RetryCount: 5, Processed: true}.IsExhausted(5))
}
