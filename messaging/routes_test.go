package messaging_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-catalog-go/messaging"
)

func Test_RouteFor_ResolvesEveryRecordedEventType(t *testing.T) {
	testCases := []struct {
		aggregateType string
		eventType     string
		expected      messaging.Route
	}{
		{messaging.AggregateBook, messaging.EventTypeBookRequested, messaging.Route{Exchange: "library.books", RoutingKey: "book.requested"}},
		{messaging.AggregateBook, messaging.EventTypeBookFinalized, messaging.Route{Exchange: "library.books", RoutingKey: "book.finalized"}},
		{messaging.AggregateBook, messaging.EventTypeBookCreated, messaging.Route{Exchange: "library.books", RoutingKey: "book.created"}},
		{messaging.AggregateAuthor, messaging.EventTypeAuthorPendingCreated, messaging.Route{Exchange: "library.authors", RoutingKey: "author.pending-created"}},
		{messaging.AggregateAuthor, messaging.EventTypeAuthorCreated, messaging.Route{Exchange: "library.authors", RoutingKey: "author.created"}},
		{messaging.AggregateGenre, messaging.EventTypeGenrePendingCreated, messaging.Route{Exchange: "library.genres", RoutingKey: "genre.pending-created"}},
		{messaging.AggregateGenre, messaging.EventTypeGenreCreated, messaging.Route{Exchange: "library.genres", RoutingKey: "genre.created"}},
		{messaging.AggregateValidation, messaging.EventTypeValidationRequest, messaging.Route{Exchange: "library.books", RoutingKey: "book.validate"}},
		{messaging.AggregateValidation, messaging.EventTypeValidationResponse, messaging.Route{Exchange: "library.lendings", RoutingKey: "book.validated"}},
	}

	for _, tc := range testCases {
		t.Run(tc.eventType, func(t *testing.T) {
			// act
			route, err := messaging.RouteFor(tc.aggregateType, tc.eventType)

			// assert
			require.NoError(t, err)
			assert.Equal(t, tc.expected, route)
		})
	}
}

func Test_RouteFor_FailsForUnknownOrMismatchedDestinations(t *testing.T) {
	// act
	_, unknownErr := messaging.RouteFor(messaging.AggregateBook, "BookShelved")
	_, mismatchErr := messaging.RouteFor(messaging.AggregateGenre, messaging.EventTypeAuthorCreated)

	// assert
	assert.ErrorIs(t, unknownErr, messaging.ErrUnknownRoute)
	assert.ErrorIs(t, mismatchErr, messaging.ErrUnknownRoute)
}
