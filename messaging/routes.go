package messaging

import (
	"errors"
	"fmt"
)

// Exchanges are topic exchanges, one per owning service.
const (
	ExchangeBooks    = "library.books"
	ExchangeAuthors  = "library.authors"
	ExchangeGenres   = "library.genres"
	ExchangeLendings = "library.lendings"
)

const (
	RoutingKeyBookRequested        = "book.requested"
	RoutingKeyBookFinalized        = "book.finalized"
	RoutingKeyBookCreated          = "book.created"
	RoutingKeyBookUpdated          = "book.updated"
	RoutingKeyBookDeleted          = "book.deleted"
	RoutingKeyAuthorPendingCreated = "author.pending-created"
	RoutingKeyAuthorCreationFailed = "author.creation-failed"
	RoutingKeyAuthorCreated        = "author.created"
	RoutingKeyAuthorUpdated        = "author.updated"
	RoutingKeyAuthorDeleted        = "author.deleted"
	RoutingKeyGenrePendingCreated  = "genre.pending-created"
	RoutingKeyGenreCreationFailed  = "genre.creation-failed"
	RoutingKeyGenreCreated         = "genre.created"
	RoutingKeyGenreUpdated         = "genre.updated"
	RoutingKeyGenreDeleted         = "genre.deleted"
	RoutingKeyBookValidate         = "book.validate"
	RoutingKeyBookValidated        = "book.validated"
)

// Aggregate types as recorded on outbox records.
const (
	AggregateBook       = "Book"
	AggregateAuthor     = "Author"
	AggregateGenre      = "Genre"
	AggregateValidation = "Validation"
)

// Event types as recorded on outbox records. Each one names a message type of this package.
const (
	EventTypeBookRequested        = "BookRequested"
	EventTypeBookFinalized        = "BookFinalized"
	EventTypeBookCreated          = "BookCreated"
	EventTypeBookUpdated          = "BookUpdated"
	EventTypeBookDeleted          = "BookDeleted"
	EventTypeAuthorPendingCreated = "AuthorPendingCreated"
	EventTypeAuthorCreationFailed = "AuthorCreationFailed"
	EventTypeAuthorCreated        = "AuthorCreated"
	EventTypeAuthorUpdated        = "AuthorUpdated"
	EventTypeAuthorDeleted        = "AuthorDeleted"
	EventTypeGenrePendingCreated  = "GenrePendingCreated"
	EventTypeGenreCreationFailed  = "GenreCreationFailed"
	EventTypeGenreCreated         = "GenreCreated"
	EventTypeGenreUpdated         = "GenreUpdated"
	EventTypeGenreDeleted         = "GenreDeleted"
	EventTypeValidationRequest    = "ValidationRequest"
	EventTypeValidationResponse   = "ValidationResponse"
)

// Durable queue names of the saga consumers. They must survive a broker restart.
const (
	QueueAuthorBookRequested        = "author-service.book-requested"
	QueueAuthorBookFinalized        = "author-service.book-finalized"
	QueueGenreBookRequested         = "genre-service.book-requested"
	QueueGenreBookFinalized         = "genre-service.book-finalized"
	QueueBookAuthorPendingCreated   = "book-service.author-pending-created"
	QueueBookGenrePendingCreated    = "book-service.genre-pending-created"
	QueueBookAuthorCreated          = "book-service.author-created"
	QueueBookGenreCreated           = "book-service.genre-created"
	QueueBookAuthorCreationFailed   = "book-service.author-creation-failed"
	QueueBookGenreCreationFailed    = "book-service.genre-creation-failed"
	QueueBookValidate               = "book-service.book-validate"
	QueueLendingBookFinalized       = "lending-service.book-finalized"
	QueueLendingGenreCreated        = "lending-service.genre-created"
	QueueLendingValidationResponses = "lending-service.book-validated"
)

// ErrUnknownRoute is returned when no destination is known for an aggregate type and event type.
var ErrUnknownRoute = errors.New("no route for aggregate type and event type")

// Route is the destination of a message: a routing key on a named exchange.
type Route struct {
	Exchange   string
	RoutingKey string
}

// String returns "exchange/routingKey".
func (r Route) String() string {
	return r.Exchange + "/" + r.RoutingKey
}

var (
	RouteBookRequested        = Route{Exchange: ExchangeBooks, RoutingKey: RoutingKeyBookRequested}
	RouteBookFinalized        = Route{Exchange: ExchangeBooks, RoutingKey: RoutingKeyBookFinalized}
	RouteBookCreated          = Route{Exchange: ExchangeBooks, RoutingKey: RoutingKeyBookCreated}
	RouteBookUpdated          = Route{Exchange: ExchangeBooks, RoutingKey: RoutingKeyBookUpdated}
	RouteBookDeleted          = Route{Exchange: ExchangeBooks, RoutingKey: RoutingKeyBookDeleted}
	RouteAuthorPendingCreated = Route{Exchange: ExchangeAuthors, RoutingKey: RoutingKeyAuthorPendingCreated}
	RouteAuthorCreationFailed = Route{Exchange: ExchangeAuthors, RoutingKey: RoutingKeyAuthorCreationFailed}
	RouteAuthorCreated        = Route{Exchange: ExchangeAuthors, RoutingKey: RoutingKeyAuthorCreated}
	RouteAuthorUpdated        = Route{Exchange: ExchangeAuthors, RoutingKey: RoutingKeyAuthorUpdated}
	RouteAuthorDeleted        = Route{Exchange: ExchangeAuthors, RoutingKey: RoutingKeyAuthorDeleted}
	RouteGenrePendingCreated  = Route{Exchange: ExchangeGenres, RoutingKey: RoutingKeyGenrePendingCreated}
	RouteGenreCreationFailed  = Route{Exchange: ExchangeGenres, RoutingKey: RoutingKeyGenreCreationFailed}
	RouteGenreCreated         = Route{Exchange: ExchangeGenres, RoutingKey: RoutingKeyGenreCreated}
	RouteGenreUpdated         = Route{Exchange: ExchangeGenres, RoutingKey: RoutingKeyGenreUpdated}
	RouteGenreDeleted         = Route{Exchange: ExchangeGenres, RoutingKey: RoutingKeyGenreDeleted}
	RouteValidationRequest    = Route{Exchange: ExchangeBooks, RoutingKey: RoutingKeyBookValidate}
	RouteValidationResponse   = Route{Exchange: ExchangeLendings, RoutingKey: RoutingKeyBookValidated}
)

type destination struct {
	aggregateType string
	route         Route
}

var destinations = map[string]destination{
	EventTypeBookRequested:        {AggregateBook, RouteBookRequested},
	EventTypeBookFinalized:        {AggregateBook, RouteBookFinalized},
	EventTypeBookCreated:          {AggregateBook, RouteBookCreated},
	EventTypeBookUpdated:          {AggregateBook, RouteBookUpdated},
	EventTypeBookDeleted:          {AggregateBook, RouteBookDeleted},
	EventTypeAuthorPendingCreated: {AggregateAuthor, RouteAuthorPendingCreated},
	EventTypeAuthorCreationFailed: {AggregateAuthor, RouteAuthorCreationFailed},
	EventTypeAuthorCreated:        {AggregateAuthor, RouteAuthorCreated},
	EventTypeAuthorUpdated:        {AggregateAuthor, RouteAuthorUpdated},
	EventTypeAuthorDeleted:        {AggregateAuthor, RouteAuthorDeleted},
	EventTypeGenrePendingCreated:  {AggregateGenre, RouteGenrePendingCreated},
	EventTypeGenreCreationFailed:  {AggregateGenre, RouteGenreCreationFailed},
	EventTypeGenreCreated:         {AggregateGenre, RouteGenreCreated},
	EventTypeGenreUpdated:         {AggregateGenre, RouteGenreUpdated},
	EventTypeGenreDeleted:         {AggregateGenre, RouteGenreDeleted},
	EventTypeValidationRequest:    {AggregateValidation, RouteValidationRequest},
	EventTypeValidationResponse:   {AggregateValidation, RouteValidationResponse},
}

// RouteFor resolves the destination of an outbox record from its aggregate type and event type.
// Both must match an entry of the routing table.
func RouteFor(aggregateType string, eventType string) (Route, error) {
	d, ok := destinations[eventType]
	if !ok || d.aggregateType != aggregateType {
		return Route{}, errors.Join(ErrUnknownRoute, fmt.Errorf("aggregate type %q, event type %q", aggregateType, eventType))
	}

	return d.route, nil
}
