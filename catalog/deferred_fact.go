package catalog

import "time"

// DeferredFact is a buffered finalize-class fact whose genre is not yet known locally.
// There is at most one DeferredFact per NaturalKey; it is deleted once replayed.
type DeferredFact struct {
	NaturalKey  NaturalKeyString
	GenreName   string
	AuthorID    AuthorIDInt64
	AuthorName  string
	Title       string
	Description string
	CreatedAt   time.Time
}
