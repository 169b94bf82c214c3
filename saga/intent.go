package saga

import (
	"errors"
	"fmt"
	"strings"

	"github.com/AntonStoeckl/library-catalog-go/catalog"
)

// Intent is a request to create a Book together with its Author and Genre.
type Intent struct {
	NaturalKey  catalog.NaturalKeyString
	Title       string
	Description string
	AuthorName  string
	GenreName   string
}

// Validate checks that the intent names a book, an author and a genre.
func (i Intent) Validate() error {
	var missing []string

	if strings.TrimSpace(i.NaturalKey) == "" {
		missing = append(missing, "natural key")
	}

	if strings.TrimSpace(i.AuthorName) == "" {
		missing = append(missing, "author name")
	}

	if strings.TrimSpace(i.GenreName) == "" {
		missing = append(missing, "genre name")
	}

	if len(missing) > 0 {
		return errors.Join(catalog.ErrInvalidIntent, fmt.Errorf("missing %s", strings.Join(missing, ", ")))
	}

	return nil
}

// Outcome is the result of Create.
type Outcome struct {
	Status         catalog.Status
	Book           *catalog.Book
	AlreadyExisted bool
	AlreadyPending bool
}
