package catalog

// NaturalKeyString is the caller-meaningful unique identifier of a book, e.g. an ISBN.
type NaturalKeyString = string

// AuthorIDInt64 is the surrogate id of an author.
type AuthorIDInt64 = int64

// GenreIDInt64 is the surrogate id of a genre.
type GenreIDInt64 = int64

// Book is the catalog aggregate. There is at most one Book per NaturalKey.
type Book struct {
	NaturalKey  NaturalKeyString
	Title       string
	Description string
	GenreRef    GenreIDInt64
	AuthorRefs  []AuthorIDInt64
	Version     uint
}

// NewBook builds an unsaved Book that references one genre and one or more authors.
func NewBook(
	naturalKey NaturalKeyString,
	title string,
	description string,
	genreRef GenreIDInt64,
	authorRefs ...AuthorIDInt64,
) Book {

	refs := make([]AuthorIDInt64, len(authorRefs))
	copy(refs, authorRefs)

	return Book{
		NaturalKey:  naturalKey,
		Title:       title,
		Description: description,
		GenreRef:    genreRef,
		AuthorRefs:  refs,
	}
}

// IsPersisted returns true once the book has been saved at least once.
func (b Book) IsPersisted() bool {
	return b.Version > 0
}

// HasAuthor returns true if the book references the given author.
func (b Book) HasAuthor(authorID AuthorIDInt64) bool {
	for _, ref := range b.AuthorRefs {
		if ref == authorID {
			return true
		}
	}

	return false
}
