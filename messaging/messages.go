package messaging

// BookRequested announces a new creation intent to both participants.
type BookRequested struct {
	NaturalKey  string `json:"naturalKey"`
	AuthorName  string `json:"authorName"`
	GenreName   string `json:"genreName"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

// AuthorPendingCreated reports the (possibly placeholder) author resolved for a requested book.
type AuthorPendingCreated struct {
	AuthorID   int64  `json:"authorId"`
	NaturalKey string `json:"naturalKey"`
	AuthorName string `json:"authorName"`
	GenreName  string `json:"genreName"`
}

// AuthorCreationFailed is the compensation notice of the author participant.
type AuthorCreationFailed struct {
	NaturalKey   string `json:"naturalKey"`
	AuthorName   string `json:"authorName"`
	GenreName    string `json:"genreName"`
	ErrorMessage string `json:"errorMessage"`
}

// GenrePendingCreated reports the (possibly placeholder) genre resolved for a requested book.
type GenrePendingCreated struct {
	GenreName  string `json:"genreName"`
	NaturalKey string `json:"naturalKey"`
}

// GenreCreationFailed is the compensation notice of the genre participant.
type GenreCreationFailed struct {
	NaturalKey   string `json:"naturalKey"`
	GenreName    string `json:"genreName"`
	ErrorMessage string `json:"errorMessage"`
}

// BookFinalized tells the participants that the book exists and their placeholders can be finalized.
type BookFinalized struct {
	AuthorID    int64  `json:"authorId"`
	AuthorName  string `json:"authorName"`
	NaturalKey  string `json:"naturalKey"`
	GenreName   string `json:"genreName"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

// AuthorCreated announces a finalized author.
type AuthorCreated struct {
	AuthorID   int64  `json:"authorId"`
	Name       string `json:"name"`
	Bio        string `json:"bio"`
	PhotoURI   string `json:"photoURI"`
	Version    uint   `json:"version"`
	NaturalKey string `json:"naturalKey"`
}

// AuthorUpdated announces changed author data.
type AuthorUpdated struct {
	AuthorID int64  `json:"authorId"`
	Name     string `json:"name"`
	Bio      string `json:"bio"`
	PhotoURI string `json:"photoURI"`
	Version  uint   `json:"version"`
}

// AuthorDeleted announces a removed author.
type AuthorDeleted struct {
	AuthorID int64 `json:"authorId"`
	Version  uint  `json:"version"`
}

// GenreCreated announces a finalized genre.
type GenreCreated struct {
	Genre      string `json:"genre"`
	Version    uint   `json:"version"`
	NaturalKey string `json:"naturalKey"`
}

// GenreUpdated announces changed genre data.
type GenreUpdated struct {
	Genre   string `json:"genre"`
	Version uint   `json:"version"`
}

// GenreDeleted announces a removed genre.
type GenreDeleted struct {
	Genre   string `json:"genre"`
	Version uint   `json:"version"`
}

// BookCreated feeds the book read models once the saga has created the aggregate.
type BookCreated struct {
	NaturalKey  string  `json:"naturalKey"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Genre       string  `json:"genre"`
	AuthorIDs   []int64 `json:"authorIds"`
	Version     uint    `json:"version"`
}

// BookUpdated announces changed book data.
type BookUpdated struct {
	NaturalKey  string  `json:"naturalKey"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Genre       string  `json:"genre"`
	AuthorIDs   []int64 `json:"authorIds"`
	Version     uint    `json:"version"`
}

// BookDeleted announces a removed book.
type BookDeleted struct {
	NaturalKey string `json:"naturalKey"`
	Version    uint   `json:"version"`
}

// ValidationRequest asks the book service whether a book exists.
// CorrelationKey is opaque to the responder and echoed back unchanged.
type ValidationRequest struct {
	RequestID      string `json:"requestId"`
	NaturalKey     string `json:"naturalKey"`
	CorrelationKey string `json:"correlationKey"`
}

// ValidationResponse answers a ValidationRequest with the same RequestID.
type ValidationResponse struct {
	RequestID      string `json:"requestId"`
	CorrelationKey string `json:"correlationKey"`
	Exists         bool   `json:"exists"`
	NaturalKey     string `json:"naturalKey"`
	Message        string `json:"message"`
}
