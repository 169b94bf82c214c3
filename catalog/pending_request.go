package catalog

import "time"

// Status is the progress of a book-creation saga instance.
type Status string

const (
	StatusRequested     Status = "REQUESTED"
	StatusAuthorPending Status = "AUTHOR_PENDING"
	StatusGenrePending  Status = "GENRE_PENDING"
	StatusCreated       Status = "CREATED"
)

// rank orders the statuses; AUTHOR_PENDING and GENRE_PENDING share a rank.
func (s Status) rank() int {
	switch s {
	case StatusRequested:
		return 0
	case StatusAuthorPending, StatusGenrePending:
		return 1
	case StatusCreated:
		return 2
	default:
		return -1
	}
}

// IsValid returns true for the four known statuses.
func (s Status) IsValid() bool {
	return s.rank() >= 0
}

// PendingRequest is the saga's record of a creation intent.
// It is created when the intent is received and kept as an audit record after completion.
type PendingRequest struct {
	NaturalKey      NaturalKeyString
	Title           string
	Description     string
	AuthorName      string
	GenreName       string
	Status          Status
	AuthorID        AuthorIDInt64
	AuthorResponded bool
	GenreResponded  bool
	AuthorFinalized bool
	GenreFinalized  bool
	FailureReason   string
	CreatedAt       time.Time
	Version         uint
}

// NewPendingRequest builds an unsaved PendingRequest in status REQUESTED.
func NewPendingRequest(
	naturalKey NaturalKeyString,
	title string,
	description string,
	authorName string,
	genreName string,
	createdAt time.Time,
) PendingRequest {

	return PendingRequest{
		NaturalKey:  naturalKey,
		Title:       title,
		Description: description,
		AuthorName:  authorName,
		GenreName:   genreName,
		Status:      StatusRequested,
		CreatedAt:   createdAt.UTC().Truncate(time.Microsecond),
	}
}

// Advance moves the status forward. A target of lower or equal rank leaves the status unchanged,
// so the status never regresses. It returns true if the status changed.
func (p *PendingRequest) Advance(to Status) bool {
	if to.rank() <= p.Status.rank() {
		return false
	}

	p.Status = to

	return true
}

// RecordAuthorResponse stores the author id reported by the author participant.
func (p *PendingRequest) RecordAuthorResponse(authorID AuthorIDInt64) {
	p.AuthorID = authorID
	p.AuthorResponded = true
	p.Advance(StatusAuthorPending)
}

// RecordGenreResponse notes that the genre participant has reported its placeholder.
func (p *PendingRequest) RecordGenreResponse() {
	p.GenreResponded = true
	p.Advance(StatusGenrePending)
}

// HasAuthorID returns true if an author id is known for this request.
func (p *PendingRequest) HasAuthorID() bool {
	return p.AuthorID != 0
}

// RecordAuthorFinalized notes the author's Created confirmation and completes the saga if the genre's is in too.
func (p *PendingRequest) RecordAuthorFinalized() bool {
	p.AuthorFinalized = true

	return p.completeIfFinalized()
}

// RecordGenreFinalized notes the genre's Created confirmation and completes the saga if the author's is in too.
func (p *PendingRequest) RecordGenreFinalized() bool {
	p.GenreFinalized = true

	return p.completeIfFinalized()
}

// RecordFailure keeps the error message of a participant's compensation event.
func (p *PendingRequest) RecordFailure(reason string) {
	p.FailureReason = reason
}

func (p *PendingRequest) completeIfFinalized() bool {
	if p.AuthorFinalized && p.GenreFinalized {
		return p.Advance(StatusCreated)
	}

	return false
}
