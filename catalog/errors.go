package catalog

import "errors"

var (
	// ErrNotFound is returned when a referenced book, author, genre or saga record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when an insert violates the uniqueness of a natural key.
	ErrDuplicateKey = errors.New("duplicate natural key")

	// ErrVersionConflict is returned when an update was based on a stale version.
	ErrVersionConflict = errors.New("version conflict, no rows were affected")

	// ErrAlreadyFinalized is returned when a placeholder is finalized a second time.
	ErrAlreadyFinalized = errors.New("placeholder is already finalized")

	// ErrInvalidIntent is returned when a creation intent lacks a natural key, author name or genre name.
	ErrInvalidIntent = errors.New("invalid creation intent")

	// ErrNilUnitOfWork is returned by constructors that received no UnitOfWork.
	ErrNilUnitOfWork = errors.New("unit of work must not be nil")
)

// IsConflict reports whether err belongs to the Conflict class: a stale version or a duplicate natural key.
func IsConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict) || errors.Is(err, ErrDuplicateKey)
}
