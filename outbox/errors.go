package outbox

import "errors"

var (
	// ErrPublishFailed is recorded when the Broker Port rejected a Record.
	ErrPublishFailed = errors.New("publishing outbox record failed")

	// ErrUnknownDestination is recorded when no destination can be resolved for a Record.
	ErrUnknownDestination = errors.New("no destination for outbox record")

	// ErrNilStore is returned when a Dispatcher is created without a Store.
	ErrNilStore = errors.New("outbox store must not be nil")

	// ErrNilPublisher is returned when a Dispatcher is created without a Publisher.
	ErrNilPublisher = errors.New("publisher must not be nil")

	// ErrInvalidOption is returned when a Dispatcher option has an invalid value.
	ErrInvalidOption = errors.New("invalid dispatcher option")
)
