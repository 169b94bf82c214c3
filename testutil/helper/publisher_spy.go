package helper

import (
	"context"
	"errors"
	"sync"
)

// ErrPublisherSpyFailure is returned by a PublisherSpy that is configured to fail.
var ErrPublisherSpyFailure = errors.New("publisher spy: broker unavailable")

// PublishedMessage is one captured Publish call.
type PublishedMessage struct {
	Exchange   string
	RoutingKey string
	Payload    []byte
}

// PublisherSpy captures Publish calls and can be switched to fail.
type PublisherSpy struct {
	published []PublishedMessage
	calls     int
	failing   bool
	mu        sync.Mutex
}

// NewPublisherSpy creates a PublisherSpy that succeeds.
func NewPublisherSpy() *PublisherSpy {
	return &PublisherSpy{}
}

// NewFailingPublisherSpy creates a PublisherSpy that fails every call.
func NewFailingPublisherSpy() *PublisherSpy {
	return &PublisherSpy{failing: true}
}

// Publish implements messaging.Publisher.
func (s *PublisherSpy) Publish(_ context.Context, exchange string, routingKey string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++

	if s.failing {
		return ErrPublisherSpyFailure
	}

	s.published = append(s.published, PublishedMessage{
		Exchange:   exchange,
		RoutingKey: routingKey,
		Payload:    append([]byte(nil), payload...),
	})

	return nil
}

// SetFailing switches the failure mode.
func (s *PublisherSpy) SetFailing(failing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failing = failing
}

// Calls returns the number of Publish calls, failed ones included.
func (s *PublisherSpy) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.calls
}

// Published returns a copy of the successfully published messages.
func (s *PublisherSpy) Published() []PublishedMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]PublishedMessage(nil), s.published...)
}

// PublishedTo returns the successfully published messages with the given routing key.
func (s *PublisherSpy) PublishedTo(routingKey string) []PublishedMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matching []PublishedMessage
	for _, msg := range s.published {
		if msg.RoutingKey == routingKey {
			matching = append(matching, msg)
		}
	}

	return matching
}
