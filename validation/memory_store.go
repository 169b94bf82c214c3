package validation

import (
	"context"
	"slices"
	"sync"
	"time"
)

// MemoryPendingStore is a process-local PendingStore.
type MemoryPendingStore struct {
	mu      sync.Mutex
	pending map[string]Pending
}

// NewMemoryPendingStore creates an empty MemoryPendingStore.
func NewMemoryPendingStore() *MemoryPendingStore {
	return &MemoryPendingStore{pending: make(map[string]Pending)}
}

// Put implements PendingStore.
func (s *MemoryPendingStore) Put(_ context.Context, pending Pending) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending[pending.RequestID] = pending

	return nil
}

// Take implements PendingStore.
func (s *MemoryPendingStore) Take(_ context.Context, requestID string) (Pending, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending, ok := s.pending[requestID]
	delete(s.pending, requestID)

	return pending, ok, nil
}

// TakeOverdue implements PendingStore.
func (s *MemoryPendingStore) TakeOverdue(_ context.Context, now time.Time, limit int) ([]Pending, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var overdue []Pending

	for _, pending := range s.pending {
		if !pending.Deadline.After(now) {
			overdue = append(overdue, pending)
		}
	}

	slices.SortFunc(overdue, func(a, b Pending) int {
		return a.Deadline.Compare(b.Deadline)
	})

	if limit > 0 && len(overdue) > limit {
		overdue = overdue[:limit]
	}

	for _, pending := range overdue {
		delete(s.pending, pending.RequestID)
	}

	return overdue, nil
}

// Len returns the number of outstanding requests.
func (s *MemoryPendingStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.pending)
}
