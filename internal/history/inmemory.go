package history

import (
	"context"
	"sync"
	"time"
)

// InMemoryStore is a simple in-process history store for local/dev use
// and tests. Histories expire ttl after the last append, matching the
// sliding-expiry contract of the external backends.
type InMemoryStore struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]*inMemoryEntry

	now func() time.Time
}

type inMemoryEntry struct {
	messages []Message
	deadline time.Time
}

func NewInMemoryStore(ttl time.Duration) *InMemoryStore {
	return &InMemoryStore{
		ttl:     ttl,
		entries: make(map[string]*inMemoryEntry),
		now:     time.Now,
	}
}

func (s *InMemoryStore) Messages(_ context.Context, sessionID string) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[sessionID]
	if !ok || s.expired(e) {
		return nil, nil
	}
	out := make([]Message, len(e.messages))
	copy(out, e.messages)
	return out, nil
}

func (s *InMemoryStore) Append(_ context.Context, sessionID string, msgs ...Message) error {
	if len(msgs) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[sessionID]
	if !ok || s.expired(e) {
		e = &inMemoryEntry{}
		s.entries[sessionID] = e
	}
	e.messages = append(e.messages, msgs...)
	e.deadline = s.now().Add(s.ttl)
	return nil
}

func (s *InMemoryStore) expired(e *inMemoryEntry) bool {
	return s.ttl > 0 && s.now().After(e.deadline)
}

func (s *InMemoryStore) Ping(context.Context) error { return nil }

func (s *InMemoryStore) Close() error { return nil }
