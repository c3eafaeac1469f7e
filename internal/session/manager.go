// Package session binds session identifiers to the history store and
// serializes concurrent turns on the same identifier.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/liurenke/renkebot/internal/history"
)

// Handle is a thin reference to the shared history store scoped to one
// session identifier. Creating a handle performs no store I/O.
type Handle struct {
	ID    string
	store history.Store
}

// Messages fetches the session's stored history.
func (h *Handle) Messages(ctx context.Context) ([]history.Message, error) {
	return h.store.Messages(ctx, h.ID)
}

// Append extends the session's stored history.
func (h *Handle) Append(ctx context.Context, msgs ...history.Message) error {
	return h.store.Append(ctx, h.ID, msgs...)
}

// Manager owns the store handle shared by all sessions. It never mints
// identifiers; it binds a handle to whatever identifier it is given.
//
// Turns on the same session are serialized through a per-identifier
// lock so a double-submitted request cannot interleave its fetch/append
// pair with another turn's. Unrelated sessions do not block each other.
// Idle locks are reaped by the janitor so the lock map stays bounded.
type Manager struct {
	store history.Store

	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	mu       sync.Mutex
	lastUsed time.Time
	inUse    int
}

func NewManager(store history.Store) *Manager {
	return &Manager{
		store: store,
		locks: make(map[string]*sessionLock),
	}
}

// GetOrCreate returns the handle for sessionID. Idempotent: repeated
// calls with the same identifier observe the same backing state.
func (m *Manager) GetOrCreate(sessionID string) *Handle {
	return &Handle{ID: sessionID, store: m.store}
}

// LockSession acquires the turn lock for sessionID and returns the
// release function.
func (m *Manager) LockSession(sessionID string) func() {
	m.mu.Lock()
	l, ok := m.locks[sessionID]
	if !ok {
		l = &sessionLock{}
		m.locks[sessionID] = l
	}
	l.inUse++
	m.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		m.mu.Lock()
		l.inUse--
		l.lastUsed = time.Now()
		m.mu.Unlock()
	}
}

// ActiveLocks reports how many sessions currently have a turn holding
// or waiting on their lock.
func (m *Manager) ActiveLocks() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	active := 0
	for _, l := range m.locks {
		if l.inUse > 0 {
			active++
		}
	}
	return active
}

// StartJanitor periodically discards locks that have been idle for
// longer than maxIdle.
func (m *Manager) StartJanitor(ctx context.Context, interval, maxIdle time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.reapIdleLocks(maxIdle)
			}
		}
	}()
}

func (m *Manager) reapIdleLocks(maxIdle time.Duration) {
	cutoff := time.Now().Add(-maxIdle)
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, l := range m.locks {
		if l.inUse == 0 && l.lastUsed.Before(cutoff) {
			delete(m.locks, id)
		}
	}
}
