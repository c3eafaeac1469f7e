package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/liurenke/renkebot/internal/history"
)

func TestGetOrCreateIdempotent(t *testing.T) {
	store := history.NewInMemoryStore(time.Minute)
	m := NewManager(store)
	ctx := context.Background()

	h1 := m.GetOrCreate("s1")
	h2 := m.GetOrCreate("s1")
	if h1.ID != h2.ID {
		t.Fatalf("handle IDs differ: %q vs %q", h1.ID, h2.ID)
	}

	// Both handles observe the same (empty) history before any write.
	for _, h := range []*Handle{h1, h2} {
		msgs, err := h.Messages(ctx)
		if err != nil {
			t.Fatalf("Messages() error = %v", err)
		}
		if len(msgs) != 0 {
			t.Fatalf("len(msgs) = %d, want 0", len(msgs))
		}
	}

	// A write through one handle is visible through the other.
	if err := h1.Append(ctx, history.UserMessage("hello")); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	msgs, err := h2.Messages(ctx)
	if err != nil {
		t.Fatalf("Messages() error = %v", err)
	}
	if len(msgs) != 1 || msgs[0].Content != "hello" {
		t.Fatalf("unexpected history through second handle: %+v", msgs)
	}
}

func TestLockSessionSerializesSameSession(t *testing.T) {
	m := NewManager(history.NewInMemoryStore(time.Minute))

	const turns = 20
	var inTurn, maxInTurn int
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < turns; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := m.LockSession("s1")
			defer release()

			mu.Lock()
			inTurn++
			if inTurn > maxInTurn {
				maxInTurn = inTurn
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inTurn--
			mu.Unlock()
		}()
	}
	wg.Wait()

	if maxInTurn != 1 {
		t.Fatalf("max concurrent turns on one session = %d, want 1", maxInTurn)
	}
}

func TestLockSessionDoesNotBlockOtherSessions(t *testing.T) {
	m := NewManager(history.NewInMemoryStore(time.Minute))

	releaseA := m.LockSession("a")
	defer releaseA()

	done := make(chan struct{})
	go func() {
		release := m.LockSession("b")
		release()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("lock on session b blocked behind session a")
	}
}

func TestJanitorReapsIdleLocks(t *testing.T) {
	m := NewManager(history.NewInMemoryStore(time.Minute))

	release := m.LockSession("s1")
	release()
	if len(m.locks) != 1 {
		t.Fatalf("len(locks) = %d, want 1", len(m.locks))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.StartJanitor(ctx, 10*time.Millisecond, 20*time.Millisecond)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		m.mu.Lock()
		n := len(m.locks)
		m.mu.Unlock()
		if n == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("idle lock was not reaped")
}
