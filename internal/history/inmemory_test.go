package history

import (
	"context"
	"testing"
	"time"
)

func TestInMemoryUnknownSessionIsEmpty(t *testing.T) {
	s := NewInMemoryStore(time.Minute)
	msgs, err := s.Messages(context.Background(), "never-seen")
	if err != nil {
		t.Fatalf("Messages() error = %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("Messages() = %d messages, want 0", len(msgs))
	}
}

func TestInMemoryAppendKeepsOrder(t *testing.T) {
	s := NewInMemoryStore(time.Minute)
	ctx := context.Background()

	if err := s.Append(ctx, "s1", UserMessage("hello"), AssistantMessage("hi there")); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := s.Append(ctx, "s1", UserMessage("how are you"), AssistantMessage("fine")); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	msgs, err := s.Messages(ctx, "s1")
	if err != nil {
		t.Fatalf("Messages() error = %v", err)
	}
	if len(msgs) != 4 {
		t.Fatalf("len(msgs) = %d, want 4", len(msgs))
	}
	wantRoles := []string{RoleUser, RoleAssistant, RoleUser, RoleAssistant}
	wantContent := []string{"hello", "hi there", "how are you", "fine"}
	for i := range msgs {
		if msgs[i].Role != wantRoles[i] || msgs[i].Content != wantContent[i] {
			t.Fatalf("msgs[%d] = %s:%q, want %s:%q", i, msgs[i].Role, msgs[i].Content, wantRoles[i], wantContent[i])
		}
	}
}

func TestInMemorySessionsAreIsolated(t *testing.T) {
	s := NewInMemoryStore(time.Minute)
	ctx := context.Background()

	if err := s.Append(ctx, "s1", UserMessage("hello")); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	msgs, err := s.Messages(ctx, "s2")
	if err != nil {
		t.Fatalf("Messages() error = %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("s2 should be empty, got %d messages", len(msgs))
	}
}

func TestInMemoryTTLExpiry(t *testing.T) {
	s := NewInMemoryStore(time.Minute)
	now := time.Now()
	s.now = func() time.Time { return now }
	ctx := context.Background()

	if err := s.Append(ctx, "s1", UserMessage("hello"), AssistantMessage("hi")); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	// Activity inside the window keeps the history alive and slides the
	// deadline forward.
	now = now.Add(50 * time.Second)
	if err := s.Append(ctx, "s1", UserMessage("still there?"), AssistantMessage("yes")); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	now = now.Add(50 * time.Second)
	msgs, err := s.Messages(ctx, "s1")
	if err != nil {
		t.Fatalf("Messages() error = %v", err)
	}
	if len(msgs) != 4 {
		t.Fatalf("len(msgs) = %d, want 4 before expiry", len(msgs))
	}

	// Past the deadline the history reads as empty again.
	now = now.Add(time.Minute)
	msgs, err = s.Messages(ctx, "s1")
	if err != nil {
		t.Fatalf("Messages() error = %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("len(msgs) = %d, want 0 after expiry", len(msgs))
	}
}

func TestInMemoryAppendNothingIsNoOp(t *testing.T) {
	s := NewInMemoryStore(time.Minute)
	if err := s.Append(context.Background(), "s1"); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	msgs, _ := s.Messages(context.Background(), "s1")
	if len(msgs) != 0 {
		t.Fatalf("empty append should not create history, got %d messages", len(msgs))
	}
}
