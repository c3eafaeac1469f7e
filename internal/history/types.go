// Package history persists per-session conversation history with
// TTL-based expiry.
package history

import (
	"context"
	"time"
)

// Roles of a conversation message.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single conversational turn entry. Order within a session
// is insertion order and is never changed.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// UserMessage builds a user message stamped with the current time.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content, CreatedAt: time.Now().UTC()}
}

// AssistantMessage builds an assistant message stamped with the current time.
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content, CreatedAt: time.Now().UTC()}
}

// Store persists and retrieves session histories.
//
// Messages on an unknown or expired session returns an empty slice,
// never an error; a missing key is not a failure. Append extends the
// stored sequence and restarts the TTL countdown from the time of the
// write. Connection-level failures surface as store-unavailable errors.
type Store interface {
	Messages(ctx context.Context, sessionID string) ([]Message, error)
	Append(ctx context.Context, sessionID string, msgs ...Message) error
	Ping(ctx context.Context) error
	Close() error
}
