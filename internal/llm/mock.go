package llm

import (
	"context"
	"sync"

	"github.com/liurenke/renkebot/internal/history"
)

// MockClient is a scripted Client for tests. Replies are consumed in
// order; when the script runs out the last reply repeats. Every call
// records the composed message sequence it received.
type MockClient struct {
	mu      sync.Mutex
	replies []string
	err     error
	calls   [][]history.Message
}

func NewMockClient(replies ...string) *MockClient {
	return &MockClient{replies: replies}
}

// Fail makes every subsequent call return err.
func (m *MockClient) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *MockClient) Complete(_ context.Context, msgs []history.Message) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	recorded := make([]history.Message, len(msgs))
	copy(recorded, msgs)
	m.calls = append(m.calls, recorded)

	if m.err != nil {
		return "", m.err
	}
	if len(m.replies) == 0 {
		return "ok", nil
	}
	reply := m.replies[0]
	if len(m.replies) > 1 {
		m.replies = m.replies[1:]
	}
	return reply, nil
}

// Calls returns the recorded message sequences, one per invocation.
func (m *MockClient) Calls() [][]history.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]history.Message, len(m.calls))
	copy(out, m.calls)
	return out
}
