package llm

import (
	"context"
	"sync"
	"time"
)

// MockCompleter is a scriptable Completer for tests.
type MockCompleter struct {
	mu sync.Mutex

	// Reply is returned when Err is nil.
	Reply string
	// Err is returned as-is when set.
	Err error
	// Delay simulates a slow model before replying.
	Delay time.Duration

	calls int
}

// NewMockCompleter creates a mock returning the given reply.
func NewMockCompleter(reply string) *MockCompleter {
	return &MockCompleter{Reply: reply}
}

func (m *MockCompleter) Complete(ctx context.Context, _ []Message, _ string) (string, error) {
	m.mu.Lock()
	m.calls++
	reply, err, delay := m.Reply, m.Err, m.Delay
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", &Error{Kind: ErrKindTimeout, Err: ctx.Err()}
		}
	}
	if err != nil {
		return "", err
	}
	return reply, nil
}

func (m *MockCompleter) Model() string {
	return "mock-model"
}

// Calls returns how many times Complete was invoked.
func (m *MockCompleter) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

var _ Completer = (*MockCompleter)(nil)
