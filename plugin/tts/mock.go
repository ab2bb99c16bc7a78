package tts

import (
	"context"
	"sync"
)

// MockSynthesizer is a scriptable Synthesizer for tests.
type MockSynthesizer struct {
	mu sync.Mutex

	// Artifact is returned when Err is nil.
	Artifact *Artifact
	// Err forces a synthesis failure.
	Err error

	calls    int
	lastText string
	lastCall string
}

// NewMockSynthesizer returns a mock producing the given wav filename.
func NewMockSynthesizer(filename string) *MockSynthesizer {
	return &MockSynthesizer{Artifact: &Artifact{Filename: filename}}
}

func (m *MockSynthesizer) Synthesize(_ context.Context, text, callID string) (*Artifact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.lastText = text
	m.lastCall = callID
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Artifact, nil
}

// Calls returns how many times Synthesize was invoked.
func (m *MockSynthesizer) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// LastText returns the text of the most recent synthesis request.
func (m *MockSynthesizer) LastText() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastText
}

var _ Synthesizer = (*MockSynthesizer)(nil)
