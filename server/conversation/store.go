// Package conversation keeps a bounded rolling message history per call.
// Histories live only for the process lifetime; idle calls are evicted by
// an optional TTL sweeper.
package conversation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/voxlane/voxlane/plugin/llm"
)

// Options configures a Store.
type Options struct {
	// Persona is the fixed system-role instruction seeded at call start.
	Persona string
	// Window bounds the stored history length after any commit.
	Window int
	// PinSystemMessage keeps the seeded persona at index 0 through
	// truncation. Disabling it restores the inherited behavior where the
	// persona can be evicted once the window is exceeded.
	PinSystemMessage bool
}

// DefaultPersona matches the assistant instruction the call is seeded with.
const DefaultPersona = "You are a helpful AI assistant. Keep responses concise."

const defaultWindow = 10

type session struct {
	mu         sync.Mutex
	history    []llm.Message
	lastActive time.Time
}

// Store maps call identifiers to bounded histories. Turns on the same call
// serialize through Lock; distinct calls never block each other.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*session
	opts     Options
}

// NewStore creates a conversation store.
func NewStore(opts Options) *Store {
	if opts.Persona == "" {
		opts.Persona = DefaultPersona
	}
	if opts.Window <= 0 {
		opts.Window = defaultWindow
	}
	return &Store{
		sessions: make(map[string]*session),
		opts:     opts,
	}
}

func (s *Store) session(callID string) *session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[callID]
	if !ok {
		sess = &session{
			history:    []llm.Message{llm.SystemMessage(s.opts.Persona)},
			lastActive: time.Now(),
		}
		s.sessions[callID] = sess
	}
	return sess
}

// Lock acquires the per-call mutex, serializing GetOrInit-then-Commit
// against overlapping turns for the same call. Callers must invoke the
// returned function to release it.
func (s *Store) Lock(callID string) func() {
	sess := s.session(callID)
	sess.mu.Lock()
	return sess.mu.Unlock
}

// GetOrInit returns a snapshot of the call's history, seeding it with the
// persona message on first use. Mutating the returned slice does not affect
// stored state; use Commit.
func (s *Store) GetOrInit(callID string) []llm.Message {
	sess := s.session(callID)

	s.mu.Lock()
	defer s.mu.Unlock()
	sess.lastActive = time.Now()
	out := make([]llm.Message, len(sess.history))
	copy(out, sess.history)
	return out
}

// Commit replaces the call's history with the given one, truncated to the
// configured window. A commit for an unknown call creates it.
func (s *Store) Commit(callID string, history []llm.Message) {
	sess := s.session(callID)

	s.mu.Lock()
	defer s.mu.Unlock()
	sess.lastActive = time.Now()
	sess.history = s.truncate(history)
}

func (s *Store) truncate(history []llm.Message) []llm.Message {
	window := s.opts.Window
	if len(history) <= window {
		out := make([]llm.Message, len(history))
		copy(out, history)
		return out
	}

	if s.opts.PinSystemMessage && len(history) > 0 && history[0].Role == llm.RoleSystem {
		out := make([]llm.Message, 0, window)
		out = append(out, history[0])
		out = append(out, history[len(history)-(window-1):]...)
		return out
	}

	out := make([]llm.Message, window)
	copy(out, history[len(history)-window:])
	return out
}

// Remove evicts a call's history.
func (s *Store) Remove(callID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, callID)
}

// Len returns the number of tracked calls.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// sweep evicts calls idle longer than ttl and returns how many were removed.
func (s *Store) sweep(ttl time.Duration) int {
	cutoff := time.Now().Add(-ttl)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for callID, sess := range s.sessions {
		if sess.lastActive.Before(cutoff) {
			delete(s.sessions, callID)
			removed++
		}
	}
	return removed
}

// StartSweeper evicts idle call histories every interval until ctx is done.
func (s *Store) StartSweeper(ctx context.Context, ttl, interval time.Duration) {
	if ttl <= 0 || interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := s.sweep(ttl); removed > 0 {
					slog.Info("evicted idle conversations", slog.Int("count", removed))
				}
			}
		}
	}()
}
