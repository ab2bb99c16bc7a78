package conversation

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxlane/voxlane/plugin/llm"
)

func TestGetOrInitSeedsPersona(t *testing.T) {
	store := NewStore(Options{Persona: "be brief"})

	history := store.GetOrInit("CA001")
	require.Len(t, history, 1)
	assert.Equal(t, llm.RoleSystem, history[0].Role)
	assert.Equal(t, "be brief", history[0].Content)

	// Repeated calls return the same seeded history.
	assert.Equal(t, history, store.GetOrInit("CA001"))
	assert.Equal(t, 1, store.Len())
}

func TestGetOrInitReturnsSnapshot(t *testing.T) {
	store := NewStore(Options{})

	history := store.GetOrInit("CA001")
	history[0] = llm.UserMessage("mutated")
	_ = append(history, llm.UserMessage("extra"))

	fresh := store.GetOrInit("CA001")
	require.Len(t, fresh, 1)
	assert.Equal(t, llm.RoleSystem, fresh[0].Role)
}

func TestCommitTruncatesToWindow(t *testing.T) {
	t.Run("UnpinnedKeepsSuffix", func(t *testing.T) {
		store := NewStore(Options{Window: 4, PinSystemMessage: false})

		var history []llm.Message
		history = append(history, llm.SystemMessage(DefaultPersona))
		for i := 0; i < 10; i++ {
			history = append(history, llm.UserMessage(fmt.Sprintf("turn-%d", i)))
		}
		store.Commit("CA001", history)

		stored := store.GetOrInit("CA001")
		require.Len(t, stored, 4)
		// Most recent suffix wins; the system message is evicted.
		assert.Equal(t, "turn-6", stored[0].Content)
		assert.Equal(t, "turn-9", stored[3].Content)
	})

	t.Run("PinnedKeepsPersonaPlusSuffix", func(t *testing.T) {
		store := NewStore(Options{Window: 4, PinSystemMessage: true})

		var history []llm.Message
		history = append(history, llm.SystemMessage(DefaultPersona))
		for i := 0; i < 10; i++ {
			history = append(history, llm.UserMessage(fmt.Sprintf("turn-%d", i)))
		}
		store.Commit("CA001", history)

		stored := store.GetOrInit("CA001")
		require.Len(t, stored, 4)
		assert.Equal(t, llm.RoleSystem, stored[0].Role)
		assert.Equal(t, "turn-7", stored[1].Content)
		assert.Equal(t, "turn-9", stored[3].Content)
	})

	t.Run("ShortHistoryUntouched", func(t *testing.T) {
		store := NewStore(Options{Window: 10})
		store.Commit("CA001", []llm.Message{llm.SystemMessage("p"), llm.UserMessage("hi")})
		assert.Len(t, store.GetOrInit("CA001"), 2)
	})

	t.Run("CommitForUnknownCallCreatesIt", func(t *testing.T) {
		store := NewStore(Options{})
		store.Commit("CA-new", []llm.Message{llm.UserMessage("hello")})
		stored := store.GetOrInit("CA-new")
		require.Len(t, stored, 1)
		assert.Equal(t, "hello", stored[0].Content)
	})
}

func TestRepeatedCommitsHonorWindow(t *testing.T) {
	store := NewStore(Options{Window: 6, PinSystemMessage: true})

	callID := "CA-window"
	for turn := 0; turn < 20; turn++ {
		history := store.GetOrInit(callID)
		history = append(history, llm.UserMessage(fmt.Sprintf("q%d", turn)))
		history = append(history, llm.AssistantMessage(fmt.Sprintf("a%d", turn)))
		store.Commit(callID, history)
	}

	stored := store.GetOrInit(callID)
	require.Len(t, stored, 6)
	assert.Equal(t, llm.RoleSystem, stored[0].Role)
	assert.Equal(t, "a19", stored[5].Content)
}

func TestLockSerializesSameCall(t *testing.T) {
	store := NewStore(Options{Window: 20})
	callID := "CA-race"

	const turns = 8
	var wg sync.WaitGroup
	for i := 0; i < turns; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			unlock := store.Lock(callID)
			defer unlock()

			history := store.GetOrInit(callID)
			time.Sleep(2 * time.Millisecond) // widen the read-modify-write window
			history = append(history, llm.UserMessage(fmt.Sprintf("turn-%d", i)))
			store.Commit(callID, history)
		}(i)
	}
	wg.Wait()

	// With per-call locking, no turn's append can be lost.
	stored := store.GetOrInit(callID)
	assert.Len(t, stored, 1+turns)
}

func TestLockDoesNotBlockDistinctCalls(t *testing.T) {
	store := NewStore(Options{})

	unlockA := store.Lock("CA-a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlockB := store.Lock("CA-b")
		unlockB()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on a different call blocked")
	}
}

func TestRemoveAndSweep(t *testing.T) {
	store := NewStore(Options{})

	store.GetOrInit("CA-idle")
	store.GetOrInit("CA-active")
	require.Equal(t, 2, store.Len())

	store.Remove("CA-idle")
	assert.Equal(t, 1, store.Len())

	// Backdate the remaining session, then sweep.
	store.mu.Lock()
	store.sessions["CA-active"].lastActive = time.Now().Add(-time.Hour)
	store.mu.Unlock()

	removed := store.sweep(30 * time.Minute)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 0, store.Len())
}
