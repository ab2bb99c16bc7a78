package eventlog

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(t *testing.T) (*Logger, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "app_logs.ndjson")
	logger, err := NewLogger(path)
	require.NoError(t, err)
	t.Cleanup(func() { logger.Close() })
	return logger, path
}

func readLines(t *testing.T, path string) []Event {
	t.Helper()
	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	var events []Event
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var e Event
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &e))
		events = append(events, e)
	}
	require.NoError(t, scanner.Err())
	return events
}

func TestLoggerAppendsNDJSON(t *testing.T) {
	logger, path := newTestLogger(t)

	logger.Log(Event{
		Type:    TypeSpeechProcessing,
		CallSID: CallSID("CA123"),
		Step:    "no_speech_detected",
		Data:    map[string]any{"error": "No speech or speech too short"},
	})
	logger.Log(Event{
		Type:     TypeChat,
		Step:     "llm_response",
		Duration: Seconds(1500 * time.Millisecond),
	})

	events := readLines(t, path)
	require.Len(t, events, 2)

	assert.Equal(t, TypeSpeechProcessing, events[0].Type)
	require.NotNil(t, events[0].CallSID)
	assert.Equal(t, "CA123", *events[0].CallSID)
	assert.Equal(t, "no_speech_detected", events[0].Step)
	assert.Nil(t, events[0].Duration)
	assert.False(t, events[0].Timestamp.IsZero())

	assert.Nil(t, events[1].CallSID)
	require.NotNil(t, events[1].Duration)
	assert.InDelta(t, 1.5, *events[1].Duration, 0.0001)
}

func TestLoggerDataDefaultsToEmptyObject(t *testing.T) {
	logger, path := newTestLogger(t)
	logger.Log(Event{Type: TypeServerStart, Step: "server_initialized"})

	events := readLines(t, path)
	require.Len(t, events, 1)
	assert.NotNil(t, events[0].Data)
	assert.Empty(t, events[0].Data)
}

func TestLoggerSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app_logs.ndjson")

	first, err := NewLogger(path)
	require.NoError(t, err)
	first.Log(Event{Type: TypeCall, Step: "call_started"})
	require.NoError(t, first.Close())

	second, err := NewLogger(path)
	require.NoError(t, err)
	second.Log(Event{Type: TypeCall, Step: "complete"})
	require.NoError(t, second.Close())

	events := readLines(t, path)
	require.Len(t, events, 2)
	assert.Equal(t, "call_started", events[0].Step)
	assert.Equal(t, "complete", events[1].Step)
}

func TestLoggerConcurrentAppends(t *testing.T) {
	logger, path := newTestLogger(t)

	const writers = 16
	const perWriter = 25

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWriter; j++ {
				logger.Log(Event{Type: TypeSTT, Step: "speech_to_text"})
			}
		}()
	}
	wg.Wait()

	// Every line must parse; interleaved writes must not corrupt records.
	events := readLines(t, path)
	assert.Len(t, events, writers*perWriter)
	assert.Len(t, logger.Recent(), writers*perWriter)
}
