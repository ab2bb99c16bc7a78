// Package eventlog records every pipeline stage as a durable, structured
// event. Events are appended synchronously to a newline-delimited JSON file
// so concurrent turns can never corrupt the log or lose records.
package eventlog

import (
	"encoding/json"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Event types emitted by the pipeline.
const (
	TypeServerStart      = "server_start"
	TypeCall             = "call"
	TypeSTT              = "stt"
	TypeSpeechProcessing = "speech_processing"
	TypeLLM              = "llm"
	TypeTTS              = "tts"
	TypeChat             = "chat"
	TypeTwilioConfig     = "twilio_config"
)

// Event is one record per pipeline stage.
type Event struct {
	Timestamp time.Time      `json:"timestamp"`
	Type      string         `json:"event_type"`
	CallSID   *string        `json:"call_sid"`
	Step      string         `json:"step"`
	Data      map[string]any `json:"data"`
	// Duration is the elapsed stage time in seconds, nil where not measured.
	Duration *float64 `json:"duration_seconds"`
}

// Logger appends events to an NDJSON file. Safe for concurrent use; all
// appends are serialized so insertion order is preserved.
type Logger struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder

	// recent keeps an in-memory tail for the status surface and tests.
	recent    []Event
	recentCap int
}

// NewLogger opens (or creates) the event log file in append mode.
func NewLogger(path string) (*Logger, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open event log %s", path)
	}
	return &Logger{
		file:      file,
		enc:       json.NewEncoder(file),
		recentCap: 1024,
	}, nil
}

// Log appends one event with the current timestamp. Write-through: the
// record is on disk when Log returns.
func (l *Logger) Log(event Event) Event {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Data == nil {
		event.Data = map[string]any{}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.enc.Encode(event); err != nil {
		slog.Error("failed to append event log record",
			slog.String("event_type", event.Type),
			slog.String("step", event.Step),
			slog.String("error", err.Error()))
	}

	l.recent = append(l.recent, event)
	if len(l.recent) > l.recentCap {
		l.recent = l.recent[len(l.recent)-l.recentCap:]
	}
	return event
}

// Recent returns a snapshot of the most recently logged events.
func (l *Logger) Recent() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Event, len(l.recent))
	copy(out, l.recent)
	return out
}

// Close flushes and closes the underlying file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// CallSID wraps a call identifier for the nullable call_sid field.
func CallSID(sid string) *string {
	return &sid
}

// Seconds converts an elapsed duration to the nullable duration field.
func Seconds(d time.Duration) *float64 {
	s := d.Seconds()
	return &s
}
