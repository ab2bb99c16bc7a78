// Package pipeline drives one call turn: transcript validation, history
// retrieval, completion, synthesis, and the directive handed back to the
// telephony leg. Every stage is recorded in the event log regardless of
// outcome, and no failure aborts the call.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/voxlane/voxlane/plugin/llm"
	"github.com/voxlane/voxlane/plugin/tts"
	"github.com/voxlane/voxlane/server/conversation"
	"github.com/voxlane/voxlane/server/eventlog"
)

// Directive is the pipeline's decision about what the telephony leg does next.
type Directive string

const (
	// DirectiveRepromptNoSpeech asks the caller to repeat after silence.
	DirectiveRepromptNoSpeech Directive = "reprompt_no_speech"
	// DirectiveRepromptSTTFailure asks again after a recognition failure.
	DirectiveRepromptSTTFailure Directive = "reprompt_stt_failure"
	// DirectivePlayAudio plays the synthesized reply audio.
	DirectivePlayAudio Directive = "play_audio"
	// DirectiveSpeakTextFallback speaks the reply with provider-native TTS.
	DirectiveSpeakTextFallback Directive = "speak_text_fallback"
)

// TurnOutcome is the result of one processed turn.
type TurnOutcome struct {
	Directive Directive
	// AudioFilename is the retrievable audio handle, empty unless the
	// directive is play_audio.
	AudioFilename string
	// ReplyText is the text that was or would be spoken.
	ReplyText string
}

// Fallback texts substituted when the completion service fails.
const (
	apologyTimeoutText = "I apologize, but the request timed out. Please try again."
	apologyErrorFormat = "I apologize, but I encountered an error: %s"
)

// sttFailureSentinels are transcripts the recognizer uses to signal its own
// failure rather than caller speech.
var sttFailureSentinels = map[string]bool{
	"error":   true,
	"failed":  true,
	"timeout": true,
}

// Pipeline orchestrates the conversation store, completion gateway, and
// speech synthesis adapter for voice and chat turns.
type Pipeline struct {
	store     *conversation.Store
	completer llm.Completer
	synth     tts.Synthesizer
	events    *eventlog.Logger
}

// New creates a pipeline.
func New(store *conversation.Store, completer llm.Completer, synth tts.Synthesizer, events *eventlog.Logger) *Pipeline {
	return &Pipeline{
		store:     store,
		completer: completer,
		synth:     synth,
		events:    events,
	}
}

// StartCall seeds the conversation for a new call and records the event.
func (p *Pipeline) StartCall(callID, from string) {
	p.store.GetOrInit(callID)
	p.events.Log(eventlog.Event{
		Type:    eventlog.TypeCall,
		CallSID: eventlog.CallSID(callID),
		Step:    "call_started",
		Data:    map[string]any{"from": from},
	})
	slog.Info("incoming call", slog.String("call_sid", callID), slog.String("from", from))
}

// EndCall evicts the call's history once the provider reports completion.
func (p *Pipeline) EndCall(callID string) {
	p.store.Remove(callID)
	p.events.Log(eventlog.Event{
		Type:    eventlog.TypeCall,
		CallSID: eventlog.CallSID(callID),
		Step:    "call_ended",
	})
}

// ProcessTurn runs the full turn state machine for one inbound transcript.
// Every path terminates in a valid directive.
func (p *Pipeline) ProcessTurn(ctx context.Context, callID, rawTranscript string) TurnOutcome {
	turnStart := time.Now()

	// Stage 1: input validation.
	transcript := strings.TrimSpace(rawTranscript)
	if len(transcript) < 2 {
		p.events.Log(eventlog.Event{
			Type:     eventlog.TypeSpeechProcessing,
			CallSID:  eventlog.CallSID(callID),
			Step:     "no_speech_detected",
			Data:     map[string]any{"error": "No speech or speech too short", "raw_length": len(rawTranscript)},
			Duration: eventlog.Seconds(time.Since(turnStart)),
		})
		slog.Warn("no speech detected", slog.String("call_sid", callID))
		return TurnOutcome{Directive: DirectiveRepromptNoSpeech}
	}

	// Stage 2: recognition-failure sentinels.
	if sttFailureSentinels[strings.ToLower(transcript)] {
		p.events.Log(eventlog.Event{
			Type:     eventlog.TypeSTT,
			CallSID:  eventlog.CallSID(callID),
			Step:     "stt_failure",
			Data:     map[string]any{"raw_speech_result": rawTranscript},
			Duration: eventlog.Seconds(time.Since(turnStart)),
		})
		slog.Warn("speech recognition failure", slog.String("call_sid", callID), slog.String("sentinel", transcript))
		return TurnOutcome{Directive: DirectiveRepromptSTTFailure}
	}

	// Stages 3 and 4 are a read-modify-write on the conversation store;
	// the per-call lock prevents overlapping turns from losing an exchange.
	unlock := p.store.Lock(callID)

	history := p.store.GetOrInit(callID)
	turnNumber := len(history) - 1

	p.events.Log(eventlog.Event{
		Type:    eventlog.TypeSTT,
		CallSID: eventlog.CallSID(callID),
		Step:    "speech_to_text",
		Data: map[string]any{
			"provider":          "twilio",
			"raw_speech_result": rawTranscript,
			"transcribed_text":  transcript,
			"text_length":       len(transcript),
			"turn_number":       turnNumber,
		},
		Duration: eventlog.Seconds(0),
	})

	replyText := p.complete(ctx, callID, history, transcript, turnNumber)
	unlock()

	// Stage 5: synthesis.
	outcome := p.synthesize(ctx, callID, replyText, turnNumber)

	// Stage 6: response dispatch and completion summary.
	p.events.Log(eventlog.Event{
		Type:    eventlog.TypeSpeechProcessing,
		CallSID: eventlog.CallSID(callID),
		Step:    "response_sent",
		Data: map[string]any{
			"directive":       string(outcome.Directive),
			"used_audio_file": outcome.AudioFilename != "",
		},
	})
	p.events.Log(eventlog.Event{
		Type:    eventlog.TypeSpeechProcessing,
		CallSID: eventlog.CallSID(callID),
		Step:    "complete",
		Data: map[string]any{
			"turn_number": turnNumber,
			"total_steps": 4,
		},
		Duration: eventlog.Seconds(time.Since(turnStart)),
	})
	slog.Info("turn completed",
		slog.String("call_sid", callID),
		slog.Int("turn_number", turnNumber),
		slog.String("directive", string(outcome.Directive)),
		slog.Int64("duration_ms", time.Since(turnStart).Milliseconds()))

	return outcome
}

// complete invokes the completion gateway and commits the exchange on
// success. Failed exchanges are never committed to history.
func (p *Pipeline) complete(ctx context.Context, callID string, history []llm.Message, userText string, turnNumber int) string {
	llmStart := time.Now()
	reply, err := p.completer.Complete(ctx, history, userText)
	elapsed := time.Since(llmStart)

	switch llm.KindOf(err) {
	case llm.ErrKindNone:
		if err != nil {
			// Unclassified errors are treated as generic completion failures.
			return p.completionFailed(callID, err, turnNumber, elapsed)
		}
		working := append(history, llm.UserMessage(userText), llm.AssistantMessage(reply))
		p.store.Commit(callID, working)

		p.events.Log(eventlog.Event{
			Type:    eventlog.TypeLLM,
			CallSID: eventlog.CallSID(callID),
			Step:    "llm_response",
			Data: map[string]any{
				"model":           p.completer.Model(),
				"response":        reply,
				"response_length": len(reply),
				"turn_number":     turnNumber,
			},
			Duration: eventlog.Seconds(elapsed),
		})
		return reply

	case llm.ErrKindTimeout:
		p.events.Log(eventlog.Event{
			Type:    eventlog.TypeLLM,
			CallSID: eventlog.CallSID(callID),
			Step:    "llm_timeout",
			Data: map[string]any{
				"model":       p.completer.Model(),
				"error":       err.Error(),
				"turn_number": turnNumber,
			},
			Duration: eventlog.Seconds(elapsed),
		})
		slog.Error("completion timed out", slog.String("call_sid", callID), slog.String("error", err.Error()))
		return apologyTimeoutText

	default:
		return p.completionFailed(callID, err, turnNumber, elapsed)
	}
}

func (p *Pipeline) completionFailed(callID string, err error, turnNumber int, elapsed time.Duration) string {
	p.events.Log(eventlog.Event{
		Type:    eventlog.TypeLLM,
		CallSID: eventlog.CallSID(callID),
		Step:    "llm_error",
		Data: map[string]any{
			"model":       p.completer.Model(),
			"error":       err.Error(),
			"turn_number": turnNumber,
		},
		Duration: eventlog.Seconds(elapsed),
	})
	slog.Error("completion failed", slog.String("call_sid", callID), slog.String("error", err.Error()))
	return fmt.Sprintf(apologyErrorFormat, err.Error())
}

// synthesize converts the reply to audio, falling back to provider-native
// speech when the adapter fails.
func (p *Pipeline) synthesize(ctx context.Context, callID, replyText string, turnNumber int) TurnOutcome {
	ttsStart := time.Now()
	artifact, err := p.synth.Synthesize(ctx, replyText, callID)
	elapsed := time.Since(ttsStart)

	if err != nil || artifact == nil {
		data := map[string]any{
			"input_text":  replyText,
			"text_length": len(replyText),
			"fallback":    "twilio_tts",
		}
		if err != nil {
			data["error"] = err.Error()
		}
		p.events.Log(eventlog.Event{
			Type:     eventlog.TypeTTS,
			CallSID:  eventlog.CallSID(callID),
			Step:     "tts_error",
			Data:     data,
			Duration: eventlog.Seconds(elapsed),
		})
		slog.Warn("speech synthesis failed, falling back to provider speech",
			slog.String("call_sid", callID))
		return TurnOutcome{Directive: DirectiveSpeakTextFallback, ReplyText: replyText}
	}

	p.events.Log(eventlog.Event{
		Type:    eventlog.TypeTTS,
		CallSID: eventlog.CallSID(callID),
		Step:    "text_to_speech",
		Data: map[string]any{
			"filename":    artifact.Filename,
			"mp3_size_kb": float64(artifact.MP3Size) / 1024,
			"wav_size_kb": float64(artifact.WAVSize) / 1024,
			"text_length": len(replyText),
			"turn_number": turnNumber,
		},
		Duration: eventlog.Seconds(elapsed),
	})
	return TurnOutcome{
		Directive:     DirectivePlayAudio,
		AudioFilename: artifact.Filename,
		ReplyText:     replyText,
	}
}

// Chat runs the stateless single-turn variant: persona plus one user
// message, no conversation store, no synthesis.
func (p *Pipeline) Chat(ctx context.Context, message string) (string, error) {
	start := time.Now()
	history := []llm.Message{llm.SystemMessage(conversation.DefaultPersona)}

	reply, err := p.completer.Complete(ctx, history, message)
	elapsed := time.Since(start)
	if err != nil {
		p.events.Log(eventlog.Event{
			Type: eventlog.TypeChat,
			Step: "llm_error",
			Data: map[string]any{
				"error": err.Error(),
				"input": message,
			},
			Duration: eventlog.Seconds(elapsed),
		})
		slog.Error("chat completion failed", slog.String("error", err.Error()))
		return "", err
	}

	p.events.Log(eventlog.Event{
		Type: eventlog.TypeChat,
		Step: "llm_response",
		Data: map[string]any{
			"model":           p.completer.Model(),
			"input":           message,
			"response":        reply,
			"response_length": len(reply),
		},
		Duration: eventlog.Seconds(elapsed),
	})
	return reply, nil
}
