// Package server wires the pipeline, stores, and HTTP surface together.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/voxlane/voxlane/internal/profile"
	"github.com/voxlane/voxlane/plugin/llm"
	"github.com/voxlane/voxlane/plugin/tts"
	"github.com/voxlane/voxlane/plugin/twilio"
	"github.com/voxlane/voxlane/server/conversation"
	"github.com/voxlane/voxlane/server/eventlog"
	"github.com/voxlane/voxlane/server/pipeline"
	"github.com/voxlane/voxlane/server/router/apiv1"
)

// sweepInterval is how often idle conversations are checked for eviction.
const sweepInterval = 5 * time.Minute

type Server struct {
	Profile *profile.Profile

	echoServer *echo.Echo
	events     *eventlog.Logger
	store      *conversation.Store
}

// NewServer creates a server from the given profile.
func NewServer(ctx context.Context, profile *profile.Profile) (*Server, error) {
	events, err := eventlog.NewLogger(profile.EventLogPath())
	if err != nil {
		return nil, errors.Wrap(err, "failed to open event log")
	}

	store := conversation.NewStore(conversation.Options{
		Window:           profile.HistoryWindow,
		PinSystemMessage: profile.PinSystemMessage,
	})
	store.StartSweeper(ctx, profile.ConversationTTL, sweepInterval)

	completer := llm.NewGateway(&llm.Config{
		APIKey:  profile.LLMAPIKey,
		BaseURL: profile.LLMBaseURL,
		Model:   profile.LLMModel,
		Timeout: profile.LLMTimeout,
	})

	transcoder := tts.NewFFmpegTranscoder(profile.FFmpegPath)
	if !transcoder.IsAvailable(ctx) {
		slog.Warn("ffmpeg not available, synthesized turns will fall back to provider speech",
			slog.String("path", profile.FFmpegPath))
	}
	synthesizer := tts.NewPollySynthesizer(tts.Config{
		Region:    profile.TTSRegion,
		VoiceID:   profile.TTSVoice,
		Engine:    profile.TTSEngine,
		OutputDir: profile.AudioDir(),
		Timeout:   profile.TTSTimeout,
	}, transcoder)

	credentials := twilio.NewStore(profile.TwilioAccountSID, profile.TwilioAuthToken, profile.TwilioPhoneNumber)

	echoServer := echo.New()
	echoServer.HideBanner = true
	echoServer.HidePort = true
	echoServer.Use(echomiddleware.Recover())

	apiService := apiv1.NewAPIV1Service(
		profile,
		pipeline.New(store, completer, synthesizer, events),
		events,
		credentials,
		twilio.NewAPIVerifier(),
	)
	apiService.Register(echoServer)

	events.Log(eventlog.Event{
		Type: eventlog.TypeServerStart,
		Step: "server_initialized",
		Data: map[string]any{
			"addr":      profile.Addr,
			"port":      profile.Port,
			"model":     profile.LLMModel,
			"audio_dir": profile.AudioDir(),
		},
		Duration: eventlog.Seconds(0),
	})

	return &Server{
		Profile:    profile,
		echoServer: echoServer,
		events:     events,
		store:      store,
	}, nil
}

// Start begins serving and blocks until the listener fails or is shut down.
func (s *Server) Start(_ context.Context) error {
	address := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	slog.Info("server started",
		slog.String("address", address),
		slog.String("mode", s.Profile.Mode),
		slog.String("version", s.Profile.Version))
	return s.echoServer.Start(address)
}

// Shutdown gracefully drains in-flight requests and closes the event log.
func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := s.echoServer.Shutdown(ctx); err != nil {
		slog.Error("failed to shutdown server gracefully", slog.String("error", err.Error()))
	}
	if err := s.events.Close(); err != nil {
		slog.Error("failed to close event log", slog.String("error", err.Error()))
	}
	slog.Info("server stopped")
}
