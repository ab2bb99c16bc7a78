// Package apiv1 exposes the voice webhook, chat, and configuration
// endpoints. Handlers stay thin; all turn logic lives in the pipeline.
package apiv1

import (
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"

	"github.com/voxlane/voxlane/internal/profile"
	"github.com/voxlane/voxlane/plugin/twilio"
	"github.com/voxlane/voxlane/server/eventlog"
	"github.com/voxlane/voxlane/server/middleware"
	"github.com/voxlane/voxlane/server/pipeline"
)

type APIV1Service struct {
	Profile     *profile.Profile
	Pipeline    *pipeline.Pipeline
	Events      *eventlog.Logger
	Credentials *twilio.Store
	Verifier    twilio.Verifier

	limiter *middleware.RateLimiter
}

func NewAPIV1Service(profile *profile.Profile, pipeline *pipeline.Pipeline, events *eventlog.Logger, credentials *twilio.Store, verifier twilio.Verifier) *APIV1Service {
	return &APIV1Service{
		Profile:     profile,
		Pipeline:    pipeline,
		Events:      events,
		Credentials: credentials,
		Verifier:    verifier,
		limiter:     middleware.NewRateLimiter(10, 20),
	}
}

// Register attaches all routes to the given Echo instance.
func (s *APIV1Service) Register(e *echo.Echo) {
	e.Use(echomiddleware.CORS())

	e.GET("/", s.handleRoot)

	api := e.Group("/api")
	api.GET("/status", s.handleStatus)

	voice := api.Group("/voice", s.limiter.Middleware())
	voice.POST("/incoming", s.handleIncomingCall)
	voice.POST("/process", s.handleProcessSpeech)
	voice.GET("/audio/:filename", s.handleServeAudio)

	api.POST("/chat", s.handleChat)
	api.GET("/chat", s.handleChat)

	api.POST("/twilio/credentials", s.handleSetCredentials)
	api.GET("/twilio/credentials", s.handleCredentialsStatus)
}
