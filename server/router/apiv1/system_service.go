package apiv1

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

var endpointIndex = map[string]string{
	"voice_incoming":     "POST /api/voice/incoming",
	"voice_process":      "POST /api/voice/process",
	"voice_audio":        "GET /api/voice/audio/{filename}",
	"chat":               "GET/POST /api/chat",
	"status":             "GET /api/status",
	"twilio_credentials": "GET/POST /api/twilio/credentials",
}

// handleRoot returns basic API discovery information.
func (s *APIV1Service) handleRoot(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"message":   "Voice AI Assistant API",
		"status":    "running",
		"version":   s.Profile.Version,
		"endpoints": endpointIndex,
	})
}

// handleStatus is the health check surface.
func (s *APIV1Service) handleStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":    "running",
		"model":     s.Profile.LLMModel,
		"endpoints": endpointIndex,
	})
}
