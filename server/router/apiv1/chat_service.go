package apiv1

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// handleChat answers a single text message, stateless across requests.
// Accepts the message as form data (POST) or query parameter (GET).
func (s *APIV1Service) handleChat(c echo.Context) error {
	message := c.FormValue("message")
	if message == "" {
		message = c.QueryParam("message")
	}
	if message == "" {
		return c.JSON(http.StatusBadRequest, map[string]any{
			"status": "error",
			"error":  "message is required",
		})
	}

	reply, err := s.Pipeline.Chat(c.Request().Context(), message)
	if err != nil {
		return c.JSON(http.StatusOK, map[string]any{
			"status": "error",
			"error":  err.Error(),
		})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"status":   "success",
		"input":    message,
		"response": reply,
		"model":    s.Profile.LLMModel,
	})
}
