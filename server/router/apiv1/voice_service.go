package apiv1

import (
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/voxlane/voxlane/plugin/twiml"
	"github.com/voxlane/voxlane/server/pipeline"
)

// Spoken prompts the caller hears on the re-prompt paths.
const (
	greetingText         = "Hello! Please speak."
	noSpeechPromptText   = "I didn't hear anything. Please speak again."
	sttFailurePromptText = "I'm having trouble understanding. Please try again."
)

// handleIncomingCall answers the provider's new-call webhook with a
// greeting and the first speech gather.
func (s *APIV1Service) handleIncomingCall(c echo.Context) error {
	callSID := c.FormValue("CallSid")
	if callSID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "CallSid is required")
	}

	s.Pipeline.StartCall(callSID, c.FormValue("From"))

	out, err := twiml.NewResponse().
		Say(greetingText).
		GatherSpeech(processAction(callSID)).
		Render()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.Blob(http.StatusOK, echo.MIMEApplicationXML, []byte(out))
}

// handleProcessSpeech runs one full turn and renders the outcome as markup
// the provider executes.
func (s *APIV1Service) handleProcessSpeech(c echo.Context) error {
	callSID := c.QueryParam("call_sid")
	if callSID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "call_sid is required")
	}

	outcome := s.Pipeline.ProcessTurn(c.Request().Context(), callSID, c.FormValue("SpeechResult"))
	action := processAction(callSID)

	resp := twiml.NewResponse()
	switch outcome.Directive {
	case pipeline.DirectiveRepromptNoSpeech:
		resp.Say(noSpeechPromptText).GatherSpeech(action)
	case pipeline.DirectiveRepromptSTTFailure:
		resp.Say(sttFailurePromptText).GatherSpeech(action)
	case pipeline.DirectivePlayAudio:
		resp.Play(s.audioURL(c, outcome.AudioFilename)).GatherSpeech(action).Hangup()
	default:
		resp.Say(outcome.ReplyText).GatherSpeech(action).Hangup()
	}

	out, err := resp.Render()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.Blob(http.StatusOK, echo.MIMEApplicationXML, []byte(out))
}

// handleServeAudio serves a synthesized wav artifact back to the provider.
func (s *APIV1Service) handleServeAudio(c echo.Context) error {
	filename := c.Param("filename")
	// The artifact directory is flat; anything that is not a bare
	// filename is a traversal attempt.
	if filename == "" || filename != filepath.Base(filename) || strings.Contains(filename, "..") {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid filename")
	}

	path := filepath.Join(s.Profile.AudioDir(), filename)
	if _, err := os.Stat(path); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "audio file not found")
	}
	c.Response().Header().Set(echo.HeaderContentType, "audio/wav")
	return c.File(path)
}

func processAction(callSID string) string {
	return "/api/voice/process?call_sid=" + url.QueryEscape(callSID)
}

// audioURL builds the externally reachable playback URL, preferring the
// configured public URL over the request host.
func (s *APIV1Service) audioURL(c echo.Context, filename string) string {
	base := s.Profile.PublicURL
	if base == "" {
		base = c.Scheme() + "://" + c.Request().Host
	}
	return base + "/api/voice/audio/" + url.PathEscape(filename)
}
