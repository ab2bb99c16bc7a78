package apiv1

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/voxlane/voxlane/plugin/twilio"
	"github.com/voxlane/voxlane/server/eventlog"
)

// handleSetCredentials validates provider credentials against the provider
// API and stores them only when verification succeeds.
func (s *APIV1Service) handleSetCredentials(c echo.Context) error {
	accountSID := c.FormValue("account_sid")
	authToken := c.FormValue("auth_token")
	phoneNumber := c.FormValue("phone_number")

	if err := twilio.ValidateFormat(accountSID, authToken, phoneNumber); err != nil {
		slog.Warn("credential format check failed", slog.String("error", err.Error()))
		return credentialsError(c, err.Error())
	}

	ctx := c.Request().Context()
	account, err := s.Verifier.VerifyAccount(ctx, accountSID, authToken)
	if err != nil {
		slog.Error("credential verification failed", slog.String("error", err.Error()))
		if errors.Is(err, twilio.ErrAuthFailed) {
			return credentialsError(c, "Invalid Account SID or Auth Token. Please check your credentials.")
		}
		return credentialsError(c, fmt.Sprintf("Failed to connect to Twilio: %s", err.Error()))
	}

	found, err := s.Verifier.HasPhoneNumber(ctx, accountSID, authToken, phoneNumber)
	if err != nil {
		// Number lookup is best effort; a transient failure here does not
		// invalidate otherwise working credentials.
		slog.Warn("could not verify phone number", slog.String("error", err.Error()))
	} else if !found {
		return credentialsError(c, fmt.Sprintf("Phone number %s not found in your Twilio account.", phoneNumber))
	}

	s.Credentials.SetValidated(twilio.Credentials{
		AccountSID:  accountSID,
		AuthToken:   authToken,
		PhoneNumber: phoneNumber,
	})

	s.Events.Log(eventlog.Event{
		Type: eventlog.TypeTwilioConfig,
		Step: "credentials_validated_and_set",
		Data: map[string]any{
			"account_sid_set": true,
			"phone_number":    phoneNumber,
			"account_name":    account.FriendlyName,
		},
	})
	slog.Info("provider credentials validated and stored",
		slog.String("account_name", account.FriendlyName),
		slog.String("phone_number", phoneNumber))

	return c.JSON(http.StatusOK, map[string]any{
		"status":  "success",
		"message": "Twilio credentials validated and connected successfully",
	})
}

// handleCredentialsStatus reports whether credentials are configured
// without exposing secrets.
func (s *APIV1Service) handleCredentialsStatus(c echo.Context) error {
	status := s.Credentials.Status()
	return c.JSON(http.StatusOK, map[string]any{
		"status":              "success",
		"configured":          status.Configured,
		"phone_number":        status.PhoneNumber,
		"account_sid_preview": status.AccountSIDPreview,
	})
}

func credentialsError(c echo.Context, message string) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status": "error",
		"error":  message,
	})
}
