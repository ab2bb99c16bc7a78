// Package twilio holds provider credentials and verifies them against the
// provider's account API before they are accepted.
package twilio

import (
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// Credentials is one validated provider credential set.
type Credentials struct {
	AccountSID  string
	AuthToken   string
	PhoneNumber string
	// UISet is true only when credentials were set through the API;
	// environment defaults alone do not count as configured.
	UISet bool
}

// Status is the sanitized credential state exposed to clients.
type Status struct {
	Configured        bool   `json:"configured"`
	PhoneNumber       string `json:"phone_number"`
	AccountSIDPreview string `json:"account_sid_preview"`
}

// Store guards the process-wide credential state.
type Store struct {
	mu    sync.RWMutex
	creds Credentials
}

// NewStore seeds the store from environment defaults.
func NewStore(accountSID, authToken, phoneNumber string) *Store {
	return &Store{
		creds: Credentials{
			AccountSID:  accountSID,
			AuthToken:   authToken,
			PhoneNumber: phoneNumber,
		},
	}
}

// Get returns the current credential set.
func (s *Store) Get() Credentials {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds
}

// SetValidated stores credentials that passed verification.
func (s *Store) SetValidated(creds Credentials) {
	creds.UISet = true
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = creds
}

// Status reports whether usable credentials are configured, without
// exposing secrets.
func (s *Store) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	configured := s.creds.UISet &&
		s.creds.AccountSID != "" &&
		s.creds.AuthToken != "" &&
		s.creds.PhoneNumber != ""
	if !configured {
		return Status{}
	}
	return Status{
		Configured:        true,
		PhoneNumber:       s.creds.PhoneNumber,
		AccountSIDPreview: s.creds.AccountSID[:10] + "...",
	}
}

// ValidateFormat checks credential shape before any provider call is made.
// The returned error text is user-facing.
func ValidateFormat(accountSID, authToken, phoneNumber string) error {
	if !strings.HasPrefix(accountSID, "AC") || len(accountSID) < 30 {
		return errors.New("Invalid Account SID format. It should start with 'AC' and be at least 30 characters.")
	}
	if len(authToken) < 30 {
		return errors.New("Invalid Auth Token format. It should be at least 30 characters.")
	}
	if !strings.HasPrefix(phoneNumber, "+") || len(phoneNumber) < 10 {
		return errors.New("Invalid Phone Number format. It should start with '+' (e.g., +1234567890).")
	}
	return nil
}
