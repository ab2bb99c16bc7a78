package twilio

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
)

// ErrAuthFailed indicates the provider rejected the account SID or token.
var ErrAuthFailed = errors.New("provider rejected credentials")

// Account describes the verified provider account.
type Account struct {
	FriendlyName string `json:"friendly_name"`
}

// Verifier checks credentials against the provider.
type Verifier interface {
	// VerifyAccount fetches the account to prove the SID/token pair works.
	VerifyAccount(ctx context.Context, accountSID, authToken string) (*Account, error)
	// HasPhoneNumber reports whether the number belongs to the account.
	HasPhoneNumber(ctx context.Context, accountSID, authToken, phoneNumber string) (bool, error)
}

// APIVerifier implements Verifier against the provider's REST API.
type APIVerifier struct {
	BaseURL string
	Client  *http.Client
}

// NewAPIVerifier creates a verifier with a sane request timeout.
func NewAPIVerifier() *APIVerifier {
	return &APIVerifier{
		BaseURL: "https://api.twilio.com/2010-04-01",
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (v *APIVerifier) VerifyAccount(ctx context.Context, accountSID, authToken string) (*Account, error) {
	endpoint := fmt.Sprintf("%s/Accounts/%s.json", v.BaseURL, url.PathEscape(accountSID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build account request")
	}
	req.SetBasicAuth(accountSID, authToken)

	resp, err := v.Client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to reach provider")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusNotFound:
		return nil, ErrAuthFailed
	case resp.StatusCode != http.StatusOK:
		return nil, errors.Errorf("unexpected provider status %d", resp.StatusCode)
	}

	var account Account
	if err := json.NewDecoder(resp.Body).Decode(&account); err != nil {
		return nil, errors.Wrap(err, "failed to decode account response")
	}
	return &account, nil
}

func (v *APIVerifier) HasPhoneNumber(ctx context.Context, accountSID, authToken, phoneNumber string) (bool, error) {
	endpoint := fmt.Sprintf("%s/Accounts/%s/IncomingPhoneNumbers.json?PhoneNumber=%s&PageSize=1",
		v.BaseURL, url.PathEscape(accountSID), url.QueryEscape(phoneNumber))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, errors.Wrap(err, "failed to build phone number request")
	}
	req.SetBasicAuth(accountSID, authToken)

	resp, err := v.Client.Do(req)
	if err != nil {
		return false, errors.Wrap(err, "failed to reach provider")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, errors.Errorf("unexpected provider status %d", resp.StatusCode)
	}

	var payload struct {
		IncomingPhoneNumbers []struct {
			PhoneNumber string `json:"phone_number"`
		} `json:"incoming_phone_numbers"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return false, errors.Wrap(err, "failed to decode phone number response")
	}
	return len(payload.IncomingPhoneNumbers) > 0, nil
}

var _ Verifier = (*APIVerifier)(nil)

// MockVerifier is a scriptable Verifier for tests.
type MockVerifier struct {
	Account    *Account
	AccountErr error
	HasNumber  bool
	NumberErr  error
}

func (m *MockVerifier) VerifyAccount(context.Context, string, string) (*Account, error) {
	if m.AccountErr != nil {
		return nil, m.AccountErr
	}
	if m.Account == nil {
		return &Account{FriendlyName: "Test Account"}, nil
	}
	return m.Account, nil
}

func (m *MockVerifier) HasPhoneNumber(context.Context, string, string, string) (bool, error) {
	return m.HasNumber, m.NumberErr
}

var _ Verifier = (*MockVerifier)(nil)
