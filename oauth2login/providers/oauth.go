// Package providers implements the thin OAuth2 provider clients that back
// the oauth2_login engine operation: each one proves ownership of an email
// address with an external identity provider and hands that email back,
// nothing more.
package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
)

// Provider completes an OAuth2 authorization code flow and resolves a
// verified email address. Implementations hold no user/session state; one
// Provider is constructed per configured OAuth application.
type Provider interface {
	// LoginURL returns the authorization URL the caller should redirect to,
	// failing if callbackURL does not match the provider's configured
	// redirect URI.
	LoginURL(callbackURL, state string) (string, error)

	// Exchange trades an authorization code for a verified email address.
	Exchange(ctx context.Context, callbackURL, code string) (email string, err error)
}

type oauth2Error struct {
	error            string
	errorDescription string
}

func (e *oauth2Error) Error() string {
	if e.errorDescription == "" {
		return e.error
	}
	return e.error + ": " + e.errorDescription
}

// get issues a GET request with the given client (expected to be an
// oauth2.Config-derived bearer-token client) and decodes the JSON response
// body into v.
func get(ctx context.Context, client *http.Client, url string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("get %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("get %s: unexpected status %s", url, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response from %s: %w", url, err)
	}
	return nil
}

func exchange(ctx context.Context, cfg *oauth2.Config, callbackURL, configuredRedirect, code string) (*http.Client, error) {
	if callbackURL != configuredRedirect {
		return nil, fmt.Errorf("callback URL %q does not match configured redirect %q", callbackURL, configuredRedirect)
	}
	if code == "" {
		return nil, errors.New("missing authorization code")
	}

	token, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}
	return cfg.Client(ctx, token), nil
}
