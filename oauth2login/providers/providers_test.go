package providers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGitHubLoginURLRejectsMismatchedCallback(t *testing.T) {
	g := NewGitHub("id", "secret", "https://example.com/cb")
	_, err := g.LoginURL("https://evil.example.com/cb", "state")
	require.Error(t, err)
}

func TestGitHubLoginURL(t *testing.T) {
	g := NewGitHub("id", "secret", "https://example.com/cb")
	url, err := g.LoginURL("https://example.com/cb", "state")
	require.NoError(t, err)
	require.Contains(t, url, "client_id=id")
}

func TestGitHubExchangeRejectsMismatchedCallback(t *testing.T) {
	g := NewGitHub("id", "secret", "https://example.com/cb")
	_, err := g.Exchange(context.Background(), "https://evil.example.com/cb", "code")
	require.Error(t, err)
}

func TestMicrosoftDefaultsToCommonTenant(t *testing.T) {
	m := NewMicrosoft("id", "secret", "https://example.com/cb", "")
	url, err := m.LoginURL("https://example.com/cb", "state")
	require.NoError(t, err)
	require.Contains(t, url, "/common/oauth2/v2.0/authorize")
}

func TestMicrosoftLoginURLRejectsMismatchedCallback(t *testing.T) {
	m := NewMicrosoft("id", "secret", "https://example.com/cb", "")
	_, err := m.LoginURL("https://evil.example.com/cb", "state")
	require.Error(t, err)
}
