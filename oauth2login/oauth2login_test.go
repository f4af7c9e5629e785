package oauth2login

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dexidp/sso/oauth2login/providers"
	"github.com/dexidp/sso/storage"
)

func TestRegistryUnknownProvider(t *testing.T) {
	r := NewRegistry()
	_, err := r.LoginURL("github", "https://example.com/cb", "state")
	require.Error(t, err)
}

func TestRegistryLoginURL(t *testing.T) {
	r := NewRegistry()
	r.Register("github", providers.NewGitHub("id", "secret", "https://example.com/cb"))

	url, err := r.LoginURL("github", "https://example.com/cb", "state123")
	require.NoError(t, err)
	require.Contains(t, url, "github.com")
	require.Contains(t, url, "state123")
}

func TestValidateServiceCallback(t *testing.T) {
	svc := storage.Service{
		GitHubCallbackURL: "https://app.example.com/oauth/github/cb",
	}

	require.NoError(t, ValidateServiceCallback(svc, "github", "https://app.example.com/oauth/github/cb"))
	require.Error(t, ValidateServiceCallback(svc, "github", "https://evil.example.com/cb"))
	require.Error(t, ValidateServiceCallback(svc, "microsoft", "https://app.example.com/oauth/github/cb"))
	require.Error(t, ValidateServiceCallback(svc, "unknown", "https://app.example.com/oauth/github/cb"))
}
