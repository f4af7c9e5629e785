// Package oauth2login resolves a verified email address from an external
// identity provider, feeding the oauth2_login engine operation. It performs
// no storage or token issuance of its own.
package oauth2login

import (
	"context"
	"fmt"

	"github.com/dexidp/sso/oauth2login/providers"
	"github.com/dexidp/sso/storage"
)

// Registry selects a provider by name. One registry serves every service;
// per-service callback checks are done by ValidateServiceCallback.
type Registry struct {
	byName map[string]providers.Provider
}

// NewRegistry returns a Registry with no providers configured.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]providers.Provider)}
}

// Register adds or replaces the provider for name (e.g. "github", "microsoft").
func (r *Registry) Register(name string, p providers.Provider) {
	r.byName[name] = p
}

// LoginURL returns the authorization URL for the named provider.
func (r *Registry) LoginURL(name, callbackURL, state string) (string, error) {
	p, ok := r.byName[name]
	if !ok {
		return "", fmt.Errorf("oauth2login: unknown provider %q", name)
	}
	return p.LoginURL(callbackURL, state)
}

// Exchange completes the named provider's authorization code flow and
// returns the verified email address it vouches for.
func (r *Registry) Exchange(ctx context.Context, name, callbackURL, code string) (string, error) {
	p, ok := r.byName[name]
	if !ok {
		return "", fmt.Errorf("oauth2login: unknown provider %q", name)
	}
	return p.Exchange(ctx, callbackURL, code)
}

// ValidateServiceCallback checks callbackURL against the one configured for
// svc's named provider, so a code obtained for one service's registered
// callback cannot be replayed against another service's login. The
// comparison is an exact string match; there is no wildcard or prefix
// matching.
func ValidateServiceCallback(svc storage.Service, name, callbackURL string) error {
	var configured string
	switch name {
	case "local":
		configured = svc.LocalCallbackURL
	case "github":
		configured = svc.GitHubCallbackURL
	case "microsoft":
		configured = svc.MicrosoftCallbackURL
	default:
		return fmt.Errorf("oauth2login: unknown provider %q", name)
	}

	if configured == "" || configured != callbackURL {
		return fmt.Errorf("oauth2login: callback URL does not match service configuration")
	}
	return nil
}
