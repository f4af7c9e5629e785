package providers

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

const githubAPIURL = "https://api.github.com"

// GitHub resolves an authenticated GitHub user's primary, verified email.
type GitHub struct {
	clientID     string
	clientSecret string
	redirectURI  string
}

var _ Provider = (*GitHub)(nil)

// NewGitHub returns a GitHub provider configured for a single registered
// OAuth application.
func NewGitHub(clientID, clientSecret, redirectURI string) *GitHub {
	return &GitHub{clientID: clientID, clientSecret: clientSecret, redirectURI: redirectURI}
}

func (g *GitHub) config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     g.clientID,
		ClientSecret: g.clientSecret,
		RedirectURL:  g.redirectURI,
		Endpoint:     github.Endpoint,
		// user:email is the minimum scope letting us read private-but-verified
		// primary emails via /user/emails.
		Scopes: []string{"user:email"},
	}
}

func (g *GitHub) LoginURL(callbackURL, state string) (string, error) {
	if callbackURL != g.redirectURI {
		return "", fmt.Errorf("github: callback URL %q does not match configured redirect %q", callbackURL, g.redirectURI)
	}
	return g.config().AuthCodeURL(state), nil
}

func (g *GitHub) Exchange(ctx context.Context, callbackURL, code string) (string, error) {
	client, err := exchange(ctx, g.config(), callbackURL, g.redirectURI, code)
	if err != nil {
		return "", fmt.Errorf("github: %w", err)
	}

	var u struct {
		Email string `json:"email"`
	}
	if err := get(ctx, client, githubAPIURL+"/user", &u); err != nil {
		return "", fmt.Errorf("github: get user: %w", err)
	}

	// GET /user only returns a public email; fall back to the verified,
	// primary address from /user/emails when it's private.
	if u.Email != "" {
		return u.Email, nil
	}

	var emails []struct {
		Email    string `json:"email"`
		Verified bool   `json:"verified"`
		Primary  bool   `json:"primary"`
	}
	if err := get(ctx, client, githubAPIURL+"/user/emails", &emails); err != nil {
		return "", fmt.Errorf("github: get emails: %w", err)
	}
	for _, e := range emails {
		if e.Verified && e.Primary {
			return e.Email, nil
		}
	}
	return "", fmt.Errorf("github: user has no verified, primary email")
}
