package providers

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
)

const (
	microsoftAuthorizeURL = "https://login.microsoftonline.com/%s/oauth2/v2.0/authorize"
	microsoftTokenURL     = "https://login.microsoftonline.com/%s/oauth2/v2.0/token"
	microsoftGraphMeURL   = "https://graph.microsoft.com/v1.0/me"
)

// Microsoft resolves an authenticated Microsoft Graph user's email via the
// "common" multi-tenant endpoint unless a specific tenant is configured.
type Microsoft struct {
	clientID     string
	clientSecret string
	redirectURI  string
	tenant       string
}

var _ Provider = (*Microsoft)(nil)

// NewMicrosoft returns a Microsoft provider. An empty tenant defaults to
// "common", allowing both personal and work/school accounts.
func NewMicrosoft(clientID, clientSecret, redirectURI, tenant string) *Microsoft {
	if tenant == "" {
		tenant = "common"
	}
	return &Microsoft{clientID: clientID, clientSecret: clientSecret, redirectURI: redirectURI, tenant: tenant}
}

func (m *Microsoft) config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     m.clientID,
		ClientSecret: m.clientSecret,
		RedirectURL:  m.redirectURI,
		Endpoint: oauth2.Endpoint{
			AuthURL:  fmt.Sprintf(microsoftAuthorizeURL, m.tenant),
			TokenURL: fmt.Sprintf(microsoftTokenURL, m.tenant),
		},
		Scopes: []string{"openid", "profile", "email", "User.Read"},
	}
}

func (m *Microsoft) LoginURL(callbackURL, state string) (string, error) {
	if callbackURL != m.redirectURI {
		return "", fmt.Errorf("microsoft: callback URL %q does not match configured redirect %q", callbackURL, m.redirectURI)
	}
	return m.config().AuthCodeURL(state), nil
}

func (m *Microsoft) Exchange(ctx context.Context, callbackURL, code string) (string, error) {
	client, err := exchange(ctx, m.config(), callbackURL, m.redirectURI, code)
	if err != nil {
		return "", fmt.Errorf("microsoft: %w", err)
	}

	var u struct {
		Mail              string `json:"mail"`
		UserPrincipalName string `json:"userPrincipalName"`
	}
	if err := get(ctx, client, microsoftGraphMeURL, &u); err != nil {
		return "", fmt.Errorf("microsoft: get user: %w", err)
	}

	// "mail" is unset for accounts provisioned without a mailbox; Graph
	// guarantees userPrincipalName is always a routable address in that case.
	if u.Mail != "" {
		return u.Mail, nil
	}
	if u.UserPrincipalName != "" {
		return u.UserPrincipalName, nil
	}
	return "", fmt.Errorf("microsoft: user has no email or userPrincipalName")
}
