package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dexidp/sso/oauth2login"
	"github.com/dexidp/sso/oauth2login/providers"
	"github.com/dexidp/sso/storage"
	"github.com/dexidp/sso/storage/memory"
	"github.com/dexidp/sso/storage/sql"
	transporthttp "github.com/dexidp/sso/transport/http"
)

// Config is the config format for the main application.
type Config struct {
	// Issuer names this deployment in TOTP provisioning URIs; it has no
	// effect on token contents.
	Issuer string `json:"issuer"`

	Storage Storage `json:"storage"`
	Web     Web     `json:"web"`
	OAuth2  OAuth2  `json:"oauth2"`
	Expiry  Expiry  `json:"expiry"`
	Logger  Logger  `json:"logger"`
}

// Validate the configuration.
func (c Config) Validate() error {
	checks := []struct {
		bad    bool
		errMsg string
	}{
		{c.Storage.Config == nil, "no storage supplied in config file"},
		{c.Web.HTTP == "" && c.Web.HTTPS == "", "must supply a HTTP/HTTPS address to listen on"},
		{c.Web.HTTPS != "" && c.Web.TLSCert == "", "no cert specified for HTTPS"},
		{c.Web.HTTPS != "" && c.Web.TLSKey == "", "no private key specified for HTTPS"},
	}

	var checkErrors []string
	for _, check := range checks {
		if check.bad {
			checkErrors = append(checkErrors, check.errMsg)
		}
	}
	if len(checkErrors) != 0 {
		return fmt.Errorf("invalid config:\n\t-\t%s", strings.Join(checkErrors, "\n\t-\t"))
	}
	return nil
}

// Web is the config format for the HTTP server.
type Web struct {
	HTTP    string `json:"http"`
	HTTPS   string `json:"https"`
	TLSCert string `json:"tlsCert"`
	TLSKey  string `json:"tlsKey"`
}

// Storage holds the app's storage configuration.
type Storage struct {
	Type   string        `json:"type"`
	Config StorageConfig `json:"config"`
}

// StorageConfig is a configuration that can open a storage.Driver.
type StorageConfig interface {
	Open(logger *slog.Logger) (storage.Driver, error)
}

var storages = map[string]func() StorageConfig{
	"memory":   func() StorageConfig { return new(memory.Config) },
	"sqlite3":  func() StorageConfig { return new(sqliteConfig) },
	"postgres": func() StorageConfig { return new(postgresConfig) },
	"mysql":    func() StorageConfig { return new(mysqlConfig) },
}

// UnmarshalJSON allows Storage to implement the unmarshaler interface to
// dynamically determine the type of the storage config.
func (s *Storage) UnmarshalJSON(b []byte) error {
	var store struct {
		Type   string          `json:"type"`
		Config json.RawMessage `json:"config"`
	}
	if err := json.Unmarshal(b, &store); err != nil {
		return fmt.Errorf("parse storage: %v", err)
	}
	f, ok := storages[store.Type]
	if !ok {
		return fmt.Errorf("unknown storage type %q", store.Type)
	}

	storageConfig := f()
	if len(store.Config) != 0 {
		if err := json.Unmarshal(store.Config, storageConfig); err != nil {
			return fmt.Errorf("parse storage config: %v", err)
		}
	}
	*s = Storage{
		Type:   store.Type,
		Config: storageConfig,
	}
	return nil
}

// sqliteConfig, postgresConfig and mysqlConfig adapt storage/sql's
// logrus.FieldLogger-based backends to the slog.Logger-based StorageConfig
// every other backend in this binary satisfies. The SQL driver package logs
// its own connection and migration diagnostics through logrus; nothing else
// in this binary does, so that logger is private to the adapter and never
// shared with the application's own logger.

type sqliteConfig struct {
	sql.SQLite3
}

func (c *sqliteConfig) Open(logger *slog.Logger) (storage.Driver, error) {
	return c.SQLite3.Open(sqlDiagnosticLogger())
}

type postgresConfig struct {
	sql.Postgres
}

func (c *postgresConfig) Open(logger *slog.Logger) (storage.Driver, error) {
	return c.Postgres.Open(sqlDiagnosticLogger())
}

type mysqlConfig struct {
	sql.MySQL
}

func (c *mysqlConfig) Open(logger *slog.Logger) (storage.Driver, error) {
	return c.MySQL.Open(sqlDiagnosticLogger())
}

func sqlDiagnosticLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetLevel(logrus.InfoLevel)
	return l
}

// Expiry holds the token lifetimes the server applies to every request, as
// duration strings such as "15m" or "720h".
type Expiry struct {
	AccessToken        string `json:"accessToken"`
	RefreshToken       string `json:"refreshToken"`
	PasswordResetToken string `json:"passwordResetToken"`
	AccountRevokeToken string `json:"accountRevokeToken"`
}

// ttlConfig resolves e against def, parsing any duration string that was
// set and falling back to def's value for anything left blank.
func (e Expiry) ttlConfig(def transporthttp.TTLConfig) (transporthttp.TTLConfig, error) {
	ttl := def
	for _, field := range []struct {
		value string
		dst   *time.Duration
	}{
		{e.AccessToken, &ttl.AccessToken},
		{e.RefreshToken, &ttl.RefreshToken},
		{e.PasswordResetToken, &ttl.PasswordResetToken},
		{e.AccountRevokeToken, &ttl.AccountRevokeToken},
	} {
		if field.value == "" {
			continue
		}
		d, err := time.ParseDuration(field.value)
		if err != nil {
			return transporthttp.TTLConfig{}, fmt.Errorf("parse expiry: %v", err)
		}
		*field.dst = d
	}
	return ttl, nil
}

// OAuth2 configures the optional external login providers. A service still
// decides, via its own stored callback URLs, which of these it accepts.
type OAuth2 struct {
	GitHub    *GitHubProvider    `json:"github,omitempty"`
	Microsoft *MicrosoftProvider `json:"microsoft,omitempty"`
}

// GitHubProvider is the registered OAuth application GitHub logins use.
type GitHubProvider struct {
	ClientID     string `json:"clientID"`
	ClientSecret string `json:"clientSecret"`
	RedirectURI  string `json:"redirectURI"`
}

// MicrosoftProvider is the registered Azure AD application Microsoft logins
// use. An empty Tenant defaults to "common".
type MicrosoftProvider struct {
	ClientID     string `json:"clientID"`
	ClientSecret string `json:"clientSecret"`
	RedirectURI  string `json:"redirectURI"`
	Tenant       string `json:"tenant,omitempty"`
}

// registry builds the provider registry the configured providers describe.
// The returned registry is never nil, even with no providers configured; its
// routes simply fail with an unknown-provider error.
func (o OAuth2) registry() *oauth2login.Registry {
	r := oauth2login.NewRegistry()
	if o.GitHub != nil {
		r.Register("github", providers.NewGitHub(o.GitHub.ClientID, o.GitHub.ClientSecret, o.GitHub.RedirectURI))
	}
	if o.Microsoft != nil {
		r.Register("microsoft", providers.NewMicrosoft(o.Microsoft.ClientID, o.Microsoft.ClientSecret, o.Microsoft.RedirectURI, o.Microsoft.Tenant))
	}
	return r
}

// Logger holds configuration required to customize the application's
// structured logging.
type Logger struct {
	// Level sets logging level severity.
	Level string `json:"level"`

	// Format specifies the format to be used for logging.
	Format string `json:"format"`
}
