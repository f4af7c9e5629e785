// Package http is a thin, service-key-authenticated HTTP transport over
// package engine. It exists so the engine has one real caller in this
// repository; it is a demonstration harness, not a general-purpose REST or
// gRPC surface.
package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/dexidp/sso/engine"
	"github.com/dexidp/sso/oauth2login"
	"github.com/dexidp/sso/storage"
)

// TTLConfig holds the token and one-shot-token lifetimes the server applies
// to every request; the engine itself is stateless with respect to these
// durations and takes them as explicit arguments on every call.
type TTLConfig struct {
	AccessToken        time.Duration
	RefreshToken       time.Duration
	PasswordResetToken time.Duration
	AccountRevokeToken time.Duration
}

// DefaultTTLConfig returns conservative lifetimes suitable for a first run.
func DefaultTTLConfig() TTLConfig {
	return TTLConfig{
		AccessToken:        15 * time.Minute,
		RefreshToken:       30 * 24 * time.Hour,
		PasswordResetToken: time.Hour,
		AccountRevokeToken: 7 * 24 * time.Hour,
	}
}

// Server adapts package engine's operations to JSON-over-HTTP, one route
// per auth-engine operation, authenticated by the caller's service key in
// the X-Service-Key header.
type Server struct {
	engine *engine.Engine
	driver storage.Driver
	oauth  *oauth2login.Registry
	logger *slog.Logger
	ttl    TTLConfig
}

// New returns a Server backed by eng. driver is used only for the read-only
// service lookups package oauth2login needs to validate a provider callback
// URL; oauth may be nil if no OAuth2 provider is configured, in which case
// the oauth2 routes always fail.
func New(eng *engine.Engine, driver storage.Driver, oauth *oauth2login.Registry, logger *slog.Logger, ttl TTLConfig) *Server {
	return &Server{engine: eng, driver: driver, oauth: oauth, logger: logger, ttl: ttl}
}

// Handler builds the routed http.Handler for the server.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter().SkipClean(true)
	r.NotFoundHandler = http.NotFoundHandler()

	handle := func(method, path string, h http.HandlerFunc) {
		r.HandleFunc(path, s.withRequestContext(h)).Methods(method)
	}

	handle(http.MethodPost, "/v1/login", s.handleLogin)
	handle(http.MethodPost, "/v1/token/verify", s.handleTokenVerify)
	handle(http.MethodPost, "/v1/token/refresh", s.handleTokenRefresh)
	handle(http.MethodPost, "/v1/token/revoke", s.handleTokenRevoke)
	handle(http.MethodPost, "/v1/key/verify", s.handleKeyVerify)
	handle(http.MethodPost, "/v1/key/revoke", s.handleKeyRevoke)
	handle(http.MethodPost, "/v1/password/reset", s.handleResetPassword)
	handle(http.MethodPost, "/v1/password/reset/confirm", s.handleResetPasswordConfirm)
	handle(http.MethodPost, "/v1/password/update", s.handleUpdatePassword)
	handle(http.MethodPost, "/v1/password/update/revoke", s.handleUpdatePasswordRevoke)
	handle(http.MethodPost, "/v1/email/update", s.handleUpdateEmail)
	handle(http.MethodPost, "/v1/email/update/revoke", s.handleUpdateEmailRevoke)
	handle(http.MethodPost, "/v1/totp/verify", s.handleTotp)
	handle(http.MethodPost, "/v1/oauth2/login/url", s.handleOAuth2LoginURL)
	handle(http.MethodPost, "/v1/oauth2/login", s.handleOAuth2Login)

	return r
}

func (s *Server) withRequestContext(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := withRequestID(r.Context())
		ctx = withRemoteIP(ctx, remoteIP(r))
		h(w, r.WithContext(ctx))
	}
}

func auditMeta(r *http.Request) storage.AuditMeta {
	return storage.AuditMeta{
		RemoteAddr:   remoteIP(r),
		UserAgent:    r.UserAgent(),
		ForwardedFor: r.Header.Get("X-Forwarded-For"),
	}
}

func serviceKey(r *http.Request) string {
	return r.Header.Get("X-Service-Key")
}
