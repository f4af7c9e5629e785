// Package engine implements the authentication state machine: the
// operations that compose the password hasher, JWT codec, CSRF store, key
// resolver and audit builder into the login, verify, refresh, revoke,
// reset and update flows.
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/dexidp/sso/audit"
	"github.com/dexidp/sso/csrfstore"
	"github.com/dexidp/sso/jwtcodec"
	"github.com/dexidp/sso/keyresolver"
	"github.com/dexidp/sso/ssoerr"
	"github.com/dexidp/sso/storage"
	"github.com/dexidp/sso/totp"
)

// Engine composes the core building blocks into the request-level
// operations a transport calls. It holds no mutable state of its own; the
// driver is the only shared resource.
//
// Engine never talks to an external identity provider directly. A caller
// completing an OAuth2 login exchanges the provider's code for a verified
// email itself (see package oauth2login) and passes that email to
// OAuth2Login; the engine only ever consumes the result.
type Engine struct {
	driver storage.Driver
	logger *slog.Logger
	keys   *keyresolver.Resolver
	csrf   *csrfstore.Store
	totp   *totp.Verifier
}

// New returns an Engine backed by driver. totpVerifier may be nil if Totp
// is never called.
func New(driver storage.Driver, logger *slog.Logger, totpVerifier *totp.Verifier) *Engine {
	return &Engine{
		driver: driver,
		logger: logger,
		keys:   keyresolver.New(driver),
		csrf:   csrfstore.New(driver, logger),
		totp:   totpVerifier,
	}
}

// authenticateService resolves the caller as a service key. It never
// distinguishes "no such key" from "key disabled" in its error.
func (e *Engine) authenticateService(ctx context.Context, serviceKeyValue string) (storage.Service, error) {
	k, err := e.keys.ReadByServiceValue(ctx, serviceKeyValue)
	if err != nil {
		return storage.Service{}, ssoerr.New(ssoerr.Forbidden, "invalid service credentials")
	}

	svc, err := e.driver.ServiceCheckEnabled(ctx, k.ServiceID)
	if err != nil {
		if err == storage.ErrServiceDisabled {
			return storage.Service{}, ssoerr.New(ssoerr.ServiceDisabled, "service disabled")
		}
		return storage.Service{}, ssoerr.Wrap(ssoerr.Driver, "read service", err)
	}
	return svc, nil
}

func (e *Engine) loadEnabledUserByEmail(ctx context.Context, serviceID, email string) (storage.User, error) {
	u, err := e.driver.UserReadByEmail(ctx, serviceID, email)
	if err != nil {
		if err == storage.ErrNotFound {
			return storage.User{}, ssoerr.New(ssoerr.BadRequest, "user not found or disabled")
		}
		return storage.User{}, ssoerr.Wrap(ssoerr.Driver, "read user", err)
	}
	if !u.IsEnabled {
		return storage.User{}, ssoerr.New(ssoerr.BadRequest, "user not found or disabled")
	}
	return u, nil
}

func (e *Engine) loadEnabledUserByID(ctx context.Context, serviceID, id string) (storage.User, error) {
	u, err := e.driver.UserReadByID(ctx, serviceID, id)
	if err != nil {
		if err == storage.ErrNotFound {
			return storage.User{}, ssoerr.New(ssoerr.BadRequest, "user not found or disabled")
		}
		return storage.User{}, ssoerr.Wrap(ssoerr.Driver, "read user", err)
	}
	if !u.IsEnabled {
		return storage.User{}, ssoerr.New(ssoerr.BadRequest, "user not found or disabled")
	}
	return u, nil
}

// mintTokenPair implements the shared tail of login, token_refresh and
// oauth2_login: a CSRF-free access token and a CSRF-bound refresh token,
// both signed with the user's Token key value.
func (e *Engine) mintTokenPair(ctx context.Context, serviceID, userID, signingKey string, accessTTL, refreshTTL time.Duration) (UserToken, error) {
	access, accessExp, err := jwtcodec.Encode(serviceID, userID, storage.ClaimsAccessToken, "", signingKey, accessTTL)
	if err != nil {
		return UserToken{}, ssoerr.Wrap(ssoerr.Driver, "encode access token", err)
	}

	csrfKey, err := e.csrf.Create(ctx, serviceID, refreshTTL)
	if err != nil {
		return UserToken{}, ssoerr.Wrap(ssoerr.Driver, "create refresh csrf", err)
	}

	refresh, refreshExp, err := jwtcodec.Encode(serviceID, userID, storage.ClaimsRefreshToken, csrfKey, signingKey, refreshTTL)
	if err != nil {
		return UserToken{}, ssoerr.Wrap(ssoerr.Driver, "encode refresh token", err)
	}

	return UserToken{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// resolveAuthenticatedUser implements the shared prologue of update_email
// and update_password: the caller proves they are a specific user via
// either a long-lived key or a short-lived access token, never both.
func (e *Engine) resolveAuthenticatedUser(ctx context.Context, svc storage.Service, auth CallerAuth, ab *audit.Builder) (storage.User, storage.Key, error) {
	hasKey := auth.KeyValue != ""
	hasToken := auth.Token != ""
	if hasKey == hasToken {
		return storage.User{}, storage.Key{}, ssoerr.New(ssoerr.Forbidden, "exactly one of key or token is required")
	}

	if hasKey {
		k, err := e.keys.ReadByUserValue(ctx, svc.ID, auth.KeyValue, storage.KeyTypeKey)
		if err != nil {
			return storage.User{}, storage.Key{}, err
		}
		user, err := e.loadEnabledUserByID(ctx, svc.ID, k.UserID)
		if err != nil {
			return storage.User{}, storage.Key{}, err
		}
		ab.SetUser(user.ID)
		ab.SetUserKey(k.ID)

		tokenKey, err := e.keys.ReadByUser(ctx, svc.ID, user.ID, storage.KeyTypeToken)
		if err != nil {
			return storage.User{}, storage.Key{}, err
		}
		return user, tokenKey, nil
	}

	userID, claimsType, err := jwtcodec.DecodeUnsafe(svc.ID, auth.Token)
	if err != nil || claimsType != storage.ClaimsAccessToken {
		return storage.User{}, storage.Key{}, ssoerr.New(ssoerr.BadRequest, "invalid token")
	}

	user, err := e.loadEnabledUserByID(ctx, svc.ID, userID)
	if err != nil {
		return storage.User{}, storage.Key{}, err
	}
	ab.SetUser(user.ID)

	tokenKey, err := e.keys.ReadByUser(ctx, svc.ID, user.ID, storage.KeyTypeToken)
	if err != nil {
		return storage.User{}, storage.Key{}, err
	}
	ab.SetUserKey(tokenKey.ID)

	if _, _, err := jwtcodec.Decode(svc.ID, user.ID, storage.ClaimsAccessToken, tokenKey.Value, auth.Token); err != nil {
		return storage.User{}, storage.Key{}, ssoerr.New(ssoerr.BadRequest, "invalid or expired token")
	}
	return user, tokenKey, nil
}
