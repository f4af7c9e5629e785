package engine

import (
	"context"
	"time"

	"github.com/dexidp/sso/audit"
	"github.com/dexidp/sso/csrfstore"
	"github.com/dexidp/sso/jwtcodec"
	"github.com/dexidp/sso/ssoerr"
	"github.com/dexidp/sso/storage"
)

// TokenVerify checks an access token's signature, audience and expiry. It
// is a pure function of storage state: no CSRF is consumed and nothing is
// written except the audit row.
func (e *Engine) TokenVerify(ctx context.Context, serviceKeyValue string, meta storage.AuditMeta, token string) (UserTokenPartial, error) {
	svc, err := e.authenticateService(ctx, serviceKeyValue)
	if err != nil {
		return UserTokenPartial{}, err
	}

	ab := audit.New(e.driver, e.logger, meta)
	ab.SetService(svc.ID)

	userID, claimsType, err := jwtcodec.DecodeUnsafe(svc.ID, token)
	if err != nil || claimsType != storage.ClaimsAccessToken {
		_ = ab.Create(ctx, storage.AuditTokenVerifyError, nil)
		return UserTokenPartial{}, ssoerr.New(ssoerr.BadRequest, "invalid token")
	}

	user, err := e.loadEnabledUserByID(ctx, svc.ID, userID)
	if err != nil {
		_ = ab.Create(ctx, storage.AuditTokenVerifyError, nil)
		return UserTokenPartial{}, err
	}
	ab.SetUser(user.ID)

	tokenKey, err := e.keys.ReadByUser(ctx, svc.ID, user.ID, storage.KeyTypeToken)
	if err != nil {
		_ = ab.Create(ctx, storage.AuditTokenVerifyError, nil)
		return UserTokenPartial{}, err
	}
	ab.SetUserKey(tokenKey.ID)

	exp, _, err := jwtcodec.Decode(svc.ID, user.ID, storage.ClaimsAccessToken, tokenKey.Value, token)
	if err != nil {
		_ = ab.Create(ctx, storage.AuditTokenVerifyError, nil)
		return UserTokenPartial{}, ssoerr.New(ssoerr.BadRequest, "invalid or expired token")
	}

	_ = ab.Create(ctx, storage.AuditTokenVerify, nil)
	return UserTokenPartial{UserID: user.ID, Token: token, ExpiresAt: exp}, nil
}

// TokenRefresh consumes a refresh token's CSRF nonce and mints a fresh
// token pair. It is the only operation that rotates the refresh token: a
// replay of the same refresh token fails because its nonce is already gone.
func (e *Engine) TokenRefresh(ctx context.Context, serviceKeyValue string, meta storage.AuditMeta, refreshToken string, accessTTL, refreshTTL time.Duration) (UserToken, error) {
	svc, err := e.authenticateService(ctx, serviceKeyValue)
	if err != nil {
		return UserToken{}, err
	}

	ab := audit.New(e.driver, e.logger, meta)
	ab.SetService(svc.ID)

	userID, claimsType, err := jwtcodec.DecodeUnsafe(svc.ID, refreshToken)
	if err != nil || claimsType != storage.ClaimsRefreshToken {
		_ = ab.Create(ctx, storage.AuditTokenRefreshError, nil)
		return UserToken{}, ssoerr.New(ssoerr.BadRequest, "invalid token")
	}

	user, err := e.loadEnabledUserByID(ctx, svc.ID, userID)
	if err != nil {
		_ = ab.Create(ctx, storage.AuditTokenRefreshError, nil)
		return UserToken{}, err
	}
	ab.SetUser(user.ID)

	tokenKey, err := e.keys.ReadByUser(ctx, svc.ID, user.ID, storage.KeyTypeToken)
	if err != nil {
		_ = ab.Create(ctx, storage.AuditTokenRefreshError, nil)
		return UserToken{}, err
	}
	ab.SetUserKey(tokenKey.ID)

	_, csrfKey, err := jwtcodec.Decode(svc.ID, user.ID, storage.ClaimsRefreshToken, tokenKey.Value, refreshToken)
	if err != nil {
		_ = ab.Create(ctx, storage.AuditTokenRefreshError, nil)
		return UserToken{}, ssoerr.New(ssoerr.BadRequest, "invalid or expired token")
	}

	if err := e.csrf.Check(ctx, csrfKey); err != nil {
		_ = ab.Create(ctx, storage.AuditTokenRefreshErrorCsrf, nil)
		return UserToken{}, ssoerr.New(ssoerr.BadRequest, "refresh token already used")
	}

	pair, err := e.mintTokenPair(ctx, svc.ID, user.ID, tokenKey.Value, accessTTL, refreshTTL)
	if err != nil {
		return UserToken{}, err
	}

	_ = ab.Create(ctx, storage.AuditTokenRefresh, nil)
	return pair, nil
}

// TokenRevoke disables and revokes the Token key backing token, whatever
// its claim type, so every access and refresh token it ever signed becomes
// invalid. It accepts tokens belonging to already-disabled users so
// revocation stays idempotent.
func (e *Engine) TokenRevoke(ctx context.Context, serviceKeyValue string, meta storage.AuditMeta, token string) (int64, error) {
	svc, err := e.authenticateService(ctx, serviceKeyValue)
	if err != nil {
		return 0, err
	}

	ab := audit.New(e.driver, e.logger, meta)
	ab.SetService(svc.ID)

	userID, claimsType, err := jwtcodec.DecodeUnsafe(svc.ID, token)
	if err != nil {
		_ = ab.Create(ctx, storage.AuditTokenRevokeError, nil)
		return 0, ssoerr.New(ssoerr.BadRequest, "invalid token")
	}

	user, err := e.driver.UserReadByID(ctx, svc.ID, userID)
	if err != nil {
		_ = ab.Create(ctx, storage.AuditTokenRevokeError, nil)
		return 0, ssoerr.New(ssoerr.BadRequest, "invalid token")
	}
	ab.SetUser(user.ID)

	tokenKey, err := e.keys.ReadByUserUnchecked(ctx, svc.ID, user.ID, storage.KeyTypeToken)
	if err != nil {
		_ = ab.Create(ctx, storage.AuditTokenRevokeError, nil)
		return 0, err
	}
	ab.SetUserKey(tokenKey.ID)

	_, csrfKey, err := jwtcodec.Decode(svc.ID, user.ID, claimsType, tokenKey.Value, token)
	if err != nil {
		_ = ab.Create(ctx, storage.AuditTokenRevokeError, nil)
		return 0, ssoerr.New(ssoerr.BadRequest, "invalid or expired token")
	}

	if csrfKey != "" {
		if err := e.csrf.Check(ctx, csrfKey); err != nil && !csrfstore.ErrInvalid(err) {
			e.logger.Warn("token_revoke: csrf consumption failed", "err", err)
		}
	}

	if err := e.keys.DisableAndRevoke(ctx, tokenKey.ID); err != nil {
		return 0, err
	}

	_ = ab.Create(ctx, storage.AuditTokenRevoke, nil)
	return 1, nil
}
