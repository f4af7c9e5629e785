package engine

import (
	"context"
	"time"

	"github.com/dexidp/sso/audit"
	"github.com/dexidp/sso/passwordhash"
	"github.com/dexidp/sso/ssoerr"
	"github.com/dexidp/sso/storage"
)

// Login authenticates an end user by email and password and mints a fresh
// access/refresh token pair signed with the user's Token key.
func (e *Engine) Login(ctx context.Context, serviceKeyValue string, meta storage.AuditMeta, email, password string, accessTTL, refreshTTL time.Duration) (UserToken, error) {
	svc, err := e.authenticateService(ctx, serviceKeyValue)
	if err != nil {
		return UserToken{}, err
	}

	ab := audit.New(e.driver, e.logger, meta)
	ab.SetService(svc.ID)

	user, err := e.loadEnabledUserByEmail(ctx, svc.ID, email)
	if err != nil {
		_ = ab.Create(ctx, storage.AuditLoginErrorUserNotFound, nil)
		if ssoerr.Is(err, ssoerr.BadRequest) {
			err = ssoerr.New(ssoerr.BadRequest, "invalid credentials")
		}
		return UserToken{}, err
	}
	ab.SetUser(user.ID)

	tokenKey, err := e.keys.ReadByUser(ctx, svc.ID, user.ID, storage.KeyTypeToken)
	if err != nil {
		_ = ab.Create(ctx, storage.AuditLoginErrorKeyNotFound, nil)
		if ssoerr.Is(err, ssoerr.BadRequest) {
			err = ssoerr.New(ssoerr.BadRequest, "invalid credentials")
		}
		return UserToken{}, err
	}
	ab.SetUserKey(tokenKey.ID)

	if passwordhash.Verify(user.PasswordHash, password) != passwordhash.Ok {
		_ = ab.Create(ctx, storage.AuditLoginErrorPasswordIncorrect, nil)
		return UserToken{}, ssoerr.New(ssoerr.BadRequest, "invalid credentials")
	}

	pair, err := e.mintTokenPair(ctx, svc.ID, user.ID, tokenKey.Value, accessTTL, refreshTTL)
	if err != nil {
		return UserToken{}, err
	}

	_ = ab.Create(ctx, storage.AuditLoginSuccess, nil)
	return pair, nil
}
