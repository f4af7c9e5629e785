package engine

import (
	"context"
	"time"

	"github.com/dexidp/sso/audit"
	"github.com/dexidp/sso/jwtcodec"
	"github.com/dexidp/sso/passwordhash"
	"github.com/dexidp/sso/ssoerr"
	"github.com/dexidp/sso/storage"
)

// ResetPassword mints a one-shot, CSRF-bound reset token for a user
// identified by email, for the transport to deliver out-of-band.
func (e *Engine) ResetPassword(ctx context.Context, serviceKeyValue string, meta storage.AuditMeta, email string, tokenTTL time.Duration) (storage.User, string, error) {
	svc, err := e.authenticateService(ctx, serviceKeyValue)
	if err != nil {
		return storage.User{}, "", err
	}

	ab := audit.New(e.driver, e.logger, meta)
	ab.SetService(svc.ID)

	user, err := e.loadEnabledUserByEmail(ctx, svc.ID, email)
	if err != nil {
		_ = ab.Create(ctx, storage.AuditPasswordResetRequestError, nil)
		return storage.User{}, "", err
	}
	ab.SetUser(user.ID)

	tokenKey, err := e.keys.ReadByUser(ctx, svc.ID, user.ID, storage.KeyTypeToken)
	if err != nil {
		_ = ab.Create(ctx, storage.AuditPasswordResetRequestError, nil)
		return storage.User{}, "", err
	}
	ab.SetUserKey(tokenKey.ID)

	csrfKey, err := e.csrf.Create(ctx, svc.ID, tokenTTL)
	if err != nil {
		return storage.User{}, "", ssoerr.Wrap(ssoerr.Driver, "create csrf", err)
	}

	token, _, err := jwtcodec.Encode(svc.ID, user.ID, storage.ClaimsResetPasswordToken, csrfKey, tokenKey.Value, tokenTTL)
	if err != nil {
		return storage.User{}, "", ssoerr.Wrap(ssoerr.Driver, "encode reset token", err)
	}

	_ = ab.Create(ctx, storage.AuditPasswordResetRequest, nil)
	return user, token, nil
}

// ResetPasswordConfirm consumes a reset token's CSRF nonce and applies the
// new password hash. A second presentation of the same token always fails.
func (e *Engine) ResetPasswordConfirm(ctx context.Context, serviceKeyValue string, meta storage.AuditMeta, token, newPassword string) (int64, error) {
	svc, err := e.authenticateService(ctx, serviceKeyValue)
	if err != nil {
		return 0, err
	}

	ab := audit.New(e.driver, e.logger, meta)
	ab.SetService(svc.ID)

	userID, claimsType, err := jwtcodec.DecodeUnsafe(svc.ID, token)
	if err != nil || claimsType != storage.ClaimsResetPasswordToken {
		_ = ab.Create(ctx, storage.AuditPasswordResetConfirmError, nil)
		return 0, ssoerr.New(ssoerr.BadRequest, "invalid token")
	}

	user, err := e.loadEnabledUserByID(ctx, svc.ID, userID)
	if err != nil {
		_ = ab.Create(ctx, storage.AuditPasswordResetConfirmError, nil)
		return 0, err
	}
	ab.SetUser(user.ID)

	tokenKey, err := e.keys.ReadByUser(ctx, svc.ID, user.ID, storage.KeyTypeToken)
	if err != nil {
		_ = ab.Create(ctx, storage.AuditPasswordResetConfirmError, nil)
		return 0, err
	}
	ab.SetUserKey(tokenKey.ID)

	_, csrfKey, err := jwtcodec.Decode(svc.ID, user.ID, storage.ClaimsResetPasswordToken, tokenKey.Value, token)
	if err != nil {
		_ = ab.Create(ctx, storage.AuditPasswordResetConfirmError, nil)
		return 0, ssoerr.New(ssoerr.BadRequest, "invalid or expired token")
	}

	if err := e.csrf.Check(ctx, csrfKey); err != nil {
		_ = ab.Create(ctx, storage.AuditPasswordResetConfirmErrorCsrf, nil)
		return 0, ssoerr.New(ssoerr.BadRequest, "reset token already used")
	}

	hash, err := passwordhash.Hash(newPassword)
	if err != nil {
		return 0, ssoerr.Wrap(ssoerr.Driver, "hash password", err)
	}

	if _, err := e.driver.UserUpdatePassword(ctx, user.ID, hash); err != nil {
		return 0, ssoerr.Wrap(ssoerr.Driver, "update password", err)
	}

	_ = ab.Create(ctx, storage.AuditPasswordResetConfirm, nil)
	return 1, nil
}

// UpdatePassword changes an authenticated user's password after verifying
// their current one, and mints a revoke token the transport should deliver
// to the user's known-good address as a break-glass link.
func (e *Engine) UpdatePassword(ctx context.Context, serviceKeyValue string, meta storage.AuditMeta, auth CallerAuth, password, newPassword string, revokeTTL time.Duration) (storage.User, string, error) {
	svc, err := e.authenticateService(ctx, serviceKeyValue)
	if err != nil {
		return storage.User{}, "", err
	}

	ab := audit.New(e.driver, e.logger, meta)
	ab.SetService(svc.ID)

	user, tokenKey, err := e.resolveAuthenticatedUser(ctx, svc, auth, ab)
	if err != nil {
		_ = ab.Create(ctx, storage.AuditPasswordUpdateError, nil)
		return storage.User{}, "", err
	}

	if passwordhash.Verify(user.PasswordHash, password) != passwordhash.Ok {
		_ = ab.Create(ctx, storage.AuditPasswordUpdateError, nil)
		return storage.User{}, "", ssoerr.New(ssoerr.BadRequest, "invalid credentials")
	}

	hash, err := passwordhash.Hash(newPassword)
	if err != nil {
		return storage.User{}, "", ssoerr.Wrap(ssoerr.Driver, "hash password", err)
	}

	csrfKey, err := e.csrf.Create(ctx, svc.ID, revokeTTL)
	if err != nil {
		return storage.User{}, "", ssoerr.Wrap(ssoerr.Driver, "create csrf", err)
	}

	revokeToken, _, err := jwtcodec.Encode(svc.ID, user.ID, storage.ClaimsUpdatePasswordRevokeToken, csrfKey, tokenKey.Value, revokeTTL)
	if err != nil {
		return storage.User{}, "", ssoerr.Wrap(ssoerr.Driver, "encode revoke token", err)
	}

	updated, err := e.driver.UserUpdatePassword(ctx, user.ID, hash)
	if err != nil {
		return storage.User{}, "", ssoerr.Wrap(ssoerr.Driver, "update password", err)
	}

	_ = ab.Create(ctx, storage.AuditPasswordUpdate, nil)
	return updated, revokeToken, nil
}

// UpdatePasswordRevoke is the break-glass path entered via the link
// UpdatePassword minted: it disables the user and revokes every key they
// own, on the assumption the password change was not authorized.
func (e *Engine) UpdatePasswordRevoke(ctx context.Context, serviceKeyValue string, meta storage.AuditMeta, token string) (int64, error) {
	return e.revokeAccountBreakGlass(ctx, serviceKeyValue, meta, token,
		storage.ClaimsUpdatePasswordRevokeToken,
		storage.AuditPasswordUpdateRevoke,
		storage.AuditPasswordUpdateRevokeError)
}
