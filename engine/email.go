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

// UpdateEmail changes an authenticated user's email after verifying their
// current password, and mints a revoke token the transport should deliver
// to the old address so the user can undo an unauthorized change.
func (e *Engine) UpdateEmail(ctx context.Context, serviceKeyValue string, meta storage.AuditMeta, auth CallerAuth, password, newEmail string, revokeTTL time.Duration) (storage.User, string, string, error) {
	svc, err := e.authenticateService(ctx, serviceKeyValue)
	if err != nil {
		return storage.User{}, "", "", err
	}

	ab := audit.New(e.driver, e.logger, meta)
	ab.SetService(svc.ID)

	user, tokenKey, err := e.resolveAuthenticatedUser(ctx, svc, auth, ab)
	if err != nil {
		_ = ab.Create(ctx, storage.AuditEmailUpdateError, nil)
		return storage.User{}, "", "", err
	}

	if passwordhash.Verify(user.PasswordHash, password) != passwordhash.Ok {
		_ = ab.Create(ctx, storage.AuditEmailUpdateError, nil)
		return storage.User{}, "", "", ssoerr.New(ssoerr.BadRequest, "invalid credentials")
	}

	csrfKey, err := e.csrf.Create(ctx, svc.ID, revokeTTL)
	if err != nil {
		return storage.User{}, "", "", ssoerr.Wrap(ssoerr.Driver, "create csrf", err)
	}

	revokeToken, _, err := jwtcodec.Encode(svc.ID, user.ID, storage.ClaimsUpdateEmailRevokeToken, csrfKey, tokenKey.Value, revokeTTL)
	if err != nil {
		return storage.User{}, "", "", ssoerr.Wrap(ssoerr.Driver, "encode revoke token", err)
	}

	oldEmail := user.Email
	updated, err := e.driver.UserUpdateEmail(ctx, user.ID, newEmail)
	if err != nil {
		return storage.User{}, "", "", ssoerr.Wrap(ssoerr.Driver, "update email", err)
	}

	_ = ab.Create(ctx, storage.AuditEmailUpdate, nil)
	return updated, oldEmail, revokeToken, nil
}

// UpdateEmailRevoke is the break-glass path entered via the link
// UpdateEmail minted: it disables the user and revokes every key they own,
// on the assumption the email change was not authorized.
func (e *Engine) UpdateEmailRevoke(ctx context.Context, serviceKeyValue string, meta storage.AuditMeta, token string) (int64, error) {
	return e.revokeAccountBreakGlass(ctx, serviceKeyValue, meta, token,
		storage.ClaimsUpdateEmailRevokeToken,
		storage.AuditEmailUpdateRevoke,
		storage.AuditEmailUpdateRevokeError)
}

// revokeAccountBreakGlass implements the shared tail of update_email_revoke
// and update_password_revoke: the decoded token need not belong to an
// enabled user, since its whole purpose is to recover a compromised one.
func (e *Engine) revokeAccountBreakGlass(ctx context.Context, serviceKeyValue string, meta storage.AuditMeta, token string, claimsType storage.ClaimsType, successType, errorType storage.AuditType) (int64, error) {
	svc, err := e.authenticateService(ctx, serviceKeyValue)
	if err != nil {
		return 0, err
	}

	ab := audit.New(e.driver, e.logger, meta)
	ab.SetService(svc.ID)

	userID, decodedType, err := jwtcodec.DecodeUnsafe(svc.ID, token)
	if err != nil || decodedType != claimsType {
		_ = ab.Create(ctx, errorType, nil)
		return 0, ssoerr.New(ssoerr.BadRequest, "invalid token")
	}

	user, err := e.driver.UserReadByID(ctx, svc.ID, userID)
	if err != nil {
		_ = ab.Create(ctx, errorType, nil)
		return 0, ssoerr.New(ssoerr.BadRequest, "invalid token")
	}
	ab.SetUser(user.ID)

	tokenKey, err := e.keys.ReadByUserUnchecked(ctx, svc.ID, user.ID, storage.KeyTypeToken)
	if err != nil {
		_ = ab.Create(ctx, errorType, nil)
		return 0, err
	}
	ab.SetUserKey(tokenKey.ID)

	_, csrfKey, err := jwtcodec.Decode(svc.ID, user.ID, claimsType, tokenKey.Value, token)
	if err != nil {
		_ = ab.Create(ctx, errorType, nil)
		return 0, ssoerr.New(ssoerr.BadRequest, "invalid or expired token")
	}

	if err := e.csrf.Check(ctx, csrfKey); err != nil {
		_ = ab.Create(ctx, errorType, nil)
		return 0, ssoerr.New(ssoerr.BadRequest, "revoke token already used")
	}

	disabled := false
	if _, err := e.driver.UserUpdate(ctx, user.ID, storage.UserUpdate{IsEnabled: &disabled}); err != nil {
		return 0, ssoerr.Wrap(ssoerr.Driver, "disable user", err)
	}

	revoked, err := e.keys.DisableAndRevokeAllByUser(ctx, user.ID)
	if err != nil {
		return 0, err
	}

	_ = ab.Create(ctx, successType, nil)
	return 1 + revoked, nil
}
