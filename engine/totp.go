package engine

import (
	"context"

	"github.com/dexidp/sso/audit"
	"github.com/dexidp/sso/ssoerr"
	"github.com/dexidp/sso/storage"
)

// Totp verifies a time-based one-time code against the shared secret held
// in the user's Totp-type key, allowing one step of clock skew.
func (e *Engine) Totp(ctx context.Context, serviceKeyValue string, meta storage.AuditMeta, userID, code string) error {
	svc, err := e.authenticateService(ctx, serviceKeyValue)
	if err != nil {
		return err
	}

	ab := audit.New(e.driver, e.logger, meta)
	ab.SetService(svc.ID)

	user, err := e.loadEnabledUserByID(ctx, svc.ID, userID)
	if err != nil {
		_ = ab.Create(ctx, storage.AuditTotpVerifyError, nil)
		return err
	}
	ab.SetUser(user.ID)

	totpKey, err := e.keys.ReadByUser(ctx, svc.ID, user.ID, storage.KeyTypeTotp)
	if err != nil {
		_ = ab.Create(ctx, storage.AuditTotpVerifyError, nil)
		return err
	}
	ab.SetUserKey(totpKey.ID)

	if !e.totp.Validate(totpKey.Value, code) {
		_ = ab.Create(ctx, storage.AuditTotpVerifyError, nil)
		return ssoerr.New(ssoerr.BadRequest, "invalid code")
	}

	_ = ab.Create(ctx, storage.AuditTotpVerify, nil)
	return nil
}
