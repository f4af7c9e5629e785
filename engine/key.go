package engine

import (
	"context"

	"github.com/dexidp/sso/audit"
	"github.com/dexidp/sso/ssoerr"
	"github.com/dexidp/sso/storage"
)

// KeyVerify resolves an opaque user key value to the user it belongs to.
// Root and service keys are rejected: only keys with both a service and a
// user scope are valid here.
func (e *Engine) KeyVerify(ctx context.Context, serviceKeyValue string, meta storage.AuditMeta, keyValue string) (UserKey, error) {
	svc, err := e.authenticateService(ctx, serviceKeyValue)
	if err != nil {
		return UserKey{}, err
	}

	ab := audit.New(e.driver, e.logger, meta)
	ab.SetService(svc.ID)

	k, err := e.keys.ReadByUserValue(ctx, svc.ID, keyValue, storage.KeyTypeKey)
	if err != nil {
		_ = ab.Create(ctx, storage.AuditKeyVerifyError, nil)
		return UserKey{}, err
	}
	if k.UserID == "" {
		_ = ab.Create(ctx, storage.AuditKeyVerifyError, nil)
		return UserKey{}, ssoerr.New(ssoerr.BadRequest, "not a user key")
	}
	ab.SetUser(k.UserID)
	ab.SetUserKey(k.ID)

	_ = ab.Create(ctx, storage.AuditKeyVerify, nil)
	return UserKey{UserID: k.UserID, KeyValue: k.Value}, nil
}

// KeyRevoke disables and revokes a single user key by its presented value.
// It accepts keys already revoked or disabled so revocation is idempotent.
func (e *Engine) KeyRevoke(ctx context.Context, serviceKeyValue string, meta storage.AuditMeta, keyValue string) (int64, error) {
	svc, err := e.authenticateService(ctx, serviceKeyValue)
	if err != nil {
		return 0, err
	}

	ab := audit.New(e.driver, e.logger, meta)
	ab.SetService(svc.ID)

	k, err := e.keys.ReadByUserValueUnchecked(ctx, svc.ID, keyValue, storage.KeyTypeKey)
	if err != nil {
		return 0, err
	}
	ab.SetUser(k.UserID)
	ab.SetUserKey(k.ID)

	if err := e.keys.DisableAndRevoke(ctx, k.ID); err != nil {
		return 0, err
	}

	_ = ab.Create(ctx, storage.AuditKeyRevoke, nil)
	return 1, nil
}
