package engine

import (
	"context"
	"time"

	"github.com/dexidp/sso/audit"
	"github.com/dexidp/sso/ssoerr"
	"github.com/dexidp/sso/storage"
)

// OAuth2Login finishes a login after an external provider has already
// proven ownership of email; it requires nothing further from the caller
// except that serviceID match the authenticated service, which prevents a
// token minted for one service's provider callback being replayed against
// another.
func (e *Engine) OAuth2Login(ctx context.Context, serviceKeyValue string, meta storage.AuditMeta, serviceID, email string, accessTTL, refreshTTL time.Duration) (storage.Service, UserToken, error) {
	svc, err := e.authenticateService(ctx, serviceKeyValue)
	if err != nil {
		return storage.Service{}, UserToken{}, err
	}

	ab := audit.New(e.driver, e.logger, meta)
	ab.SetService(svc.ID)

	if serviceID != svc.ID {
		_ = ab.Create(ctx, storage.AuditOAuth2LoginError, nil)
		return storage.Service{}, UserToken{}, ssoerr.New(ssoerr.Forbidden, "service mismatch")
	}

	user, err := e.loadEnabledUserByEmail(ctx, svc.ID, email)
	if err != nil {
		_ = ab.Create(ctx, storage.AuditOAuth2LoginError, nil)
		return storage.Service{}, UserToken{}, err
	}
	ab.SetUser(user.ID)

	tokenKey, err := e.keys.ReadByUser(ctx, svc.ID, user.ID, storage.KeyTypeToken)
	if err != nil {
		_ = ab.Create(ctx, storage.AuditOAuth2LoginError, nil)
		return storage.Service{}, UserToken{}, err
	}
	ab.SetUserKey(tokenKey.ID)

	pair, err := e.mintTokenPair(ctx, svc.ID, user.ID, tokenKey.Value, accessTTL, refreshTTL)
	if err != nil {
		return storage.Service{}, UserToken{}, err
	}

	_ = ab.Create(ctx, storage.AuditOAuth2Login, nil)
	return svc, pair, nil
}
