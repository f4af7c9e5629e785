// Package keyresolver implements the key resolver component: the checked
// and unchecked Key lookups every engine operation goes through, and the
// revocation helpers that must bypass the checked path so revocation stays
// idempotent on an already-disabled key.
package keyresolver

import (
	"context"
	"fmt"

	"github.com/dexidp/sso/storage"
	"github.com/dexidp/sso/ssoerr"
)

// Resolver wraps a storage.Driver with the enabled/revoked checks every
// authentication path requires.
type Resolver struct {
	driver storage.Driver
}

// New returns a Resolver backed by driver.
func New(driver storage.Driver) *Resolver {
	return &Resolver{driver: driver}
}

func checked(k storage.Key, err error) (storage.Key, error) {
	if err != nil {
		if err == storage.ErrNotFound {
			return k, ssoerr.New(ssoerr.BadRequest, "key not found")
		}
		return k, ssoerr.Wrap(ssoerr.Driver, "read key", err)
	}
	if !k.IsEnabled || k.IsRevoked {
		return k, ssoerr.New(ssoerr.BadRequest, "key disabled or revoked")
	}
	return k, nil
}

func unchecked(k storage.Key, err error) (storage.Key, error) {
	if err != nil {
		if err == storage.ErrNotFound {
			return k, ssoerr.New(ssoerr.BadRequest, "key not found")
		}
		return k, ssoerr.Wrap(ssoerr.Driver, "read key", err)
	}
	return k, nil
}

// ReadByUser returns the single enabled, unrevoked key of typ for
// (serviceID, userID).
func (r *Resolver) ReadByUser(ctx context.Context, serviceID, userID string, typ storage.KeyType) (storage.Key, error) {
	return checked(r.driver.KeyReadByUser(ctx, serviceID, userID, typ))
}

// ReadByUserUnchecked is ReadByUser without the enabled/revoked check, used
// exclusively by revocation paths so revocation remains idempotent on an
// already-disabled account.
func (r *Resolver) ReadByUserUnchecked(ctx context.Context, serviceID, userID string, typ storage.KeyType) (storage.Key, error) {
	return unchecked(r.driver.KeyReadByUser(ctx, serviceID, userID, typ))
}

// ReadByUserValue returns the single enabled, unrevoked key of typ whose
// value matches, scoped to serviceID.
func (r *Resolver) ReadByUserValue(ctx context.Context, serviceID, value string, typ storage.KeyType) (storage.Key, error) {
	return checked(r.driver.KeyReadByUserValue(ctx, serviceID, value, typ))
}

// ReadByUserValueUnchecked is ReadByUserValue without the enabled/revoked
// check.
func (r *Resolver) ReadByUserValueUnchecked(ctx context.Context, serviceID, value string, typ storage.KeyType) (storage.Key, error) {
	return unchecked(r.driver.KeyReadByUserValue(ctx, serviceID, value, typ))
}

// ReadByRootValue authenticates a root caller by key value.
func (r *Resolver) ReadByRootValue(ctx context.Context, value string) (storage.Key, error) {
	return checked(r.driver.KeyReadByRootValue(ctx, value))
}

// ReadByServiceValue authenticates a service caller by key value.
func (r *Resolver) ReadByServiceValue(ctx context.Context, value string) (storage.Key, error) {
	return checked(r.driver.KeyReadByServiceValue(ctx, value))
}

// DisableAndRevoke transitions a single key to its terminal Revoked state
// (enabled=false, revoked=true). It is idempotent: calling it on an already
// revoked key succeeds and changes nothing.
func (r *Resolver) DisableAndRevoke(ctx context.Context, keyID string) error {
	disabled, revoked := false, true
	_, err := r.driver.KeyUpdateByID(ctx, keyID, storage.KeyUpdate{IsEnabled: &disabled, IsRevoked: &revoked})
	if err != nil {
		return ssoerr.Wrap(ssoerr.Driver, "revoke key", err)
	}
	return nil
}

// DisableAndRevokeAllByUser transitions every key belonging to userID to
// Revoked, for the break-glass compromise paths. It returns the number of
// keys revoked.
func (r *Resolver) DisableAndRevokeAllByUser(ctx context.Context, userID string) (int64, error) {
	disabled, revoked := false, true
	n, err := r.driver.KeyUpdateManyByUserID(ctx, userID, storage.KeyUpdate{IsEnabled: &disabled, IsRevoked: &revoked})
	if err != nil {
		return 0, ssoerr.Wrap(ssoerr.Driver, "revoke all keys for user", err)
	}
	return n, nil
}

// Create creates a new key of typ for (serviceID, userID) with a freshly
// generated value, enabled and not revoked.
func (r *Resolver) Create(ctx context.Context, name, serviceID, userID string, typ storage.KeyType) (storage.Key, error) {
	k, err := r.driver.KeyCreate(ctx, storage.Key{
		Name:      name,
		Value:     storage.NewKeyValue(),
		IsEnabled: true,
		Type:      typ,
		ServiceID: serviceID,
		UserID:    userID,
	})
	if err != nil {
		return k, fmt.Errorf("keyresolver: create: %w", err)
	}
	return k, nil
}
