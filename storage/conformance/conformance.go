// Package conformance provides a test suite that any storage.Driver
// implementation must pass, exercising the service/user/key/csrf/audit
// schema the same way against every backend.
package conformance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dexidp/sso/storage"
)

// Run exercises d against the Driver contract. All subtests share the one
// driver instance and use random IDs to avoid collisions.
func Run(t *testing.T, d storage.Driver) {
	t.Run("Service", func(t *testing.T) { testService(t, d) })
	t.Run("User", func(t *testing.T) { testUser(t, d) })
	t.Run("Key", func(t *testing.T) { testKey(t, d) })
	t.Run("Csrf", func(t *testing.T) { testCsrf(t, d) })
	t.Run("Audit", func(t *testing.T) { testAudit(t, d) })
}

func testService(t *testing.T, d storage.Driver) {
	ctx := context.Background()

	_, err := d.ServiceRead(ctx, storage.NewID())
	require.ErrorIs(t, err, storage.ErrNotFound)

	// Services are seeded out of band (there is no ServiceCreate in the
	// contract), so this suite checks only ServiceRead's not-found path;
	// ServiceCheckEnabled is not exercised here.
}

func testUser(t *testing.T, d storage.Driver) {
	ctx := context.Background()

	_, err := d.UserReadByID(ctx, "", storage.NewID())
	require.ErrorIs(t, err, storage.ErrNotFound)

	_, err = d.UserReadByEmail(ctx, storage.NewID(), "nobody@example.com")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func testKey(t *testing.T, d storage.Driver) {
	ctx := context.Background()

	k := storage.Key{
		Name:      "token",
		Value:     storage.NewKeyValue(),
		IsEnabled: true,
		Type:      storage.KeyTypeToken,
		ServiceID: storage.NewID(),
		UserID:    storage.NewID(),
	}
	created, err := d.KeyCreate(ctx, k)
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	got, err := d.KeyReadByID(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, created.Value, got.Value)

	got, err = d.KeyReadByUser(ctx, k.ServiceID, k.UserID, storage.KeyTypeToken)
	require.NoError(t, err)
	require.Equal(t, created.ID, got.ID)

	got, err = d.KeyReadByUserValue(ctx, k.ServiceID, k.Value, storage.KeyTypeToken)
	require.NoError(t, err)
	require.Equal(t, created.ID, got.ID)

	disabled := false
	revoked := true
	updated, err := d.KeyUpdateByID(ctx, created.ID, storage.KeyUpdate{IsEnabled: &disabled, IsRevoked: &revoked})
	require.NoError(t, err)
	require.False(t, updated.IsEnabled)
	require.True(t, updated.IsRevoked)

	n, err := d.KeyUpdateManyByUserID(ctx, k.UserID, storage.KeyUpdate{IsRevoked: &revoked})
	require.NoError(t, err)
	require.GreaterOrEqual(t, n, int64(1))

	_, err = d.KeyReadByID(ctx, storage.NewID())
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func testCsrf(t *testing.T, d storage.Driver) {
	ctx := context.Background()

	key := storage.NewID()
	require.NoError(t, d.CsrfCreate(ctx, key, key, time.Now().Add(time.Minute), storage.NewID()))

	err := d.CsrfCreate(ctx, key, key, time.Now().Add(time.Minute), storage.NewID())
	require.ErrorIs(t, err, storage.ErrAlreadyExists)

	got, err := d.CsrfReadByKey(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, key, got.Key)

	// single-use: a second read returns nothing, not an error.
	got, err = d.CsrfReadByKey(ctx, key)
	require.NoError(t, err)
	require.Nil(t, got)

	expiredKey := storage.NewID()
	require.NoError(t, d.CsrfCreate(ctx, expiredKey, expiredKey, time.Now().Add(-time.Minute), storage.NewID()))
	got, err = d.CsrfReadByKey(ctx, expiredKey)
	require.NoError(t, err)
	require.Nil(t, got)
}

func testAudit(t *testing.T, d storage.Driver) {
	ctx := context.Background()

	row := storage.Audit{
		ID:        storage.NewID(),
		CreatedAt: time.Now().UTC(),
		Type:      storage.AuditLoginSuccess,
		ServiceID: storage.NewID(),
		UserID:    storage.NewID(),
		Data:      []byte(`{}`),
	}
	require.NoError(t, d.AuditCreate(ctx, row))

	rows, err := d.AuditList(ctx, time.Now().Add(time.Minute), 10)
	require.NoError(t, err)
	require.NotEmpty(t, rows)
}
