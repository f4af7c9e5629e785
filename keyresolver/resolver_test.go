package keyresolver

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dexidp/sso/storage"
	"github.com/dexidp/sso/storage/memory"
)

func TestCreateAndReadByUser(t *testing.T) {
	ctx := context.Background()
	d := memory.New(slog.Default())
	r := New(d)

	serviceID, userID := storage.NewID(), storage.NewID()
	created, err := r.Create(ctx, "", serviceID, userID, storage.KeyTypeToken)
	require.NoError(t, err)

	got, err := r.ReadByUser(ctx, serviceID, userID, storage.KeyTypeToken)
	require.NoError(t, err)
	require.Equal(t, created.ID, got.ID)

	gotByValue, err := r.ReadByUserValue(ctx, serviceID, created.Value, storage.KeyTypeToken)
	require.NoError(t, err)
	require.Equal(t, created.ID, gotByValue.ID)
}

func TestRevokedKeyFailsCheckedLookupButNotUnchecked(t *testing.T) {
	ctx := context.Background()
	d := memory.New(slog.Default())
	r := New(d)

	serviceID, userID := storage.NewID(), storage.NewID()
	created, err := r.Create(ctx, "", serviceID, userID, storage.KeyTypeKey)
	require.NoError(t, err)

	require.NoError(t, r.DisableAndRevoke(ctx, created.ID))

	_, err = r.ReadByUser(ctx, serviceID, userID, storage.KeyTypeKey)
	require.Error(t, err)

	got, err := r.ReadByUserUnchecked(ctx, serviceID, userID, storage.KeyTypeKey)
	require.NoError(t, err)
	require.True(t, got.IsRevoked)

	// Idempotent: revoking twice is not an error.
	require.NoError(t, r.DisableAndRevoke(ctx, created.ID))
}

func TestDisableAndRevokeAllByUser(t *testing.T) {
	ctx := context.Background()
	d := memory.New(slog.Default())
	r := New(d)

	serviceID, userID := storage.NewID(), storage.NewID()
	_, err := r.Create(ctx, "", serviceID, userID, storage.KeyTypeKey)
	require.NoError(t, err)
	_, err = r.Create(ctx, "", serviceID, userID, storage.KeyTypeToken)
	require.NoError(t, err)

	n, err := r.DisableAndRevokeAllByUser(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, int64(2), n)

	_, err = r.ReadByUser(ctx, serviceID, userID, storage.KeyTypeKey)
	require.Error(t, err)
	_, err = r.ReadByUser(ctx, serviceID, userID, storage.KeyTypeToken)
	require.Error(t, err)
}
