package csrfstore

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dexidp/sso/storage"
	"github.com/dexidp/sso/storage/memory"
)

func TestCreateAndConsumeOnce(t *testing.T) {
	ctx := context.Background()
	s := New(memory.New(slog.Default()), slog.Default())

	key, err := s.Create(ctx, storage.NewID(), time.Minute)
	require.NoError(t, err)
	require.Len(t, key, 18)

	require.NoError(t, s.Check(ctx, key))

	err = s.Check(ctx, key)
	require.True(t, ErrInvalid(err))
}

func TestExpired(t *testing.T) {
	ctx := context.Background()
	d := memory.New(slog.Default())
	s := New(d, slog.Default())

	key, err := s.Create(ctx, storage.NewID(), -time.Minute)
	require.NoError(t, err)

	err = s.Check(ctx, key)
	require.True(t, ErrInvalid(err))
}
