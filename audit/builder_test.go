package audit

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dexidp/sso/storage"
	"github.com/dexidp/sso/storage/memory"
)

func TestCreateWritesResolvedSubjects(t *testing.T) {
	ctx := context.Background()
	d := memory.New(slog.Default())
	b := New(d, slog.Default(), storage.AuditMeta{RemoteAddr: "127.0.0.1"})

	serviceID, userID := storage.NewID(), storage.NewID()
	b.SetService(serviceID)
	b.SetUser(userID)

	require.NoError(t, b.Create(ctx, storage.AuditLoginSuccess, nil))

	rows, err := d.AuditList(ctx, time.Now().Add(time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, serviceID, rows[0].ServiceID)
	require.Equal(t, userID, rows[0].UserID)
	require.Equal(t, storage.AuditLoginSuccess, rows[0].Type)
}
