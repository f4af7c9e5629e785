// Package audit implements the audit builder component: one builder per
// inbound request, accumulating resolved subjects until the request's
// terminal decision is known, then writing exactly one row.
package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dexidp/sso/storage"
)

// Builder accumulates the subjects an engine operation resolves over the
// course of a request and writes a single terminal audit row.
type Builder struct {
	driver storage.Driver
	logger *slog.Logger
	meta   storage.AuditMeta

	serviceID string
	userID    string
	userKeyID string
}

// New returns a Builder for one inbound request, stamped with meta.
func New(driver storage.Driver, logger *slog.Logger, meta storage.AuditMeta) *Builder {
	return &Builder{driver: driver, logger: logger, meta: meta}
}

// SetService records the caller's resolved service.
func (b *Builder) SetService(serviceID string) { b.serviceID = serviceID }

// SetUser records the resolved end user, once known.
func (b *Builder) SetUser(userID string) { b.userID = userID }

// SetUserKey records the resolved user key, once known.
func (b *Builder) SetUserKey(userKeyID string) { b.userKeyID = userKeyID }

// Create snapshots the subjects attached so far and writes one audit row of
// the given type. data, if non-nil, is marshaled as the row's opaque JSON
// payload. Create may be called more than once per request (e.g. once for
// an early failure audit type that turns out not to be terminal), but only
// the call whose type represents the request's actual outcome should fire
// in a correct engine operation; nothing in Builder itself enforces
// single-emission, callers are.
func (b *Builder) Create(ctx context.Context, typ storage.AuditType, data any) error {
	var payload []byte
	if data != nil {
		var err error
		payload, err = json.Marshal(data)
		if err != nil {
			return err
		}
	}

	id, err := uuid.NewUUID()
	if err != nil {
		return err
	}

	row := storage.Audit{
		ID:        id.String(),
		CreatedAt: time.Now().UTC(),
		Type:      typ,
		ServiceID: b.serviceID,
		UserID:    b.userID,
		UserKeyID: b.userKeyID,
		Data:      payload,
		Meta:      b.meta,
	}
	if err := b.driver.AuditCreate(ctx, row); err != nil {
		b.logger.Error("audit write failed", "type", typ, "err", err)
		return err
	}
	return nil
}
