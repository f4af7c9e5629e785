// Package csrfstore implements the CSRF nonce store: base32-encoded,
// one-shot, delete-on-read tokens bound to refresh, reset and revoke tokens.
package csrfstore

import (
	"context"
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"log/slog"
	"time"

	"github.com/dexidp/sso/storage"
)

// Store wraps a storage.Driver with the CSRF nonce conventions: key
// generation, best-effort eviction and single-use consumption.
type Store struct {
	driver storage.Driver
	logger *slog.Logger
}

// New returns a Store backed by driver.
func New(driver storage.Driver, logger *slog.Logger) *Store {
	return &Store{driver: driver, logger: logger}
}

// NewKey returns a random base32-encoded nonce: 11 raw bytes, 88 bits of
// entropy, rendered as 18 characters with no padding.
func NewKey() string {
	var buf [11]byte
	if _, err := rand.Read(buf[:]); err != nil {
		panic(err)
	}
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(buf[:])
}

// Create mints a CSRF row bound to serviceID with the given ttl. The value
// currently always equals key (see DESIGN.md's Open Question decision on
// why the scheme keeps a separate value column at all).
func (s *Store) Create(ctx context.Context, serviceID string, ttl time.Duration) (string, error) {
	key := NewKey()
	if err := s.driver.CsrfCreate(ctx, key, key, time.Now().Add(ttl), serviceID); err != nil {
		return "", fmt.Errorf("csrfstore: create: %w", err)
	}
	return key, nil
}

// ReadByKey consumes the nonce identified by key: a present, unexpired row
// is deleted and returned; a missing or expired one returns (nil, nil)
// rather than an error, so the caller can distinguish "never issued or
// already used" from a storage failure.
func (s *Store) ReadByKey(ctx context.Context, key string) (*storage.Csrf, error) {
	csr, err := s.driver.CsrfReadByKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("csrfstore: read: %w", err)
	}
	return csr, nil
}

// Check is a convenience wrapper around ReadByKey for callers that only
// need to know whether the nonce was valid, not its row.
func (s *Store) Check(ctx context.Context, key string) error {
	csr, err := s.ReadByKey(ctx, key)
	if err != nil {
		return err
	}
	if csr == nil {
		return errCsrfInvalid
	}
	return nil
}

// errCsrfInvalid is unexported: callers test for it only through ErrInvalid,
// which compares identity with ==. The engine package re-tags the failure as
// ssoerr.BadRequest before it crosses its own boundary, so nothing outside
// the engine depends on this error's identity.
var errCsrfInvalid = fmt.Errorf("csrfstore: invalid or expired nonce")

// ErrInvalid reports whether err is the "nonce missing or expired" sentinel
// Check returns.
func ErrInvalid(err error) bool {
	return err == errCsrfInvalid
}

// GarbageCollect deletes all rows whose ttl has passed, independent of the
// inline best-effort eviction CsrfCreate and CsrfReadByKey already perform,
// so an operator can run it from a cron job.
func (s *Store) GarbageCollect(ctx context.Context, now time.Time) (int64, error) {
	n, err := s.driver.CsrfDeleteExpired(ctx, now)
	if err != nil {
		s.logger.Error("csrf garbage collection failed", "err", err)
		return 0, fmt.Errorf("csrfstore: gc: %w", err)
	}
	return n, nil
}
