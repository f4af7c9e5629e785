// Package storage defines the persistence contract the auth engine requires
// of a storage driver, along with the entity types that contract operates
// on. Concrete backends (the sql and memory subpackages) implement Driver;
// the engine package is written only against this interface.
package storage

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by a Driver when a requested resource does not exist.
	ErrNotFound = errors.New("storage: not found")

	// ErrAlreadyExists is returned by a Driver when a create would collide with
	// an existing row (e.g. a CSRF key collision).
	ErrAlreadyExists = errors.New("storage: already exists")

	// ErrServiceDisabled is returned by ServiceCheckEnabled when the service
	// exists but has been disabled.
	ErrServiceDisabled = errors.New("storage: service disabled")
)

// NewID returns a random UUID-shaped identifier, rendered as 32 lowercase
// hex characters, suitable for Service, User and Key IDs.
func NewID() string {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		panic(err)
	}
	return hex.EncodeToString(buf[:])
}

// NewKeyValue returns a random 128-bit opaque credential value, rendered as
// 32 lowercase hex characters, for use as a Key.Value.
func NewKeyValue() string {
	return NewID()
}

// KeyType distinguishes the three roles a Key can play. Exactly one Key of
// each type may exist per (service, user) pair.
type KeyType string

const (
	// KeyTypeKey is the opaque credential a user presents directly.
	KeyTypeKey KeyType = "key"
	// KeyTypeToken is the HMAC signing secret used to mint and verify JWTs.
	KeyTypeToken KeyType = "token"
	// KeyTypeTotp stores the TOTP shared secret.
	KeyTypeTotp KeyType = "totp"
)

// ClaimsType tags the purpose of a JWT, preventing cross-use between token
// kinds even when they share a signing key.
type ClaimsType string

const (
	ClaimsAccessToken               ClaimsType = "access"
	ClaimsRefreshToken              ClaimsType = "refresh"
	ClaimsResetPasswordToken        ClaimsType = "reset_password"
	ClaimsUpdateEmailRevokeToken    ClaimsType = "update_email_revoke"
	ClaimsUpdatePasswordRevokeToken ClaimsType = "update_password_revoke"
)

// AuditType is a stable, dot-namespaced name for an audited decision.
type AuditType string

const (
	AuditLoginSuccess                  AuditType = "sso.login"
	AuditLoginErrorUserNotFound        AuditType = "sso.login.error.user_not_found_or_disabled"
	AuditLoginErrorKeyNotFound         AuditType = "sso.login.error.key_not_found_or_disabled"
	AuditLoginErrorPasswordIncorrect   AuditType = "sso.login.error.password_incorrect"
	AuditTokenVerify                   AuditType = "sso.token.verify"
	AuditTokenVerifyError              AuditType = "sso.token.verify.error"
	AuditTokenRefresh                  AuditType = "sso.token.refresh"
	AuditTokenRefreshErrorCsrf         AuditType = "sso.token.refresh.error.csrf_invalid"
	AuditTokenRefreshError             AuditType = "sso.token.refresh.error"
	AuditTokenRevoke                   AuditType = "sso.token.revoke"
	AuditTokenRevokeError              AuditType = "sso.token.revoke.error"
	AuditKeyVerify                     AuditType = "sso.key.verify"
	AuditKeyVerifyError                AuditType = "sso.key.verify.error"
	AuditKeyRevoke                     AuditType = "sso.key.revoke"
	AuditPasswordResetRequest          AuditType = "sso.password.reset"
	AuditPasswordResetRequestError     AuditType = "sso.password.reset.error"
	AuditPasswordResetConfirm          AuditType = "sso.password.reset.confirm"
	AuditPasswordResetConfirmErrorCsrf AuditType = "sso.password.reset.confirm.error.csrf_invalid"
	AuditPasswordResetConfirmError     AuditType = "sso.password.reset.confirm.error"
	AuditEmailUpdate                   AuditType = "sso.email.update"
	AuditEmailUpdateError              AuditType = "sso.email.update.error"
	AuditEmailUpdateRevoke             AuditType = "sso.email.update.revoke"
	AuditEmailUpdateRevokeError        AuditType = "sso.email.update.revoke.error"
	AuditPasswordUpdate                AuditType = "sso.password.update"
	AuditPasswordUpdateError           AuditType = "sso.password.update.error"
	AuditPasswordUpdateRevoke          AuditType = "sso.password.update.revoke"
	AuditPasswordUpdateRevokeError     AuditType = "sso.password.update.revoke.error"
	AuditTotpVerify                    AuditType = "sso.totp.verify"
	AuditTotpVerifyError               AuditType = "sso.totp.verify.error"
	AuditOAuth2Login                   AuditType = "sso.oauth2.login"
	AuditOAuth2LoginError              AuditType = "sso.oauth2.login.error"
)

// Service is a downstream application registered with the SSO.
type Service struct {
	ID                   string
	Name                 string
	URL                  string
	IsEnabled            bool
	LocalCallbackURL     string
	GitHubCallbackURL    string
	MicrosoftCallbackURL string
}

// User is an end user scoped to a Service.
type User struct {
	ID           string
	ServiceID    string
	Email        string
	Name         string
	IsEnabled    bool
	PasswordHash string // empty means password login is disallowed
	Locale       string
}

// Key is a credential: a root key (no service, no user), a service key (a
// service, no user) or a user key (both a service and a user).
type Key struct {
	ID        string
	Name      string
	Value     string
	IsEnabled bool
	IsRevoked bool
	Type      KeyType
	ServiceID string // empty for root keys
	UserID    string // empty for root and service keys
}

// Csrf is a one-shot nonce bound to a refresh, reset or revoke token.
type Csrf struct {
	Key       string
	Value     string
	TTL       time.Time
	ServiceID string
}

// AuditMeta is request metadata captured once per inbound request and
// attached to every audit row it produces.
type AuditMeta struct {
	RemoteAddr   string
	UserAgent    string
	ForwardedFor string
}

// Audit is an append-only record of one authentication decision.
type Audit struct {
	ID        string
	CreatedAt time.Time
	Type      AuditType
	ServiceID string
	UserID    string
	UserKeyID string
	Data      []byte // opaque JSON chosen by the caller
	Meta      AuditMeta
}

// KeyUpdate carries the optional fields a KeyUpdateByID /
// KeyUpdateManyByUserID call may change. A nil field leaves the column
// untouched.
type KeyUpdate struct {
	IsEnabled *bool
	IsRevoked *bool
	Name      *string
}

// UserUpdate carries the optional fields a UserUpdate call may change.
type UserUpdate struct {
	IsEnabled *bool
	Name      *string
}

// Driver is the persistence contract the engine requires. Implementations
// must execute each call as an atomic unit; no transaction spans the engine
// boundary. Reads observe the driver's own prior writes (read-your-writes).
type Driver interface {
	Close() error

	ServiceRead(ctx context.Context, id string) (Service, error)
	// ServiceCheckEnabled reads the service and returns ErrServiceDisabled if
	// it exists but is disabled.
	ServiceCheckEnabled(ctx context.Context, id string) (Service, error)

	// UserReadByID and UserReadByEmail scope the lookup to serviceID when it
	// is non-empty.
	UserReadByID(ctx context.Context, serviceID, id string) (User, error)
	UserReadByEmail(ctx context.Context, serviceID, email string) (User, error)
	UserUpdateEmail(ctx context.Context, id, newEmail string) (User, error)
	UserUpdatePassword(ctx context.Context, id, newHash string) (User, error)
	UserUpdate(ctx context.Context, id string, u UserUpdate) (User, error)

	KeyCreate(ctx context.Context, k Key) (Key, error)
	KeyReadByID(ctx context.Context, id string) (Key, error)
	KeyReadByUser(ctx context.Context, serviceID, userID string, typ KeyType) (Key, error)
	KeyReadByRootValue(ctx context.Context, value string) (Key, error)
	KeyReadByServiceValue(ctx context.Context, value string) (Key, error)
	KeyReadByUserValue(ctx context.Context, serviceID, value string, typ KeyType) (Key, error)
	KeyUpdateByID(ctx context.Context, id string, u KeyUpdate) (Key, error)
	KeyUpdateManyByUserID(ctx context.Context, userID string, u KeyUpdate) (int64, error)

	CsrfCreate(ctx context.Context, key, value string, ttl time.Time, serviceID string) error
	// CsrfReadByKey deletes the row in the same logical step as the read, so a
	// second call with the same key returns (nil, nil). It returns (nil, nil)
	// for a missing or already-expired key, never ErrNotFound.
	CsrfReadByKey(ctx context.Context, key string) (*Csrf, error)
	CsrfDeleteExpired(ctx context.Context, now time.Time) (int64, error)

	AuditCreate(ctx context.Context, row Audit) error
	// AuditList returns rows created strictly before 'before', newest first,
	// for pagination by (created_at, id).
	AuditList(ctx context.Context, before time.Time, limit int) ([]Audit, error)
}
