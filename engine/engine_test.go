package engine

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dexidp/sso/jwtcodec"
	"github.com/dexidp/sso/passwordhash"
	"github.com/dexidp/sso/ssoerr"
	"github.com/dexidp/sso/storage"
	"github.com/dexidp/sso/storage/memory"
	"github.com/dexidp/sso/totp"
)

const (
	testServiceID    = "svc1"
	testServiceKey   = "service-key-value"
	testUserID       = "user1"
	testUserKeyValue = "user-key-value"
	testTokenKey     = "token-key-value-token-key-value!"
	testTotpKey      = "totp-key-value"
	testEmail        = "alice@example.com"
	testPassword     = "correct horse battery staple"
)

func newFixture(t *testing.T) (*Engine, *memory.Driver) {
	t.Helper()

	hash, err := passwordhash.Hash(testPassword)
	require.NoError(t, err)

	driver := memory.New(slog.Default())
	driver.Seed(
		[]storage.Service{{ID: testServiceID, Name: "test", IsEnabled: true}},
		[]storage.User{{ID: testUserID, ServiceID: testServiceID, Email: testEmail, IsEnabled: true, PasswordHash: hash}},
		[]storage.Key{
			{ID: "svckey1", Value: testServiceKey, IsEnabled: true, ServiceID: testServiceID, Type: storage.KeyTypeKey},
			{ID: "userkey1", Value: testUserKeyValue, IsEnabled: true, ServiceID: testServiceID, UserID: testUserID, Type: storage.KeyTypeKey},
			{ID: "tokenkey1", Value: testTokenKey, IsEnabled: true, ServiceID: testServiceID, UserID: testUserID, Type: storage.KeyTypeToken},
			{ID: "totpkey1", Value: testTotpKey, IsEnabled: true, ServiceID: testServiceID, UserID: testUserID, Type: storage.KeyTypeTotp},
		},
	)

	e := New(driver, slog.Default(), totp.New("sso-test"))
	return e, driver
}

func TestLoginHappyPath(t *testing.T) {
	e, _ := newFixture(t)
	ctx := context.Background()

	pair, err := e.Login(ctx, testServiceKey, storage.AuditMeta{}, testEmail, testPassword, time.Minute, time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)

	partial, err := e.TokenVerify(ctx, testServiceKey, storage.AuditMeta{}, pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, testUserID, partial.UserID)
}

func TestLoginWrongPasswordNeverDistinguishesFromMissingUser(t *testing.T) {
	e, _ := newFixture(t)
	ctx := context.Background()

	_, err1 := e.Login(ctx, testServiceKey, storage.AuditMeta{}, testEmail, "wrong password", time.Minute, time.Hour)
	_, err2 := e.Login(ctx, testServiceKey, storage.AuditMeta{}, "nobody@example.com", testPassword, time.Minute, time.Hour)

	require.True(t, ssoerr.Is(err1, ssoerr.BadRequest))
	require.True(t, ssoerr.Is(err2, ssoerr.BadRequest))
	require.Equal(t, err1.Error(), err2.Error())
}

func TestTokenRefreshRejectsReplay(t *testing.T) {
	e, _ := newFixture(t)
	ctx := context.Background()

	pair, err := e.Login(ctx, testServiceKey, storage.AuditMeta{}, testEmail, testPassword, time.Minute, time.Hour)
	require.NoError(t, err)

	refreshed, err := e.TokenRefresh(ctx, testServiceKey, storage.AuditMeta{}, pair.RefreshToken, time.Minute, time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, refreshed.AccessToken)

	_, err = e.TokenRefresh(ctx, testServiceKey, storage.AuditMeta{}, pair.RefreshToken, time.Minute, time.Hour)
	require.Error(t, err)
	require.True(t, ssoerr.Is(err, ssoerr.BadRequest))
}

func TestAccessTokenExpiresAtBoundary(t *testing.T) {
	e, _ := newFixture(t)
	ctx := context.Background()

	pair, err := e.Login(ctx, testServiceKey, storage.AuditMeta{}, testEmail, testPassword, -time.Second, time.Hour)
	require.NoError(t, err)

	_, err = e.TokenVerify(ctx, testServiceKey, storage.AuditMeta{}, pair.AccessToken)
	require.Error(t, err)
	require.True(t, ssoerr.Is(err, ssoerr.BadRequest))
}

func TestKeyRevokeThenVerifyFails(t *testing.T) {
	e, _ := newFixture(t)
	ctx := context.Background()

	uk, err := e.KeyVerify(ctx, testServiceKey, storage.AuditMeta{}, testUserKeyValue)
	require.NoError(t, err)
	require.Equal(t, testUserID, uk.UserID)

	revoked, err := e.KeyRevoke(ctx, testServiceKey, storage.AuditMeta{}, testUserKeyValue)
	require.NoError(t, err)
	require.EqualValues(t, 1, revoked)

	_, err = e.KeyVerify(ctx, testServiceKey, storage.AuditMeta{}, testUserKeyValue)
	require.Error(t, err)

	revokedAgain, err := e.KeyRevoke(ctx, testServiceKey, storage.AuditMeta{}, testUserKeyValue)
	require.NoError(t, err)
	require.EqualValues(t, 1, revokedAgain)
}

func TestUpdateEmailRevokeDisablesUserAndRevokesAllKeys(t *testing.T) {
	e, driver := newFixture(t)
	ctx := context.Background()

	pair, err := e.Login(ctx, testServiceKey, storage.AuditMeta{}, testEmail, testPassword, time.Minute, time.Hour)
	require.NoError(t, err)

	_, _, revokeToken, err := e.UpdateEmail(ctx, testServiceKey, storage.AuditMeta{}, CallerAuth{Token: pair.AccessToken}, testPassword, "mallory@example.com", time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, revokeToken)

	n, err := e.UpdateEmailRevoke(ctx, testServiceKey, storage.AuditMeta{}, revokeToken)
	require.NoError(t, err)
	require.EqualValues(t, 4, n) // the user itself plus its key, token and totp keys

	u, err := driver.UserReadByID(ctx, testServiceID, testUserID)
	require.NoError(t, err)
	require.False(t, u.IsEnabled)

	_, err = e.UpdateEmailRevoke(ctx, testServiceKey, storage.AuditMeta{}, revokeToken)
	require.Error(t, err)
}

func TestRefreshCsrfSingleUse(t *testing.T) {
	e, _ := newFixture(t)
	ctx := context.Background()

	pair, err := e.Login(ctx, testServiceKey, storage.AuditMeta{}, testEmail, testPassword, time.Minute, time.Hour)
	require.NoError(t, err)

	_, _, err = jwtcodec.Decode(testServiceID, testUserID, storage.ClaimsRefreshToken, testTokenKey, pair.RefreshToken)
	require.NoError(t, err)

	_, err = e.TokenRefresh(ctx, testServiceKey, storage.AuditMeta{}, pair.RefreshToken, time.Minute, time.Hour)
	require.NoError(t, err)

	_, err = e.TokenRefresh(ctx, testServiceKey, storage.AuditMeta{}, pair.RefreshToken, time.Minute, time.Hour)
	require.Error(t, err)
}

func TestTokenVerifyDoesNotMutateState(t *testing.T) {
	e, _ := newFixture(t)
	ctx := context.Background()

	pair, err := e.Login(ctx, testServiceKey, storage.AuditMeta{}, testEmail, testPassword, time.Minute, time.Hour)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := e.TokenVerify(ctx, testServiceKey, storage.AuditMeta{}, pair.AccessToken)
		require.NoError(t, err)
	}
}

func TestResetPasswordConfirmSingleUse(t *testing.T) {
	e, _ := newFixture(t)
	ctx := context.Background()

	_, token, err := e.ResetPassword(ctx, testServiceKey, storage.AuditMeta{}, testEmail, time.Hour)
	require.NoError(t, err)

	n, err := e.ResetPasswordConfirm(ctx, testServiceKey, storage.AuditMeta{}, token, "new password value")
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	_, err = e.ResetPasswordConfirm(ctx, testServiceKey, storage.AuditMeta{}, token, "another password")
	require.Error(t, err)
}

func TestUpdatePasswordRequiresExactlyOneCallerAuth(t *testing.T) {
	e, _ := newFixture(t)
	ctx := context.Background()

	_, _, err := e.UpdatePassword(ctx, testServiceKey, storage.AuditMeta{}, CallerAuth{}, testPassword, "new", time.Hour)
	require.True(t, ssoerr.Is(err, ssoerr.Forbidden))

	pair, err := e.Login(ctx, testServiceKey, storage.AuditMeta{}, testEmail, testPassword, time.Minute, time.Hour)
	require.NoError(t, err)

	_, _, err = e.UpdatePassword(ctx, testServiceKey, storage.AuditMeta{}, CallerAuth{KeyValue: testUserKeyValue, Token: pair.AccessToken}, testPassword, "new", time.Hour)
	require.True(t, ssoerr.Is(err, ssoerr.Forbidden))
}

func TestTotpVerify(t *testing.T) {
	ctx := context.Background()

	verifier := totp.New("sso-test")
	key, err := verifier.GenerateSecret(testEmail)
	require.NoError(t, err)

	driver := memory.New(slog.Default())
	driver.Seed(
		[]storage.Service{{ID: testServiceID, Name: "test", IsEnabled: true}},
		[]storage.User{{ID: testUserID, ServiceID: testServiceID, Email: testEmail, IsEnabled: true}},
		[]storage.Key{
			{ID: "svckey1", Value: testServiceKey, IsEnabled: true, ServiceID: testServiceID, Type: storage.KeyTypeKey},
			{ID: "totpkey1", Value: key.Secret(), IsEnabled: true, ServiceID: testServiceID, UserID: testUserID, Type: storage.KeyTypeTotp},
		},
	)
	e := New(driver, slog.Default(), verifier)

	require.Error(t, e.Totp(ctx, testServiceKey, storage.AuditMeta{}, testUserID, "000000"))
}

func TestOAuth2LoginRejectsServiceMismatch(t *testing.T) {
	e, _ := newFixture(t)
	ctx := context.Background()

	_, _, err := e.OAuth2Login(ctx, testServiceKey, storage.AuditMeta{}, "other-service", testEmail, time.Minute, time.Hour)
	require.True(t, ssoerr.Is(err, ssoerr.Forbidden))
}

func TestOAuth2LoginHappyPath(t *testing.T) {
	e, _ := newFixture(t)
	ctx := context.Background()

	svc, pair, err := e.OAuth2Login(ctx, testServiceKey, storage.AuditMeta{}, testServiceID, testEmail, time.Minute, time.Hour)
	require.NoError(t, err)
	require.Equal(t, testServiceID, svc.ID)
	require.NotEmpty(t, pair.AccessToken)
}
