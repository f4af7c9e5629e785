package jwtcodec

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dexidp/sso/storage"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	serviceID := storage.NewID()
	userID := storage.NewID()
	signingKey := storage.NewKeyValue()

	token, exp, err := Encode(serviceID, userID, storage.ClaimsAccessToken, "", signingKey, time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.Greater(t, exp, time.Now().Unix())

	gotExp, csrfKey, err := Decode(serviceID, userID, storage.ClaimsAccessToken, signingKey, token)
	require.NoError(t, err)
	require.Equal(t, exp, gotExp)
	require.Empty(t, csrfKey)
}

func TestEncodeCarriesCsrfKey(t *testing.T) {
	serviceID, userID, signingKey := storage.NewID(), storage.NewID(), storage.NewKeyValue()
	csrfKey := storage.NewID()

	token, _, err := Encode(serviceID, userID, storage.ClaimsRefreshToken, csrfKey, signingKey, time.Minute)
	require.NoError(t, err)

	_, gotCsrf, err := Decode(serviceID, userID, storage.ClaimsRefreshToken, signingKey, token)
	require.NoError(t, err)
	require.Equal(t, csrfKey, gotCsrf)
}

func TestDecodeUnsafeDoesNotVerifySignature(t *testing.T) {
	serviceID, userID := storage.NewID(), storage.NewID()
	token, _, err := Encode(serviceID, userID, storage.ClaimsAccessToken, "", "wrong-key-entirely-never-verified", time.Minute)
	require.NoError(t, err)

	gotUser, gotType, err := DecodeUnsafe(serviceID, token)
	require.NoError(t, err)
	require.Equal(t, userID, gotUser)
	require.Equal(t, storage.ClaimsAccessToken, gotType)
}

func TestDecodeRejectsWrongSigningKey(t *testing.T) {
	serviceID, userID := storage.NewID(), storage.NewID()
	token, _, err := Encode(serviceID, userID, storage.ClaimsAccessToken, "", storage.NewKeyValue(), time.Minute)
	require.NoError(t, err)

	_, _, err = Decode(serviceID, userID, storage.ClaimsAccessToken, storage.NewKeyValue(), token)
	require.Error(t, err)
}

func TestDecodeRejectsWrongClaimsType(t *testing.T) {
	serviceID, userID, signingKey := storage.NewID(), storage.NewID(), storage.NewKeyValue()
	token, _, err := Encode(serviceID, userID, storage.ClaimsAccessToken, "", signingKey, time.Minute)
	require.NoError(t, err)

	_, _, err = Decode(serviceID, userID, storage.ClaimsRefreshToken, signingKey, token)
	require.Error(t, err)
}

func TestDecodeRejectsExpired(t *testing.T) {
	serviceID, userID, signingKey := storage.NewID(), storage.NewID(), storage.NewKeyValue()
	token, _, err := Encode(serviceID, userID, storage.ClaimsAccessToken, "", signingKey, -time.Minute)
	require.NoError(t, err)

	_, _, err = Decode(serviceID, userID, storage.ClaimsAccessToken, signingKey, token)
	require.Error(t, err)
}
