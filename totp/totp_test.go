package totp

import (
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidate(t *testing.T) {
	v := New("sso")

	key, err := v.GenerateSecret("user@example.com")
	require.NoError(t, err)

	code, err := totp.GenerateCode(key.Secret(), time.Now())
	require.NoError(t, err)

	require.True(t, v.Validate(key.Secret(), code))
}

func TestValidateRejectsWrongCode(t *testing.T) {
	v := New("sso")

	key, err := v.GenerateSecret("user@example.com")
	require.NoError(t, err)

	require.False(t, v.Validate(key.Secret(), "000000"))
}

func TestProvisioningURI(t *testing.T) {
	v := New("sso")

	key, err := v.GenerateSecret("user@example.com")
	require.NoError(t, err)

	png, err := ProvisioningURI(key)
	require.NoError(t, err)
	require.NotEmpty(t, png)
}
