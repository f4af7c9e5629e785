package passwordhash

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashVerify(t *testing.T) {
	hash, err := Hash("correct horse battery staple")
	require.NoError(t, err)
	require.NotEmpty(t, hash)

	require.Equal(t, Ok, Verify(hash, "correct horse battery staple"))
	require.Equal(t, PasswordInvalid, Verify(hash, "wrong"))
}

func TestVerifyEmptyHash(t *testing.T) {
	require.Equal(t, PasswordInvalid, Verify("", "anything"))
}
