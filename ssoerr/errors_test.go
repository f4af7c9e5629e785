package ssoerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	err := New(BadRequest, "bad stuff")
	require.Equal(t, BadRequest, KindOf(err))
	require.True(t, Is(err, BadRequest))
	require.False(t, Is(err, Forbidden))

	require.Equal(t, Unknown, KindOf(errors.New("plain")))
}

func TestWrapNil(t *testing.T) {
	require.NoError(t, Wrap(Driver, "msg", nil))
}

func TestWrapUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(Driver, "query failed", cause)
	require.Equal(t, Driver, KindOf(err))
	require.ErrorIs(t, err, cause)
}
