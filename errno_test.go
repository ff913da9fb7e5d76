package corerpc

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRpcErrorMessage(t *testing.T) {
	e := newRpcError(ErrTimedOut)
	require.Equal(t, "time out", e.Error())

	e2 := newRpcErrorf(ErrIoError, errors.New("boom"))
	require.Equal(t, "io error: boom", e2.Error())
	require.ErrorContains(t, e2.Unwrap(), "boom")
}

func TestRpcErrorZeroValueIsOk(t *testing.T) {
	var z RpcError
	require.Equal(t, ErrOk, z.Code)
	require.False(t, waiterResult{localErr: z}.hasLocalErr())
}

func TestClosableAppErrc(t *testing.T) {
	require.False(t, closableAppErrc(0))
	require.False(t, closableAppErrc(0xFF))
	require.True(t, closableAppErrc(1))
	require.True(t, closableAppErrc(0xFE))
}
