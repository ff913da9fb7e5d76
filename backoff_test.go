package corerpc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestReconnectBackoffStaysWithinBounds(t *testing.T) {
	b := NewReconnectBackoff(10*time.Millisecond, 100*time.Millisecond, 2)

	for i := 0; i < 10; i++ {
		d := b.Next()
		require.GreaterOrEqual(t, d, 10*time.Millisecond)
		require.LessOrEqual(t, d, 100*time.Millisecond)
	}
}

func TestReconnectBackoffReset(t *testing.T) {
	b := NewReconnectBackoff(10*time.Millisecond, 100*time.Millisecond, 2)
	for i := 0; i < 5; i++ {
		b.Next()
	}
	b.Reset()
	require.Equal(t, 10*time.Millisecond, b.Next())
}
