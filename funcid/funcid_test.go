package funcid

import (
	"hash/crc64"
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleFunc(int) string { return "" }

func TestOfIsStableAndCached(t *testing.T) {
	a := Of(sampleFunc)
	b := Of(sampleFunc)
	require.Equal(t, a, b)
}

func TestOfDistinguishesFunctions(t *testing.T) {
	other := func(int) string { return "" }
	require.NotEqual(t, Of(sampleFunc), Of(other))
}

func TestOfNameMatchesManualChecksum(t *testing.T) {
	require.Equal(t, crc64.Checksum([]byte("foo"), crc64.MakeTable(crc64.ECMA)), OfName("foo"))
	require.NotEqual(t, OfName("foo"), OfName("bar"))
}

func TestOfPanicsOnNonFunc(t *testing.T) {
	require.Panics(t, func() { Of(42) })
}
