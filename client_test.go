package corerpc

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewClientDefaults(t *testing.T) {
	c := NewClient(7)
	require.Equal(t, uint32(7), c.GetClientID())
	require.False(t, c.HasClosed())
	require.Equal(t, defaultCallTimeout, c.config.TimeoutDuration)
}

func TestSetRequestAttachmentConsumedOnce(t *testing.T) {
	c := NewClient(1)
	require.True(t, c.SetRequestAttachment([]byte("small")))
	require.Equal(t, []byte("small"), c.takeRequestAttachment())
	require.Nil(t, c.takeRequestAttachment()) // consumed exactly once
}

func TestInitSSLFailsOnMissingCertFile(t *testing.T) {
	c := NewClient(1)
	dir := t.TempDir()
	require.False(t, c.InitSSL(dir, "does-not-exist.pem", "example.com"))
}

func TestInitSSLRejectsInvalidCertContents(t *testing.T) {
	c := NewClient(1)
	dir := t.TempDir()
	certPath := dir + string(os.PathSeparator) + "ca.pem"
	require.NoError(t, os.WriteFile(certPath, []byte("not a certificate"), 0o600))

	require.False(t, c.InitSSL(dir, "ca.pem", "example.com"))
}
