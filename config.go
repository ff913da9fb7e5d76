package corerpc

import "time"

// defaultCallTimeout is the 5-second default named in spec.md §6.
const defaultCallTimeout = 5 * time.Second

// defaultConnectTimeout matches original_source's connect()/reconnect()
// default of five seconds.
const defaultConnectTimeout = 5 * time.Second

// TLSConfig carries the two fields spec.md §6 lists for TLS-enabled clients.
type TLSConfig struct {
	// CertPath is the verification file loaded at InitSSL time (spec.md
	// §4.5). A missing file disables TLS for all subsequent connects.
	CertPath string
	// Domain is matched against the peer certificate's name.
	Domain string
}

// Config is the client's immutable-after-connect configuration (spec.md
// §3's "Client configuration").
type Config struct {
	ClientID        uint32
	Host            string
	Port            string
	TimeoutDuration time.Duration
	TLS             *TLSConfig
}
