package corerpc

import (
	"crypto/tls"
	"crypto/x509"
	"log"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/flowgate/corerpc/payload"
	"github.com/flowgate/corerpc/wire"
)

// Executor schedules background callbacks on behalf of a Client (spec.md
// §3's "executor: handle to the I/O runtime used to schedule callbacks").
// Go's runtime scheduler makes this unnecessary for correctness, but the
// hook is kept so a caller running many clients can supply a bounded worker
// pool instead of an unbounded goroutine-per-callback default.
type Executor interface {
	Go(func())
}

// goExecutor is the zero-configuration Executor: every callback gets its
// own goroutine, exactly what a bare `go func(){...}()` would do.
type goExecutor struct{}

func (goExecutor) Go(f func()) { go f() }

// Client is an asynchronous-style client for one framed RPC connection. Its
// zero value is not usable; construct with NewClient.
type Client struct {
	config   Config
	executor Executor
	logger   *log.Logger

	cb *controlBlock

	requestID atomic.Uint32

	mu            sync.Mutex
	reqAttachment []byte // pending-attachment, cleared on next send (spec.md §3)

	tlsConfig *tls.Config
	sslInited bool // false only when the latest InitSSL/InitConfig-with-TLS attempt failed
	sslWanted bool

	codec payload.Codec
}

// NewClient constructs a client bound to clientID, using the default
// goroutine-per-callback Executor and payload.GobCodec{} as the body codec.
func NewClient(clientID uint32) *Client {
	return NewClientWithExecutor(goExecutor{}, clientID, payload.GobCodec{})
}

// NewClientWithExecutor constructs a client using a caller-supplied
// Executor (spec.md §6: "construct with an executor and a client id") and
// payload.Codec.
func NewClientWithExecutor(executor Executor, clientID uint32, codec payload.Codec) *Client {
	return &Client{
		config:    Config{ClientID: clientID, TimeoutDuration: defaultCallTimeout},
		executor:  executor,
		logger:    log.New(os.Stderr, "", log.LstdFlags),
		cb:        newControlBlock(),
		sslInited: true,
		codec:     codec,
	}
}

// SetLogger overrides the default stderr logger.
func (c *Client) SetLogger(l *log.Logger) { c.logger = l }

// InitConfig applies conf. If conf carries a TLS section, this also runs
// TLS initialization synchronously (spec.md §4.5) and its return value
// reports whether that initialization succeeded.
func (c *Client) InitConfig(conf Config) bool {
	if conf.TimeoutDuration <= 0 {
		conf.TimeoutDuration = defaultCallTimeout
	}
	c.config = conf
	if conf.TLS != nil {
		return c.initSSL(conf.TLS.CertPath, conf.TLS.Domain)
	}
	return true
}

// InitSSL loads the verification file at filepath.Join(certBasePath,
// certFileName), sets peer verification to "verify peer + hostname matches
// domain", and marks the client as TLS-enabled for future connects. A
// missing certificate file disables TLS and every subsequent Connect fails
// with ErrNotConnected (spec.md §4.5).
func (c *Client) InitSSL(certBasePath, certFileName, domain string) bool {
	path := certBasePath
	if !strings.HasSuffix(path, string(os.PathSeparator)) && path != "" {
		path += string(os.PathSeparator)
	}
	return c.initSSL(path+certFileName, domain)
}

func (c *Client) initSSL(certPath, domain string) bool {
	c.sslWanted = true
	c.sslInited = false

	pem, err := os.ReadFile(certPath)
	if err != nil {
		c.logger.Printf("corerpc: client_id %d no certificate file %s", c.config.ClientID, certPath)
		return false
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		c.logger.Printf("corerpc: client_id %d invalid certificate file %s", c.config.ClientID, certPath)
		return false
	}
	c.tlsConfig = &tls.Config{RootCAs: pool, ServerName: domain}
	c.config.TLS = &TLSConfig{CertPath: certPath, Domain: domain}
	c.sslInited = true
	return true
}

// HasClosed reports whether the client's connection has been closed
// (spec.md §6).
func (c *Client) HasClosed() bool { return c.cb.closed.Load() }

// GetClientID returns the id supplied at construction.
func (c *Client) GetClientID() uint32 { return c.config.ClientID }

// GetHost returns the most recently connected/dialed host.
func (c *Client) GetHost() string { return c.config.Host }

// GetPort returns the most recently connected/dialed port.
func (c *Client) GetPort() string { return c.config.Port }

// GetExecutor returns the client's Executor.
func (c *Client) GetExecutor() Executor { return c.executor }

// Close tears the connection down. Idempotent; never blocks (spec.md
// §4.3).
func (c *Client) Close() {
	c.logger.Printf("corerpc: client_id %d close", c.config.ClientID)
	c.cb.closeSocket()
	// Only safe to reclaim the scratch buffers here if no receive loop is
	// running: it owns them for its whole lifetime (recv.go) and reads into
	// them outside cb.mu, so pulling a buffer's backing array out from under
	// an in-flight read would corrupt it. If the loop is active it releases
	// them itself on exit instead.
	if !c.cb.recvActive.Load() {
		c.cb.releaseScratchBuffers()
	}
}

// SetRequestAttachment attaches an uninterpreted byte sidecar to the next
// outbound request; it is consumed exactly once by that send (spec.md
// §4.6). Returns false (and does not set anything) if attachment exceeds
// what a u32 attach_length field can carry.
func (c *Client) SetRequestAttachment(attachment []byte) bool {
	if !wire.FitsUint32(len(attachment)) {
		c.logger.Printf("corerpc: client_id %d too large rpc attachment", c.config.ClientID)
		return false
	}
	c.mu.Lock()
	c.reqAttachment = attachment
	c.mu.Unlock()
	return true
}

func (c *Client) takeRequestAttachment() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	a := c.reqAttachment
	c.reqAttachment = nil
	return a
}

// ResponseAttachment returns the most recent response's attachment bytes
// without clearing them.
func (c *Client) ResponseAttachment() []byte {
	c.cb.mu.Lock()
	defer c.cb.mu.Unlock()
	return c.cb.respAttachment
}

// ReleaseResponseAttachment returns and clears the most recent response's
// attachment bytes (distinct from ResponseAttachment; both are named in
// spec.md §6 / original_source).
func (c *Client) ReleaseResponseAttachment() []byte {
	c.cb.mu.Lock()
	defer c.cb.mu.Unlock()
	a := c.cb.respAttachment
	c.cb.respAttachment = nil
	return a
}

