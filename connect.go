package corerpc

import (
	"context"
	"crypto/tls"
	"net"
	"strings"
	"time"
)

func contextWithTimeout(d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), d)
}

// Connect dials host:port, bounding the TCP connect (and, if TLS is
// configured, the handshake) by timeout. Mirrors original_source's
// connect() state machine (spec.md §4.5).
func (c *Client) Connect(host, port string, timeout time.Duration) errc {
	c.config.Host = host
	c.config.Port = port
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	c.config.TimeoutDuration = timeout
	return c.connect(false)
}

// ConnectEndpoint is the "host:port" shape of Connect.
func (c *Client) ConnectEndpoint(endpoint string, timeout time.Duration) errc {
	host, port := splitEndpoint(endpoint)
	return c.Connect(host, port, timeout)
}

// Reconnect closes any existing connection, then connects to a (possibly
// new) host/port. Unlike Connect, it is permitted on a previously-closed
// client (spec.md §4.5's is_reconnect branch).
func (c *Client) Reconnect(host, port string, timeout time.Duration) errc {
	c.config.Host = host
	c.config.Port = port
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	c.config.TimeoutDuration = timeout
	c.cb.reset()
	return c.connect(true)
}

// ReconnectEndpoint is the "host:port" shape of Reconnect.
func (c *Client) ReconnectEndpoint(endpoint string, timeout time.Duration) errc {
	host, port := splitEndpoint(endpoint)
	return c.Reconnect(host, port, timeout)
}

func splitEndpoint(endpoint string) (host, port string) {
	i := strings.LastIndexByte(endpoint, ':')
	if i < 0 {
		return endpoint, ""
	}
	return endpoint[:i], endpoint[i+1:]
}

func (c *Client) connect(isReconnect bool) errc {
	if c.sslWanted && !c.sslInited {
		return ErrNotConnected
	}
	if !isReconnect && c.cb.closed.Load() {
		c.logger.Printf("corerpc: client_id %d a closed client is not allowed to connect again, use Reconnect or a new Client", c.config.ClientID)
		return ErrIoError
	}
	c.cb.closed.Store(false)

	c.logger.Printf("corerpc: client_id %d begin to connect %s:%s", c.config.ClientID, c.config.Host, c.config.Port)

	dctx, cancel := contextWithTimeout(c.config.TimeoutDuration)
	dialer := net.Dialer{}
	conn, err := dialer.DialContext(dctx, "tcp", net.JoinHostPort(c.config.Host, c.config.Port))
	cancel()

	if err != nil {
		if dctx.Err() == context.DeadlineExceeded {
			c.cb.mu.Lock()
			c.cb.timedOut = true
			c.cb.mu.Unlock()
			c.logger.Printf("corerpc: client_id %d connect timeout", c.config.ClientID)
			return ErrTimedOut
		}
		return ErrNotConnected
	}

	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}

	if c.sslWanted {
		tlsConn := tls.Client(conn, c.tlsConfig)
		hctx, cancel := contextWithTimeout(c.config.TimeoutDuration)
		defer cancel()
		if err := tlsConn.HandshakeContext(hctx); err != nil {
			c.logger.Printf("corerpc: client_id %d handshake failed: %s", c.config.ClientID, err)
			_ = conn.Close()
			return ErrNotConnected
		}
		conn = tlsConn
	}

	c.cb.mu.Lock()
	c.cb.socket = conn
	c.cb.mu.Unlock()
	return ErrOk
}
