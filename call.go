package corerpc

import (
	"time"

	"github.com/flowgate/corerpc/funcid"
	"github.com/flowgate/corerpc/payload"
)

// PendingCall is the inner stage of the two-stage call facade (spec.md
// §4.8): SendRequest/SendRequestFor return one of these once the request
// has been written and a waiter registered; Await suspends until the
// receive loop resolves it.
type PendingCall[R any] struct {
	c           *Client
	w           *waiter
	connContext any
}

// ConnContext returns the value attached via WithConnContext, or nil if
// none was supplied.
func (p *PendingCall[R]) ConnContext() any { return p.connContext }

// Await blocks until the response for this call arrives (or its timer, or
// the connection, resolves it with an error) and decodes the result.
func (p *PendingCall[R]) Await() (R, RpcError) {
	res := <-p.w.done
	return decodeResult[R](p.c, res)
}

// CallOption configures a single SendRequestFor/CallFor invocation.
type CallOption func(*callOptions)

type callOptions struct {
	connContext any
}

// WithConnContext attaches v as this call's connection-context value. The
// original implementation detects a leading parameter type that carries a
// nested marker and strips it from the packed argument list before it
// reaches the wire; corerpc has no reflective argument list to strip a
// parameter from (args is already a single opaque value encoded by
// payload.Codec), so the same contract — this value never reaches the
// argument codec, never crosses the wire — is expressed as an explicit
// option instead. Retrieve it from the PendingCall with ConnContext.
func WithConnContext(v any) CallOption {
	return func(o *callOptions) { o.connContext = v }
}

// SendRequest is the outer stage: encode, write, register a waiter, start
// the receive loop if it is not already running. fn identifies the target
// RPC function (see the funcid package); args is encoded with the client's
// payload.Codec. Uses the client's default timeout.
func SendRequest[R any](c *Client, fn any, args any, opts ...CallOption) (*PendingCall[R], RpcError) {
	return SendRequestFor[R](c, c.config.TimeoutDuration, fn, args, opts...)
}

// SendRequestFor is SendRequest with an explicit timeout. timeout <= 0
// disables the per-call timer entirely (spec.md §8).
func SendRequestFor[R any](c *Client, timeout time.Duration, fn any, args any, opts ...CallOption) (*PendingCall[R], RpcError) {
	var o callOptions
	for _, opt := range opts {
		opt(&o)
	}

	functionID := resolveFunctionID(fn)

	if c.cb.closed.Load() {
		return nil, connErrClosed
	}
	if c.sslWanted && !c.sslInited {
		return nil, newRpcError(ErrNotConnected)
	}

	// Reserve the seq_num and register its waiter before the request frame
	// is written (see send.go's sendImpl doc comment): the receive loop runs
	// concurrently and must never be able to observe seq's response before
	// something is in the table to resolve it.
	seq := c.requestID.Add(1) - 1
	w := &waiter{
		timer: armTimer(c.cb, timeout),
		done:  make(chan waiterResult, 1),
	}

	c.cb.mu.Lock()
	if _, exists := c.cb.waiters[seq]; exists {
		c.cb.mu.Unlock()
		stopTimer(w.timer)
		c.Close()
		return nil, newRpcError(ErrSerialNumberConflict)
	}
	c.cb.waiters[seq] = w
	c.cb.mu.Unlock()

	if rerr := c.sendImpl(seq, functionID, args); rerr.Code != ErrOk {
		c.cb.mu.Lock()
		delete(c.cb.waiters, seq)
		c.cb.mu.Unlock()
		stopTimer(w.timer)
		return nil, rerr
	}

	c.startRecvLoopIfNeeded()

	return &PendingCall[R]{c: c, w: w, connContext: o.connContext}, RpcError{}
}

// Call composes SendRequest and Await using the client's configured
// TimeoutDuration: 5 seconds on a new client, replaced by the timeout passed
// to InitConfig, Connect or Reconnect.
func Call[R any](c *Client, fn any, args any, opts ...CallOption) (R, RpcError) {
	return CallFor[R](c, c.config.TimeoutDuration, fn, args, opts...)
}

// CallFor composes SendRequestFor and Await with an explicit timeout.
func CallFor[R any](c *Client, timeout time.Duration, fn any, args any, opts ...CallOption) (R, RpcError) {
	var zero R
	pending, rerr := SendRequestFor[R](c, timeout, fn, args, opts...)
	if rerr.Code != ErrOk {
		return zero, rerr
	}
	return pending.Await()
}

func resolveFunctionID(fn any) uint64 {
	if name, ok := fn.(string); ok {
		return funcid.OfName(name)
	}
	return funcid.Of(fn)
}

// decodeResult mirrors original_source's handle_response_buffer (spec.md
// §4.8): app_errc 0 decodes the return value; 0xFF decodes a structured
// error record without closing; anything else decodes a message string and
// the connection is torn down (already done by the receive loop -
// see recv.go).
func decodeResult[R any](c *Client, res waiterResult) (R, RpcError) {
	var zero R
	if res.hasLocalErr() {
		return zero, res.localErr
	}

	switch {
	case res.appErrc == 0:
		var val R
		if err := c.codec.Decode(res.body, &val); err != nil {
			c.cb.closeSocket()
			return zero, newRpcErrorf(ErrInvalidRpcResult, err)
		}
		return val, RpcError{}

	case res.appErrc == 0xFF:
		rec, err := payload.DecodeErrorRecord(res.body)
		if err != nil {
			c.cb.closeSocket()
			return zero, newRpcErrorf(ErrInvalidRpcResult, err)
		}
		return zero, RpcError{Code: errc(rec.Code), Msg: rec.Message}

	default:
		var msg string
		if err := c.codec.Decode(res.body, &msg); err != nil {
			return zero, newRpcErrorf(ErrInvalidRpcResult, err)
		}
		return zero, RpcError{Code: errc(res.appErrc), Msg: msg}
	}
}
