package corerpc

import (
	"net"

	"github.com/flowgate/corerpc/wire"
)

// prepareBuffer encodes args, copies the body in after room for the request
// header, then stamps the header in place (spec.md §4.6 steps 2-4). seq is
// reserved by the caller beforehand (see SendRequestFor in call.go) so the
// waiter it belongs to is already in c.cb.waiters by the time this frame
// can possibly reach the wire.
//
// Go's type system has no analogue of the original's template-level arity
// check against a reflected parameter list (original_source's
// static_check/get_func_args); a mismatch between a registered handler's
// expected argument shape and what was actually sent instead surfaces as a
// body-decode error on whichever side decodes it, which is where a dynamic
// language's RPC stubs always end up failing anyway.
func (c *Client) prepareBuffer(functionID uint64, seq uint32, args any, attachLen int) ([]byte, RpcError) {
	body, err := c.codec.Encode(args)
	if err != nil {
		return nil, newRpcErrorf(ErrInvalidRpcArguments, err)
	}
	if !wire.FitsUint32(len(body)) {
		c.logger.Printf("corerpc: client_id %d too large rpc body", c.config.ClientID)
		return nil, newRpcError(ErrMessageTooLarge)
	}

	buf := make([]byte, wire.ReqHeaderLen+len(body))
	copy(buf[wire.ReqHeaderLen:], body)

	wire.PutRequestHeader(buf, wire.RequestHeader{
		Magic:        wire.MagicNumber,
		FunctionID:   functionID,
		Length:       uint32(len(body)),
		AttachLength: uint32(attachLen),
		SeqNum:       seq,
	})
	return buf, RpcError{}
}

// sendImpl writes one request frame for seq (spec.md §4.6): encode, stamp
// header, gather-write the optional attachment. seq must already have a
// waiter registered in c.cb.waiters before this is called — unlike
// original_source's single-threaded-executor model, corerpc's receive loop
// runs concurrently on its own goroutine and can observe a reply for seq the
// instant the write below completes, so "register, then write" is the only
// safe order (spec.md §3 invariants 1/3). The caller is responsible for
// removing seq's waiter if this returns a non-ErrOk RpcError.
func (c *Client) sendImpl(seq uint32, functionID uint64, args any) RpcError {
	if c.cb.closed.Load() {
		return connErrClosed
	}

	attachment := c.takeRequestAttachment()
	buf, rerr := c.prepareBuffer(functionID, seq, args, len(attachment))
	if rerr.Code != ErrOk {
		return rerr
	}

	c.cb.mu.Lock()
	sock := c.cb.socket
	c.cb.mu.Unlock()
	if sock == nil {
		return connErrClosed
	}

	var err error
	if len(attachment) > 0 {
		bufs := net.Buffers{buf, attachment}
		_, err = bufs.WriteTo(sock)
	} else {
		_, err = sock.Write(buf)
	}
	if err != nil {
		c.Close()
		return c.cb.localCloseReason(err)
	}
	return RpcError{}
}
