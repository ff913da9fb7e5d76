package corerpc

import (
	"fmt"
	"io"

	"github.com/flowgate/corerpc/wire"
)

// startRecvLoopIfNeeded starts the single background receive goroutine the
// first time the waiter table becomes non-empty (spec.md §3 invariant 2).
func (c *Client) startRecvLoopIfNeeded() {
	if c.cb.recvActive.CompareAndSwap(false, true) {
		c.executor.Go(c.recvLoop)
	}
}

// ensureLen grows buf's backing array (without losing pooled capacity
// across calls) so that buf.B[:n] is addressable, and returns that slice.
func ensureLen(b *[]byte, n int) []byte {
	if cap(*b) < n {
		*b = make([]byte, n)
	}
	*b = (*b)[:n]
	return *b
}

// recvLoop is the single task per connection that owns the socket read side
// for the connection's lifetime (spec.md §4.7). It terminates either when
// the waiter table drains to empty (graceful) or on a transport/protocol
// error, in which case it fans every still-pending waiter out with the same
// local error code before returning.
func (c *Client) recvLoop() {
	cb := c.cb
	// The loop is the sole owner of the scratch buffers for its lifetime. On
	// a graceful exit (table drained) they are kept for the next loop; on an
	// error exit the loop releases them back to the pool itself rather than
	// leaving it to Close, which could otherwise race an in-flight read (see
	// Close).
	var headerBuf [wire.RespHeaderLen]byte

	var breakErr error
	for {
		cb.mu.Lock()
		sock := cb.socket
		cb.mu.Unlock()
		if sock == nil {
			breakErr = fmt.Errorf("corerpc: no socket")
			break
		}

		if _, err := io.ReadFull(sock, headerBuf[:]); err != nil {
			breakErr = err
			break
		}
		h := wire.GetResponseHeader(headerBuf[:])

		cb.mu.Lock()
		body := ensureLen(&cb.readBuf.B, int(h.Length))
		cb.mu.Unlock()

		var attachment []byte
		if h.AttachLength == 0 {
			if _, err := io.ReadFull(sock, body); err != nil {
				breakErr = err
				break
			}
			cb.mu.Lock()
			cb.attachBuf.B = cb.attachBuf.B[:0]
			cb.mu.Unlock()
		} else {
			// Sequential full reads stand in for the original's scatter
			// (iovec) read: net.Conn exposes no vectored-read primitive in
			// the standard library, and no pack dependency supplies one,
			// so two ordered reads over the same byte stream are the
			// idiomatic substitute (same bytes land in the same places).
			if _, err := io.ReadFull(sock, body); err != nil {
				breakErr = err
				break
			}
			cb.mu.Lock()
			attach := ensureLen(&cb.attachBuf.B, int(h.AttachLength))
			cb.mu.Unlock()
			if _, err := io.ReadFull(sock, attach); err != nil {
				breakErr = err
				break
			}
			attachment = append([]byte(nil), attach...)
		}

		ownedBody := append([]byte(nil), body...)

		cb.mu.Lock()
		w, found := cb.waiters[h.SeqNum]
		if found {
			delete(cb.waiters, h.SeqNum)
		}
		remaining := len(cb.waiters)
		cb.respAttachment = attachment
		cb.mu.Unlock()

		if !found {
			c.logger.Printf("corerpc: client_id %d unknown response seq_num %d, closing", c.config.ClientID, h.SeqNum)
			breakErr = RpcError{Code: ErrProtocolError, Msg: "unknown sequence number in response"}
			break
		}

		stopTimer(w.timer)
		w.done <- waiterResult{body: ownedBody, attachment: attachment, appErrc: h.ErrCode}

		if closableAppErrc(h.ErrCode) {
			// spec.md §4.1: a server err_code in 0x01..0xFE must close the
			// connection right after the waiter that received it is
			// resumed; every other still-pending waiter is fanned out with
			// a local error rather than left to a subsequent failed read.
			cb.closeSocket()
			cb.recvActive.Store(false)
			cb.fanOutLocalError(newRpcError(ErrIoError))
			cb.releaseScratchBuffers()
			return
		}

		if remaining == 0 {
			cb.recvActive.Store(false)
			return
		}
	}

	cb.recvActive.Store(false)
	cb.closeSocket()
	cb.fanOutLocalError(cb.localCloseReason(breakErr))
	cb.releaseScratchBuffers()
}
