package corerpc

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/valyala/bytebufferpool"
)

// waiter is the per-call record created at send time (spec.md §3). Its
// resumption channel is completed exactly once, either by the receive loop
// with a response, or by fan-out when the connection fails or is closed (a
// firing timer closes the connection and so resolves it through fan-out).
type waiter struct {
	timer *time.Timer
	done  chan waiterResult // buffered 1: exactly one send, ever
}

// waiterResult is what resumes a waiter. Per SPEC_FULL.md §2, shared-buffer
// mode is dropped: body/attachment are always owned copies, never a view
// into the connection's scratch buffers.
type waiterResult struct {
	body       []byte
	attachment []byte
	appErrc    uint8
	localErr   RpcError // zero value (Code ErrOk) means "no local error"
}

func (r waiterResult) hasLocalErr() bool { return r.localErr.Code != ErrOk }

// controlBlock is the connection control block (spec.md §3): shared
// ownership across the Client, every pending waiter, the receive loop
// goroutine, and the per-call timers. Go has no single-threaded executor to
// lean on for serialization the way the original coroutine runtime does, so
// mu guards response_table/timedOut directly (SPEC_FULL.md §2).
type controlBlock struct {
	mu       sync.Mutex
	socket   net.Conn
	timedOut bool // sticky; guarded by mu

	closed     atomic.Bool
	recvActive atomic.Bool

	waiters map[uint32]*waiter

	readBuf   *bytebufferpool.ByteBuffer
	attachBuf *bytebufferpool.ByteBuffer

	respAttachment []byte // most recent response attachment, for Client.ResponseAttachment
}

func newControlBlock() *controlBlock {
	return &controlBlock{
		waiters:   make(map[uint32]*waiter),
		readBuf:   bytebufferpool.Get(),
		attachBuf: bytebufferpool.Get(),
	}
}

// closeSocket is the close protocol of spec.md §4.3: idempotent, and the
// actual shutdown runs asynchronously so the caller of close() never blocks
// on it. Pending waiters are NOT resolved here; that is the receive loop's
// job (spec.md §4.7) to preserve "every waiter resolved by exactly one
// path".
func (cb *controlBlock) closeSocket() {
	if !cb.closed.CompareAndSwap(false, true) {
		return
	}
	go func() {
		cb.mu.Lock()
		sock := cb.socket
		cb.mu.Unlock()
		if sock != nil {
			_ = sock.SetDeadline(time.Now())
			_ = sock.Close()
		}
	}()
}

// reset installs a fresh, unclosed state for a reconnect. Only safe to call
// while no call is in flight (spec.md §4.3).
func (cb *controlBlock) reset() {
	cb.closeSocket()
	cb.releaseScratchBuffers()
	cb.mu.Lock()
	cb.socket = nil
	cb.timedOut = false
	cb.readBuf = bytebufferpool.Get()
	cb.attachBuf = bytebufferpool.Get()
	cb.mu.Unlock()
	cb.closed.Store(false)
	cb.recvActive.Store(false)
}

// releaseScratchBuffers returns the connection's pooled scratch buffers to
// bytebufferpool. Idempotent: a second call on an already-released cb (e.g.
// Close followed by reset) is a no-op since the fields are nil by then.
func (cb *controlBlock) releaseScratchBuffers() {
	cb.mu.Lock()
	rb, ab := cb.readBuf, cb.attachBuf
	cb.readBuf, cb.attachBuf = nil, nil
	cb.mu.Unlock()
	if rb != nil {
		bytebufferpool.Put(rb)
	}
	if ab != nil {
		bytebufferpool.Put(ab)
	}
}

// fanOutLocalError resolves every still-pending waiter with the same local
// error and clears the table (spec.md §4.7's "on break" path, and the
// explicit-close path of spec.md §3 invariant 3).
func (cb *controlBlock) fanOutLocalError(err RpcError) {
	cb.mu.Lock()
	waiters := cb.waiters
	cb.waiters = make(map[uint32]*waiter)
	cb.mu.Unlock()

	for _, w := range waiters {
		if w.timer != nil {
			w.timer.Stop()
		}
		w.done <- waiterResult{localErr: err}
	}
}

// localCloseReason picks TimedOut vs IoError depending on the sticky flag,
// per spec.md §7's error-handling rules.
func (cb *controlBlock) localCloseReason(cause error) RpcError {
	cb.mu.Lock()
	timedOut := cb.timedOut
	cb.mu.Unlock()
	if timedOut {
		return newRpcError(ErrTimedOut)
	}
	return newRpcErrorf(ErrIoError, cause)
}
