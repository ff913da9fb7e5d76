package corerpc

import "time"

// armTimer schedules a deadline that, on fire (not cancellation), marks cb
// timed out and closes the connection (spec.md §4.4). duration <= 0 disables
// the timer entirely (spec.md §8 boundary behavior), returning nil; callers
// must nil-check before calling Stop.
//
// The original holds only a weak reference to the control block so a fired
// timer on an already-dropped connection is a no-op; closeSocket's own
// idempotency (control.go) gives the same guarantee here without needing a
// weak pointer, since Go's garbage collector already keeps cb alive for as
// long as this closure does.
func armTimer(cb *controlBlock, duration time.Duration) *time.Timer {
	if duration <= 0 {
		return nil
	}
	return time.AfterFunc(duration, func() {
		cb.mu.Lock()
		cb.timedOut = true
		cb.mu.Unlock()
		cb.closeSocket()
	})
}

// stopTimer cancels t if armed; a nil timer (disabled deadline) is a no-op.
func stopTimer(t *time.Timer) {
	if t != nil {
		t.Stop()
	}
}
