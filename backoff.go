package corerpc

import (
	"time"

	"github.com/jpillora/backoff"
)

// ReconnectBackoff spaces out repeated calls to Reconnect. The client never
// invokes this itself — spec.md's "no automatic retry" Non-goal binds only
// the client's own behavior; a caller that wants a reconnect loop is free
// to use this helper (or nothing at all) to pace its own attempts.
type ReconnectBackoff struct {
	b *backoff.Backoff
}

// NewReconnectBackoff builds a ReconnectBackoff with the given bounds.
func NewReconnectBackoff(min, max time.Duration, factor float64) *ReconnectBackoff {
	return &ReconnectBackoff{b: &backoff.Backoff{
		Min:    min,
		Max:    max,
		Factor: factor,
		Jitter: true,
	}}
}

// Next returns the delay before the next reconnect attempt and advances the
// internal attempt counter.
func (r *ReconnectBackoff) Next() time.Duration { return r.b.Duration() }

// Reset clears the attempt counter, e.g. after a successful Reconnect.
func (r *ReconnectBackoff) Reset() { r.b.Reset() }
