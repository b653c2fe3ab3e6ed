package session

import "sync/atomic"

// Token is the cooperative cancellation flag threaded through one session.
// It is set once and observed at every phase boundary.
type Token struct {
	flag atomic.Bool
}

// Cancel flags the session for cancellation.
func (t *Token) Cancel() {
	t.flag.Store(true)
}

// Cancelled reports whether cancellation has been requested.
func (t *Token) Cancelled() bool {
	return t.flag.Load()
}
