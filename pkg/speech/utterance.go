package speech

import (
	"context"
	"sync"
	"sync/atomic"
)

// Utterance is one piece of text being spoken.
type Utterance struct {
	Text string

	cancel   context.CancelFunc
	done     chan struct{}
	speaking atomic.Bool

	mu  sync.Mutex
	err error
}

// Cancel stops the utterance. Safe to call repeatedly.
func (u *Utterance) Cancel() {
	u.cancel()
}

// Done is closed once the utterance has finished or been cancelled.
func (u *Utterance) Done() <-chan struct{} {
	return u.done
}

// Speaking reports whether the utterance is still pending or audible.
func (u *Utterance) Speaking() bool {
	return u.speaking.Load()
}

// Err returns the *Error that ended the utterance, or nil.
func (u *Utterance) Err() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.err
}

func (u *Utterance) setErr(err error) {
	u.mu.Lock()
	u.err = err
	u.mu.Unlock()
}
