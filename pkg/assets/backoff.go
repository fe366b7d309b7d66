package assets

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"
	"time"
)

// Backoff manages exponential backoff per asset host.
type Backoff struct {
	mu        sync.RWMutex
	hosts     map[string]*backoffState
	baseDelay time.Duration
	maxDelay  time.Duration
}

type backoffState struct {
	failureCount int
	nextAllowed  time.Time
}

// NewBackoff creates a new backoff manager.
func NewBackoff(baseDelay, maxDelay time.Duration) *Backoff {
	return &Backoff{
		hosts:     make(map[string]*backoffState),
		baseDelay: baseDelay,
		maxDelay:  maxDelay,
	}
}

// Wait blocks until the host is allowed another request or ctx is done.
func (b *Backoff) Wait(ctx context.Context, host string) error {
	if b == nil {
		return nil
	}
	b.mu.RLock()
	state, exists := b.hosts[host]
	var next time.Time
	if exists {
		next = state.nextAllowed
	}
	b.mu.RUnlock()

	d := time.Until(next)
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RecordFailure increases the delay for a host.
func (b *Backoff) RecordFailure(host string) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	state, exists := b.hosts[host]
	if !exists {
		state = &backoffState{}
		b.hosts[host] = state
	}

	state.failureCount++
	state.nextAllowed = time.Now().Add(b.calculateDelay(state.failureCount))
}

// RecordSuccess decreases the delay (gradual recovery).
func (b *Backoff) RecordSuccess(host string) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	state, exists := b.hosts[host]
	if !exists {
		return
	}
	if state.failureCount > 0 {
		state.failureCount--
	}
	if state.failureCount == 0 {
		state.nextAllowed = time.Time{}
	}
}

// calculateDelay returns exponential delay with 10% jitter, capped at maxDelay.
func (b *Backoff) calculateDelay(failures int) time.Duration {
	delay := time.Duration(float64(b.baseDelay) * math.Pow(2, float64(failures-1)))
	if delay > b.maxDelay {
		delay = b.maxDelay
	}
	jitter := time.Duration(rand.Float64() * 0.1 * float64(delay))
	return delay + jitter
}

// State returns the current failure count for a host.
func (b *Backoff) State(host string) (failureCount int, nextAllowed time.Time) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if state, exists := b.hosts[host]; exists {
		return state.failureCount, state.nextAllowed
	}
	return 0, time.Time{}
}
