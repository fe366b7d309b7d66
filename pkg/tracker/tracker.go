// Package tracker counts asset and speech outcomes per provider.
package tracker

import (
	"sync"
	"sync/atomic"
)

// Well-known provider names.
const (
	ProviderCache    = "asset-cache"
	ProviderResolver = "resolver"
)

// Tracker tracks usage statistics per provider.
type Tracker struct {
	mu    sync.RWMutex
	stats map[string]*ProviderStats
}

// ProviderStats holds counters for a specific provider.
// Fields are accessed atomically.
type ProviderStats struct {
	Hits     int64
	Misses   int64
	Success  int64
	Failures int64
	NotFound int64
}

// New creates a new Tracker.
func New() *Tracker {
	return &Tracker{
		stats: make(map[string]*ProviderStats),
	}
}

func (t *Tracker) getStats(provider string) *ProviderStats {
	t.mu.RLock()
	s, ok := t.stats[provider]
	t.mu.RUnlock()
	if ok {
		return s
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok = t.stats[provider]; ok {
		return s
	}
	s = &ProviderStats{}
	t.stats[provider] = s
	return s
}

// TrackHit counts a lookup served without fetching.
func (t *Tracker) TrackHit(provider string) {
	if t == nil {
		return
	}
	atomic.AddInt64(&t.getStats(provider).Hits, 1)
}

func (t *Tracker) TrackMiss(provider string) {
	if t == nil {
		return
	}
	atomic.AddInt64(&t.getStats(provider).Misses, 1)
}

func (t *Tracker) TrackSuccess(provider string) {
	if t == nil {
		return
	}
	atomic.AddInt64(&t.getStats(provider).Success, 1)
}

func (t *Tracker) TrackFailure(provider string) {
	if t == nil {
		return
	}
	atomic.AddInt64(&t.getStats(provider).Failures, 1)
}

// TrackNotFound counts lookups for assets that do not exist. These are
// expected during candidate resolution and are not failures.
func (t *Tracker) TrackNotFound(provider string) {
	if t == nil {
		return
	}
	atomic.AddInt64(&t.getStats(provider).NotFound, 1)
}

// Snapshot returns a copy of the current stats.
func (t *Tracker) Snapshot() map[string]ProviderStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make(map[string]ProviderStats, len(t.stats))
	for k, v := range t.stats {
		result[k] = ProviderStats{
			Hits:     atomic.LoadInt64(&v.Hits),
			Misses:   atomic.LoadInt64(&v.Misses),
			Success:  atomic.LoadInt64(&v.Success),
			Failures: atomic.LoadInt64(&v.Failures),
			NotFound: atomic.LoadInt64(&v.NotFound),
		}
	}
	return result
}
