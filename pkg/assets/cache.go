package assets

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"stilllift/pkg/tracker"
)

// DefaultCacheEntries bounds the cache when no size is configured.
const DefaultCacheEntries = 64

// Cache keeps recently fetched asset bytes in memory so they can be played
// immediately.
type Cache struct {
	entries *lru.Cache[string, []byte]
	tracker *tracker.Tracker
}

// NewCache creates a cache holding up to size assets.
func NewCache(size int, t *tracker.Tracker) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheEntries
	}
	c, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create asset cache: %w", err)
	}
	return &Cache{entries: c, tracker: t}, nil
}

// Get returns cached bytes for p and counts the lookup as a hit or miss.
func (c *Cache) Get(p string) ([]byte, bool) {
	data, ok := c.entries.Get(p)
	if ok {
		c.tracker.TrackHit(tracker.ProviderCache)
	} else {
		c.tracker.TrackMiss(tracker.ProviderCache)
	}
	return data, ok
}

// Peek is Get without the hit/miss accounting.
func (c *Cache) Peek(p string) ([]byte, bool) {
	return c.entries.Get(p)
}

// Put stores data for p.
func (c *Cache) Put(p string, data []byte) {
	c.entries.Add(p, data)
}

// Len returns the number of cached assets.
func (c *Cache) Len() int {
	return c.entries.Len()
}

// Fetch returns cached bytes or loads them from src and caches the result.
func (c *Cache) Fetch(ctx context.Context, src Source, p string) ([]byte, error) {
	if data, ok := c.entries.Get(p); ok {
		return data, nil
	}
	data, err := src.Fetch(ctx, p)
	if err != nil {
		return nil, err
	}
	c.Put(p, data)
	return data, nil
}
