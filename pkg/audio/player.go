package audio

import (
	"context"
	"log/slog"

	"stilllift/pkg/assets"
)

// Player ties an asset source and its cache to an output device and hands
// out clips for individual asset paths.
type Player struct {
	source assets.Source
	cache  *assets.Cache
	out    Output
}

func NewPlayer(src assets.Source, cache *assets.Cache, out Output) *Player {
	return &Player{source: src, cache: cache, out: out}
}

// NewClip creates an unloaded clip for an asset path.
func (p *Player) NewClip(path string, opts PlayOptions) *Clip {
	return &Clip{
		player: p,
		path:   path,
		opts:   opts,
		done:   make(chan struct{}),
	}
}

func (p *Player) SetVolume(vol float64) {
	p.out.SetVolume(vol)
}

func (p *Player) Volume() float64 {
	return p.out.Volume()
}

// CacheLen reports how many assets are held for immediate playback.
func (p *Player) CacheLen() int {
	return p.cache.Len()
}

// Preload warms the cache. Missing assets are logged, not returned.
func (p *Player) Preload(ctx context.Context, paths ...string) int {
	loaded := 0
	for _, path := range paths {
		if _, err := p.cache.Fetch(ctx, p.source, path); err != nil {
			slog.Debug("Audio: preload skipped", "path", path, "error", err)
			continue
		}
		loaded++
	}
	return loaded
}

func (p *Player) fetch(ctx context.Context, path string) ([]byte, error) {
	return p.cache.Fetch(ctx, p.source, path)
}
