package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

var (
	// ErrNotLoaded means the asset is not cached yet; Load it first.
	ErrNotLoaded = errors.New("audio not loaded")
	// ErrStopped is returned by Play on a clip that was already stopped.
	ErrStopped = errors.New("clip stopped")
)

// LoadEvent is a readiness signal emitted by Clip.Load.
type LoadEvent string

const (
	EventLoadedData     LoadEvent = "loadeddata"
	EventCanPlay        LoadEvent = "canplay"
	EventCanPlayThrough LoadEvent = "canplaythrough"
	EventError          LoadEvent = "error"
)

// Clip plays a single asset. A clip plays at most once; after Stop or a
// natural end it is spent.
type Clip struct {
	player *Player
	path   string
	opts   PlayOptions

	mu       sync.Mutex
	pb       Playback
	playing  bool
	stopped  bool
	looked   bool
	loadErr  error
	done     chan struct{}
	doneOnce sync.Once
}

func (c *Clip) Path() string { return c.path }

// Play starts playback when the asset is already cached. Only the first
// attempt counts toward the cache hit rate.
func (c *Clip) Play() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return ErrStopped
	}
	if c.pb != nil {
		return nil
	}
	lookup := c.player.cache.Get
	if c.looked {
		lookup = c.player.cache.Peek
	}
	c.looked = true
	data, ok := lookup(c.path)
	if !ok {
		return ErrNotLoaded
	}
	stream, format, err := Decode(c.path, data)
	if err != nil {
		return err
	}
	pb, err := c.player.out.Start(stream, format, c.opts, c.ended)
	if err != nil {
		_ = stream.Close()
		return fmt.Errorf("failed to start playback: %w", err)
	}
	c.pb = pb
	c.playing = true
	slog.Debug("Audio: playing", "path", c.path, "rate", c.opts.rate())
	return nil
}

// Load fetches and decodes the asset in the background. The channel receives
// the ready events in order, or a single EventError, and is then closed.
func (c *Clip) Load(ctx context.Context) <-chan LoadEvent {
	events := make(chan LoadEvent, 3)
	go func() {
		defer close(events)
		if err := c.load(ctx); err != nil {
			c.mu.Lock()
			c.loadErr = err
			c.mu.Unlock()
			events <- EventError
			return
		}
		events <- EventLoadedData
		events <- EventCanPlay
		events <- EventCanPlayThrough
	}()
	return events
}

func (c *Clip) load(ctx context.Context) error {
	data, err := c.player.fetch(ctx, c.path)
	if err != nil {
		return err
	}
	// Probe the decoder so a corrupt file surfaces as a load error.
	s, _, err := Decode(c.path, data)
	if err != nil {
		return err
	}
	return s.Close()
}

// LoadErr returns the error behind the last EventError.
func (c *Clip) LoadErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadErr
}

// Stop pauses, rewinds to the start and releases the clip. Safe to call
// more than once and before Play.
func (c *Clip) Stop() error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	pb := c.pb
	c.mu.Unlock()

	if pb == nil {
		c.ended()
		return nil
	}
	pb.Pause()
	err := pb.Rewind()
	pb.Close()
	if err != nil {
		return fmt.Errorf("failed to rewind %s: %w", c.path, err)
	}
	return nil
}

// Done is closed when playback ends or the clip is stopped.
func (c *Clip) Done() <-chan struct{} {
	return c.done
}

func (c *Clip) Playing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing
}

func (c *Clip) ended() {
	c.mu.Lock()
	c.playing = false
	c.mu.Unlock()
	c.doneOnce.Do(func() { close(c.done) })
}
