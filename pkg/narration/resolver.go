package narration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"stilllift/pkg/audio"
	"stilllift/pkg/logging"
	"stilllift/pkg/tracker"
)

// DefaultLoadTimeout bounds the wait for a candidate's ready signal.
const DefaultLoadTimeout = 2 * time.Second

// Clip is a playable asset, as produced by audio.Player.
type Clip interface {
	AudioHandle
	Play() error
	Load(ctx context.Context) <-chan audio.LoadEvent
	LoadErr() error
}

// ClipSource creates clips for asset paths.
type ClipSource interface {
	NewClip(path string, opts audio.PlayOptions) Clip
}

type playerClips struct{ p *audio.Player }

func (s playerClips) NewClip(path string, opts audio.PlayOptions) Clip {
	return s.p.NewClip(path, opts)
}

// PlayerClips adapts an audio.Player to ClipSource.
func PlayerClips(p *audio.Player) ClipSource {
	return playerClips{p: p}
}

// Resolution reports what ResolveAndPlay did.
type Resolution struct {
	Played     bool
	Path       string
	Candidates int // candidates tried, including the one that played
}

// Resolver walks the candidate list and plays the first asset that works.
type Resolver struct {
	clips       ClipSource
	coord       *Coordinator
	tracker     *tracker.Tracker
	loadTimeout time.Duration
}

func NewResolver(clips ClipSource, coord *Coordinator, t *tracker.Tracker, loadTimeout time.Duration) *Resolver {
	if loadTimeout <= 0 {
		loadTimeout = DefaultLoadTimeout
	}
	return &Resolver{clips: clips, coord: coord, tracker: t, loadTimeout: loadTimeout}
}

// ResolveAndPlay tries each candidate in order, one at a time. The first
// clip that starts is assigned to the coordinator under tok. Misses are
// logged, never returned.
func (r *Resolver) ResolveAndPlay(ctx context.Context, tok Token, title, message string, opts Options) Resolution {
	candidates := Candidates(title, message, opts)
	po := audio.PlayOptions{Rate: opts.Rate, Volume: opts.Volume}
	res := Resolution{}

	for _, path := range candidates {
		if ctx.Err() != nil || !r.coord.Current(tok) {
			slog.Debug("Narration: resolution abandoned", "tried", res.Candidates)
			return res
		}
		res.Candidates++
		logging.Trace("Narration: trying candidate", "path", path)

		clip := r.clips.NewClip(path, po)
		if err := r.playCandidate(ctx, tok, clip); err != nil {
			_ = clip.Stop()
			if errors.Is(err, errSuperseded) {
				slog.Debug("Narration: resolution superseded", "path", path)
				return res
			}
			slog.Debug("Narration: candidate failed", "path", path, "error", err)
			continue
		}

		if !r.coord.AssignAudio(tok, clip, opts.intent()) {
			return res
		}
		r.tracker.TrackSuccess(tracker.ProviderResolver)
		res.Played = true
		res.Path = path
		return res
	}

	r.tracker.TrackFailure(tracker.ProviderResolver)
	return res
}

var errSuperseded = errors.New("narration superseded")

// supersedePoll is how often a pending load checks whether a newer
// narration has taken over.
const supersedePoll = 25 * time.Millisecond

func (r *Resolver) playCandidate(ctx context.Context, tok Token, clip Clip) error {
	err := safePlay(clip)
	if err == nil {
		return nil
	}
	if !errors.Is(err, audio.ErrNotLoaded) {
		return err
	}

	loadCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := r.awaitReady(loadCtx, tok, clip); err != nil {
		if ctx.Err() == nil && !errors.Is(err, errSuperseded) {
			r.tracker.TrackNotFound(tracker.ProviderResolver)
		}
		return err
	}
	if !r.coord.Current(tok) {
		return errSuperseded
	}
	return safePlay(clip)
}

// awaitReady waits for the load to report. The load timeout does not abort
// the load: once it passes, playback is attempted early and the wait goes on
// if the asset is not there yet. Only a load error, ctx or a newer narration
// ends the wait without a ready clip.
func (r *Resolver) awaitReady(ctx context.Context, tok Token, clip Clip) error {
	events := clip.Load(ctx)
	timer := time.NewTimer(r.loadTimeout)
	defer timer.Stop()
	poll := time.NewTicker(supersedePoll)
	defer poll.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok || ev == audio.EventError {
				if err := clip.LoadErr(); err != nil {
					return err
				}
				return fmt.Errorf("load failed")
			}
			return nil
		case <-timer.C:
			if !r.coord.Current(tok) {
				return errSuperseded
			}
			err := safePlay(clip)
			if err == nil {
				return nil
			}
			if !errors.Is(err, audio.ErrNotLoaded) {
				return err
			}
			slog.Debug("Narration: load is slow, still waiting", "path", clip.Path(), "timeout", r.loadTimeout)
		case <-poll.C:
			if !r.coord.Current(tok) {
				return errSuperseded
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func safePlay(clip Clip) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("play panicked: %v", rec)
		}
	}()
	return clip.Play()
}
