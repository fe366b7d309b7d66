// Package speech speaks text through a TTS provider and an audio output,
// with cancellable utterances and engine-level error codes.
package speech

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"stilllift/pkg/audio"
	"stilllift/pkg/store"
	"stilllift/pkg/tts"
)

// ErrUnavailable is returned by Speak when no provider is configured.
var ErrUnavailable = errors.New("speech synthesis unavailable")

// ErrorCode classifies an utterance failure.
type ErrorCode string

const (
	CodeInterrupted     ErrorCode = "interrupted" // cancelled while audible
	CodeCanceled        ErrorCode = "canceled"    // cancelled before audio started
	CodeNotAllowed      ErrorCode = "not-allowed" // output refused playback
	CodeSynthesisFailed ErrorCode = "synthesis-failed"
)

// Benign reports whether the code is expected after an intentional stop.
func (c ErrorCode) Benign() bool {
	switch c {
	case CodeInterrupted, CodeCanceled, CodeNotAllowed:
		return true
	}
	return false
}

// Error carries an ErrorCode and its cause.
type Error struct {
	Code ErrorCode
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ErrorHandler receives utterance failures.
type ErrorHandler func(code ErrorCode, err error)

// Options shape a single utterance. Rate, Pitch and Volume are relative to
// the voice default: 0 keeps it, -0.15 is 15% lower.
type Options struct {
	Rate       float64
	Pitch      float64
	Volume     float64
	VoiceHints []string
}

// Engine speaks text.
type Engine struct {
	provider tts.Provider
	out      audio.Output
	cache    store.CacheStore

	mu      sync.Mutex
	onError ErrorHandler
	active  map[*Utterance]struct{}
	voices  []tts.Voice
}

// NewEngine creates an engine. A nil provider yields an engine that is not
// Available. cache may be nil.
func NewEngine(p tts.Provider, out audio.Output, cache store.CacheStore) *Engine {
	return &Engine{
		provider: p,
		out:      out,
		cache:    cache,
		active:   make(map[*Utterance]struct{}),
	}
}

// Available reports whether Speak can produce audio.
func (e *Engine) Available() bool {
	return e != nil && e.provider != nil && e.out != nil
}

func (e *Engine) SetErrorHandler(h ErrorHandler) {
	e.mu.Lock()
	e.onError = h
	e.mu.Unlock()
}

// Speak starts an utterance and returns immediately. The utterance outlives
// ctx's cancellation but keeps its values.
func (e *Engine) Speak(ctx context.Context, text string, opts Options) (*Utterance, error) {
	if !e.Available() {
		slog.Warn("Speech: synthesis requested but no engine is configured")
		return nil, ErrUnavailable
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("nothing to speak")
	}

	uctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	u := &Utterance{
		Text:   text,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	u.speaking.Store(true)

	e.mu.Lock()
	e.active[u] = struct{}{}
	e.mu.Unlock()

	go e.run(uctx, u, opts)
	return u, nil
}

// Cancel stops every utterance this engine is speaking.
func (e *Engine) Cancel() {
	e.mu.Lock()
	active := make([]*Utterance, 0, len(e.active))
	for u := range e.active {
		active = append(active, u)
	}
	e.mu.Unlock()

	for _, u := range active {
		u.Cancel()
	}
}

// Speaking reports whether any utterance is pending or audible.
func (e *Engine) Speaking() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.active) > 0
}

// Voices lists the provider's voices, cached after the first call.
func (e *Engine) Voices(ctx context.Context) ([]tts.Voice, error) {
	if !e.Available() {
		return nil, ErrUnavailable
	}
	e.mu.Lock()
	cached := e.voices
	e.mu.Unlock()
	if cached != nil {
		return cached, nil
	}
	voices, err := e.provider.Voices(ctx)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.voices = voices
	e.mu.Unlock()
	return voices, nil
}

// SelectVoice returns the first voice whose ID or name contains one of the
// hints, in hint order. Empty means provider default.
func (e *Engine) SelectVoice(ctx context.Context, hints []string) string {
	if len(hints) == 0 {
		return ""
	}
	voices, err := e.Voices(ctx)
	if err != nil {
		return ""
	}
	for _, hint := range hints {
		h := strings.ToLower(strings.TrimSpace(hint))
		if h == "" {
			continue
		}
		for _, v := range voices {
			if strings.Contains(strings.ToLower(v.ID), h) || strings.Contains(strings.ToLower(v.Name), h) {
				return v.ID
			}
		}
	}
	return ""
}

func (e *Engine) run(ctx context.Context, u *Utterance, opts Options) {
	defer e.finish(u)

	req := tts.Request{
		Text:    u.Text,
		Voice:   e.SelectVoice(ctx, opts.VoiceHints),
		Prosody: tts.Prosody{Rate: opts.Rate, Pitch: opts.Pitch, Volume: opts.Volume},
	}

	data, format, err := e.synthesize(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			e.report(u, CodeCanceled, ctx.Err())
			return
		}
		e.report(u, CodeSynthesisFailed, err)
		return
	}
	if ctx.Err() != nil {
		e.report(u, CodeCanceled, ctx.Err())
		return
	}

	stream, f, err := audio.Decode("speech."+format, data)
	if err != nil {
		e.report(u, CodeSynthesisFailed, err)
		return
	}

	ended := make(chan struct{})
	// Prosody already carries rate and volume.
	pb, err := e.out.Start(stream, f, audio.PlayOptions{Rate: 1, Volume: 1}, func() { close(ended) })
	if err != nil {
		_ = stream.Close()
		e.report(u, CodeNotAllowed, err)
		return
	}

	select {
	case <-ended:
	case <-ctx.Done():
		pb.Pause()
		pb.Close()
		<-ended
		e.report(u, CodeInterrupted, ctx.Err())
	}
}

func cacheKey(provider string, req tts.Request) string {
	h := sha256.Sum256([]byte(provider + "|" + req.Voice + "|" + req.Prosody.Attrs() + "|" + req.Text))
	return "tts:" + hex.EncodeToString(h[:])
}

// Cached entries are stored as "<format>\n<audio>".
func (e *Engine) synthesize(ctx context.Context, req tts.Request) ([]byte, string, error) {
	key := cacheKey(e.provider.Name(), req)
	if e.cache != nil {
		if raw, ok := e.cache.GetCache(ctx, key); ok {
			if format, data, found := bytes.Cut(raw, []byte("\n")); found && len(format) > 0 {
				return data, string(format), nil
			}
		}
	}

	var buf bytes.Buffer
	format, err := e.provider.Synthesize(ctx, req, &buf)
	if err != nil {
		return nil, "", err
	}
	if e.cache != nil {
		entry := append([]byte(format+"\n"), buf.Bytes()...)
		if err := e.cache.SetCache(ctx, key, entry); err != nil {
			slog.Debug("Speech: cache write failed", "error", err)
		}
	}
	return buf.Bytes(), format, nil
}

func (e *Engine) report(u *Utterance, code ErrorCode, err error) {
	u.setErr(&Error{Code: code, Err: err})

	e.mu.Lock()
	h := e.onError
	e.mu.Unlock()
	if h != nil {
		h(code, err)
		return
	}
	if code.Benign() {
		slog.Debug("Speech: utterance stopped", "code", code, "error", err)
	} else {
		slog.Error("Speech: utterance failed", "code", code, "error", err)
	}
}

func (e *Engine) finish(u *Utterance) {
	e.mu.Lock()
	delete(e.active, u)
	e.mu.Unlock()
	u.speaking.Store(false)
	u.cancel()
	close(u.done)
}
