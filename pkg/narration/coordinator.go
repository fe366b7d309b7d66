package narration

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"stilllift/pkg/speech"
)

// AudioHandle is a playing asset.
type AudioHandle interface {
	Stop() error
	Done() <-chan struct{}
	Path() string
}

// SpeechHandle is a running utterance.
type SpeechHandle interface {
	Cancel()
	Done() <-chan struct{}
}

// SpeechCanceler silences a whole speech engine.
type SpeechCanceler interface {
	Cancel()
}

// Token identifies one narration attempt. Only the newest token may assign
// a handle.
type Token uint64

type stopState int

const (
	stateIdle stopState = iota
	stateStopping
)

// Status describes the active slot.
type Status struct {
	Active   bool   `json:"active"`
	Intent   Intent `json:"intent,omitempty"`
	Kind     string `json:"kind,omitempty"` // "audio" or "speech"
	Source   string `json:"source,omitempty"`
	Speaking bool   `json:"speaking"`
}

// Coordinator owns the single active narration slot. Starting anything new
// goes through Begin, which stops what is playing first.
type Coordinator struct {
	mu       sync.Mutex
	state    stopState
	gen      Token
	audio    AudioHandle
	speech   SpeechHandle
	source   string
	intent   Intent
	stoppers map[int]func() error
	order    []int
	nextID   int

	engine        SpeechCanceler
	window        time.Duration
	suppressUntil time.Time
	now           func() time.Time
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithSpeechEngine makes StopAll cancel the whole engine along with an
// active utterance.
func WithSpeechEngine(e SpeechCanceler) CoordinatorOption {
	return func(c *Coordinator) { c.engine = e }
}

// WithSuppressWindow sets how long benign speech errors are expected after
// a stop.
func WithSuppressWindow(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) { c.window = d }
}

func withClock(now func() time.Time) CoordinatorOption {
	return func(c *Coordinator) { c.now = now }
}

func NewCoordinator(opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		stoppers: make(map[int]func() error),
		window:   500 * time.Millisecond,
		now:      time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Begin stops everything and returns the token for a new narration.
func (c *Coordinator) Begin() Token {
	c.StopAll()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	return c.gen
}

// Current reports whether tok is still the newest narration.
func (c *Coordinator) Current(tok Token) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return tok == c.gen
}

// StopAll runs every external stopper, stops the active audio, cancels the
// active utterance and clears the intent. A call made while another StopAll
// is running returns immediately.
func (c *Coordinator) StopAll() {
	c.mu.Lock()
	// Anything still resolving loses its right to assign.
	c.gen++
	if c.state == stateStopping {
		c.mu.Unlock()
		slog.Debug("Narration: stop already in progress")
		return
	}
	c.state = stateStopping

	stoppers := make([]func() error, 0, len(c.order))
	for _, id := range c.order {
		stoppers = append(stoppers, c.stoppers[id])
	}
	audio, utt := c.audio, c.speech
	c.audio, c.speech, c.source, c.intent = nil, nil, "", ""
	if utt != nil {
		c.suppressUntil = c.now().Add(c.window)
	}
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.state = stateIdle
		c.mu.Unlock()
	}()

	for i, stop := range stoppers {
		if err := runStopper(stop); err != nil {
			slog.Warn("Narration: external stopper failed", "index", i, "error", err)
		}
	}
	if audio != nil {
		if err := audio.Stop(); err != nil {
			slog.Debug("Narration: audio stop failed", "path", audio.Path(), "error", err)
		}
	}
	if utt != nil {
		utt.Cancel()
		if c.engine != nil {
			c.engine.Cancel()
		}
	}
}

func runStopper(stop func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return stop()
}

// StopByIntent stops everything only when the active handle carries intent.
func (c *Coordinator) StopByIntent(intent Intent) bool {
	c.mu.Lock()
	active := (c.audio != nil || c.speech != nil) && c.intent == intent
	c.mu.Unlock()
	if !active {
		return false
	}
	c.StopAll()
	return true
}

// RegisterExternalStopper adds fn to StopAll. The returned func removes it
// and may be called more than once.
func (c *Coordinator) RegisterExternalStopper(fn func() error) (unregister func()) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.stoppers[id] = fn
	c.order = append(c.order, id)
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			delete(c.stoppers, id)
			for i, v := range c.order {
				if v == id {
					c.order = append(c.order[:i], c.order[i+1:]...)
					break
				}
			}
		})
	}
}

// AssignAudio records h as the active handle. A stale token gets its handle
// stopped instead, and false is returned.
func (c *Coordinator) AssignAudio(tok Token, h AudioHandle, intent Intent) bool {
	c.mu.Lock()
	if tok != c.gen {
		c.mu.Unlock()
		slog.Debug("Narration: superseded before assign", "path", h.Path())
		_ = h.Stop()
		return false
	}
	prevAudio, prevSpeech := c.audio, c.speech
	c.audio, c.speech = h, nil
	c.source = h.Path()
	c.intent = intent
	c.mu.Unlock()

	stopPrevious(prevAudio, prevSpeech)
	go c.clearOnDone(h.Done(), func() bool { return c.audio == h })
	return true
}

// AssignSpeech is AssignAudio for an utterance.
func (c *Coordinator) AssignSpeech(tok Token, u SpeechHandle, intent Intent) bool {
	c.mu.Lock()
	if tok != c.gen {
		// The cancel below reports a benign error.
		c.suppressUntil = c.now().Add(c.window)
		c.mu.Unlock()
		slog.Debug("Narration: utterance superseded before assign")
		u.Cancel()
		return false
	}
	prevAudio, prevSpeech := c.audio, c.speech
	if prevSpeech != nil {
		c.suppressUntil = c.now().Add(c.window)
	}
	c.audio, c.speech = nil, u
	c.source = "speech"
	c.intent = intent
	c.mu.Unlock()

	stopPrevious(prevAudio, prevSpeech)
	go c.clearOnDone(u.Done(), func() bool { return c.speech == u })
	return true
}

// Same-token reassignment; callers normally never hold two handles.
func stopPrevious(a AudioHandle, s SpeechHandle) {
	if a != nil {
		_ = a.Stop()
	}
	if s != nil {
		s.Cancel()
	}
}

func (c *Coordinator) clearOnDone(done <-chan struct{}, owns func() bool) {
	<-done
	c.mu.Lock()
	defer c.mu.Unlock()
	if owns() {
		c.audio, c.speech, c.source, c.intent = nil, nil, "", ""
	}
}

// ActiveIntent returns the intent of the active handle.
func (c *Coordinator) ActiveIntent() (Intent, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.audio == nil && c.speech == nil {
		return "", false
	}
	return c.intent, true
}

func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := Status{Intent: c.intent, Source: c.source}
	switch {
	case c.audio != nil:
		st.Active, st.Kind = true, "audio"
	case c.speech != nil:
		st.Active, st.Kind, st.Speaking = true, "speech", true
	}
	return st
}

// ReportSpeechError logs an utterance error. Benign codes inside the window
// after a stop are expected and logged at debug level; it reports whether
// the error was suppressed.
func (c *Coordinator) ReportSpeechError(code speech.ErrorCode, err error) bool {
	c.mu.Lock()
	inWindow := c.now().Before(c.suppressUntil)
	c.mu.Unlock()

	if code.Benign() && inWindow {
		slog.Debug("Narration: speech stopped", "code", code, "error", err)
		return true
	}
	slog.Error("Narration: speech error", "code", code, "error", err)
	return false
}
