package narration

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"time"

	"stilllift/pkg/speech"
	"stilllift/pkg/store"
)

// SpeechEngine is the speech helper the narrator falls back to.
type SpeechEngine interface {
	Available() bool
	Speak(ctx context.Context, text string, opts speech.Options) (*speech.Utterance, error)
}

// FallbackPolicy decides at call time whether unresolved narration is
// spoken. config.Provider satisfies it.
type FallbackPolicy interface {
	TTSFallback(ctx context.Context) bool
}

// VoicePreference supplies a configured voice that is tried after the
// caller's own hints.
type VoicePreference interface {
	Voice(ctx context.Context) string
}

// EventLogger records one line per narration outcome.
type EventLogger func(r store.NarrationRecord)

// Result is what Play did.
type Result struct {
	Played          bool   `json:"played"`
	Outcome         string `json:"outcome"`
	Source          string `json:"source,omitempty"`
	CandidatesTried int    `json:"candidates_tried"`
}

// Narrator is the top-level "play this message" entry point.
type Narrator struct {
	coord    *Coordinator
	resolver *Resolver
	engine   SpeechEngine
	policy   FallbackPolicy
	history  store.HistoryStore
	events   EventLogger
}

// NarratorOption configures a Narrator.
type NarratorOption func(*Narrator)

func WithSpeech(e SpeechEngine) NarratorOption {
	return func(n *Narrator) { n.engine = e }
}

func WithFallbackPolicy(p FallbackPolicy) NarratorOption {
	return func(n *Narrator) { n.policy = p }
}

func WithHistory(h store.HistoryStore) NarratorOption {
	return func(n *Narrator) { n.history = h }
}

func WithEventLogger(l EventLogger) NarratorOption {
	return func(n *Narrator) { n.events = l }
}

func NewNarrator(coord *Coordinator, resolver *Resolver, opts ...NarratorOption) *Narrator {
	n := &Narrator{coord: coord, resolver: resolver}
	for _, o := range opts {
		o(n)
	}
	return n
}

func (n *Narrator) Coordinator() *Coordinator { return n.coord }

// Play stops whatever is audible and narrates message. Recorded audio is
// preferred; the text is spoken only when the fallback policy allows it.
func (n *Narrator) Play(ctx context.Context, title, message string, opts Options) Result {
	tok := n.coord.Begin()
	res := n.resolver.ResolveAndPlay(ctx, tok, title, message, opts)

	out := Result{Played: res.Played, Source: res.Path, CandidatesTried: res.Candidates, Outcome: store.OutcomeAudio}
	switch {
	case res.Played:
	case n.coord.Current(tok) && n.fallbackEnabled(ctx):
		if n.speak(ctx, tok, joinText(title, message), opts) {
			out.Played, out.Outcome, out.Source = true, store.OutcomeSpeech, "speech"
		} else {
			out.Outcome = store.OutcomeSilent
		}
	default:
		out.Outcome = store.OutcomeSilent
		slog.Info("Narration: no audio resolved", "candidates", res.Candidates, "mood", opts.Mood, "context", opts.Context)
	}

	n.record(ctx, title, message, opts, out)
	return out
}

// Speak is the lower-level helper: it stops what is audible and speaks text
// directly, without looking for recorded audio.
func (n *Narrator) Speak(ctx context.Context, text string, opts Options) bool {
	tok := n.coord.Begin()
	ok := n.speak(ctx, tok, text, opts)
	out := Result{Played: ok, Outcome: store.OutcomeSpeech, Source: "speech"}
	if !ok {
		out.Outcome, out.Source = store.OutcomeSilent, ""
	}
	n.record(ctx, "", text, opts, out)
	return ok
}

// SpeechAvailable reports whether a speech engine can be used.
func (n *Narrator) SpeechAvailable() bool {
	return n.engine != nil && n.engine.Available()
}

func (n *Narrator) fallbackEnabled(ctx context.Context) bool {
	return n.policy != nil && n.policy.TTSFallback(ctx)
}

func (n *Narrator) speak(ctx context.Context, tok Token, text string, opts Options) bool {
	if !n.SpeechAvailable() {
		slog.Warn("Narration: speech requested but no engine is available")
		return false
	}
	so := speechOptions(opts)
	if vp, ok := n.policy.(VoicePreference); ok {
		if v := vp.Voice(ctx); v != "" {
			so.VoiceHints = append(slices.Clip(so.VoiceHints), v)
		}
	}
	u, err := n.engine.Speak(ctx, text, so)
	if err != nil {
		slog.Warn("Narration: speech failed to start", "error", err)
		return false
	}
	return n.coord.AssignSpeech(tok, u, opts.intent())
}

// speechOptions converts the 1-is-normal scale to relative prosody.
func speechOptions(o Options) speech.Options {
	rel := func(v float64) float64 {
		if v <= 0 {
			return 0
		}
		return v - 1
	}
	so := speech.Options{Rate: rel(o.Rate), Pitch: rel(o.Pitch), VoiceHints: o.VoiceHints}
	if o.Volume > 0 {
		so.Volume = min(o.Volume, 1) - 1
	}
	return so
}

func joinText(title, message string) string {
	if title == "" {
		return message
	}
	return strings.TrimSpace(title) + ". " + message
}

func (n *Narrator) record(ctx context.Context, title, message string, opts Options, out Result) {
	rec := store.NarrationRecord{
		Title:           title,
		Message:         message,
		Mood:            string(opts.Mood),
		Context:         string(opts.Context),
		AudioIndex:      opts.AudioIndex,
		Intent:          string(opts.intent()),
		Outcome:         out.Outcome,
		Source:          out.Source,
		CandidatesTried: out.CandidatesTried,
		CreatedAt:       time.Now().UTC(),
	}
	if n.events != nil {
		n.events(rec)
	}
	if n.history == nil {
		return
	}
	if err := n.history.SaveNarration(context.WithoutCancel(ctx), &rec); err != nil {
		slog.Warn("Narration: failed to save history", "error", err)
	}
}
