// Package selector picks a guidance message for a mood and context without
// repeating the previous one.
package selector

import (
	"log/slog"
	"math/rand/v2"
	"sync"

	"github.com/samber/lo"

	"stilllift/pkg/content"
)

// Lookup is the read side of a content library.
type Lookup interface {
	Messages(mood content.Mood, ctx content.Context) ([]content.Message, bool)
}

// Selector chooses messages uniformly at random from a library bucket.
type Selector struct {
	lib Lookup

	mu  sync.Mutex
	rng *rand.Rand // nil uses the global source
}

// Option configures a Selector.
type Option func(*Selector)

// WithRand makes selection deterministic for tests.
func WithRand(r *rand.Rand) Option {
	return func(s *Selector) { s.rng = r }
}

// New creates a Selector over lib.
func New(lib Lookup, opts ...Option) *Selector {
	s := &Selector{lib: lib}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Select returns a message for (mood, ctx). If exclude is set, a message equal
// to it is skipped unless the bucket has nothing else. Returns nil when the
// bucket is missing or empty.
func (s *Selector) Select(mood content.Mood, ctx content.Context, exclude *content.Message) *content.Message {
	msgs, ok := s.lib.Messages(mood, ctx)
	if !ok || len(msgs) == 0 {
		slog.Warn("Selector: no content for bucket", "mood", mood, "context", ctx)
		return nil
	}

	candidates := msgs
	if exclude != nil {
		candidates = lo.Filter(msgs, func(m content.Message, _ int) bool {
			return !m.Equal(*exclude)
		})
		if len(candidates) == 0 {
			candidates = msgs
		}
	}

	picked := candidates[s.intN(len(candidates))]

	if exclude != nil && picked.Equal(*exclude) && len(candidates) > 1 {
		slog.Error("Selector: repeated excluded message despite alternatives",
			"mood", mood, "context", ctx, "audio_index", picked.AudioIndex, "candidates", len(candidates))
	}

	return &picked
}

func (s *Selector) intN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rng == nil {
		return rand.IntN(n)
	}
	return s.rng.IntN(n)
}
