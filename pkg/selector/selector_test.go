package selector

import (
	"math/rand/v2"
	"testing"

	"stilllift/pkg/content"
)

func TestSelect_NeverRepeatsPrevious(t *testing.T) {
	lib := content.Default()
	s := New(lib, WithRand(rand.New(rand.NewPCG(1, 2))))

	for _, mood := range content.AllMoods() {
		for _, ctx := range content.AllContexts() {
			msgs, _ := lib.Messages(mood, ctx)
			if len(msgs) < 2 {
				continue
			}

			prev := s.Select(mood, ctx, nil)
			if prev == nil {
				t.Fatalf("Select(%s, %s) returned nil", mood, ctx)
			}
			for i := 0; i < 100; i++ {
				next := s.Select(mood, ctx, prev)
				if next == nil {
					t.Fatalf("Select(%s, %s) returned nil on iteration %d", mood, ctx, i)
				}
				if next.Equal(*prev) {
					t.Fatalf("Select(%s, %s) repeated %q on iteration %d", mood, ctx, next.Text, i)
				}
				prev = next
			}
		}
	}
}

func TestSelect_SingleMessageBucket(t *testing.T) {
	only := content.Message{ActionType: content.ActionBreathe, Text: "Just breathe.", DisplayTime: 10, AudioIndex: 1}
	lib := content.NewLibrary(map[content.Mood]map[content.Context][]content.Message{
		content.MoodAwful: {content.ContextFocused: {only}},
	})
	s := New(lib)

	got := s.Select(content.MoodAwful, content.ContextFocused, &only)
	if got == nil {
		t.Fatal("expected the only message, got nil")
	}
	if !got.Equal(only) {
		t.Errorf("expected %q, got %q", only.Text, got.Text)
	}
}

func TestSelect_MissingBucket(t *testing.T) {
	lib := content.NewLibrary(map[content.Mood]map[content.Context][]content.Message{
		content.MoodGood: {content.ContextStill: {{ActionType: content.ActionListen, Text: "Listen.", DisplayTime: 5, AudioIndex: 1}}},
	})
	s := New(lib)

	tests := []struct {
		name string
		mood content.Mood
		ctx  content.Context
	}{
		{"missing mood", content.MoodBad, content.ContextStill},
		{"missing context", content.MoodGood, content.ContextMove},
		{"unknown values", content.Mood("sleepy"), content.Context("lying")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Select(tt.mood, tt.ctx, nil); got != nil {
				t.Errorf("expected nil, got %+v", got)
			}
		})
	}
}

func TestSelect_EmptyBucket(t *testing.T) {
	lib := content.NewLibrary(map[content.Mood]map[content.Context][]content.Message{
		content.MoodGood: {content.ContextStill: {}},
	})
	if got := New(lib).Select(content.MoodGood, content.ContextStill, nil); got != nil {
		t.Errorf("expected nil for empty bucket, got %+v", got)
	}
}

func TestSelect_ExcludeMatchesTextAndIndex(t *testing.T) {
	a := content.Message{ActionType: content.ActionRepeat, Text: "Same words.", DisplayTime: 5, AudioIndex: 1}
	b := content.Message{ActionType: content.ActionRepeat, Text: "Same words.", DisplayTime: 5, AudioIndex: 2}
	lib := content.NewLibrary(map[content.Mood]map[content.Context][]content.Message{
		content.MoodOkay: {content.ContextStill: {a, b}},
	})
	s := New(lib, WithRand(rand.New(rand.NewPCG(7, 7))))

	// Text alone is not enough to exclude: only a is removed.
	for i := 0; i < 20; i++ {
		got := s.Select(content.MoodOkay, content.ContextStill, &a)
		if got.AudioIndex != 2 {
			t.Fatalf("expected index 2, got %d", got.AudioIndex)
		}
	}

	// An exclude that matches nothing leaves both candidates.
	stranger := content.Message{Text: "Same words.", AudioIndex: 9}
	seen := map[int]bool{}
	for i := 0; i < 50; i++ {
		seen[s.Select(content.MoodOkay, content.ContextStill, &stranger).AudioIndex] = true
	}
	if !seen[1] || !seen[2] {
		t.Errorf("expected both messages to be selectable, saw %v", seen)
	}
}

func TestSelect_ReturnsCopy(t *testing.T) {
	lib := content.Default()
	s := New(lib)

	got := s.Select(content.MoodGood, content.ContextStill, nil)
	got.Text = "mutated"

	msgs, _ := lib.Messages(content.MoodGood, content.ContextStill)
	for _, m := range msgs {
		if m.Text == "mutated" {
			t.Fatal("Select leaked a pointer into the library")
		}
	}
}
