// Package content holds the guidance message library keyed by mood and physical context.
package content

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownMood       = errors.New("unknown mood")
	ErrUnknownContext    = errors.New("unknown context")
	ErrUnknownActionType = errors.New("unknown action type")
)

// Mood is how the user says they feel.
type Mood string

const (
	MoodGood  Mood = "good"
	MoodOkay  Mood = "okay"
	MoodBad   Mood = "bad"
	MoodAwful Mood = "awful"
)

var allMoods = []Mood{MoodGood, MoodOkay, MoodBad, MoodAwful}

// AllMoods returns every mood in display order.
func AllMoods() []Mood {
	return append([]Mood(nil), allMoods...)
}

// ParseMood converts user input into a Mood. Input is case-insensitive.
func ParseMood(s string) (Mood, error) {
	m := Mood(strings.ToLower(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownMood, s)
	}
	return m, nil
}

// Valid reports whether m is one of the four moods.
func (m Mood) Valid() bool {
	switch m {
	case MoodGood, MoodOkay, MoodBad, MoodAwful:
		return true
	}
	return false
}

// Display returns the capitalised form used in asset file names ("Good").
func (m Mood) Display() string {
	switch m {
	case MoodGood:
		return "Good"
	case MoodOkay:
		return "Okay"
	case MoodBad:
		return "Bad"
	case MoodAwful:
		return "Awful"
	}
	return ""
}

// Context is the physical situation the user is in.
type Context string

const (
	ContextStill   Context = "still"
	ContextMove    Context = "move"
	ContextFocused Context = "focused"
)

var allContexts = []Context{ContextStill, ContextMove, ContextFocused}

// AllContexts returns every context in display order.
func AllContexts() []Context {
	return append([]Context(nil), allContexts...)
}

// ParseContext converts user input into a Context. Input is case-insensitive.
func ParseContext(s string) (Context, error) {
	c := Context(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownContext, s)
	}
	return c, nil
}

// Valid reports whether c is one of the three contexts.
func (c Context) Valid() bool {
	switch c {
	case ContextStill, ContextMove, ContextFocused:
		return true
	}
	return false
}

// Display returns the folder form used in asset file names ("Still").
func (c Context) Display() string {
	switch c {
	case ContextStill:
		return "Still"
	case ContextMove:
		return "Move"
	case ContextFocused:
		return "Focused"
	}
	return ""
}

// ActionType classifies the instruction style of a message.
type ActionType string

const (
	ActionVisualize ActionType = "VISUALIZE"
	ActionAction    ActionType = "ACTION"
	ActionRepeat    ActionType = "REPEAT"
	ActionBreathe   ActionType = "BREATHE"
	ActionListen    ActionType = "LISTEN"
)

// ParseActionType accepts the upper-case names, case-insensitively.
func ParseActionType(s string) (ActionType, error) {
	a := ActionType(strings.ToUpper(strings.TrimSpace(s)))
	switch a {
	case ActionVisualize, ActionAction, ActionRepeat, ActionBreathe, ActionListen:
		return a, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownActionType, s)
}

// Message is one piece of guidance. Values are immutable once loaded.
type Message struct {
	ActionType  ActionType `json:"actionType" yaml:"action_type"`
	Text        string     `json:"message" yaml:"message"`
	DisplayTime int        `json:"displayTime" yaml:"display_time"` // seconds, advisory
	AudioIndex  int        `json:"audioIndex" yaml:"audio_index"`   // 1-based, unique per bucket
}

// Equal reports whether two messages are the same entry. Both the text and
// the audio index must match.
func (m Message) Equal(o Message) bool {
	return m.Text == o.Text && m.AudioIndex == o.AudioIndex
}
