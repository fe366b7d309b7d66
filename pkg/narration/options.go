// Package narration resolves guidance messages to recorded audio, plays
// them and keeps track of what is currently audible.
package narration

import (
	"fmt"
	"strings"

	"stilllift/pkg/content"
)

// Intent tags an active handle so callers can stop one kind of narration
// without touching another.
type Intent string

const (
	IntentHomepage Intent = "homepage"
	IntentTask     Intent = "task"
	IntentOther    Intent = "other"
)

// ParseIntent accepts the three intents; empty means IntentTask.
func ParseIntent(s string) (Intent, error) {
	switch i := Intent(strings.ToLower(strings.TrimSpace(s))); i {
	case "":
		return IntentTask, nil
	case IntentHomepage, IntentTask, IntentOther:
		return i, nil
	}
	return "", fmt.Errorf("unknown intent %q", s)
}

// Options describe one narration request. Rate, Pitch and Volume use the
// speech-synthesis scale: 1 is normal, Volume runs 0..1.
type Options struct {
	Rate       float64  `json:"rate"`
	Pitch      float64  `json:"pitch"`
	Volume     float64  `json:"volume"`
	VoiceHints []string `json:"voiceHintNames,omitempty"`

	Mood             content.Mood    `json:"mood,omitempty"`
	Context          content.Context `json:"context,omitempty"`
	IsHomepage       bool            `json:"isHomepage,omitempty"`
	AudioIndex       int             `json:"audioIndex,omitempty"`
	PreferExactIndex bool            `json:"preferExactIndex,omitempty"`
	Intent           Intent          `json:"audioIntent,omitempty"`
}

// DefaultOptions returns normal rate, pitch and full volume for a task.
func DefaultOptions() Options {
	return Options{Rate: 1, Pitch: 1, Volume: 1, Intent: IntentTask}
}

func (o Options) intent() Intent {
	if o.Intent == "" {
		return IntentTask
	}
	return o.Intent
}

// structured reports whether both mood and context select a folder.
func (o Options) structured() bool {
	return o.Mood.Valid() && o.Context.Valid()
}
