package store

import (
	"context"
	"time"

	"stilllift/pkg/content"
)

// CacheStore handles generic key-value caching.
type CacheStore interface {
	GetCache(ctx context.Context, key string) ([]byte, bool)
	HasCache(ctx context.Context, key string) (bool, error)
	SetCache(ctx context.Context, key string, val []byte) error
}

// StateStore handles persistent application state.
type StateStore interface {
	GetState(ctx context.Context, key string) (string, bool)
	SetState(ctx context.Context, key, val string) error
	DeleteState(ctx context.Context, key string) error
}

// MessageStore remembers the last message served per mood/context bucket.
type MessageStore interface {
	GetLastMessage(ctx context.Context, mood content.Mood, c content.Context) (*content.Message, bool)
	SetLastMessage(ctx context.Context, mood content.Mood, c content.Context, m content.Message) error
}

// Narration outcomes.
const (
	OutcomeAudio  = "audio"
	OutcomeSpeech = "speech"
	OutcomeSilent = "silent"
)

// NarrationRecord is one playNarration call and what came of it.
type NarrationRecord struct {
	ID              string    `json:"id"`
	Title           string    `json:"title,omitempty"`
	Message         string    `json:"message"`
	Mood            string    `json:"mood,omitempty"`
	Context         string    `json:"context,omitempty"`
	AudioIndex      int       `json:"audio_index,omitempty"`
	Intent          string    `json:"intent"`
	Outcome         string    `json:"outcome"`
	Source          string    `json:"source,omitempty"`
	CandidatesTried int       `json:"candidates_tried"`
	CreatedAt       time.Time `json:"created_at"`
}

// HistoryStore handles narration history.
type HistoryStore interface {
	SaveNarration(ctx context.Context, r *NarrationRecord) error
	RecentNarrations(ctx context.Context, limit int) ([]NarrationRecord, error)
}
