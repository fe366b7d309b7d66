// Package tts synthesizes narration text into encoded audio.
package tts

import (
	"context"
	"errors"
	"io"
)

// MinAudioSize is the smallest plausible synthesized clip. Anything shorter
// is treated as a failed synthesis.
const MinAudioSize = 1024

// Request describes one synthesis.
type Request struct {
	Text    string
	Voice   string // provider voice ID; empty selects the provider default
	Prosody Prosody
}

// Provider defines the interface for Text-To-Speech engines.
type Provider interface {
	Name() string

	// Synthesize streams encoded audio into w and returns its format ("mp3", "wav").
	Synthesize(ctx context.Context, req Request, w io.Writer) (string, error)

	// Voices returns the voices the provider can speak with.
	Voices(ctx context.Context) ([]Voice, error)
}

// Voice represents an available TTS voice.
type Voice struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Language string `json:"language"`
	IsNeural bool   `json:"is_neural"`
}

// FatalError is an HTTP-level rejection from a provider: rate limits (429),
// server errors (5xx), auth failures (401/403).
type FatalError struct {
	StatusCode int
	Message    string
}

func (e *FatalError) Error() string {
	return e.Message
}

// NewFatalError creates a new FatalError with the given status code and message.
func NewFatalError(statusCode int, message string) *FatalError {
	return &FatalError{StatusCode: statusCode, Message: message}
}

// IsFatalError reports whether err wraps a FatalError.
func IsFatalError(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
