package content

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed library.yaml
var defaultLibraryYAML []byte

var (
	defaultOnce sync.Once
	defaultLib  *Library
)

// Default returns the built-in library. It is parsed on first use.
func Default() *Library {
	defaultOnce.Do(func() {
		lib, _, err := Parse(defaultLibraryYAML)
		if err != nil {
			panic(fmt.Sprintf("embedded content library is unreadable: %v", err))
		}
		defaultLib = lib
	})
	return defaultLib
}

// LoadFile reads a library document from path.
func LoadFile(path string) (*Library, ValidationResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ValidationResult{}, fmt.Errorf("failed to read library file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML library document. The returned library contains
// every well-formed record under a known mood and context; problems are
// reported in the ValidationResult rather than as an error. An error is
// returned only when the document itself cannot be decoded.
func Parse(data []byte) (*Library, ValidationResult, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, ValidationResult{}, fmt.Errorf("failed to parse library: %w", err)
	}
	return FromDocument(doc), Validate(doc), nil
}

// FromDocument builds a Library from a decoded document, dropping records
// that cannot be represented.
func FromDocument(doc Document) *Library {
	buckets := make(map[Mood]map[Context][]Message)
	for moodKey, byCtx := range doc {
		m := Mood(moodKey)
		if !m.Valid() {
			continue
		}
		inner := make(map[Context][]Message)
		for ctxKey, recs := range byCtx {
			c := Context(ctxKey)
			if !c.Valid() {
				continue
			}
			msgs := make([]Message, 0, len(recs))
			for _, r := range recs {
				if msg, ok := r.toMessage(); ok {
					msgs = append(msgs, msg)
				}
			}
			inner[c] = msgs
		}
		buckets[m] = inner
	}
	return NewLibrary(buckets)
}

func (r RawMessage) toMessage() (Message, bool) {
	at, err := ParseActionType(r.ActionType)
	if err != nil || strings.TrimSpace(r.Message) == "" || r.DisplayTime <= 0 || r.AudioIndex <= 0 {
		return Message{}, false
	}
	return Message{
		ActionType:  at,
		Text:        strings.TrimSpace(r.Message),
		DisplayTime: r.DisplayTime,
		AudioIndex:  r.AudioIndex,
	}, true
}
