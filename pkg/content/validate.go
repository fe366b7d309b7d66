package content

import (
	"fmt"
	"sort"
	"strings"
)

// RawMessage is a message record as it appears in a library document,
// before any field has been checked.
type RawMessage struct {
	ActionType  string `yaml:"action_type" json:"actionType"`
	Message     string `yaml:"message" json:"message"`
	DisplayTime int    `yaml:"display_time" json:"displayTime"`
	AudioIndex  int    `yaml:"audio_index" json:"audioIndex"`
}

// Document is the undecoded shape of a library: mood -> context -> records.
type Document map[string]map[string][]RawMessage

// ValidationResult lists every structural problem found in a library.
type ValidationResult struct {
	IsValid bool     `json:"isValid"`
	Errors  []string `json:"errors"`
}

// Validate checks doc for missing moods, missing contexts, empty buckets,
// malformed records and unknown keys. It reports all problems instead of
// stopping at the first one.
func Validate(doc Document) ValidationResult {
	var errs []string

	for _, m := range allMoods {
		byCtx, ok := doc[string(m)]
		if !ok {
			errs = append(errs, fmt.Sprintf("missing mood: %s", m))
			continue
		}
		for _, c := range allContexts {
			recs, ok := byCtx[string(c)]
			if !ok {
				errs = append(errs, fmt.Sprintf("missing context: %s/%s", m, c))
				continue
			}
			if len(recs) == 0 {
				errs = append(errs, fmt.Sprintf("empty bucket: %s/%s", m, c))
				continue
			}
			errs = append(errs, validateBucket(m, c, recs)...)
		}
		for _, key := range sortedKeys(byCtx) {
			if !Context(key).Valid() {
				errs = append(errs, fmt.Sprintf("unknown context: %s/%s", m, key))
			}
		}
	}
	for _, key := range sortedKeys(doc) {
		if !Mood(key).Valid() {
			errs = append(errs, fmt.Sprintf("unknown mood: %s", key))
		}
	}

	return ValidationResult{IsValid: len(errs) == 0, Errors: errs}
}

func validateBucket(m Mood, c Context, recs []RawMessage) []string {
	var errs []string
	seen := make(map[int]int, len(recs))
	for i, r := range recs {
		where := fmt.Sprintf("%s/%s[%d]", m, c, i)
		if strings.TrimSpace(r.Message) == "" {
			errs = append(errs, fmt.Sprintf("malformed message: %s: empty text", where))
		}
		if _, err := ParseActionType(r.ActionType); err != nil {
			errs = append(errs, fmt.Sprintf("malformed message: %s: action type %q", where, r.ActionType))
		}
		if r.DisplayTime <= 0 {
			errs = append(errs, fmt.Sprintf("malformed message: %s: display time %d", where, r.DisplayTime))
		}
		if r.AudioIndex <= 0 {
			errs = append(errs, fmt.Sprintf("malformed message: %s: audio index %d", where, r.AudioIndex))
			continue
		}
		if prev, dup := seen[r.AudioIndex]; dup {
			errs = append(errs, fmt.Sprintf("malformed message: %s: audio index %d already used at [%d]", where, r.AudioIndex, prev))
			continue
		}
		seen[r.AudioIndex] = i
	}
	return errs
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
