package content

// Library maps every (mood, context) pair to an ordered list of messages.
// It is built once and never mutated, so concurrent reads need no locking.
type Library struct {
	buckets map[Mood]map[Context][]Message
}

// NewLibrary copies buckets into a new Library.
func NewLibrary(buckets map[Mood]map[Context][]Message) *Library {
	l := &Library{buckets: make(map[Mood]map[Context][]Message, len(buckets))}
	for m, byCtx := range buckets {
		inner := make(map[Context][]Message, len(byCtx))
		for c, msgs := range byCtx {
			inner[c] = append([]Message(nil), msgs...)
		}
		l.buckets[m] = inner
	}
	return l
}

// Messages returns the bucket for (mood, ctx). The returned slice must not be modified.
func (l *Library) Messages(mood Mood, ctx Context) ([]Message, bool) {
	if l == nil {
		return nil, false
	}
	byCtx, ok := l.buckets[mood]
	if !ok {
		return nil, false
	}
	msgs, ok := byCtx[ctx]
	return msgs, ok
}

// Count returns the total number of messages across all buckets.
func (l *Library) Count() int {
	n := 0
	for _, byCtx := range l.buckets {
		for _, msgs := range byCtx {
			n += len(msgs)
		}
	}
	return n
}

// Bucket is a flattened view of one (mood, context) entry.
type Bucket struct {
	Mood     Mood      `json:"mood"`
	Context  Context   `json:"context"`
	Messages []Message `json:"messages"`
}

// Buckets lists the library in enumeration order. Pairs absent from the
// library are skipped.
func (l *Library) Buckets() []Bucket {
	var out []Bucket
	for _, m := range allMoods {
		for _, c := range allContexts {
			msgs, ok := l.Messages(m, c)
			if !ok {
				continue
			}
			out = append(out, Bucket{Mood: m, Context: c, Messages: append([]Message(nil), msgs...)})
		}
	}
	return out
}

// Validate runs the structural check against the loaded library.
func (l *Library) Validate() ValidationResult {
	doc := make(Document, len(l.buckets))
	for m, byCtx := range l.buckets {
		inner := make(map[string][]RawMessage, len(byCtx))
		for c, msgs := range byCtx {
			raw := make([]RawMessage, len(msgs))
			for i, msg := range msgs {
				raw[i] = RawMessage{
					ActionType:  string(msg.ActionType),
					Message:     msg.Text,
					DisplayTime: msg.DisplayTime,
					AudioIndex:  msg.AudioIndex,
				}
			}
			inner[string(c)] = raw
		}
		doc[string(m)] = inner
	}
	return Validate(doc)
}
