package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"stilllift/pkg/content"
	"stilllift/pkg/selector"
	"stilllift/pkg/store"
)

// MessageHandler serves guidance messages and the library.
type MessageHandler struct {
	lib  *content.Library
	sel  *selector.Selector
	last store.MessageStore
}

// NewMessageHandler creates a MessageHandler. last may be nil, which
// disables use_last.
func NewMessageHandler(lib *content.Library, sel *selector.Selector, last store.MessageStore) *MessageHandler {
	return &MessageHandler{lib: lib, sel: sel, last: last}
}

// MessageResponse wraps a selected message with its bucket.
type MessageResponse struct {
	Mood    content.Mood    `json:"mood"`
	Context content.Context `json:"context"`
	content.Message
}

// HandleMessage handles GET /api/message
func (h *MessageHandler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mood, err := content.ParseMood(q.Get("mood"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	c, err := content.ParseContext(q.Get("context"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var exclude *content.Message
	if text := q.Get("exclude_text"); text != "" {
		exclude = &content.Message{Text: text}
		if s := q.Get("exclude_index"); s != "" {
			idx, err := strconv.Atoi(s)
			if err != nil {
				writeError(w, http.StatusBadRequest, "exclude_index must be an integer")
				return
			}
			exclude.AudioIndex = idx
		} else {
			exclude.AudioIndex = h.indexOf(mood, c, text)
		}
	} else if q.Get("use_last") == "1" && h.last != nil {
		if prev, ok := h.last.GetLastMessage(r.Context(), mood, c); ok {
			exclude = prev
		}
	}

	msg := h.sel.Select(mood, c, exclude)
	if msg == nil {
		writeError(w, http.StatusNotFound, "no content for "+string(mood)+"/"+string(c))
		return
	}

	if h.last != nil {
		if err := h.last.SetLastMessage(r.Context(), mood, c, *msg); err != nil {
			slog.Warn("Failed to remember last message", "error", err)
		}
	}

	writeJSON(w, http.StatusOK, MessageResponse{Mood: mood, Context: c, Message: *msg})
}

// HandleLibrary handles GET /api/library
func (h *MessageHandler) HandleLibrary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"count":   h.lib.Count(),
		"buckets": h.lib.Buckets(),
	})
}

// HandleValidate handles GET /api/library/validate
func (h *MessageHandler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.lib.Validate())
}

// indexOf finds the audio index of the first message with the given text.
func (h *MessageHandler) indexOf(mood content.Mood, c content.Context, text string) int {
	msgs, _ := h.lib.Messages(mood, c)
	for _, m := range msgs {
		if m.Text == text {
			return m.AudioIndex
		}
	}
	return 0
}
