package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"stilllift/pkg/content"
	"stilllift/pkg/narration"
	"stilllift/pkg/store"
)

// NarrationHandler exposes playback and control.
type NarrationHandler struct {
	narrator *narration.Narrator
	history  store.HistoryStore
}

// NewNarrationHandler creates a NarrationHandler. history may be nil.
func NewNarrationHandler(n *narration.Narrator, history store.HistoryStore) *NarrationHandler {
	return &NarrationHandler{narrator: n, history: history}
}

// PlayRequest is the body of POST /api/narration/play. Fields not sent keep
// their defaults: normal rate and pitch, full volume, task intent.
type PlayRequest struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	narration.Options
}

// StopRequest is the body of POST /api/narration/stop.
type StopRequest struct {
	Intent string `json:"intent"`
}

func decodePlayRequest(r *http.Request) (PlayRequest, error) {
	req := PlayRequest{Options: narration.DefaultOptions()}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, fmt.Errorf("invalid request body: %w", err)
	}
	if strings.TrimSpace(req.Message) == "" && !req.IsHomepage {
		return req, fmt.Errorf("message is required")
	}
	return req, validateOptions(&req.Options)
}

func validateOptions(o *narration.Options) error {
	if o.Mood != "" {
		m, err := content.ParseMood(string(o.Mood))
		if err != nil {
			return err
		}
		o.Mood = m
	}
	if o.Context != "" {
		c, err := content.ParseContext(string(o.Context))
		if err != nil {
			return err
		}
		o.Context = c
	}
	intent, err := narration.ParseIntent(string(o.Intent))
	if err != nil {
		return err
	}
	o.Intent = intent
	return nil
}

// HandlePlay handles POST /api/narration/play
func (h *NarrationHandler) HandlePlay(w http.ResponseWriter, r *http.Request) {
	req, err := decodePlayRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res := h.narrator.Play(r.Context(), req.Title, req.Message, req.Options)
	writeJSON(w, http.StatusOK, res)
}

// HandleSpeak handles POST /api/narration/speak
func (h *NarrationHandler) HandleSpeak(w http.ResponseWriter, r *http.Request) {
	req, err := decodePlayRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !h.narrator.SpeechAvailable() {
		writeError(w, http.StatusServiceUnavailable, "speech synthesis unavailable")
		return
	}
	ok := h.narrator.Speak(r.Context(), strings.TrimSpace(req.Title+" "+req.Message), req.Options)
	writeJSON(w, http.StatusOK, map[string]bool{"speaking": ok})
}

// HandleStop handles POST /api/narration/stop. An empty intent stops
// everything.
func (h *NarrationHandler) HandleStop(w http.ResponseWriter, r *http.Request) {
	var req StopRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	coord := h.narrator.Coordinator()
	if req.Intent == "" {
		coord.StopAll()
		writeJSON(w, http.StatusOK, map[string]bool{"stopped": true})
		return
	}
	intent, err := narration.ParseIntent(req.Intent)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"stopped": coord.StopByIntent(intent)})
}

// HandleStatus handles GET /api/narration/status
func (h *NarrationHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.narrator.Coordinator().Status())
}

// HandleCandidates handles GET /api/narration/candidates
func (h *NarrationHandler) HandleCandidates(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := narration.DefaultOptions()
	opts.Mood = content.Mood(q.Get("mood"))
	opts.Context = content.Context(q.Get("context"))
	opts.Intent = narration.Intent(q.Get("intent"))
	opts.IsHomepage = q.Get("homepage") == "1" || q.Get("homepage") == "true"
	opts.PreferExactIndex = q.Get("exact") == "1" || q.Get("exact") == "true"
	if s := q.Get("index"); s != "" {
		idx, err := strconv.Atoi(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "index must be an integer")
			return
		}
		opts.AudioIndex = idx
	}
	if err := validateOptions(&opts); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"candidates": narration.Candidates(q.Get("title"), q.Get("message"), opts),
	})
}

// HandleHistory handles GET /api/narration/history
func (h *NarrationHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeJSON(w, http.StatusOK, []store.NarrationRecord{})
		return
	}
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, 500)
	}
	recs, err := h.history.RecentNarrations(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if recs == nil {
		recs = []store.NarrationRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}
