package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stilllift/pkg/narration"
	"stilllift/pkg/store"
)

func TestHandlePlay_RecordedAudio(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodPost, "/api/narration/play", map[string]any{
		"message":    "Breathe in for four.",
		"mood":       "good",
		"context":    "still",
		"audioIndex": 1,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	res := decode[narration.Result](t, rec)
	assert.True(t, res.Played)
	assert.Equal(t, store.OutcomeAudio, res.Outcome)
	assert.Equal(t, recordedPath, res.Source)

	st := decode[narration.Status](t, e.do(t, http.MethodGet, "/api/narration/status", nil))
	assert.True(t, st.Active)
	assert.Equal(t, narration.IntentTask, st.Intent)
	assert.Equal(t, recordedPath, st.Source)

	rec = e.do(t, http.MethodPost, "/api/narration/stop", map[string]string{"intent": "homepage"})
	assert.Equal(t, map[string]bool{"stopped": false}, decode[map[string]bool](t, rec))

	rec = e.do(t, http.MethodPost, "/api/narration/stop", map[string]string{"intent": "task"})
	assert.Equal(t, map[string]bool{"stopped": true}, decode[map[string]bool](t, rec))
	assert.False(t, e.coord.Status().Active)
}

func TestHandlePlay_UnresolvedIsSilent(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodPost, "/api/narration/play", map[string]any{
		"message": "Nothing recorded for this one.",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[narration.Result](t, rec)
	assert.False(t, res.Played)
	assert.Equal(t, store.OutcomeSilent, res.Outcome)
	assert.Equal(t, 4, res.CandidatesTried)

	hist := decode[[]store.NarrationRecord](t, e.do(t, http.MethodGet, "/api/narration/history?limit=5", nil))
	require.Len(t, hist, 1)
	assert.Equal(t, store.OutcomeSilent, hist[0].Outcome)
	assert.Equal(t, "task", hist[0].Intent)
}

func TestHandlePlay_BadRequests(t *testing.T) {
	e := newTestEnv(t)

	tests := []struct {
		name string
		body any
	}{
		{"missing message", map[string]any{"mood": "good"}},
		{"unknown mood", map[string]any{"message": "x", "mood": "elated"}},
		{"unknown intent", map[string]any{"message": "x", "audioIntent": "music"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(t, http.MethodPost, "/api/narration/play", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestHandleSpeak_NoEngine(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(t, http.MethodPost, "/api/narration/speak", map[string]any{"message": "hello"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleStop_All(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(t, http.MethodPost, "/api/narration/stop", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]bool{"stopped": true}, decode[map[string]bool](t, rec))
}

func TestHandleCandidates(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodGet, "/api/narration/candidates?mood=good&context=still&index=3&exact=1&message=Hi", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string][]string](t, rec)
	got := body["candidates"]
	require.NotEmpty(t, got)
	assert.Equal(t, "/still-lift-audio/good-still/Mood_Good_Content_Still_Audio_03.mp3", got[0])
	assert.NotContains(t, got, "/still-lift-audio/good-still/Mood_Good_Content_Still_Audio_01.mp3")
	assert.Equal(t, "/still-lift-audio/hi.wav", got[len(got)-1])

	rec = e.do(t, http.MethodGet, "/api/narration/candidates?index=x", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleHistory_BadLimit(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(t, http.MethodGet, "/api/narration/history?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodGet, "/api/narration/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]store.NarrationRecord](t, rec))
}
