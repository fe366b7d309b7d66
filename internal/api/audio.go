package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"stilllift/pkg/audio"
	"stilllift/pkg/config"
	"stilllift/pkg/narration"
)

// AudioHandler handles audio control endpoints.
type AudioHandler struct {
	player *audio.Player
	coord  *narration.Coordinator
	cfg    config.Provider
}

// NewAudioHandler creates a new AudioHandler. cfg may be nil, in which case
// volume changes are not persisted.
func NewAudioHandler(player *audio.Player, coord *narration.Coordinator, cfg config.Provider) *AudioHandler {
	return &AudioHandler{
		player: player,
		coord:  coord,
		cfg:    cfg,
	}
}

// AudioVolumeRequest represents a volume change request.
type AudioVolumeRequest struct {
	Volume *float64 `json:"volume"`
}

// AudioStatusResponse represents the audio status.
type AudioStatusResponse struct {
	Volume       float64          `json:"volume"`
	CacheEntries int              `json:"cache_entries"`
	Narration    narration.Status `json:"narration"`
}

// HandleVolume handles POST /api/audio/volume
func (h *AudioHandler) HandleVolume(w http.ResponseWriter, r *http.Request) {
	var req AudioVolumeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Volume == nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	vol := *req.Volume
	if vol < 0 || vol > 1 {
		writeError(w, http.StatusBadRequest, "volume must be between 0 and 1")
		return
	}

	h.player.SetVolume(vol)

	if h.cfg != nil {
		if err := h.cfg.SetVolume(r.Context(), vol); err != nil {
			slog.Error("Failed to persist volume", "error", err)
		}
	}
	slog.Debug("Audio volume changed", "volume", vol)

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"volume": h.player.Volume(),
	})
}

// HandleStatus handles GET /api/audio/status
func (h *AudioHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	resp := AudioStatusResponse{
		Volume:       h.player.Volume(),
		CacheEntries: h.player.CacheLen(),
	}
	if h.coord != nil {
		resp.Narration = h.coord.Status()
	}
	writeJSON(w, http.StatusOK, resp)
}
