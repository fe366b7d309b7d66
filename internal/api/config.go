package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"stilllift/pkg/config"
)

// VolumeSetter applies a volume change to the live output.
type VolumeSetter interface {
	SetVolume(vol float64)
}

// ConfigHandler handles configuration API requests.
type ConfigHandler struct {
	cfgProv config.Provider
	appCfg  *config.Config
	out     VolumeSetter
}

// NewConfigHandler creates a new ConfigHandler. out may be nil.
func NewConfigHandler(cfg config.Provider, out VolumeSetter) *ConfigHandler {
	return &ConfigHandler{
		cfgProv: cfg,
		appCfg:  cfg.AppConfig(),
		out:     out,
	}
}

// ConfigResponse represents the config API response.
type ConfigResponse struct {
	TTSEngine   string  `json:"tts_engine"`
	TTSFallback bool    `json:"tts_fallback"`
	Volume      float64 `json:"volume"`
	Voice       string  `json:"voice"`
	AudioOutput string  `json:"audio_output"`
}

// ConfigRequest represents the config API request for updates.
type ConfigRequest struct {
	TTSFallback *bool    `json:"tts_fallback,omitempty"` // Pointer to detect false vs missing
	Volume      *float64 `json:"volume,omitempty"`
	Voice       *string  `json:"voice,omitempty"` // empty string restores the file default
}

// HandleConfig is a unified handler for all config-related methods, facilitating CORS/OPTIONS.
func (h *ConfigHandler) HandleConfig(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, PUT, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.HandleGetConfig(w, r)
	case http.MethodPut, http.MethodPost:
		h.HandleSetConfig(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleGetConfig returns the current configuration.
func (h *ConfigHandler) HandleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.getConfigResponse(r.Context()))
}

func (h *ConfigHandler) getConfigResponse(ctx context.Context) ConfigResponse {
	return ConfigResponse{
		TTSEngine:   h.appCfg.TTS.Engine,
		TTSFallback: h.cfgProv.TTSFallback(ctx),
		Volume:      h.cfgProv.Volume(ctx),
		Voice:       h.cfgProv.Voice(ctx),
		AudioOutput: h.appCfg.Audio.Output,
	}
}

// HandleSetConfig updates the runtime overrides and returns the result.
func (h *ConfigHandler) HandleSetConfig(w http.ResponseWriter, r *http.Request) {
	defer func() { _ = r.Body.Close() }()

	var req ConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	ctx := context.WithoutCancel(r.Context())
	if err := h.applyUpdates(ctx, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.HandleGetConfig(w, r)
}

func (h *ConfigHandler) applyUpdates(ctx context.Context, req *ConfigRequest) error {
	if req.Volume != nil {
		if err := h.cfgProv.SetVolume(ctx, *req.Volume); err != nil {
			return fmt.Errorf("volume: %w", err)
		}
		if h.out != nil {
			h.out.SetVolume(*req.Volume)
		}
		slog.Debug("Config updated", config.KeyVolume, *req.Volume)
	}

	if req.TTSFallback != nil {
		if err := h.cfgProv.SetTTSFallback(ctx, *req.TTSFallback); err != nil {
			return fmt.Errorf("tts_fallback: %w", err)
		}
		slog.Debug("Config updated", config.KeyTTSFallback, *req.TTSFallback)
	}

	if req.Voice != nil {
		if err := h.cfgProv.SetVoice(ctx, *req.Voice); err != nil {
			return fmt.Errorf("voice: %w", err)
		}
		slog.Debug("Config updated", config.KeyVoice, *req.Voice)
	}

	return nil
}
