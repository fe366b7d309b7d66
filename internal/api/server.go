package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"stilllift/pkg/assets"
	"stilllift/pkg/logging"
	"stilllift/pkg/version"
)

// Handlers groups the endpoint handlers mounted by NewServer. Nil handlers
// leave their routes unmounted.
type Handlers struct {
	Messages  *MessageHandler
	Narration *NarrationHandler
	Audio     *AudioHandler
	Config    *ConfigHandler
	Stats     *StatsHandler
	AssetsDir string // served at /still-lift-audio/ when set
}

// NewServer creates and configures the HTTP server.
func NewServer(addr string, h Handlers, shutdown func()) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      WithRequestLog(NewMux(h, shutdown)),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// NewMux registers every route.
func NewMux(h Handlers, shutdown func()) *http.ServeMux {
	mux := http.NewServeMux()

	// 1. Health and version
	mux.HandleFunc("GET /health", handleHealth)
	mux.HandleFunc("GET /api/version", handleVersion)
	mux.HandleFunc("GET /api/log/latest", handleLatestLog)
	mux.HandleFunc("GET /api/log/recent", handleRecentLog)

	// 2. Messages (entry point A)
	if h.Messages != nil {
		mux.HandleFunc("GET /api/message", h.Messages.HandleMessage)
		mux.HandleFunc("GET /api/library", h.Messages.HandleLibrary)
		mux.HandleFunc("GET /api/library/validate", h.Messages.HandleValidate)
	}

	// 3. Narration (entry points B and C)
	if h.Narration != nil {
		mux.HandleFunc("POST /api/narration/play", h.Narration.HandlePlay)
		mux.HandleFunc("POST /api/narration/speak", h.Narration.HandleSpeak)
		mux.HandleFunc("POST /api/narration/stop", h.Narration.HandleStop)
		mux.HandleFunc("GET /api/narration/status", h.Narration.HandleStatus)
		mux.HandleFunc("GET /api/narration/candidates", h.Narration.HandleCandidates)
		mux.HandleFunc("GET /api/narration/history", h.Narration.HandleHistory)
	}

	// 4. Audio
	if h.Audio != nil {
		mux.HandleFunc("POST /api/audio/volume", h.Audio.HandleVolume)
		mux.HandleFunc("GET /api/audio/status", h.Audio.HandleStatus)
	}

	// 5. Config and stats
	if h.Config != nil {
		mux.HandleFunc("/api/config", h.Config.HandleConfig)
	}
	if h.Stats != nil {
		mux.Handle("GET /api/stats", h.Stats)
	}

	// 6. Shutdown
	mux.HandleFunc("POST /api/shutdown", func(w http.ResponseWriter, r *http.Request) {
		slog.Info("Graceful shutdown initiated via API")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("Shutting down...")); err != nil {
			slog.Error("Failed to write shutdown response", "error", err)
		}
		if shutdown == nil {
			return
		}
		// Let the response flush first
		go func() {
			time.Sleep(100 * time.Millisecond)
			shutdown()
		}()
	})

	// 7. Asset tree
	if h.AssetsDir != "" {
		mux.Handle("GET "+assets.BaseDir, http.StripPrefix(assets.BaseDir, http.FileServer(http.Dir(h.AssetsDir))))
	}

	return mux
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		slog.Error("Failed to write health response", "error", err)
	}
}

func handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if _, err := fmt.Fprintf(w, `{"version": %q}`, version.Version); err != nil {
		slog.Error("Failed to write version response", "error", err)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// WithRequestLog writes one line per request to the request log.
func WithRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger := logging.RequestLogger
		if logger == nil {
			logger = slog.Default()
		}
		logger.Info("Request Processed", "method", r.Method, "path", r.URL.Path, "status", rec.status, "duration", time.Since(start))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
