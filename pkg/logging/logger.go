package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"stilllift/pkg/config"
	"stilllift/pkg/store"
)

// RequestLogger is the logger instance for HTTP requests.
var RequestLogger *slog.Logger

// narrationLogPath is the path to the narration log file.
var narrationLogPath string

// narrationLogMu protects concurrent writes to the narration log.
var narrationLogMu sync.Mutex

// Init initializes the logging system based on configuration.
// It returns a cleanup function to close log files.
func Init(cfg *config.LogConfig) (func(), error) {
	// Rotate standard log files at startup
	rotatePaths(cfg.Server.Path, cfg.Requests.Path, cfg.Narration.Path, cfg.TTS.Path)

	SetNarrationLogPath(cfg.Narration.Path)
	EnableTrace = strings.EqualFold(cfg.Server.Level, "TRACE")

	var closers []io.Closer

	// 1. Setup Server Logger (Stdout + File)
	serverHandler, file1, err := setupHandler(cfg.Server.Path, cfg.Server.Level, true)
	if err != nil {
		return nil, fmt.Errorf("failed to setup server logger: %w", err)
	}
	if file1 != nil {
		closers = append(closers, file1)
	}
	slog.SetDefault(slog.New(serverHandler))

	// 2. Setup Requests Logger (File Only)
	requestHandler, file2, err := setupHandler(cfg.Requests.Path, cfg.Requests.Level, false)
	if err != nil {
		if file1 != nil {
			file1.Close()
		}
		return nil, fmt.Errorf("failed to setup requests logger: %w", err)
	}
	if file2 != nil {
		closers = append(closers, file2)
	}
	RequestLogger = slog.New(requestHandler)

	return func() {
		for _, c := range closers {
			c.Close()
		}
	}, nil
}

func parseLevel(levelStr string) slog.Level {
	switch strings.ToUpper(levelStr) {
	case "TRACE", "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func setupHandler(path, levelStr string, stdout bool) (handler slog.Handler, file *os.File, err error) {
	level := parseLevel(levelStr)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, err
	}

	// Append mode, truncation handled by rotation in Init
	file, err = os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, err
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}
	fileHandler := slog.NewTextHandler(file, opts)

	if !stdout {
		return fileHandler, file, nil
	}

	// Console only shows INFO and up
	consoleHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: max(level, slog.LevelInfo),
	})

	// Capture for the status endpoint (INFO+)
	captureHandler := slog.NewTextHandler(GlobalLogCapture, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})

	handlers := []slog.Handler{fileHandler, consoleHandler, captureHandler}
	return &multiHandler{handlers: handlers}, file, nil
}

type multiHandler struct {
	handlers []slog.Handler
}

func (m *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle implements slog.Handler
// nolint:gocritic // r must be passed by value to implement slog.Handler
func (m *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, h := range m.handlers {
		if h.Enabled(ctx, r.Level) {
			if err := h.Handle(ctx, r); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newHandlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		newHandlers[i] = h.WithAttrs(attrs)
	}
	return &multiHandler{handlers: newHandlers}
}

func (m *multiHandler) WithGroup(name string) slog.Handler {
	newHandlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		newHandlers[i] = h.WithGroup(name)
	}
	return &multiHandler{handlers: newHandlers}
}

// rotatePaths renames existing log files to .old so every run starts fresh
// while keeping the previous run.
func rotatePaths(paths ...string) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			oldPath := p + ".old"
			_ = os.Remove(oldPath)
			_ = os.Rename(p, oldPath)
		}
	}
}

// SetNarrationLogPath configures the narration log file. Empty disables it.
func SetNarrationLogPath(path string) {
	narrationLogMu.Lock()
	defer narrationLogMu.Unlock()
	narrationLogPath = path
}

// FormatNarration renders one narration outcome as a log line.
// Format: [2006-01-02 15:04:05] [outcome/intent] source - message
func FormatNarration(r *store.NarrationRecord) string {
	ts := r.CreatedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	source := r.Source
	if source == "" {
		source = "-"
	}
	line := fmt.Sprintf("[%s] [%s/%s] %s", ts.Local().Format("2006-01-02 15:04:05"), r.Outcome, r.Intent, source)
	if r.Mood != "" {
		line += fmt.Sprintf(" (%s/%s #%d)", r.Mood, r.Context, r.AudioIndex)
	}
	if text := strings.TrimSpace(r.Message); text != "" {
		line += " - " + text
	}
	return line
}

// LogNarration appends a narration outcome to the narration log.
func LogNarration(r store.NarrationRecord) {
	line := FormatNarration(&r)
	_, _ = GlobalEventCapture.Write([]byte(line))

	narrationLogMu.Lock()
	defer narrationLogMu.Unlock()

	if narrationLogPath == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(narrationLogPath), 0o755); err != nil {
		slog.Error("failed to create narration log directory", "error", err)
		return
	}
	f, err := os.OpenFile(narrationLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		slog.Error("failed to open narration log", "error", err)
		return
	}
	defer f.Close()

	if _, err := f.WriteString(line + "\n"); err != nil {
		slog.Error("failed to write narration log", "error", err)
	}
}
