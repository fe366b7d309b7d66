package tts

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

var (
	logPath = "logs/tts.log"
	mu      sync.RWMutex
)

// SetLogPath configures the path for the TTS log file. An empty path
// disables the log.
func SetLogPath(path string) {
	mu.Lock()
	defer mu.Unlock()
	logPath = path
}

// LogEntry describes one synthesis request.
type LogEntry struct {
	Provider string
	Voice    string
	SSML     string
	Status   int // HTTP status, 0 when the request never completed
	Bytes    int64
	Elapsed  time.Duration
	Err      error
}

func (e LogEntry) format(now time.Time) string {
	outcome := fmt.Sprintf("status=%d", e.Status)
	if e.Err != nil {
		outcome = fmt.Sprintf("error=%q", e.Err.Error())
	}
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] [%s] voice=%s %s bytes=%d elapsed=%s\n",
		now.Format("2006-01-02 15:04:05"), strings.ToUpper(e.Provider), e.Voice, outcome,
		e.Bytes, e.Elapsed.Round(time.Millisecond))
	b.WriteString(e.SSML)
	b.WriteString("\n--------------------------------------------------\n")
	return b.String()
}

// Log appends a synthesis request and its outcome to the TTS log file.
func Log(e LogEntry) {
	mu.RLock()
	path := logPath
	mu.RUnlock()
	if path == "" {
		return
	}

	_ = os.MkdirAll(filepath.Dir(path), 0o755)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = f.WriteString(e.format(time.Now()))
}
