package logging

import (
	"strings"
	"sync"
)

const defaultCaptureLines = 20

// LineRing keeps the most recent lines written to it. Safe for concurrent use.
type LineRing struct {
	mu    sync.RWMutex
	lines []string
	next  int
	full  bool
}

// NewLineRing creates a ring holding up to size lines.
func NewLineRing(size int) *LineRing {
	if size < 1 {
		size = 1
	}
	return &LineRing{lines: make([]string, size)}
}

// GlobalLogCapture holds recent server log lines for the status endpoint.
var GlobalLogCapture = NewLineRing(defaultCaptureLines)

// GlobalEventCapture holds recent narration outcomes.
var GlobalEventCapture = NewLineRing(defaultCaptureLines)

// Write implements io.Writer. Each call is stored as one line with trailing
// newlines removed.
func (r *LineRing) Write(p []byte) (int, error) {
	line := strings.TrimRight(string(p), "\r\n")

	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines[r.next] = line
	r.next = (r.next + 1) % len(r.lines)
	if r.next == 0 {
		r.full = true
	}
	return len(p), nil
}

// GetLastLine returns the most recent line, or "" if nothing was written.
func (r *LineRing) GetLastLine() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.full && r.next == 0 {
		return ""
	}
	return r.lines[(r.next-1+len(r.lines))%len(r.lines)]
}

// Recent returns up to n of the newest lines, oldest first.
func (r *LineRing) Recent(n int) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := r.next
	if r.full {
		count = len(r.lines)
	}
	n = min(n, count)
	if n <= 0 {
		return nil
	}
	out := make([]string, 0, n)
	start := (r.next - n + len(r.lines)) % len(r.lines)
	for i := range n {
		out = append(out, r.lines[(start+i)%len(r.lines)])
	}
	return out
}
