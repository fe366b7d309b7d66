package logging

import "log/slog"

// EnableTrace turns on per-candidate resolution logs. Init sets it when the
// server log level is TRACE.
var EnableTrace = false

// Trace logs at DEBUG level when tracing is enabled.
func Trace(msg string, args ...any) {
	if EnableTrace {
		slog.Debug(msg, args...)
	}
}
