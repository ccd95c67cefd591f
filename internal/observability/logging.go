// Package observability wires structured logging and a small in-process
// metrics registry for the daemon's background loops. Grounded in the
// teacher's cmd/server/main.go slog setup (text handler picked by transport
// mode, size-capped rotating log file) and in deepnoodle-ai-dive's
// tint-based console handler selection.
package observability

import (
	"io"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

// NewLogger builds a slog.Logger writing to w. When w is a TTY it uses
// lmittmann/tint's colorized handler (the way dive selects tint for
// interactive terminals); otherwise it falls back to the teacher's plain
// slog.TextHandler, which is what every non-interactive consumer (log
// files, piped stdout/stderr under an agent host) actually wants.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		return slog.New(tint.NewHandler(w, &tint.Options{Level: level}))
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// ParseLevel maps the guardian/config log level string to a slog.Level,
// matching the teacher's parseLogLevel in cmd/server/main.go.
func ParseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
