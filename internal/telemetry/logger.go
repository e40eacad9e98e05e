package telemetry

import (
	"io"
	"log/slog"
	"strings"
	"sync"
)

// OutputLock orders every line written to the console and to the bitácora
// so that concurrent workers never interleave partial lines.
var OutputLock sync.Mutex

// lockedWriter serializes writes to w through OutputLock.
type lockedWriter struct {
	w io.Writer
}

func (l lockedWriter) Write(p []byte) (int, error) {
	OutputLock.Lock()
	defer OutputLock.Unlock()
	return l.w.Write(p)
}

// Locked wraps w so each Write holds OutputLock.
func Locked(w io.Writer) io.Writer {
	return lockedWriter{w: w}
}

// Init installs a text slog logger on w as the process default.
func Init(level slog.Level, w io.Writer) *slog.Logger {
	logger := slog.New(slog.NewTextHandler(Locked(w), &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

// ParseLevel converts a level name to slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
