// Package pipelog configures the process-wide slog logger, following the
// package-level slog.Info/slog.Warn/slog.Error call style used throughout
// ja7ad-consumption's cmd/consumption/main.go rather than threading a
// *slog.Logger value through every stage constructor.
package pipelog

import (
	"log/slog"
	"os"
)

// Format selects the slog handler backing the default logger.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Setup installs a process-wide slog default logger at the given level and
// format, returning it for callers that do want to hold a reference (e.g.
// to pass context down into a goroutine pool worker's error path).
func Setup(level slog.Level, format Format) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if format == FormatJSON {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// ParseLevel maps a CLI-facing level name to a slog.Level, defaulting to
// Info for anything unrecognized rather than failing the run over a typo
// in a log-level flag.
func ParseLevel(name string) slog.Level {
	switch name {
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
