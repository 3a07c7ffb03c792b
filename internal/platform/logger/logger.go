// Package logger builds the process-wide structured logger. The vault
// logs JSON to stdout so access decisions and audit-append failures land
// in whatever collector scrapes the container.
package logger

import (
	"log/slog"
	"os"
	"strings"
)

// New returns a JSON slog logger. LOG_LEVEL selects the minimum level
// (debug, info, warn, error); unset or unrecognized values mean info.
func New() *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: levelFromEnv(os.Getenv("LOG_LEVEL")),
	})
	return slog.New(handler)
}

func levelFromEnv(v string) slog.Level {
	switch strings.ToLower(v) {
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
