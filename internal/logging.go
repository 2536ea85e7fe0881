package internal

import (
	"log/slog"
	"os"
	"strings"
)

// LoggerFromLevel builds the process-wide JSON logger. Unknown levels fall
// back to Info rather than failing startup.
func LoggerFromLevel(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
