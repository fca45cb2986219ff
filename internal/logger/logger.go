package logger

import (
	"log/slog"
	"os"
	"strings"
)

// Init initializes the global slog logger with the specified format and level.
// Logs go to stderr so command output on stdout stays clean.
func Init(format, level string) {
	var handler slog.Handler
	var logLevel slog.Level

	// Parse log level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn", "warning":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelWarn
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
		// Source locations are only worth the noise when debugging.
		AddSource: logLevel == slog.LevelDebug,
	}

	// Create handler based on format
	switch strings.ToLower(format) {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	case "text", "console":
		handler = slog.NewTextHandler(os.Stderr, opts)
	default:
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	// Set as default logger
	slog.SetDefault(slog.New(handler))
}
