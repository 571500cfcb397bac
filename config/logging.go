package config

import (
	"log/slog"
	"os"
)

// SetupLogging installs the process-wide slog.Default handler from
// LoggingConfig: text for local runs, JSON in production, matching how the
// teacher's core/lynx and core/scheduler already log through log/slog.
func SetupLogging(cfg LoggingConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
