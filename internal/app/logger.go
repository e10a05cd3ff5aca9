package app

import (
	"log/slog"
	"os"
)

// NewLogger returns the process logger, JSON when LOG_FORMAT=json. Every
// line is tagged with the service name so api and worker output can be
// told apart in shared log streams.
func NewLogger(cfg *Config) *slog.Logger {
	var handler slog.Handler
	if cfg != nil && cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{AddSource: true})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{AddSource: true})
	}
	return slog.New(handler).With(slog.String("service", "meridian"))
}
