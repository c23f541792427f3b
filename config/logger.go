package config

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// NewLogger returns a slog.Logger for the given environment writing to stdout.
// Production uses a JSON handler; anything else a text handler.
// LOG_LEVEL may be debug, info, warn or error (default: info).
func NewLogger(environment string) *slog.Logger {
	return newLogger(os.Stdout, environment, os.Getenv("LOG_LEVEL"))
}

func newLogger(w io.Writer, environment, levelName string) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(levelName))); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if environment == "production" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
