package cmd

import (
	"io"
	"log/slog"
)

func newLogger(w io.Writer, verbose, quiet bool) *slog.Logger {
	var level slog.Level

	switch {
	case quiet:
		level = slog.LevelError
	case verbose:
		level = slog.LevelDebug
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	return slog.New(slog.NewTextHandler(w, opts))
}
