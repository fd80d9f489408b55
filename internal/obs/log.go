// Package obs provides the structured logger shared by the tokenizer,
// executor, and sandbox worker host.
package obs

import (
	"log/slog"
	"os"
)

// Logger returns a slog.Logger whose level is controlled by VSHELL_DEBUG.
// Timestamps and level keys are stripped, matching the terse trace lines
// the rest of the interpreter expects on stderr.
func Logger(component string) *slog.Logger {
	level := slog.LevelWarn
	if os.Getenv("VSHELL_DEBUG") != "" {
		level = slog.LevelDebug
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey || a.Key == slog.LevelKey {
				return slog.Attr{}
			}
			return a
		},
	})

	return slog.New(handler).With("component", component)
}
