// Command sayright is a spoken pronunciation trainer. It listens for a
// practice vocabulary, judges each word and answers with printed and spoken
// feedback.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/sayright/sayright/internal/config"
	"github.com/sayright/sayright/internal/session"
	"github.com/sayright/sayright/internal/vocab"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	if err := newRootCmd().Execute(); err != nil {
		switch {
		case errors.Is(err, os.ErrNotExist) && errors.Is(err, errConfigFile):
			fmt.Fprintf(os.Stderr, "sayright: %v (copy configs/example.yaml to get started)\n", err)
		case errors.Is(err, session.ErrRecognitionUnavailable):
			fmt.Fprintf(os.Stderr, "sayright: speech recognition is unavailable: %v\n", err)
		case errors.Is(err, vocab.ErrConfiguration):
			fmt.Fprintf(os.Stderr, "sayright: configuration error: %v\n", err)
		default:
			fmt.Fprintf(os.Stderr, "sayright: %v\n", err)
		}
		return 1
	}
	return 0
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
