// Package log provides the logging infrastructure for localrag.
//
// Loggers are plain *slog.Logger values injected through constructors; each
// component narrows its logger with logger.With("component", ...). There is no
// package-level global beyond slog's own default.
//
// Usage:
//
//	logger := log.New(log.Config{Level: slog.LevelDebug})
//	store, err := vectorstore.Open(ctx, cfg, logger.With("component", "store"))
//
// Tests use NewNop to silence output, or NewWithWriter with a bytes.Buffer to
// inspect it.
package log

import (
	"io"
	"log/slog"
	"os"
)

// Logger aliases *slog.Logger so components depend on the standard type
// while importing a single project package.
type Logger = *slog.Logger

// Config controls handler construction.
type Config struct {
	// Level is the minimum level emitted. Zero value is slog.LevelInfo.
	Level slog.Level

	// JSON switches from text to JSON output.
	JSON bool

	// AddSource annotates records with file:line.
	AddSource bool
}

// New creates a logger writing to stderr.
func New(cfg Config) Logger {
	return NewWithWriter(os.Stderr, cfg)
}

// NewWithWriter creates a logger writing to w.
func NewWithWriter(w io.Writer, cfg Config) Logger {
	opts := &slog.HandlerOptions{
		Level:     cfg.Level,
		AddSource: cfg.AddSource,
	}

	var handler slog.Handler
	if cfg.JSON {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// NewNop returns a logger that discards everything. Test use only; production
// code should always be able to tell you why it failed.
func NewNop() Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
