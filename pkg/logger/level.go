package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// A LevelHandler wraps a Handler with an Enabled method
// that returns false for levels below a minimum.
type LevelHandler struct {
	level   slog.Leveler
	handler slog.Handler
}

// NewLevelHandler returns a LevelHandler with the given level.
// All methods except Enabled delegate to h.
func NewLevelHandler(level slog.Leveler, h slog.Handler) *LevelHandler {
	if lh, ok := h.(*LevelHandler); ok {
		h = lh.Handler()
	}
	return &LevelHandler{level, h}
}

// Enabled implements Handler.Enabled by reporting whether
// level is at least as large as h's level.
func (h *LevelHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle implements Handler.Handle.
func (h *LevelHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.handler.Handle(ctx, r)
}

// WithAttrs implements Handler.WithAttrs.
func (h *LevelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return NewLevelHandler(h.level, h.handler.WithAttrs(attrs))
}

// WithGroup implements Handler.WithGroup.
func (h *LevelHandler) WithGroup(name string) slog.Handler {
	return NewLevelHandler(h.level, h.handler.WithGroup(name))
}

// Handler returns the Handler wrapped by h.
func (h *LevelHandler) Handler() slog.Handler {
	return h.handler
}

// Config selects how the exporter logs.
type Config struct {
	// Level is one of debug, info, warn or error.
	Level string
	// Output is stdout or stderr.
	Output string
	// Type is text or json.
	Type string
}

// New builds the process logger. Unknown values are rejected so a typo in the
// configuration is reported at startup.
func New(cfg Config) (*slog.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	w, err := WriterForOutput(cfg.Output)
	if err != nil {
		return nil, err
	}
	h, err := HandlerForType(cfg.Type, w)
	if err != nil {
		return nil, err
	}
	return slog.New(NewLevelHandler(level, h)), nil
}

// ParseLevel parses a level name. An empty name means info.
func ParseLevel(level string) (slog.Leveler, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return nil, fmt.Errorf("unknown log level %q", level)
	}
}

// WriterForOutput returns the stream named by output. An empty name means stdout.
func WriterForOutput(output string) (io.Writer, error) {
	switch strings.ToLower(output) {
	case "", "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	default:
		return nil, fmt.Errorf("unknown log output %q", output)
	}
}

// HandlerForType returns a text or json handler writing to w. An empty type means text.
func HandlerForType(typ string, w io.Writer) (slog.Handler, error) {
	switch strings.ToLower(typ) {
	case "", "text":
		return slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}), nil
	case "json":
		return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}), nil
	default:
		return nil, fmt.Errorf("unknown log type %q", typ)
	}
}
