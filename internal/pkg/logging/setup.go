package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/Vodeneev/hoopsmomentum/internal/pkg/config"
)

// SetupLogger installs the process-wide logger: a text handler on stdout and,
// when cfg.File is set, a JSON handler appending to that file. The returned
// func closes the file.
func SetupLogger(cfg *config.LoggingConfig, serviceName string) (*slog.Logger, func(), error) {
	level := ParseLevel(cfg.Level)
	handlers := []slog.Handler{
		slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}),
	}

	closeFn := func() {}
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, closeFn, fmt.Errorf("open log file %s: %w", cfg.File, err)
		}
		handlers = append(handlers, slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level}))
		closeFn = func() { _ = f.Close() }
	}

	logger := newLogger(handlers, serviceName)
	slog.SetDefault(logger)
	return logger, closeFn, nil
}

func newLogger(handlers []slog.Handler, serviceName string) *slog.Logger {
	return slog.New(&MultiHandler{handlers: handlers}).With("service", serviceName)
}

// NewWriterLogger builds a logger writing text to w, used by one-shot commands and tests.
func NewWriterLogger(w io.Writer, level, serviceName string) *slog.Logger {
	return newLogger([]slog.Handler{slog.NewTextHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)})}, serviceName)
}

// ParseLevel maps debug/info/warn/error (any case) to a slog level. Unknown values are info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// MultiHandler fans records out to several handlers
type MultiHandler struct {
	handlers []slog.Handler
}

func (m *MultiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m *MultiHandler) Handle(ctx context.Context, record slog.Record) error {
	var lastErr error
	for _, h := range m.handlers {
		if h.Enabled(ctx, record.Level) {
			if err := h.Handle(ctx, record.Clone()); err != nil {
				lastErr = err
			}
		}
	}
	return lastErr
}

func (m *MultiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		handlers[i] = h.WithAttrs(attrs)
	}
	return &MultiHandler{handlers: handlers}
}

func (m *MultiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		handlers[i] = h.WithGroup(name)
	}
	return &MultiHandler{handlers: handlers}
}
