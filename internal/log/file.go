package log

import (
	"context"
	"log/slog"

	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// FileHandlerConfig controls rotation for log files written to disk.
type FileHandlerConfig struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	JSON       bool
}

// NewFileHandler returns a handler that writes rotated log files through
// lumberjack, in either the terminal (uncolored, since files don't render
// ANSI) or JSON format.
func NewFileHandler(cfg FileHandlerConfig, minLevel Lvl) slog.Handler {
	w := &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
	}
	if cfg.JSON {
		return JSONHandler(w)
	}
	return NewTerminalHandlerWithLevel(w, minLevel, false)
}

// multiHandler fans a single record out to several handlers, so faucetd can
// keep logging to the terminal while also writing a rotated file.
type multiHandler []slog.Handler

// NewMultiHandler combines handlers so every record is written to each of
// them, used to add rotated file output alongside the terminal/JSON handler
// rather than replacing it.
func NewMultiHandler(handlers ...slog.Handler) slog.Handler {
	return multiHandler(handlers)
}

func (m multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m multiHandler) Handle(ctx context.Context, r slog.Record) error {
	var err error
	for _, h := range m {
		if h.Enabled(ctx, r.Level) {
			if e := h.Handle(ctx, r.Clone()); e != nil {
				err = e
			}
		}
	}
	return err
}

func (m multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(multiHandler, len(m))
	for i, h := range m {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (m multiHandler) WithGroup(name string) slog.Handler {
	out := make(multiHandler, len(m))
	for i, h := range m {
		out[i] = h.WithGroup(name)
	}
	return out
}
