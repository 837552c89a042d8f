// Package log provides the faucet's leveled structured logger. It wraps
// log/slog with a terminal handler (colorized, aligned, human-first) and a
// JSON handler (machine-first, for containerized/production use), a
// glog-style verbosity filter, and rotation through lumberjack. Every
// faucetd package logs through here rather than fmt or the stdlib log
// package.
package log

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Lvl mirrors slog.Level but with the faucet's own names, matching the
// six-level scheme (Trace..Crit) the rest of the codebase expects.
type Lvl int

const (
	LevelCrit Lvl = iota
	LevelError
	LevelWarn
	LevelInfo
	LevelDebug
	LevelTrace
)

func (l Lvl) String() string {
	switch l {
	case LevelCrit:
		return "CRIT"
	case LevelError:
		return "ERROR"
	case LevelWarn:
		return "WARN"
	case LevelInfo:
		return "INFO"
	case LevelDebug:
		return "DEBUG"
	case LevelTrace:
		return "TRACE"
	default:
		return "UNKNOWN"
	}
}

// toSlog maps the faucet's level scheme onto slog's, which only has four
// built-in levels; Trace and Crit are expressed as offsets.
func (l Lvl) toSlog() slog.Level {
	switch l {
	case LevelCrit:
		return slog.LevelError + 4
	case LevelError:
		return slog.LevelError
	case LevelWarn:
		return slog.LevelWarn
	case LevelInfo:
		return slog.LevelInfo
	case LevelDebug:
		return slog.LevelDebug
	case LevelTrace:
		return slog.LevelDebug - 4
	default:
		return slog.LevelInfo
	}
}

func fromSlog(l slog.Level) Lvl {
	switch {
	case l >= slog.LevelError+4:
		return LevelCrit
	case l >= slog.LevelError:
		return LevelError
	case l >= slog.LevelWarn:
		return LevelWarn
	case l >= slog.LevelInfo:
		return LevelInfo
	case l >= slog.LevelDebug:
		return LevelDebug
	default:
		return LevelTrace
	}
}

// Logger is the interface every faucetd component logs through.
type Logger interface {
	Trace(msg string, ctx ...interface{})
	Debug(msg string, ctx ...interface{})
	Info(msg string, ctx ...interface{})
	Warn(msg string, ctx ...interface{})
	Error(msg string, ctx ...interface{})
	Crit(msg string, ctx ...interface{})
	New(ctx ...interface{}) Logger
}

type logger struct {
	inner *slog.Logger
}

// NewLogger wraps an slog.Handler as a faucet Logger.
func NewLogger(h slog.Handler) Logger {
	return &logger{inner: slog.New(h)}
}

func (l *logger) write(lvl Lvl, msg string, ctx []interface{}) {
	l.inner.Log(context.Background(), lvl.toSlog(), msg, ctx...)
}

func (l *logger) Trace(msg string, ctx ...interface{}) { l.write(LevelTrace, msg, ctx) }
func (l *logger) Debug(msg string, ctx ...interface{}) { l.write(LevelDebug, msg, ctx) }
func (l *logger) Info(msg string, ctx ...interface{})  { l.write(LevelInfo, msg, ctx) }
func (l *logger) Warn(msg string, ctx ...interface{})  { l.write(LevelWarn, msg, ctx) }
func (l *logger) Error(msg string, ctx ...interface{}) { l.write(LevelError, msg, ctx) }
func (l *logger) Crit(msg string, ctx ...interface{})  { l.write(LevelCrit, msg, ctx) }

func (l *logger) New(ctx ...interface{}) Logger {
	return &logger{inner: l.inner.With(ctx...)}
}

var (
	rootMu sync.Mutex
	root   Logger = NewLogger(NewTerminalHandlerWithLevel(os.Stderr, LevelInfo, true))
)

// Root returns the process-wide default logger.
func Root() Logger {
	rootMu.Lock()
	defer rootMu.Unlock()
	return root
}

// SetDefault installs l as the process-wide default logger, used by the
// package-level New/Trace/Debug/... helpers below.
func SetDefault(l Logger) {
	rootMu.Lock()
	defer rootMu.Unlock()
	root = l
}

// New returns a child of the root logger with the given context attached.
func New(ctx ...interface{}) Logger { return Root().New(ctx...) }

func Trace(msg string, ctx ...interface{}) { Root().Trace(msg, ctx...) }
func Debug(msg string, ctx ...interface{}) { Root().Debug(msg, ctx...) }
func Info(msg string, ctx ...interface{})  { Root().Info(msg, ctx...) }
func Warn(msg string, ctx ...interface{})  { Root().Warn(msg, ctx...) }
func Error(msg string, ctx ...interface{}) { Root().Error(msg, ctx...) }
func Crit(msg string, ctx ...interface{})  { Root().Crit(msg, ctx...) }

// timeNow is overridden in tests that need deterministic timestamps.
var timeNow = time.Now

func formatTime(t time.Time) string {
	return t.Format("01-02|15:04:05.000")
}

func fieldsString(attrs []slog.Attr) string {
	s := ""
	for _, a := range attrs {
		if s != "" {
			s += " "
		}
		s += fmt.Sprintf("%s=%v", a.Key, a.Value.Any())
	}
	return s
}
