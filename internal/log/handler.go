package log

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/go-stack/stack"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// levelColor picks the terminal color used for each level's name, matching
// the severity-ordered palette conventional for CLI tools: loud colors for
// the levels an operator needs to notice immediately.
func levelColor(lvl Lvl) *color.Color {
	switch lvl {
	case LevelCrit:
		return color.New(color.FgMagenta, color.Bold)
	case LevelError:
		return color.New(color.FgRed, color.Bold)
	case LevelWarn:
		return color.New(color.FgYellow)
	case LevelInfo:
		return color.New(color.FgGreen)
	case LevelDebug:
		return color.New(color.FgCyan)
	default:
		return color.New(color.FgWhite)
	}
}

// terminalHandler renders log records as a single aligned line:
// LEVEL [timestamp] message                     key=val key=val ...
type terminalHandler struct {
	mu       sync.Mutex
	w        io.Writer
	minLevel Lvl
	useColor bool
	attrs    []slog.Attr
	groups   []string
}

// NewTerminalHandlerWithLevel builds a handler that writes human-readable
// lines to w, filtering out anything below minLevel. Color is applied only
// when useColor is true; callers typically gate that on isatty.IsTerminal.
func NewTerminalHandlerWithLevel(w io.Writer, minLevel Lvl, useColor bool) slog.Handler {
	return &terminalHandler{w: w, minLevel: minLevel, useColor: useColor}
}

// NewTerminalHandler auto-detects color support for the given writer via
// go-isatty, wrapping it in go-colorable so ANSI sequences still work on
// redirected Windows consoles.
func NewTerminalHandler(w io.Writer, minLevel Lvl) slog.Handler {
	useColor := false
	out := w
	if f, ok := w.(*os.File); ok {
		useColor = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
		out = colorable.NewColorable(f)
	}
	return NewTerminalHandlerWithLevel(out, minLevel, useColor)
}

func (h *terminalHandler) Enabled(_ context.Context, level slog.Level) bool {
	return fromSlog(level) <= h.minLevel
}

func (h *terminalHandler) Handle(_ context.Context, r slog.Record) error {
	lvl := fromSlog(r.Level)
	var buf bytes.Buffer

	levelName := lvl.String()
	if h.useColor {
		levelName = levelColor(lvl).Sprint(levelName)
	}
	fmt.Fprintf(&buf, "%-5s [%s] %-32s", levelName, formatTime(timeNow()), r.Message)

	attrs := append(append([]slog.Attr{}, h.attrs...), recordAttrs(r)...)
	if s := fieldsString(attrs); s != "" {
		buf.WriteByte(' ')
		buf.WriteString(s)
	}
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf.Bytes())
	return err
}

func recordAttrs(r slog.Record) []slog.Attr {
	attrs := make([]slog.Attr, 0, r.NumAttrs())
	r.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, a)
		return true
	})
	return attrs
}

func (h *terminalHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &clone
}

func (h *terminalHandler) WithGroup(name string) slog.Handler {
	clone := *h
	clone.groups = append(append([]string{}, h.groups...), name)
	return &clone
}

// JSONHandler returns a slog.Handler that emits one JSON object per line,
// for container log collection. Unlike the terminal handler it has no
// level threshold of its own and emits every level down to trace;
// verbosity filtering happens one layer up
// through GlogHandler.
func JSONHandler(w io.Writer) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: slog.LevelDebug - 4,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				lvl := fromSlog(a.Value.Any().(slog.Level))
				a.Value = slog.StringValue(lvl.String())
			}
			return a
		},
	})
}

// GlogHandler adds glog-style dynamic verbosity and per-file overrides
// (vmodule) on top of an inner handler, so verbosity can be raised at
// runtime (e.g. from a signal handler or an admin endpoint) without
// reconstructing the logger tree.
type GlogHandler struct {
	inner slog.Handler

	mu        sync.RWMutex
	verbosity Lvl
	patterns  []vmodulePattern
}

type vmodulePattern struct {
	file string
	lvl  Lvl
}

// NewGlogHandler wraps inner with a dynamic verbosity gate, defaulting to
// LevelInfo until Verbosity is called.
func NewGlogHandler(inner slog.Handler) *GlogHandler {
	return &GlogHandler{inner: inner, verbosity: LevelInfo}
}

// Verbosity sets the global verbosity threshold.
func (g *GlogHandler) Verbosity(lvl Lvl) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.verbosity = lvl
}

// Vmodule parses a comma-separated "pattern=level" list, overriding the
// global verbosity for call sites whose source file matches pattern.
func (g *GlogHandler) Vmodule(spec string) error {
	var patterns []vmodulePattern
	for _, part := range strings.Split(spec, ",") {
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			return fmt.Errorf("invalid vmodule pattern: %q", part)
		}
		var lvl int
		if _, err := fmt.Sscanf(kv[1], "%d", &lvl); err != nil {
			return fmt.Errorf("invalid vmodule level in %q: %w", part, err)
		}
		patterns = append(patterns, vmodulePattern{file: kv[0], lvl: Lvl(lvl)})
	}
	g.mu.Lock()
	g.patterns = patterns
	g.mu.Unlock()
	return nil
}

func (g *GlogHandler) callerFile() string {
	// Skip GlogHandler.{callerFile,Enabled} and the slog dispatch frames.
	call := stack.Caller(4)
	full := fmt.Sprintf("%+s", call)
	if idx := strings.LastIndexByte(full, '/'); idx >= 0 {
		return full[idx+1:]
	}
	return full
}

func (g *GlogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	lvl := fromSlog(level)
	g.mu.RLock()
	defer g.mu.RUnlock()
	if len(g.patterns) > 0 {
		file := g.callerFile()
		for _, p := range g.patterns {
			if matched, _ := stackPatternMatch(p.file, file); matched {
				return lvl <= p.lvl
			}
		}
	}
	return lvl <= g.verbosity
}

func stackPatternMatch(pattern, file string) (bool, error) {
	return fmt.Sprintf("%s", file) == pattern, nil
}

func (g *GlogHandler) Handle(ctx context.Context, r slog.Record) error {
	return g.inner.Handle(ctx, r)
}

func (g *GlogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &GlogHandler{inner: g.inner.WithAttrs(attrs), verbosity: g.verbosity, patterns: g.patterns}
}

func (g *GlogHandler) WithGroup(name string) slog.Handler {
	return &GlogHandler{inner: g.inner.WithGroup(name), verbosity: g.verbosity, patterns: g.patterns}
}
