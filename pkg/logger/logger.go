// Package logger provides the colored terminal handler used by the embedkit
// commands.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorGray   = "\033[90m"
)

// highlighted messages are progress lines worth spotting in a long run.
var highlighted = []string{"processed batch", "embedded", "cache hit"}

// ColorHandler is a slog.Handler that writes one colored line per record:
// red for errors, yellow for warnings, green for progress messages.
type ColorHandler struct {
	mu      *sync.Mutex
	w       io.Writer
	opts    slog.HandlerOptions
	prefix  string // group prefix for attribute keys
	attrs   string // preformatted attributes from WithAttrs
	noColor bool
}

// NewColorHandler creates a ColorHandler writing to w. Colors are disabled
// when NO_COLOR is set.
func NewColorHandler(w io.Writer, opts *slog.HandlerOptions) *ColorHandler {
	h := &ColorHandler{
		mu:      &sync.Mutex{},
		w:       w,
		noColor: os.Getenv("NO_COLOR") != "",
	}
	if opts != nil {
		h.opts = *opts
	}
	return h
}

// NewDefaultLogger returns a colored logger on stderr at level.
func NewDefaultLogger(level slog.Level) *slog.Logger {
	return slog.New(NewColorHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// New returns a logger writing text (colored) or json records to w.
func New(w io.Writer, level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(NewColorHandler(w, opts))
}

// ParseLevel maps debug, info, warn and error to slog levels. Anything else
// is info.
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

// Enabled implements slog.Handler
func (h *ColorHandler) Enabled(_ context.Context, level slog.Level) bool {
	minLevel := slog.LevelInfo
	if h.opts.Level != nil {
		minLevel = h.opts.Level.Level()
	}
	return level >= minLevel
}

// Handle implements slog.Handler
func (h *ColorHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder

	if !r.Time.IsZero() {
		b.WriteString(r.Time.Format(time.TimeOnly))
		b.WriteByte(' ')
	}

	level := fmt.Sprintf("%-5s", r.Level.String())
	b.WriteString(h.paint(levelColor(r.Level), level))
	b.WriteByte(' ')

	msgColor := ""
	if r.Level < slog.LevelWarn && isHighlighted(r.Message) {
		msgColor = colorGreen
	}
	b.WriteString(h.paint(msgColor, r.Message))

	b.WriteString(h.attrs)
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(&b, h.prefix, a)
		return true
	})
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

// WithAttrs implements slog.Handler
func (h *ColorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	var b strings.Builder
	b.WriteString(h.attrs)
	for _, a := range attrs {
		writeAttr(&b, h.prefix, a)
	}
	clone := *h
	clone.attrs = b.String()
	return &clone
}

// WithGroup implements slog.Handler
func (h *ColorHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.prefix = h.prefix + name + "."
	return &clone
}

func (h *ColorHandler) paint(color, s string) string {
	if h.noColor || color == "" {
		return s
	}
	return color + s + colorReset
}

func levelColor(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return colorRed
	case level >= slog.LevelWarn:
		return colorYellow
	case level < slog.LevelInfo:
		return colorGray
	default:
		return ""
	}
}

func isHighlighted(msg string) bool {
	lower := strings.ToLower(msg)
	for _, h := range highlighted {
		if strings.Contains(lower, h) {
			return true
		}
	}
	return false
}

func writeAttr(b *strings.Builder, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		p := prefix
		if a.Key != "" {
			p = prefix + a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			writeAttr(b, p, ga)
		}
		return
	}

	b.WriteByte(' ')
	b.WriteString(prefix)
	b.WriteString(a.Key)
	b.WriteByte('=')
	v := a.Value.String()
	if strings.ContainsAny(v, " \t\"=") {
		v = fmt.Sprintf("%q", v)
	}
	b.WriteString(v)
}
