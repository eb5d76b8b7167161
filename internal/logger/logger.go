package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"sync"

	"golang.org/x/term"
)

var isTerminal = term.IsTerminal

// Keys whose values never reach the log output
var sensitiveKeys = []string{
	"api_key",
	"apikey",
	"authorization",
	"key",
	"password",
	"prompt",
	"secret",
	"token",
	"document",
}

var sensitiveValuePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bsk-[A-Za-z0-9_-]{10,}\b`),
	regexp.MustCompile(`(?i)\bsk-ant-[A-Za-z0-9_-]{10,}\b`),
	regexp.MustCompile(`(?i)\bbearer\s+[A-Za-z0-9\-._~+/]+=*`),
	regexp.MustCompile(`(?i)\b(api[_-]?key|subscription[_-]?key|secret)\b\s*[:=]\s*\S+`),
}

// RedactAttr is a slog.ReplaceAttr function that hides credentials and prompt bodies
func RedactAttr(_ []string, a slog.Attr) slog.Attr {
	if shouldRedact(a) {
		return slog.String(a.Key, "[REDACTED]")
	}
	return a
}

func shouldRedact(a slog.Attr) bool {
	key := strings.ToLower(a.Key)
	for _, k := range sensitiveKeys {
		if key == k || strings.HasSuffix(key, "_"+k) {
			return true
		}
	}
	if a.Value.Kind() != slog.KindString {
		return false
	}
	value := a.Value.String()
	for _, re := range sensitiveValuePatterns {
		if re.MatchString(value) {
			return true
		}
	}
	return false
}

// ParseLevel converts a config string into a slog level, defaulting to info
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

// Setup installs the process-wide slog logger.
// format is "json" or "pretty"; pretty output is colored on terminals.
func Setup(level, format string, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := &slog.HandlerOptions{
		Level:       ParseLevel(level),
		ReplaceAttr: RedactAttr,
	}

	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		color := false
		if f, ok := w.(*os.File); ok {
			color = isTerminal(int(f.Fd()))
		}
		handler = NewPrettyHandler(w, opts, color)
	}

	l := slog.New(handler)
	slog.SetDefault(l)
	return l
}

// PrettyHandler renders records as single human-readable lines
type PrettyHandler struct {
	w     io.Writer
	opts  *slog.HandlerOptions
	attrs []slog.Attr
	group string
	color bool
	mu    *sync.Mutex
}

// NewPrettyHandler creates a new console handler
func NewPrettyHandler(w io.Writer, opts *slog.HandlerOptions, color bool) *PrettyHandler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	return &PrettyHandler{w: w, opts: opts, color: color, mu: &sync.Mutex{}}
}

func (h *PrettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	minLevel := slog.LevelInfo
	if h.opts.Level != nil {
		minLevel = h.opts.Level.Level()
	}
	return level >= minLevel
}

func (h *PrettyHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder

	levelColor, reset := "", ""
	if h.color {
		switch {
		case r.Level >= slog.LevelError:
			levelColor = "\033[31m"
		case r.Level >= slog.LevelWarn:
			levelColor = "\033[33m"
		case r.Level >= slog.LevelInfo:
			levelColor = "\033[32m"
		default:
			levelColor = "\033[90m"
		}
		reset = "\033[0m"
	}

	fmt.Fprintf(&b, "%s %s%-5s%s %s", r.Time.Format("15:04:05"), levelColor, r.Level.String(), reset, r.Message)

	write := func(a slog.Attr) {
		if h.opts.ReplaceAttr != nil {
			a = h.opts.ReplaceAttr(nil, a)
		}
		if a.Key == "" {
			return
		}
		key := a.Key
		if h.group != "" {
			key = h.group + "." + key
		}
		fmt.Fprintf(&b, " %s=%v", key, a.Value.Any())
	}
	for _, a := range h.attrs {
		write(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		write(a)
		return true
	})
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

func (h *PrettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &next
}

func (h *PrettyHandler) WithGroup(name string) slog.Handler {
	next := *h
	if next.group != "" {
		next.group += "." + name
	} else {
		next.group = name
	}
	return &next
}
