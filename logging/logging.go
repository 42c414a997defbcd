// Package logging builds the slog loggers used across the service. Every
// record emitted with a context carrying a reqctx.State is tagged with the
// request id and the viewer id.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/goliatone/go-crud-service/reqctx"
)

const (
	FormatJSON = "json"
	FormatText = "text"

	RequestIDKey = "requestId"
	UserIDKey    = "userId"
	ComponentKey = "component"
)

// LevelHTTP sits between debug and info and carries access logs.
const LevelHTTP = slog.LevelInfo - 2

// Config selects the handler and level.
type Config struct {
	Level     string
	Format    string
	AddSource bool
	Output    io.Writer
}

// DefaultConfig logs info and above as JSON to stdout.
func DefaultConfig() Config {
	return Config{
		Level:  "info",
		Format: FormatJSON,
		Output: os.Stdout,
	}
}

// ParseLevel accepts debug, http, info, warn and error in any case.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return slog.LevelInfo, nil
	case "http":
		return LevelHTTP, nil
	}
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("logging: invalid level %q: %w", s, err)
	}
	return level, nil
}

func levelName(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		if l, ok := a.Value.Any().(slog.Level); ok && l == LevelHTTP {
			a.Value = slog.StringValue("HTTP")
		}
	}
	return a
}

// New returns a logger whose handler reads request state from the context.
func New(cfg Config) (*slog.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	opts := &slog.HandlerOptions{Level: level, AddSource: cfg.AddSource, ReplaceAttr: levelName}

	var h slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "", FormatJSON:
		h = slog.NewJSONHandler(out, opts)
	case FormatText:
		h = slog.NewTextHandler(out, opts)
	default:
		return nil, fmt.Errorf("logging: unknown format %q", cfg.Format)
	}

	return slog.New(NewContextHandler(h)), nil
}

// Component returns a child logger tagged with the component name. A nil
// logger falls back to slog.Default.
func Component(l *slog.Logger, name string) *slog.Logger {
	if l == nil {
		l = slog.Default()
	}
	return l.With(ComponentKey, name)
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// ContextHandler decorates a handler with the request id and viewer id found
// in the record's context. The values are read when the record is handled, so
// a viewer attached after the logger was created is still reported.
type ContextHandler struct {
	next slog.Handler
}

func NewContextHandler(next slog.Handler) *ContextHandler {
	return &ContextHandler{next: next}
}

func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if st, ok := reqctx.From(ctx); ok {
		r.AddAttrs(slog.String(RequestIDKey, st.RequestID()))
		if id := st.Viewer().ID; id != "" {
			r.AddAttrs(slog.String(UserIDKey, id))
		}
	}
	return h.next.Handle(ctx, r)
}

func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{next: h.next.WithAttrs(attrs)}
}

func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{next: h.next.WithGroup(name)}
}
