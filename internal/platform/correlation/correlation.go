// Package correlation tags every log line emitted while handling one chat
// event with the event's id and origin.
package correlation

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
)

type contextKey struct{}

// Scope identifies the chat event a goroutine is working on.
type Scope struct {
	ID       string
	Platform string
	Channel  string
}

// NewID generates an 8-character hex event ID.
func NewID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// WithScope returns a context carrying scope.
func WithScope(ctx context.Context, scope Scope) context.Context {
	return context.WithValue(ctx, contextKey{}, scope)
}

// FromContext extracts the event scope. ok is false when ctx carries no scope
// or the scope has no ID.
func FromContext(ctx context.Context) (Scope, bool) {
	s, ok := ctx.Value(contextKey{}).(Scope)
	return s, ok && s.ID != ""
}

func (s Scope) attrs() []slog.Attr {
	attrs := []slog.Attr{slog.String("event_id", s.ID)}
	if s.Platform != "" {
		attrs = append(attrs, slog.String("platform", s.Platform))
	}
	if s.Channel != "" {
		attrs = append(attrs, slog.String("chat_channel", s.Channel))
	}
	return attrs
}

// Handler wraps a slog.Handler and appends the event scope carried by the
// record's context.
type Handler struct {
	inner slog.Handler
}

func NewHandler(inner slog.Handler) *Handler {
	return &Handler{inner: inner}
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	if s, ok := FromContext(ctx); ok {
		r.AddAttrs(s.attrs()...)
	}
	if err := h.inner.Handle(ctx, r); err != nil {
		return fmt.Errorf("correlation handler: %w", err)
	}
	return nil
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Handler{inner: h.inner.WithAttrs(attrs)}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{inner: h.inner.WithGroup(name)}
}
