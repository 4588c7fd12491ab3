package logging

import (
	"context"
	"log/slog"
)

// Context keys for common log fields.
type contextKey string

const (
	// ConnectionIDKey is the context key for connection identifiers.
	ConnectionIDKey contextKey = "connection_id"

	// RequestIDKey is the context key for request identifiers.
	RequestIDKey contextKey = "request_id"

	// MethodKey is the context key for the method being served.
	MethodKey contextKey = "method"
)

// WithConnectionID adds a connection identifier to the context.
func WithConnectionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ConnectionIDKey, id)
}

// GetConnectionID retrieves the connection identifier from the context.
func GetConnectionID(ctx context.Context) string {
	if id, ok := ctx.Value(ConnectionIDKey).(string); ok {
		return id
	}
	return ""
}

// WithRequestID adds a request identifier to the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

// GetRequestID retrieves the request identifier from the context.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// WithMethod adds the method name to the context.
func WithMethod(ctx context.Context, method string) context.Context {
	return context.WithValue(ctx, MethodKey, method)
}

// GetMethod retrieves the method name from the context.
func GetMethod(ctx context.Context) string {
	if method, ok := ctx.Value(MethodKey).(string); ok {
		return method
	}
	return ""
}

// contextHandler is a slog.Handler that attaches connection and request
// identifiers carried in the context to every record logged through the
// *Context logging methods.
type contextHandler struct {
	next slog.Handler
}

func (h *contextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *contextHandler) Handle(ctx context.Context, record slog.Record) error {
	if id := GetConnectionID(ctx); id != "" {
		record.AddAttrs(slog.String(string(ConnectionIDKey), id))
	}
	if id := GetRequestID(ctx); id != "" {
		record.AddAttrs(slog.String(string(RequestIDKey), id))
	}
	if method := GetMethod(ctx); method != "" {
		record.AddAttrs(slog.String(string(MethodKey), method))
	}
	return h.next.Handle(ctx, record)
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &contextHandler{next: h.next.WithAttrs(attrs)}
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{next: h.next.WithGroup(name)}
}
