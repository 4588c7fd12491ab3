package logging

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
)

// Redactor scrubs credential-shaped values from log output. The gateway
// handles provider API keys and bearer tokens; none of them belong in logs.
type Redactor struct {
	patterns []*redactPattern
}

// redactPattern pairs a compiled regex with its replacement.
type redactPattern struct {
	regex       *regexp.Regexp
	replacement string
}

// NewRedactor creates a Redactor with the built-in credential patterns.
func NewRedactor() *Redactor {
	return &Redactor{
		patterns: []*redactPattern{
			// Provider API keys (sk- prefixed, or api_key: value forms).
			{
				regex:       regexp.MustCompile(`(sk-[a-zA-Z0-9]+|api[-_]?key[-_:=]\s*[a-zA-Z0-9]+)`),
				replacement: "sk-***",
			},
			// Bearer tokens in header dumps.
			{
				regex:       regexp.MustCompile(`Bearer\s+[a-zA-Z0-9\-._~+/]+=*`),
				replacement: "Bearer ***",
			},
			// Generic password fields.
			{
				regex:       regexp.MustCompile(`(password|passwd|pwd)[:=]\s*\S+`),
				replacement: "$1: ***",
			},
		},
	}
}

// RedactString scrubs credential-shaped substrings from a value.
func (r *Redactor) RedactString(value string) string {
	if value == "" {
		return value
	}
	for _, p := range r.patterns {
		value = p.regex.ReplaceAllString(value, p.replacement)
	}
	return value
}

// RedactAttr scrubs an attribute. Values under sensitive keys are replaced
// wholesale; other string values are pattern-scrubbed.
func (r *Redactor) RedactAttr(attr slog.Attr) slog.Attr {
	if isSensitiveKey(attr.Key) {
		return slog.String(attr.Key, redactValue(attr.Value.String()))
	}
	if attr.Value.Kind() == slog.KindString {
		return slog.String(attr.Key, r.RedactString(attr.Value.String()))
	}
	if attr.Value.Kind() == slog.KindGroup {
		group := attr.Value.Group()
		redacted := make([]any, 0, len(group))
		for _, a := range group {
			redacted = append(redacted, r.RedactAttr(a))
		}
		return slog.Group(attr.Key, redacted...)
	}
	return attr
}

// isSensitiveKey reports whether a key name indicates credential data.
func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, sensitive := range []string{
		"password", "secret", "token", "api_key", "apikey",
		"authorization", "credential",
	} {
		if strings.Contains(lower, sensitive) {
			return true
		}
	}
	return false
}

// redactValue replaces a sensitive value, keeping a short prefix as a
// debugging hint.
func redactValue(value string) string {
	if len(value) <= 4 {
		return "***"
	}
	return value[:4] + "***"
}

// redactHandler is a slog.Handler that scrubs attributes before delegating
// to the wrapped handler.
type redactHandler struct {
	next     slog.Handler
	redactor *Redactor
}

func (h *redactHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *redactHandler) Handle(ctx context.Context, record slog.Record) error {
	scrubbed := slog.NewRecord(record.Time, record.Level, h.redactor.RedactString(record.Message), record.PC)
	record.Attrs(func(attr slog.Attr) bool {
		scrubbed.AddAttrs(h.redactor.RedactAttr(attr))
		return true
	})
	return h.next.Handle(ctx, scrubbed)
}

func (h *redactHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	redacted := make([]slog.Attr, len(attrs))
	for i, attr := range attrs {
		redacted[i] = h.redactor.RedactAttr(attr)
	}
	return &redactHandler{next: h.next.WithAttrs(redacted), redactor: h.redactor}
}

func (h *redactHandler) WithGroup(name string) slog.Handler {
	return &redactHandler{next: h.next.WithGroup(name), redactor: h.redactor}
}
