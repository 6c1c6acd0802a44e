// Package utils provides utility functions for the application.
package utils

import (
	"context"
	"strings"
	"unicode/utf8"
)

func ToPtr[T any](v T) *T {
	return &v
}

// Deref returns the pointed value or the zero value of T
func Deref[T any](v *T) T {
	if v == nil {
		var zero T
		return zero
	}
	return *v
}

// StringFromContext reads a string value stored under key, returning "" when absent
func StringFromContext(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// ActorFromContext returns the reviewer identity attached to ctx, or SystemActor
func ActorFromContext(ctx context.Context) string {
	if actor := strings.TrimSpace(StringFromContext(ctx, ActorKey)); actor != "" {
		return actor
	}
	return SystemActor
}

// WithActor attaches a reviewer identity to ctx
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, ActorKey, actor)
}

// TruncateString cuts s to at most max bytes on a rune boundary
func TruncateString(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := s[:max]
	for len(cut) > 0 && !utf8.ValidString(cut) {
		cut = cut[:len(cut)-1]
	}
	return cut
}
