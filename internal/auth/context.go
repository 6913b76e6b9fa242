// Package auth carries the request's storage origin through the context.
//
// This package is imported by both middleware and handler packages, so it
// must not import either of them.
package auth

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const originContextKey contextKey = "origin"

// NewOrigin returns a fresh storage origin id.
func NewOrigin() string {
	return uuid.NewString()
}

// ValidOrigin reports whether s looks like an origin issued by NewOrigin.
// Anything else in a cookie is treated as absent.
func ValidOrigin(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil && len(s) == 36
}

// GetOrigin returns the storage origin stored in ctx, or "".
func GetOrigin(ctx context.Context) string {
	origin, _ := ctx.Value(originContextKey).(string)
	return origin
}

// GetOriginFromRequest returns the storage origin of r, or "".
func GetOriginFromRequest(r *http.Request) string {
	return GetOrigin(r.Context())
}

// WithOrigin returns a copy of ctx carrying origin.
func WithOrigin(ctx context.Context, origin string) context.Context {
	return context.WithValue(ctx, originContextKey, origin)
}
