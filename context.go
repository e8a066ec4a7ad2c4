package partialcache

import (
	"context"
)

type (
	bypassCtxKey  struct{}
	refreshCtxKey struct{}
)

// WithBypass returns context with fragment cache disabled.
//
// With such context fragments are rendered directly, If and When guards still apply.
func WithBypass(ctx context.Context) context.Context {
	return context.WithValue(ctx, bypassCtxKey{}, true)
}

// Bypass returns true if fragment cache is disabled in context.
func Bypass(ctx context.Context) bool {
	_, ok := ctx.Value(bypassCtxKey{}).(bool)

	return ok
}

// WithRefresh returns context with cached fragments ignored.
//
// With such context cached entry is forgotten before lookup, so fragment is rendered and stored again.
func WithRefresh(ctx context.Context) context.Context {
	return context.WithValue(ctx, refreshCtxKey{}, true)
}

// Refresh returns true if cached fragments are ignored in context.
func Refresh(ctx context.Context) bool {
	_, ok := ctx.Value(refreshCtxKey{}).(bool)

	return ok
}
