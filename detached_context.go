package partialcache

import (
	"context"
	"time"
)

// detachedContext keeps values of parent context, but ignores its cancellation and deadline.
type detachedContext struct {
	ctx context.Context
}

func (dctx detachedContext) Deadline() (deadline time.Time, ok bool) {
	return time.Time{}, false
}

func (dctx detachedContext) Done() <-chan struct{} {
	return nil
}

func (dctx detachedContext) Err() error {
	return nil
}

func (dctx detachedContext) Value(key interface{}) interface{} {
	return dctx.ctx.Value(key)
}

// detach returns context for store writes that should not be aborted by cancelled request.
func detach(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(detachedContext{ctx: ctx}, timeout)
}
