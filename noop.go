package partialcache

import (
	"context"
	"time"
)

// NoOp is a Store stub.
type NoOp struct{}

var _ Store = NoOp{}

// Remember always produces a fresh value.
func (NoOp) Remember(ctx context.Context, _ string, _ time.Duration, produce Producer) (string, error) {
	return produce(ctx)
}

// Forget does nothing.
func (NoOp) Forget(context.Context, string) error {
	return nil
}
