package partialcache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type ctxKey struct{}

func TestDetach(t *testing.T) {
	parent, cancel := context.WithCancel(context.WithValue(context.Background(), ctxKey{}, "val"))
	cancel()

	ctx, cancelDetached := detach(parent, time.Minute)
	defer cancelDetached()

	assert.Error(t, parent.Err())
	assert.NoError(t, ctx.Err())
	assert.Equal(t, "val", ctx.Value(ctxKey{}))

	deadline, ok := ctx.Deadline()
	assert.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(time.Minute), deadline, time.Second)

	cancelDetached()
	assert.Error(t, ctx.Err())
}
