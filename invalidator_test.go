package partialcache_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vearutop/partialcache"
)

func TestInvalidator_Invalidate(t *testing.T) {
	mem1 := partialcache.NewMemory()
	mem2 := partialcache.NewMemory()
	ctx := context.Background()
	calls := 0

	i := &partialcache.Invalidator{}
	err := i.Invalidate(ctx)
	assert.True(t, errors.Is(err, partialcache.ErrNothingToInvalidate))

	i.Callbacks = append(i.Callbacks, mem1.ForgetAll, mem2.ForgetAll)

	_, err = mem1.Remember(ctx, "key", time.Minute, producer("1", &calls))
	require.NoError(t, err)

	_, err = mem2.Remember(ctx, "key", time.Minute, producer("2", &calls))
	require.NoError(t, err)

	require.NoError(t, i.Invalidate(ctx))
	assert.Equal(t, 0, mem1.Len())
	assert.Equal(t, 0, mem2.Len())

	err = i.Invalidate(ctx)
	assert.True(t, errors.Is(err, partialcache.ErrAlreadyInvalidated))
}

func TestInvalidator_Invalidate_error(t *testing.T) {
	d, st, _ := newDirective(partialcache.Config{Key: "shop"})
	ctx := context.Background()
	called := false

	i := &partialcache.Invalidator{
		SkipInterval: time.Nanosecond,
		Callbacks: []func(ctx context.Context) error{
			func(ctx context.Context) error { return errors.New("failed") },
			d.Forgetter("nav.menu", "en"),
			func(ctx context.Context) error {
				called = true

				return nil
			},
		},
	}

	assert.EqualError(t, i.Invalidate(ctx), "failed")
	assert.True(t, called)
	assert.Equal(t, []string{"shop.nav.menu-en"}, st.forgets)
}
