package partialcache_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bool64/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vearutop/partialcache"
)

func TestFailover_Remember(t *testing.T) {
	f := partialcache.NewFailover(partialcache.FailoverConfig{Name: "fragments"})
	ctx := context.Background()
	calls := 0

	v, err := f.Remember(ctx, "key", time.Minute, producer("<p>", &calls))
	require.NoError(t, err)
	assert.Equal(t, "<p>", v)

	v, err = f.Remember(ctx, "key", time.Minute, producer("<q>", &calls))
	require.NoError(t, err)
	assert.Equal(t, "<p>", v)
	assert.Equal(t, 1, calls)

	require.NoError(t, f.Forget(ctx, "key"))
	require.NoError(t, f.Forget(ctx, "missing"))

	v, err = f.Remember(ctx, "key", time.Minute, producer("<q>", &calls))
	require.NoError(t, err)
	assert.Equal(t, "<q>", v)
	assert.Equal(t, 2, calls)
}

func TestFailover_Remember_concurrency(t *testing.T) {
	f := partialcache.NewFailover(partialcache.FailoverConfig{Stats: &stats.TrackerMock{}})
	ctx := context.Background()

	var calls int64

	wg := sync.WaitGroup{}
	wg.Add(50)

	for i := 0; i < 50; i++ {
		go func() {
			defer wg.Done()

			v, err := f.Remember(ctx, "key", time.Minute, func(ctx context.Context) (string, error) {
				atomic.AddInt64(&calls, 1)
				time.Sleep(10 * time.Millisecond)

				return "<p>", nil
			})
			assert.NoError(t, err)
			assert.Equal(t, "<p>", v)
		}()
	}

	wg.Wait()

	assert.Equal(t, int64(1), atomic.LoadInt64(&calls))
}

func TestFailover_Remember_error(t *testing.T) {
	f := partialcache.NewFailover(partialcache.FailoverConfig{})
	ctx := context.Background()
	calls := 0

	_, err := f.Remember(ctx, "key", time.Minute, func(ctx context.Context) (string, error) {
		return "", errors.New("failed")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed")

	// Failure is not cached.
	v, err := f.Remember(ctx, "key", time.Minute, producer("<p>", &calls))
	require.NoError(t, err)
	assert.Equal(t, "<p>", v)
	assert.Equal(t, 1, calls)
}

func TestFailover_ForgetAll(t *testing.T) {
	f := partialcache.NewFailover(partialcache.FailoverConfig{})
	ctx := context.Background()
	calls := 0

	for _, k := range []string{"a", "b"} {
		_, err := f.Remember(ctx, k, time.Minute, producer("<"+k+">", &calls))
		require.NoError(t, err)
	}

	require.NoError(t, f.ForgetAll(ctx))

	v, err := f.Remember(ctx, "a", time.Minute, producer("<c>", &calls))
	require.NoError(t, err)
	assert.Equal(t, "<c>", v)
	assert.Equal(t, 3, calls)

	i := &partialcache.Invalidator{Callbacks: []func(ctx context.Context) error{f.ForgetAll}}
	require.NoError(t, i.Invalidate(ctx))

	_, err = f.Remember(ctx, "a", time.Minute, producer("<d>", &calls))
	require.NoError(t, err)
	assert.Equal(t, 4, calls)
}
