package partialcache_test

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/bool64/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vearutop/partialcache"
)

func fillMemory(t *testing.T, m *partialcache.Memory) {
	t.Helper()

	ctx := context.Background()
	calls := 0

	// Filling cache with enough items.
	for i := 0; i < 1000; i++ {
		_, err := m.Remember(ctx, strconv.Itoa(i), time.Hour+time.Duration(i)*time.Second, producer("v", &calls))
		require.NoError(t, err)
	}

	// Never expiring fragment is evicted last.
	_, err := m.Remember(ctx, "forever", 0, producer("v", &calls))
	require.NoError(t, err)
}

func TestMemory_EvictHeapInUse(t *testing.T) {
	st := &stats.TrackerMock{}
	m := partialcache.NewMemory(partialcache.MemoryConfig{
		HeapInUseSoftLimit: 1, // Setting heap threshold to 1B to force eviction.
		Stats:              st,
	})
	ctx := context.Background()

	fillMemory(t, m)

	// Keys 0-99 should be evicted by 0.1 fraction, keys 100-999 should remain.
	assert.Equal(t, 100, m.EvictHeapInUse(ctx))
	assert.Equal(t, 901, m.Len())
	assert.Equal(t, 100, st.Int(partialcache.MetricEvict))

	for i := 0; i < 1000; i++ {
		calls := 0

		_, err := m.Remember(ctx, strconv.Itoa(i), time.Hour, producer("v", &calls))
		require.NoError(t, err)

		if i < 100 {
			assert.Equal(t, 1, calls, i)
		} else {
			assert.Equal(t, 0, calls, i)
		}
	}
}

func TestMemory_EvictHeapInUse_disabled(t *testing.T) {
	m := partialcache.NewMemory(partialcache.MemoryConfig{
		HeapInUseSoftLimit: 0, // Setting heap threshold to 0 to disable eviction.
	})

	fillMemory(t, m)

	assert.Equal(t, 0, m.EvictHeapInUse(context.Background()))
	assert.Equal(t, 1001, m.Len())
}

func TestMemory_EvictHeapInUse_skipped(t *testing.T) {
	m := partialcache.NewMemory(partialcache.MemoryConfig{
		HeapInUseSoftLimit: 1e10, // Setting heap threshold to big value to skip eviction.
	})

	fillMemory(t, m)

	assert.Equal(t, 0, m.EvictHeapInUse(context.Background()))
	assert.Equal(t, 1001, m.Len())
}

func TestMemory_EvictHeapInUse_concurrency(t *testing.T) {
	m := partialcache.NewMemory(partialcache.MemoryConfig{
		HeapInUseSoftLimit: 1, // Setting heap threshold to 1B value to force eviction.
	})

	ctx := context.Background()
	wg := sync.WaitGroup{}
	wg.Add(1000)

	for i := 0; i < 1000; i++ {
		i := i

		go func() {
			defer wg.Done()

			if i%100 == 0 {
				m.EvictHeapInUse(ctx)
			}

			k := strconv.Itoa(i % 100)

			_, err := m.Remember(ctx, k, time.Minute, func(ctx context.Context) (string, error) {
				return k, nil
			})
			assert.NoError(t, err)
		}()
	}

	wg.Wait()
}
