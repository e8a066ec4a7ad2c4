package partialcache

import (
	"context"
	"math"
	"runtime"
	"sort"
)

// EvictHeapInUse drops a fraction of fragments with nearest expiration if heap in use exceeds soft limit.
//
// Number of evicted fragments is returned.
func (c *Memory) EvictHeapInUse(ctx context.Context) int {
	if c.config.HeapInUseSoftLimit == 0 {
		return 0
	}

	runtime.GC()

	m := runtime.MemStats{}
	runtime.ReadMemStats(&m)

	if m.HeapInuse < c.config.HeapInUseSoftLimit {
		return 0
	}

	type entry struct {
		key      string
		expireAt int64
	}

	items := c.data.Items()
	entries := make([]entry, 0, len(items))

	// Collect all keys and expirations.
	for k, i := range items {
		exp := i.Expiration
		if exp == 0 {
			exp = math.MaxInt64
		}

		entries = append(entries, entry{key: k, expireAt: exp})
	}

	// Sort entries to put most expired in head.
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].expireAt < entries[j].expireAt
	})

	evictFraction := c.config.HeapInUseEvictFraction
	if evictFraction == 0 {
		evictFraction = 0.1
	}

	evictItems := int(float64(len(entries)) * evictFraction)

	for i := 0; i < evictItems; i++ {
		c.data.Delete(entries[i].key)
	}

	if c.log != nil {
		c.log.Important(ctx, "evicted fragments on heap overuse",
			"name", c.config.Name,
			"count", evictItems,
			"heapInUse", m.HeapInuse)
	}

	if c.stat != nil {
		c.stat.Add(ctx, MetricEvict, float64(evictItems), "name", c.config.Name)
		c.stat.Set(ctx, MetricItems, float64(c.data.ItemCount()), "name", c.config.Name)
	}

	return evictItems
}
