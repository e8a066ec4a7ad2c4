package partialcache

import (
	"context"
	"time"

	"github.com/bool64/ctxd"
	"github.com/bool64/stats"
	gocache "github.com/patrickmn/go-cache"
)

// MemoryConfig controls in-memory store instance.
type MemoryConfig struct {
	// Logger is an instance of contextualized logger, can be nil.
	Logger ctxd.Logger

	// Stats is metrics collector, can be nil.
	Stats stats.Tracker

	// Name is store instance name, used in stats and logging.
	Name string

	// DefaultExpiration is used for zero ttl, default is no expiration.
	DefaultExpiration time.Duration

	// CleanupInterval is delay between two consecutive removals of expired entries, default 10m.
	CleanupInterval time.Duration

	// HeapInUseSoftLimit sets heap in use threshold (bytes) for EvictHeapInUse, 0 disables eviction.
	HeapInUseSoftLimit uint64

	// HeapInUseEvictFraction is a fraction (0, 1] of fragments to evict on heap overuse, default 0.1.
	HeapInUseEvictFraction float64
}

var _ Store = &Memory{}

// Memory is an in-memory fragment store.
type Memory struct {
	data   *gocache.Cache
	config MemoryConfig
	log    ctxd.Logger
	stat   stats.Tracker
}

// NewMemory creates an instance of in-memory store with optional configuration.
func NewMemory(cfg ...MemoryConfig) *Memory {
	config := MemoryConfig{}

	if len(cfg) >= 1 {
		config = cfg[0]
	}

	if config.DefaultExpiration == 0 {
		config.DefaultExpiration = gocache.NoExpiration
	}

	if config.CleanupInterval == 0 {
		config.CleanupInterval = 10 * time.Minute
	}

	return &Memory{
		data:   gocache.New(config.DefaultExpiration, config.CleanupInterval),
		config: config,
		log:    config.Logger,
		stat:   config.Stats,
	}
}

// Remember returns cached fragment or stores produced one.
func (c *Memory) Remember(ctx context.Context, key string, ttl time.Duration, produce Producer) (string, error) {
	if v, found := c.data.Get(key); found {
		if c.log != nil {
			c.log.Debug(ctx, "cache hit",
				"name", c.config.Name,
				"key", key)
		}

		if c.stat != nil {
			c.stat.Add(ctx, MetricHit, 1, "name", c.config.Name)
		}

		s, ok := v.(string)
		if !ok {
			return "", ctxd.WrapError(ctx, ErrUnexpectedValue, "failed to read fragment", "key", key)
		}

		return s, nil
	}

	s, err := produce(ctx)
	if err != nil {
		return "", err
	}

	c.data.Set(key, s, ttl)

	if c.log != nil {
		c.log.Debug(ctx, "wrote to cache", "name", c.config.Name, "key", key, "ttl", ttl.String())
	}

	if c.stat != nil {
		c.stat.Add(ctx, MetricWrite, 1, "name", c.config.Name)
		c.stat.Set(ctx, MetricItems, float64(c.data.ItemCount()), "name", c.config.Name)
	}

	return s, nil
}

// Forget deletes cached fragment.
func (c *Memory) Forget(ctx context.Context, key string) error {
	c.data.Delete(key)

	if c.log != nil {
		c.log.Debug(ctx, "deleted cache entry", "name", c.config.Name, "key", key)
	}

	return nil
}

// ForgetAll deletes all fragments.
func (c *Memory) ForgetAll(ctx context.Context) error {
	cnt := c.data.ItemCount()
	c.data.Flush()

	if c.log != nil {
		c.log.Important(ctx, "deleted all entries in cache",
			"name", c.config.Name,
			"count", cnt,
		)
	}

	if c.stat != nil {
		c.stat.Set(ctx, MetricItems, 0, "name", c.config.Name)
	}

	return nil
}

// Len returns number of fragments in store, expired but not yet cleaned up are included.
func (c *Memory) Len() int {
	return c.data.ItemCount()
}
