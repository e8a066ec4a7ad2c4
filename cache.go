package partialcache

import (
	"context"
	"time"
)

// Producer renders a fragment on cache miss.
type Producer func(ctx context.Context) (string, error)

// Store keeps rendered fragments.
type Store interface {
	// Remember returns cached value or stores and returns the result of produce.
	//
	// Zero ttl is passed to the store as is, its meaning is defined by the implementation.
	Remember(ctx context.Context, key string, ttl time.Duration, produce Producer) (string, error)

	// Forget deletes cached value, missing key is not an error.
	Forget(ctx context.Context, key string) error
}

// Renderer renders named views.
type Renderer interface {
	// Exists checks if named view is available.
	Exists(name string) bool

	// Render renders named view with data, data takes precedence over mergeData.
	Render(ctx context.Context, name string, data, mergeData map[string]interface{}) (string, error)
}

// Metric names.
const (
	MetricRender = "partialcache_render"
	MetricMiss   = "partialcache_miss"
	MetricBypass = "partialcache_bypass"
	MetricSkip   = "partialcache_skip"
	MetricForget = "partialcache_forget"
	MetricHit    = "partialcache_store_hit"
	MetricWrite  = "partialcache_store_write"
	MetricItems  = "partialcache_store_items"
	MetricEvict  = "partialcache_store_evict"

	MetricStatsError = "partialcache_stats_error"
)
