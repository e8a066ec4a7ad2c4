package partialcache

import (
	"context"
	"errors"
	"time"

	"github.com/bool64/cache"
	"github.com/bool64/ctxd"
	"github.com/bool64/stats"
)

// FailoverConfig is optional configuration for NewFailover.
type FailoverConfig struct {
	// Name is added to logs and stats.
	Name string

	// Backend is a cache instance, sharded map created by default.
	Backend cache.ReadWriter

	// Logger collects messages with context.
	Logger ctxd.Logger

	// Stats tracks stats.
	Stats stats.Tracker
}

var _ Store = &Failover{}

// Failover is a fragment store that builds each key at most once at a time.
//
// Concurrent misses of the same key wait for a single render.
// Expired fragment is served while it is being re-rendered.
// Please use NewFailover to create instance.
type Failover struct {
	backend  cache.ReadWriter
	failover *cache.Failover
	config   FailoverConfig
	log      ctxd.Logger
}

// NewFailover creates a Failover store instance.
func NewFailover(config FailoverConfig) *Failover {
	if config.Backend == nil {
		config.Backend = cache.NewShardedMap()
	}

	if config.Logger == nil {
		config.Logger = ctxd.NoOpLogger{}
	}

	if config.Stats == nil {
		config.Stats = stats.NoOp{}
	}

	return &Failover{
		backend: config.Backend,
		failover: cache.NewFailover(cache.FailoverConfig{
			Name:    config.Name,
			Backend: config.Backend,
			Logger:  config.Logger,
			Stats:   config.Stats,

			// Render errors are not cached, failed fragment is rendered again on next call.
			FailedUpdateTTL: -1,
		}.Use),
		config: config,
		log:    config.Logger,
	}
}

// Remember returns cached fragment or stores produced one.
//
// Zero ttl stores fragment with backend default time to live.
func (f *Failover) Remember(ctx context.Context, key string, ttl time.Duration, produce Producer) (string, error) {
	v, err := f.failover.Get(cache.WithTTL(ctx, ttl, false), []byte(key), func(ctx context.Context) (interface{}, error) {
		return produce(ctx)
	})
	if err != nil {
		return "", err
	}

	s, ok := v.(string)
	if !ok {
		return "", ctxd.WrapError(ctx, ErrUnexpectedValue, "failed to read fragment", "key", key)
	}

	return s, nil
}

// Forget deletes cached fragment.
func (f *Failover) Forget(ctx context.Context, key string) error {
	deleter, ok := f.backend.(cache.Deleter)
	if !ok {
		return ctxd.WrapError(ctx, errors.New("backend does not support deletion"), "failed to forget fragment",
			"name", f.config.Name, "key", key)
	}

	err := deleter.Delete(ctx, []byte(key))
	if err != nil && !errors.Is(err, cache.ErrNotFound) {
		return err
	}

	f.log.Debug(ctx, "deleted cache entry", "name", f.config.Name, "key", key)

	return nil
}

// ForgetAll deletes all cached fragments.
func (f *Failover) ForgetAll(ctx context.Context) error {
	deleter, ok := f.backend.(interface{ DeleteAll(ctx context.Context) })
	if !ok {
		return ctxd.WrapError(ctx, errors.New("backend does not support deletion"), "failed to forget fragments",
			"name", f.config.Name)
	}

	deleter.DeleteAll(ctx)

	f.log.Important(ctx, "deleted all entries in cache", "name", f.config.Name)

	return nil
}
