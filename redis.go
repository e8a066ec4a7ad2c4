package partialcache

import (
	"context"
	"errors"
	"time"

	"github.com/bool64/ctxd"
	"github.com/bool64/stats"
	"github.com/redis/go-redis/v9"
)

// RedisConfig controls Redis store instance.
type RedisConfig struct {
	// Name is added to logs and stats.
	Name string

	// Prefix is prepended to all keys.
	Prefix string

	// WriteTimeout limits writing of rendered fragment, default 5s.
	// Write is not aborted when request context is cancelled after render.
	WriteTimeout time.Duration

	// Logger collects messages with context.
	Logger ctxd.Logger

	// Stats tracks stats.
	Stats stats.Tracker
}

var _ Store = &Redis{}

// Redis is a fragment store shared between processes.
type Redis struct {
	client redis.Cmdable
	config RedisConfig
	log    ctxd.Logger
	stat   stats.Tracker
}

// NewRedis creates a Redis store with an existing client.
func NewRedis(client redis.Cmdable, config RedisConfig) *Redis {
	if config.Logger == nil {
		config.Logger = ctxd.NoOpLogger{}
	}

	if config.Stats == nil {
		config.Stats = stats.NoOp{}
	}

	if config.WriteTimeout == 0 {
		config.WriteTimeout = 5 * time.Second
	}

	return &Redis{
		client: client,
		config: config,
		log:    config.Logger,
		stat:   config.Stats,
	}
}

func (r *Redis) key(k string) string {
	return r.config.Prefix + k
}

// Remember returns cached fragment or stores produced one.
//
// Zero ttl stores fragment without expiration.
func (r *Redis) Remember(ctx context.Context, key string, ttl time.Duration, produce Producer) (string, error) {
	val, err := r.client.Get(ctx, r.key(key)).Result()
	if err == nil {
		r.stat.Add(ctx, MetricHit, 1, "name", r.config.Name)

		return val, nil
	}

	if !errors.Is(err, redis.Nil) {
		return "", ctxd.WrapError(ctx, err, "failed to read fragment", "key", key)
	}

	val, err = produce(ctx)
	if err != nil {
		return "", err
	}

	wctx, cancel := detach(ctx, r.config.WriteTimeout)
	defer cancel()

	if err := r.client.Set(wctx, r.key(key), val, ttl).Err(); err != nil {
		return "", ctxd.WrapError(ctx, err, "failed to write fragment", "key", key)
	}

	r.log.Debug(ctx, "wrote to cache", "name", r.config.Name, "key", key, "ttl", ttl.String())
	r.stat.Add(ctx, MetricWrite, 1, "name", r.config.Name)

	return val, nil
}

// Forget deletes cached fragment.
func (r *Redis) Forget(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return ctxd.WrapError(ctx, err, "failed to delete fragment", "key", key)
	}

	return nil
}
