package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/bool64/ctxd"
	"github.com/bool64/stats"
	"github.com/redis/go-redis/v9"
	"github.com/vearutop/partialcache"
)

// app wires views, store and directive from settings.
type app struct {
	settings *Settings
	log      ctxd.Logger
	stats    stats.Tracker

	memory    *partialcache.Memory
	store     partialcache.Store
	views     *partialcache.Views
	directive *partialcache.Directive

	invalidator *partialcache.Invalidator
	closers     []func() error
}

func newApp(ctx context.Context, settings *Settings, logger ctxd.Logger, tracker stats.Tracker) (*app, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	if tracker == nil {
		tracker = stats.NoOp{}
	}

	a := &app{
		settings:    settings,
		log:         logger,
		stats:       tracker,
		invalidator: &partialcache.Invalidator{},
	}

	if err := a.setupStore(ctx); err != nil {
		return nil, err
	}

	a.views = partialcache.NewViews(os.DirFS(settings.Views), func(cfg *partialcache.ViewsConfig) {
		cfg.Extension = settings.Extension
		cfg.Reload = settings.Reload
		cfg.Logger = logger
	})

	cfg := settings.Cache
	cfg.Logger = logger
	cfg.Stats = tracker

	a.directive = partialcache.New(a.store, a.views, cfg)
	a.views.Attach(a.directive)

	return a, nil
}

func (a *app) setupStore(ctx context.Context) error {
	s := a.settings.Store

	switch s.Driver {
	case DriverMemory:
		a.memory = partialcache.NewMemory(partialcache.MemoryConfig{
			Name:               s.Name,
			Logger:             a.log,
			Stats:              a.stats,
			HeapInUseSoftLimit: s.HeapInUseSoftLimit,
		})
		a.store = a.memory
		a.invalidator.Callbacks = append(a.invalidator.Callbacks, a.memory.ForgetAll)

		return a.restore(ctx)
	case DriverFailover:
		f := partialcache.NewFailover(partialcache.FailoverConfig{
			Name:   s.Name,
			Logger: a.log,
			Stats:  a.stats,
		})
		a.store = f
		a.invalidator.Callbacks = append(a.invalidator.Callbacks, f.ForgetAll)
	case DriverRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     s.Redis.Addr,
			Password: s.Redis.Password,
			DB:       s.Redis.DB,
		})

		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()

			return fmt.Errorf("connect to redis %s: %w", s.Redis.Addr, err)
		}

		a.closers = append(a.closers, client.Close)
		a.store = partialcache.NewRedis(client, partialcache.RedisConfig{
			Name:   s.Name,
			Prefix: s.Redis.Prefix,
			Logger: a.log,
			Stats:  a.stats,
		})
	}

	return nil
}

func (a *app) restore(ctx context.Context) error {
	if a.settings.Dump == "" {
		return nil
	}

	f, err := os.Open(a.settings.Dump)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}

		return err
	}

	defer func() {
		if clErr := f.Close(); clErr != nil {
			a.log.Error(ctx, "failed to close dump file", "error", clErr)
		}
	}()

	n, err := a.memory.Restore(f)
	if err != nil {
		return fmt.Errorf("restore %s: %w", a.settings.Dump, err)
	}

	a.log.Important(ctx, "restored fragments", "file", a.settings.Dump, "count", n)

	return nil
}

func (a *app) dump(ctx context.Context) error {
	if a.settings.Dump == "" || a.memory == nil {
		return nil
	}

	f, err := os.Create(a.settings.Dump)
	if err != nil {
		return err
	}

	n, err := a.memory.Dump(f)
	if err != nil {
		_ = f.Close()

		return fmt.Errorf("dump %s: %w", a.settings.Dump, err)
	}

	a.log.Important(ctx, "dumped fragments", "file", a.settings.Dump, "count", n)

	return f.Close()
}

// Close saves memory dump and releases connections.
func (a *app) Close(ctx context.Context) error {
	errs := []error{a.dump(ctx)}

	for _, c := range a.closers {
		errs = append(errs, c())
	}

	return errors.Join(errs...)
}
