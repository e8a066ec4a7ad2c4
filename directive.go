package partialcache

import (
	"context"
	"time"

	"github.com/bool64/ctxd"
	"github.com/bool64/stats"
)

// Option configures a single render call.
type Option func(inv *invocation)

// WithMergeData adds bindings that are overridden by render data.
func WithMergeData(mergeData map[string]interface{}) Option {
	return func(inv *invocation) {
		inv.mergeData = mergeData
	}
}

// WithVariation sets cache variation, empty variation is ignored.
func WithVariation(variation string) Option {
	return func(inv *invocation) {
		inv.variation = variation
	}
}

// WithTTL sets fragment time to live, zero value is passed to the store as is.
func WithTTL(ttl time.Duration) Option {
	return func(inv *invocation) {
		inv.ttl = ttl
		inv.ttlSet = true
	}
}

type invocation struct {
	view      string
	data      map[string]interface{}
	mergeData map[string]interface{}
	variation string
	ttl       time.Duration
	ttlSet    bool
}

// Directive renders cached view fragments.
//
// Please use New to create instance.
type Directive struct {
	store     Store
	views     Renderer
	config    Config
	namespace string
	log       ctxd.Logger
	stat      stats.Tracker
}

// New creates a Directive instance.
//
// Configuration is read once, namespace prefix is kept for the lifetime of instance.
func New(store Store, views Renderer, config Config) *Directive {
	if store == nil {
		store = NoOp{}
	}

	config = config.withDefaults()

	return &Directive{
		store:     store,
		views:     views,
		config:    config,
		namespace: config.Key,
		log:       config.Logger,
		stat:      config.Stats,
	}
}

// Config returns effective configuration.
func (d *Directive) Config() Config {
	return d.config
}

// Key returns cache key of a fragment.
//
// Without variation the key is the view name, so that fragment can be forgotten by raw view name.
func (d *Directive) Key(view, variation string) string {
	if variation == "" {
		return view
	}

	return d.namespace + "." + view + "-" + variation
}

// TTL resolves time to live of a fragment.
func (d *Directive) TTL(options ...Option) time.Duration {
	return d.ttl(d.invocation("", nil, options))
}

func (d *Directive) ttl(inv invocation) time.Duration {
	if inv.ttlSet {
		return inv.ttl
	}

	return d.config.defaultTTL()
}

func (d *Directive) invocation(view string, data map[string]interface{}, options []Option) invocation {
	inv := invocation{view: view, data: data}

	for _, option := range options {
		if option != nil {
			option(&inv)
		}
	}

	return inv
}

// Render returns cached fragment or renders and stores it.
func (d *Directive) Render(ctx context.Context, view string, data map[string]interface{}, options ...Option) (string, error) {
	return d.render(ctx, d.invocation(view, data, options))
}

// RenderIf renders fragment if view exists, empty string is returned otherwise.
func (d *Directive) RenderIf(ctx context.Context, view string, data map[string]interface{}, options ...Option) (string, error) {
	return d.renderIf(ctx, d.invocation(view, data, options))
}

// RenderWhen renders fragment if condition is true, empty string is returned otherwise.
func (d *Directive) RenderWhen(
	ctx context.Context,
	condition bool,
	view string,
	data map[string]interface{},
	options ...Option,
) (string, error) {
	return d.renderWhen(ctx, condition, d.invocation(view, data, options))
}

// Forget deletes cached fragment.
func (d *Directive) Forget(ctx context.Context, view, variation string) error {
	key := d.Key(view, variation)

	if err := d.store.Forget(ctx, key); err != nil {
		return ctxd.WrapError(ctx, err, "failed to forget fragment", "name", d.config.Name, "key", key)
	}

	d.log.Debug(ctx, "forgot fragment", "name", d.config.Name, "key", key)
	d.stat.Add(ctx, MetricForget, 1, "name", d.config.Name)

	return nil
}

// Forgetter returns a callback to forget fragment, suitable for Invalidator.
func (d *Directive) Forgetter(view, variation string) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return d.Forget(ctx, view, variation)
	}
}

func (d *Directive) renderIf(ctx context.Context, inv invocation) (string, error) {
	if !d.views.Exists(inv.view) {
		d.log.Debug(ctx, "skipping missing fragment view", "name", d.config.Name, "view", inv.view)
		d.stat.Add(ctx, MetricSkip, 1, "name", d.config.Name)

		return "", nil
	}

	return d.render(ctx, inv)
}

func (d *Directive) renderWhen(ctx context.Context, condition bool, inv invocation) (string, error) {
	if !condition {
		d.stat.Add(ctx, MetricSkip, 1, "name", d.config.Name)

		return "", nil
	}

	return d.render(ctx, inv)
}

func (d *Directive) render(ctx context.Context, inv invocation) (string, error) {
	d.stat.Add(ctx, MetricRender, 1, "name", d.config.Name)

	if !d.config.IsEnabled() || Bypass(ctx) {
		d.stat.Add(ctx, MetricBypass, 1, "name", d.config.Name)

		return d.views.Render(ctx, inv.view, inv.data, inv.mergeData)
	}

	key := d.Key(inv.view, inv.variation)
	ttl := d.ttl(inv)

	if Refresh(ctx) {
		if err := d.store.Forget(ctx, key); err != nil {
			return "", ctxd.WrapError(ctx, err, "failed to refresh fragment", "name", d.config.Name, "key", key)
		}
	}

	return d.store.Remember(ctx, key, ttl, func(ctx context.Context) (string, error) {
		d.log.Debug(ctx, "rendering fragment",
			"name", d.config.Name,
			"view", inv.view,
			"key", key,
			"ttl", ttl.String())
		d.stat.Add(ctx, MetricMiss, 1, "name", d.config.Name)

		return d.views.Render(ctx, inv.view, inv.data, inv.mergeData)
	})
}
