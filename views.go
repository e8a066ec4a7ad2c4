package partialcache

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"strings"
	"sync"

	"github.com/bool64/ctxd"
	"github.com/cespare/xxhash/v2"
	"github.com/puzpuzpuz/xsync"
)

// ViewsConfig is optional configuration for NewViews.
type ViewsConfig struct {
	// Name is added to logs.
	Name string

	// Extension is a file name suffix of views, default ".html".
	Extension string

	// Funcs are added to every view.
	Funcs template.FuncMap

	// Reload enables reading view source on every render, view is recompiled if source changed.
	Reload bool

	// Logger collects messages with context.
	Logger ctxd.Logger
}

var _ Renderer = &Views{}

// Views renders html/template views from a file system.
//
// View names use dots as path separators, "partials.nav" refers to "partials/nav.html".
// Please use NewViews to create instance.
type Views struct {
	fsys   fs.FS
	config ViewsConfig
	log    ctxd.Logger

	mu       sync.RWMutex
	compiled *xsync.Map
	registry *Registry
	runtime  func(ctx context.Context) template.FuncMap
}

type compiledView struct {
	tmpl *template.Template
	hash uint64
}

// NewViews creates a view set with optional configuration.
func NewViews(fsys fs.FS, options ...func(cfg *ViewsConfig)) *Views {
	cfg := ViewsConfig{}
	for _, option := range options {
		option(&cfg)
	}

	if cfg.Extension == "" {
		cfg.Extension = ".html"
	}

	if cfg.Name == "" {
		cfg.Name = "views"
	}

	if cfg.Logger == nil {
		cfg.Logger = ctxd.NoOpLogger{}
	}

	return &Views{
		fsys:     fsys,
		config:   cfg,
		log:      cfg.Logger,
		compiled: xsync.NewMap(),
	}
}

// Attach enables directive in views, previously compiled views are discarded.
func (v *Views) Attach(d *Directive) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.registry = d.Registry()
	v.runtime = d.FuncMap
	v.compiled = xsync.NewMap()
}

// Path returns file name of a view.
func (v *Views) Path(name string) string {
	if strings.HasSuffix(name, v.config.Extension) {
		return name
	}

	return strings.ReplaceAll(name, ".", "/") + v.config.Extension
}

// Exists checks if view file is available.
func (v *Views) Exists(name string) bool {
	st, err := fs.Stat(v.fsys, v.Path(name))

	return err == nil && !st.IsDir()
}

// Render renders view, data takes precedence over mergeData.
//
// Bindings are also available as __data and view file name as __path.
func (v *Views) Render(ctx context.Context, name string, data, mergeData map[string]interface{}) (string, error) {
	tmpl, err := v.template(ctx, name)
	if err != nil {
		return "", err
	}

	payload := make(map[string]interface{}, len(data)+len(mergeData)+2)

	for k, val := range mergeData {
		payload[k] = val
	}

	for k, val := range data {
		payload[k] = val
	}

	ambient := make(map[string]interface{}, len(payload))
	for k, val := range payload {
		ambient[k] = val
	}

	payload[AmbientData] = ambient
	payload[AmbientPath] = v.Path(name)

	// Compiled view is never executed, so that it can be cloned with functions bound to context.
	tmpl, err = tmpl.Clone()
	if err != nil {
		return "", fmt.Errorf("clone view %s: %w", name, err)
	}

	v.mu.RLock()
	runtime := v.runtime
	v.mu.RUnlock()

	if runtime != nil {
		tmpl.Funcs(runtime(ctx))
	}

	var out strings.Builder

	if err := tmpl.Execute(&out, payload); err != nil {
		return "", fmt.Errorf("render view %s: %w", name, err)
	}

	return out.String(), nil
}

// Compile compiles all views found in file system, errors of all failed views are returned.
func (v *Views) Compile(ctx context.Context) error {
	var errs []error

	err := fs.WalkDir(v.fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() || !strings.HasSuffix(path, v.config.Extension) {
			return nil
		}

		name := strings.ReplaceAll(strings.TrimSuffix(path, v.config.Extension), "/", ".")

		if _, err := v.template(ctx, name); err != nil {
			errs = append(errs, err)
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("walk views: %w", err)
	}

	return errors.Join(errs...)
}

func (v *Views) template(ctx context.Context, name string) (*template.Template, error) {
	v.mu.RLock()
	compiled, registry, runtime := v.compiled, v.registry, v.runtime
	v.mu.RUnlock()

	cv, found := compiled.Load(name)
	if found && !v.config.Reload {
		return cv.(*compiledView).tmpl, nil
	}

	src, err := fs.ReadFile(v.fsys, v.Path(name))
	if err != nil {
		return nil, fmt.Errorf("read view %s: %w", name, err)
	}

	hash := xxhash.Sum64(src)
	if found && cv.(*compiledView).hash == hash {
		return cv.(*compiledView).tmpl, nil
	}

	source := string(src)

	if registry != nil {
		if source, err = registry.Expand(source); err != nil {
			return nil, fmt.Errorf("compile view %s: %w", name, err)
		}
	}

	tmpl := template.New(name).Funcs(v.config.Funcs)
	if runtime != nil {
		tmpl = tmpl.Funcs(runtime(context.Background()))
	}

	if tmpl, err = tmpl.Parse(source); err != nil {
		return nil, fmt.Errorf("compile view %s: %w", name, err)
	}

	compiled.Store(name, &compiledView{tmpl: tmpl, hash: hash})

	v.log.Debug(ctx, "compiled view", "name", v.config.Name, "view", name, "hash", hash)

	return tmpl, nil
}
