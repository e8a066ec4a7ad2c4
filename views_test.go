package partialcache_test

import (
	"context"
	"errors"
	"html/template"
	"sync/atomic"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vearutop/partialcache"
)

func viewsFS() fstest.MapFS {
	return fstest.MapFS{
		"page.html":          {Data: []byte(`<main>@cache('partials.nav', {"title": "Menu"}, .Locale)</main>`)},
		"partials/nav.html":  {Data: []byte(`<nav>{{ .title }} {{ .Locale }} {{ counter }}</nav>`)},
		"keys.html":          {Data: []byte(`@cache('partials.keys', {"a": 1}, {"b": 2})`)},
		"partials/keys.html": {Data: []byte(`{{ range $k, $v := .__data }}{{ $k }}={{ $v }};{{ end }}{{ .__path }}`)},
		"list.html":          {Data: []byte(`{{ range .Items }}@cacheIf('partials.item', {}, .){{ end }}@cacheIf('partials.missing')`)},
		"partials/item.html": {Data: []byte(`<li>{{ counter }}</li>`)},
		"when.html":          {Data: []byte(`@cacheWhen(.LoggedIn, 'partials.user', 0)`)},
		"partials/user.html": {Data: []byte(`<u>{{ .Name }}</u>`)},
		"plain.html":         {Data: []byte(`v1`)},
	}
}

func newViews(t *testing.T, fsys fstest.MapFS, cfg partialcache.Config) (*partialcache.Views, *partialcache.Memory) {
	t.Helper()

	var cnt int64

	views := partialcache.NewViews(fsys, func(cfg *partialcache.ViewsConfig) {
		cfg.Funcs = template.FuncMap{
			"counter": func() int64 {
				return atomic.AddInt64(&cnt, 1)
			},
		}
	})
	mem := partialcache.NewMemory()
	views.Attach(partialcache.New(mem, views, cfg))

	return views, mem
}

func TestViews_Render_cached(t *testing.T) {
	views, mem := newViews(t, viewsFS(), partialcache.Config{Key: "test"})
	ctx := context.Background()

	out, err := views.Render(ctx, "page", map[string]interface{}{"Locale": "en"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "<main><nav>Menu en 1</nav></main>", out)

	out, err = views.Render(ctx, "page", map[string]interface{}{"Locale": "en"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "<main><nav>Menu en 1</nav></main>", out)

	out, err = views.Render(ctx, "page", map[string]interface{}{"Locale": "de"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "<main><nav>Menu de 2</nav></main>", out)

	assert.Equal(t, 2, mem.Len())
}

func TestViews_Render_disabled(t *testing.T) {
	views, mem := newViews(t, viewsFS(), partialcache.Config{Enabled: partialcache.Enable(false)})
	ctx := context.Background()

	out, err := views.Render(ctx, "page", map[string]interface{}{"Locale": "en"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "<main><nav>Menu en 1</nav></main>", out)

	out, err = views.Render(ctx, "page", map[string]interface{}{"Locale": "en"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "<main><nav>Menu en 2</nav></main>", out)

	assert.Equal(t, 0, mem.Len())
}

func TestViews_Render_ambientBindings(t *testing.T) {
	views, _ := newViews(t, viewsFS(), partialcache.Config{})

	out, err := views.Render(context.Background(), "keys", map[string]interface{}{"x": 1}, nil)
	require.NoError(t, err)
	assert.Equal(t, "a=1;b=2;x=1;partials/keys.html", out)
}

func TestViews_Render_range(t *testing.T) {
	views, mem := newViews(t, viewsFS(), partialcache.Config{})

	out, err := views.Render(context.Background(), "list",
		map[string]interface{}{"Items": []string{"a", "b", "a"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "<li>1</li><li>2</li><li>1</li>", out)
	assert.Equal(t, 2, mem.Len())
}

func TestViews_Render_when(t *testing.T) {
	views, _ := newViews(t, viewsFS(), partialcache.Config{})
	ctx := context.Background()

	out, err := views.Render(ctx, "when", map[string]interface{}{"LoggedIn": false, "Name": "Bob"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "", out)

	out, err = views.Render(ctx, "when", map[string]interface{}{"LoggedIn": true, "Name": "Bob"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "<u>Bob</u>", out)

	// Fragment is cached regardless of bindings.
	out, err = views.Render(ctx, "when", map[string]interface{}{"LoggedIn": true, "Name": "Alice"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "<u>Bob</u>", out)
}

func TestViews_Render_syntaxError(t *testing.T) {
	fsys := viewsFS()
	fsys["broken.html"] = &fstest.MapFile{Data: []byte(`<p>@cache(partials.nav)</p>`)}

	views, mem := newViews(t, fsys, partialcache.Config{})
	ctx := context.Background()

	_, err := views.Render(ctx, "broken", nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, partialcache.ErrSyntax))
	assert.Equal(t, 0, mem.Len())

	err = views.Compile(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, partialcache.ErrSyntax))
	assert.Contains(t, err.Error(), "compile view broken")
}

func TestViews_Render_ttlOverflow(t *testing.T) {
	fsys := viewsFS()
	fsys["huge.html"] = &fstest.MapFile{Data: []byte(`@cache('partials.nav', 10000000000)`)}

	views, mem := newViews(t, fsys, partialcache.Config{})

	_, err := views.Render(context.Background(), "huge", nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, partialcache.ErrSyntax))
	assert.Contains(t, err.Error(), "invalid ttl 10000000000")
	assert.Equal(t, 0, mem.Len())
}

func TestViews_Compile(t *testing.T) {
	views, _ := newViews(t, viewsFS(), partialcache.Config{})

	require.NoError(t, views.Compile(context.Background()))
}

func TestViews_Exists(t *testing.T) {
	views, _ := newViews(t, viewsFS(), partialcache.Config{})

	assert.True(t, views.Exists("partials.nav"))
	assert.True(t, views.Exists("partials/nav.html"))
	assert.False(t, views.Exists("partials.none"))
	assert.False(t, views.Exists("partials"))
	assert.Equal(t, "partials/nav.html", views.Path("partials.nav"))
}

func TestViews_Render_reload(t *testing.T) {
	ctx := context.Background()

	for _, reload := range []bool{false, true} {
		fsys := viewsFS()
		views := partialcache.NewViews(fsys, func(cfg *partialcache.ViewsConfig) {
			cfg.Reload = reload
		})

		out, err := views.Render(ctx, "plain", nil, nil)
		require.NoError(t, err)
		assert.Equal(t, "v1", out)

		fsys["plain.html"] = &fstest.MapFile{Data: []byte(`v2`)}

		out, err = views.Render(ctx, "plain", nil, nil)
		require.NoError(t, err)

		if reload {
			assert.Equal(t, "v2", out)
		} else {
			assert.Equal(t, "v1", out)
		}
	}
}

func TestViews_Render_data(t *testing.T) {
	fsys := fstest.MapFS{
		"v.html": {Data: []byte(`{{ .a }} {{ .b }}`)},
	}
	views := partialcache.NewViews(fsys)

	out, err := views.Render(context.Background(), "v",
		map[string]interface{}{"a": "data"},
		map[string]interface{}{"a": "merge", "b": "merge"},
	)
	require.NoError(t, err)
	assert.Equal(t, "data merge", out)

	_, err = views.Render(context.Background(), "missing", nil, nil)
	assert.Error(t, err)
}
