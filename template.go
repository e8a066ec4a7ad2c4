package partialcache

import (
	"context"
	"fmt"
	"html/template"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Names of template functions called from generated source.
const (
	FuncRender     = "partialcache"
	FuncRenderIf   = "partialcacheIf"
	FuncRenderWhen = "partialcacheWhen"
)

// Ambient bindings that are not forwarded to fragments.
const (
	AmbientData = "__data"
	AmbientPath = "__path"
)

// Registry returns directive registry with render, If and When hooks.
func (d *Directive) Registry() *Registry {
	name := d.config.Directive
	r := NewRegistry()

	r.Register(name, func(expression string) (string, error) {
		e, err := ParseExpression(name, expression)
		if err != nil {
			return "", err
		}

		return generate(FuncRender, e), nil
	})

	r.Register(name+"If", func(expression string) (string, error) {
		e, err := ParseExpression(name+"If", expression)
		if err != nil {
			return "", err
		}

		return generate(FuncRenderIf, e), nil
	})

	r.Register(name+"When", func(expression string) (string, error) {
		e, err := ParseConditional(name+"When", expression)
		if err != nil {
			return "", err
		}

		return generate(FuncRenderWhen, e), nil
	})

	return r
}

// generate builds template action calling runtime function with root bindings.
func generate(fn string, e Expression) string {
	ttl := -1
	if e.HasTTL {
		ttl = e.TTL
	}

	var b strings.Builder

	b.WriteString("{{ ")
	b.WriteString(fn)

	if e.Condition != "" {
		b.WriteString(" (" + e.Condition + ")")
	}

	b.WriteString(" $ ")
	b.WriteString(strconv.Quote(e.View))
	b.WriteString(" ")
	b.WriteString(strconv.Quote(e.Data))
	b.WriteString(" ")
	b.WriteString(strconv.Quote(e.MergeData))
	b.WriteString(" ")
	b.WriteString(strconv.Itoa(ttl))

	if e.Variation != "" {
		b.WriteString(" (" + e.Variation + ")")
	}

	b.WriteString(" }}")

	return b.String()
}

// FuncMap returns template functions called by generated source.
func (d *Directive) FuncMap(ctx context.Context) template.FuncMap {
	return template.FuncMap{
		FuncRender: func(locals interface{}, view, data, mergeData string, ttl int, variation ...interface{}) (template.HTML, error) {
			inv, err := d.compiled(view, locals, data, mergeData, ttl, variation)
			if err != nil {
				return "", err
			}

			return asHTML(d.render(ctx, inv))
		},
		FuncRenderIf: func(locals interface{}, view, data, mergeData string, ttl int, variation ...interface{}) (template.HTML, error) {
			inv, err := d.compiled(view, locals, data, mergeData, ttl, variation)
			if err != nil {
				return "", err
			}

			return asHTML(d.renderIf(ctx, inv))
		},
		FuncRenderWhen: func(
			condition interface{},
			locals interface{},
			view, data, mergeData string,
			ttl int,
			variation ...interface{},
		) (template.HTML, error) {
			truth, _ := template.IsTrue(condition)
			if !truth {
				return asHTML(d.renderWhen(ctx, false, invocation{view: view}))
			}

			inv, err := d.compiled(view, locals, data, mergeData, ttl, variation)
			if err != nil {
				return "", err
			}

			return asHTML(d.renderWhen(ctx, true, inv))
		},
	}
}

func asHTML(out string, err error) (template.HTML, error) {
	return template.HTML(out), err // nolint:gosec // Fragment is rendered by a trusted view.
}

func (d *Directive) compiled(
	view string,
	locals interface{},
	data, mergeData string,
	ttl int,
	variation []interface{},
) (invocation, error) {
	inv := invocation{view: view}

	var err error

	if inv.data, err = decodeObject(data); err != nil {
		return inv, fmt.Errorf("fragment %s data: %w", view, err)
	}

	merge, err := decodeObject(mergeData)
	if err != nil {
		return inv, fmt.Errorf("fragment %s merge data: %w", view, err)
	}

	inv.mergeData = forwardLocals(locals)
	for k, v := range merge {
		inv.mergeData[k] = v
	}

	if ttl >= 0 {
		inv.ttl = time.Duration(ttl) * time.Second
		inv.ttlSet = true
	}

	if len(variation) > 0 && variation[0] != nil {
		inv.variation = fmt.Sprint(variation[0])
	}

	return inv, nil
}

// forwardLocals copies template bindings except ambient ones.
func forwardLocals(locals interface{}) map[string]interface{} {
	switch l := locals.(type) {
	case nil:
		return map[string]interface{}{}
	case map[string]interface{}:
		res := make(map[string]interface{}, len(l))

		for k, v := range l {
			if k == AmbientData || k == AmbientPath {
				continue
			}

			res[k] = v
		}

		return res
	default:
		return map[string]interface{}{"Locals": locals}
	}
}

func decodeObject(s string) (map[string]interface{}, error) {
	if s == "" {
		return nil, nil
	}

	if !gjson.Valid(s) {
		return nil, fmt.Errorf("%w: invalid JSON %s", ErrSyntax, s)
	}

	m, ok := gjson.Parse(s).Value().(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: JSON object expected, got %s", ErrSyntax, s)
	}

	return m, nil
}
