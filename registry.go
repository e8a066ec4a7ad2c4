package partialcache

import (
	"sort"
	"strings"
	"sync"
)

// Hook expands raw directive expression into template source.
type Hook func(expression string) (string, error)

// Registry maps directive syntax names to hooks.
type Registry struct {
	mu    sync.RWMutex
	hooks map[string]Hook
}

// NewRegistry creates an empty directive registry.
func NewRegistry() *Registry {
	return &Registry{hooks: make(map[string]Hook)}
}

// Register adds hook by syntax name, nil hook removes it.
func (r *Registry) Register(name string, hook Hook) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if hook == nil {
		delete(r.hooks, name)

		return
	}

	r.hooks[name] = hook
}

// Hook returns registered hook.
func (r *Registry) Hook(name string) (Hook, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.hooks[name]

	return h, ok
}

// Names returns sorted names of registered directives.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.hooks))
	for name := range r.hooks {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// Expand replaces every @name(expression) of registered directives with generated template source.
//
// Unknown directives and @name without parentheses are left untouched.
func (r *Registry) Expand(src string) (string, error) {
	var (
		out  strings.Builder
		last int
	)

	for i := 0; i < len(src); i++ {
		if src[i] != '@' {
			continue
		}

		nameEnd := i + 1
		for nameEnd < len(src) && isIdentByte(src[nameEnd]) {
			nameEnd++
		}

		if nameEnd == i+1 || nameEnd >= len(src) || src[nameEnd] != '(' {
			continue
		}

		name := src[i+1 : nameEnd]

		hook, ok := r.Hook(name)
		if !ok {
			continue
		}

		closing, found := matchingParenthesis(src, nameEnd)
		if !found {
			return "", syntaxError(name, src[nameEnd+1:], "unterminated directive")
		}

		generated, err := hook(src[nameEnd+1 : closing])
		if err != nil {
			return "", err
		}

		out.WriteString(src[last:i])
		out.WriteString(generated)

		last = closing + 1
		i = closing
	}

	out.WriteString(src[last:])

	return out.String(), nil
}

func isIdentByte(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

// matchingParenthesis finds closing parenthesis for the one at position open, quoted strings are skipped.
func matchingParenthesis(src string, open int) (int, bool) {
	depth := 0

	var quote byte

	for i := open; i < len(src); i++ {
		c := src[i]

		if quote != 0 {
			switch c {
			case '\\':
				i++
			case quote:
				quote = 0
			}

			continue
		}

		switch c {
		case '\'', '"', '`':
			quote = c
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}

	return 0, false
}
