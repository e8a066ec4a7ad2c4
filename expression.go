package partialcache

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

var (
	viewNameRe = regexp.MustCompile(`^[A-Za-z0-9_./-]+$`)
	digitsRe   = regexp.MustCompile(`^[0-9]+$`)
)

// maxTTLSeconds is the largest TTL that fits in time.Duration.
const maxTTLSeconds = math.MaxInt64 / int64(time.Second)

// Expression is a parsed directive call.
type Expression struct {
	// Condition is a template pipeline, only used by When directive.
	Condition string

	// View is a name of nested view.
	View string

	// Data is a JSON object literal with bindings, may be empty.
	Data string

	// MergeData is a JSON object literal with bindings overridden by Data, may be empty.
	MergeData string

	// Variation is a template pipeline producing variation, may be empty.
	Variation string

	// TTL is time to live in seconds, only valid if HasTTL.
	TTL    int
	HasTTL bool
}

// ParseExpression parses arguments of cache and cacheIf directives.
//
// Expected shape is: 'view.name' [, {data}] [, {mergeData}] [, variation] [, ttl].
func ParseExpression(directive, expression string) (Expression, error) {
	args, err := splitArgs(directive, expression)
	if err != nil {
		return Expression{}, err
	}

	return parseArgs(directive, expression, args)
}

// ParseConditional parses arguments of cacheWhen directive.
//
// Expected shape is: condition, 'view.name' [, {data}] [, {mergeData}] [, variation] [, ttl].
func ParseConditional(directive, expression string) (Expression, error) {
	args, err := splitArgs(directive, expression)
	if err != nil {
		return Expression{}, err
	}

	if len(args) < 2 {
		return Expression{}, syntaxError(directive, expression, "condition and view name expected")
	}

	cond := args[0]
	if _, ok := unquote(cond); ok {
		return Expression{}, syntaxError(directive, expression, "condition expected before view name")
	}

	if hasDelimiters(cond) {
		return Expression{}, syntaxError(directive, expression, "template delimiters are not allowed")
	}

	e, err := parseArgs(directive, expression, args[1:])
	if err != nil {
		return Expression{}, err
	}

	e.Condition = cond

	return e, nil
}

func parseArgs(directive, expression string, args []string) (Expression, error) {
	e := Expression{}

	if len(args) == 0 {
		return e, syntaxError(directive, expression, "view name expected")
	}

	view, ok := unquote(args[0])
	if !ok || !viewNameRe.MatchString(view) {
		return e, syntaxError(directive, expression, "view name literal expected, got "+args[0])
	}

	e.View = view
	args = args[1:]

	for i, dst := range []*string{&e.Data, &e.MergeData} {
		if len(args) == 0 || !strings.HasPrefix(args[0], "{") {
			break
		}

		if !gjson.Valid(args[0]) || !gjson.Parse(args[0]).IsObject() {
			name := "data"
			if i == 1 {
				name = "merge data"
			}

			return e, syntaxError(directive, expression, "invalid "+name+" object literal "+args[0])
		}

		*dst = args[0]
		args = args[1:]
	}

	if len(args) > 0 && digitsRe.MatchString(args[len(args)-1]) {
		ttl, err := strconv.Atoi(args[len(args)-1])
		if err != nil || int64(ttl) > maxTTLSeconds {
			return e, syntaxError(directive, expression, "invalid ttl "+args[len(args)-1])
		}

		e.TTL = ttl
		e.HasTTL = true
		args = args[:len(args)-1]
	}

	switch len(args) {
	case 0:
	case 1:
		if strings.HasPrefix(args[0], "{") || strings.HasPrefix(args[0], "[") {
			return e, syntaxError(directive, expression, "unexpected literal "+args[0])
		}

		if hasDelimiters(args[0]) {
			return e, syntaxError(directive, expression, "template delimiters are not allowed")
		}

		e.Variation = args[0]
		if v, ok := unquote(args[0]); ok {
			e.Variation = strconv.Quote(v)
		}
	default:
		return e, syntaxError(directive, expression, "too many arguments")
	}

	return e, nil
}

// splitArgs splits expression by top level commas.
func splitArgs(directive, expression string) ([]string, error) {
	src := stripParentheses(strings.TrimSpace(expression))
	if src == "" {
		return nil, syntaxError(directive, expression, "empty expression")
	}

	var (
		args  []string
		stack []byte
		quote byte
		start int
	)

	for i := 0; i < len(src); i++ {
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
		case '(', '[', '{':
			stack = append(stack, c)
		case ')', ']', '}':
			if len(stack) == 0 || stack[len(stack)-1] != opening(c) {
				return nil, syntaxError(directive, expression, "unbalanced "+string(c))
			}

			stack = stack[:len(stack)-1]
		case ',':
			if len(stack) == 0 {
				args = append(args, strings.TrimSpace(src[start:i]))
				start = i + 1
			}
		}
	}

	if quote != 0 {
		return nil, syntaxError(directive, expression, "unterminated string")
	}

	if len(stack) != 0 {
		return nil, syntaxError(directive, expression, "unbalanced "+string(stack[len(stack)-1]))
	}

	args = append(args, strings.TrimSpace(src[start:]))

	for _, a := range args {
		if a == "" {
			return nil, syntaxError(directive, expression, "empty argument")
		}
	}

	return args, nil
}

// stripParentheses removes a pair of parentheses wrapping the whole expression.
func stripParentheses(s string) string {
	if len(s) < 2 || s[0] != '(' || s[len(s)-1] != ')' {
		return s
	}

	depth := 0

	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 && i != len(s)-1 {
				return s
			}
		}
	}

	return strings.TrimSpace(s[1 : len(s)-1])
}

func opening(c byte) byte {
	switch c {
	case ')':
		return '('
	case ']':
		return '['
	default:
		return '{'
	}
}

// unquote returns contents of a single or double quoted literal.
func unquote(s string) (string, bool) {
	if len(s) < 2 {
		return "", false
	}

	switch s[0] {
	case '"', '`':
		v, err := strconv.Unquote(s)

		return v, err == nil
	case '\'':
		if s[len(s)-1] != '\'' {
			return "", false
		}

		v := s[1 : len(s)-1]
		if strings.ContainsRune(v, '\'') {
			return "", false
		}

		return v, true
	}

	return "", false
}

func hasDelimiters(s string) bool {
	return strings.Contains(s, "{{") || strings.Contains(s, "}}")
}

func syntaxError(directive, expression, reason string) error {
	return &SyntaxError{Directive: directive, Expression: expression, Reason: reason}
}
