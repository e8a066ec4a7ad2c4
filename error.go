package partialcache

import "fmt"

// SentinelError is an error.
type SentinelError string

const (
	// ErrSyntax indicates malformed directive expression.
	ErrSyntax = SentinelError("syntax error")

	// ErrUnexpectedValue indicates a store returned a value that is not a rendered fragment.
	ErrUnexpectedValue = SentinelError("unexpected cached value")

	// ErrNothingToInvalidate indicates no callbacks were added to Invalidator.
	ErrNothingToInvalidate = SentinelError("nothing to invalidate")

	// ErrAlreadyInvalidated indicates recent invalidation.
	ErrAlreadyInvalidated = SentinelError("already invalidated")
)

// Error implements error.
func (e SentinelError) Error() string {
	return string(e)
}

// SyntaxError describes an expression that could not be parsed.
type SyntaxError struct {
	Directive  string
	Expression string
	Reason     string
}

// Error implements error.
func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s in @%s(%s): %s", ErrSyntax, e.Directive, e.Expression, e.Reason)
}

// Is reports whether target is ErrSyntax.
func (e *SyntaxError) Is(target error) bool {
	return target == ErrSyntax
}
