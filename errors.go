package callsite

import (
	"errors"
	"fmt"
)

// Code classifies resolution failures.
type Code string

const (
	// CodeMalformedSource marks a file that does not parse.
	CodeMalformedSource Code = "MALFORMED_SOURCE"
	// CodeSourceUnavailable marks a file that cannot be read or is too large.
	CodeSourceUnavailable Code = "SOURCE_UNAVAILABLE"
	// CodeAmbiguousCallSite means no single call expression matches a position.
	CodeAmbiguousCallSite Code = "AMBIGUOUS_CALL_SITE"
	// CodeUnsupportedTarget marks an assignment target with no extractable name.
	CodeUnsupportedTarget Code = "UNSUPPORTED_TARGET"
	// CodeNoBindingFound means no enclosing construct binds a node's value.
	CodeNoBindingFound Code = "NO_BINDING_FOUND"
)

// Context keys attached to errors.
const (
	CtxPath   = "path"
	CtxLine   = "line"
	CtxOffset = "offset"
	CtxUnit   = "unit"
	CtxNode   = "node"
)

// Error is a coded resolution failure. errors.Is matches any two errors
// with the same code, so callers can test against the Err* values.
type Error struct {
	Code    Code
	Message string
	Err     error
	Context map[string]any
}

var (
	ErrMalformedSource   = &Error{Code: CodeMalformedSource, Message: "malformed source"}
	ErrSourceUnavailable = &Error{Code: CodeSourceUnavailable, Message: "source unavailable"}
	ErrAmbiguousCallSite = &Error{Code: CodeAmbiguousCallSite, Message: "ambiguous call site"}
	ErrUnsupportedTarget = &Error{Code: CodeUnsupportedTarget, Message: "unsupported assignment target"}
	ErrNoBindingFound    = &Error{Code: CodeNoBindingFound, Message: "no binding found"}
)

func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if len(e.Context) > 0 {
		msg += fmt.Sprintf(" %v", e.Context)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// WithContext records key=value on e and returns e.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

func newError(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func wrapError(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, Err: err}
}

// IsCode reports whether err carries code.
func IsCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// CodeOf returns the code carried by err, or "" if it has none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
