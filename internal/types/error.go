package types

import "fmt"

// Kind classifies an error surfaced by the document tree core.
type Kind string

const (
	KindNotFound     Kind = "not_found"
	KindAccessDenied Kind = "access_denied"
	KindValidation   Kind = "validation"
	KindInUse        Kind = "in_use"
	KindNotSupported Kind = "not_supported"
	KindInternal     Kind = "internal"
)

// Error is the error value returned at all core API boundaries.
// Kind is machine-readable; Message is for humans; Err carries the cause.
type Error struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NotFound builds a not_found error.
func NotFound(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// AccessDenied builds an access_denied error.
func AccessDenied(format string, args ...interface{}) *Error {
	return &Error{Kind: KindAccessDenied, Message: fmt.Sprintf(format, args...)}
}

// Validation builds a validation error.
func Validation(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// InUse builds an in_use error.
func InUse(format string, args ...interface{}) *Error {
	return &Error{Kind: KindInUse, Message: fmt.Sprintf(format, args...)}
}

// NotSupported builds a not_supported error.
func NotSupported(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotSupported, Message: fmt.Sprintf(format, args...)}
}

// Internal wraps an unexpected collaborator failure.
func Internal(err error, format string, args ...interface{}) *Error {
	return &Error{Kind: KindInternal, Message: fmt.Sprintf(format, args...), Err: err}
}

// IsKind reports whether err is a core Error of the given kind.
func IsKind(err error, kind Kind) bool {
	ce, ok := err.(*Error)
	return ok && ce.Kind == kind
}

// HTTPStatus maps an error kind to the HTTP status used by the API layer.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindNotFound:
		return 404
	case KindAccessDenied:
		return 403
	case KindValidation:
		return 400
	case KindInUse:
		return 409
	case KindNotSupported:
		return 405
	default:
		return 500
	}
}

// CustomError is used by the middleware layer for transport-level failures
// that carry their own HTTP status code.
type CustomError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

func (e *CustomError) Error() string {
	return fmt.Sprintf("%d: %s [type: %s]", e.Code, e.Message, e.Type)
}
