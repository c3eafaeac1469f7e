// Package apperr defines the typed error kinds shared across the
// backend and their mapping to HTTP status codes.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for logging and status-code mapping.
type Kind string

const (
	KindConfiguration    Kind = "configuration"
	KindInitialization   Kind = "initialization"
	KindStoreUnavailable Kind = "store_unavailable"
	KindModelInvocation  Kind = "model_invocation"
)

// Error is a typed application error. It carries the kind, a message
// with enough context to log (the missing key, the failing backend),
// and the wrapped cause when one exists.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Configuration reports a missing or invalid configuration key.
func Configuration(format string, args ...any) *Error {
	return &Error{Kind: KindConfiguration, Message: fmt.Sprintf(format, args...)}
}

// Initialization reports a dependency that could not be reached at
// startup. Fatal: the process must not serve with a partial engine.
func Initialization(cause error, format string, args ...any) *Error {
	return &Error{Kind: KindInitialization, Message: fmt.Sprintf(format, args...), Err: cause}
}

// StoreUnavailable reports a history store that is unreachable
// mid-request. Distinct from a missing key, which is not an error.
func StoreUnavailable(cause error, format string, args ...any) *Error {
	return &Error{Kind: KindStoreUnavailable, Message: fmt.Sprintf(format, args...), Err: cause}
}

// ModelInvocation reports a failed or timed-out model call.
func ModelInvocation(cause error, format string, args ...any) *Error {
	return &Error{Kind: KindModelInvocation, Message: fmt.Sprintf(format, args...), Err: cause}
}

// KindOf returns the kind of err, or "" when err carries no kind.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Status maps an error to the HTTP status code the original service
// used for that kind. Unknown errors map to 500.
func Status(err error) int {
	switch KindOf(err) {
	case KindConfiguration, KindInitialization:
		return http.StatusInternalServerError
	case KindStoreUnavailable:
		return 560
	case KindModelInvocation:
		return 510
	default:
		return http.StatusInternalServerError
	}
}
