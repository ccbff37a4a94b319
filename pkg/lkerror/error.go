// Package lkerror defines the structured error kinds shared by every layer
// of the core: connectors, the dispatcher, modules, and managers. Errors are
// categorised, never string-matched.
package lkerror

import "fmt"

// Kind classifies why an operation failed so callers can branch on it
// instead of inspecting a message string.
type Kind int

const (
	// Other is the zero value: an unspecified failure.
	Other Kind = iota
	// ConnectionFailed means a connector could not reach or authenticate
	// against a host (dial timeout, handshake failure, auth rejected).
	ConnectionFailed
	// HostKeyNotVerified means an SSH host key has no known-hosts entry
	// or does not match the one on file.
	HostKeyNotVerified
	// UnsupportedPlatform means a module has no branch for the host's
	// detected flavor/version.
	UnsupportedPlatform
	// InvalidParameter means a caller-supplied value failed validation
	// before any connector request was enqueued.
	InvalidParameter
	// NotFound means a referenced host, module, or file does not exist.
	NotFound
	// Timeout means an operation exceeded its deadline.
	Timeout
)

// String renders the kind for logging and error messages.
func (k Kind) String() string {
	switch k {
	case ConnectionFailed:
		return "ConnectionFailed"
	case HostKeyNotVerified:
		return "HostKeyNotVerified"
	case UnsupportedPlatform:
		return "UnsupportedPlatform"
	case InvalidParameter:
		return "InvalidParameter"
	case NotFound:
		return "NotFound"
	case Timeout:
		return "Timeout"
	default:
		return "Other"
	}
}

// Error is a kind-tagged error. Use errors.As to recover the Kind from a
// wrapped error chain.
type Error struct {
	Kind    Kind
	Message string
	Wrapped error
}

// New creates an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an Error of the given kind that wraps an underlying cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Wrapped: cause}
}

func (e *Error) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Wrapped)
	}

	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap allows errors.Is/errors.As to see through to the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Wrapped
}

// Is reports whether target is an *Error with the same Kind, so
// errors.Is(err, lkerror.New(lkerror.NotFound, "")) works as a kind check.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}

	return t.Kind == e.Kind
}

// KindOf extracts the Kind from err, defaulting to Other if err does not
// wrap an *Error.
func KindOf(err error) Kind {
	var e *Error
	if ok := asError(err, &e); ok {
		return e.Kind
	}

	return Other
}

func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e

			return true
		}

		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}

		err = u.Unwrap()
	}

	return false
}
