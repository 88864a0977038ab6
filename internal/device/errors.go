package device

import (
	"errors"
	"fmt"
)

// Lookup errors for the registry.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, device.ErrUnknownRoom) {
//	    // handle unknown room
//	}
var (
	// ErrUnknownRoom is returned when a room name resolves to no device.
	ErrUnknownRoom = errors.New("device: unknown room")

	// ErrUnknownKind is returned when a device kind is not registered.
	ErrUnknownKind = errors.New("device: unknown device kind")

	// ErrAlreadyRegistered is returned when registering a duplicate device ID.
	ErrAlreadyRegistered = errors.New("device: already registered")

	// ErrInvalidParams is returned when action parameters fail schema validation.
	ErrInvalidParams = errors.New("device: invalid parameters")
)

// ErrorKind classifies device execution failures.
type ErrorKind string

// ErrorKind constants.
const (
	ErrKindConnection          ErrorKind = "connection_error"
	ErrKindTimeout             ErrorKind = "timeout"
	ErrKindPartial             ErrorKind = "partial"
	ErrKindInsufficientBattery ErrorKind = "insufficient_battery"
	ErrKindUnsupported         ErrorKind = "unsupported"
)

// Error is a device execution failure with a machine-readable kind and a
// human-readable detail string.
type Error struct {
	Kind   ErrorKind
	Detail string
	Err    error // wrapped cause, may be nil
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("device %s: %s: %v", e.Kind, e.Detail, e.Err)
	}
	return fmt.Sprintf("device %s: %s", e.Kind, e.Detail)
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a device error with the given kind and detail.
func NewError(kind ErrorKind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

// WrapError creates a device error wrapping an underlying cause.
func WrapError(kind ErrorKind, detail string, err error) *Error {
	return &Error{Kind: kind, Detail: detail, Err: err}
}

// AsError extracts a *Error from an error chain, if present.
func AsError(err error) (*Error, bool) {
	var de *Error
	ok := errors.As(err, &de)
	return de, ok
}

// IsTransient reports whether the failure is worth retrying at the
// controller level. Connection and timeout failures are transient; policy
// failures (unsupported action, low battery) are not.
func IsTransient(err error) bool {
	de, ok := AsError(err)
	if !ok {
		return false
	}
	return de.Kind == ErrKindConnection || de.Kind == ErrKindTimeout
}
