package intent

import (
	"errors"
	"fmt"
)

// ErrorKind classifies parse failures.
type ErrorKind string

const (
	// ErrKindAmbiguous marks input with multiple equally good readings.
	ErrKindAmbiguous ErrorKind = "ambiguous"

	// ErrKindLowConfidence marks a best match below the confidence
	// threshold. The command is rejected rather than guessed at.
	ErrKindLowConfidence ErrorKind = "low_confidence"

	// ErrKindUnknown marks input that matched nothing at all.
	ErrKindUnknown ErrorKind = "unknown"
)

// ParseError is a classified parse failure with a human-readable detail.
type ParseError struct {
	Kind   ErrorKind
	Detail string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("intent: %s: %s", e.Kind, e.Detail)
}

// NewParseError constructs a classified parse error.
func NewParseError(kind ErrorKind, detail string) *ParseError {
	return &ParseError{Kind: kind, Detail: detail}
}

// AsParseError extracts a *ParseError from an error chain.
func AsParseError(err error) (*ParseError, bool) {
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
