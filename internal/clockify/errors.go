package clockify

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can tell configuration, input and
// upstream problems apart without parsing messages.
type Kind string

const (
	KindConfiguration Kind = "configuration"
	KindValidation    Kind = "validation"
	KindUpstream      Kind = "upstream"
	KindTransport     Kind = "transport"
	KindParse         Kind = "parse"
)

// ErrMissingAPIKey is wrapped by every gateway call made without a credential.
var ErrMissingAPIKey = errors.New("CLOCKIFY_API_KEY is not set")

// Error is the single error type produced by this package.
type Error struct {
	Kind    Kind
	Message string
	Err     error

	// Status and Body are only set for KindUpstream.
	Status int
	Body   string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	switch {
	case e.Message == "" && e.Err != nil:
		return e.Err.Error()
	case e.Err != nil:
		return e.Message + ": " + e.Err.Error()
	default:
		return e.Message
	}
}

// Unwrap exposes the cause for errors.Is/errors.As.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsKind reports whether err is (or wraps) an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var ce *Error
	if !errors.As(err, &ce) {
		return false
	}
	return ce.Kind == kind
}

// KindOf returns the kind of err, or "" when err is not a classified error.
func KindOf(err error) Kind {
	var ce *Error
	if !errors.As(err, &ce) {
		return ""
	}
	return ce.Kind
}

func configurationError() *Error {
	return &Error{Kind: KindConfiguration, Err: ErrMissingAPIKey}
}

func upstreamError(status int, body string) *Error {
	return &Error{
		Kind:    KindUpstream,
		Message: fmt.Sprintf("Clockify API error (status %d): %s", status, body),
		Status:  status,
		Body:    body,
	}
}

func transportError(err error) *Error {
	return &Error{Kind: KindTransport, Message: "Clockify request failed", Err: err}
}

// NewValidationError reports a tool argument that fails its schema.
func NewValidationError(arg, reason string) *Error {
	return &Error{
		Kind:    KindValidation,
		Message: fmt.Sprintf("invalid argument %q", arg),
		Err:     errors.New(reason),
	}
}

// NewParseError reports a caller-supplied date that is not a valid instant.
func NewParseError(field, value string, err error) *Error {
	return &Error{
		Kind:    KindParse,
		Message: fmt.Sprintf("invalid date %q for %s", value, field),
		Err:     err,
	}
}
