// Package clienterr defines the single error type returned by the Swish client,
// tagged with a Kind so callers can branch on the failure category.
package clienterr

import (
	"errors"
	"fmt"
)

// Kind categorizes client errors.
type Kind string

const (
	// KindNetwork covers failures where no HTTP response was obtained,
	// including cancellation and deadline expiry.
	KindNetwork Kind = "network"
	// KindAuthentication is returned for HTTP 401 and 403.
	KindAuthentication Kind = "authentication"
	// KindValidation is returned for HTTP 422 and for requests rejected before sending.
	KindValidation Kind = "validation"
	// KindAPI is returned for every other non-successful HTTP status.
	KindAPI Kind = "api"
	// KindSigning is returned by payload signing and credential loading.
	KindSigning Kind = "signing"
)

// ErrUnexpectedStatus is the cause attached to errors built from HTTP responses.
var ErrUnexpectedStatus = errors.New("unexpected response status")

// Record is one entry of the provider's JSON error array.
type Record struct {
	ErrorCode             string `json:"errorCode"`
	ErrorMessage          string `json:"errorMessage"`
	AdditionalInformation string `json:"additionalInformation,omitempty"`
}

// Error is the tagged client error. Message never contains request or response
// bodies, so the value is safe to log as is.
type Error struct {
	Kind       Kind
	Message    string
	StatusCode int // 0 when no HTTP response was received
	Records    []Record
	Cause      error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same Kind. A target with an
// empty Kind matches any *Error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == "" || t.Kind == e.Kind
}

// FirstRecord returns the first error record, if any.
func (e *Error) FirstRecord() (Record, bool) {
	if len(e.Records) == 0 {
		return Record{}, false
	}
	return e.Records[0], true
}

// NewNetworkError creates a network error wrapping the transport failure.
func NewNetworkError(message string, cause error) *Error {
	return &Error{Kind: KindNetwork, Message: message, Cause: cause}
}

// NewValidationError creates a validation error for a request rejected locally.
func NewValidationError(message string, cause error) *Error {
	return &Error{Kind: KindValidation, Message: message, Cause: cause}
}

// NewSigningError creates a signing error. Callers pass sentinel causes only so
// that library error text never reaches the message chain.
func NewSigningError(message string, cause error) *Error {
	return &Error{Kind: KindSigning, Message: message, Cause: cause}
}

// IsKind checks if err, or any error it wraps, is a client error of the given kind.
func IsKind(err error, kind Kind) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind == kind
	}
	return false
}

// KindOf returns the kind of the first client error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}

// StatusCode returns the HTTP status attached to err, or 0.
func StatusCode(err error) int {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.StatusCode
	}
	return 0
}

func statusCause(status int) error {
	return fmt.Errorf("%w: %d", ErrUnexpectedStatus, status)
}
