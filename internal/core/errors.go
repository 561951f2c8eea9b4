package core

import (
	"errors"
	"fmt"
)

// ErrorKind classifies every failure a session can report to its caller.
type ErrorKind int

const (
	// KindUnknown is returned by KindOf for errors outside the taxonomy.
	KindUnknown ErrorKind = iota
	// KindEmptyInput means there was no text to work on.
	KindEmptyInput
	// KindNotConfigured means the credential for the selected service is missing.
	KindNotConfigured
	// KindNetworkFailure covers transport errors, timeouts and failing upstream statuses.
	KindNetworkFailure
	// KindMalformedResponse means the upstream envelope could not be decoded.
	KindMalformedResponse
	// KindOperationInProgress means another improve or speak call is still running.
	KindOperationInProgress
	// KindInvalidCredential means the upstream rejected the API key.
	KindInvalidCredential
)

var kindNames = map[ErrorKind]string{
	KindUnknown:             "unknown",
	KindEmptyInput:          "empty_input",
	KindNotConfigured:       "not_configured",
	KindNetworkFailure:      "network_failure",
	KindMalformedResponse:   "malformed_response",
	KindOperationInProgress: "operation_in_progress",
	KindInvalidCredential:   "invalid_credential",
}

var kindMessages = map[ErrorKind]string{
	KindUnknown:             "Something went wrong",
	KindEmptyInput:          "Please enter some text first",
	KindNotConfigured:       "The API key for this service is not configured",
	KindNetworkFailure:      "The service could not be reached, please try again",
	KindMalformedResponse:   "The service returned a response that could not be read",
	KindOperationInProgress: "Another request is still running",
	KindInvalidCredential:   "The API key was rejected by the service",
}

// String returns the stable identifier used in logs and wire messages.
func (k ErrorKind) String() string {
	name, ok := kindNames[k]
	if !ok {
		return kindNames[KindUnknown]
	}

	return name
}

// Message returns the human-readable text shown to the user for kind.
func Message(kind ErrorKind) string {
	msg, ok := kindMessages[kind]
	if !ok {
		return kindMessages[KindUnknown]
	}

	return msg
}

// Error carries an ErrorKind and, optionally, the underlying cause.
type Error struct {
	Kind ErrorKind
	Err  error
}

// Sentinel errors, one per kind. errors.Is matches any *Error of the same kind.
var (
	ErrEmptyInput          = &Error{Kind: KindEmptyInput}
	ErrNotConfigured       = &Error{Kind: KindNotConfigured}
	ErrNetworkFailure      = &Error{Kind: KindNetworkFailure}
	ErrMalformedResponse   = &Error{Kind: KindMalformedResponse}
	ErrOperationInProgress = &Error{Kind: KindOperationInProgress}
	ErrInvalidCredential   = &Error{Kind: KindInvalidCredential}
)

// NewError wraps err with kind.
func NewError(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}

	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}

	return other.Kind == e.Kind
}

// KindOf extracts the ErrorKind from err, or KindUnknown.
func KindOf(err error) ErrorKind {
	var kindErr *Error
	if errors.As(err, &kindErr) {
		return kindErr.Kind
	}

	return KindUnknown
}
