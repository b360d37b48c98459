package authtoken

import (
	"errors"
	"fmt"
)

// Kind classifies every failure a sign-in operation can surface. Operations
// in this module either produce an AuthToken or fail with one of these; an
// unlabeled error leaking out of a client is a bug.
type Kind string

const (
	// KindNetwork covers transport-level failures: connection refused,
	// timeouts, unreadable response bodies.
	KindNetwork Kind = "network"

	// KindRejected means the server understood the request and declined the
	// credentials or assertion.
	KindRejected Kind = "rejected"

	// KindEncoding means local construction of a protocol request failed
	// before anything was sent.
	KindEncoding Kind = "encoding"

	// KindMissingToken means a provider or conversion endpoint answered
	// without a usable credential.
	KindMissingToken Kind = "missing_token"

	// KindDisabled means the requested provider is not enabled.
	KindDisabled Kind = "disabled"
)

// Error is the single error type crossing the package boundary.
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

func (e *Error) Unwrap() error {
	return e.Err
}

// NetworkFailure wraps a transport-level error.
func NetworkFailure(err error) error {
	return &Error{Kind: KindNetwork, Message: "request failed", Err: err}
}

// Rejected reports that the server declined credentials or an assertion.
// msg carries the server-supplied message when one was present.
func Rejected(msg string) error {
	if msg == "" {
		msg = "authentication rejected"
	}
	return &Error{Kind: KindRejected, Message: msg}
}

// EncodingFailure reports that a request could not be constructed locally.
func EncodingFailure(err error) error {
	return &Error{Kind: KindEncoding, Message: "failed to encode request", Err: err}
}

// MissingToken reports that a provider returned no usable credential.
func MissingToken(msg string) error {
	return &Error{Kind: KindMissingToken, Message: msg}
}

// Disabled reports an attempt to use a provider that is not enabled.
func Disabled(provider string) error {
	return &Error{Kind: KindDisabled, Message: provider + " sign-in is not enabled"}
}

// KindOf extracts the failure kind from err, or "" when err does not carry
// one.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, k Kind) bool {
	return KindOf(err) == k
}
