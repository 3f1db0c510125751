// Package qserrors defines the small error taxonomy shared across the proxy's
// data plane and configuration substrate. Errors are returned in idiomatic Go
// fashion (distinguishable via errors.Is / errors.As), not via panics, so
// that callers such as the proxy supervisor can isolate per-connection
// failures without special-casing strings.
package qserrors

import (
	"errors"
	"fmt"
)

// Kind classifies an error for logging, metrics, and propagation-policy
// decisions (see the taxonomy in the project's error-handling design).
type Kind string

const (
	// KindIO covers OS-level read/write/bind/connect failures.
	KindIO Kind = "io"
	// KindTLSHandshake covers TLS library rejections of a handshake.
	KindTLSHandshake Kind = "tls_handshake"
	// KindCertificate covers missing files, malformed PEM, and key/cert
	// mismatches.
	KindCertificate Kind = "certificate"
	// KindConfiguration covers invariant violations and unparseable values.
	KindConfiguration Kind = "configuration"
	// KindNonTLSConnection covers connections the sniffer rejected.
	KindNonTLSConnection Kind = "non_tls_connection"
	// KindOther covers supervisor-internal failures that don't fit above.
	KindOther Kind = "other"
)

// Error is a Kind-tagged error that wraps an underlying cause.
type Error struct {
	Kind  Kind
	Op    string // the operation that failed, e.g. "dial upstream"
	Cause error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is a *Error with the same Kind, so that callers
// can write errors.Is(err, qserrors.New(qserrors.KindIO, "", nil)) style
// checks, or more conveniently via KindOf below.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return other.Kind == e.Kind
	}
	return false
}

// New constructs a *Error of the given kind.
func New(kind Kind, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Cause: cause}
}

// IO wraps cause as a KindIO error for op.
func IO(op string, cause error) *Error { return New(KindIO, op, cause) }

// TLSHandshake wraps cause as a KindTLSHandshake error for op.
func TLSHandshake(op string, cause error) *Error { return New(KindTLSHandshake, op, cause) }

// Certificate wraps cause as a KindCertificate error for op.
func Certificate(op string, cause error) *Error { return New(KindCertificate, op, cause) }

// Configuration wraps cause as a KindConfiguration error for op.
func Configuration(op string, cause error) *Error { return New(KindConfiguration, op, cause) }

// NonTLSConnection builds a KindNonTLSConnection error explaining reason.
func NonTLSConnection(reason string) *Error {
	return New(KindNonTLSConnection, "protocol sniff", errors.New(reason))
}

// Other wraps cause as a KindOther error for op.
func Other(op string, cause error) *Error { return New(KindOther, op, cause) }

// KindOf returns the Kind of err if it is (or wraps) a *Error, and ok=false
// otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// Fatal reports whether an error of this kind, encountered at startup,
// should abort the process before the listener is brought up.
func Fatal(kind Kind) bool {
	switch kind {
	case KindConfiguration, KindCertificate, KindIO:
		return true
	default:
		return false
	}
}
