// Package errs defines the error kinds surfaced by the kdbx engine's
// load/save boundary.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a failure the way callers of Load/Save need to react to
// it: retry with a different key, refuse the file outright, or treat it as
// a plain I/O problem.
type Kind int

const (
	// KindMalformed covers structural violations: bad field length,
	// truncated stream, bad magic, wrong variant-map type.
	KindMalformed Kind = iota
	// KindUnsupportedVersion covers a critical version beyond the
	// reader's range, or an unknown KDF/cipher UUID.
	KindUnsupportedVersion
	// KindAuthentication covers header HMAC mismatch (v4) or
	// StreamStartBytes mismatch (v3). The two are not distinguished,
	// so a wrong key and a tampered file look identical to callers.
	KindAuthentication
	// KindIntegrity covers block hash/HMAC mismatch mid-stream, or
	// padding mismatch, after the header has already authenticated.
	KindIntegrity
	// KindKeyUnavailable covers a challenge-response factor whose
	// device is missing or failing.
	KindKeyUnavailable
	// KindIO covers underlying device read/write failure.
	KindIO
	// KindXML covers XML well-formedness or schema violations.
	KindXML
)

func (k Kind) String() string {
	switch k {
	case KindMalformed:
		return "malformed"
	case KindUnsupportedVersion:
		return "unsupported version"
	case KindAuthentication:
		return "authentication"
	case KindIntegrity:
		return "integrity"
	case KindKeyUnavailable:
		return "key unavailable"
	case KindIO:
		return "io"
	case KindXML:
		return "xml"
	default:
		return "unknown"
	}
}

// Error is a kdbx engine error carrying a Kind so callers can branch on
// failure category without string matching.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("kdbxvault: %s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("kdbxvault: %s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error of the given kind, preserving err for Unwrap.
func Wrap(kind Kind, err error, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// Is reports whether err is a kdbxvault *Error of the given kind. The
// outermost kind in the chain wins.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// KindOf returns the kind of the outermost *Error in err's chain, if
// there is one. Wrapping code uses it to avoid re-classifying an error
// a lower layer already classified.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}
