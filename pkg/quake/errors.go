package quake

import (
	"errors"
	"fmt"
)

// Kind classifies a failed query.
type Kind int

const (
	// KindTimeout means no conformant reply arrived within the retry budget.
	KindTimeout Kind = iota + 1

	// KindProtocol means a reply was received but failed framing validation
	// (bad marker or command token). It is never retried.
	KindProtocol

	// KindDecode means the framing was valid but the payload violated the
	// info string or player line grammar. It is never retried.
	KindDecode

	// KindSocket means a local resource or send failure (bind, write, read).
	KindSocket
)

// String returns a lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindProtocol:
		return "protocol"
	case KindDecode:
		return "decode"
	case KindSocket:
		return "socket"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is checks against any *Error of the same kind.
var (
	ErrTimeout  = &Error{Kind: KindTimeout}
	ErrProtocol = &Error{Kind: KindProtocol}
	ErrDecode   = &Error{Kind: KindDecode}
	ErrSocket   = &Error{Kind: KindSocket}
)

// Error is the single error type returned by the engine.
type Error struct {
	// Err is the underlying cause, may be nil for sentinels.
	Err error

	// Op names the step that failed, e.g. "challenge", "status", "decode".
	Op string

	Kind Kind
}

func (e *Error) Error() string {
	msg := "quake: " + e.Kind.String()
	if e.Op != "" {
		msg += " (" + e.Op + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports a match against a sentinel of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}

	return t.Err == nil && t.Op == "" && t.Kind == e.Kind
}

// KindOf returns the kind of err, or 0 when err is not an engine error.
func KindOf(err error) Kind {
	var qe *Error
	if errors.As(err, &qe) {
		return qe.Kind
	}

	return 0
}

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func decodeErrorf(format string, args ...any) *Error {
	return newError(KindDecode, "decode", fmt.Errorf(format, args...))
}

func protocolErrorf(format string, args ...any) *Error {
	return newError(KindProtocol, "validate", fmt.Errorf(format, args...))
}
