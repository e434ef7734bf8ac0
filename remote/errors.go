package remote

import (
	"errors"
	"fmt"
)

// ErrorKind classifies remote failures.
type ErrorKind int

const (
	// Unreachable means the backend could not be contacted.
	Unreachable ErrorKind = iota + 1
	// MalformedPayload means the backend answered with something that is not
	// a JSON object.
	MalformedPayload
	// InvalidWrite means the backend refused a write.
	InvalidWrite
)

func (k ErrorKind) String() string {
	switch k {
	case Unreachable:
		return "unreachable"
	case MalformedPayload:
		return "malformed payload"
	case InvalidWrite:
		return "invalid write"
	}
	return "unknown"
}

// Error is a classified remote failure.
type Error struct {
	Op   string
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("remote %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("remote %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(op string, kind ErrorKind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// KindOf returns the kind of a remote error, or 0 if err is not one.
func KindOf(err error) ErrorKind {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	return 0
}

// IsUnreachable reports whether err means the backend could not be reached.
func IsUnreachable(err error) bool { return KindOf(err) == Unreachable }

// IsMalformed reports whether err means the backend returned a bad payload.
func IsMalformed(err error) bool { return KindOf(err) == MalformedPayload }

// IsInvalidWrite reports whether err means the backend rejected a write.
func IsInvalidWrite(err error) bool { return KindOf(err) == InvalidWrite }
