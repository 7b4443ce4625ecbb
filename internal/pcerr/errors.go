// Package pcerr defines the error kinds shared by the carpet pipeline.
package pcerr

import (
	"errors"
	"fmt"
)

// Kind classifies a pipeline failure. Kinds are comparable with errors.Is.
type Kind string

// Error implements error so a Kind can be used as an errors.Is target.
func (k Kind) Error() string { return string(k) }

const (
	ShapeMismatch    Kind = "shape mismatch"
	FileNotFound     Kind = "file not found"
	UnreadableFormat Kind = "unreadable format"
	InvalidArgument  Kind = "invalid argument"
	EmptyResult      Kind = "empty result"
)

// Error is a failure raised by one pipeline operation.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	s := e.Op + ": " + string(e.Kind)
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports a match against the error's Kind.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

// New returns an error of the given kind with a formatted message.
func New(kind Kind, op, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches op and kind to err. A wrapped *Error keeps its own kind.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *Error
	if errors.As(err, &pe) {
		kind = pe.Kind
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of err, or "" when err carries none.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}
