// Package errs classifies pipeline failures.
//
// Transient failures (network, timeouts, non-success statuses) are swallowed
// at the unit where they happen: a fragment, a book, a note or an enrichment
// call. Invalid input is dropped silently. Fatal failures abort the command
// before anything downstream runs. Nothing is retried.
package errs

import (
	"context"
	"errors"
	"fmt"
	"net"
)

type Class int

const (
	Transient Class = iota
	Invalid
	Fatal
)

func (c Class) String() string {
	switch c {
	case Transient:
		return "transient"
	case Invalid:
		return "invalid"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

var (
	ErrNoSession       = errors.New("no usable session")
	ErrMissingConfig   = errors.New("missing required configuration")
	ErrNotFound        = errors.New("not found")
	ErrUnexpectedState = errors.New("unexpected status")
)

// Classified wraps an error with its class and the operation that failed.
type Classified struct {
	Class Class
	Op    string
	Err   error
}

func (e *Classified) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Classified) Unwrap() error {
	return e.Err
}

func wrap(class Class, err error, op string) error {
	if err == nil {
		return nil
	}
	return &Classified{Class: class, Op: op, Err: err}
}

func WrapTransient(err error, op string) error { return wrap(Transient, err, op) }
func WrapInvalid(err error, op string) error   { return wrap(Invalid, err, op) }
func WrapFatal(err error, op string) error     { return wrap(Fatal, err, op) }

// Fatalf builds a fatal setup error from a format string.
func Fatalf(format string, args ...any) error {
	return &Classified{Class: Fatal, Err: fmt.Errorf(format, args...)}
}

// ClassOf reports the class of err. Unclassified errors count as transient
// unless they are known setup sentinels.
func ClassOf(err error) Class {
	var ce *Classified
	if errors.As(err, &ce) {
		return ce.Class
	}
	if errors.Is(err, ErrNoSession) || errors.Is(err, ErrMissingConfig) {
		return Fatal
	}
	return Transient
}

func IsFatal(err error) bool {
	return err != nil && ClassOf(err) == Fatal
}

func IsInvalid(err error) bool {
	return err != nil && ClassOf(err) == Invalid
}

// IsTransient also recognises timeouts and network errors that were never
// wrapped.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	return ClassOf(err) == Transient
}
