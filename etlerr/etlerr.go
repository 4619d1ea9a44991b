package etlerr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindTransient      Kind = "transient"
	KindFatalRequest   Kind = "fatal_request"
	KindEmptyResult    Kind = "empty_result"
	KindSchemaMismatch Kind = "schema_mismatch"
	KindConfiguration  Kind = "configuration"
)

// Sentinels for errors.Is, one per kind.
var (
	ErrTransient      = &Error{Kind: KindTransient}
	ErrFatalRequest   = &Error{Kind: KindFatalRequest}
	ErrEmptyResult    = &Error{Kind: KindEmptyResult}
	ErrSchemaMismatch = &Error{Kind: KindSchemaMismatch}
	ErrConfiguration  = &Error{Kind: KindConfiguration}
)

// Error tags a failure with the pipeline operation it happened in and how the
// pipeline must react to it.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrTransient) works
// whatever the operation.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func Transient(op string, err error) *Error {
	return New(KindTransient, op, err)
}

func FatalRequest(op string, err error) *Error {
	return New(KindFatalRequest, op, err)
}

func EmptyResult(op string, format string, args ...any) *Error {
	return New(KindEmptyResult, op, fmt.Errorf(format, args...))
}

func SchemaMismatch(op string, format string, args ...any) *Error {
	return New(KindSchemaMismatch, op, fmt.Errorf(format, args...))
}

func Configuration(op string, format string, args ...any) *Error {
	return New(KindConfiguration, op, fmt.Errorf(format, args...))
}

// Retryable reports whether err is worth another attempt.
func Retryable(err error) bool {
	return errors.Is(err, ErrTransient)
}

func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
