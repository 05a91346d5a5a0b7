package consult

import (
	"errors"
	"fmt"
)

// Kind classifies failures of the consultation core
type Kind string

const (
	KindNetwork     Kind = "network"
	KindParse       Kind = "parse"
	KindPersistence Kind = "persistence"
	KindInvalid     Kind = "invalid"
)

// sentinels for errors.Is
var (
	ErrNetwork      = &Error{Kind: KindNetwork}
	ErrParse        = &Error{Kind: KindParse}
	ErrPersistence  = &Error{Kind: KindPersistence}
	ErrInvalidInput = &Error{Kind: KindInvalid}
)

// Error carries the kind, the failed operation and its cause
type Error struct {
	Kind   Kind
	Op     string
	Status int // HTTP status from the remote, network kind only
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := string(e.Kind) + " error"
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Status > 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t == nil || e == nil {
		return false
	}
	return e.Kind == t.Kind
}

func NewError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of err, empty when err is not ours
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
