package backend

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindAuth  ErrorKind = "auth_error"
	KindFetch ErrorKind = "fetch_error"
	KindWrite ErrorKind = "write_error"
)

var (
	ErrNotFound           = errors.New("record not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("missing or invalid access token")
)

// Error classifies a failed provider call so callers can pick a user-visible state.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func AuthError(op string, err error) error {
	return &Error{Kind: KindAuth, Op: op, Err: err}
}

func FetchError(op string, err error) error {
	return &Error{Kind: KindFetch, Op: op, Err: err}
}

func WriteError(op string, err error) error {
	return &Error{Kind: KindWrite, Op: op, Err: err}
}

// KindOf reports the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) ErrorKind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return ""
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAuth reports authentication failures, whether classified or bare sentinels.
func IsAuth(err error) bool {
	return KindOf(err) == KindAuth ||
		errors.Is(err, ErrInvalidCredentials) ||
		errors.Is(err, ErrUnauthorized)
}
