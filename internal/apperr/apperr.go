// Package apperr defines the request-recoverable error taxonomy shared by the
// booking and sales flows. Handlers translate kinds to HTTP status codes; the
// flows themselves return plain errors.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindInsufficientBalance
	KindInvalidRefund
)

type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func Validation(format string, args ...any) error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

func Conflict(format string, args ...any) error {
	return &Error{Kind: KindConflict, Msg: fmt.Sprintf(format, args...)}
}

func InsufficientBalance(format string, args ...any) error {
	return &Error{Kind: KindInsufficientBalance, Msg: fmt.Sprintf(format, args...)}
}

func InvalidRefund(format string, args ...any) error {
	return &Error{Kind: KindInvalidRefund, Msg: fmt.Sprintf(format, args...)}
}

// KindOf returns the taxonomy kind of err, or KindUnknown for infrastructure
// errors that should surface as 500s.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
