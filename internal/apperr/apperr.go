// Package apperr defines the error kinds the booking core reports to its callers.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation        Kind = "validation"
	KindNotFound          Kind = "not_found"
	KindAuthorization     Kind = "authorization"
	KindInvalidTransition Kind = "invalid_transition"
	KindNotEligible       Kind = "not_eligible"
	KindDuplicateReview   Kind = "duplicate_review"
	KindReference         Kind = "reference"
	KindStorage           Kind = "storage"
)

// Error is a classified failure with a human readable detail.
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

// Sentinels for errors.Is; they match any *Error of the same kind.
var (
	ErrValidation        = &Error{Kind: KindValidation}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrAuthorization     = &Error{Kind: KindAuthorization}
	ErrInvalidTransition = &Error{Kind: KindInvalidTransition}
	ErrNotEligible       = &Error{Kind: KindNotEligible}
	ErrDuplicateReview   = &Error{Kind: KindDuplicateReview}
	ErrReference         = &Error{Kind: KindReference}
	ErrStorage           = &Error{Kind: KindStorage}
)

func (e *Error) Error() string {
	switch {
	case e.Detail != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Err)
	case e.Detail != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Detail == "" && t.Err == nil
}

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...), Err: err}
}

func Validation(format string, args ...any) *Error { return New(KindValidation, format, args...) }
func NotFound(format string, args ...any) *Error   { return New(KindNotFound, format, args...) }
func Authorization(format string, args ...any) *Error {
	return New(KindAuthorization, format, args...)
}
func InvalidTransition(format string, args ...any) *Error {
	return New(KindInvalidTransition, format, args...)
}
func NotEligible(format string, args ...any) *Error { return New(KindNotEligible, format, args...) }
func DuplicateReview(format string, args ...any) *Error {
	return New(KindDuplicateReview, format, args...)
}
func Reference(format string, args ...any) *Error { return New(KindReference, format, args...) }

// Storage wraps an underlying store failure. Errors that are already
// classified pass through unchanged.
func Storage(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	return Wrap(KindStorage, err, format, args...)
}

// KindOf returns the kind of the first *Error in err's chain, or
// KindStorage for unclassified errors.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindStorage
}

// DetailOf returns the detail of a classified error, or err.Error().
func DetailOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) && ae.Detail != "" {
		return ae.Detail
	}
	return err.Error()
}
