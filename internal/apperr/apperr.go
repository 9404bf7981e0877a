// Package apperr defines the error kinds shared by handlers and services.
// Every failure crossing a package boundary is either one of these kinds or
// wraps one, so HTTP status mapping lives in one place.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for presentation.
type Kind string

const (
	KindValidation   Kind = "validation_failed"
	KindUnauthorized Kind = "unauthorized"
	KindForbidden    Kind = "forbidden"
	KindNotFound     Kind = "not_found"
	KindConflict     Kind = "conflict"
	KindUpstream     Kind = "upstream_unavailable"
)

// Error carries a Kind, a public message and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Fields  map[string]string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Kind so callers can write errors.Is(err, apperr.NotFound).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Err == nil
}

// Sentinels for errors.Is comparisons.
var (
	Validation   = &Error{Kind: KindValidation}
	Unauthorized = &Error{Kind: KindUnauthorized}
	Forbidden    = &Error{Kind: KindForbidden}
	NotFound     = &Error{Kind: KindNotFound}
	Conflict     = &Error{Kind: KindConflict}
	Upstream     = &Error{Kind: KindUpstream}
)

// New creates an error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Wrap creates an error of the given kind around cause.
func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Err: cause}
}

// Invalid returns a validation error holding per-field messages.
func Invalid(fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: "validation failed", Fields: fields}
}

// KindOf reports the kind of err, defaulting to KindUpstream for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUpstream
}

// Status maps an error to an HTTP status code.
func Status(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}

// PublicMessage returns the message safe to show to users.
// Upstream causes are never exposed.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return "Something went wrong. Please try again later."
}
