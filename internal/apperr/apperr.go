package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies an error for HTTP mapping and client messaging.
type Kind int

const (
	Validation Kind = iota
	Conflict
	NotFound
	Auth
	Store
)

// Error is the application error carried across package boundaries.
type Error struct {
	Kind   Kind
	Msg    string
	Fields []string // populated for missing-field validation errors
	cause  error
}

func (e *Error) Error() string {
	if len(e.Fields) > 0 {
		return e.Msg + ": " + strings.Join(e.Fields, ", ")
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.cause }

// New builds an error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Newf builds an error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// MissingFields reports every absent required field, not just the first.
func MissingFields(fields []string) *Error {
	return &Error{Kind: Validation, Msg: "missing required fields", Fields: fields}
}

// Wrap attaches a cause while keeping the client-facing message clean.
func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, cause: cause}
}

// KindOf extracts the kind, defaulting to Store for unclassified errors.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return Store
}

// Status maps an error to its HTTP status code.
func Status(err error) int {
	switch KindOf(err) {
	case Validation:
		return http.StatusBadRequest
	case Conflict:
		return http.StatusConflict
	case NotFound:
		return http.StatusNotFound
	case Auth:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the text safe to show a client. Raw store errors are
// never leaked.
func Message(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Error()
	}
	return "internal error"
}
