package apperr

import (
	"errors"
	"net/http"
)

// Kind is the closed set of failures the account flows report to callers.
type Kind struct {
	Code   string
	Status int
}

var (
	Validation    = Kind{"validation_error", http.StatusBadRequest}
	DuplicateUser = Kind{"user_exists", http.StatusConflict}
	NotFound      = Kind{"not_found", http.StatusNotFound}
	Unauthorized  = Kind{"unauthorized", http.StatusUnauthorized}
	Forbidden     = Kind{"forbidden", http.StatusForbidden}
	Persistence   = Kind{"internal_error", http.StatusInternalServerError}
)

type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Param   string `json:"param,omitempty"`
	Message string `json:"message"`
}

// Error carries a caller-safe message. Cause is kept for logs and errors.Is
// but is never rendered to clients.
type Error struct {
	Kind    Kind
	Message string
	Fields  []FieldError
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Kind.Code + ": " + e.Message + ": " + e.Cause.Error()
	}
	return e.Kind.Code + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

func Invalid(fields []FieldError) *Error {
	return &Error{Kind: Validation, Message: "Validation failed", Fields: fields}
}

// KindOf reports the kind of err. Anything that is not an *Error is treated
// as a persistence failure so internals never leak as a client error.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return Persistence
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
