package domain

import (
	"errors"
	"strings"
)

var (
	ErrAccountNotFound    = errors.New("account not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrValidation         = errors.New("validation failed")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrForbidden          = errors.New("access forbidden")
)

// Token failures. Callers outside the auth layer only ever see ErrUnauthenticated
// semantics; the specific reason is kept for logging.
var (
	ErrUnauthenticated       = errors.New("unauthenticated")
	ErrTokenSignatureInvalid = errors.New("token signature invalid")
	ErrTokenExpired          = errors.New("token expired")
	ErrTokenMalformed        = errors.New("token malformed")
)

// FieldError is a single failed rule on a request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries every failed field of a request.
type ValidationError struct {
	Failures []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		msgs = append(msgs, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// InvalidCredentialsError reports which credential failed at login.
//
// Distinguishing an unknown email from a wrong password lets a caller probe for
// registered addresses. The distinction is kept on purpose.
type InvalidCredentialsError struct {
	Field string
}

func (e *InvalidCredentialsError) Error() string {
	return "invalid " + e.Field
}

func (e *InvalidCredentialsError) Unwrap() error { return ErrInvalidCredentials }
