// Package apperror defines the application's error taxonomy.
//
// Every error a caller can act on is an *AppError. It carries two things:
//   - Err: a category sentinel (ErrNotFound, ErrState, ...) that the HTTP
//     layer maps to a status code
//   - Code: a machine-readable reason ("already_paired", "auth_expired", ...)
//     that identifies the specific rejection
//
// errors.Is works on both levels:
//
//	errors.Is(err, apperror.ErrNotFound)      // category, via Unwrap
//	errors.Is(err, apperror.ErrCodeNotFound)  // kind, via (*AppError).Is
package apperror

import (
	"errors"
	"fmt"
)

// Category sentinels.
var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation error")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	ErrState        = errors.New("invalid state")
	ErrUpstream     = errors.New("upstream error")
	ErrUnavailable  = errors.New("unavailable")
	ErrInternal     = errors.New("internal error")
)

type AppError struct {
	Err     error  // category sentinel
	Code    string // machine-readable reason
	Message string // human-readable error message
	Field   string // optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *AppError of the same kind.
// Two AppErrors are the same kind when they share a non-empty Code.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code != "" && t.Code == e.Code
}

// Kinds surfaced by the authentication gate and the pairing engine.
// They are values, not constructors: compare with errors.Is.
var (
	ErrAuthInvalid = &AppError{
		Err:     ErrUnauthorized,
		Code:    "auth_invalid",
		Message: "could not validate credentials",
	}
	ErrAuthExpired = &AppError{
		Err:     ErrUnauthorized,
		Code:    "auth_expired",
		Message: "credentials have expired",
	}
	ErrUserNotFound = &AppError{
		Err:     ErrNotFound,
		Code:    "user_not_found",
		Message: "user not found",
	}
	ErrAlreadyPaired = &AppError{
		Err:     ErrState,
		Code:    "already_paired",
		Message: "user is already paired",
	}
	ErrNotPaired = &AppError{
		Err:     ErrState,
		Code:    "not_paired",
		Message: "user is not paired",
	}
	ErrCodeNotFound = &AppError{
		Err:     ErrNotFound,
		Code:    "code_not_found",
		Message: "invalid pairing code",
	}
	ErrSelfPair = &AppError{
		Err:     ErrState,
		Code:    "self_pair",
		Message: "cannot pair with yourself",
	}
	ErrTargetAlreadyPaired = &AppError{
		Err:     ErrState,
		Code:    "target_already_paired",
		Message: "target user is already paired",
	}
	ErrCodeSpaceExhausted = &AppError{
		Err:     ErrInternal,
		Code:    "code_space_exhausted",
		Message: "could not allocate a unique pairing code",
	}
	ErrUpstreamIdentity = &AppError{
		Err:     ErrUpstream,
		Code:    "upstream_identity_error",
		Message: "identity provider verification failed",
	}
	ErrUpstreamUnavailable = &AppError{
		Err:     ErrUnavailable,
		Code:    "upstream_unavailable",
		Message: "identity provider is not configured",
	}
)

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Code:    "not_found",
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Code:    "validation_error",
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Code:    "conflict",
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Code:    "forbidden",
		Message: message,
	}
}

// Upstream returns an ErrUpstreamIdentity kind carrying the provider's message.
func Upstream(message string) *AppError {
	return &AppError{
		Err:     ErrUpstream,
		Code:    ErrUpstreamIdentity.Code,
		Message: fmt.Sprintf("%s: %s", ErrUpstreamIdentity.Message, message),
	}
}
