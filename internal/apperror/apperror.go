// Package apperror defines the error kinds shared by every layer.
//
// Each kind is a sentinel error. Constructors return an *AppError that wraps
// the sentinel (and optionally a lower-level cause), so callers branch with
// errors.Is and handlers pull the human message out with errors.As.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrValidation    = errors.New("invalid field")
	ErrQuotaExceeded = errors.New("quota exceeded")
	ErrDuplicateName = errors.New("duplicate name")
	ErrSlotConflict  = errors.New("slot conflict")
	ErrUnavailable   = errors.New("storage unavailable")
	ErrForbidden     = errors.New("forbidden")
	ErrUnauthorized  = errors.New("unauthorized")
)

type AppError struct {
	Err     error  // error kind (one of the sentinels above)
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
	Cause   error  // Optional: underlying error, never shown to clients
}

func (e *AppError) Error() string {
	return e.Message
}

// Unwrap exposes both the kind and the cause so errors.Is matches either.
func (e *AppError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// QuotaExceeded reports that every slot of the user's quota is taken.
// cause is set when the quota was hit after a lost allocation race.
func QuotaExceeded(quota int, cause error) *AppError {
	return &AppError{
		Err:     ErrQuotaExceeded,
		Message: fmt.Sprintf("user has reached the maximum of %d avatars", quota),
		Cause:   cause,
	}
}

func DuplicateName(name string) *AppError {
	return &AppError{
		Err:     ErrDuplicateName,
		Message: fmt.Sprintf("avatar name %q is already in use", name),
		Field:   "name",
	}
}

func SlotConflict(slot int) *AppError {
	return &AppError{
		Err:     ErrSlotConflict,
		Message: fmt.Sprintf("slot %d was claimed concurrently", slot),
	}
}

// Unavailable wraps a storage failure that is not a known constraint
// violation. The cause stays in the chain for logging.
func Unavailable(op string, cause error) *AppError {
	return &AppError{
		Err:     ErrUnavailable,
		Message: "storage is temporarily unavailable",
		Cause:   fmt.Errorf("%s: %w", op, cause),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}
