package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrNotFound           = errors.New("not found")
	ErrTokenInactive      = errors.New("token is not active")
	ErrTokenExpired       = errors.New("token expired")
	ErrInvalidSecret      = errors.New("invalid token secret")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrConflict           = errors.New("conflicting update")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnsupportedMedia   = errors.New("unsupported media type")
)

// InvalidTransitionError names both sides of a rejected status change.
type InvalidTransitionError struct {
	Current   BookingStatus
	Requested BookingStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition: %s -> %s", e.Current, e.Requested)
}

func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// Validationf wraps ErrValidation with a client-facing message.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// IsAccessDenied reports whether err is one of the token rejections that the
// public boundary collapses into a single response.
func IsAccessDenied(err error) bool {
	return errors.Is(err, ErrTokenInactive) ||
		errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrInvalidSecret)
}
