package common

import (
	"errors"
	"fmt"
)

// Domain errors - use errors.Is() to check
var (
	// Generic errors
	ErrInternal   = errors.New("internal error")
	ErrNotFound   = errors.New("not found")
	ErrForbidden  = errors.New("forbidden")
	ErrConflict   = errors.New("already exists")
	ErrBadRequest = errors.New("bad request")

	// Access errors. Only ErrCatalogUnavailable is ever logged; the others
	// classify why a check denied and are never returned to callers.
	ErrCatalogUnavailable   = errors.New("role catalog unavailable")
	ErrUnknownRole          = errors.New("unknown role")
	ErrMalformedDescription = errors.New("malformed permission description")

	// Authentication errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidSession     = errors.New("invalid session")
	ErrSessionRevoked     = errors.New("session revoked")

	// Resource-specific errors
	ErrMineralNotFound = fmt.Errorf("mineral %w", ErrNotFound)
	ErrCountryNotFound = fmt.Errorf("country %w", ErrNotFound)
	ErrSiteNotFound    = fmt.Errorf("site %w", ErrNotFound)

	// Validation errors
	ErrValidation = errors.New("validation error")
)

// ValidationError represents a validation error with field details
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Is implements errors.Is for ValidationError
func (e ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// WrapInternal wraps an error as an internal error with context
func WrapInternal(operation string, err error) error {
	return fmt.Errorf("%s: %w", operation, errors.Join(ErrInternal, err))
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}
