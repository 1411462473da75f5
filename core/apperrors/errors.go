// Package apperrors defines the error taxonomy shared by every core service.
// Handlers translate these sentinels to HTTP statuses; storage error text
// never crosses the API boundary.
package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrBadRequest   = errors.New("bad request")
	ErrInternal     = errors.New("internal error")
)

// BadRequestf wraps ErrBadRequest with a caller-safe reason.
func BadRequestf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrBadRequest, fmt.Sprintf(format, args...))
}

// Internalf wraps ErrInternal. The cause is kept for logging via Unwrap but
// must not be echoed to API clients.
func Internalf(cause error) error {
	if cause == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInternal, cause)
}
