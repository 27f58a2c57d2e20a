package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Shared failure taxonomy for chat operations. Handlers and the websocket
// gateway map these onto HTTP statuses / ack errors; repositories and the
// service wrap lower-level causes with %w so callers can match with errors.Is.
var (
	// ErrNotFoundOrForbidden covers both "does not exist" and "caller has no
	// access"; the two are never distinguished in responses.
	ErrNotFoundOrForbidden = errors.New("not found or access denied")
	ErrForbidden           = errors.New("forbidden")
	ErrEditWindowExpired   = errors.New("edit window expired")
	ErrBlocked             = errors.New("blocked relationship")
	ErrValidation          = errors.New("validation failed")
	ErrTransientStore      = errors.New("transient store failure")
)

// Validationf wraps ErrValidation with a caller-facing detail message.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrValidation}, args...)...)
}

// Store wraps a persistence failure as retryable.
func Store(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrTransientStore, err)
}

// HTTPStatus maps a taxonomy error to a response status.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFoundOrForbidden):
		return http.StatusNotFound
	case errors.Is(err, ErrEditWindowExpired):
		return http.StatusForbidden
	case errors.Is(err, ErrBlocked):
		return http.StatusForbidden
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
