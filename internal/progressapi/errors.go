package progressapi

import (
	"errors"
	"fmt"
)

// ErrUnauthorized indicates the provided API token is invalid
var ErrUnauthorized = errors.New("invalid or expired API token")

// NetworkError represents a transient failure: a transport error, a timeout
// or a 5xx response. Callers may retry or fall back to offline handling.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// StatusError represents a definite non-2xx response that is not worth
// retrying as-is (4xx other than 401).
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// IsTransient reports whether the error should be treated as a transient
// network failure rather than a hard error.
func IsTransient(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}
