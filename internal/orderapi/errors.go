package orderapi

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrUnavailable is returned while the circuit breaker refuses calls.
var ErrUnavailable = errors.New("order api unavailable")

// APIError is a non-2xx answer from the Order API.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("order api returned %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("order api returned %d: %s", e.Status, e.Detail)
}

// Temporary reports whether retrying the same submission may succeed.
func (e *APIError) Temporary() bool {
	return e.Status >= http.StatusInternalServerError || e.Status == http.StatusTooManyRequests
}
