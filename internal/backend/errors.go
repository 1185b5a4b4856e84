package backend

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound is returned for 404 responses.
	ErrNotFound = errors.New("backend: not found")
	// ErrUnavailable is returned for 5xx responses and while the breaker is open.
	ErrUnavailable = errors.New("backend: unavailable")
	// ErrBaseURL is returned when the client is built without a usable base URL.
	ErrBaseURL = errors.New("backend: base url must be absolute")
)

// APIError describes a non-2xx backend response.
type APIError struct {
	Status int
	Path   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend: %s returned %d", e.Path, e.Status)
}

// Unwrap exposes the sentinel matching the status class.
func (e *APIError) Unwrap() error {
	switch {
	case e.Status == http.StatusNotFound:
		return ErrNotFound
	case e.Status >= http.StatusInternalServerError:
		return ErrUnavailable
	default:
		return nil
	}
}
