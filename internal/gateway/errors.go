package gateway

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrUnauthorized is returned when the API rejected the bearer token with 401.
// The response body has already been discarded.
var ErrUnauthorized = errors.New("unauthorized")

// StatusError is an application failure: the API answered with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("api returned HTTP %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("api returned HTTP %d: %s", e.StatusCode, e.Body)
}
