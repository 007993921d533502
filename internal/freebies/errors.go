package freebies

import (
	"errors"
	"fmt"
)

// Sentinel errors mapped from remote response codes
var (
	// ErrUnauthorized means the bearer token was rejected. The token
	// store is invalidated as a side effect of the response path.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden means the viewer may not perform the action
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound means the requested resource does not exist
	ErrNotFound = errors.New("not found")
)

// RemoteError is a non-2xx response that is not one of the sentinel
// cases. Detail carries the backend's error message when present.
type RemoteError struct {
	Status int
	Detail string
}

// Error implements the error interface
func (e *RemoteError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("remote error %d: %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("remote error %d", e.Status)
}
