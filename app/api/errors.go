package api

import (
	"errors"
	"fmt"
)

// ErrNotLoggedIn is matched by an APIError with the "login required" code.
var ErrNotLoggedIn = errors.New("not logged in")

// loginRequiredCode is the errorCode the API returns for calls needing a session.
const loginRequiredCode = -1001

// ResponseError represents a non-2xx HTTP response.
type ResponseError struct {
	StatusCode int
}

// Error implements the error interface.
func (e *ResponseError) Error() string {
	return fmt.Sprintf("api: HTTP %d", e.StatusCode)
}

// APIError is a failure reported in the response envelope.
type APIError struct {
	Code    int
	Message string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("api: error %d: %s", e.Code, e.Message)
}

// Is reports ErrNotLoggedIn for the login required code.
func (e *APIError) Is(target error) bool {
	return target == ErrNotLoggedIn && e.Code == loginRequiredCode
}
