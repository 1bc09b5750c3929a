package listrak

import (
	"fmt"

	"listraksync/internal/models"
)

// AuthError means the token endpoint refused the credentials.
type AuthError struct {
	ClientID string
	Err      error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("listrak auth failed for client %s: %v", e.ClientID, e.Err)
}

func (e *AuthError) Unwrap() []error {
	return []error{models.ErrAuth, e.Err}
}

// RequestError is a network failure or an HTTP status >= 400.
type RequestError struct {
	Method     string
	Endpoint   string
	StatusCode int
	Body       string
	Err        error
}

func (e *RequestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %v", e.Method, e.Endpoint, e.Err)
	}
	return fmt.Sprintf("%s %s: http %d", e.Method, e.Endpoint, e.StatusCode)
}

func (e *RequestError) Unwrap() []error {
	if e.Err != nil {
		return []error{models.ErrTransport, e.Err}
	}
	return []error{models.ErrTransport}
}

// Response is what gets stored on the failed request record.
func (e *RequestError) Response() string {
	if e.Body != "" {
		return e.Body
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("http %d", e.StatusCode)
}
