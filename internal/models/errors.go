package models

import "errors"

// Error kinds shared by every component. Concrete errors wrap one of these so
// callers can classify them with errors.Is.
var (
	// ErrConfiguration: credentials or flags missing for a scope. The sync is
	// skipped and never retried.
	ErrConfiguration = errors.New("configuration error")
	// ErrTransport: network failure or HTTP status >= 400 from the Listrak API.
	ErrTransport = errors.New("transport error")
	// ErrAuth: the token endpoint refused the credentials.
	ErrAuth = errors.New("auth error")
	// ErrMapping: an entity could not be shaped into the Listrak schema.
	ErrMapping = errors.New("mapping error")
	// ErrPersistence: the failed request store could not be written.
	ErrPersistence = errors.New("persistence error")
)
