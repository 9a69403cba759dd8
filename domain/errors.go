package domain

import "errors"

// Error kinds shared by adapters and use cases. Callers match them with errors.Is.
var (
	// ErrPermissionDenied is returned when microphone access is refused.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrTransport is returned when the connection to the generative backend fails.
	ErrTransport = errors.New("transport error")
	// ErrMissingCredential is returned when the backend rejects or cannot find the API key.
	ErrMissingCredential = errors.New("missing or invalid credential")
	// ErrEmptyResult is returned when a generation request produced nothing usable.
	ErrEmptyResult = errors.New("empty result")
	// ErrInvalidInput is returned for requests that fail validation.
	ErrInvalidInput = errors.New("invalid input")
	// ErrCorruptState is returned when persisted state cannot be decoded.
	ErrCorruptState = errors.New("corrupt persisted state")
	// ErrNotFound is returned by key-value stores for absent keys.
	ErrNotFound = errors.New("not found")
)
