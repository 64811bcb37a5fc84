package photos

import "errors"

// Picker session errors.
var (
	// ErrSessionExpired indicates the session expired before the user finished picking.
	ErrSessionExpired = errors.New("photos: picker session expired before completion")

	// ErrSessionTimeout indicates the user did not finish picking in time.
	ErrSessionTimeout = errors.New("photos: timed out waiting for picker selection")

	// ErrInvalidSession indicates the API returned a session without id or pickerUri.
	ErrInvalidSession = errors.New("photos: invalid picker session in response")

	// ErrInvalidFilter indicates a search filter combination the Library API rejects.
	ErrInvalidFilter = errors.New("photos: invalid search filter")
)
