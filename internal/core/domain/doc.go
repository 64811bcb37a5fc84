// Package domain defines the core entities of the Google Photos client.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Credential: OAuth state for one identity
//   - ScopeSet: Ordered set of granted OAuth scopes
//   - Request / Response: One call against the remote API
//   - PageCursor: Continuation of a paginated listing
//   - PickingSession, PickedMediaItem, MediaItem, Album: API resources
//
// Failure kinds (ErrReauthRequired, ErrScopeMissing, ...) are defined here so
// every layer classifies errors the same way.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
