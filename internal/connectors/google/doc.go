// Package google provides the resilient request dispatcher for the Google
// Photos APIs.
//
// A Dispatcher turns an immutable domain.Request into HTTP attempts:
//   - obtains a valid access token from a driven.TokenProvider
//   - refuses calls whose scope the token was not granted
//   - waits on a per-service rate limiter
//   - classifies failures (401, 403 by reason, 429, 5xx) into domain error kinds
//   - retries transient failures with capped exponential backoff and jitter,
//     honouring Retry-After
//   - forces one token refresh on 401 before giving up
//
// Paginate and Resume expose list endpoints as lazy iter.Seq2 sequences that
// follow nextPageToken until the listing ends.
//
// # Usage
//
//	d, err := google.NewDispatcher(manager.Provider(identity), google.DefaultConfig(google.ServicePicker, google.PickerBaseURL))
//	for page, err := range d.Paginate(ctx, domain.Get("mediaItems", domain.ScopePickerReadonly)) {
//		...
//	}
//
// # Error payloads
//
// 403 responses are split by the reason in the error payload:
//   - SERVICE_DISABLED / accessNotConfigured: the API is not enabled for the project
//   - ACCESS_TOKEN_SCOPE_INSUFFICIENT / insufficientPermissions: the token lacks a scope
//   - rateLimitExceeded, quotaExceeded and friends: a permission failure marked as quota
//
// Anything else is a plain permission failure. No 403 is retried.
package google
