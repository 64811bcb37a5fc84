package domain

import (
	"errors"
	"fmt"
	"time"
)

// Store and input errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrCursorInvalid indicates a page cursor could not be decoded or was
	// produced by a credential that has since been replaced.
	ErrCursorInvalid = errors.New("invalid page cursor")

	// ErrSequenceConsumed indicates a page sequence was ranged over twice.
	ErrSequenceConsumed = errors.New("page sequence already consumed")

	// ErrPageLimit indicates a listing had more pages than the configured limit.
	// The pages already yielded are not the complete listing.
	ErrPageLimit = errors.New("page limit reached")

	// ErrPageRepeated indicates the server handed back the page token it was
	// given, which would page forever.
	ErrPageRepeated = errors.New("server repeated page token")
)

// Failure kinds surfaced by the token store and the dispatcher.
// Callers match them with errors.Is; each one needs a different remedy.
var (
	// ErrReauthRequired indicates the refresh token is missing or was revoked.
	// The user must authorise again.
	ErrReauthRequired = errors.New("re-authorization required")

	// ErrCorruptState indicates the persisted credential cannot be parsed.
	ErrCorruptState = errors.New("stored credential is corrupt")

	// ErrRefreshFailed indicates the token endpoint could not be reached or
	// returned an error other than invalid_grant.
	ErrRefreshFailed = errors.New("token refresh failed")

	// ErrAPINotEnabled indicates a 403 because the API is disabled for the project.
	ErrAPINotEnabled = errors.New("API not enabled for project")

	// ErrScopeMissing indicates the credential lacks a scope the call requires.
	ErrScopeMissing = errors.New("required OAuth scope not granted")

	// ErrPermissionDenied indicates a 403 for any other reason.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrAuthFailure indicates a 401 persisted after one forced refresh.
	ErrAuthFailure = errors.New("authentication failed")

	// ErrBadRequest indicates a non-retryable client error.
	ErrBadRequest = errors.New("bad request")

	// ErrUnavailable indicates retries were exhausted on 429/5xx or transport errors.
	ErrUnavailable = errors.New("service unavailable")
)

// APIError describes a classified failure of one dispatch.
// It unwraps to its Kind so errors.Is(err, ErrScopeMissing) works.
type APIError struct {
	// Kind is one of the failure kind sentinels above.
	Kind error
	// StatusCode is the HTTP status of the final attempt (0 if none was received).
	StatusCode int
	// Reason is the machine readable reason from the error payload, if any.
	Reason string
	// Message is the human readable message from the error payload, if any.
	Message string
	// URL is the request URL.
	URL string
	// Attempts is the number of HTTP attempts made.
	Attempts int
	// RetryAfter is the server's requested wait, if it sent one.
	RetryAfter time.Duration
	// Quota is set on a 403 caused by an exhausted quota or rate limit.
	// Such a 403 is not retried; the caller decides when to try again.
	Quota bool
	// Err is the underlying cause (transport error, last retryable error).
	Err error
}

func (e *APIError) Error() string {
	msg := e.Kind.Error()
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (HTTP %d", msg, e.StatusCode)
		if e.Reason != "" {
			msg += ", " + e.Reason
		}
		msg += ")"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns both the kind and the cause.
func (e *APIError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

// Remediation returns human guidance for a classified error.
// Returns an empty string if there is no specific advice.
func Remediation(err error) string {
	switch {
	case errors.Is(err, ErrReauthRequired):
		return "Run 'gphotos auth login' to authorise again."
	case errors.Is(err, ErrCorruptState):
		return "The stored token file cannot be read. Run 'gphotos auth logout' and then 'gphotos auth login'."
	case errors.Is(err, ErrAPINotEnabled):
		return "Enable the API for your project in the Google Cloud Console " +
			"(APIs & Services > Library), then retry."
	case errors.Is(err, ErrScopeMissing):
		return "The token was granted without a required scope. Add the scope to the OAuth consent screen, " +
			"then run 'gphotos auth logout' and 'gphotos auth login' to consent again."
	case isQuota(err):
		return "A Google API quota or rate limit was exceeded. Wait before retrying, " +
			"or raise the quota for your project in the Google Cloud Console."
	case errors.Is(err, ErrPermissionDenied):
		return "The account is not allowed to access this resource."
	case errors.Is(err, ErrAuthFailure):
		return "The access token was rejected even after a refresh. Try 'gphotos auth login'."
	case errors.Is(err, ErrUnavailable):
		return "The API is overloaded or rate limited. Retry later."
	case errors.Is(err, ErrPageLimit):
		return "The listing is longer than dispatcher.max_pages allows. Raise it with 'gphotos config set dispatcher.max_pages 0'."
	default:
		return ""
	}
}

func isQuota(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Quota
}
