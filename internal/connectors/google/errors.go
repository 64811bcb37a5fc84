package google

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"google.golang.org/api/googleapi"

	"github.com/custodia-labs/gphotos-cli/internal/core/domain"
)

// Reasons carried in Google error payloads, either in error.errors[].reason
// (legacy) or in an ErrorInfo entry of error.details[].reason.
const (
	ReasonServiceDisabled       = "SERVICE_DISABLED"
	ReasonAccessNotConfigured   = "accessNotConfigured"
	ReasonScopeInsufficient     = "ACCESS_TOKEN_SCOPE_INSUFFICIENT"
	ReasonInsufficientPerms     = "insufficientPermissions"
	ReasonRateLimitExceeded     = "rateLimitExceeded"
	ReasonUserRateLimitExceeded = "userRateLimitExceeded"
	ReasonRateLimitExceededRPC  = "RATE_LIMIT_EXCEEDED"
	ReasonQuotaExceeded         = "quotaExceeded"
)

// wwwAuthInsufficientScope is the RFC 6750 error code in WWW-Authenticate.
const wwwAuthInsufficientScope = "insufficient_scope"

// failure is a classified non-2xx response or transport error.
type failure struct {
	kind         error
	retryable    bool
	unauthorized bool
	quota        bool
	statusCode   int
	reason       string
	message      string
	retryAfter   time.Duration
	err          error
}

// apiError converts the failure into the error returned to callers.
func (f *failure) apiError(url string, attempts int) *domain.APIError {
	return &domain.APIError{
		Kind:       f.kind,
		StatusCode: f.statusCode,
		Reason:     f.reason,
		Message:    f.message,
		URL:        url,
		Attempts:   attempts,
		RetryAfter: f.retryAfter,
		Quota:      f.quota,
		Err:        f.err,
	}
}

// transportFailure classifies an error that produced no HTTP response.
func transportFailure(err error) *failure {
	return &failure{kind: domain.ErrUnavailable, retryable: true, err: err}
}

// classifyResponse classifies an HTTP reply. Returns nil for 2xx.
// body is the fully read response body.
func classifyResponse(status int, header http.Header, body []byte) *failure {
	if status >= 200 && status <= 299 {
		return nil
	}

	f := &failure{statusCode: status}

	// CheckResponse parses both the legacy and the google.rpc error shapes.
	resp := &http.Response{
		StatusCode: status,
		Header:     header,
		Body:       io.NopCloser(bytes.NewReader(body)),
	}
	var gerr *googleapi.Error
	if err := googleapi.CheckResponse(resp); errors.As(err, &gerr) {
		f.message = gerr.Message
		f.err = gerr
	}
	reasons := errorReasons(gerr)
	if len(reasons) > 0 {
		f.reason = reasons[0]
	}

	switch {
	case status == http.StatusUnauthorized:
		f.kind = domain.ErrAuthFailure
		f.unauthorized = true
	case status == http.StatusForbidden:
		classifyForbidden(f, header, reasons)
	case status == http.StatusTooManyRequests:
		f.kind = domain.ErrUnavailable
		f.retryable = true
		f.retryAfter = parseRetryAfter(header.Get("Retry-After"), time.Now())
	case status >= 500:
		f.kind = domain.ErrUnavailable
		f.retryable = true
		f.retryAfter = parseRetryAfter(header.Get("Retry-After"), time.Now())
	default:
		f.kind = domain.ErrBadRequest
	}

	return f
}

// classifyForbidden tells apart the causes of a 403, which need very
// different remedies from the user. No 403 is retried: an exhausted quota
// is reported as permission denied with its reason kept.
func classifyForbidden(f *failure, header http.Header, reasons []string) {
	for _, r := range reasons {
		switch r {
		case ReasonServiceDisabled, ReasonAccessNotConfigured:
			f.kind = domain.ErrAPINotEnabled
			f.reason = r
			return
		case ReasonScopeInsufficient, ReasonInsufficientPerms:
			f.kind = domain.ErrScopeMissing
			f.reason = r
			return
		case ReasonRateLimitExceeded, ReasonUserRateLimitExceeded, ReasonRateLimitExceededRPC, ReasonQuotaExceeded:
			f.kind = domain.ErrPermissionDenied
			f.reason = r
			f.quota = true
			f.retryAfter = parseRetryAfter(header.Get("Retry-After"), time.Now())
			return
		}
	}

	if strings.Contains(header.Get("WWW-Authenticate"), wwwAuthInsufficientScope) {
		f.kind = domain.ErrScopeMissing
		if f.reason == "" {
			f.reason = wwwAuthInsufficientScope
		}
		return
	}

	f.kind = domain.ErrPermissionDenied
}

// errorReasons collects every reason in the payload, legacy entries first.
func errorReasons(gerr *googleapi.Error) []string {
	if gerr == nil {
		return nil
	}

	var out []string
	for _, item := range gerr.Errors {
		if item.Reason != "" {
			out = append(out, item.Reason)
		}
	}
	for _, d := range gerr.Details {
		m, ok := d.(map[string]any)
		if !ok {
			continue
		}
		if r, ok := m["reason"].(string); ok && r != "" {
			out = append(out, r)
		}
	}
	return out
}

// parseRetryAfter reads a Retry-After header given in seconds or as an HTTP date.
// Returns zero if absent or unparseable.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(v); err == nil {
		if seconds < 0 {
			return 0
		}
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

// kindLabel names the failure kind of err for metrics.
func kindLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrReauthRequired):
		return "reauth_required"
	case errors.Is(err, domain.ErrCorruptState):
		return "corrupt_state"
	case errors.Is(err, domain.ErrRefreshFailed):
		return "refresh_failed"
	case errors.Is(err, domain.ErrAPINotEnabled):
		return "api_not_enabled"
	case errors.Is(err, domain.ErrScopeMissing):
		return "scope_missing"
	case errors.Is(err, domain.ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, domain.ErrAuthFailure):
		return "auth_failure"
	case errors.Is(err, domain.ErrBadRequest):
		return "bad_request"
	case errors.Is(err, domain.ErrUnavailable):
		return "unavailable"
	case errors.Is(err, domain.ErrCursorInvalid):
		return "cursor_invalid"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}

// CheckResponse returns nil for a 2xx response and a classified
// *domain.APIError otherwise, consuming the body. Used for requests that do
// not go through a Dispatcher, such as media downloads.
func CheckResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	f := classifyResponse(resp.StatusCode, resp.Header, body)

	var target string
	if resp.Request != nil && resp.Request.URL != nil {
		target = resp.Request.URL.String()
	}
	return f.apiError(target, 1)
}
