package google

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/custodia-labs/gphotos-cli/internal/core/domain"
	"github.com/custodia-labs/gphotos-cli/internal/core/ports/driven"
	"github.com/custodia-labs/gphotos-cli/internal/logger"
	"github.com/custodia-labs/gphotos-cli/internal/obs"
)

// maxResponseBytes bounds how much of a JSON response body is read.
const maxResponseBytes = 32 << 20

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithHTTPClient sets the HTTP client used for attempts.
func WithHTTPClient(c *http.Client) Option {
	return func(d *Dispatcher) {
		if c != nil {
			d.client = c
		}
	}
}

// WithRateLimiter shares a limiter between dispatchers.
func WithRateLimiter(l *RateLimiter) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.limiter = l
		}
	}
}

// WithStateHook observes every attempt transition.
func WithStateHook(h StateHook) Option {
	return func(d *Dispatcher) {
		d.hook = h
	}
}

// Dispatcher sends requests to one Google Photos API with token handling,
// failure classification and retries. It is safe for concurrent use.
type Dispatcher struct {
	cfg      Config
	base     *url.URL
	provider driven.TokenProvider
	client   *http.Client
	limiter  *RateLimiter
	hook     StateHook
	sleep    sleepFunc
}

// NewDispatcher creates a Dispatcher that authenticates with provider.
func NewDispatcher(provider driven.TokenProvider, cfg Config, opts ...Option) (*Dispatcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("dispatcher: parsing base URL: %w", err)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	d := &Dispatcher{
		cfg:      cfg,
		base:     base,
		provider: provider,
		client:   &http.Client{},
		sleep:    sleepCtx,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.limiter == nil {
		if cfg.RateLimit != nil {
			d.limiter = NewRateLimiterWithConfig(*cfg.RateLimit)
		} else {
			d.limiter = NewRateLimiter(cfg.Service)
		}
	}

	return d, nil
}

// Config returns the dispatcher configuration.
func (d *Dispatcher) Config() Config {
	return d.cfg
}

// Provider returns the token provider.
func (d *Dispatcher) Provider() driven.TokenProvider {
	return d.provider
}

// Dispatch performs req and returns its 2xx response.
//
// Failures are returned as *domain.APIError whose kind can be matched with
// errors.Is. Token store failures (domain.ErrReauthRequired,
// domain.ErrCorruptState, domain.ErrRefreshFailed) and caller cancellation
// are returned as they are, without retrying.
func (d *Dispatcher) Dispatch(ctx context.Context, req domain.Request) (*domain.Response, error) {
	start := time.Now()
	resp, err := d.dispatch(ctx, req)
	obs.ObserveDispatch(string(d.cfg.Service), kindLabel(err), time.Since(start))
	return resp, err
}

func (d *Dispatcher) dispatch(ctx context.Context, req domain.Request) (*domain.Response, error) {
	target, err := d.resolve(req)
	if err != nil {
		return nil, err
	}
	body, err := req.BodyJSON()
	if err != nil {
		return nil, fmt.Errorf("%w: encoding body: %v", domain.ErrInvalidInput, err)
	}

	bo := d.newBackOff()
	attempts := 0
	failures := 0
	refreshed := false

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		d.transition(attempts, StatePending)

		tok, err := d.provider.GetToken(ctx)
		if err != nil {
			return nil, err
		}
		d.transition(attempts, StateTokenValid)

		if scope := req.Scope(); scope != "" && !tok.Scopes.IsEmpty() && !tok.Scopes.Contains(scope) {
			d.transition(attempts, StateTerminalFailure)
			return nil, &domain.APIError{
				Kind:    domain.ErrScopeMissing,
				Reason:  "scope_not_granted",
				Message: "credential was not granted " + scope,
				URL:     target,
			}
		}

		if err := d.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		attempts++
		status, header, respBody, err := d.send(ctx, req.Method(), target, body, tok)
		d.transition(attempts, StateSent)

		var f *failure
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			f = transportFailure(err)
		} else if f = classifyResponse(status, header, respBody); f == nil {
			d.transition(attempts, StateSuccess)
			obs.ObserveAttempt(string(d.cfg.Service), "success")
			return d.response(req, tok, status, header, respBody), nil
		}

		switch {
		case f.unauthorized && !refreshed:
			refreshed = true
			obs.ObserveAttempt(string(d.cfg.Service), "unauthorized")
			d.transition(attempts, StateTokenRefreshing)
			logger.Debug("%s %s: 401, forcing token refresh", req.Method(), target)
			if _, err := d.provider.ForceRefresh(ctx, tok.Value); err != nil {
				return nil, err
			}

		case f.retryable:
			failures++
			if failures >= d.cfg.MaxAttempts {
				obs.ObserveAttempt(string(d.cfg.Service), "exhausted")
				d.transition(attempts, StateTerminalFailure)
				logger.Warn("%s %s: giving up after %d attempts: %v", req.Method(), target, attempts, describe(f))
				return nil, f.apiError(target, attempts)
			}
			obs.ObserveAttempt(string(d.cfg.Service), "retry")
			d.transition(attempts, StateRetryableFailure)

			delay := bo.NextBackOff()
			if delay == backoff.Stop {
				delay = d.cfg.MaxBackoff
			}
			if f.retryAfter > 0 {
				// The limiter holds every request back for the window; only
				// sleep here for whatever backoff exceeds it.
				d.limiter.RecordRetryAfter(f.retryAfter)
				if f.retryAfter >= delay {
					delay = 0
				}
			}
			logger.Warn("%s %s: attempt %d failed (%v), retrying in %s",
				req.Method(), target, attempts, describe(f), maxDuration(delay, f.retryAfter))
			if err := d.sleep(ctx, delay); err != nil {
				return nil, err
			}

		default:
			if f.retryAfter > 0 {
				d.limiter.RecordRetryAfter(f.retryAfter)
			}
			obs.ObserveAttempt(string(d.cfg.Service), "terminal")
			d.transition(attempts, StateTerminalFailure)
			logger.Debug("%s %s: %v", req.Method(), target, describe(f))
			return nil, f.apiError(target, attempts)
		}
	}
}

// send performs one HTTP attempt and reads the whole body.
func (d *Dispatcher) send(
	ctx context.Context, method, target string, body []byte, tok domain.AccessToken,
) (int, http.Header, []byte, error) {
	if d.cfg.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.AttemptTimeout)
		defer cancel()
	}

	var reader io.Reader = http.NoBody
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return 0, nil, nil, err
	}
	httpReq.Header.Set("Authorization", tok.AuthorizationHeader())
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return 0, nil, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, nil, nil, fmt.Errorf("reading response: %w", err)
	}
	return resp.StatusCode, resp.Header, data, nil
}

// response builds the success value, attaching a cursor when the body
// carries a continuation token.
func (d *Dispatcher) response(
	req domain.Request, tok domain.AccessToken, status int, header http.Header, body []byte,
) *domain.Response {
	resp := &domain.Response{StatusCode: status, Header: header, Body: body}

	var page struct {
		NextPageToken string `json:"nextPageToken"`
	}
	if len(body) > 0 && json.Unmarshal(body, &page) == nil && page.NextPageToken != "" {
		resp.Cursor = &domain.PageCursor{
			Token:        page.NextPageToken,
			Request:      req,
			CredentialID: tok.CredentialID,
		}
	}
	return resp
}

// resolve builds the absolute request URL.
// Paths are joined as text because Google method paths such as
// "mediaItems:search" would otherwise parse as a URL scheme.
func (d *Dispatcher) resolve(req domain.Request) (string, error) {
	raw := req.Path()
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = d.base.String() + strings.TrimPrefix(raw, "/")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: path %q: %v", domain.ErrInvalidInput, req.Path(), err)
	}
	if q := req.Query(); len(q) > 0 {
		merged := u.Query()
		for k, v := range q {
			merged[k] = v
		}
		u.RawQuery = merged.Encode()
	}
	return u.String(), nil
}

func (d *Dispatcher) newBackOff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = d.cfg.InitialBackoff
	bo.MaxInterval = d.cfg.MaxBackoff
	bo.Multiplier = d.cfg.Multiplier
	bo.RandomizationFactor = d.cfg.Jitter
	bo.MaxElapsedTime = 0
	bo.Reset()
	return bo
}

func (d *Dispatcher) transition(attempt int, s AttemptState) {
	if d.hook != nil {
		d.hook(attempt, s)
	}
}

// Paginate lazily fetches req and every following page.
//
// The sequence ends when a page carries no continuation token. Pages that
// are empty but still carry a token are yielded and followed. A failure is
// yielded once as (nil, err) and ends the sequence; this includes
// domain.ErrPageLimit when Config.MaxPages is exceeded and
// domain.ErrPageRepeated when the server returns the token it was sent.
// The sequence can be ranged over only once; a second range yields
// domain.ErrSequenceConsumed.
func (d *Dispatcher) Paginate(ctx context.Context, req domain.Request) iter.Seq2[*domain.Response, error] {
	return d.pages(ctx, req, nil)
}

// Resume continues a listing from a cursor returned by an earlier page.
// A cursor produced under a different credential (the user has authorised
// again since) yields domain.ErrCursorInvalid.
func (d *Dispatcher) Resume(ctx context.Context, cursor *domain.PageCursor) iter.Seq2[*domain.Response, error] {
	if cursor == nil {
		return func(yield func(*domain.Response, error) bool) {
			yield(nil, domain.ErrCursorInvalid)
		}
	}
	return d.pages(ctx, cursor.Next(), cursor)
}

func (d *Dispatcher) pages(
	ctx context.Context, first domain.Request, resumeFrom *domain.PageCursor,
) iter.Seq2[*domain.Response, error] {
	var consumed atomic.Bool

	return func(yield func(*domain.Response, error) bool) {
		if !consumed.CompareAndSwap(false, true) {
			yield(nil, domain.ErrSequenceConsumed)
			return
		}

		if resumeFrom != nil {
			if err := d.checkCursor(ctx, resumeFrom); err != nil {
				yield(nil, err)
				return
			}
		}

		req := first
		for page := 1; ; page++ {
			resp, err := d.Dispatch(ctx, req)
			if err != nil {
				yield(nil, err)
				return
			}
			obs.ObservePage(string(d.cfg.Service))

			if !yield(resp, nil) {
				return
			}

			switch {
			case resp.Cursor == nil:
				return
			case resp.Cursor.Token == req.PageToken():
				logger.Warn("%s: server repeated page token after %d pages", req.Path(), page)
				yield(nil, fmt.Errorf("%w: %s after %d pages", domain.ErrPageRepeated, req.Path(), page))
				return
			case d.cfg.MaxPages > 0 && page >= d.cfg.MaxPages:
				yield(nil, fmt.Errorf("%w: %s has more than %d pages", domain.ErrPageLimit, req.Path(), d.cfg.MaxPages))
				return
			}
			req = resp.Cursor.Next()
		}
	}
}

// checkCursor verifies cursor belongs to the current credential.
func (d *Dispatcher) checkCursor(ctx context.Context, cursor *domain.PageCursor) error {
	tok, err := d.provider.GetToken(ctx)
	if err != nil {
		return err
	}
	if cursor.CredentialID != tok.CredentialID {
		return fmt.Errorf("%w: cursor was issued to a previous authorization", domain.ErrCursorInvalid)
	}
	return nil
}

func describe(f *failure) string {
	switch {
	case f.statusCode == 0 && f.err != nil:
		return f.err.Error()
	case f.reason != "":
		return fmt.Sprintf("HTTP %d %s", f.statusCode, f.reason)
	default:
		return fmt.Sprintf("HTTP %d", f.statusCode)
	}
}

func maxDuration(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}

// IsRetryable reports whether err is a transient failure worth retrying later.
func IsRetryable(err error) bool {
	return errors.Is(err, domain.ErrUnavailable)
}
