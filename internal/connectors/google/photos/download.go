package photos

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/oauth2"

	"github.com/custodia-labs/gphotos-cli/internal/connectors/google"
	"github.com/custodia-labs/gphotos-cli/internal/core/domain"
	"github.com/custodia-labs/gphotos-cli/internal/core/ports/driven"
	"github.com/custodia-labs/gphotos-cli/internal/logger"
)

// downloadAttempts bounds retries of transient download failures.
const downloadAttempts = 3

// DownloadOptions selects which rendition of a media item is fetched.
type DownloadOptions struct {
	// Video fetches the video bytes ("=dv") instead of a still.
	Video bool
	// Width and Height request a scaled image ("=w-h"). Zero for both fetches
	// the original with metadata ("=d").
	Width  int
	Height int
}

// Suffix returns the baseUrl parameter for the options.
func (o DownloadOptions) Suffix() string {
	switch {
	case o.Video:
		return "=dv"
	case o.Width > 0 || o.Height > 0:
		var parts []string
		if o.Width > 0 {
			parts = append(parts, fmt.Sprintf("w%d", o.Width))
		}
		if o.Height > 0 {
			parts = append(parts, fmt.Sprintf("h%d", o.Height))
		}
		return "=" + strings.Join(parts, "-")
	default:
		return "=d"
	}
}

// OptionsFor returns the options that fetch the original bytes of a picked item.
func OptionsFor(item domain.PickedMediaItem) DownloadOptions {
	return DownloadOptions{Video: item.Type == domain.MediaTypeVideo}
}

// Downloader fetches media bytes from baseUrls with the managed credential.
type Downloader struct {
	provider driven.TokenProvider
	base     http.RoundTripper
	limiter  *google.RateLimiter
	backoff  time.Duration
}

// DownloaderOption configures a Downloader.
type DownloaderOption func(*Downloader)

// WithDownloadRateLimit replaces the default media rate limit.
func WithDownloadRateLimit(cfg google.RateLimitConfig) DownloaderOption {
	return func(d *Downloader) {
		d.limiter = google.NewRateLimiterWithConfig(cfg)
	}
}

// NewDownloader creates a Downloader. base may be nil to use http.DefaultTransport.
func NewDownloader(provider driven.TokenProvider, base http.RoundTripper, opts ...DownloaderOption) *Downloader {
	d := &Downloader{
		provider: provider,
		base:     base,
		limiter:  google.NewRateLimiter(google.ServiceMedia),
		backoff:  time.Second,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Download writes the bytes of the media at baseURL to w and returns the
// number of bytes written. A 401 forces one token refresh. Transient failures
// are retried as long as nothing has been written to w.
func (d *Downloader) Download(ctx context.Context, baseURL string, w io.Writer, opts DownloadOptions) (int64, error) {
	if baseURL == "" {
		return 0, fmt.Errorf("%w: base url is required", domain.ErrInvalidInput)
	}
	target := strings.TrimRight(baseURL, "/") + opts.Suffix()

	client := &http.Client{
		Transport: &oauth2.Transport{
			Source: google.NewTokenSource(ctx, d.provider),
			Base:   d.base,
		},
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = d.backoff
	bo.MaxElapsedTime = 0
	bo.Reset()

	var written int64
	refreshed := false
	op := func() error {
		if err := d.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		tok, err := d.provider.GetToken(ctx)
		if err != nil {
			return backoff.Permanent(err)
		}

		n, err := d.fetch(ctx, client, target, w)
		written += n
		switch {
		case err == nil:
			return nil
		case errors.Is(err, domain.ErrAuthFailure) && !refreshed:
			refreshed = true
			logger.Debug("download: 401, forcing token refresh")
			if _, rerr := d.provider.ForceRefresh(ctx, tok.Value); rerr != nil {
				return backoff.Permanent(rerr)
			}
			return err
		case n == 0 && google.IsRetryable(err):
			var apiErr *domain.APIError
			if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
				d.limiter.RecordRetryAfter(apiErr.RetryAfter)
			}
			logger.Warn("download: %v, retrying", err)
			return err
		default:
			return backoff.Permanent(err)
		}
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, downloadAttempts), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return written, err
	}
	return written, nil
}

func (d *Downloader) fetch(ctx context.Context, client *http.Client, target string, w io.Writer) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		// Token source failures surface through the transport.
		for _, sentinel := range []error{domain.ErrReauthRequired, domain.ErrCorruptState, domain.ErrRefreshFailed} {
			if errors.Is(err, sentinel) {
				return 0, err
			}
		}
		return 0, &domain.APIError{Kind: domain.ErrUnavailable, Message: "transport failure", URL: target, Attempts: 1, Err: err}
	}
	defer resp.Body.Close()

	if err := google.CheckResponse(resp); err != nil {
		return 0, err
	}
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("writing media: %w", err)
	}
	return n, nil
}
